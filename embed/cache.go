package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/nwiltsie/recall/data"
)

// Cache is a content-addressed store of computed embeddings: one file per
// (model, text) pair, named by hash. Re-indexing a document whose combined
// text hasn't changed becomes a local read instead of a collaborator call.
func NewCache(dir, prefix string) *Cache {
	return &Cache{dir: dir, prefix: prefix}
}

type Cache struct {
	dir, prefix string
}

var ErrMiss = errors.New("cache miss")

func (c *Cache) Get(model, text string) (data.Vector, error) {
	hash, filename := c.hashAndFilename(model, text)

	bs, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no embedding for '%s': %w", hash, ErrMiss)
	} else if err != nil {
		return nil, fmt.Errorf("error reading cached embedding '%s': %w", hash, err)
	}

	vec, err := data.UnmarshalVector(bs)
	if err != nil {
		return nil, fmt.Errorf("error decoding cached embedding '%s': %w", hash, err)
	}
	return vec, nil
}

func (c *Cache) Put(model, text string, vec data.Vector) error {
	hash, filename := c.hashAndFilename(model, text)

	if err := os.MkdirAll(c.dir, 0777); err != nil {
		return fmt.Errorf("error creating cache dir '%s': %w", c.dir, err)
	}
	bs, err := vec.Marshal()
	if err != nil {
		return fmt.Errorf("error encoding embedding '%s': %w", hash, err)
	}
	if err := os.WriteFile(filename, bs, 0666); err != nil {
		return fmt.Errorf("error writing cached embedding '%s': %w", hash, err)
	}
	return nil
}

func (c *Cache) hashAndFilename(model, text string) (string, string) {
	hasher := sha256.New()
	hasher.Write([]byte(model))
	hasher.Write([]byte{0})
	hasher.Write([]byte(text))
	hash := hex.EncodeToString(hasher.Sum(nil))
	return hash, filepath.Join(c.dir, c.prefix+hash)
}

// WithCache wraps an embedder so repeated embeddings of identical text are
// served locally. Misses go to the wrapped embedder in one batch and are
// written back. The cache is an optimization, never load-bearing: an
// unreadable entry recomputes, and a failed write degrades to recomputing
// next run.
func WithCache(e Embedder, c *Cache) Embedder {
	return &cached{inner: e, cache: c}
}

type cached struct {
	inner Embedder
	cache *Cache
}

func (e *cached) Model() string { return e.inner.Model() }

func (e *cached) Embed(ctx context.Context, text string) (data.Vector, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *cached) EmbedBatch(ctx context.Context, texts []string) ([]data.Vector, error) {
	vecs := make([]data.Vector, len(texts))

	var missing []string
	var missingAt []int
	for i, text := range texts {
		vec, err := e.cache.Get(e.inner.Model(), text)
		if err == nil {
			vecs[i] = vec
			continue
		}
		if !errors.Is(err, ErrMiss) {
			log.Printf("error reading embedding cache: %v", err)
		}
		missing = append(missing, text)
		missingAt = append(missingAt, i)
	}
	if len(missing) == 0 {
		return vecs, nil
	}

	computed, err := e.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for i, vec := range computed {
		vecs[missingAt[i]] = vec
		if err := e.cache.Put(e.inner.Model(), missing[i], vec); err != nil {
			log.Printf("error writing embedding cache: %v", err)
		}
	}
	return vecs, nil
}
