// Package embed turns text into fixed-length vectors. The Embedder
// interface is the narrow contract the indexing and search pipelines
// consume; which model produces the vectors is recorded in the index
// metadata so queries and documents can never silently mix models.
package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/nwiltsie/recall/data"
)

type Embedder interface {
	Embed(ctx context.Context, text string) (data.Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]data.Vector, error)

	// Model identifies what produced the vectors, like
	// "text-embedding-3-small" or "token-hash-v1-256".
	Model() string
}

// NewHasher returns the offline embedder: a deterministic feature-hashing
// bag of words. No model download, no network, and shared tokens between a
// query and a document still land in shared buckets, which is enough for
// lyric-fragment recall on a personal library.
func NewHasher(dims int) *Hasher {
	return &Hasher{dims: dims}
}

type Hasher struct {
	dims int
}

func (h *Hasher) Model() string {
	return fmt.Sprintf("token-hash-v1-%d", h.dims)
}

func (h *Hasher) Embed(ctx context.Context, text string) (data.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make(data.Vector, h.dims)
	for _, token := range strings.Fields(data.Normalize(text)) {
		f := fnv.New32a()
		f.Write([]byte(token))
		sum := f.Sum32()
		bucket := int(sum % uint32(h.dims))
		// The high bit picks the sign, so colliding tokens tend to
		// cancel instead of stacking.
		if sum&0x80000000 != 0 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}

	norm := vec.Norm()
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}

	return vec, nil
}

func (h *Hasher) EmbedBatch(ctx context.Context, texts []string) ([]data.Vector, error) {
	vecs := make([]data.Vector, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}
