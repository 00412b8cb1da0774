// Package search answers natural-language queries against the vector index,
// joining matches back to the catalog for display.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/db"
	"github.com/nwiltsie/recall/embed"
	"github.com/nwiltsie/recall/vecstore"
)

// ErrInvalidQuery means the query was blank after trimming whitespace.
var ErrInvalidQuery = errors.New("query must not be blank")

// ErrModelMismatch means the index was built by a different embedding model
// than the one configured now. Scores across models are meaningless, so the
// query is refused rather than answered badly.
var ErrModelMismatch = errors.New("index model does not match embedding model")

const (
	// DefaultTopK is how many results a query returns when the caller
	// doesn't say.
	DefaultTopK = 10

	snippetLength = 200
)

type Engine struct {
	db    *db.DB
	store *vecstore.Store
	emb   embed.Embedder
}

func New(d *db.DB, store *vecstore.Store, emb embed.Embedder) *Engine {
	return &Engine{db: d, store: store, emb: emb}
}

// Result is one search hit, ready for display.
type Result struct {
	Fingerprint string   `json:"fingerprint"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	Album       string   `json:"album,omitempty"`
	Score       float64  `json:"score"`
	Snippet     string   `json:"snippet,omitempty"`
	Sources     []string `json:"sources"`
}

// Search embeds the query and returns the topK most similar catalog songs,
// best first. Ties in score break by catalog position, so results are
// deterministic. Pass db.SourceAll (or "") for source to search the whole
// catalog. An empty index returns no results and no error.
func (e *Engine) Search(ctx context.Context, query string, topK int, source string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	meta, err := e.store.Meta(ctx)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, nil
	}
	if meta.Model != e.emb.Model() {
		return nil, fmt.Errorf("%w: index built with '%s', queries use '%s'", ErrModelMismatch, meta.Model, e.emb.Model())
	}

	vec, err := e.emb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error embedding query: %w", err)
	}

	// Source filtering happens after retrieval; a filtered query may
	// return fewer than topK rather than fetching deeper.
	matches, err := e.store.Query(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	fingerprints := make([]string, len(matches))
	for i, match := range matches {
		fingerprints[i] = match.Fingerprint
	}
	entries, err := e.db.GetEntries(ctx, fingerprints)
	if err != nil {
		return nil, err
	}

	type scored struct {
		result   Result
		position int64
	}
	results := make([]scored, 0, len(matches))
	for _, match := range matches {
		entry, ok := entries[match.Fingerprint]
		if !ok {
			// Indexed but since removed from the catalog.
			continue
		}
		if source != "" && source != db.SourceAll && !entry.HasSource(data.Source(source)) {
			continue
		}
		snippet, err := e.snippet(ctx, match)
		if err != nil {
			return nil, err
		}
		results = append(results, scored{
			position: entry.Position,
			result: Result{
				Fingerprint: entry.Fingerprint,
				Title:       entry.Title,
				Artist:      entry.Artist,
				Album:       entry.Album,
				Score:       match.Score,
				Snippet:     snippet,
				Sources:     entry.SourceSet(),
			},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].result.Score != results[j].result.Score {
			return results[i].result.Score > results[j].result.Score
		}
		return results[i].position < results[j].position
	})
	if len(results) > topK {
		results = results[:topK]
	}

	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = r.result
	}
	return out, nil
}

// snippet prefers the first lyrics line from the cache and falls back to a
// prefix of the indexed document, which for lyric-less songs is just the
// song's metadata.
func (e *Engine) snippet(ctx context.Context, match vecstore.Match) (string, error) {
	cached, err := e.db.GetLyrics(ctx, match.Fingerprint)
	if err != nil {
		return "", err
	}
	if cached != nil && cached.HasLyrics() {
		return cached.Snippet(snippetLength), nil
	}
	runes := []rune(match.Document)
	if len(runes) > snippetLength {
		return string(runes[:snippetLength]) + "…", nil
	}
	return match.Document, nil
}
