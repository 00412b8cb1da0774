// Package indexer turns enriched catalog entries into embedded documents in
// the vector store. Indexing is an upsert per fingerprint, so rebuilding
// after a lyrics update replaces documents instead of duplicating them.
package indexer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/embed"
	"github.com/nwiltsie/recall/enrich"
	"github.com/nwiltsie/recall/vecstore"
)

// embedBatchSize keeps request bodies small enough for hosted embedding
// endpoints that cap inputs per call.
const embedBatchSize = 64

type Report struct {
	Indexed int
	Skipped int
	Failed  int
}

// BuildDocument is the one place that decides what text represents a song.
// Songs with lyrics embed title, artist, album, and the full lyrics text.
// Instrumentals embed an "instrumental" marker instead of lyrics. Songs
// whose lookup found nothing still get a metadata-only document, so they
// remain findable by title and artist.
func BuildDocument(entry data.CatalogEntry, lyr data.LyricsEntry) string {
	parts := []string{entry.Title, entry.Artist}
	if entry.Album != "" {
		parts = append(parts, entry.Album)
	}
	switch {
	case lyr.Instrumental:
		parts = append(parts, "instrumental")
	case lyr.Status == data.LyricsFound && lyr.Lyrics != "":
		parts = append(parts, lyr.Lyrics)
	}
	return strings.Join(parts, " ")
}

// Run embeds and upserts a document for every pair. Entries whose lyrics
// lookup failed with a transient error are skipped, not indexed with stale
// metadata, because the next enrich run will retry them. Individual
// embedding or storage failures are logged and counted; only index-wide
// problems abort the run.
func Run(ctx context.Context, store *vecstore.Store, emb embed.Embedder, pairs []enrich.Pair, rebuild bool) (Report, error) {
	var report Report

	if rebuild {
		if err := store.Reset(ctx); err != nil {
			return report, fmt.Errorf("error resetting index: %w", err)
		}
	} else {
		meta, err := store.Meta(ctx)
		if err != nil {
			return report, err
		}
		if meta != nil && meta.Model != emb.Model() {
			return report, fmt.Errorf("index was built with model '%s' but the embedder is '%s'; rebuild the index", meta.Model, emb.Model())
		}
	}

	type pending struct {
		fingerprint string
		document    string
	}
	var todo []pending
	for _, pair := range pairs {
		if pair.Lyrics.Status == data.LyricsError {
			report.Skipped++
			continue
		}
		todo = append(todo, pending{
			fingerprint: pair.Entry.Fingerprint,
			document:    BuildDocument(pair.Entry, pair.Lyrics),
		})
	}

	dimensions := 0
	for start := 0; start < len(todo); start += embedBatchSize {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("canceled: %w", err)
		}

		end := start + embedBatchSize
		if end > len(todo) {
			end = len(todo)
		}
		batch := todo[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.document
		}

		vecs, err := emb.EmbedBatch(ctx, texts)
		if err != nil {
			// One oversized or malformed document can poison a whole
			// batch; retry its members individually before giving up
			// on any of them.
			log.Printf("batch embed failed, retrying individually: %v", err)
			vecs = make([]data.Vector, len(batch))
			for i, p := range batch {
				vec, err := emb.Embed(ctx, p.document)
				if err != nil {
					log.Printf("error embedding '%s': %v", p.fingerprint, err)
					continue
				}
				vecs[i] = vec
			}
		}

		for i, p := range batch {
			if len(vecs[i]) == 0 {
				report.Failed++
				continue
			}
			dimensions = len(vecs[i])
			if err := store.Upsert(ctx, p.fingerprint, vecs[i], p.document); err != nil {
				log.Printf("error storing '%s': %v", p.fingerprint, err)
				report.Failed++
				continue
			}
			report.Indexed++
		}
	}

	if report.Indexed > 0 {
		if err := store.SetMeta(ctx, emb.Model(), dimensions); err != nil {
			return report, err
		}
	}
	return report, nil
}
