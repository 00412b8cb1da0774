package main

import (
	"context"
	"fmt"
	"log"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/db"
	enricher "github.com/nwiltsie/recall/enrich"
	"github.com/nwiltsie/recall/indexer"
	"github.com/nwiltsie/recall/subcmd"
	"github.com/nwiltsie/recall/vecstore"
)

func index(ctx context.Context, db *db.DB, store *vecstore.Store, args []string) error {
	subcmd := subcmd.New("index", "embed catalog songs into the search index\nruns from the lyrics cache only; run 'enrich' first to fetch lyrics")
	rebuild := subcmd.Bool("rebuild", false, "drop the index and re-embed everything, required after changing the embedding model")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	entries, err := db.LoadCatalog(ctx, "")
	if err != nil {
		return err
	}

	pairs := make([]enricher.Pair, 0, len(entries))
	for _, entry := range entries {
		cached, err := db.GetLyrics(ctx, entry.Fingerprint)
		if err != nil {
			return err
		}
		// Songs with no cache entry yet still index on metadata alone.
		lyr := data.LyricsEntry{Fingerprint: entry.Fingerprint}
		if cached != nil {
			lyr = *cached
		}
		pairs = append(pairs, enricher.Pair{Entry: entry, Lyrics: lyr})
	}

	report, err := indexer.Run(ctx, store, newEmbedder(), pairs, *rebuild)
	if err != nil {
		return fmt.Errorf("index error: %w", err)
	}

	log.Printf("indexed %d, skipped %d, failed %d", report.Indexed, report.Skipped, report.Failed)
	return nil
}
