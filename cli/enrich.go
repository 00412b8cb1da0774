package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nwiltsie/recall/db"
	enricher "github.com/nwiltsie/recall/enrich"
	"github.com/nwiltsie/recall/lyrics"
	"github.com/nwiltsie/recall/subcmd"
)

func enrich(ctx context.Context, db *db.DB, args []string) error {
	subcmd := subcmd.New("enrich", "fetch lyrics for catalog songs from lrclib")
	force := subcmd.Bool("force", false, "refetch lyrics even when cached")
	limitNew := subcmd.Int("new", 0, "max lyrics lookups this run, 0 for no limit")
	limitTotal := subcmd.Int("n", 0, "max songs to process, 0 for no limit")
	source := subcmd.String("source", "all", "only process songs from this source")
	fallbackURL := subcmd.String("fallback-url", "", "lyrics page url pattern with two %s verbs, artist slug then title slug, scraped when lrclib has no match")
	fallbackSelector := subcmd.String("fallback-selector", "", "css selector for the lyrics text on fallback pages")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	entries, err := db.LoadCatalog(ctx, *source)
	if err != nil {
		return err
	}

	client := newLyricsClient(*fallbackURL, *fallbackSelector)
	_, report, err := enricher.Run(ctx, db, client, entries, enricher.Options{
		Force:      *force,
		LimitNew:   *limitNew,
		LimitTotal: *limitTotal,
	})
	if err != nil {
		return fmt.Errorf("enrich error: %w", err)
	}

	log.Printf("processed %d: %d lookups, %d cached; %d found, %d instrumental, %d not found, %d errors",
		report.Processed, report.Lookups, report.CacheHits,
		report.Found, report.Instrumental, report.NotFound, report.Errored)
	return nil
}

func newLyricsClient(fallbackURL, fallbackSelector string) *lyrics.Client {
	client := lyrics.New(time.Second)
	if fallbackURL != "" {
		client.Fallback = lyrics.NewHTMLProvider(fallbackURL, fallbackSelector)
	}
	return client
}
