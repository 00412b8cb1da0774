package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nwiltsie/recall/db"
	"github.com/nwiltsie/recall/subcmd"
	"github.com/nwiltsie/recall/vecstore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func status(ctx context.Context, db *db.DB, store *vecstore.Store, args []string) error {
	subcmd := subcmd.New("status", "show catalog, lyrics cache, and index counts")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	p := message.NewPrinter(language.English)

	catalog, err := db.Stats(ctx)
	if err != nil {
		return err
	}
	p.Printf("catalog: %d songs\n", catalog.Total)
	sources := make([]string, 0, len(catalog.PerSource))
	for source := range catalog.PerSource {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		p.Printf("  %s: %d\n", source, catalog.PerSource[source])
	}

	cache, err := db.CacheStats(ctx)
	if err != nil {
		return err
	}
	p.Printf("lyrics: %d cached\n", cache.Total)
	p.Printf("  found: %d\n", cache.Found)
	p.Printf("  instrumental: %d\n", cache.Instrumental)
	p.Printf("  not found: %d\n", cache.NotFound)
	p.Printf("  errors: %d\n", cache.Errors)

	meta, err := store.Meta(ctx)
	if err != nil {
		return err
	}
	if meta == nil {
		p.Printf("index: not built\n")
		return nil
	}
	count, err := store.Count(ctx)
	if err != nil {
		return err
	}
	p.Printf("index: %d documents\n", count)
	p.Printf("  model: %s (%d dimensions)\n", meta.Model, meta.Dimensions)
	p.Printf("  built: %s\n", meta.BuiltAt.Local().Format(time.RFC1123))

	return nil
}
