// Package enrich joins catalog entries with the lyrics cache, calling the
// lyrics collaborator only for songs the cache can't answer. Repeated runs
// over an unchanged catalog make zero collaborator calls.
package enrich

import (
	"context"
	"fmt"
	"log"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/db"
	"github.com/nwiltsie/recall/lyrics"
)

// Pair is one catalog entry with its lyrics cache entry attached.
type Pair struct {
	Entry  data.CatalogEntry
	Lyrics data.LyricsEntry
}

type Options struct {
	// Force refetches every entry regardless of cache state.
	Force bool

	// LimitNew caps how many collaborator lookups this run performs.
	// Entries that would need a lookup past the cap are not yielded and
	// not marked failed; the next run picks them up. 0 means no cap.
	LimitNew int

	// LimitTotal caps how many entries are processed at all, cached or
	// not. 0 means no cap.
	LimitTotal int
}

type Report struct {
	Processed    int
	CacheHits    int
	Lookups      int
	Found        int
	Instrumental int
	NotFound     int
	Errored      int
}

// Run processes entries in catalog order, which keeps repeated runs with
// the same limits reproducible. Collaborator failures degrade to cached
// error entries; the only errors returned are storage failures.
func Run(ctx context.Context, d *db.DB, provider lyrics.Provider, entries []data.CatalogEntry, opts Options) ([]Pair, Report, error) {
	fetch := func(ctx context.Context, artist, title, album string) (string, bool, string, error) {
		result, err := provider.Lookup(ctx, artist, title, album)
		if err != nil {
			return "", false, "lrclib", err
		}
		return result.Lyrics, result.Instrumental, result.Source, nil
	}

	var pairs []Pair
	var report Report

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, report, fmt.Errorf("canceled: %w", err)
		}
		if opts.LimitTotal > 0 && report.Processed >= opts.LimitTotal {
			break
		}

		cached, err := d.GetLyrics(ctx, entry.Fingerprint)
		if err != nil {
			return nil, report, err
		}
		needsLookup := cached == nil || opts.Force || cached.Status == data.LyricsError
		if needsLookup && opts.LimitNew > 0 && report.Lookups >= opts.LimitNew {
			continue
		}

		if needsLookup {
			log.Printf("[%d/%d] looking up '%s - %s'", i+1, len(entries), entry.Artist, entry.Title)
		}

		lyricsEntry, fetched, err := d.GetOrFetchLyrics(ctx, entry, fetch, opts.Force)
		if err != nil {
			return nil, report, err
		}

		if fetched {
			report.Lookups++
		} else {
			report.CacheHits++
		}
		switch {
		case lyricsEntry.Instrumental:
			report.Instrumental++
		case lyricsEntry.Status == data.LyricsFound:
			report.Found++
		case lyricsEntry.Status == data.LyricsNotFound:
			report.NotFound++
		default:
			report.Errored++
		}
		report.Processed++
		pairs = append(pairs, Pair{Entry: entry, Lyrics: lyricsEntry})
	}

	return pairs, report, nil
}
