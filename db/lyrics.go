package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/lyrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetLyrics returns the cached lyrics entry for a fingerprint, or nil when
// no lookup has been cached yet.
func (db *DB) GetLyrics(ctx context.Context, fingerprint string) (*data.LyricsEntry, error) {
	var entry data.LyricsEntry
	err := db.
		Where("fingerprint = ?", fingerprint).
		First(&entry).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading lyrics cache for '%s': %w", fingerprint, err)
	}
	return &entry, nil
}

// PutLyrics unconditionally overwrites the cache entry for its fingerprint.
func (db *DB) PutLyrics(ctx context.Context, entry data.LyricsEntry) error {
	if entry.Fingerprint == "" {
		return fmt.Errorf("no fingerprint")
	}
	if err := db.
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry).
		Error; err != nil {
		return fmt.Errorf("error writing lyrics cache for '%s': %w", entry.Fingerprint, err)
	}
	return nil
}

// LyricsFetch asks the external lyrics collaborator for a song's lyrics.
// It returns an error wrapping lyrics.ErrNotFound when the collaborator has
// no match; any other error is a transport failure.
type LyricsFetch func(ctx context.Context, artist, title, album string) (lyrics string, instrumental bool, source string, err error)

// GetOrFetchLyrics is the idempotency boundary in front of the lyrics
// collaborator. A cached entry is returned unchanged without any
// collaborator call, with two exceptions: force refetches regardless of
// status, and error entries refetch because transport failures are
// transient, not terminal like not_found. Collaborator failures are
// captured into the entry's status, never propagated, so one unreachable
// lookup cannot abort a batch.
//
// The returned bool reports whether a collaborator call was made.
func (db *DB) GetOrFetchLyrics(ctx context.Context, entry data.CatalogEntry, fetch LyricsFetch, force bool) (data.LyricsEntry, bool, error) {
	cached, err := db.GetLyrics(ctx, entry.Fingerprint)
	if err != nil {
		return data.LyricsEntry{}, false, err
	}
	if cached != nil && !force && cached.Status != data.LyricsError {
		return *cached, false, nil
	}

	text, instrumental, source, err := fetch(ctx, entry.Artist, entry.Title, entry.Album)
	fetched := data.LyricsEntry{
		Fingerprint:     entry.Fingerprint,
		SourceAttempted: source,
		FetchedAt:       time.Now().UTC(),
	}
	switch {
	case err == nil:
		fetched.Status = data.LyricsFound
		fetched.Lyrics = text
		fetched.Instrumental = instrumental
	case errors.Is(err, lyrics.ErrNotFound):
		fetched.Status = data.LyricsNotFound
	default:
		fetched.Status = data.LyricsError
	}

	if err := db.PutLyrics(ctx, fetched); err != nil {
		return data.LyricsEntry{}, true, err
	}
	return fetched, true, nil
}

type LyricsCacheStats struct {
	Total        int
	Found        int
	Instrumental int
	NotFound     int
	Errors       int
}

func (db *DB) CacheStats(ctx context.Context) (LyricsCacheStats, error) {
	var entries []data.LyricsEntry
	if err := db.Find(&entries).Error; err != nil {
		return LyricsCacheStats{}, fmt.Errorf("error reading lyrics cache: %w", err)
	}
	stats := LyricsCacheStats{Total: len(entries)}
	for _, entry := range entries {
		switch {
		case entry.Instrumental:
			stats.Instrumental++
		case entry.Status == data.LyricsFound:
			stats.Found++
		case entry.Status == data.LyricsNotFound:
			stats.NotFound++
		case entry.Status == data.LyricsError:
			stats.Errors++
		}
	}
	return stats, nil
}
