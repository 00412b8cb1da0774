package db_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/lyrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetch struct {
	calls int
	text  string
	err   error
}

func (f *countingFetch) fetch(ctx context.Context, artist, title, album string) (string, bool, string, error) {
	f.calls++
	if f.err != nil {
		return "", false, "lrclib", f.err
	}
	return f.text, false, "lrclib", nil
}

func TestGetOrFetchCachesResult(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	entry := data.CatalogEntry{Fingerprint: "artist x||song y", Artist: "Artist X", Title: "Song Y"}

	f := &countingFetch{text: "never gonna give you up"}

	first, fetched, err := d.GetOrFetchLyrics(ctx, entry, f.fetch, false)
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, data.LyricsFound, first.Status)
	assert.Equal(t, "never gonna give you up", first.Lyrics)

	second, fetched, err := d.GetOrFetchLyrics(ctx, entry, f.fetch, false)
	require.NoError(t, err)
	assert.False(t, fetched, "cached entry served without a collaborator call")
	assert.Equal(t, first.Lyrics, second.Lyrics)
	assert.Equal(t, 1, f.calls)
}

func TestGetOrFetchForce(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	entry := data.CatalogEntry{Fingerprint: "a||b", Artist: "A", Title: "B"}

	f := &countingFetch{text: "v1"}
	_, _, err := d.GetOrFetchLyrics(ctx, entry, f.fetch, false)
	require.NoError(t, err)

	f.text = "v2"
	refreshed, fetched, err := d.GetOrFetchLyrics(ctx, entry, f.fetch, true)
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, "v2", refreshed.Lyrics)
	assert.Equal(t, 2, f.calls)
}

func TestGetOrFetchNotFoundIsTerminal(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	entry := data.CatalogEntry{Fingerprint: "n||s", Artist: "N", Title: "S"}

	f := &countingFetch{err: fmt.Errorf("no dice: %w", lyrics.ErrNotFound)}

	first, _, err := d.GetOrFetchLyrics(ctx, entry, f.fetch, false)
	require.NoError(t, err)
	assert.Equal(t, data.LyricsNotFound, first.Status)

	_, fetched, err := d.GetOrFetchLyrics(ctx, entry, f.fetch, false)
	require.NoError(t, err)
	assert.False(t, fetched, "not_found is cached, not retried")
	assert.Equal(t, 1, f.calls)
}

func TestGetOrFetchErrorIsRetried(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	entry := data.CatalogEntry{Fingerprint: "e||s", Artist: "E", Title: "S"}

	f := &countingFetch{err: errors.New("connection refused")}

	first, _, err := d.GetOrFetchLyrics(ctx, entry, f.fetch, false)
	require.NoError(t, err, "collaborator failure is captured, not propagated")
	assert.Equal(t, data.LyricsError, first.Status)

	f.err = nil
	f.text = "finally"
	second, fetched, err := d.GetOrFetchLyrics(ctx, entry, f.fetch, false)
	require.NoError(t, err)
	assert.True(t, fetched, "error entries retry on the next run")
	assert.Equal(t, data.LyricsFound, second.Status)
	assert.Equal(t, "finally", second.Lyrics)
}

func TestCacheStats(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, d.PutLyrics(ctx, data.LyricsEntry{Fingerprint: "a", Status: data.LyricsFound, Lyrics: "la", FetchedAt: now}))
	require.NoError(t, d.PutLyrics(ctx, data.LyricsEntry{Fingerprint: "b", Status: data.LyricsFound, Instrumental: true, FetchedAt: now}))
	require.NoError(t, d.PutLyrics(ctx, data.LyricsEntry{Fingerprint: "c", Status: data.LyricsNotFound, FetchedAt: now}))
	require.NoError(t, d.PutLyrics(ctx, data.LyricsEntry{Fingerprint: "d", Status: data.LyricsError, FetchedAt: now}))

	stats, err := d.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Found)
	assert.Equal(t, 1, stats.Instrumental)
	assert.Equal(t, 1, stats.NotFound)
	assert.Equal(t, 1, stats.Errors)
}
