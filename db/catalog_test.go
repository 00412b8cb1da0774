package db_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "recall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestUpsertDedupIdempotence(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	scrobble := data.Song{
		Source:    data.SourceLastFM,
		Title:     "Song Y",
		Artist:    "Artist X",
		PlayCount: 1,
	}

	result, err := d.UpsertSongs(ctx, []data.Song{scrobble, scrobble, scrobble})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 2, result.Updated)

	entries, err := d.LoadCatalog(ctx, db.SourceAll)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].PlayCount)
	assert.Equal(t, "artist x||song y", entries[0].Fingerprint)
}

func TestUpsertMergesAcrossSources(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	_, err := d.UpsertSongs(ctx, []data.Song{{
		Source:    data.SourceLastFM,
		Title:     "Jóga",
		Artist:    "Björk",
		PlayCount: 2,
	}})
	require.NoError(t, err)

	_, err = d.UpsertSongs(ctx, []data.Song{{
		Source:   data.SourceSpotify,
		Title:    "joga",
		Artist:   "bjork",
		Album:    "Homogenic",
		SourceID: "abc123",
	}})
	require.NoError(t, err)

	entries, err := d.LoadCatalog(ctx, db.SourceAll)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "lastfm,spotify", entry.Sources)
	assert.Equal(t, int64(2), entry.PlayCount)
	assert.Equal(t, "Björk", entry.Artist, "first-seen casing survives the merge")
	assert.Equal(t, "Homogenic", entry.Album)

	spotifyOnly, err := d.LoadCatalog(ctx, "spotify")
	require.NoError(t, err)
	assert.Len(t, spotifyOnly, 1)

	stats, err := d.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.PerSource["spotify"])
	assert.Equal(t, 1, stats.PerSource["lastfm"])
}

func TestUpsertSkipsEmptyTitles(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	result, err := d.UpsertSongs(ctx, []data.Song{
		{Source: data.SourceSpotify, Title: "...", Artist: "Someone"},
		{Source: data.SourceSpotify, Title: "Fine", Artist: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 2, result.Skipped)
}

func TestCatalogOrderIsInsertionOrder(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	_, err := d.UpsertSongs(ctx, []data.Song{
		{Source: data.SourceSpotify, Title: "First", Artist: "A"},
		{Source: data.SourceSpotify, Title: "Second", Artist: "B"},
		{Source: data.SourceSpotify, Title: "Third", Artist: "C"},
	})
	require.NoError(t, err)

	entries, err := d.LoadCatalog(ctx, db.SourceAll)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Position < entries[1].Position)
	assert.True(t, entries[1].Position < entries[2].Position)
	assert.Equal(t, "First", entries[0].Title)
}

func TestRemoveEntry(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	_, err := d.UpsertSongs(ctx, []data.Song{{Source: data.SourceSpotify, Title: "Gone", Artist: "Soon"}})
	require.NoError(t, err)
	fingerprint := data.Fingerprint("Soon", "Gone")

	require.NoError(t, d.RemoveEntry(ctx, fingerprint))

	entry, err := d.GetEntry(ctx, fingerprint)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestOpenCorruptFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "corrupt.db")
	require.NoError(t, os.WriteFile(filename, []byte("this is not a sqlite file at all"), 0666))

	_, err := db.Open(filename)
	assert.ErrorIs(t, err, db.ErrCatalogLoad)
}
