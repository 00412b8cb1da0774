package enrich_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/db"
	"github.com/nwiltsie/recall/enrich"
	"github.com/nwiltsie/recall/lyrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	calls int
	err   error
}

func (p *fakeProvider) Lookup(ctx context.Context, artist, title, album string) (*lyrics.Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &lyrics.Result{Lyrics: "la la " + title, Source: "lrclib"}, nil
}

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "recall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func makeEntries(n int) []data.CatalogEntry {
	entries := make([]data.CatalogEntry, n)
	for i := range entries {
		artist := fmt.Sprintf("Artist %d", i)
		title := fmt.Sprintf("Song %d", i)
		entries[i] = data.CatalogEntry{
			Position:    int64(i + 1),
			Fingerprint: data.Fingerprint(artist, title),
			Artist:      artist,
			Title:       title,
		}
	}
	return entries
}

func TestRunIsIdempotent(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	entries := makeEntries(3)
	p := &fakeProvider{}

	pairs, report, err := enrich.Run(ctx, d, p, entries, enrich.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Lookups)
	assert.Equal(t, 3, report.Found)
	require.Len(t, pairs, 3)

	pairs, report, err = enrich.Run(ctx, d, p, entries, enrich.Options{})
	require.NoError(t, err)
	assert.Zero(t, report.Lookups, "second run over an unchanged catalog is all cache")
	assert.Equal(t, 3, report.CacheHits)
	assert.Equal(t, 3, p.calls)
	require.Len(t, pairs, 3)
	for i, pair := range pairs {
		assert.Equal(t, entries[i].Fingerprint, pair.Entry.Fingerprint, "catalog order preserved")
		assert.Equal(t, data.LyricsFound, pair.Lyrics.Status)
	}
}

func TestLimitNewCapsLookups(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	entries := makeEntries(20)
	p := &fakeProvider{}

	pairs, report, err := enrich.Run(ctx, d, p, entries, enrich.Options{LimitNew: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Lookups)
	assert.Equal(t, 5, p.calls)
	assert.Len(t, pairs, 5, "entries past the lookup budget are left for the next run")

	// Next run serves the first five from cache and spends its budget on
	// the next five.
	pairs, report, err = enrich.Run(ctx, d, p, entries, enrich.Options{LimitNew: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Lookups)
	assert.Equal(t, 5, report.CacheHits)
	assert.Len(t, pairs, 10)
	assert.Equal(t, entries[0].Fingerprint, pairs[0].Entry.Fingerprint)
	assert.Equal(t, entries[9].Fingerprint, pairs[9].Entry.Fingerprint)
}

func TestLimitTotal(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	entries := makeEntries(10)
	p := &fakeProvider{}

	pairs, report, err := enrich.Run(ctx, d, p, entries, enrich.Options{LimitTotal: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Processed)
	require.Len(t, pairs, 4)
	assert.Equal(t, entries[3].Fingerprint, pairs[3].Entry.Fingerprint)
}

func TestCollaboratorFailureIsCaptured(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	entries := makeEntries(2)
	p := &fakeProvider{err: errors.New("connection refused")}

	pairs, report, err := enrich.Run(ctx, d, p, entries, enrich.Options{})
	require.NoError(t, err, "collaborator failure must not abort the batch")
	assert.Equal(t, 2, report.Errored)
	require.Len(t, pairs, 2)
	assert.Equal(t, data.LyricsError, pairs[0].Lyrics.Status)

	// Error entries retry once the collaborator recovers.
	p.err = nil
	_, report, err = enrich.Run(ctx, d, p, entries, enrich.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Lookups)
	assert.Equal(t, 2, report.Found)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	entries := makeEntries(1)
	p := &fakeProvider{err: fmt.Errorf("no match: %w", lyrics.ErrNotFound)}

	_, report, err := enrich.Run(ctx, d, p, entries, enrich.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.NotFound)

	_, report, err = enrich.Run(ctx, d, p, entries, enrich.Options{})
	require.NoError(t, err)
	assert.Zero(t, report.Lookups)
	assert.Equal(t, 1, p.calls)
}
