package vecstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/vecstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *vecstore.Store {
	t.Helper()
	s, err := vecstore.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertReplacesNotAppends(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "a||b", data.Vector{1, 0}, "old text"))
	require.NoError(t, s.Upsert(ctx, "a||b", data.Vector{0, 1}, "new text"))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := s.Query(ctx, data.Vector{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new text", matches[0].Document)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
}

func TestQueryRanksByCosine(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "close", data.Vector{1, 0.1}, ""))
	require.NoError(t, s.Upsert(ctx, "far", data.Vector{0, 1}, ""))
	require.NoError(t, s.Upsert(ctx, "exact", data.Vector{1, 0}, ""))

	matches, err := s.Query(ctx, data.Vector{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].Fingerprint)
	assert.Equal(t, "close", matches[1].Fingerprint)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestQueryKeepsCutoffTiesTogether(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "exact", data.Vector{1, 0}, ""))
	require.NoError(t, s.Upsert(ctx, "tied a", data.Vector{1, 1}, ""))
	require.NoError(t, s.Upsert(ctx, "tied b", data.Vector{1, 1}, ""))

	matches, err := s.Query(ctx, data.Vector{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 3, "equal scores at the cutoff are not split")
	assert.Equal(t, "exact", matches[0].Fingerprint)
	assert.Equal(t, matches[1].Score, matches[2].Score)
}

func TestQueryEmptyIndex(t *testing.T) {
	s := openTestStore(t)
	matches, err := s.Query(context.Background(), data.Vector{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMetaRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta, "no meta before first index build")

	require.NoError(t, s.SetMeta(ctx, "token-hash-v1-256", 256))
	meta, err = s.Meta(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "token-hash-v1-256", meta.Model)
	assert.Equal(t, 256, meta.Dimensions)
	assert.False(t, meta.BuiltAt.IsZero())

	require.NoError(t, s.SetMeta(ctx, "text-embedding-3-small", 1536))
	meta, err = s.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", meta.Model)
}

func TestReset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "a||b", data.Vector{1}, ""))
	require.NoError(t, s.SetMeta(ctx, "m", 1))
	require.NoError(t, s.Reset(ctx))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta)
}
