package lyrics_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nwiltsie/recall/lyrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *lyrics.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := lyrics.New(0)
	c.SetAPIURL(srv.URL)
	return c
}

func TestLookupFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/get", req.URL.Path)
		assert.Equal(t, "Never Gonna Give You Up", req.URL.Query().Get("track_name"))
		assert.Equal(t, "Rick Astley", req.URL.Query().Get("artist_name"))
		fmt.Fprint(w, `{
			"id": 1,
			"trackName": "Never Gonna Give You Up",
			"artistName": "Rick Astley",
			"instrumental": false,
			"plainLyrics": "Never gonna give you up\nNever gonna let you down",
			"syncedLyrics": "[00:00.00] Never gonna give you up"
		}`)
	})

	result, err := c.Lookup(context.Background(), "Rick Astley", "Never Gonna Give You Up", "")
	require.NoError(t, err)
	assert.Contains(t, result.Lyrics, "give you up")
	assert.Equal(t, "lrclib", result.Source)
	assert.False(t, result.Instrumental)
}

func TestLookupInstrumental(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"instrumental": true, "plainLyrics": ""}`)
	})

	result, err := c.Lookup(context.Background(), "Mike Oldfield", "Tubular Bells", "")
	require.NoError(t, err)
	assert.True(t, result.Instrumental)
	assert.Empty(t, result.Lyrics)
}

func TestLookupNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	})

	_, err := c.Lookup(context.Background(), "Nobody", "No Song", "")
	assert.ErrorIs(t, err, lyrics.ErrNotFound)
}

func TestLookupServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Lookup(context.Background(), "Anyone", "Anything", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, lyrics.ErrNotFound, "transport errors are not terminal")
}

func TestFallbackConsultedOn404(t *testing.T) {
	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/rick-astley/never-gonna-give-you-up", req.URL.Path)
		w.Header().Set("Content-type", "text/html")
		fmt.Fprint(w, `<html><body><div class="lyrics">We're no strangers to love</div></body></html>`)
	}))
	defer html.Close()

	c := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	})
	c.Fallback = lyrics.NewHTMLProvider(html.URL+"/%s/%s", "div.lyrics")

	result, err := c.Lookup(context.Background(), "Rick Astley", "Never Gonna Give You Up", "")
	require.NoError(t, err)
	assert.Equal(t, "We're no strangers to love", result.Lyrics)
	assert.Equal(t, "scrape", result.Source)
}

func TestLookupHonorsTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{}`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Lookup(ctx, "Slow", "Song", "")
	assert.Error(t, err)
}
