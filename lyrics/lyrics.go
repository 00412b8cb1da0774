// Package lyrics looks up song lyrics from LRCLIB, a free open lyrics
// database with no API key, with an optional HTML provider as a fallback
// for songs LRCLIB doesn't know.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nwiltsie/recall/limiter"
	"github.com/nwiltsie/recall/request"
)

// ErrNotFound means the collaborator has no lyrics for the song. It is a
// terminal outcome, cached as not_found; transport errors are not.
var ErrNotFound = errors.New("lyrics not found")

const lrclibAPIURL = "https://lrclib.net/api"

const userAgent = "recall/0.1.0 (https://github.com/nwiltsie/recall)"

// Result is one successful lyrics lookup.
type Result struct {
	Lyrics       string
	Synced       string
	Instrumental bool

	// Provider that answered, like "lrclib".
	Source string
}

// Provider is the narrow interface the enrichment pipeline consumes.
type Provider interface {
	Lookup(ctx context.Context, artist, title, album string) (*Result, error)
}

// New creates an LRCLIB client. LRCLIB asks clients to identify themselves
// with a User-Agent and to be polite; delay is the inter-request gap.
func New(delay time.Duration) *Client {
	lim := limiter.New("lyrics-next-req", delay)
	if err := lim.Load(); err != nil {
		lim = limiter.New("lyrics-next-req", delay)
	}
	return &Client{
		apiURL: lrclibAPIURL,
		http:   &http.Client{Timeout: 30 * time.Second},
		lim:    lim,
	}
}

type Client struct {
	apiURL string
	http   *http.Client
	lim    *limiter.Limiter

	// Fallback is consulted when LRCLIB has no match. Optional.
	Fallback Provider
}

// SetAPIURL points the client at a different LRCLIB-compatible endpoint.
func (c *Client) SetAPIURL(apiURL string) { c.apiURL = apiURL }

type lrclibTrack struct {
	ID           int64  `json:"id"`
	TrackName    string `json:"trackName"`
	ArtistName   string `json:"artistName"`
	AlbumName    string `json:"albumName"`
	Instrumental bool   `json:"instrumental"`
	PlainLyrics  string `json:"plainLyrics"`
	SyncedLyrics string `json:"syncedLyrics"`
}

// Lookup fetches lyrics for one song via LRCLIB's exact-match endpoint. A
// 404 means LRCLIB has no such track; the fallback provider, if set, gets a
// chance before the lookup settles on ErrNotFound.
func (c *Client) Lookup(ctx context.Context, artist, title, album string) (*Result, error) {
	if err := c.lim.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("track_name", title)
	query.Set("artist_name", artist)
	if album != "" {
		query.Set("album_name", album)
	}

	u := fmt.Sprintf("%s/get?%s", c.apiURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching lyrics for '%s - %s': %w", artist, title, err)
	}
	defer resp.Body.Close()

	c.lim.Delay()

	if resp.StatusCode == http.StatusNotFound {
		return c.fallback(ctx, artist, title, album)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if err := c.lim.Backoff(resp.Header.Get("Retry-After")); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("rate limited fetching lyrics for '%s - %s'", artist, title)
	}
	if err := request.Error(resp); err != nil {
		return nil, fmt.Errorf("lyrics fetch error: %w", err)
	}

	var track lrclibTrack
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&track); err != nil {
		return nil, fmt.Errorf("lyrics decode error: %w", err)
	}

	if track.PlainLyrics == "" && !track.Instrumental {
		return c.fallback(ctx, artist, title, album)
	}

	return &Result{
		Lyrics:       track.PlainLyrics,
		Synced:       track.SyncedLyrics,
		Instrumental: track.Instrumental,
		Source:       "lrclib",
	}, nil
}

func (c *Client) fallback(ctx context.Context, artist, title, album string) (*Result, error) {
	if c.Fallback == nil {
		return nil, fmt.Errorf("no lyrics for '%s - %s': %w", artist, title, ErrNotFound)
	}
	return c.Fallback.Lookup(ctx, artist, title, album)
}
