// Package lastfm fetches a user's scrobble history via the
// user.getRecentTracks API.
package lastfm

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/request"
)

const pageSize = 200 // API max per request

func New(apiKey, username string) *Client {
	return &Client{
		apiURL:   "https://ws.audioscrobbler.com/2.0/",
		apiKey:   apiKey,
		username: username,
		http:     &http.Client{Timeout: 30 * time.Second},
		delay:    time.Second / 4,
	}
}

type Client struct {
	apiURL   string
	apiKey   string
	username string
	http     *http.Client
	delay    time.Duration
}

// SetAPIURL points the client at a different API endpoint.
func (lfm *Client) SetAPIURL(apiURL string) { lfm.apiURL = apiURL }

// FetchScrobbles pages through the user's listening history, newest first,
// and normalizes each scrobble into a Song with PlayCount 1; the catalog
// upsert merges repeat plays of the same work into a summed play count.
// Now-playing rows have no timestamp and are skipped. limit 0 fetches
// everything.
func (lfm *Client) FetchScrobbles(ctx context.Context, limit int) ([]data.Song, error) {
	var songs []data.Song

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := lfm.fetchRecentTracksPage(ctx, page)
		if err != nil {
			return nil, err
		}

		tracks, err := resp.tracks()
		if err != nil {
			return nil, err
		}
		if len(tracks) == 0 {
			break
		}

		for _, track := range tracks {
			if track.Attr.NowPlaying == "true" {
				continue
			}
			songs = append(songs, normalizeScrobble(track))
			if limit > 0 && len(songs) >= limit {
				return songs[:limit], nil
			}
		}

		totalPages, _ := strconv.Atoi(resp.RecentTracks.Attr.TotalPages)
		if page >= totalPages {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lfm.delay):
		}
	}

	return songs, nil
}

// TotalScrobbles reports how many scrobbles the account has, for progress
// output before a long fetch.
func (lfm *Client) TotalScrobbles(ctx context.Context) (int, error) {
	resp, err := lfm.fetchPage(ctx, 1, 1)
	if err != nil {
		return 0, err
	}
	total, err := strconv.Atoi(resp.RecentTracks.Attr.Total)
	if err != nil {
		return 0, fmt.Errorf("error parsing scrobble total '%s': %w", resp.RecentTracks.Attr.Total, err)
	}
	return total, nil
}

func normalizeScrobble(track scrobbledTrack) data.Song {
	song := data.Song{
		Source:    data.SourceLastFM,
		Title:     track.Name,
		Artist:    track.Artist.Text,
		Album:     track.Album.Text,
		SourceID:  track.MBID,
		PlayCount: 1,
	}
	if uts, err := strconv.ParseInt(track.Date.UTS, 10, 64); err == nil {
		song.LastPlayedAt = sql.NullTime{Time: time.Unix(uts, 0).UTC(), Valid: true}
	}
	return song
}

type scrobbledTrack struct {
	Name string `json:"name"`
	MBID string `json:"mbid"`

	Artist struct {
		Text string `json:"#text"`
	} `json:"artist"`
	Album struct {
		Text string `json:"#text"`
	} `json:"album"`
	Date struct {
		UTS  string `json:"uts"`
		Text string `json:"#text"`
	} `json:"date"`
	Attr struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
}

type recentTracksResponse struct {
	RecentTracks struct {
		// The API returns an object instead of a list when the page
		// holds a single track.
		Track json.RawMessage `json:"track"`
		Attr  struct {
			Total      string `json:"total"`
			TotalPages string `json:"totalPages"`
			Page       string `json:"page"`
		} `json:"@attr"`
	} `json:"recenttracks"`

	Error   int    `json:"error"`
	Message string `json:"message"`
}

func (resp *recentTracksResponse) tracks() ([]scrobbledTrack, error) {
	raw := resp.RecentTracks.Track
	if len(raw) == 0 {
		return nil, nil
	}
	var list []scrobbledTrack
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single scrobbledTrack
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("track decode error: %w", err)
	}
	return []scrobbledTrack{single}, nil
}

func (lfm *Client) fetchRecentTracksPage(ctx context.Context, page int) (*recentTracksResponse, error) {
	return lfm.fetchPage(ctx, page, pageSize)
}

func (lfm *Client) fetchPage(ctx context.Context, page, perPage int) (*recentTracksResponse, error) {
	query := url.Values{}
	query.Set("method", "user.getrecenttracks")
	query.Set("user", lfm.username)
	query.Set("api_key", lfm.apiKey)
	query.Set("format", "json")
	query.Set("limit", fmt.Sprintf("%d", perPage))
	query.Set("page", fmt.Sprintf("%d", page))

	req, err := http.NewRequestWithContext(ctx, "GET", lfm.apiURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}

	resp, err := lfm.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching scrobbles page %d: %w", page, err)
	}
	defer resp.Body.Close()
	if err := request.Error(resp); err != nil {
		return nil, fmt.Errorf("scrobbles fetch error: %w", err)
	}

	var results recentTracksResponse
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&results); err != nil {
		return nil, fmt.Errorf("scrobbles decode error: %w", err)
	}
	if results.Error != 0 {
		return nil, fmt.Errorf("lastfm api error %d: %s", results.Error, results.Message)
	}

	return &results, nil
}
