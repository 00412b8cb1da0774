// Package spotify fetches the user's saved tracks. Auth is the
// client-credentials flow; token refresh and 429 backoff are handled here
// so callers just see pages of songs.
package spotify

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/request"
)

const nextReqFilename = "spotify-next-req"

const pageSize = 50

// New creates a new Spotify client, with the given clientID and clientSecret.
func New(clientID, clientSecret string) *Client {
	var nextReqAt time.Time
	if _, err := os.Stat(nextReqFilename); !errors.Is(err, os.ErrNotExist) {
		bs, err := os.ReadFile(nextReqFilename)
		if err != nil {
			panic(err)
		}
		nextReqAt, err = time.Parse(time.UnixDate, string(bs))
		if err != nil {
			panic(err)
		}
	}

	client := &Client{
		apiURL:       "https://api.spotify.com/v1",
		accountsURL:  "https://accounts.spotify.com",
		clientID:     clientID,
		clientSecret: clientSecret,
		nextReqAtPtr: atomic.Pointer[time.Time]{},
		delay:        time.Second / 2,
	}
	client.setNextReqAt(nextReqAt)
	return client
}

type Client struct {
	mu sync.Mutex

	apiURL      string
	accountsURL string

	clientID     string
	clientSecret string

	nextReqAtPtr atomic.Pointer[time.Time]
	delay        time.Duration

	accessToken string
	expiresAt   time.Time
}

// FetchLikedSongs pages through the user's saved tracks and normalizes each
// into a Song. limit 0 fetches everything. The conversion is total:
// malformed items come back with whatever fields they had, and records that
// normalize to an empty title or artist are dropped by the catalog upsert
// rather than failing here.
func (spo *Client) FetchLikedSongs(ctx context.Context, limit int) ([]data.Song, error) {
	var songs []data.Song

	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := spo.fetchSavedTracksPage(ctx, offset)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			songs = append(songs, normalizeSavedTrack(item))
			if limit > 0 && len(songs) >= limit {
				return songs[:limit], nil
			}
		}

		if len(page.Items) < pageSize || page.Next == "" {
			break
		}
	}

	return songs, nil
}

func normalizeSavedTrack(item savedTrackItem) data.Song {
	song := data.Song{
		Source:   data.SourceSpotify,
		Title:    item.Track.Name,
		Album:    item.Track.Album.Name,
		SourceID: item.Track.ID,
	}
	if len(item.Track.Artists) > 0 {
		song.Artist = item.Track.Artists[0].Name
	}
	if addedAt, err := time.Parse(time.RFC3339, item.AddedAt); err == nil {
		song.AddedAt = sql.NullTime{Time: addedAt, Valid: true}
	}
	return song
}

type savedTrackItem struct {
	AddedAt string `json:"added_at"`
	Track   struct {
		ID      string
		Name    string
		Artists []struct {
			ID   string
			Name string
		}
		Album struct {
			Name string
		}
		DurationMs int64 `json:"duration_ms"`
	}
}

type savedTracksPage struct {
	Limit  int
	Offset int
	Total  int

	Next     string
	Previous string

	Items []savedTrackItem
}

func (spo *Client) fetchSavedTracksPage(ctx context.Context, offset int) (*savedTracksPage, error) {
	query := url.Values{}
	query.Add("limit", fmt.Sprintf("%d", pageSize))
	query.Add("offset", fmt.Sprintf("%d", offset))

	resp, err := spo.get(ctx, spo.apiURL+"/me/tracks", query)
	if err != nil {
		return nil, err
	}

	defer resp.Close()
	var results savedTracksPage
	dec := json.NewDecoder(resp)
	if err := dec.Decode(&results); err != nil {
		return nil, fmt.Errorf("saved tracks decode error: %w", err)
	}

	return &results, nil
}

func (spo *Client) nextReqAt() time.Time {
	return *spo.nextReqAtPtr.Load()
}

func (spo *Client) setNextReqAt(to time.Time) {
	spo.nextReqAtPtr.Store(&to)
}

func (spo *Client) get(ctx context.Context, baseURL string, query url.Values) (io.ReadCloser, error) {
	spo.mu.Lock()
	defer spo.mu.Unlock()

retry:
	nextReqAt := spo.nextReqAt()
	if !nextReqAt.IsZero() {
		now := time.Now()
		if nextReqAt.Sub(now) > time.Second {
			log.Printf("next request in %s at %s", nextReqAt.Sub(now).Truncate(time.Second), nextReqAt.Format(time.StampMilli))
		}
	wait:
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Until(nextReqAt)):
			break wait
		}
		if err := os.Remove(nextReqFilename); err != nil && !errors.Is(err, os.ErrNotExist) {
			panic(err)
		}
	}

	url, _ := url.Parse(baseURL)
	url.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, "GET", url.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}

	token, err := spo.token()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	if resp.StatusCode == 429 {
		spo.delay = 2 * spo.delay
		var nextReqAt time.Time
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter == "" {
			log.Printf("no retry-after header on 429; retrying in 1 minute")
			nextReqAt = time.Now().Add(time.Minute)
		} else {
			seconds, err := strconv.ParseInt(retryAfter, 10, 64)
			if err != nil {
				return nil, err
			}
			waitTime := time.Duration(seconds)*time.Second + time.Second
			log.Printf("429; retrying in %s", waitTime)
			nextReqAt = time.Now().Add(waitTime)
		}
		spo.setNextReqAt(nextReqAt)
		if err := os.WriteFile(nextReqFilename, []byte(nextReqAt.Format(time.UnixDate)), 0666); err != nil {
			return nil, err
		}
		goto retry
	}
	if err := request.Error(resp); err != nil {
		return nil, fmt.Errorf("fetch error: %w", err)
	}

	spo.setNextReqAt(time.Now().Add(spo.delay))

	return resp.Body, nil
}

type tokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (spo *Client) token() (string, error) {
	if spo.accessToken == "" || spo.expiresAt.Before(time.Now().Add(time.Second)) {
		if err := spo.fetchToken(); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Bearer %s", spo.accessToken), nil
}

func (spo *Client) fetchToken() error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	url := spo.accountsURL + "/api/token"
	req, err := http.NewRequest("POST", url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("token request error: %w", err)
	}
	up := fmt.Sprintf("%s:%s", spo.clientID, spo.clientSecret)
	credential := base64.StdEncoding.EncodeToString([]byte(up))
	req.Header.Set("Authorization", fmt.Sprintf("Basic %s", credential))
	req.Header.Set("Content-type", "application/x-www-form-urlencoded")

	requestAt := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request error: %w", err)
	}
	defer resp.Body.Close()
	if err := request.Error(resp); err != nil {
		return fmt.Errorf("token fetch error: %w", err)
	}

	var result tokenResult
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&result); err != nil {
		return fmt.Errorf("token decode error: %w", err)
	}

	spo.accessToken = result.AccessToken
	spo.expiresAt = requestAt.Add(time.Duration(result.ExpiresIn) * time.Second)

	return nil
}
