package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/db"
	"github.com/nwiltsie/recall/lastfm"
	"github.com/nwiltsie/recall/setflag"
	"github.com/nwiltsie/recall/spotify"
	"github.com/nwiltsie/recall/subcmd"
)

func load(ctx context.Context, db *db.DB, args []string) error {
	subcmd := subcmd.New("load", "fetch songs into the catalog\nspotify requires SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET\nlast.fm requires LASTFM_API_KEY and LASTFM_USERNAME")
	sources := setflag.New("spotify", "lastfm")
	subcmd.Var(sources, "source", "sources to load from: 'spotify', 'lastfm', or both (default both)")
	limit := subcmd.Int("limit", 0, "max songs to fetch per source, 0 for no limit")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	selected := sources.List()
	if len(selected) == 0 {
		selected = []string{"spotify", "lastfm"}
	}

	for _, source := range selected {
		var songs []data.Song
		var err error

		switch source {
		case "spotify":
			clientID, clientSecret := os.Getenv("SPOTIFY_CLIENT_ID"), os.Getenv("SPOTIFY_CLIENT_SECRET")
			if clientID == "" || clientSecret == "" {
				return fmt.Errorf("must set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET")
			}
			songs, err = spotify.New(clientID, clientSecret).FetchLikedSongs(ctx, *limit)

		case "lastfm":
			apiKey, username := os.Getenv("LASTFM_API_KEY"), os.Getenv("LASTFM_USERNAME")
			if apiKey == "" || username == "" {
				return fmt.Errorf("must set LASTFM_API_KEY and LASTFM_USERNAME")
			}
			songs, err = lastfm.New(apiKey, username).FetchScrobbles(ctx, *limit)
		}
		if err != nil {
			return fmt.Errorf("error fetching from %s: %w", source, err)
		}

		result, err := db.UpsertSongs(ctx, songs)
		if err != nil {
			return fmt.Errorf("error loading %d songs from %s: %w", len(songs), source, err)
		}
		log.Printf("%s: fetched %d; %d inserted, %d merged, %d skipped",
			source, len(songs), result.Inserted, result.Updated, result.Skipped)
	}

	return nil
}
