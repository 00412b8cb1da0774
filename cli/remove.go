package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/db"
	"github.com/nwiltsie/recall/subcmd"
	"github.com/nwiltsie/recall/vecstore"
)

func remove(ctx context.Context, db *db.DB, store *vecstore.Store, args []string) error {
	subcmd := subcmd.New("remove", "remove one song from the catalog, lyrics cache, and index")
	subcmd.SetArg("song", "string", "the song to remove, as 'artist - title' (required)")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	arg := strings.Join(subcmd.Args(), " ")
	fingerprint := arg
	if parts := strings.SplitN(arg, " - ", 2); len(parts) == 2 {
		fingerprint = data.Fingerprint(parts[0], parts[1])
	}

	entry, err := db.GetEntry(ctx, fingerprint)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("no catalog entry for '%s'", arg)
	}

	if err := db.RemoveEntry(ctx, fingerprint); err != nil {
		return err
	}
	if err := store.Delete(ctx, fingerprint); err != nil {
		return err
	}

	log.Printf("removed '%s - %s'", entry.Artist, entry.Title)
	return nil
}
