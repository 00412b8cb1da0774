package main

import (
	"context"
	"fmt"
	"log"

	"github.com/nwiltsie/recall/db"
	searcher "github.com/nwiltsie/recall/search"
	"github.com/nwiltsie/recall/server"
	"github.com/nwiltsie/recall/subcmd"
	"github.com/nwiltsie/recall/vecstore"
)

func serve(ctx context.Context, db *db.DB, store *vecstore.Store, args []string) error {
	subcmd := subcmd.New("serve", "serve search and status over http")
	var (
		port = subcmd.Int("port", 9999, "http port")
	)
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	engine := searcher.New(db, store, newEmbedder())

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("listening on %s", addr)
	return server.Run(ctx, db, store, engine, addr)
}
