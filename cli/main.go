// recall builds a personal music catalog in a sqlite3 database file and
// answers natural-language searches over it.
//
// songs come from spotify liked tracks and last.fm scrobbles, lyrics from
// lrclib, and search runs over embeddings stored in a second database file.
// see db/schema.sql and vecstore/schema.sql for info about the files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/nwiltsie/recall/db"
	"github.com/nwiltsie/recall/sigctx"
	"github.com/nwiltsie/recall/vecstore"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, flag.ErrHelp) {
		panic(err)
	}
}

var usage = strings.TrimSpace(`
usage: recall $cmd
valid $cmd are 'load', 'enrich', 'index', 'search', 'status', 'serve', 'remove'
for help: recall $cmd -help
`)

func run() error {
	ctx := sigctx.New()

	if len(os.Args) < 2 {
		return fmt.Errorf(usage)
	}
	cmd, args := os.Args[1], os.Args[2:]

	db, err := db.Open("recall.db")
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := vecstore.Open("index.db")
	if err != nil {
		return err
	}
	defer store.Close()

	switch cmd {
	case "load":
		return load(ctx, db, args)

	case "enrich":
		return enrich(ctx, db, args)

	case "index":
		return index(ctx, db, store, args)

	case "search":
		return search(ctx, db, store, args)

	case "status":
		return status(ctx, db, store, args)

	case "serve":
		return serve(ctx, db, store, args)

	case "remove":
		return remove(ctx, db, store, args)

	default:
		return fmt.Errorf("unknown cmd: '%s'\n%s", cmd, usage)
	}
}
