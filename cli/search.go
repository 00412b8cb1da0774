package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/nwiltsie/recall/db"
	searcher "github.com/nwiltsie/recall/search"
	"github.com/nwiltsie/recall/subcmd"
	"github.com/nwiltsie/recall/vecstore"
)

func search(ctx context.Context, db *db.DB, store *vecstore.Store, args []string) error {
	subcmd := subcmd.New("search", "search the catalog by meaning, not exact words")
	subcmd.SetArg("query", "string", "natural-language query (required)")
	count := subcmd.Int("n", searcher.DefaultTopK, "number of results to return")
	source := subcmd.String("source", "all", "restrict results to one source")
	verbose := subcmd.Bool("v", false, "include a lyrics snippet per result")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	query := strings.Join(subcmd.Args(), " ")

	engine := searcher.New(db, store, newEmbedder())
	results, err := engine.Search(ctx, query, *count, *source)
	if err != nil {
		return fmt.Errorf("error in search for '%s': %w", query, err)
	}

	if len(results) == 0 {
		fmt.Printf("no results for '%s'\n", query)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	header := []string{"score", "track", "artist", "album", "sources"}
	if *verbose {
		header = append(header, "snippet")
	}
	fmt.Fprintf(tw, strings.Join(header, "\t")+"\n")

	for _, result := range results {
		row := []string{
			fmt.Sprintf("%.1f%%", 100*result.Score),
			result.Title,
			result.Artist,
			result.Album,
			strings.Join(result.Sources, ", "),
		}
		if *verbose {
			row = append(row, result.Snippet)
		}
		fmt.Fprintf(tw, strings.Join(row, "\t")+"\n")
	}

	tw.Flush()

	return nil
}
