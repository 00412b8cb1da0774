// Package server exposes search over HTTP for local clients like editor
// plugins and shell scripts.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/nwiltsie/recall/db"
	"github.com/nwiltsie/recall/search"
	"github.com/nwiltsie/recall/vecstore"
)

// Run serves until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, d *db.DB, store *vecstore.Store, engine *search.Engine, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", handleSearch(engine))
	mux.HandleFunc("GET /status", handleStatus(d, store))

	srv := http.Server{Addr: addr, Handler: mux}

	errs := make(chan error)
	go func() { errs <- srv.ListenAndServe() }()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		if err := srv.Shutdown(context.Background()); err != nil {
			return err
		}
		err := <-errs
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func handleSearch(engine *search.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		query := req.URL.Query().Get("q")
		source := req.URL.Query().Get("source")

		topK := 0
		if n := req.URL.Query().Get("n"); n != "" {
			parsed, err := strconv.Atoi(n)
			if err != nil {
				http.Error(w, "n must be an integer", http.StatusBadRequest)
				return
			}
			topK = parsed
		}

		results, err := engine.Search(req.Context(), query, topK, source)
		switch {
		case errors.Is(err, search.ErrInvalidQuery):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case errors.Is(err, search.ErrModelMismatch):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			log.Printf("search error: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if results == nil {
			results = []search.Result{}
		}
		writeJSON(w, map[string]any{"results": results})
	}
}

func handleStatus(d *db.DB, store *vecstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		catalog, err := d.Stats(ctx)
		if err != nil {
			log.Printf("status error: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		cache, err := d.CacheStats(ctx)
		if err != nil {
			log.Printf("status error: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		indexed, err := store.Count(ctx)
		if err != nil {
			log.Printf("status error: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		meta, err := store.Meta(ctx)
		if err != nil {
			log.Printf("status error: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		status := map[string]any{
			"catalog": map[string]any{
				"total":      catalog.Total,
				"per_source": catalog.PerSource,
			},
			"lyrics": map[string]any{
				"total":        cache.Total,
				"found":        cache.Found,
				"instrumental": cache.Instrumental,
				"not_found":    cache.NotFound,
				"errors":       cache.Errors,
			},
			"index": map[string]any{
				"documents": indexed,
			},
		}
		if meta != nil {
			status["index"].(map[string]any)["model"] = meta.Model
			status["index"].(map[string]any)["dimensions"] = meta.Dimensions
			status["index"].(map[string]any)["built_at"] = meta.BuiltAt
		}
		writeJSON(w, status)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error writing response: %v", err)
	}
}
