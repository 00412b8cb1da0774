package main

import (
	"os"

	"github.com/nwiltsie/recall/embed"
)

const hasherDims = 256

// newEmbedder picks the embedding backend from the environment. With
// RECALL_EMBED_URL set, embeddings come from that openai-compatible
// endpoint; otherwise the deterministic local hasher runs entirely offline.
// Either way, vectors are cached on disk keyed by model and text, so
// re-indexing an unchanged library does no embedding work.
func newEmbedder() embed.Embedder {
	var e embed.Embedder
	if url := os.Getenv("RECALL_EMBED_URL"); url != "" {
		model := os.Getenv("RECALL_EMBED_MODEL")
		if model == "" {
			model = "text-embedding-3-small"
		}
		e = embed.NewHTTP(url, model, os.Getenv("RECALL_EMBED_API_KEY"))
	} else {
		e = embed.NewHasher(hasherDims)
	}
	return embed.WithCache(e, embed.NewCache("embeddings", "emb-"))
}
