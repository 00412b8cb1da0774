package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/request"
)

// NewHTTP returns an embedder backed by an OpenAI-compatible /embeddings
// endpoint. baseURL is the API root, like "https://api.openai.com/v1" or a
// local server's "http://localhost:11434/v1".
func NewHTTP(baseURL, model, apiKey string) *HTTPEmbedder {
	return &HTTPEmbedder{
		baseURL: baseURL,
		model:   model,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type HTTPEmbedder struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
}

func (e *HTTPEmbedder) Model() string { return e.model }

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) (data.Vector, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]data.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingsRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embeddings encode error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	req.Header.Set("Content-type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error embedding %d texts: %w", len(texts), err)
	}
	defer resp.Body.Close()
	if err := request.Error(resp); err != nil {
		return nil, fmt.Errorf("embeddings fetch error: %w", err)
	}

	var results embeddingsResponse
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&results); err != nil {
		return nil, fmt.Errorf("embeddings decode error: %w", err)
	}
	if len(results.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings but got %d", len(texts), len(results.Data))
	}

	sort.Slice(results.Data, func(i, j int) bool {
		return results.Data[i].Index < results.Data[j].Index
	})

	vecs := make([]data.Vector, len(results.Data))
	for i, item := range results.Data {
		vecs[i] = data.Vector(item.Embedding)
	}
	return vecs, nil
}
