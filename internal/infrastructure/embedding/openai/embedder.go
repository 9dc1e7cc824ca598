package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/news-retriever/internal/infrastructure/resilience"
	"github.com/kirillkom/news-retriever/internal/infrastructure/upstream"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"

	maxBatch = 100
)

// Embedder talks to an OpenAI-compatible /embeddings endpoint.
type Embedder struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewEmbedder(apiKey, model, baseURL string, executor *resilience.Executor) (*Embedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai embedder: api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Embedder{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxBatch {
		batch := texts[i:min(i+maxBatch, len(texts))]
		vectors, err := resilience.Do(ctx, e.executor, "openai.embed", func(ctx context.Context) ([][]float32, error) {
			return e.embedBatch(ctx, batch)
		}, upstream.Classify)
		if err != nil {
			return nil, upstream.AsTemporary("openai embed", err)
		}
		all = append(all, vectors...)
	}
	return all, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var parsed embeddingResponse
	err := upstream.DoJSON(ctx, e.httpClient, "openai", "embeddings", upstream.Request{
		Method: http.MethodPost,
		URL:    e.baseURL + "/embeddings",
		Header: http.Header{"Authorization": {"Bearer " + e.apiKey}},
		Body:   embeddingRequest{Input: texts, Model: e.model},
	}, &parsed)
	if err != nil {
		return nil, err
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openai embeddings error: %s", parsed.Error.Message)
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return out, nil
}
