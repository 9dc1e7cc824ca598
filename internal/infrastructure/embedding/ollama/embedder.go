package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/news-retriever/internal/infrastructure/resilience"
	"github.com/kirillkom/news-retriever/internal/infrastructure/upstream"
)

// Embedder calls the Ollama /api/embed endpoint.
type Embedder struct {
	baseURL    string
	model      string
	keepAlive  string
	httpClient *http.Client
	executor   *resilience.Executor
}

type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	Truncate  bool     `json:"truncate"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type Option func(*Embedder)

func WithExecutor(executor *resilience.Executor) Option {
	return func(e *Embedder) { e.executor = executor }
}

func WithHTTPClient(client *http.Client) Option {
	return func(e *Embedder) { e.httpClient = client }
}

// WithKeepAlive controls how long Ollama keeps the model loaded after a
// call, e.g. "10m". Empty uses the server default.
func WithKeepAlive(d string) Option {
	return func(e *Embedder) { e.keepAlive = d }
}

func NewEmbedder(baseURL, model string, opts ...Option) *Embedder {
	e := &Embedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := upstream.Request{
		Method: http.MethodPost,
		URL:    e.baseURL + "/api/embed",
		Body: embedRequest{
			Model:     e.model,
			Input:     texts,
			Truncate:  true,
			KeepAlive: e.keepAlive,
		},
	}
	vectors, err := resilience.Do(ctx, e.executor, "ollama.embed", func(ctx context.Context) ([][]float32, error) {
		var resp embedResponse
		if err := upstream.DoJSON(ctx, e.httpClient, "ollama", "embed", req, &resp); err != nil {
			return nil, err
		}
		return resp.Embeddings, nil
	}, upstream.Classify)
	if err != nil {
		return nil, upstream.AsTemporary("ollama embed", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("ollama embed: expected %d embeddings, got %d", len(texts), len(vectors))
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors[0]) == 0 {
		return nil, fmt.Errorf("ollama embed: empty vector for query")
	}
	return vectors[0], nil
}
