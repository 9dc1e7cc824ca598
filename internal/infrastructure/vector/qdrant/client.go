package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/news-retriever/internal/core/domain"
	"github.com/kirillkom/news-retriever/internal/infrastructure/resilience"
	"github.com/kirillkom/news-retriever/internal/infrastructure/upstream"
)

// Client is a vector index backed by a Qdrant collection with cosine
// distance. Qdrant reports cosine similarity as the score, so Search turns
// it back into a distance before handing neighbours to the retriever.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

type Option func(*Client)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(baseURL, collection string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Reset drops the collection and creates it again for the given dimension.
// Index builds are always full rebuilds.
func (c *Client) Reset(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("qdrant reset: invalid dimension %d", dimension)
	}
	err := c.execute(ctx, "qdrant.reset", func(ctx context.Context) error {
		path := fmt.Sprintf("/collections/%s", c.collection)
		if err := c.do(ctx, http.MethodDelete, path, nil, nil, "delete collection"); err != nil {
			if !upstream.IsStatus(err, http.StatusNotFound) {
				return err
			}
		}
		c.forgetCollection()
		return c.createCollection(ctx, dimension)
	})
	return upstream.AsTemporary("qdrant reset", err)
}

func (c *Client) Upsert(ctx context.Context, articles []domain.IndexedArticle) error {
	if len(articles) == 0 {
		return nil
	}
	if err := c.ensureCollection(ctx, len(articles[0].Vector)); err != nil {
		return upstream.AsTemporary("qdrant ensure collection", err)
	}

	points := make([]point, 0, len(articles))
	for _, a := range articles {
		if len(a.Vector) == 0 {
			return fmt.Errorf("qdrant upsert: article %q has no vector", a.Article.ID)
		}
		points = append(points, point{
			ID:     pointID(a.Article.ID),
			Vector: a.Vector,
			Payload: map[string]any{
				"article_id": a.Article.ID,
				"text":       a.Article.Text,
				"category":   a.Article.Category,
				"date":       a.Article.Date,
				"link":       a.Article.Link,
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	err := c.execute(ctx, "qdrant.upsert", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
	})
	return upstream.AsTemporary("qdrant upsert", err)
}

func (c *Client) Search(ctx context.Context, queryVector []float32, topK int) ([]domain.Neighbor, error) {
	if topK <= 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        topK,
		"with_payload": true,
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	err := c.execute(ctx, "qdrant.search", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, path, reqBody, &searchResp, "search")
	})
	if err != nil {
		return nil, upstream.AsTemporary("qdrant search", err)
	}

	out := make([]domain.Neighbor, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.Neighbor{
			Distance: 1 - r.Score,
			Article: domain.Article{
				ID:       getStringPayload(r.Payload, "article_id"),
				Text:     getStringPayload(r.Payload, "text"),
				Category: getStringPayload(r.Payload, "category"),
				Date:     getStringPayload(r.Payload, "date"),
				Link:     getStringPayload(r.Payload, "link"),
			},
		})
	}
	return out, nil
}

func (c *Client) Count(ctx context.Context) (int, error) {
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", c.collection)
	err := c.execute(ctx, "qdrant.count", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, path, map[string]any{"exact": true}, &countResp, "count")
	})
	if err != nil {
		return 0, upstream.AsTemporary("qdrant count", err)
	}
	return countResp.Result.Count, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	return c.execute(ctx, "qdrant.ensure_collection", func(ctx context.Context) error {
		return c.createCollection(ctx, vectorSize)
	})
}

func (c *Client) createCollection(ctx context.Context, vectorSize int) error {
	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	path := fmt.Sprintf("/collections/%s", c.collection)
	err := c.do(ctx, http.MethodPut, path, reqBody, nil, "ensure collection")
	if err != nil {
		// 409 if it already exists (depends on version/config).
		if !upstream.IsStatus(err, http.StatusConflict) {
			return err
		}
	}
	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) forgetCollection() {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = false
	c.ensuredVectorSize = 0
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, upstream.Classify)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	return upstream.DoJSON(ctx, c.httpClient, "qdrant", operation, upstream.Request{
		Method: method,
		URL:    c.baseURL + path,
		Body:   payload,
	}, out)
}

// pointID maps an article id onto the UUID space Qdrant accepts for point ids.
// The mapping is deterministic so re-indexing the same corpus yields the same points.
func pointID(articleID string) string {
	if _, err := uuid.Parse(articleID); err == nil {
		return articleID
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("article:"+articleID)).String()
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
