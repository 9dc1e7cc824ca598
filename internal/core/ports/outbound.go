package ports

import (
	"context"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

// Embedder builds vectors for corpus texts and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex returns the nearest neighbours of a query vector, closest first.
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, topK int) ([]domain.Neighbor, error)
}

// VectorIndexWriter rebuilds the index. Builds are always full: Reset then Upsert.
type VectorIndexWriter interface {
	Reset(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, items []domain.IndexedArticle) error
	Count(ctx context.Context) (int, error)
}

// ArticleRepository stores the tabular corpus.
type ArticleRepository interface {
	EnsureSchema(ctx context.Context) error
	ReplaceAll(ctx context.Context, articles []domain.Article) error
	List(ctx context.Context) ([]domain.Article, error)
	GetByID(ctx context.Context, id string) (*domain.Article, error)
}

// RetrievalEventPublisher emits audit events for served queries.
type RetrievalEventPublisher interface {
	PublishRetrieval(ctx context.Context, event domain.RetrievalEvent) error
}
