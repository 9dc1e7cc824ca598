package ports

import (
	"context"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

// ArticleRetriever is the inbound contract for semantic search over the corpus.
type ArticleRetriever interface {
	Retrieve(ctx context.Context, query string) (domain.RetrievalOutcome, error)
}

// ArticleReader is the inbound read model for single articles.
type ArticleReader interface {
	GetByID(ctx context.Context, id string) (*domain.Article, error)
}

// IndexBuilder rebuilds the vector index from a corpus table.
type IndexBuilder interface {
	Build(ctx context.Context, articles []domain.Article, progress func(done, total int)) (domain.IndexReport, error)
}
