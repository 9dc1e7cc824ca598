package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/news-retriever/internal/core/domain"
	"github.com/kirillkom/news-retriever/internal/core/ports"
)

const defaultEmbedBatchSize = 64

// IndexArticlesUseCase performs a full rebuild of the vector index from a
// corpus table: embed every article, drop the collection, upsert everything.
type IndexArticlesUseCase struct {
	embedder  ports.Embedder
	writer    ports.VectorIndexWriter
	catalog   ports.ArticleRepository
	batchSize int
}

func NewIndexArticlesUseCase(
	embedder ports.Embedder,
	writer ports.VectorIndexWriter,
	batchSize int,
) *IndexArticlesUseCase {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &IndexArticlesUseCase{
		embedder:  embedder,
		writer:    writer,
		batchSize: batchSize,
	}
}

// WithCatalog also stores the prepared corpus, ids included, so articles can
// be looked up by the ids the index returns.
func (uc *IndexArticlesUseCase) WithCatalog(catalog ports.ArticleRepository) *IndexArticlesUseCase {
	uc.catalog = catalog
	return uc
}

func (uc *IndexArticlesUseCase) Build(
	ctx context.Context,
	articles []domain.Article,
	progress func(done, total int),
) (domain.IndexReport, error) {
	start := time.Now()
	prepared, err := prepareArticles(articles)
	if err != nil {
		return domain.IndexReport{}, err
	}

	// Embed everything before touching the index so a provider failure
	// leaves the previous build searchable.
	items := make([]domain.IndexedArticle, 0, len(prepared))
	dimension := 0
	batches := 0
	for from := 0; from < len(prepared); from += uc.batchSize {
		to := min(from+uc.batchSize, len(prepared))
		batch := prepared[from:to]

		texts := make([]string, 0, len(batch))
		for _, a := range batch {
			texts = append(texts, a.Text)
		}
		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return domain.IndexReport{}, domain.WrapError(domain.ErrEmbedding, "embed corpus batch", err)
		}
		if len(vectors) != len(batch) {
			return domain.IndexReport{}, domain.WrapError(domain.ErrEmbedding, "embed corpus batch",
				fmt.Errorf("expected %d vectors, got %d", len(batch), len(vectors)))
		}
		for i, v := range vectors {
			if dimension == 0 {
				dimension = len(v)
			}
			if len(v) == 0 || len(v) != dimension {
				return domain.IndexReport{}, domain.WrapError(domain.ErrEmbedding, "embed corpus batch",
					fmt.Errorf("article %s: vector dimension %d, expected %d", batch[i].ID, len(v), dimension))
			}
			items = append(items, domain.IndexedArticle{Article: batch[i], Vector: v})
		}
		batches++
		if progress != nil {
			progress(to, len(prepared))
		}
	}

	if err := uc.writer.Reset(ctx, dimension); err != nil {
		return domain.IndexReport{}, domain.WrapError(domain.ErrIndex, "reset vector index", err)
	}
	for from := 0; from < len(items); from += uc.batchSize {
		to := min(from+uc.batchSize, len(items))
		if err := uc.writer.Upsert(ctx, items[from:to]); err != nil {
			return domain.IndexReport{}, domain.WrapError(domain.ErrIndex, "upsert vector index", err)
		}
	}

	if uc.catalog != nil {
		if err := uc.catalog.ReplaceAll(ctx, prepared); err != nil {
			return domain.IndexReport{}, fmt.Errorf("store corpus table: %w", err)
		}
	}

	return domain.IndexReport{
		Articles:  len(items),
		Dimension: dimension,
		Batches:   batches,
		Duration:  time.Since(start),
	}, nil
}

// prepareArticles validates the corpus and assigns ids to rows without one.
func prepareArticles(articles []domain.Article) ([]domain.Article, error) {
	if len(articles) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "prepare corpus", fmt.Errorf("corpus is empty"))
	}

	out := make([]domain.Article, 0, len(articles))
	seen := make(map[string]int, len(articles))
	for i, a := range articles {
		a.Text = strings.TrimSpace(a.Text)
		if a.Text == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "prepare corpus", fmt.Errorf("row %d: text is empty", i))
		}
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if prev, ok := seen[a.ID]; ok {
			return nil, domain.WrapError(domain.ErrInvalidInput, "prepare corpus",
				fmt.Errorf("rows %d and %d share id %q", prev, i, a.ID))
		}
		seen[a.ID] = i
		out = append(out, a)
	}
	return out, nil
}
