package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

type indexEmbedderFake struct {
	batches [][]string
	dim     int
	err     error
}

func (f *indexEmbedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
		out[i][0] = float32(i + 1)
	}
	return out, nil
}

func (f *indexEmbedderFake) EmbedQuery(context.Context, string) ([]float32, error) { return nil, nil }

type indexWriterFake struct {
	resetDim  int
	resets    int
	upserted  []domain.IndexedArticle
	resetErr  error
	upsertErr error
}

func (f *indexWriterFake) Reset(_ context.Context, dimension int) error {
	f.resets++
	f.resetDim = dimension
	return f.resetErr
}

func (f *indexWriterFake) Upsert(_ context.Context, items []domain.IndexedArticle) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, items...)
	return nil
}

func (f *indexWriterFake) Count(context.Context) (int, error) { return len(f.upserted), nil }

func corpus(n int) []domain.Article {
	out := make([]domain.Article, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Article{Text: "headline. description", Category: "POLITICS", Date: "2020-01-01"})
	}
	return out
}

func TestIndexBuildEmbedsInBatchesAndAssignsIDs(t *testing.T) {
	embedder := &indexEmbedderFake{dim: 4}
	writer := &indexWriterFake{}
	uc := NewIndexArticlesUseCase(embedder, writer, 2)

	var lastDone, lastTotal int
	report, err := uc.Build(context.Background(), corpus(5), func(done, total int) {
		lastDone, lastTotal = done, total
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(embedder.batches) != 3 {
		t.Fatalf("expected 3 embed batches, got %d", len(embedder.batches))
	}
	if writer.resets != 1 || writer.resetDim != 4 {
		t.Fatalf("expected single reset with dim 4, got resets=%d dim=%d", writer.resets, writer.resetDim)
	}
	if len(writer.upserted) != 5 {
		t.Fatalf("expected 5 upserted items, got %d", len(writer.upserted))
	}
	seen := map[string]bool{}
	for _, item := range writer.upserted {
		if item.Article.ID == "" || seen[item.Article.ID] {
			t.Fatalf("expected unique non-empty ids, got %q", item.Article.ID)
		}
		seen[item.Article.ID] = true
	}
	if report.Articles != 5 || report.Dimension != 4 || report.Batches != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	if lastDone != 5 || lastTotal != 5 {
		t.Fatalf("expected final progress 5/5, got %d/%d", lastDone, lastTotal)
	}
}

func TestIndexBuildRejectsDuplicateIDs(t *testing.T) {
	articles := corpus(2)
	articles[0].ID = "same"
	articles[1].ID = "same"

	writer := &indexWriterFake{}
	_, err := NewIndexArticlesUseCase(&indexEmbedderFake{dim: 2}, writer, 10).Build(context.Background(), articles, nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if writer.resets != 0 {
		t.Fatalf("index must not be reset for invalid corpus")
	}
}

func TestIndexBuildRejectsEmptyCorpus(t *testing.T) {
	_, err := NewIndexArticlesUseCase(&indexEmbedderFake{dim: 2}, &indexWriterFake{}, 10).Build(context.Background(), nil, nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestIndexBuildEmbedFailureLeavesIndexUntouched(t *testing.T) {
	writer := &indexWriterFake{}
	_, err := NewIndexArticlesUseCase(&indexEmbedderFake{err: errors.New("quota")}, writer, 10).Build(context.Background(), corpus(3), nil)
	if !domain.IsKind(err, domain.ErrEmbedding) {
		t.Fatalf("expected embedding error, got %v", err)
	}
	if writer.resets != 0 {
		t.Fatalf("expected no reset after embed failure")
	}
}

func TestIndexBuildWrapsWriterFailure(t *testing.T) {
	writer := &indexWriterFake{upsertErr: errors.New("disk full")}
	_, err := NewIndexArticlesUseCase(&indexEmbedderFake{dim: 2}, writer, 10).Build(context.Background(), corpus(3), nil)
	if !domain.IsKind(err, domain.ErrIndex) {
		t.Fatalf("expected index error, got %v", err)
	}
}

type catalogFake struct {
	stored []domain.Article
}

func (f *catalogFake) EnsureSchema(context.Context) error { return nil }

func (f *catalogFake) ReplaceAll(_ context.Context, articles []domain.Article) error {
	f.stored = append([]domain.Article(nil), articles...)
	return nil
}

func (f *catalogFake) List(context.Context) ([]domain.Article, error) { return f.stored, nil }

func (f *catalogFake) GetByID(context.Context, string) (*domain.Article, error) { return nil, nil }

func TestIndexBuildStoresCorpusWithAssignedIDs(t *testing.T) {
	writer := &indexWriterFake{}
	catalog := &catalogFake{}
	uc := NewIndexArticlesUseCase(&indexEmbedderFake{dim: 4}, writer, 2).WithCatalog(catalog)

	if _, err := uc.Build(context.Background(), corpus(3), nil); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(catalog.stored) != 3 {
		t.Fatalf("expected 3 stored articles, got %d", len(catalog.stored))
	}
	for i, a := range catalog.stored {
		if a.ID != writer.upserted[i].Article.ID {
			t.Fatalf("catalog id %q does not match indexed id %q", a.ID, writer.upserted[i].Article.ID)
		}
	}
}
