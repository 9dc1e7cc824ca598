package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

func openTestIndex(t *testing.T) (*Index, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := Open(path)
	require.NoError(t, err)
	return idx, path
}

func article(id string, vector ...float32) domain.IndexedArticle {
	return domain.IndexedArticle{Article: domain.Article{ID: id, Text: "text " + id}, Vector: vector}
}

func TestSearchOrdersByDistance(t *testing.T) {
	idx, _ := openTestIndex(t)
	defer idx.Close()
	ctx := context.Background()

	require.NoError(t, idx.Reset(ctx, 2))
	require.NoError(t, idx.Upsert(ctx, []domain.IndexedArticle{
		article("far", 0, 1),
		article("near", 1, 0),
		article("mid", 1, 1),
	}))

	got, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].Article.ID)
	assert.InDelta(t, 0.0, got[0].Distance, 1e-9)
	assert.Equal(t, "mid", got[1].Article.ID)
	assert.InDelta(t, 1-1/1.4142135623730951, got[1].Distance, 1e-6)
}

func TestSearchKeepsInsertionOrderOnTies(t *testing.T) {
	idx, _ := openTestIndex(t)
	defer idx.Close()
	ctx := context.Background()

	require.NoError(t, idx.Reset(ctx, 2))
	require.NoError(t, idx.Upsert(ctx, []domain.IndexedArticle{
		article("first", 2, 0),
		article("second", 1, 0),
	}))

	got, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"first", "second"}, []string{got[0].Article.ID, got[1].Article.ID})
}

func TestIndexSurvivesReopen(t *testing.T) {
	idx, path := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Reset(ctx, 3))
	require.NoError(t, idx.Upsert(ctx, []domain.IndexedArticle{article("a", 1, 2, 3)}))
	require.NoError(t, idx.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := reopened.Search(ctx, []float32{1, 2, 3}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "text a", got[0].Article.Text)
}

func TestResetDropsPreviousArticles(t *testing.T) {
	idx, _ := openTestIndex(t)
	defer idx.Close()
	ctx := context.Background()

	require.NoError(t, idx.Reset(ctx, 2))
	require.NoError(t, idx.Upsert(ctx, []domain.IndexedArticle{article("a", 1, 0)}))
	require.NoError(t, idx.Reset(ctx, 2))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	idx, _ := openTestIndex(t)
	defer idx.Close()
	ctx := context.Background()

	require.NoError(t, idx.Reset(ctx, 2))
	err := idx.Upsert(ctx, []domain.IndexedArticle{article("a", 1, 0, 0)})
	assert.Error(t, err)
}

func TestUpsertRequiresReset(t *testing.T) {
	idx, _ := openTestIndex(t)
	defer idx.Close()

	err := idx.Upsert(context.Background(), []domain.IndexedArticle{article("a", 1, 0)})
	assert.Error(t, err)
}
