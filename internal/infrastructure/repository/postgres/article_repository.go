package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

// ArticleRepository keeps the corpus table the index is built from.
// Rows carry their position so List returns the original table order.
type ArticleRepository struct {
	db *sql.DB
}

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

func (r *ArticleRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/cli startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	text TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL DEFAULT '',
	link TEXT NOT NULL DEFAULT '',
	loaded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_position ON articles(position);
CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// ReplaceAll swaps the whole corpus in one transaction.
func (r *ArticleRepository) ReplaceAll(ctx context.Context, articles []domain.Article) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM articles`); err != nil {
		return fmt.Errorf("clear articles: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO articles (id, position, text, category, date, link, loaded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`)
	if err != nil {
		return fmt.Errorf("prepare insert article: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, a := range articles {
		if a.ID == "" {
			return domain.WrapError(domain.ErrInvalidInput, "replace articles", fmt.Errorf("article at position %d has no id", i))
		}
		if _, err := stmt.ExecContext(ctx, a.ID, i, a.Text, a.Category, a.Date, a.Link, now); err != nil {
			return fmt.Errorf("insert article %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func (r *ArticleRepository) List(ctx context.Context) ([]domain.Article, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, text, category, date, link
FROM articles
ORDER BY position ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Article, 0)
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.Text, &a.Category, &a.Date, &a.Link); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}

func (r *ArticleRepository) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, text, category, date, link
FROM articles
WHERE id = $1
`, id)

	var a domain.Article
	if err := row.Scan(&a.ID, &a.Text, &a.Category, &a.Date, &a.Link); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrArticleNotFound, "get article", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan article: %w", err)
	}
	return &a, nil
}
