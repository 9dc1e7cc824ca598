package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

// RetrievalEventRepository is the audit trail written by the event worker.
type RetrievalEventRepository struct {
	db *sql.DB
}

func NewRetrievalEventRepository(db *sql.DB) *RetrievalEventRepository {
	return &RetrievalEventRepository{db: db}
}

func (r *RetrievalEventRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101902)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS retrieval_events (
	id BIGSERIAL PRIMARY KEY,
	request_id TEXT NOT NULL DEFAULT '',
	query TEXT NOT NULL,
	mode TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	result_count INTEGER NOT NULL,
	top_similarity DOUBLE PRECISION NOT NULL DEFAULT 0,
	article_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	duration_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_retrieval_events_occurred_at ON retrieval_events(occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_retrieval_events_reason ON retrieval_events(reason);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RetrievalEventRepository) Save(ctx context.Context, event domain.RetrievalEvent) error {
	ids := event.ArticleIDs
	if ids == nil {
		ids = []string{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal article ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO retrieval_events (
	request_id, query, mode, reason, result_count, top_similarity, article_ids, duration_ms, occurred_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		event.RequestID, event.Query, string(event.Mode), string(event.Reason), event.ResultCount,
		event.TopSimilarity, idsJSON, event.DurationMS, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert retrieval event: %w", err)
	}
	return nil
}
