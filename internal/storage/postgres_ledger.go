package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/ports"
)

// PostgresLedger stores the ledger in Postgres, for deployments where the
// bot runs on ephemeral hosts.
type PostgresLedger struct {
	Pool *pgxpool.Pool
}

var _ ports.Ledger = (*PostgresLedger)(nil)

func NewPostgresLedger(ctx context.Context, connStr string) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to connect to database: %v", domain.ErrLedger, err)
	}

	s := &PostgresLedger{Pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresLedger) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS acted_items (
			kind        TEXT NOT NULL,
			item_id     TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (kind, item_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_acted_items_recent ON acted_items (kind, recorded_at DESC)`,
	}
	for _, q := range queries {
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("%w: failed to init schema: %v", domain.ErrLedger, err)
		}
	}
	return nil
}

func (s *PostgresLedger) Contains(ctx context.Context, kind domain.WorkflowKind, itemID string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM acted_items WHERE kind = $1 AND item_id = $2)",
		string(kind), itemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: lookup %s/%s: %v", domain.ErrLedger, kind, itemID, err)
	}
	return exists, nil
}

func (s *PostgresLedger) RecordIfAbsent(ctx context.Context, kind domain.WorkflowKind, itemID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx,
		"INSERT INTO acted_items (kind, item_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		string(kind), itemID)
	if err != nil {
		return false, fmt.Errorf("%w: record %s/%s: %v", domain.ErrLedger, kind, itemID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresLedger) Recent(ctx context.Context, kind domain.WorkflowKind, limit int) ([]domain.ActedItem, error) {
	rows, err := s.Pool.Query(ctx,
		"SELECT item_id, recorded_at FROM acted_items WHERE kind = $1 ORDER BY recorded_at DESC LIMIT $2",
		string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrLedger, kind, err)
	}
	defer rows.Close()

	var res []domain.ActedItem
	for rows.Next() {
		item := domain.ActedItem{Kind: kind}
		if err := rows.Scan(&item.ItemID, &item.RecordedAt); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", domain.ErrLedger, kind, err)
		}
		res = append(res, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrLedger, kind, err)
	}
	return res, nil
}

func (s *PostgresLedger) Close() error {
	s.Pool.Close()
	return nil
}
