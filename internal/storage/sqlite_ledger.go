package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/ports"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS acted_items (
	kind        TEXT    NOT NULL,
	item_id     TEXT    NOT NULL,
	recorded_at INTEGER NOT NULL,
	PRIMARY KEY (kind, item_id)
)`

// SQLiteLedger keeps the ledger in a single SQLite file. Inserts rely on the
// primary key, so two processes sharing the file still record an item once.
type SQLiteLedger struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.Ledger = (*SQLiteLedger)(nil)

// NewSQLiteLedger opens (creating if absent) the ledger at path.
func NewSQLiteLedger(ctx context.Context, path string) (*SQLiteLedger, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("%w: create ledger directory: %v", domain.ErrLedger, err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrLedger, path, err)
	}
	// One connection keeps :memory: databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrLedger, pragma, err)
		}
	}

	s := &SQLiteLedger{db: db, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteLedger) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("%w: init schema: %v", domain.ErrLedger, err)
	}
	return s.importLegacy(ctx)
}

// importLegacy copies ids from the single-column tweets table written by
// earlier versions. That table mixed posted and replied ids; they land in
// the reply namespace, which is the only one ever filtered against it.
func (s *SQLiteLedger) importLegacy(ctx context.Context) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'tweets'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("%w: inspect schema: %v", domain.ErrLedger, err)
	}
	if n == 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO acted_items (kind, item_id, recorded_at)
		 SELECT ?, id, ? FROM tweets WHERE id IS NOT NULL
		 ON CONFLICT (kind, item_id) DO NOTHING`,
		string(domain.KindReply), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: import legacy ids: %v", domain.ErrLedger, err)
	}
	return nil
}

func (s *SQLiteLedger) Contains(ctx context.Context, kind domain.WorkflowKind, itemID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM acted_items WHERE kind = ? AND item_id = ?)`,
		string(kind), itemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: lookup %s/%s: %v", domain.ErrLedger, kind, itemID, err)
	}
	return exists, nil
}

func (s *SQLiteLedger) RecordIfAbsent(ctx context.Context, kind domain.WorkflowKind, itemID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO acted_items (kind, item_id, recorded_at) VALUES (?, ?, ?)
		 ON CONFLICT (kind, item_id) DO NOTHING`,
		string(kind), itemID, s.now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("%w: record %s/%s: %v", domain.ErrLedger, kind, itemID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: record %s/%s: %v", domain.ErrLedger, kind, itemID, err)
	}
	return n == 1, nil
}

func (s *SQLiteLedger) Recent(ctx context.Context, kind domain.WorkflowKind, limit int) ([]domain.ActedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, recorded_at FROM acted_items WHERE kind = ?
		 ORDER BY recorded_at DESC, rowid DESC LIMIT ?`,
		string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrLedger, kind, err)
	}
	defer rows.Close()

	var items []domain.ActedItem
	for rows.Next() {
		var (
			id string
			ms int64
		)
		if err := rows.Scan(&id, &ms); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", domain.ErrLedger, kind, err)
		}
		items = append(items, domain.ActedItem{Kind: kind, ItemID: id, RecordedAt: time.UnixMilli(ms)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrLedger, kind, err)
	}
	return items, nil
}

func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
