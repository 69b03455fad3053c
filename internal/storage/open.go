// Package storage holds the ledger backends: SQLite by default, Postgres
// when a database URL is configured and a JSON file for ".json" paths.
package storage

import (
	"context"
	"strings"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/ports"
)

// Backend names a ledger implementation.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendJSON     Backend = "json"
)

// SelectBackend picks the backend from the configured location.
func SelectBackend(databaseURL, path string) Backend {
	switch {
	case databaseURL != "":
		return BackendPostgres
	case strings.HasSuffix(strings.ToLower(path), ".json"):
		return BackendJSON
	default:
		return BackendSQLite
	}
}

// Open opens the ledger chosen by SelectBackend, creating it if absent.
func Open(ctx context.Context, databaseURL, path string) (ports.Ledger, Backend, error) {
	backend := SelectBackend(databaseURL, path)
	var (
		l   ports.Ledger
		err error
	)
	switch backend {
	case BackendPostgres:
		l, err = NewPostgresLedger(ctx, databaseURL)
	case BackendJSON:
		l, err = NewJSONLedger(path)
	default:
		l, err = NewSQLiteLedger(ctx, path)
	}
	if err != nil {
		return nil, backend, err
	}
	return l, backend, nil
}
