package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/ports"
)

const lockRetryInterval = 20 * time.Millisecond

// JSONLedger keeps the ledger in a JSON file. The file is re-read on every
// call and rewritten through a temp file + rename while holding an advisory
// lock, so concurrent processes never both record the same item.
type JSONLedger struct {
	FilePath    string
	LockTimeout time.Duration

	mu  sync.Mutex
	now func() time.Time
}

type ledgerData struct {
	Items map[domain.WorkflowKind][]ledgerEntry `json:"items"`
}

type ledgerEntry struct {
	ID         string    `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
}

var _ ports.Ledger = (*JSONLedger)(nil)

func NewJSONLedger(filePath string) (*JSONLedger, error) {
	s := &JSONLedger{
		FilePath:    filePath,
		LockTimeout: 5 * time.Second,
		now:         time.Now,
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLedger, err)
	}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONLedger) load() (ledgerData, error) {
	data := ledgerData{Items: make(map[domain.WorkflowKind][]ledgerEntry)}
	file, err := os.ReadFile(s.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return data, fmt.Errorf("%w: read %s: %v", domain.ErrLedger, s.FilePath, err)
	}
	if len(file) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(file, &data); err != nil {
		return data, fmt.Errorf("%w: parse %s: %v", domain.ErrLedger, s.FilePath, err)
	}
	if data.Items == nil {
		data.Items = make(map[domain.WorkflowKind][]ledgerEntry)
	}
	return data, nil
}

func (s *JSONLedger) save(data ledgerData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", domain.ErrLedger, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.FilePath), filepath.Base(s.FilePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLedger, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write: %v", domain.ErrLedger, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync: %v", domain.ErrLedger, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLedger, err)
	}
	if err := os.Rename(tmp.Name(), s.FilePath); err != nil {
		return fmt.Errorf("%w: replace %s: %v", domain.ErrLedger, s.FilePath, err)
	}
	return nil
}

// lock takes an advisory lock on the sidecar lock file, waiting up to
// LockTimeout. The OS drops the lock when its holder exits, so a leftover
// lock file from a crashed process never blocks.
func (s *JSONLedger) lock(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.LockTimeout)
	defer cancel()

	fl := flock.New(s.FilePath + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out waiting for %s", domain.ErrLedger, fl.Path())
		}
		return nil, fmt.Errorf("%w: lock %s: %v", domain.ErrLedger, fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: could not lock %s", domain.ErrLedger, fl.Path())
	}
	return func() { fl.Unlock() }, nil
}

func (s *JSONLedger) Contains(ctx context.Context, kind domain.WorkflowKind, itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return false, err
	}
	for _, e := range data.Items[kind] {
		if e.ID == itemID {
			return true, nil
		}
	}
	return false, nil
}

func (s *JSONLedger) RecordIfAbsent(ctx context.Context, kind domain.WorkflowKind, itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	data, err := s.load()
	if err != nil {
		return false, err
	}
	for _, e := range data.Items[kind] {
		if e.ID == itemID {
			return false, nil
		}
	}
	data.Items[kind] = append(data.Items[kind], ledgerEntry{ID: itemID, RecordedAt: s.now().UTC()})
	if err := s.save(data); err != nil {
		return false, err
	}
	return true, nil
}

func (s *JSONLedger) Recent(ctx context.Context, kind domain.WorkflowKind, limit int) ([]domain.ActedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return nil, err
	}

	entries := append([]ledgerEntry(nil), data.Items[kind]...)
	// Entries are appended in order; stable sort keeps that for equal stamps.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RecordedAt.After(entries[j].RecordedAt)
	})
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	items := make([]domain.ActedItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, domain.ActedItem{Kind: kind, ItemID: e.ID, RecordedAt: e.RecordedAt})
	}
	return items, nil
}

func (s *JSONLedger) Close() error { return nil }
