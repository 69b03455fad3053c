package domain

import "errors"

// Error classes shared by every adapter. Adapters wrap these with %w so the
// orchestrator and CLI can branch with errors.Is.
var (
	// ErrConfig is fatal at startup: a mandatory setting is missing or invalid.
	ErrConfig = errors.New("config error")
	// ErrGeneration means the generator produced no usable text.
	ErrGeneration = errors.New("generation error")
	// ErrWrite means a social write action was rejected or failed.
	ErrWrite = errors.New("write error")
	// ErrFetch means a search, mention fetch or lookup failed.
	ErrFetch = errors.New("fetch error")
	// ErrLedger means the ledger store failed.
	ErrLedger = errors.New("ledger error")
)
