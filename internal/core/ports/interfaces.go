package ports

import (
	"context"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
)

// Generator produces text for a prompt. It never fails past this boundary:
// any error is logged by the implementation and surfaces as "".
type Generator interface {
	Generate(ctx context.Context, prompt string) string
}

// Social performs actions against the microblogging platform. Write methods
// wrap domain.ErrWrite on rejection; read methods wrap domain.ErrFetch.
type Social interface {
	IdentifySelf(ctx context.Context) (domain.UserID, error)
	Search(ctx context.Context, query string, limit int) ([]domain.CandidateItem, error)
	// FetchMentions resolves author usernames from the response expansions
	// where it can; the rest are left empty.
	FetchMentions(ctx context.Context, userID domain.UserID, limit int) ([]domain.CandidateItem, error)
	LookupUsername(ctx context.Context, authorID string) (string, error)
	RecentPosts(ctx context.Context, userID domain.UserID, limit int) ([]domain.OwnPost, error)
	Post(ctx context.Context, text string) (string, error)
	Reply(ctx context.Context, text, targetID string) (string, error)
	Quote(ctx context.Context, text, targetID string) (string, error)
	Like(ctx context.Context, userID domain.UserID, targetID string) error
}

// Ledger is the durable record of items already acted upon, keyed by
// (kind, item id). Failures wrap domain.ErrLedger.
type Ledger interface {
	Contains(ctx context.Context, kind domain.WorkflowKind, itemID string) (bool, error)
	// RecordIfAbsent returns true only for the caller that inserted the entry.
	RecordIfAbsent(ctx context.Context, kind domain.WorkflowKind, itemID string) (bool, error)
	Recent(ctx context.Context, kind domain.WorkflowKind, limit int) ([]domain.ActedItem, error)
	Close() error
}

// Notifier pushes short operator messages out of band.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) error { return nil }
