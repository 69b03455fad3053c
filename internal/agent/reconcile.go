package agent

import (
	"context"
	"log/slog"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
)

// ReconcileReport counts ledger entries restored from the timeline.
type ReconcileReport struct {
	RunID    string
	Scanned  int
	Restored map[domain.WorkflowKind]int
}

// Reconcile re-scans the account's most recent limit posts and records
// whatever the ledger is missing: replied-to targets under reply, quoted
// targets under quote, and standalone posts under post. It closes the gap
// left by orphaned actions. Ledger faults abort the scan.
func (o *Orchestrator) Reconcile(ctx context.Context, limit int) (ReconcileReport, error) {
	r, log := o.begin("reconcile")
	rep := ReconcileReport{RunID: r.RunID, Restored: make(map[domain.WorkflowKind]int)}

	me, err := o.social.IdentifySelf(ctx)
	if err != nil {
		log.Error("reconcile aborted", slog.Any("error", err))
		return rep, err
	}
	posts, err := o.social.RecentPosts(ctx, me, limit)
	if err != nil {
		log.Error("reconcile aborted", slog.Any("error", err))
		return rep, err
	}
	rep.Scanned = len(posts)

	for _, p := range posts {
		kind, itemID := domain.KindPost, p.ID
		switch {
		case p.InReplyToID != "":
			kind, itemID = domain.KindReply, p.InReplyToID
		case p.QuotedID != "":
			kind, itemID = domain.KindQuote, p.QuotedID
		}

		added, err := o.ledger.RecordIfAbsent(ctx, kind, itemID)
		if err != nil {
			log.Error("reconcile aborted", slog.Any("error", err))
			return rep, err
		}
		if added {
			rep.Restored[kind]++
			log.Info("restored ledger entry", slog.String("kind", string(kind)), slog.String("item_id", itemID))
		}
	}

	log.Info("reconcile finished", slog.Int("scanned", rep.Scanned),
		slog.Int("restored_reply", rep.Restored[domain.KindReply]),
		slog.Int("restored_quote", rep.Restored[domain.KindQuote]),
		slog.Int("restored_post", rep.Restored[domain.KindPost]))
	return rep, nil
}
