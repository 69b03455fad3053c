// Package agent composes the generator, the social client and the ledger
// into the post, reply, quote and like workflows.
//
// Every write follows the same two-phase shape: perform the remote action,
// then record it in the ledger. The remote platform offers no transaction,
// so a record failure after a successful action leaves an orphaned action:
// it is logged at ERROR, reported to the notifier and counted, and
// Reconcile can later restore the missing entry from the account timeline.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/config"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/ports"
)

// Report summarises one workflow run.
type Report struct {
	Workflow   domain.WorkflowKind
	RunID      string
	Candidates int
	Acted      int
	Skipped    int
	Failed     int
	Orphaned   int
	// ActedIDs lists, in order, the new post id for post runs and the
	// target ids for reply, quote and like runs.
	ActedIDs []string
}

// Orchestrator runs workflows. It is not safe for concurrent use; runs are
// expected to be strictly sequential.
type Orchestrator struct {
	cfg      config.Config
	gen      ports.Generator
	social   ports.Social
	ledger   ports.Ledger
	notifier ports.Notifier
	log      *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	rand  *rand.Rand
}

// New wires an orchestrator. gen may be nil for like-only use; notifier may
// be nil.
func New(cfg config.Config, gen ports.Generator, social ports.Social, ledger ports.Ledger, notifier ports.Notifier, log *slog.Logger) *Orchestrator {
	if notifier == nil {
		notifier = ports.NopNotifier{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		gen:      gen,
		social:   social,
		ledger:   ledger,
		notifier: notifier,
		log:      log,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) begin(kind domain.WorkflowKind) (*Report, *slog.Logger) {
	r := &Report{Workflow: kind, RunID: ulid.Make().String()}
	log := o.log.With(slog.String("workflow", string(kind)), slog.String("run_id", r.RunID))
	return r, log
}

func (o *Orchestrator) finish(log *slog.Logger, r *Report, err error) {
	recordRun(r.Workflow, err)
	attrs := []any{
		slog.Int("candidates", r.Candidates),
		slog.Int("acted", r.Acted),
		slog.Int("skipped", r.Skipped),
		slog.Int("failed", r.Failed),
		slog.Int("orphaned", r.Orphaned),
	}
	if err != nil {
		log.Error("workflow aborted", append(attrs, slog.Any("error", err))...)
		return
	}
	log.Info("workflow finished", attrs...)
}

func (o *Orchestrator) generate(ctx context.Context, prompt string) string {
	if o.gen == nil {
		return ""
	}
	return o.gen.Generate(ctx, prompt)
}

// pacer spaces successful write actions by the configured delay.
type pacer struct {
	o       *Orchestrator
	pending bool
}

// wait blocks before a write if the previous write succeeded.
func (p *pacer) wait(ctx context.Context) error {
	if !p.pending {
		return nil
	}
	p.pending = false
	return p.o.sleep(ctx, p.o.cfg.PacingDelay)
}

func (p *pacer) succeeded() { p.pending = true }

// record is phase two of a write. The remote action already happened, so
// the insert runs even if ctx was cancelled in between.
func (o *Orchestrator) record(ctx context.Context, log *slog.Logger, r *Report, kind domain.WorkflowKind, itemID string) {
	ctx = context.WithoutCancel(ctx)
	added, err := o.ledger.RecordIfAbsent(ctx, kind, itemID)
	if err != nil {
		r.Orphaned++
		recordItem(kind, outcomeOrphaned)
		log.Error("action performed but not recorded; it may be repeated",
			slog.String("item_id", itemID), slog.Any("error", err))
		o.notify(ctx, log, "orphaned action",
			fmt.Sprintf("%s on %s succeeded but the ledger write failed: %v", kind, itemID, err))
		return
	}
	if !added {
		log.Warn("item was already recorded by another run", slog.String("item_id", itemID))
	}
}

// notify is best effort.
func (o *Orchestrator) notify(ctx context.Context, log *slog.Logger, title, body string) {
	if err := o.notifier.Notify(ctx, title, body); err != nil {
		log.Warn("notify failed", slog.Any("error", err))
	}
}

// seen checks the ledger. Read faults are workflow-fatal.
func (o *Orchestrator) seen(ctx context.Context, kind domain.WorkflowKind, itemID string) (bool, error) {
	done, err := o.ledger.Contains(ctx, kind, itemID)
	if err != nil {
		if !errors.Is(err, domain.ErrLedger) {
			err = fmt.Errorf("%w: %v", domain.ErrLedger, err)
		}
		return false, err
	}
	return done, nil
}

func (o *Orchestrator) pickMood() domain.Mood {
	return domain.PickMood(o.rand, o.cfg.Moods)
}

// IsFatal reports whether err should fail a one-shot invocation.
func IsFatal(err error) bool {
	return errors.Is(err, domain.ErrConfig) || errors.Is(err, domain.ErrFetch) || errors.Is(err, domain.ErrLedger)
}
