package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/agent"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/config"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/scheduler"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/server"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/storage"
)

var (
	needAll    = config.Requirements{Generator: true, Social: true}
	needSocial = config.Requirements{Social: true}
)

// runWorkflow wires an app for req, runs fn and closes the app.
func runWorkflow(cmd *cobra.Command, opts *rootOptions, req config.Requirements, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts, cmd.ErrOrStderr(), req)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// fatalOnly drops errors a one-shot run should not fail on.
func fatalOnly(err error) error {
	if err != nil && agent.IsFatal(err) {
		return err
	}
	return nil
}

func newPostCmd(opts *rootOptions) *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Generate and post one original tweet",
		Long: `Generate and post one original tweet. Without --prompt a mood is picked at
random and the configured mood template is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkflow(cmd, opts, needAll, func(ctx context.Context, a *app) error {
				_, err := a.orch.PostOriginal(ctx, prompt)
				return fatalOnly(err)
			})
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "explicit generation prompt")
	return cmd
}

func newReplyCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reply",
		Short: "Reply to recent mentions not yet answered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkflow(cmd, opts, needAll, func(ctx context.Context, a *app) error {
				n := a.cfg.MentionLimit
				if cmd.Flags().Changed("limit") {
					n = limit
				}
				_, err := a.orch.ReplyToMentions(ctx, n)
				return fatalOnly(err)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", config.DefaultMentionLimit, "maximum mentions to fetch")
	return cmd
}

func newQuoteCmd(opts *rootOptions) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a search result with generated commentary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkflow(cmd, opts, needAll, func(ctx context.Context, a *app) error {
				_, err := a.orch.QuoteTweet(ctx, query)
				return fatalOnly(err)
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search query (default from config)")
	return cmd
}

func newLikeCmd(opts *rootOptions) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "like",
		Short: "Like recent search results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkflow(cmd, opts, needSocial, func(ctx context.Context, a *app) error {
				_, err := a.orch.LikeSearchResults(ctx, query)
				return fatalOnly(err)
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search query (default from config)")
	return cmd
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Restore ledger entries from the account's own timeline",
		Long: `Fetch the account's recent posts and record every replied-to and quoted
target in the ledger. Use after an orphaned action was reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkflow(cmd, opts, needSocial, func(ctx context.Context, a *app) error {
				n := a.cfg.ReconcileLimit
				if cmd.Flags().Changed("limit") {
					n = limit
				}
				_, err := a.orch.Reconcile(ctx, n)
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", config.DefaultReconcileLimit, "own posts to scan")
	return cmd
}

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	var manual bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Post on a fixed interval until interrupted",
		Long: `Run the post workflow once immediately and then every post interval until
SIGINT or SIGTERM. Cycle failures are logged and never stop the loop. When
METRICS_ADDR is set, /metrics and /healthz are served alongside.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkflow(cmd, opts, needAll, func(ctx context.Context, a *app) error {
				interval := a.cfg.PostInterval
				if cmd.Flags().Changed("interval") {
					interval, _ = cmd.Flags().GetDuration("interval")
				}

				loop := &scheduler.Loop{
					Interval: interval,
					Cycle: func(ctx context.Context) error {
						_, err := a.orch.PostOriginal(ctx, "")
						return err
					},
					Log: a.log,
				}
				if manual {
					loop.Trigger = lineTrigger(ctx, cmd.InOrStdin())
				}

				var metrics runner
				if a.cfg.MetricsAddr != "" {
					metrics = server.New(a.cfg.MetricsAddr, a.healthCheck, a.log)
				}
				return superviseSchedule(ctx, a.log, loop, metrics)
			})
		},
	}
	cmd.Flags().Duration("interval", config.DefaultPostInterval, "time between post cycles")
	cmd.Flags().BoolVar(&manual, "manual-trigger", false, "run an extra cycle on every line read from stdin")
	return cmd
}

type runner interface {
	Run(ctx context.Context) error
}

// superviseSchedule runs the loop and, when non-nil, the metrics server
// until ctx is done. The metrics server is auxiliary: its failure is logged
// and never stops the loop.
func superviseSchedule(ctx context.Context, log *slog.Logger, loop, metrics runner) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	if metrics != nil {
		g.Go(func() error {
			if err := metrics.Run(gctx); err != nil {
				log.Error("metrics server stopped, scheduler keeps running", slog.Any("error", err))
			}
			return nil
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func newChanceCmd(opts *rootOptions) *cobra.Command {
	var (
		probability float64
		maxDelay    = config.DefaultMaxDelay
	)
	cmd := &cobra.Command{
		Use:   "chance",
		Short: "Maybe post once, after a random delay",
		Long: `With the configured probability, wait a random delay up to --max-delay and
run one post cycle; otherwise exit without posting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkflow(cmd, opts, needAll, func(ctx context.Context, a *app) error {
				gate := &scheduler.Gate{
					Probability: a.cfg.PostChance,
					MaxDelay:    a.cfg.MaxDelay,
					Log:         a.log,
				}
				if cmd.Flags().Changed("probability") {
					gate.Probability = probability
				}
				if cmd.Flags().Changed("max-delay") {
					gate.MaxDelay = maxDelay
				}
				if gate.Probability < 0 || gate.Probability > 1 {
					return fmt.Errorf("%w: probability must be within [0,1], got %v", domain.ErrConfig, gate.Probability)
				}
				_, err := gate.Run(ctx, func(ctx context.Context) error {
					_, err := a.orch.PostOriginal(ctx, "")
					return err
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return fatalOnly(err)
			})
		},
	}
	cmd.Flags().Float64Var(&probability, "probability", config.DefaultPostChance, "chance of posting, within [0,1]")
	cmd.Flags().DurationVar(&maxDelay, "max-delay", config.DefaultMaxDelay, "upper bound of the random delay")
	return cmd
}

// lineTrigger signals once per line read from r. Signals are dropped while
// a previous one is still pending.
func lineTrigger(ctx context.Context, r io.Reader) <-chan struct{} {
	ch := make(chan struct{}, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case ch <- struct{}{}:
			case <-ctx.Done():
				return
			default:
			}
		}
	}()
	return ch
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		kinds []string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the most recent ledger entries",
		Long: `List the most recent ledger entries per workflow, newest first. Needs no
credentials; only the ledger is opened.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			selected, err := parseKinds(kinds)
			if err != nil {
				return err
			}
			if limit <= 0 {
				return fmt.Errorf("%w: limit must be positive, got %d", domain.ErrConfig, limit)
			}

			ctx := cmd.Context()
			cfg, _, err := loadConfig(opts, cmd.ErrOrStderr(), config.Requirements{})
			if err != nil {
				return err
			}
			ledger, _, err := storage.Open(ctx, cfg.DatabaseURL, cfg.LedgerPath)
			if err != nil {
				return err
			}
			defer ledger.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tITEM\tRECORDED")
			for _, kind := range selected {
				items, err := ledger.Recent(ctx, kind, limit)
				if err != nil {
					return err
				}
				for _, it := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", it.Kind, it.ItemID, it.RecordedAt.UTC().Format(time.RFC3339))
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "workflows to list (default all)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "entries per workflow")
	return cmd
}

func parseKinds(raw []string) ([]domain.WorkflowKind, error) {
	if len(raw) == 0 {
		return domain.Kinds(), nil
	}
	kinds := make([]domain.WorkflowKind, 0, len(raw))
	for _, r := range raw {
		k := domain.WorkflowKind(strings.ToLower(strings.TrimSpace(r)))
		if !k.Valid() {
			return nil, fmt.Errorf("%w: unknown workflow %q", domain.ErrConfig, r)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
