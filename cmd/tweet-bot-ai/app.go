package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/agent"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/brain"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/config"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/ports"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/logging"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/sites/twitter"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/storage"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/ui/telegram"
)

// app holds the wired collaborators for one invocation.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	ledger ports.Ledger
	orch   *agent.Orchestrator
}

// loadConfig reads configuration and checks the credentials req needs.
// Nothing is opened or dialled before this succeeds.
func loadConfig(opts *rootOptions, stderr io.Writer, req config.Requirements) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.configPath, opts.envFiles...)
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(req); err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func newApp(ctx context.Context, opts *rootOptions, stderr io.Writer, req config.Requirements) (*app, error) {
	cfg, log, err := loadConfig(opts, stderr, req)
	if err != nil {
		return nil, err
	}

	ledger, backend, err := storage.Open(ctx, cfg.DatabaseURL, cfg.LedgerPath)
	if err != nil {
		return nil, err
	}
	log.Debug("ledger opened", slog.String("backend", string(backend)))

	a := &app{cfg: cfg, log: log, ledger: ledger}
	if err := a.wire(ctx, req); err != nil {
		ledger.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, req config.Requirements) error {
	notifier, err := telegram.NewNotifier(a.cfg.TelegramToken, a.cfg.TelegramChatID)
	if err != nil {
		return err
	}

	var gen ports.Generator
	if req.Generator {
		gen, err = brain.NewGeminiBrain(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModels, a.log)
		if err != nil {
			return err
		}
	}

	social, err := twitter.NewClient(a.cfg.Twitter, a.log)
	if err != nil {
		return err
	}

	a.orch = agent.New(a.cfg, gen, social, a.ledger, notifier, a.log)
	return nil
}

func (a *app) Close() {
	if err := a.ledger.Close(); err != nil {
		a.log.Warn("closing ledger", slog.Any("error", err))
	}
}

// healthCheck probes the ledger with a read.
func (a *app) healthCheck(ctx context.Context) error {
	_, err := a.ledger.Contains(ctx, domain.KindPost, "healthz")
	return err
}
