// Package scheduler drives the post workflow on a fixed interval, or once
// behind a random gate.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Cycle is one unit of scheduled work.
type Cycle func(ctx context.Context) error

// Loop runs Cycle once immediately and then on every Interval tick until
// ctx is cancelled. Cycles never overlap. A failing or panicking cycle is
// logged and the loop carries on.
type Loop struct {
	Interval time.Duration
	Cycle    Cycle
	// Trigger, when non-nil, starts an extra cycle on each receive.
	Trigger <-chan struct{}
	Log     *slog.Logger

	newTicker func(d time.Duration) (<-chan time.Time, func())
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Run blocks until ctx is done and returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	if l.Interval <= 0 {
		return fmt.Errorf("scheduler: interval must be positive, got %s", l.Interval)
	}
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	newTicker := l.newTicker
	if newTicker == nil {
		newTicker = realTicker
	}

	log.Info("scheduler started", slog.Duration("interval", l.Interval))
	l.runCycle(ctx, log, "startup")

	tick, stop := newTicker(l.Interval)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return ctx.Err()
		case <-tick:
			l.runCycle(ctx, log, "interval")
		case <-l.Trigger:
			l.runCycle(ctx, log, "manual")
		}
	}
}

func (l *Loop) runCycle(ctx context.Context, log *slog.Logger, reason string) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			log.Error("cycle panicked", slog.String("reason", reason), slog.Any("panic", p))
		}
	}()

	log.Debug("cycle starting", slog.String("reason", reason))
	if err := l.Cycle(ctx); err != nil {
		log.Error("cycle failed", slog.String("reason", reason), slog.Any("error", err))
		return
	}
	log.Debug("cycle done", slog.String("reason", reason), slog.Duration("took", time.Since(start)))
}
