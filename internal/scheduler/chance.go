package scheduler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Gate runs a cycle with probability Probability, after a uniform random
// delay in [0, MaxDelay] at one-second granularity.
type Gate struct {
	Probability float64
	MaxDelay    time.Duration
	Log         *slog.Logger

	rand  *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// Run reports whether the cycle ran. A skipped draw is not an error.
func (g *Gate) Run(ctx context.Context, cycle Cycle) (bool, error) {
	log := g.Log
	if log == nil {
		log = slog.Default()
	}
	float, intN := rand.Float64, rand.IntN
	if g.rand != nil {
		float, intN = g.rand.Float64, g.rand.IntN
	}
	sleep := g.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	if float() >= g.Probability {
		log.Info("skipping this run", slog.Float64("probability", g.Probability))
		return false, nil
	}

	var delay time.Duration
	if secs := int(g.MaxDelay / time.Second); secs > 0 {
		delay = time.Duration(intN(secs+1)) * time.Second
	}
	log.Info("running after delay", slog.Duration("delay", delay))
	if err := sleep(ctx, delay); err != nil {
		return false, err
	}
	return true, cycle(ctx)
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
