// Package sweeper runs SweepExpired on a fixed interval.
package sweeper

import (
	"context"
	"time"

	"carrental/pkg/clock"
	"carrental/pkg/logger"
)

type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) ([]string, error)
}

type Worker struct {
	ledger   Sweeper
	clock    clock.Clock
	interval time.Duration
	log      *logger.Logger
}

func New(ledger Sweeper, clk clock.Clock, interval time.Duration, log *logger.Logger) *Worker {
	return &Worker{
		ledger:   ledger,
		clock:    clk,
		interval: interval,
		log:      log,
	}
}

func (w *Worker) Name() string {
	return "availability-sweeper"
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("Availability sweeper started", "interval", w.interval)
	for {
		w.runOnce(ctx)

		select {
		case <-ctx.Done():
			w.log.Info("Availability sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	released, err := w.ledger.SweepExpired(ctx, w.clock.Now())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.log.Error("Sweep pass failed", "released", len(released), "error", err)
		return
	}
	if len(released) > 0 {
		w.log.Debug("Sweep pass finished", "released", len(released))
	}
}
