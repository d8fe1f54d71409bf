package exporter

import (
	"context"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/MatteoMori/vaultmonitor/pkg/monitor"
)

// Poller refreshes every monitor once per Interval.
type Poller struct {
	Monitors []monitor.Monitor
	Interval time.Duration
	// Observe, when set, is told about every sweep.
	Observe func(duration time.Duration, err error)
}

// Sweep updates the monitors in order and stops at the first error.
func (p *Poller) Sweep(ctx context.Context) error {
	for _, m := range p.Monitors {
		if err := m.Update(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run sweeps right away and then Interval after the end of each sweep. It returns nil once ctx is
// cancelled, or the error of the first failing sweep.
func (p *Poller) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sweepErr error
	wait.UntilWithContext(runCtx, func(runCtx context.Context) {
		start := time.Now()
		err := p.Sweep(runCtx)
		elapsed := time.Since(start)

		// Shutting down, not failing.
		if err != nil && ctx.Err() != nil {
			return
		}
		if p.Observe != nil {
			p.Observe(elapsed, err)
		}
		if err != nil {
			slog.Error("Sweep failed", slog.Any("error", err))
			sweepErr = err
			cancel()
			return
		}
		slog.Debug("Sweep done", slog.Int("monitors", len(p.Monitors)), slog.Duration("duration", elapsed))
	}, p.Interval)

	return sweepErr
}
