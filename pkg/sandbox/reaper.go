package sandbox

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically force-removes leftover sandbox_* containers that
// survived a crashed orchestrator process — the SDK equivalent of the
// Python reference's on-demand cleanup_all. Unlike that reference, this
// runs continuously in the background on a ticker, adapted from the
// teacher's retention-sweep pattern: a cancellable loop with an initial
// pass before the first tick.
type Reaper struct {
	driver   *Driver
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReaper creates a background orphan-container sweeper.
func NewReaper(driver *Driver, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reaper{driver: driver, interval: interval}
}

// Start launches the sweep loop. Safe to call once; subsequent calls are
// no-ops.
func (r *Reaper) Start(ctx context.Context) {
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go r.run(ctx)
	slog.Info("sandbox reaper started", "interval", r.interval)
}

// Stop signals the loop to exit and waits for it to finish.
func (r *Reaper) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	slog.Info("sandbox reaper stopped")
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.done)

	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	ids, err := r.driver.ListOrphans(ctx)
	if err != nil {
		slog.Error("sandbox reaper: list failed", "error", err)
		return
	}
	for _, id := range ids {
		if err := r.driver.RemoveContainer(ctx, id); err != nil {
			slog.Warn("sandbox reaper: remove failed", "container", id, "error", err)
			continue
		}
		slog.Info("sandbox reaper: removed orphaned container", "container", id)
	}
}
