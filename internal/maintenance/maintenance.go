// Package maintenance runs periodic background tasks as Go tickers.
// All scheduled housekeeping is driven from Go since the notifier is already
// a persistent, long-running service (required for LISTEN/NOTIFY).
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/clubsync/notifier/internal/ledger"
	"github.com/clubsync/notifier/internal/scheduler"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	PruneInterval   time.Duration // Ledger retention pruning
	LedgerRetention time.Duration // How long fired occurrences are kept
	ResyncInterval  time.Duration // Registry catch-up against the store
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		PruneInterval:   1 * time.Hour,
		LedgerRetention: 90 * 24 * time.Hour,
		ResyncInterval:  15 * time.Minute,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, led *ledger.PG, core *scheduler.Core, store scheduler.Lister, cfg Config, logger *slog.Logger) {
	logger.Info("maintenance tickers started",
		"prune", cfg.PruneInterval,
		"retention", cfg.LedgerRetention,
		"resync", cfg.ResyncInterval)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	// Prune: drop ledger records past the retention window
	if cfg.PruneInterval > 0 {
		t := time.NewTicker(cfg.PruneInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { prune(ctx, led, cfg.LedgerRetention, logger) })
	}

	// Resync: re-arm notifications created or deleted outside this process.
	// Occurrences missed during downtime stay missed; the sweep only restores
	// the registry, it never fires retroactively.
	if cfg.ResyncInterval > 0 {
		t := time.NewTicker(cfg.ResyncInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { resync(ctx, core, store, logger) })
	}

	<-ctx.Done()
	logger.Info("maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

func prune(ctx context.Context, led *ledger.PG, retention time.Duration, logger *slog.Logger) {
	removed, err := led.Prune(ctx, int(retention.Hours()))
	if err != nil {
		logger.Warn("prune: failed to purge old ledger records", "error", err)
		return
	}
	if removed > 0 {
		logger.Info("prune: purged old ledger records", "count", removed)
	}
}

func resync(ctx context.Context, core *scheduler.Core, store scheduler.Lister, logger *slog.Logger) {
	added, removed, err := core.Resync(ctx, store)
	if err != nil {
		logger.Warn("resync failed", "error", err)
		return
	}
	if added+removed > 0 {
		logger.Info("registry resynced", "armed", added, "deregistered", removed)
	}
}
