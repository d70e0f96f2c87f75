package cases

import (
	"context"
	"time"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/obs"
)

const (
	// DefaultMaxAge is how long punitive records are retained.
	DefaultMaxAge = 14 * 24 * time.Hour
	// DefaultPruneInterval is how often the pruner re-runs after startup.
	DefaultPruneInterval = 24 * time.Hour
)

// StartPruner prunes the ledger once immediately and then on every interval
// tick until the context ends. It runs independently of command handling.
func StartPruner(ctx context.Context, svc Service, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	go func() {
		prune(ctx, svc, maxAge)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prune(ctx, svc, maxAge)
			}
		}
	}()
}

func prune(ctx context.Context, svc Service, maxAge time.Duration) {
	removed, err := svc.Prune(ctx, maxAge)
	if err != nil {
		obs.Error("case prune failed", err, nil)
		return
	}
	if removed > 0 {
		obs.Info("case prune complete", map[string]any{"removed": removed})
	}
}
