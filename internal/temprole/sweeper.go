package temprole

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/obs"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/platform"
)

// DefaultSweepInterval is short on purpose. Grants are expected in the
// minutes-to-hours range and operators notice a role lingering.
const DefaultSweepInterval = 10 * time.Second

// Sweeper periodically expires grants and removes the role on the platform.
type Sweeper struct {
	store    *Store
	client   platform.Client
	interval time.Duration
	running  sync.Mutex
}

func NewSweeper(store *Store, client platform.Client, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{store: store, client: client, interval: interval}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep processes every expired grant once. A sweep already in flight makes
// the call a no-op; overlapping sweeps would race on the same keys.
func (s *Sweeper) Sweep(ctx context.Context) {
	if !s.running.TryLock() {
		return
	}
	defer s.running.Unlock()

	expired, err := s.store.Expired(ctx)
	if err != nil {
		obs.Error("temprole: snapshot expired grants", err, nil)
		return
	}
	removed := 0
	for _, g := range expired {
		s.expire(ctx, g)
		removed++
	}
	obs.SweepRan(removed)
	if removed > 0 {
		obs.Info("temprole: sweep expired grants", map[string]any{"removed": removed})
	}
}

// expire attempts the external role removal and then unconditionally drops
// the tracking record. A grant whose scope, subject or role no longer exists
// is cleaned up without an external call; a removal that fails for any other
// reason is logged but not retried, the deadline has passed and retrying a
// permanently failing removal would loop forever.
func (s *Sweeper) expire(ctx context.Context, g Grant) {
	defer s.store.remove(g.ScopeID, g.SubjectID, g.RoleID)

	if _, err := s.client.Guild(ctx, g.ScopeID); err != nil {
		return
	}
	member, err := s.client.Member(ctx, g.ScopeID, g.SubjectID)
	if err != nil {
		return
	}
	if _, err := s.client.Role(ctx, g.ScopeID, g.RoleID); err != nil {
		return
	}
	if !member.HasRole(g.RoleID) {
		return
	}
	if err := s.client.RemoveRole(ctx, g.ScopeID, g.SubjectID, g.RoleID, "Temporary role expired"); err != nil && !errors.Is(err, platform.ErrNotFound) {
		obs.Error("temprole: remove expired role", err, map[string]any{
			"scope":   g.ScopeID,
			"subject": g.SubjectID,
			"role":    g.RoleID,
		})
	}
}
