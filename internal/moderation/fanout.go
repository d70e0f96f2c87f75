package moderation

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/obs"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/platform"
)

// Target statuses for one scope in a batch operation.
const (
	StatusSucceeded = "succeeded"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// ScopeOutcome is the result of applying a batch operation to one scope.
type ScopeOutcome struct {
	ScopeID string
	Status  string
	Err     error
}

// BatchResult aggregates the per-scope outcomes of a fan-out. Batches are
// partial-failure tolerant: one failing scope never aborts the rest.
type BatchResult struct {
	Outcomes []ScopeOutcome
}

func (r BatchResult) count(status string) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

func (r BatchResult) Succeeded() int { return r.count(StatusSucceeded) }
func (r BatchResult) Skipped() int   { return r.count(StatusSkipped) }
func (r BatchResult) Failed() int    { return r.count(StatusFailed) }

// fanOutLimit bounds concurrent platform mutations in one batch.
const fanOutLimit = 4

// errTargetSkipped marks a target already in the desired state; it counts as
// skipped, not failed.
var errTargetSkipped = errors.New("moderation: target needs no action")

// fanOut applies fn to every guild concurrently and collects outcomes. A
// not-found error from fn counts as skipped; the target cannot be acted upon
// and that is not a failure of the batch.
func (s *Service) fanOut(ctx context.Context, guilds []platform.Guild, fn func(context.Context, platform.Guild) error) BatchResult {
	var (
		mu  sync.Mutex
		res BatchResult
	)
	g := new(errgroup.Group)
	g.SetLimit(fanOutLimit)
	for _, guild := range guilds {
		guild := guild
		g.Go(func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				mu.Lock()
				res.Outcomes = append(res.Outcomes, ScopeOutcome{ScopeID: guild.ID, Status: StatusFailed, Err: err})
				mu.Unlock()
				return nil
			}
			outcome := ScopeOutcome{ScopeID: guild.ID, Status: StatusSucceeded}
			if err := fn(ctx, guild); err != nil {
				if errors.Is(err, platform.ErrNotFound) || errors.Is(err, errTargetSkipped) {
					outcome.Status = StatusSkipped
				} else {
					outcome.Status = StatusFailed
					outcome.Err = err
					obs.Error("moderation: fan-out target failed", err, map[string]any{"scope": guild.ID})
				}
			}
			obs.FanoutTarget(outcome.Status)
			mu.Lock()
			res.Outcomes = append(res.Outcomes, outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return res
}
