// Package jobs runs the orphan sweep in the background: a river periodic
// job against Postgres, or a plain ticker when running on the memory store.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/backend/internal/lease"
	"github.com/skillswap/backend/internal/services"
)

// DefaultLeaseTTL bounds how long one sweeper may hold a learner.
const DefaultLeaseTTL = 30 * time.Second

// OrphanFinder lists learners that hold Requested bookings against a deleted teacher.
type OrphanFinder interface {
	ListLearnersWithOrphans(ctx context.Context) ([]uuid.UUID, error)
}

// Cleaner refunds one learner's orphaned bookings.
type Cleaner interface {
	CleanupOrphaned(ctx context.Context, learnerID uuid.UUID) (*services.SweepResult, error)
}

// Summary reports one sweep pass.
type Summary struct {
	Learners int `json:"learners"`
	Skipped  int `json:"skipped"`
	Bookings int `json:"bookings"`
	Credits  int `json:"credits"`
	Failed   int `json:"failed"`
}

type Sweeper struct {
	Finder   OrphanFinder
	Cleaner  Cleaner
	Locker   lease.Locker
	LeaseTTL time.Duration
	Logger   *slog.Logger
}

func NewSweeper(finder OrphanFinder, cleaner Cleaner, locker lease.Locker, ttl time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &Sweeper{Finder: finder, Cleaner: cleaner, Locker: locker, LeaseTTL: ttl, Logger: logger}
}

// Run sweeps every learner with orphaned requests. A learner whose lease is
// held elsewhere is skipped; the next pass picks them up. A learner whose
// cleanup fails is logged and counted in Failed without stopping the pass.
func (s *Sweeper) Run(ctx context.Context) (Summary, error) {
	learners, err := s.Finder.ListLearnersWithOrphans(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list learners with orphans: %w", err)
	}
	var sum Summary
	for _, id := range learners {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		ok, res, err := s.RunFor(ctx, id)
		if err != nil {
			s.Logger.Error("orphan sweep failed for learner", "learner_id", id, "error", err)
			sum.Failed++
			continue
		}
		if !ok {
			sum.Skipped++
			continue
		}
		sum.Learners++
		sum.Bookings += res.Count
		sum.Credits += res.TotalRefunded
	}
	if sum.Bookings > 0 || sum.Skipped > 0 || sum.Failed > 0 {
		s.Logger.Info("orphan sweep finished", "learners", sum.Learners, "skipped", sum.Skipped, "failed", sum.Failed, "bookings", sum.Bookings, "credits", sum.Credits)
	}
	return sum, nil
}

// RunFor sweeps a single learner under the lease. ok is false when another
// sweeper holds it.
func (s *Sweeper) RunFor(ctx context.Context, learnerID uuid.UUID) (bool, *services.SweepResult, error) {
	release, ok, err := s.Locker.Acquire(ctx, "orphan-sweep:"+learnerID.String(), s.LeaseTTL)
	if err != nil {
		return false, nil, fmt.Errorf("acquire sweep lease: %w", err)
	}
	if !ok {
		s.Logger.Debug("sweep lease held elsewhere", "learner_id", learnerID)
		return false, nil, nil
	}
	defer release()

	res, err := s.Cleaner.CleanupOrphaned(ctx, learnerID)
	if err != nil {
		return false, nil, fmt.Errorf("cleanup orphaned for %s: %w", learnerID, err)
	}
	return true, res, nil
}

// RunEvery sweeps on a fixed interval until ctx is done. Errors are logged
// and the loop keeps going.
func (s *Sweeper) RunEvery(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
			s.Logger.Error("orphan sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
