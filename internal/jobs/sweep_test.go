package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/backend/internal/lease"
	"github.com/skillswap/backend/internal/services"
)

type fakeFinder struct {
	ids []uuid.UUID
	err error
}

func (f *fakeFinder) ListLearnersWithOrphans(context.Context) ([]uuid.UUID, error) {
	return f.ids, f.err
}

type fakeCleaner struct {
	mu     sync.Mutex
	calls  []uuid.UUID
	perRun services.SweepResult
	failOn uuid.UUID
}

func (c *fakeCleaner) CleanupOrphaned(_ context.Context, id uuid.UUID) (*services.SweepResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == c.failOn {
		return nil, errors.New("boom")
	}
	c.calls = append(c.calls, id)
	res := c.perRun
	return &res, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeper_Run(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	cleaner := &fakeCleaner{perRun: services.SweepResult{Count: 2, TotalRefunded: 3}}
	s := NewSweeper(&fakeFinder{ids: []uuid.UUID{a, b}}, cleaner, lease.NewLocalLocker(), 0, quietLogger())

	sum, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Learners: 2, Bookings: 4, Credits: 6}, sum)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, cleaner.calls)
	assert.Equal(t, DefaultLeaseTTL, s.LeaseTTL)
}

func TestSweeper_SkipsLeasedLearner(t *testing.T) {
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	locker := lease.NewLocalLocker()
	release, ok, err := locker.Acquire(ctx, "orphan-sweep:"+a.String(), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	cleaner := &fakeCleaner{perRun: services.SweepResult{Count: 1, TotalRefunded: 2}}
	s := NewSweeper(&fakeFinder{ids: []uuid.UUID{a, b}}, cleaner, locker, time.Minute, quietLogger())

	sum, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, []uuid.UUID{b}, cleaner.calls)

	// Lease released after the pass, so b can be swept again; a is freed by its holder.
	release()
	sum, err = s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Skipped)
	assert.Len(t, cleaner.calls, 3)
}

func TestSweeper_Errors(t *testing.T) {
	s := NewSweeper(&fakeFinder{err: errors.New("db down")}, &fakeCleaner{}, lease.NewLocalLocker(), 0, quietLogger())
	_, err := s.Run(context.Background())
	assert.Error(t, err)

	bad := uuid.New()
	s = NewSweeper(&fakeFinder{ids: []uuid.UUID{bad}}, &fakeCleaner{failOn: bad}, lease.NewLocalLocker(), 0, quietLogger())
	_, _, err = s.RunFor(context.Background(), bad)
	assert.ErrorContains(t, err, bad.String())

	// A failed cleanup still gives the lease back.
	_, ok, _ := s.Locker.Acquire(context.Background(), "orphan-sweep:"+bad.String(), time.Minute)
	assert.True(t, ok)
}

func TestSweeper_ContinuesPastFailedLearner(t *testing.T) {
	bad, good := uuid.New(), uuid.New()
	cleaner := &fakeCleaner{failOn: bad, perRun: services.SweepResult{Count: 1, TotalRefunded: 2}}
	s := NewSweeper(&fakeFinder{ids: []uuid.UUID{bad, good}}, cleaner, lease.NewLocalLocker(), 0, quietLogger())

	sum, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Learners: 1, Failed: 1, Bookings: 1, Credits: 2}, sum)
	assert.Equal(t, []uuid.UUID{good}, cleaner.calls)
}

func TestSweeper_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cleaner := &fakeCleaner{}
	s := NewSweeper(&fakeFinder{ids: []uuid.UUID{uuid.New()}}, cleaner, lease.NewLocalLocker(), 0, quietLogger())

	_, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cleaner.calls)
}

func TestOrphanSweepWorker(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	cleaner := &fakeCleaner{}
	w := NewOrphanSweepWorker(NewSweeper(&fakeFinder{ids: []uuid.UUID{a, b}}, cleaner, lease.NewLocalLocker(), time.Second, quietLogger()))

	require.NoError(t, w.Work(context.Background(), &river.Job[OrphanSweepArgs]{Args: OrphanSweepArgs{LearnerID: &b}}))
	assert.Equal(t, []uuid.UUID{b}, cleaner.calls)

	require.NoError(t, w.Work(context.Background(), &river.Job[OrphanSweepArgs]{Args: OrphanSweepArgs{}}))
	assert.Len(t, cleaner.calls, 3)

	assert.Equal(t, "orphan_sweep", OrphanSweepArgs{}.Kind())
	assert.Equal(t, 2*time.Second, w.Timeout(nil))
}

func TestSweeper_RunEveryStopsOnCancel(t *testing.T) {
	cleaner := &fakeCleaner{}
	s := NewSweeper(&fakeFinder{ids: []uuid.UUID{uuid.New()}}, cleaner, lease.NewLocalLocker(), 0, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunEvery(ctx, time.Hour)
		close(done)
	}()
	require.Eventually(t, func() bool {
		cleaner.mu.Lock()
		defer cleaner.mu.Unlock()
		return len(cleaner.calls) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEvery did not return after cancel")
	}
}
