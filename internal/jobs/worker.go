package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// OrphanSweepArgs schedules a sweep. With LearnerID set only that learner is
// swept.
type OrphanSweepArgs struct {
	LearnerID *uuid.UUID `json:"learner_id,omitempty"`
}

func (OrphanSweepArgs) Kind() string { return "orphan_sweep" }

type OrphanSweepWorker struct {
	river.WorkerDefaults[OrphanSweepArgs]
	sweeper *Sweeper
}

func NewOrphanSweepWorker(s *Sweeper) *OrphanSweepWorker {
	return &OrphanSweepWorker{sweeper: s}
}

func (w *OrphanSweepWorker) Work(ctx context.Context, job *river.Job[OrphanSweepArgs]) error {
	if job.Args.LearnerID != nil {
		_, _, err := w.sweeper.RunFor(ctx, *job.Args.LearnerID)
		return err
	}
	_, err := w.sweeper.Run(ctx)
	return err
}

// Timeout keeps a stuck pass from outliving its lease by much.
func (w *OrphanSweepWorker) Timeout(*river.Job[OrphanSweepArgs]) time.Duration {
	return 2 * w.sweeper.LeaseTTL
}

// NewClient builds a river client with the sweep worker registered and a
// periodic sweep every interval, the first one at start.
func NewClient(pool *pgxpool.Pool, sweeper *Sweeper, interval time.Duration) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewOrphanSweepWorker(sweeper))

	return river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 4},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(interval),
				func() (river.JobArgs, *river.InsertOpts) {
					return OrphanSweepArgs{}, &river.InsertOpts{
						UniqueOpts: river.UniqueOpts{ByPeriod: interval},
					}
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
}
