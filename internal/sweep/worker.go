package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

type SweepExpiredBoostsArgs struct{}

func (SweepExpiredBoostsArgs) Kind() string { return "sweep_expired_boosts" }

// BoostSweeper deactivates boost instances past their end instant.
type BoostSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Worker runs the boost expiry sweep. The sweep is idempotent and has no
// ordering dependency on foreground requests, so overlapping or repeated
// runs are harmless.
type Worker struct {
	river.WorkerDefaults[SweepExpiredBoostsArgs]
	boosts BoostSweeper
	log    *slog.Logger
}

func NewWorker(boosts BoostSweeper, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{boosts: boosts, log: log}
}

func (w *Worker) Work(ctx context.Context, _ *river.Job[SweepExpiredBoostsArgs]) error {
	count, err := w.boosts.SweepExpired(ctx, time.Now())
	if err != nil {
		return err
	}
	if count > 0 {
		w.log.Info("deactivated expired boosts", "count", count)
	}
	return nil
}

// PeriodicJob returns the periodic schedule for the sweep, run once at start
// and then at every interval.
func PeriodicJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return SweepExpiredBoostsArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
