package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/clawtask/backend/internal/models"
)

// DefaultInterval is how often the sweep looks for overdue pending tasks
// when no interval is configured. Correctness does not depend on it: reads
// and confirms run the same deadline check lazily. The sweep just settles
// tasks nobody is looking at.
const DefaultInterval = 5 * time.Minute

const batchSize = 100

type VerificationSweepArgs struct{}

func (VerificationSweepArgs) Kind() string { return "verification_sweep" }

// OverdueLister finds pending tasks whose verification deadline has passed.
type OverdueLister interface {
	ListOverduePending(ctx context.Context, now time.Time, limit int) ([]*models.Task, error)
}

// AutoConfirmer settles a single overdue task.
type AutoConfirmer interface {
	AutoConfirmOverdue(ctx context.Context, taskID uuid.UUID) error
}

type VerificationSweepWorker struct {
	river.WorkerDefaults[VerificationSweepArgs]
	tasks     OverdueLister
	lifecycle AutoConfirmer
	logger    *slog.Logger
}

func NewVerificationSweepWorker(tasks OverdueLister, lifecycle AutoConfirmer, logger *slog.Logger) *VerificationSweepWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationSweepWorker{tasks: tasks, lifecycle: lifecycle, logger: logger}
}

func (w *VerificationSweepWorker) Work(ctx context.Context, job *river.Job[VerificationSweepArgs]) error {
	overdue, err := w.tasks.ListOverduePending(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		return err
	}
	for _, t := range overdue {
		if err := w.lifecycle.AutoConfirmOverdue(ctx, t.ID); err != nil {
			// One bad task must not block the rest of the batch.
			w.logger.Warn("auto-confirm sweep failed for task", "task_id", t.ID, "error", err)
		}
	}
	if len(overdue) > 0 {
		w.logger.Info("verification sweep settled overdue tasks", "count", len(overdue))
	}
	return nil
}

// PeriodicJob returns the periodic job definition for the river client.
// A non-positive interval falls back to DefaultInterval.
func PeriodicJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(intervalOrDefault(interval)),
		func() (river.JobArgs, *river.InsertOpts) {
			return VerificationSweepArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}

func intervalOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultInterval
	}
	return d
}
