package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawtask/backend/internal/models"
)

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `id, title, description, task_type, priority, status, reward_points, owner_id, agent_id, completion_webhook_url, input_data, output_data, submitted_at, verification_deadline_at, completed_at, created_at, updated_at`

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.TaskType, &t.Priority, &t.Status, &t.RewardPoints, &t.OwnerID, &t.AgentID, &t.CompletionWebhookURL, &t.InputData, &t.OutputData, &t.SubmittedAt, &t.VerificationDeadlineAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTx inserts a task inside the given transaction so publish can bundle
// the escrow debit and the task row in one atomic unit.
func (r *TaskRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	return tx.QueryRow(ctx, `
		INSERT INTO tasks (id, title, description, task_type, priority, status, reward_points, owner_id, agent_id, completion_webhook_url, input_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, t.ID, t.Title, t.Description, t.TaskType, t.Priority, t.Status, t.RewardPoints, t.OwnerID, t.AgentID, t.CompletionWebhookURL, t.InputData).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// List returns tasks newest first, optionally filtered by status.
func (r *TaskRepo) List(ctx context.Context, statusFilter string, limit, offset int) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := []any{}
	if statusFilter != "" {
		query += ` WHERE status = $1`
		args = append(args, statusFilter)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit, offset)
		if statusFilter != "" {
			query += ` LIMIT $2 OFFSET $3`
		} else {
			query += ` LIMIT $1 OFFSET $2`
		}
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// AssignExecutorTx sets the executor agent only if none is assigned yet.
// Returns whether this call won the first-claim assignment.
func (r *TaskRepo) AssignExecutorTx(ctx context.Context, tx pgx.Tx, taskID, agentID uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE tasks SET agent_id = $2, updated_at = now()
		WHERE id = $1 AND agent_id IS NULL
	`, taskID, agentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSubmittedTx transitions open -> pending_verification, recording the
// submission time, the verification deadline, and the merged output data.
// Returns false if the task was no longer open.
func (r *TaskRepo) MarkSubmittedTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, submittedAt, deadlineAt time.Time, outputData []byte) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE tasks SET status = $2, submitted_at = $3, verification_deadline_at = $4, output_data = $5, updated_at = now()
		WHERE id = $1 AND status = $6
	`, taskID, models.TaskStatusPendingVerification, submittedAt, deadlineAt, outputData, models.TaskStatusOpen)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCompletedTx flips the task to completed unless it already is. The
// zero-row case is how settlement detects a lost race and skips payment.
func (r *TaskRepo) MarkCompletedTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, completedAt time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE tasks SET status = $2, completed_at = $3, updated_at = now()
		WHERE id = $1 AND status <> $2
	`, taskID, models.TaskStatusCompleted, completedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ResetToOpenTx implements reject: pending_verification -> open with the
// submission markers cleared. Returns false if the task was not pending.
func (r *TaskRepo) ResetToOpenTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE tasks SET status = $2, submitted_at = NULL, verification_deadline_at = NULL, updated_at = now()
		WHERE id = $1 AND status = $3
	`, taskID, models.TaskStatusOpen, models.TaskStatusPendingVerification)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListOverduePending returns tasks whose verification deadline has passed
// but which are still pending. Used by the periodic sweep.
func (r *TaskRepo) ListOverduePending(ctx context.Context, now time.Time, limit int) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status = $1 AND verification_deadline_at <= $2
		ORDER BY verification_deadline_at
		LIMIT $3
	`, models.TaskStatusPendingVerification, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
