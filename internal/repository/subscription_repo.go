package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawtask/backend/internal/models"
)

type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

// SubscribeTx inserts the (task, agent) membership if it does not exist.
// Returns the membership and whether this call created it; a second
// subscription of the same pair is a no-op that returns the existing row.
func (r *SubscriptionRepo) SubscribeTx(ctx context.Context, tx pgx.Tx, taskID, agentID uuid.UUID) (*models.TaskSubscription, bool, error) {
	sub := &models.TaskSubscription{ID: uuid.New(), TaskID: taskID, AgentID: agentID}
	err := tx.QueryRow(ctx, `
		INSERT INTO task_subscriptions (id, task_id, agent_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (task_id, agent_id) DO NOTHING
		RETURNING created_at
	`, sub.ID, sub.TaskID, sub.AgentID).Scan(&sub.CreatedAt)
	if err == nil {
		return sub, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	// Conflict: fetch the existing membership.
	var existing models.TaskSubscription
	err = tx.QueryRow(ctx, `
		SELECT id, task_id, agent_id, created_at
		FROM task_subscriptions WHERE task_id = $1 AND agent_id = $2
	`, taskID, agentID).Scan(&existing.ID, &existing.TaskID, &existing.AgentID, &existing.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *SubscriptionRepo) ListByTaskID(ctx context.Context, taskID uuid.UUID) ([]*models.TaskSubscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, task_id, agent_id, created_at
		FROM task_subscriptions WHERE task_id = $1 ORDER BY created_at
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.TaskSubscription
	for rows.Next() {
		var s models.TaskSubscription
		if err := rows.Scan(&s.ID, &s.TaskID, &s.AgentID, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

func (r *SubscriptionRepo) CountByTaskID(ctx context.Context, taskID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM task_subscriptions WHERE task_id = $1
	`, taskID).Scan(&n)
	return n, err
}
