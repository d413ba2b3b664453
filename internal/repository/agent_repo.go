package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawtask/backend/internal/models"
)

type AgentRepo struct {
	pool *pgxpool.Pool
}

func NewAgentRepo(pool *pgxpool.Pool) *AgentRepo {
	return &AgentRepo{pool: pool}
}

const agentColumns = `id, owner_id, name, description, is_active, created_at, updated_at`

func (r *AgentRepo) Create(ctx context.Context, ag *models.Agent) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO agents (id, owner_id, name, description, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, ag.ID, ag.OwnerID, ag.Name, ag.Description, ag.IsActive).Scan(&ag.CreatedAt, &ag.UpdatedAt)
}

func (r *AgentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var ag models.Agent
	err := r.pool.QueryRow(ctx, `
		SELECT `+agentColumns+` FROM agents WHERE id = $1
	`, id).Scan(&ag.ID, &ag.OwnerID, &ag.Name, &ag.Description, &ag.IsActive, &ag.CreatedAt, &ag.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ag, nil
}

func (r *AgentRepo) ListByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*models.Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+agentColumns+` FROM agents WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Agent
	for rows.Next() {
		var ag models.Agent
		if err := rows.Scan(&ag.ID, &ag.OwnerID, &ag.Name, &ag.Description, &ag.IsActive, &ag.CreatedAt, &ag.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &ag)
	}
	return list, rows.Err()
}
