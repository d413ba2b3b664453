package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawtask/backend/internal/models"
)

type CreditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

// CreateTx appends a transaction row inside the given transaction. Rows are
// immutable once written; there is no update or delete path.
func (r *CreditRepo) CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, type, ref_id, remark, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, c.ID, c.UserID, c.Amount, c.Type, c.RefID, c.Remark, c.BalanceAfter).Scan(&c.CreatedAt)
}

func (r *CreditRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.CreditTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, amount, type, ref_id, remark, balance_after, created_at
		FROM credit_transactions WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditTransaction
	for rows.Next() {
		var c models.CreditTransaction
		if err := rows.Scan(&c.ID, &c.UserID, &c.Amount, &c.Type, &c.RefID, &c.Remark, &c.BalanceAfter, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

func (r *CreditRepo) ListByRefID(ctx context.Context, refID uuid.UUID) ([]*models.CreditTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, amount, type, ref_id, remark, balance_after, created_at
		FROM credit_transactions WHERE ref_id = $1
		ORDER BY created_at DESC
	`, refID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditTransaction
	for rows.Next() {
		var c models.CreditTransaction
		if err := rows.Scan(&c.ID, &c.UserID, &c.Amount, &c.Type, &c.RefID, &c.Remark, &c.BalanceAfter, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}
