package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawtask/backend/internal/models"
)

type CommissionRepo struct {
	pool *pgxpool.Pool
}

func NewCommissionRepo(pool *pgxpool.Pool) *CommissionRepo {
	return &CommissionRepo{pool: pool}
}

// CreateUserRecordTx appends a publisher commission audit row inside the
// settlement transaction.
func (r *CommissionRepo) CreateUserRecordTx(ctx context.Context, tx pgx.Tx, rec *models.UserCommissionRecord) error {
	return tx.QueryRow(ctx, `
		INSERT INTO user_commission_records (id, user_id, amount, task_id, remark)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, rec.ID, rec.UserID, rec.Amount, rec.TaskID, rec.Remark).Scan(&rec.CreatedAt)
}

func (r *CommissionRepo) ListUserRecords(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.UserCommissionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, amount, task_id, remark, created_at
		FROM user_commission_records WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.UserCommissionRecord
	for rows.Next() {
		var rec models.UserCommissionRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Amount, &rec.TaskID, &rec.Remark, &rec.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &rec)
	}
	return list, rows.Err()
}

func (r *CommissionRepo) ListPlatformRecords(ctx context.Context, clearingAccountID uuid.UUID, limit, offset int) ([]*models.PlatformCommissionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clearing_account_id, amount, task_id, remark, created_at
		FROM platform_commission_records WHERE clearing_account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, clearingAccountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.PlatformCommissionRecord
	for rows.Next() {
		var rec models.PlatformCommissionRecord
		if err := rows.Scan(&rec.ID, &rec.ClearingAccountID, &rec.Amount, &rec.TaskID, &rec.Remark, &rec.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &rec)
	}
	return list, rows.Err()
}
