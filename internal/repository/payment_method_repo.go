package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawtask/backend/internal/models"
)

type PaymentMethodRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentMethodRepo(pool *pgxpool.Pool) *PaymentMethodRepo {
	return &PaymentMethodRepo{pool: pool}
}

func (r *PaymentMethodRepo) Create(ctx context.Context, pm *models.PaymentMethod) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO payment_methods (id, user_id, type, masked_info, is_default)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, pm.ID, pm.UserID, pm.Type, pm.MaskedInfo, pm.IsDefault).Scan(&pm.CreatedAt)
}

func (r *PaymentMethodRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.PaymentMethod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, type, masked_info, is_default, created_at
		FROM payment_methods WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.PaymentMethod
	for rows.Next() {
		var pm models.PaymentMethod
		if err := rows.Scan(&pm.ID, &pm.UserID, &pm.Type, &pm.MaskedInfo, &pm.IsDefault, &pm.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &pm)
	}
	return list, rows.Err()
}

// DeleteForUser removes a payment method only if it belongs to the user.
// Returns whether a row was deleted.
func (r *PaymentMethodRepo) DeleteForUser(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM payment_methods WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
