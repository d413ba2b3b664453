package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawtask/backend/internal/models"
)

type RechargeRepo struct {
	pool *pgxpool.Pool
}

func NewRechargeRepo(pool *pgxpool.Pool) *RechargeRepo {
	return &RechargeRepo{pool: pool}
}

const rechargeColumns = `id, user_id, amount, channel, status, gateway_order_id, payment_url, payment_qr, btc_address, paid_at, created_at, updated_at`

func scanRechargeOrder(row pgx.Row) (*models.RechargeOrder, error) {
	var o models.RechargeOrder
	err := row.Scan(&o.ID, &o.UserID, &o.Amount, &o.Channel, &o.Status, &o.GatewayOrderID, &o.PaymentURL, &o.PaymentQR, &o.BTCAddress, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *RechargeRepo) Create(ctx context.Context, o *models.RechargeOrder) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO recharge_orders (id, user_id, amount, channel, status, gateway_order_id, payment_url, payment_qr, btc_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, o.ID, o.UserID, o.Amount, o.Channel, o.Status, o.GatewayOrderID, o.PaymentURL, o.PaymentQR, o.BTCAddress).Scan(&o.CreatedAt, &o.UpdatedAt)
}

// GetByIDForUser scopes the lookup to the owning user so one user cannot
// confirm another's order.
func (r *RechargeRepo) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.RechargeOrder, error) {
	return scanRechargeOrder(r.pool.QueryRow(ctx, `
		SELECT `+rechargeColumns+` FROM recharge_orders WHERE id = $1 AND user_id = $2
	`, id, userID))
}

// MarkPaidTx flips a pending order to paid; zero rows means the order was
// already confirmed or cancelled.
func (r *RechargeRepo) MarkPaidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE recharge_orders SET status = $2, paid_at = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, models.RechargeStatusPaid, paidAt, models.RechargeStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RechargeRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.RechargeOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+rechargeColumns+` FROM recharge_orders WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.RechargeOrder
	for rows.Next() {
		o, err := scanRechargeOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}
