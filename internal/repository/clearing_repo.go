package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawtask/backend/internal/models"
)

type ClearingRepo struct {
	pool *pgxpool.Pool
}

func NewClearingRepo(pool *pgxpool.Pool) *ClearingRepo {
	return &ClearingRepo{pool: pool}
}

// GetOrCreate returns the singleton clearing account, creating it with a
// zero balance on first use. The insert is idempotent under concurrency.
func (r *ClearingRepo) GetOrCreate(ctx context.Context) (*models.ClearingAccount, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clearing_accounts (id, balance)
		VALUES ($1, 0)
		ON CONFLICT (id) DO NOTHING
	`, models.ClearingAccountID)
	if err != nil {
		return nil, err
	}
	var acc models.ClearingAccount
	err = r.pool.QueryRow(ctx, `
		SELECT id, balance, alipay_account, alipay_name, updated_at
		FROM clearing_accounts WHERE id = $1
	`, models.ClearingAccountID).Scan(&acc.ID, &acc.Balance, &acc.AlipayAccount, &acc.AlipayName, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// UpdatePayoutIdentity sets the external payout fields. Nil leaves a field
// unchanged; an empty string clears it.
func (r *ClearingRepo) UpdatePayoutIdentity(ctx context.Context, alipayAccount, alipayName *string) (*models.ClearingAccount, error) {
	acc, err := r.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	if alipayAccount != nil {
		v := *alipayAccount
		if v == "" {
			acc.AlipayAccount = nil
		} else {
			acc.AlipayAccount = &v
		}
	}
	if alipayName != nil {
		v := *alipayName
		if v == "" {
			acc.AlipayName = nil
		} else {
			acc.AlipayName = &v
		}
	}
	err = r.pool.QueryRow(ctx, `
		UPDATE clearing_accounts SET alipay_account = $2, alipay_name = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, acc.ID, acc.AlipayAccount, acc.AlipayName).Scan(&acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return acc, nil
}
