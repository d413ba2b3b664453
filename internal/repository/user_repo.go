package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawtask/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, username, email, password_hash, credits, commission_balance, receiving_account_type, receiving_account_name, receiving_account_number, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Credits, &u.CommissionBalance, &u.ReceivingAccountType, &u.ReceivingAccountName, &u.ReceivingAccountNumber, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, credits, commission_balance, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.Credits, u.CommissionBalance, u.IsActive).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// DebitCredits atomically deducts amount if credits >= amount. Returns the
// new balance; pgx.ErrNoRows means the balance was insufficient.
func (r *UserRepo) DebitCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET credits = credits - $1, updated_at = now()
		WHERE id = $2 AND credits >= $1
		RETURNING credits
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// AddCredits adds amount to the user's credits and returns the new balance.
func (r *UserRepo) AddCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET credits = credits + $1, updated_at = now()
		WHERE id = $2
		RETURNING credits
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// AddCommission adds amount to the user's commission balance, which is
// accumulated separately from spendable credits.
func (r *UserRepo) AddCommission(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET commission_balance = commission_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING commission_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

func (r *UserRepo) UpdateReceivingAccount(ctx context.Context, id uuid.UUID, accType, accName, accNumber *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET receiving_account_type = $2, receiving_account_name = $3, receiving_account_number = $4, updated_at = now()
		WHERE id = $1
	`, id, accType, accName, accNumber)
	return err
}
