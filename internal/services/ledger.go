package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clawtask/backend/internal/models"
)

// LedgerUserRepo is the minimal user repository interface for the ledger.
type LedgerUserRepo interface {
	DebitCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	AddCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	AddCommission(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
}

// LedgerCreditRepo appends transaction rows.
type LedgerCreditRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditTransaction) error
}

// LedgerCommissionRepo appends publisher commission audit rows.
type LedgerCommissionRepo interface {
	CreateUserRecordTx(ctx context.Context, tx pgx.Tx, rec *models.UserCommissionRecord) error
}

// LedgerService provides the debit/credit primitives. Every balance change
// and its explaining transaction row are written inside the caller's
// transaction, so the credits column stays a materialized view of the log.
type LedgerService struct {
	Users       LedgerUserRepo
	Credits     LedgerCreditRepo
	Commissions LedgerCommissionRepo
}

func NewLedgerService(users LedgerUserRepo, credits LedgerCreditRepo, commissions LedgerCommissionRepo) *LedgerService {
	return &LedgerService{Users: users, Credits: credits, Commissions: commissions}
}

// Debit removes amount from the user's spendable credits and appends a
// transaction row with the negative amount. Fails with ErrInsufficientFunds
// when the balance is too low; the balance check and decrement are a single
// conditional update, so concurrent debits cannot drive credits negative.
func (s *LedgerService) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType string, ref *uuid.UUID, remark string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit amount must be positive", ErrValidation)
	}
	newBalance, err := s.Users.DebitCredits(ctx, tx, userID, amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInsufficientFunds
		}
		return err
	}
	return s.Credits.CreateTx(ctx, tx, &models.CreditTransaction{
		ID:           uuid.New(),
		UserID:       userID,
		Amount:       -amount,
		Type:         entryType,
		RefID:        ref,
		Remark:       remark,
		BalanceAfter: intPtr(newBalance),
	})
}

// Credit adds amount to the user's spendable credits and appends a
// transaction row with the positive amount.
func (s *LedgerService) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType string, ref *uuid.UUID, remark string) error {
	if amount < 0 {
		return fmt.Errorf("%w: credit amount must not be negative", ErrValidation)
	}
	newBalance, err := s.Users.AddCredits(ctx, tx, userID, amount)
	if err != nil {
		return err
	}
	return s.Credits.CreateTx(ctx, tx, &models.CreditTransaction{
		ID:           uuid.New(),
		UserID:       userID,
		Amount:       amount,
		Type:         entryType,
		RefID:        ref,
		Remark:       remark,
		BalanceAfter: intPtr(newBalance),
	})
}

// CreditCommission adds amount to the user's commission balance, which is
// kept apart from spendable credits, and records both a user_commission
// transaction row (balance_after is the commission balance) and a
// commission audit record.
func (s *LedgerService) CreditCommission(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, taskID uuid.UUID, remark string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: commission amount must be positive", ErrValidation)
	}
	newBalance, err := s.Users.AddCommission(ctx, tx, userID, amount)
	if err != nil {
		return err
	}
	ref := taskID
	if err := s.Credits.CreateTx(ctx, tx, &models.CreditTransaction{
		ID:           uuid.New(),
		UserID:       userID,
		Amount:       amount,
		Type:         models.CreditTypeUserCommission,
		RefID:        &ref,
		Remark:       remark,
		BalanceAfter: intPtr(newBalance),
	}); err != nil {
		return err
	}
	return s.Commissions.CreateUserRecordTx(ctx, tx, &models.UserCommissionRecord{
		ID:     uuid.New(),
		UserID: userID,
		Amount: amount,
		TaskID: &ref,
		Remark: remark,
	})
}

func intPtr(n int) *int { return &n }
