package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clawtask/backend/internal/models"
)

const (
	rechargeMinPoints = 1
	rechargeMaxPoints = 1_000_000
)

// RechargeOrderRepo is the order repository surface the recharge flow uses.
type RechargeOrderRepo interface {
	Create(ctx context.Context, order *models.RechargeOrder) error
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.RechargeOrder, error)
	MarkPaidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) (bool, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.RechargeOrder, error)
}

// RechargeLedger is the ledger surface confirmation needs.
type RechargeLedger interface {
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType string, ref *uuid.UUID, remark string) error
}

// RechargeService creates payment-gateway orders and credits the buyer's
// balance once the gateway reports the order paid.
type RechargeService struct {
	DB     TxBeginner
	Orders RechargeOrderRepo
	Ledger RechargeLedger
	Logger *slog.Logger

	now func() time.Time
}

func NewRechargeService(db TxBeginner, orders RechargeOrderRepo, ledger RechargeLedger, logger *slog.Logger) *RechargeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RechargeService{DB: db, Orders: orders, Ledger: ledger, Logger: logger, now: time.Now}
}

// CreateOrder opens a pending recharge order against the named channel and
// returns the gateway artifacts the client needs to pay it.
func (s *RechargeService) CreateOrder(ctx context.Context, userID uuid.UUID, channel string, points int) (*models.RechargeOrder, error) {
	if points < rechargeMinPoints || points > rechargeMaxPoints {
		return nil, fmt.Errorf("%w: points must be between %d and %d", ErrValidation, rechargeMinPoints, rechargeMaxPoints)
	}

	order := &models.RechargeOrder{
		ID:             uuid.New(),
		UserID:         userID,
		Channel:        channel,
		Amount:         points,
		Status:         models.RechargeStatusPending,
		GatewayOrderID: newGatewayOrderID(),
	}

	switch channel {
	case models.RechargeChannelCreditCard:
		u := fmt.Sprintf("https://pay.clawtask.example/checkout/%s", order.GatewayOrderID)
		order.PaymentURL = &u
	case models.RechargeChannelAlipay:
		qr := fmt.Sprintf("https://pay.clawtask.example/alipay/qr/%s", order.GatewayOrderID)
		order.PaymentQR = &qr
	case models.RechargeChannelBitcoin:
		addr := newBTCAddress()
		order.BTCAddress = &addr
	default:
		return nil, fmt.Errorf("%w: unknown recharge channel %q", ErrValidation, channel)
	}

	if err := s.Orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create recharge order: %w", err)
	}
	s.Logger.Info("recharge order created", "order_id", order.ID, "user_id", userID, "channel", channel, "points", points)
	return order, nil
}

// ConfirmOrder marks a pending order paid and credits the buyer in the same
// transaction. Confirming an order twice credits at most once: the
// pending-only status flip is the guard.
func (s *RechargeService) ConfirmOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.RechargeOrder, error) {
	order, err := s.Orders.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: recharge order", ErrNotFound)
		}
		return nil, fmt.Errorf("get recharge order: %w", err)
	}
	if order.Status != models.RechargeStatusPending {
		return nil, fmt.Errorf("%w: order is %s, not pending", ErrConflict, order.Status)
	}

	paidAt := s.now().UTC()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin confirm tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ok, err := s.Orders.MarkPaidTx(ctx, tx, order.ID, paidAt)
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: order is no longer pending", ErrConflict)
	}
	ref := order.ID
	remark := fmt.Sprintf("recharge via %s, order %s", order.Channel, order.GatewayOrderID)
	if err := s.Ledger.Credit(ctx, tx, userID, order.Amount, models.CreditTypeRecharge, &ref, remark); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit confirm tx: %w", err)
	}

	order.Status = models.RechargeStatusPaid
	order.PaidAt = &paidAt

	s.Logger.Info("recharge order paid", "order_id", order.ID, "user_id", userID, "points", order.Amount)
	return order, nil
}

// ListOrders returns the caller's recharge history, newest first.
func (s *RechargeService) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.RechargeOrder, error) {
	return s.Orders.ListByUserID(ctx, userID, limit, offset)
}

// newGatewayOrderID mimics the gateway's order identifiers: ord_ plus
// sixteen hex characters.
func newGatewayOrderID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return "ord_" + hex.EncodeToString(b[:])
}

func newBTCAddress() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return "bc1q" + hex.EncodeToString(b[:])
}
