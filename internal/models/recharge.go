package models

import (
	"time"

	"github.com/google/uuid"
)

// Recharge channel and order status enums. The gateway integration is a
// mock: orders carry placeholder payment artifacts per channel and are
// credited only on explicit confirmation.
const (
	RechargeChannelCreditCard = "credit_card"
	RechargeChannelAlipay     = "alipay"
	RechargeChannelBitcoin    = "bitcoin"

	RechargeStatusPending   = "pending"
	RechargeStatusPaid      = "paid"
	RechargeStatusCancelled = "cancelled"
)

type RechargeOrder struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Amount         int        `json:"amount"`
	Channel        string     `json:"channel"`
	Status         string     `json:"status"`
	GatewayOrderID string     `json:"gateway_order_id"`
	PaymentURL     *string    `json:"payment_url,omitempty"`
	PaymentQR      *string    `json:"payment_qr,omitempty"`
	BTCAddress     *string    `json:"btc_address,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PaymentMethod stores only masked display info, never real card numbers.
type PaymentMethod struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Type       string    `json:"type"`
	MaskedInfo string    `json:"masked_info"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}
