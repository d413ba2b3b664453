package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit transaction type enums. Amounts are signed: debits are recorded
// with a negative amount, credits with a positive one. The user's credits
// column is a materialized view of this log, updated in the same
// transaction as every row insert.
const (
	CreditTypeRecharge       = "recharge"
	CreditTypeTaskPublish    = "task_publish"
	CreditTypeTaskReward     = "task_reward"
	CreditTypeTaskRefund     = "task_refund"
	CreditTypeUserCommission = "user_commission"
)

type CreditTransaction struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Amount       int        `json:"amount"`
	Type         string     `json:"type"`
	RefID        *uuid.UUID `json:"ref_id,omitempty"`
	Remark       string     `json:"remark"`
	BalanceAfter *int       `json:"balance_after,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
