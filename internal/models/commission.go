package models

import (
	"time"

	"github.com/google/uuid"
)

// ClearingAccountID is the fixed id of the singleton platform clearing
// account row, created by upsert on first use.
var ClearingAccountID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// ClearingAccount holds platform-level commission bookkeeping separate from
// per-user commission balances, plus the external payout identity.
type ClearingAccount struct {
	ID            uuid.UUID `json:"id"`
	Balance       int       `json:"balance"`
	AlipayAccount *string   `json:"alipay_account,omitempty"`
	AlipayName    *string   `json:"alipay_name,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PlatformCommissionRecord is a clearing-account ledger row.
type PlatformCommissionRecord struct {
	ID                uuid.UUID  `json:"id"`
	ClearingAccountID uuid.UUID  `json:"clearing_account_id"`
	Amount            int        `json:"amount"`
	TaskID            *uuid.UUID `json:"task_id,omitempty"`
	Remark            string     `json:"remark"`
	CreatedAt         time.Time  `json:"created_at"`
}

// UserCommissionRecord is the audit trail for commission credited to a
// task publisher's commission balance at settlement.
type UserCommissionRecord struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Amount    int        `json:"amount"`
	TaskID    *uuid.UUID `json:"task_id,omitempty"`
	Remark    string     `json:"remark"`
	CreatedAt time.Time  `json:"created_at"`
}
