package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                     uuid.UUID `json:"id"`
	Username               string    `json:"username"`
	Email                  string    `json:"email"`
	PasswordHash           string    `json:"-"`
	Credits                int       `json:"credits"`
	CommissionBalance      int       `json:"commission_balance"`
	ReceivingAccountType   *string   `json:"receiving_account_type,omitempty"`
	ReceivingAccountName   *string   `json:"receiving_account_name,omitempty"`
	ReceivingAccountNumber *string   `json:"receiving_account_number,omitempty"`
	IsActive               bool      `json:"is_active"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}
