package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task status enums. A task enters open at publish, moves to
// pending_verification when the executor submits completion, and reaches
// the terminal completed state on owner confirmation or deadline expiry.
const (
	TaskStatusOpen                = "open"
	TaskStatusPendingVerification = "pending_verification"
	TaskStatusCompleted           = "completed"
)

type Task struct {
	ID                     uuid.UUID       `json:"id"`
	Title                  string          `json:"title"`
	Description            string          `json:"description"`
	TaskType               string          `json:"task_type"`
	Priority               string          `json:"priority"`
	Status                 string          `json:"status"`
	RewardPoints           int             `json:"reward_points"`
	OwnerID                uuid.UUID       `json:"owner_id"`
	AgentID                *uuid.UUID      `json:"agent_id,omitempty"`
	CompletionWebhookURL   *string         `json:"completion_webhook_url,omitempty"`
	InputData              json.RawMessage `json:"input_data,omitempty"`
	OutputData             json.RawMessage `json:"output_data,omitempty"`
	SubmittedAt            *time.Time      `json:"submitted_at,omitempty"`
	VerificationDeadlineAt *time.Time      `json:"verification_deadline_at,omitempty"`
	CompletedAt            *time.Time      `json:"completed_at,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}
