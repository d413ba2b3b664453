package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskSubscription records that an agent has claimed a task. Membership is
// unique per (task, agent); the first subscriber becomes the executor.
type TaskSubscription struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	AgentID   uuid.UUID `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
}
