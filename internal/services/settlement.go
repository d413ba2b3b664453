package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clawtask/backend/internal/models"
)

// commissionRateBps is the platform commission in basis points (1%).
// The commission is floor(reward_points * rate) by integer division.
const commissionRateBps = 100

// CommissionFor returns the commission withheld from a reward.
func CommissionFor(rewardPoints int) int {
	return rewardPoints * commissionRateBps / 10_000
}

// SettlementTaskRepo flips task status with a state guard.
type SettlementTaskRepo interface {
	MarkCompletedTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, completedAt time.Time) (bool, error)
}

// SettlementAgentRepo resolves the executor agent to its owning user.
type SettlementAgentRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)
}

// SettlementLedger is the ledger surface settlement needs.
type SettlementLedger interface {
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType string, ref *uuid.UUID, remark string) error
	CreditCommission(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, taskID uuid.UUID, remark string) error
}

// SettlementService performs the exactly-once reward payout. The completed
// status flip doubles as the settlement guard: whichever caller wins the
// conditional update pays; everyone else sees a no-op. Commission from the
// reward flow goes to the publisher's commission balance, not the platform
// clearing account.
type SettlementService struct {
	Tasks  SettlementTaskRepo
	Agents SettlementAgentRepo
	Ledger SettlementLedger

	now func() time.Time
}

func NewSettlementService(tasks SettlementTaskRepo, agents SettlementAgentRepo, ledger SettlementLedger) *SettlementService {
	return &SettlementService{Tasks: tasks, Agents: agents, Ledger: ledger, now: time.Now}
}

// SettleReward pays out the task reward and completes the task inside the
// caller's transaction. Returns false when the task was already completed,
// in which case nothing is written. On success the passed task is updated
// in place to reflect the completed state.
func (s *SettlementService) SettleReward(ctx context.Context, tx pgx.Tx, task *models.Task) (bool, error) {
	completedAt := s.now().UTC()
	won, err := s.Tasks.MarkCompletedTx(ctx, tx, task.ID, completedAt)
	if err != nil {
		return false, fmt.Errorf("mark task completed: %w", err)
	}
	if !won {
		return false, nil
	}

	if task.RewardPoints > 0 && task.AgentID != nil {
		agent, err := s.Agents.GetByID(ctx, *task.AgentID)
		if err != nil {
			return false, fmt.Errorf("resolve executor agent: %w", err)
		}
		commission := CommissionFor(task.RewardPoints)
		executorAmount := task.RewardPoints - commission

		ref := task.ID
		remark := fmt.Sprintf("reward for task %s: %d points", task.ID, executorAmount)
		if err := s.Ledger.Credit(ctx, tx, agent.OwnerID, executorAmount, models.CreditTypeTaskReward, &ref, remark); err != nil {
			return false, fmt.Errorf("credit executor: %w", err)
		}
		if commission > 0 {
			remark := fmt.Sprintf("commission for task %s: %d points", task.ID, commission)
			if err := s.Ledger.CreditCommission(ctx, tx, task.OwnerID, commission, task.ID, remark); err != nil {
				return false, fmt.Errorf("credit publisher commission: %w", err)
			}
		}
	}

	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &completedAt
	return true, nil
}
