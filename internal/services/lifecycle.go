package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clawtask/backend/internal/models"
)

// VerificationWindow is how long the publisher has to confirm or reject a
// submission before the task auto-confirms.
const VerificationWindow = 6 * time.Hour

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LifecycleTaskRepo is the task repository surface the state machine uses.
type LifecycleTaskRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context, statusFilter string, limit, offset int) ([]*models.Task, error)
	AssignExecutorTx(ctx context.Context, tx pgx.Tx, taskID, agentID uuid.UUID) (bool, error)
	MarkSubmittedTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, submittedAt, deadlineAt time.Time, outputData []byte) (bool, error)
	ResetToOpenTx(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (bool, error)
}

// LifecycleAgentRepo resolves agents for ownership checks.
type LifecycleAgentRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)
}

// LifecycleSubscriptionRepo records task claims.
type LifecycleSubscriptionRepo interface {
	SubscribeTx(ctx context.Context, tx pgx.Tx, taskID, agentID uuid.UUID) (*models.TaskSubscription, bool, error)
}

// LifecycleLedger is the ledger surface publish needs (the escrow debit).
type LifecycleLedger interface {
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType string, ref *uuid.UUID, remark string) error
}

// Settler abstracts the settlement engine.
type Settler interface {
	SettleReward(ctx context.Context, tx pgx.Tx, task *models.Task) (bool, error)
}

// CompletionDispatcher abstracts the webhook dispatcher.
type CompletionDispatcher interface {
	Dispatch(ctx context.Context, url string, payload CompletionPayload) error
}

// LifecycleService is the task state machine: open -> pending_verification
// -> completed, with reject looping back to open. It owns the transaction
// boundaries; ledger writes, task rows, and status flips commit together.
type LifecycleService struct {
	DB         TxBeginner
	Tasks      LifecycleTaskRepo
	Agents     LifecycleAgentRepo
	Subs       LifecycleSubscriptionRepo
	Ledger     LifecycleLedger
	Settlement Settler
	Dispatcher CompletionDispatcher
	Logger     *slog.Logger

	// now is injected for deadline tests.
	now func() time.Time
}

func NewLifecycleService(
	db TxBeginner,
	tasks LifecycleTaskRepo,
	agents LifecycleAgentRepo,
	subs LifecycleSubscriptionRepo,
	ledger LifecycleLedger,
	settlement Settler,
	dispatcher CompletionDispatcher,
	logger *slog.Logger,
) *LifecycleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LifecycleService{
		DB:         db,
		Tasks:      tasks,
		Agents:     agents,
		Subs:       subs,
		Ledger:     ledger,
		Settlement: settlement,
		Dispatcher: dispatcher,
		Logger:     logger,
		now:        time.Now,
	}
}

// PublishInput is the publish request after JSON decoding.
type PublishInput struct {
	Title                string
	Description          string
	TaskType             string
	Priority             string
	RewardPoints         int
	CompletionWebhookURL string
	InputData            json.RawMessage
}

// Publish creates a task in open state. A positive reward is escrowed by
// debiting the owner in the same transaction that inserts the task, so the
// funds leave the publisher's spendable balance immediately.
func (s *LifecycleService) Publish(ctx context.Context, owner *models.User, in PublishInput) (*models.Task, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.RewardPoints < 0 {
		return nil, fmt.Errorf("%w: reward_points must not be negative", ErrValidation)
	}
	if in.TaskType == "" {
		in.TaskType = "general"
	}
	if in.Priority == "" {
		in.Priority = "medium"
	}

	var webhookURL *string
	if in.RewardPoints > 0 {
		if !isAbsoluteHTTPURL(in.CompletionWebhookURL) {
			return nil, fmt.Errorf("%w: tasks with reward points require an absolute completion_webhook_url", ErrValidation)
		}
		webhookURL = &in.CompletionWebhookURL
	} else if in.CompletionWebhookURL != "" {
		webhookURL = &in.CompletionWebhookURL
	}

	task := &models.Task{
		ID:                   uuid.New(),
		Title:                in.Title,
		Description:          in.Description,
		TaskType:             in.TaskType,
		Priority:             in.Priority,
		Status:               models.TaskStatusOpen,
		RewardPoints:         in.RewardPoints,
		OwnerID:              owner.ID,
		CompletionWebhookURL: webhookURL,
		InputData:            in.InputData,
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin publish tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if in.RewardPoints > 0 {
		ref := task.ID
		remark := fmt.Sprintf("published task %s: %d points escrowed", task.ID, in.RewardPoints)
		if err := s.Ledger.Debit(ctx, tx, owner.ID, in.RewardPoints, models.CreditTypeTaskPublish, &ref, remark); err != nil {
			return nil, err
		}
	}
	if err := s.Tasks.CreateTx(ctx, tx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit publish tx: %w", err)
	}

	s.Logger.Info("task published", "task_id", task.ID, "owner_id", owner.ID, "reward_points", in.RewardPoints)
	return task, nil
}

// SubscribeResult reports what a subscribe call did.
type SubscribeResult struct {
	Subscription     *models.TaskSubscription
	Created          bool
	AssignedExecutor bool
}

// Subscribe claims a task with one of the caller's agents. Subscribing the
// same pair twice is a no-op returning the existing membership. The first
// subscriber on a task becomes its executor; later subscribers are recorded
// but never reassign it.
func (s *LifecycleService) Subscribe(ctx context.Context, taskID, agentID uuid.UUID, caller *models.User) (*SubscribeResult, error) {
	if _, err := s.Tasks.GetByID(ctx, taskID); err != nil {
		return nil, notFound(err, "task")
	}
	agent, err := s.Agents.GetByID(ctx, agentID)
	if err != nil || agent.OwnerID != caller.ID {
		return nil, fmt.Errorf("%w: agent does not exist or is not owned by caller", ErrValidation)
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin subscribe tx: %w", err)
	}
	defer tx.Rollback(ctx)

	sub, created, err := s.Subs.SubscribeTx(ctx, tx, taskID, agentID)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	assigned := false
	if created {
		assigned, err = s.Tasks.AssignExecutorTx(ctx, tx, taskID, agentID)
		if err != nil {
			return nil, fmt.Errorf("assign executor: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit subscribe tx: %w", err)
	}

	if assigned {
		s.Logger.Info("executor assigned", "task_id", taskID, "agent_id", agentID)
	}
	return &SubscribeResult{Subscription: sub, Created: created, AssignedExecutor: assigned}, nil
}

// SubmitOutcome describes what SubmitCompletion did.
type SubmitOutcome string

const (
	SubmitDispatched       SubmitOutcome = "dispatched"
	SubmitAlreadyCompleted SubmitOutcome = "already_completed"
	SubmitAlreadyPending   SubmitOutcome = "already_pending"
)

// SubmitCompletion delivers the completion webhook and, on success, moves
// the task to pending_verification with a deadline exactly
// VerificationWindow after the submission time. A failed dispatch leaves
// the task untouched so the executor can retry.
func (s *LifecycleService) SubmitCompletion(ctx context.Context, taskID uuid.UUID, caller *models.User, resultSummary string, evidence json.RawMessage) (*models.Task, SubmitOutcome, error) {
	task, err := s.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, "", notFound(err, "task")
	}
	if task.AgentID == nil {
		return nil, "", fmt.Errorf("%w: task has not been claimed yet", ErrConflict)
	}
	agent, err := s.Agents.GetByID(ctx, *task.AgentID)
	if err != nil {
		return nil, "", notFound(err, "executor agent")
	}
	if agent.OwnerID != caller.ID {
		return nil, "", fmt.Errorf("%w: only the executor's owner may submit completion", ErrForbidden)
	}

	switch task.Status {
	case models.TaskStatusCompleted:
		return task, SubmitAlreadyCompleted, nil
	case models.TaskStatusPendingVerification:
		return task, SubmitAlreadyPending, nil
	}

	if task.CompletionWebhookURL == nil || *task.CompletionWebhookURL == "" {
		return nil, "", fmt.Errorf("%w: task has no completion webhook configured", ErrValidation)
	}

	submittedAt := s.now().UTC()
	payload := CompletionPayload{
		TaskID:        task.ID,
		Title:         task.Title,
		AgentID:       agent.ID,
		AgentName:     agent.Name,
		ResultSummary: resultSummary,
		Evidence:      evidence,
		SubmittedAt:   submittedAt,
	}
	if err := s.Dispatcher.Dispatch(ctx, *task.CompletionWebhookURL, payload); err != nil {
		return nil, "", err
	}

	deadlineAt := submittedAt.Add(VerificationWindow)
	outputData, err := mergeOutputData(task.OutputData, resultSummary, evidence)
	if err != nil {
		return nil, "", fmt.Errorf("merge output data: %w", err)
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("begin submit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ok, err := s.Tasks.MarkSubmittedTx(ctx, tx, task.ID, submittedAt, deadlineAt, outputData)
	if err != nil {
		return nil, "", fmt.Errorf("mark submitted: %w", err)
	}
	if !ok {
		return nil, "", fmt.Errorf("%w: task state changed during submission", ErrConflict)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("commit submit tx: %w", err)
	}

	task.Status = models.TaskStatusPendingVerification
	task.SubmittedAt = &submittedAt
	task.VerificationDeadlineAt = &deadlineAt
	task.OutputData = outputData

	s.Logger.Info("completion submitted", "task_id", task.ID, "agent_id", agent.ID, "deadline", deadlineAt)
	return task, SubmitDispatched, nil
}

// ConfirmOutcome describes what Confirm did.
type ConfirmOutcome string

const (
	ConfirmSettled          ConfirmOutcome = "settled"
	ConfirmAlreadyCompleted ConfirmOutcome = "already_completed"
	ConfirmClosed           ConfirmOutcome = "closed"
)

// Confirm is the owner's acceptance. It runs the auto-confirm check first,
// so a confirm arriving after the deadline behaves like the timeout did.
// A zero-reward task still in open state is closed directly.
func (s *LifecycleService) Confirm(ctx context.Context, taskID uuid.UUID, caller *models.User) (*models.Task, ConfirmOutcome, error) {
	task, err := s.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, "", notFound(err, "task")
	}
	if task.OwnerID != caller.ID {
		return nil, "", fmt.Errorf("%w: only the task owner may confirm", ErrForbidden)
	}

	task, err = s.maybeAutoConfirm(ctx, task)
	if err != nil {
		return nil, "", err
	}

	switch {
	case task.Status == models.TaskStatusCompleted:
		return task, ConfirmAlreadyCompleted, nil
	case task.Status == models.TaskStatusPendingVerification:
		if err := s.settle(ctx, task); err != nil {
			return nil, "", err
		}
		return task, ConfirmSettled, nil
	case task.Status == models.TaskStatusOpen && task.RewardPoints == 0:
		if err := s.settle(ctx, task); err != nil {
			return nil, "", err
		}
		return task, ConfirmClosed, nil
	default:
		return nil, "", fmt.Errorf("%w: completion has not been submitted yet", ErrConflict)
	}
}

// Reject returns a pending task to open so the executor can resubmit. The
// submission markers are cleared; the next submit re-dispatches the webhook.
func (s *LifecycleService) Reject(ctx context.Context, taskID uuid.UUID, caller *models.User) (*models.Task, error) {
	task, err := s.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, "task")
	}
	if task.OwnerID != caller.ID {
		return nil, fmt.Errorf("%w: only the task owner may reject", ErrForbidden)
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reject tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ok, err := s.Tasks.ResetToOpenTx(ctx, tx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("reset task: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: only tasks awaiting verification can be rejected", ErrConflict)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reject tx: %w", err)
	}

	task.Status = models.TaskStatusOpen
	task.SubmittedAt = nil
	task.VerificationDeadlineAt = nil

	s.Logger.Info("submission rejected", "task_id", task.ID, "owner_id", caller.ID)
	return task, nil
}

// GetTask reads a task, running the auto-confirm check first so a read
// past the deadline observes the completed state.
func (s *LifecycleService) GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, "task")
	}
	return s.maybeAutoConfirm(ctx, task)
}

// ListTasks lists tasks, applying the auto-confirm check to each.
func (s *LifecycleService) ListTasks(ctx context.Context, statusFilter string, limit, offset int) ([]*models.Task, error) {
	tasks, err := s.Tasks.List(ctx, statusFilter, limit, offset)
	if err != nil {
		return nil, err
	}
	for i, t := range tasks {
		updated, err := s.maybeAutoConfirm(ctx, t)
		if err != nil {
			return nil, err
		}
		tasks[i] = updated
	}
	return tasks, nil
}

// AutoConfirmOverdue settles a task known to be past its deadline. Used by
// the periodic sweep; the settlement guard makes a stale call harmless.
func (s *LifecycleService) AutoConfirmOverdue(ctx context.Context, taskID uuid.UUID) error {
	task, err := s.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return notFound(err, "task")
	}
	_, err = s.maybeAutoConfirm(ctx, task)
	return err
}

// TaskDueForAutoConfirm is the pure deadline check: a pending task whose
// verification deadline has been reached must settle as if confirmed.
func TaskDueForAutoConfirm(status string, deadline *time.Time, now time.Time) bool {
	return status == models.TaskStatusPendingVerification && deadline != nil && !now.Before(*deadline)
}

// maybeAutoConfirm settles the task when its deadline has passed. Losing
// the settlement race to a concurrent confirm is not an error; the task is
// reloaded so the caller sees the completed state either way.
func (s *LifecycleService) maybeAutoConfirm(ctx context.Context, task *models.Task) (*models.Task, error) {
	if !TaskDueForAutoConfirm(task.Status, task.VerificationDeadlineAt, s.now()) {
		return task, nil
	}
	if err := s.settle(ctx, task); err != nil {
		return nil, err
	}
	s.Logger.Info("task auto-confirmed after deadline", "task_id", task.ID)
	return task, nil
}

// settle runs the settlement engine in its own transaction. A false return
// from the engine means another caller already settled; the task is
// reloaded to reflect that.
func (s *LifecycleService) settle(ctx context.Context, task *models.Task) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settle tx: %w", err)
	}
	defer tx.Rollback(ctx)

	won, err := s.Settlement.SettleReward(ctx, tx, task)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settle tx: %w", err)
	}
	if !won {
		reloaded, err := s.Tasks.GetByID(ctx, task.ID)
		if err != nil {
			return notFound(err, "task")
		}
		*task = *reloaded
	}
	return nil
}

// mergeOutputData folds the submission summary and evidence into the task's
// output data object.
func mergeOutputData(existing json.RawMessage, resultSummary string, evidence json.RawMessage) ([]byte, error) {
	out := map[string]json.RawMessage{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &out); err != nil {
			// Existing output is not an object; start over.
			out = map[string]json.RawMessage{}
		}
	}
	summary, err := json.Marshal(resultSummary)
	if err != nil {
		return nil, err
	}
	out["result_summary"] = summary
	if len(evidence) == 0 {
		evidence = json.RawMessage(`{}`)
	}
	out["evidence"] = evidence
	return json.Marshal(out)
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// notFound maps a missing row to ErrNotFound and wraps everything else.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("get %s: %w", what, err)
}
