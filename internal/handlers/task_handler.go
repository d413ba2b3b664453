package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clawtask/backend/internal/middleware"
	"github.com/clawtask/backend/internal/models"
	"github.com/clawtask/backend/internal/services"
)

// Lifecycle is the state machine surface the handler drives.
type Lifecycle interface {
	Publish(ctx context.Context, owner *models.User, in services.PublishInput) (*models.Task, error)
	Subscribe(ctx context.Context, taskID, agentID uuid.UUID, caller *models.User) (*services.SubscribeResult, error)
	SubmitCompletion(ctx context.Context, taskID uuid.UUID, caller *models.User, resultSummary string, evidence json.RawMessage) (*models.Task, services.SubmitOutcome, error)
	Confirm(ctx context.Context, taskID uuid.UUID, caller *models.User) (*models.Task, services.ConfirmOutcome, error)
	Reject(ctx context.Context, taskID uuid.UUID, caller *models.User) (*models.Task, error)
	GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error)
	ListTasks(ctx context.Context, statusFilter string, limit, offset int) ([]*models.Task, error)
}

// PublisherLookup resolves task owners for display names.
type PublisherLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SubscriptionReader exposes subscription counts and members per task.
type SubscriptionReader interface {
	CountByTaskID(ctx context.Context, taskID uuid.UUID) (int, error)
	ListByTaskID(ctx context.Context, taskID uuid.UUID) ([]*models.TaskSubscription, error)
}

// TaskHandler serves the /api/v1/tasks endpoints.
type TaskHandler struct {
	Lifecycle Lifecycle
	Users     PublisherLookup
	Subs      SubscriptionReader
	Validator *services.Validator
	Logger    *slog.Logger
}

type taskResponse struct {
	ID                     string          `json:"id"`
	Title                  string          `json:"title"`
	Description            string          `json:"description"`
	TaskType               string          `json:"task_type"`
	Priority               string          `json:"priority"`
	Status                 string          `json:"status"`
	RewardPoints           int             `json:"reward_points"`
	OwnerID                string          `json:"owner_id"`
	PublisherName          string          `json:"publisher_name,omitempty"`
	AgentID                *string         `json:"agent_id,omitempty"`
	CompletionWebhookURL   *string         `json:"completion_webhook_url,omitempty"`
	InputData              json.RawMessage `json:"input_data,omitempty"`
	OutputData             json.RawMessage `json:"output_data,omitempty"`
	SubscriptionCount      int             `json:"subscription_count"`
	SubmittedAt            *time.Time      `json:"submitted_at,omitempty"`
	VerificationDeadlineAt *time.Time      `json:"verification_deadline_at,omitempty"`
	CompletedAt            *time.Time      `json:"completed_at,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func (h *TaskHandler) taskToResponse(ctx context.Context, t *models.Task) taskResponse {
	resp := taskResponse{
		ID:                     t.ID.String(),
		Title:                  t.Title,
		Description:            t.Description,
		TaskType:               t.TaskType,
		Priority:               t.Priority,
		Status:                 t.Status,
		RewardPoints:           t.RewardPoints,
		OwnerID:                t.OwnerID.String(),
		CompletionWebhookURL:   t.CompletionWebhookURL,
		InputData:              t.InputData,
		OutputData:             t.OutputData,
		SubmittedAt:            t.SubmittedAt,
		VerificationDeadlineAt: t.VerificationDeadlineAt,
		CompletedAt:            t.CompletedAt,
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
	}
	if t.AgentID != nil {
		s := t.AgentID.String()
		resp.AgentID = &s
	}
	if owner, err := h.Users.GetByID(ctx, t.OwnerID); err == nil {
		resp.PublisherName = owner.Username
	}
	if n, err := h.Subs.CountByTaskID(ctx, t.ID); err == nil {
		resp.SubscriptionCount = n
	}
	return resp
}

// --- POST /api/v1/tasks ---

type publishTaskRequest struct {
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	TaskType             string          `json:"task_type"`
	Priority             string          `json:"priority"`
	RewardPoints         int             `json:"reward_points"`
	CompletionWebhookURL string          `json:"completion_webhook_url"`
	InputData            json.RawMessage `json:"input_data"`
}

// Publish handles POST /api/v1/tasks. A positive reward is escrowed from
// the caller's balance before the task becomes visible.
func (h *TaskHandler) Publish(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	body, err := readBody(r)
	if err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if err := h.Validator.ValidatePublish(body); err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	var req publishTaskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	task, err := h.Lifecycle.Publish(r.Context(), user, services.PublishInput{
		Title:                req.Title,
		Description:          req.Description,
		TaskType:             req.TaskType,
		Priority:             req.Priority,
		RewardPoints:         req.RewardPoints,
		CompletionWebhookURL: req.CompletionWebhookURL,
		InputData:            req.InputData,
	})
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.taskToResponse(r.Context(), task))
}

// --- GET /api/v1/tasks ---

// List handles GET /api/v1/tasks with optional status, limit, and offset
// query parameters.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := queryInt(r, "limit", 50, 1, 200)
	offset := queryInt(r, "offset", 0, 0, 1<<30)

	tasks, err := h.Lifecycle.ListTasks(r.Context(), status, limit, offset)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, h.taskToResponse(r.Context(), t))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- GET /api/v1/tasks/{id} ---

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	task, err := h.Lifecycle.GetTask(r.Context(), taskID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.taskToResponse(r.Context(), task))
}

// --- POST /api/v1/tasks/{id}/subscribe ---

type subscribeRequest struct {
	AgentID string `json:"agent_id"`
}

type subscribeResponse struct {
	TaskID           string `json:"task_id"`
	AgentID          string `json:"agent_id"`
	Created          bool   `json:"created"`
	AssignedExecutor bool   `json:"assigned_executor"`
}

// Subscribe handles POST /api/v1/tasks/{id}/subscribe. Repeat calls with
// the same agent are no-ops.
func (h *TaskHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		http.Error(w, `{"error":"invalid agent_id"}`, http.StatusBadRequest)
		return
	}

	result, err := h.Lifecycle.Subscribe(r.Context(), taskID, agentID, user)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, subscribeResponse{
		TaskID:           taskID.String(),
		AgentID:          agentID.String(),
		Created:          result.Created,
		AssignedExecutor: result.AssignedExecutor,
	})
}

// --- GET /api/v1/tasks/{id}/subscribers ---

func (h *TaskHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	subs, err := h.Subs.ListByTaskID(r.Context(), taskID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// --- POST /api/v1/tasks/{id}/submit-completion ---

type submitCompletionRequest struct {
	ResultSummary string          `json:"result_summary"`
	Evidence      json.RawMessage `json:"evidence"`
}

type submitCompletionResponse struct {
	Task    taskResponse `json:"task"`
	Outcome string       `json:"outcome"`
}

// SubmitCompletion handles POST /api/v1/tasks/{id}/submit-completion. The
// completion webhook must be acknowledged before the task moves to
// pending_verification; a gateway failure surfaces as 502 and leaves the
// task open for retry.
func (h *TaskHandler) SubmitCompletion(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	body, err := readBody(r)
	if err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if err := h.Validator.ValidateSubmitCompletion(body); err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	var req submitCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	task, outcome, err := h.Lifecycle.SubmitCompletion(r.Context(), taskID, user, req.ResultSummary, req.Evidence)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, submitCompletionResponse{
		Task:    h.taskToResponse(r.Context(), task),
		Outcome: string(outcome),
	})
}

// --- POST /api/v1/tasks/{id}/confirm ---

type confirmResponse struct {
	Task    taskResponse `json:"task"`
	Outcome string       `json:"outcome"`
}

func (h *TaskHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	task, outcome, err := h.Lifecycle.Confirm(r.Context(), taskID, user)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmResponse{
		Task:    h.taskToResponse(r.Context(), task),
		Outcome: string(outcome),
	})
}

// --- POST /api/v1/tasks/{id}/reject ---

func (h *TaskHandler) Reject(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	task, err := h.Lifecycle.Reject(r.Context(), taskID, user)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.taskToResponse(r.Context(), task))
}
