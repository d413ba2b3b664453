package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/clawtask/backend/internal/middleware"
	"github.com/clawtask/backend/internal/models"
	"github.com/clawtask/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockLifecycle struct {
	publishFn   func(ctx context.Context, owner *models.User, in services.PublishInput) (*models.Task, error)
	subscribeFn func(ctx context.Context, taskID, agentID uuid.UUID, caller *models.User) (*services.SubscribeResult, error)
	submitFn    func(ctx context.Context, taskID uuid.UUID, caller *models.User, summary string, evidence json.RawMessage) (*models.Task, services.SubmitOutcome, error)
	confirmFn   func(ctx context.Context, taskID uuid.UUID, caller *models.User) (*models.Task, services.ConfirmOutcome, error)
	rejectFn    func(ctx context.Context, taskID uuid.UUID, caller *models.User) (*models.Task, error)
	getFn       func(ctx context.Context, taskID uuid.UUID) (*models.Task, error)
	listFn      func(ctx context.Context, statusFilter string, limit, offset int) ([]*models.Task, error)
}

func (m *mockLifecycle) Publish(ctx context.Context, owner *models.User, in services.PublishInput) (*models.Task, error) {
	return m.publishFn(ctx, owner, in)
}
func (m *mockLifecycle) Subscribe(ctx context.Context, taskID, agentID uuid.UUID, caller *models.User) (*services.SubscribeResult, error) {
	return m.subscribeFn(ctx, taskID, agentID, caller)
}
func (m *mockLifecycle) SubmitCompletion(ctx context.Context, taskID uuid.UUID, caller *models.User, summary string, evidence json.RawMessage) (*models.Task, services.SubmitOutcome, error) {
	return m.submitFn(ctx, taskID, caller, summary, evidence)
}
func (m *mockLifecycle) Confirm(ctx context.Context, taskID uuid.UUID, caller *models.User) (*models.Task, services.ConfirmOutcome, error) {
	return m.confirmFn(ctx, taskID, caller)
}
func (m *mockLifecycle) Reject(ctx context.Context, taskID uuid.UUID, caller *models.User) (*models.Task, error) {
	return m.rejectFn(ctx, taskID, caller)
}
func (m *mockLifecycle) GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	return m.getFn(ctx, taskID)
}
func (m *mockLifecycle) ListTasks(ctx context.Context, statusFilter string, limit, offset int) ([]*models.Task, error) {
	return m.listFn(ctx, statusFilter, limit, offset)
}

type mockUserLookup struct {
	users map[uuid.UUID]*models.User
}

func (m *mockUserLookup) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return u, nil
}

type mockSubReader struct {
	counts map[uuid.UUID]int
}

func (m *mockSubReader) CountByTaskID(_ context.Context, taskID uuid.UUID) (int, error) {
	return m.counts[taskID], nil
}
func (m *mockSubReader) ListByTaskID(_ context.Context, taskID uuid.UUID) ([]*models.TaskSubscription, error) {
	return nil, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestHandler(t *testing.T, lc *mockLifecycle) (*TaskHandler, *mockUserLookup, *mockSubReader) {
	t.Helper()
	v, err := services.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	users := &mockUserLookup{users: make(map[uuid.UUID]*models.User)}
	subs := &mockSubReader{counts: make(map[uuid.UUID]int)}
	h := &TaskHandler{
		Lifecycle: lc,
		Users:     users,
		Subs:      subs,
		Validator: v,
		Logger:    slog.Default(),
	}
	return h, users, subs
}

func authedRequest(method, target, body string, user *models.User) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if user != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), user))
	}
	return req
}

// =====================================================================
// POST /api/v1/tasks
// =====================================================================

func TestPublish_Created(t *testing.T) {
	owner := &models.User{ID: uuid.New(), Username: "alice", Credits: 100}
	taskID := uuid.New()
	lc := &mockLifecycle{
		publishFn: func(_ context.Context, u *models.User, in services.PublishInput) (*models.Task, error) {
			if in.Title != "write a report" || in.RewardPoints != 40 {
				t.Errorf("unexpected input: %+v", in)
			}
			return &models.Task{ID: taskID, Title: in.Title, Status: models.TaskStatusOpen, RewardPoints: in.RewardPoints, OwnerID: u.ID}, nil
		},
	}
	h, users, _ := newTestHandler(t, lc)
	users.users[owner.ID] = owner

	body := `{"title":"write a report","reward_points":40,"completion_webhook_url":"https://example.com/hook"}`
	req := authedRequest(http.MethodPost, "/api/v1/tasks", body, owner)
	rec := httptest.NewRecorder()

	h.Publish(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp taskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != taskID.String() || resp.PublisherName != "alice" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestPublish_SchemaReject(t *testing.T) {
	lc := &mockLifecycle{
		publishFn: func(context.Context, *models.User, services.PublishInput) (*models.Task, error) {
			t.Fatal("publish must not be called for an invalid body")
			return nil, nil
		},
	}
	h, _, _ := newTestHandler(t, lc)
	owner := &models.User{ID: uuid.New()}

	req := authedRequest(http.MethodPost, "/api/v1/tasks", `{"reward_points":-5}`, owner)
	rec := httptest.NewRecorder()

	h.Publish(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPublish_InsufficientFunds(t *testing.T) {
	lc := &mockLifecycle{
		publishFn: func(context.Context, *models.User, services.PublishInput) (*models.Task, error) {
			return nil, services.ErrInsufficientFunds
		},
	}
	h, _, _ := newTestHandler(t, lc)
	owner := &models.User{ID: uuid.New(), Credits: 1}

	body := `{"title":"t","reward_points":40,"completion_webhook_url":"https://example.com/hook"}`
	req := authedRequest(http.MethodPost, "/api/v1/tasks", body, owner)
	rec := httptest.NewRecorder()

	h.Publish(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPublish_Unauthenticated(t *testing.T) {
	h, _, _ := newTestHandler(t, &mockLifecycle{})

	req := authedRequest(http.MethodPost, "/api/v1/tasks", `{"title":"t"}`, nil)
	rec := httptest.NewRecorder()

	h.Publish(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

// =====================================================================
// POST /api/v1/tasks/{id}/submit-completion
// =====================================================================

func TestSubmitCompletion_GatewayFailureIs502(t *testing.T) {
	lc := &mockLifecycle{
		submitFn: func(context.Context, uuid.UUID, *models.User, string, json.RawMessage) (*models.Task, services.SubmitOutcome, error) {
			return nil, "", fmt.Errorf("%w: webhook returned status 500", services.ErrGateway)
		},
	}
	h, _, _ := newTestHandler(t, lc)
	caller := &models.User{ID: uuid.New()}

	req := authedRequest(http.MethodPost, "/api/v1/tasks/x/submit-completion", `{"result_summary":"done"}`, caller)
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()

	h.SubmitCompletion(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitCompletion_SchemaReject(t *testing.T) {
	lc := &mockLifecycle{
		submitFn: func(context.Context, uuid.UUID, *models.User, string, json.RawMessage) (*models.Task, services.SubmitOutcome, error) {
			t.Fatal("submit must not be called for an invalid body")
			return nil, "", nil
		},
	}
	h, _, _ := newTestHandler(t, lc)
	caller := &models.User{ID: uuid.New()}

	req := authedRequest(http.MethodPost, "/api/v1/tasks/x/submit-completion", `{"evidence":{}}`, caller)
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()

	h.SubmitCompletion(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

// =====================================================================
// POST /api/v1/tasks/{id}/confirm and /reject
// =====================================================================

func TestConfirm_ForbiddenForNonOwner(t *testing.T) {
	lc := &mockLifecycle{
		confirmFn: func(context.Context, uuid.UUID, *models.User) (*models.Task, services.ConfirmOutcome, error) {
			return nil, "", fmt.Errorf("%w: only the task owner may confirm", services.ErrForbidden)
		},
	}
	h, _, _ := newTestHandler(t, lc)
	caller := &models.User{ID: uuid.New()}

	req := authedRequest(http.MethodPost, "/api/v1/tasks/x/confirm", "", caller)
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()

	h.Confirm(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReject_ConflictWhenNotPending(t *testing.T) {
	lc := &mockLifecycle{
		rejectFn: func(context.Context, uuid.UUID, *models.User) (*models.Task, error) {
			return nil, fmt.Errorf("%w: only tasks awaiting verification can be rejected", services.ErrConflict)
		},
	}
	h, _, _ := newTestHandler(t, lc)
	caller := &models.User{ID: uuid.New()}

	req := authedRequest(http.MethodPost, "/api/v1/tasks/x/reject", "", caller)
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()

	h.Reject(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

// =====================================================================
// GET /api/v1/tasks/{id}
// =====================================================================

func TestGet_NotFound(t *testing.T) {
	lc := &mockLifecycle{
		getFn: func(context.Context, uuid.UUID) (*models.Task, error) {
			return nil, fmt.Errorf("%w: task", services.ErrNotFound)
		},
	}
	h, _, _ := newTestHandler(t, lc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/x", nil)
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGet_IncludesSubscriptionCountAndPublisher(t *testing.T) {
	owner := &models.User{ID: uuid.New(), Username: "alice"}
	taskID := uuid.New()
	lc := &mockLifecycle{
		getFn: func(context.Context, uuid.UUID) (*models.Task, error) {
			return &models.Task{ID: taskID, Title: "t", Status: models.TaskStatusOpen, OwnerID: owner.ID}, nil
		},
	}
	h, users, subs := newTestHandler(t, lc)
	users.users[owner.ID] = owner
	subs.counts[taskID] = 3

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/x", nil)
	req.SetPathValue("id", taskID.String())
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp taskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PublisherName != "alice" || resp.SubscriptionCount != 3 {
		t.Errorf("unexpected response: publisher=%q count=%d", resp.PublisherName, resp.SubscriptionCount)
	}
}

// =====================================================================
// POST /api/v1/tasks/{id}/subscribe
// =====================================================================

func TestSubscribe_BadAgentID(t *testing.T) {
	h, _, _ := newTestHandler(t, &mockLifecycle{})
	caller := &models.User{ID: uuid.New()}

	req := authedRequest(http.MethodPost, "/api/v1/tasks/x/subscribe", `{"agent_id":"not-a-uuid"}`, caller)
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()

	h.Subscribe(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubscribe_OK(t *testing.T) {
	taskID := uuid.New()
	agentID := uuid.New()
	lc := &mockLifecycle{
		subscribeFn: func(_ context.Context, tid, aid uuid.UUID, _ *models.User) (*services.SubscribeResult, error) {
			if tid != taskID || aid != agentID {
				t.Errorf("unexpected ids: task=%s agent=%s", tid, aid)
			}
			return &services.SubscribeResult{Created: true, AssignedExecutor: true}, nil
		},
	}
	h, _, _ := newTestHandler(t, lc)
	caller := &models.User{ID: uuid.New()}

	body := fmt.Sprintf(`{"agent_id":%q}`, agentID)
	req := authedRequest(http.MethodPost, "/api/v1/tasks/x/subscribe", body, caller)
	req.SetPathValue("id", taskID.String())
	rec := httptest.NewRecorder()

	h.Subscribe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp subscribeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Created || !resp.AssignedExecutor {
		t.Errorf("unexpected response: %+v", resp)
	}
}
