package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/clawtask/backend/internal/middleware"
	"github.com/clawtask/backend/internal/models"
)

// AgentStore is the agent registry surface.
type AgentStore interface {
	Create(ctx context.Context, a *models.Agent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	ListByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*models.Agent, error)
}

// AgentHandler serves the minimal agent registry: tasks are claimed by
// agents, so every executor needs one.
type AgentHandler struct {
	Agents AgentStore
	Logger *slog.Logger
}

type createAgentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /api/v1/agents.
func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, `{"error":"name is required"}`, http.StatusBadRequest)
		return
	}
	agent := &models.Agent{
		ID:          uuid.New(),
		OwnerID:     user.ID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if err := h.Agents.Create(r.Context(), agent); err != nil {
		h.Logger.Error("create agent", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

// List handles GET /api/v1/agents, returning the caller's agents.
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	agents, err := h.Agents.ListByOwnerID(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("list agents", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if agents == nil {
		agents = []*models.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}
