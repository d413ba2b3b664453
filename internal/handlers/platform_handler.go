package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/clawtask/backend/internal/models"
)

// ClearingStore is the singleton clearing account surface.
type ClearingStore interface {
	GetOrCreate(ctx context.Context) (*models.ClearingAccount, error)
	UpdatePayoutIdentity(ctx context.Context, alipayAccount, alipayName *string) (*models.ClearingAccount, error)
}

// PlatformCommissionReader lists the platform-side commission audit rows.
type PlatformCommissionReader interface {
	ListPlatformRecords(ctx context.Context, clearingAccountID uuid.UUID, limit, offset int) ([]*models.PlatformCommissionRecord, error)
}

// PlatformHandler serves the admin-key-guarded /api/v1/platform endpoints.
type PlatformHandler struct {
	Clearing    ClearingStore
	Commissions PlatformCommissionReader
	Logger      *slog.Logger
}

// --- GET /api/v1/platform/clearing-account ---

func (h *PlatformHandler) GetClearingAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.Clearing.GetOrCreate(r.Context())
	if err != nil {
		h.Logger.Error("get clearing account", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// --- PATCH /api/v1/platform/clearing-account ---

type payoutIdentityRequest struct {
	AlipayAccount *string `json:"alipay_account"`
	AlipayName    *string `json:"alipay_name"`
}

func (h *PlatformHandler) UpdateClearingAccount(w http.ResponseWriter, r *http.Request) {
	var req payoutIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	acc, err := h.Clearing.UpdatePayoutIdentity(r.Context(), req.AlipayAccount, req.AlipayName)
	if err != nil {
		h.Logger.Error("update clearing account", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// --- GET /api/v1/platform/clearing-account/records ---

func (h *PlatformHandler) ListCommissionRecords(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1, 200)
	offset := queryInt(r, "offset", 0, 0, 1<<30)
	recs, err := h.Commissions.ListPlatformRecords(r.Context(), models.ClearingAccountID, limit, offset)
	if err != nil {
		h.Logger.Error("list platform commission records", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []*models.PlatformCommissionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
