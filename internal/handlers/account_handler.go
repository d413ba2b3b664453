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
)

// CreditReader lists a user's ledger entries.
type CreditReader interface {
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.CreditTransaction, error)
}

// CommissionReader lists a user's commission audit rows.
type CommissionReader interface {
	ListUserRecords(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.UserCommissionRecord, error)
}

// ReceivingUpdater persists payout identity changes.
type ReceivingUpdater interface {
	UpdateReceivingAccount(ctx context.Context, id uuid.UUID, accType, accName, accNumber *string) error
}

// PaymentMethodStore is the saved-card surface.
type PaymentMethodStore interface {
	Create(ctx context.Context, pm *models.PaymentMethod) error
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.PaymentMethod, error)
	DeleteForUser(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

// Recharger is the recharge service surface.
type Recharger interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, channel string, points int) (*models.RechargeOrder, error)
	ConfirmOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.RechargeOrder, error)
	ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.RechargeOrder, error)
}

// AccountHandler serves the /api/v1/account endpoints for the
// authenticated user.
type AccountHandler struct {
	Credits        CreditReader
	Commissions    CommissionReader
	Users          ReceivingUpdater
	PaymentMethods PaymentMethodStore
	Recharge       Recharger
	Logger         *slog.Logger
}

// --- GET /api/v1/account/me ---

type meResponse struct {
	ID                     string    `json:"id"`
	Username               string    `json:"username"`
	Email                  string    `json:"email"`
	Credits                int       `json:"credits"`
	CommissionBalance      int       `json:"commission_balance"`
	ReceivingAccountType   *string   `json:"receiving_account_type,omitempty"`
	ReceivingAccountName   *string   `json:"receiving_account_name,omitempty"`
	ReceivingAccountNumber *string   `json:"receiving_account_number,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:                     user.ID.String(),
		Username:               user.Username,
		Email:                  user.Email,
		Credits:                user.Credits,
		CommissionBalance:      user.CommissionBalance,
		ReceivingAccountType:   user.ReceivingAccountType,
		ReceivingAccountName:   user.ReceivingAccountName,
		ReceivingAccountNumber: user.ReceivingAccountNumber,
		CreatedAt:              user.CreatedAt,
	})
}

// --- GET /api/v1/account/balance ---

func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"credits":            user.Credits,
		"commission_balance": user.CommissionBalance,
	})
}

// --- GET /api/v1/account/transactions ---

func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	limit := queryInt(r, "limit", 50, 1, 200)
	offset := queryInt(r, "offset", 0, 0, 1<<30)
	txs, err := h.Credits.ListByUserID(r.Context(), user.ID, limit, offset)
	if err != nil {
		h.Logger.Error("list transactions", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []*models.CreditTransaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// --- GET /api/v1/account/commissions ---

func (h *AccountHandler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	limit := queryInt(r, "limit", 50, 1, 200)
	offset := queryInt(r, "offset", 0, 0, 1<<30)
	recs, err := h.Commissions.ListUserRecords(r.Context(), user.ID, limit, offset)
	if err != nil {
		h.Logger.Error("list commissions", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []*models.UserCommissionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// --- PATCH /api/v1/account/receiving-account ---

type receivingAccountRequest struct {
	Type   *string `json:"receiving_account_type"`
	Name   *string `json:"receiving_account_name"`
	Number *string `json:"receiving_account_number"`
}

func (h *AccountHandler) UpdateReceivingAccount(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req receivingAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.Users.UpdateReceivingAccount(r.Context(), user.ID, req.Type, req.Name, req.Number); err != nil {
		h.Logger.Error("update receiving account", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// --- POST /api/v1/account/recharge/orders ---

type createRechargeRequest struct {
	Channel string `json:"channel"`
	Points  int    `json:"points"`
}

func (h *AccountHandler) CreateRechargeOrder(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createRechargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	order, err := h.Recharge.CreateOrder(r.Context(), user.ID, req.Channel, req.Points)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// --- POST /api/v1/account/recharge/orders/{id}/confirm ---

func (h *AccountHandler) ConfirmRechargeOrder(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	orderID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid order id"}`, http.StatusBadRequest)
		return
	}
	order, err := h.Recharge.ConfirmOrder(r.Context(), orderID, user.ID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// --- GET /api/v1/account/recharge/orders ---

func (h *AccountHandler) ListRechargeOrders(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	limit := queryInt(r, "limit", 50, 1, 200)
	offset := queryInt(r, "offset", 0, 0, 1<<30)
	orders, err := h.Recharge.ListOrders(r.Context(), user.ID, limit, offset)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	if orders == nil {
		orders = []*models.RechargeOrder{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// --- POST /api/v1/account/payment-methods ---

type createPaymentMethodRequest struct {
	Type       string `json:"type"`
	MaskedInfo string `json:"masked_info"`
	IsDefault  bool   `json:"is_default"`
}

func (h *AccountHandler) CreatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createPaymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Type == "" || req.MaskedInfo == "" {
		http.Error(w, `{"error":"type and masked_info are required"}`, http.StatusBadRequest)
		return
	}
	pm := &models.PaymentMethod{
		ID:         uuid.New(),
		UserID:     user.ID,
		Type:       req.Type,
		MaskedInfo: req.MaskedInfo,
		IsDefault:  req.IsDefault,
	}
	if err := h.PaymentMethods.Create(r.Context(), pm); err != nil {
		h.Logger.Error("create payment method", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, pm)
}

// --- GET /api/v1/account/payment-methods ---

func (h *AccountHandler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	methods, err := h.PaymentMethods.ListByUserID(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("list payment methods", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if methods == nil {
		methods = []*models.PaymentMethod{}
	}
	writeJSON(w, http.StatusOK, methods)
}

// --- DELETE /api/v1/account/payment-methods/{id} ---

func (h *AccountHandler) DeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid payment method id"}`, http.StatusBadRequest)
		return
	}
	deleted, err := h.PaymentMethods.DeleteForUser(r.Context(), id, user.ID)
	if err != nil {
		h.Logger.Error("delete payment method", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, `{"error":"payment method not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
