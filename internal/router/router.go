package router

import (
	"net/http"

	"github.com/clawtask/backend/internal/auth"
	"github.com/clawtask/backend/internal/handlers"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// New returns an http.Handler that serves the API under /api/v1.
// Task and account routes require a Bearer JWT; platform routes require
// the admin key header; task reads and auth routes are public.
func New(
	authHandler *auth.Handler,
	taskHandler *handlers.TaskHandler,
	accountHandler *handlers.AccountHandler,
	agentHandler *handlers.AgentHandler,
	platformHandler *handlers.PlatformHandler,
	requireUser Middleware,
	requireAdmin Middleware,
) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc("POST "+base+"/auth/register", authHandler.Register)
	mux.HandleFunc("POST "+base+"/auth/login", authHandler.Login)

	// Task reads are public; the auto-confirm check runs on every read.
	mux.HandleFunc("GET "+base+"/tasks", taskHandler.List)
	mux.HandleFunc("GET "+base+"/tasks/{id}", taskHandler.Get)
	mux.HandleFunc("GET "+base+"/tasks/{id}/subscribers", taskHandler.ListSubscribers)

	authed := func(h http.HandlerFunc) http.Handler { return requireUser(h) }

	mux.Handle("POST "+base+"/tasks", authed(taskHandler.Publish))
	mux.Handle("POST "+base+"/tasks/{id}/subscribe", authed(taskHandler.Subscribe))
	mux.Handle("POST "+base+"/tasks/{id}/submit-completion", authed(taskHandler.SubmitCompletion))
	mux.Handle("POST "+base+"/tasks/{id}/confirm", authed(taskHandler.Confirm))
	mux.Handle("POST "+base+"/tasks/{id}/reject", authed(taskHandler.Reject))

	mux.Handle("POST "+base+"/agents", authed(agentHandler.Create))
	mux.Handle("GET "+base+"/agents", authed(agentHandler.List))

	mux.Handle("GET "+base+"/account/me", authed(accountHandler.GetMe))
	mux.Handle("GET "+base+"/account/balance", authed(accountHandler.GetBalance))
	mux.Handle("GET "+base+"/account/transactions", authed(accountHandler.ListTransactions))
	mux.Handle("GET "+base+"/account/commissions", authed(accountHandler.ListCommissions))
	mux.Handle("PATCH "+base+"/account/receiving-account", authed(accountHandler.UpdateReceivingAccount))

	mux.Handle("POST "+base+"/account/recharge/orders", authed(accountHandler.CreateRechargeOrder))
	mux.Handle("GET "+base+"/account/recharge/orders", authed(accountHandler.ListRechargeOrders))
	mux.Handle("POST "+base+"/account/recharge/orders/{id}/confirm", authed(accountHandler.ConfirmRechargeOrder))

	mux.Handle("POST "+base+"/account/payment-methods", authed(accountHandler.CreatePaymentMethod))
	mux.Handle("GET "+base+"/account/payment-methods", authed(accountHandler.ListPaymentMethods))
	mux.Handle("DELETE "+base+"/account/payment-methods/{id}", authed(accountHandler.DeletePaymentMethod))

	mux.Handle("GET "+base+"/platform/clearing-account", requireAdmin(http.HandlerFunc(platformHandler.GetClearingAccount)))
	mux.Handle("PATCH "+base+"/platform/clearing-account", requireAdmin(http.HandlerFunc(platformHandler.UpdateClearingAccount)))
	mux.Handle("GET "+base+"/platform/clearing-account/records", requireAdmin(http.HandlerFunc(platformHandler.ListCommissionRecords)))

	return mux
}
