package router

import (
	"net/http"

	"github.com/microtasks/backend/internal/auth"
	"github.com/microtasks/backend/internal/dashboard"
	"github.com/microtasks/backend/internal/handlers"
	"github.com/microtasks/backend/internal/middleware"
	"github.com/microtasks/backend/internal/models"
	"github.com/microtasks/backend/internal/users"
)

const base = "/api/v1"

// Handlers groups every HTTP handler the API serves.
type Handlers struct {
	Auth        *auth.Handler
	Dashboard   *dashboard.Handler
	Tasks       *handlers.TaskHandler
	Withdrawals *handlers.WithdrawalHandler
	Coins       *handlers.CoinHandler
	Users       *users.Handler
}

type routes struct {
	mux     *http.ServeMux
	session func(http.Handler) http.Handler
}

func (rt routes) public(pattern string, h http.HandlerFunc) {
	rt.mux.Handle(pattern, h)
}

// authed requires a session and, when roles are given, one of those roles.
func (rt routes) authed(pattern string, h http.HandlerFunc, roles ...models.Role) {
	mws := []func(http.Handler) http.Handler{rt.session}
	if len(roles) > 0 {
		mws = append(mws, middleware.RequireRole(roles...))
	}
	rt.mux.Handle(pattern, middleware.Chain(h, mws...))
}

// New returns a mux serving the API under /api/v1. session resolves the
// caller; role checks run after it.
func New(h Handlers, session func(http.Handler) http.Handler) *http.ServeMux {
	rt := routes{mux: http.NewServeMux(), session: session}

	const (
		worker = models.RoleWorker
		buyer  = models.RoleBuyer
		admin  = models.RoleAdmin
	)

	rt.public("POST "+base+"/auth/register", h.Auth.Register)
	rt.public("POST "+base+"/auth/login", h.Auth.Login)

	// Account and dashboard
	rt.authed("GET "+base+"/account/me", h.Dashboard.GetMe)
	rt.authed("PATCH "+base+"/account/settings", h.Dashboard.UpdateSettings)
	rt.authed("GET "+base+"/account/credit-ledger", h.Dashboard.ListCreditLedger)
	rt.authed("GET "+base+"/dashboard", h.Dashboard.GetDashboard)
	rt.authed("GET "+base+"/notifications", h.Dashboard.ListNotifications)
	rt.authed("POST "+base+"/notifications/read-all", h.Dashboard.MarkAllRead)
	rt.authed("POST "+base+"/notifications/{id}/read", h.Dashboard.MarkRead)

	// Tasks and submissions
	rt.authed("GET "+base+"/tasks", h.Tasks.ListOpen, worker)
	rt.authed("GET "+base+"/tasks/{id}", h.Tasks.GetTask)
	rt.authed("POST "+base+"/tasks", h.Tasks.CreateTask, buyer)
	rt.authed("GET "+base+"/my-tasks", h.Tasks.ListMine, buyer)
	rt.authed("DELETE "+base+"/tasks/{id}", h.Tasks.DeleteTask, buyer, admin)
	rt.authed("POST "+base+"/tasks/{id}/submissions", h.Tasks.SubmitWork, worker)
	rt.authed("GET "+base+"/tasks/{id}/submissions", h.Tasks.ListTaskSubmissions, buyer, admin)
	rt.authed("GET "+base+"/submissions", h.Tasks.ListMySubmissions, worker)
	rt.authed("GET "+base+"/review", h.Tasks.ListReview, buyer)
	rt.authed("POST "+base+"/submissions/{id}/approve", h.Tasks.ApproveSubmission, buyer, admin)
	rt.authed("POST "+base+"/submissions/{id}/reject", h.Tasks.RejectSubmission, buyer, admin)

	// Withdrawals
	rt.authed("POST "+base+"/withdrawals", h.Withdrawals.Request, worker, buyer)
	rt.authed("GET "+base+"/withdrawals", h.Withdrawals.ListMine, worker, buyer)

	// Coins
	rt.authed("GET "+base+"/coins/packages", h.Coins.Packages, buyer)
	rt.authed("POST "+base+"/coins/purchase", h.Coins.Purchase, buyer)
	rt.authed("GET "+base+"/payments", h.Coins.ListPayments, buyer)

	// Admin
	rt.authed("GET "+base+"/admin/users", h.Users.List, admin)
	rt.authed("PATCH "+base+"/admin/users/{id}/role", h.Users.ChangeRole, admin)
	rt.authed("PATCH "+base+"/admin/users/{id}/coins", h.Users.SetCoins, admin)
	rt.authed("GET "+base+"/admin/tasks", h.Tasks.ListAll, admin)
	rt.authed("GET "+base+"/admin/withdrawals", h.Withdrawals.ListAdmin, admin)
	rt.authed("POST "+base+"/admin/withdrawals/{id}/approve", h.Withdrawals.Approve, admin)
	rt.authed("POST "+base+"/admin/withdrawals/{id}/reject", h.Withdrawals.Reject, admin)

	return rt.mux
}
