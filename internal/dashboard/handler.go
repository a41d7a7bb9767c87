package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/microtasks/backend/internal/handlers"
	"github.com/microtasks/backend/internal/models"
	"github.com/microtasks/backend/internal/services"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fullName string, avatarURL *string) (*models.Account, error)
}

type CreditReader interface {
	ListByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.CreditLedger, error)
}

type NotificationStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type StatsReader interface {
	WorkerStats(ctx context.Context, workerID uuid.UUID) (*models.WorkerStats, error)
	BuyerStats(ctx context.Context, buyerID uuid.UUID) (*models.BuyerStats, error)
	AdminStats(ctx context.Context) (*models.AdminStats, error)
}

type Handler struct {
	accounts      AccountStore
	credits       CreditReader
	notifications NotificationStore
	stats         StatsReader
	validator     *services.Validator
	log           *slog.Logger
}

func NewHandler(
	accounts AccountStore,
	credits CreditReader,
	notifications NotificationStore,
	stats StatsReader,
	validator *services.Validator,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		accounts:      accounts,
		credits:       credits,
		notifications: notifications,
		stats:         stats,
		validator:     validator,
		log:           log,
	}
}

// limitParam reads ?limit=, clamped to (0, maxListLimit].
func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return min(n, maxListLimit)
}

// GET /api/v1/dashboard
type dashboardResponse struct {
	Role                models.Role `json:"role"`
	DisplayName         string      `json:"display_name"`
	Coins               int64       `json:"coins"`
	Menu                []MenuItem  `json:"menu"`
	UnreadNotifications int64       `json:"unread_notifications"`
	Stats               any         `json:"stats"`
}

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := handlers.Session(w, r)
	if !ok {
		return
	}
	var (
		stats any
		err   error
	)
	switch sess.Role {
	case models.RoleWorker:
		stats, err = h.stats.WorkerStats(r.Context(), sess.AccountID)
	case models.RoleBuyer:
		stats, err = h.stats.BuyerStats(r.Context(), sess.AccountID)
	case models.RoleAdmin:
		stats, err = h.stats.AdminStats(r.Context())
	default:
		handlers.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "unknown role"})
		return
	}
	if err != nil {
		h.log.Error("load dashboard stats failed", "role", sess.Role, "error", err)
		handlers.WriteError(w, h.log, err)
		return
	}
	unread, err := h.notifications.CountUnread(r.Context(), sess.AccountID)
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, dashboardResponse{
		Role:                sess.Role,
		DisplayName:         sess.DisplayName,
		Coins:               sess.Coins,
		Menu:                MenuFor(sess.Role),
		UnreadNotifications: unread,
		Stats:               stats,
	})
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := handlers.Session(w, r)
	if !ok {
		return
	}
	acc, err := h.accounts.GetByID(r.Context(), sess.AccountID)
	if err != nil {
		h.log.Error("get account failed", "error", err)
		handlers.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})
		return
	}
	handlers.WriteJSON(w, http.StatusOK, acc)
}

// nullableString tells an absent field apart from an explicit null.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	return json.Unmarshal(b, &n.Value)
}

type settingsRequest struct {
	FullName  *string        `json:"full_name"`
	AvatarURL nullableString `json:"avatar_url"`
}

// PATCH /api/v1/account/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := handlers.Session(w, r)
	if !ok {
		return
	}
	var req settingsRequest
	if err := h.validator.Decode(services.SchemaUpdateSettings, r.Body, &req); err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	acc, err := h.accounts.GetByID(r.Context(), sess.AccountID)
	if err != nil {
		handlers.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})
		return
	}
	if req.FullName != nil {
		acc.FullName = *req.FullName
	}
	if req.AvatarURL.Set {
		acc.AvatarURL = req.AvatarURL.Value
	}
	updated, err := h.accounts.UpdateProfile(r.Context(), acc.ID, acc.FullName, acc.AvatarURL)
	if err != nil {
		h.log.Error("update settings failed", "error", err)
		handlers.WriteError(w, h.log, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, updated)
}

// GET /api/v1/account/credit-ledger
func (h *Handler) ListCreditLedger(w http.ResponseWriter, r *http.Request) {
	sess, ok := handlers.Session(w, r)
	if !ok {
		return
	}
	entries, err := h.credits.ListByAccountID(r.Context(), sess.AccountID, limitParam(r))
	if err != nil {
		h.log.Error("list credit ledger failed", "error", err)
		handlers.WriteError(w, h.log, err)
		return
	}
	if entries == nil {
		entries = []*models.CreditLedger{}
	}
	handlers.WriteJSON(w, http.StatusOK, entries)
}

// GET /api/v1/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	sess, ok := handlers.Session(w, r)
	if !ok {
		return
	}
	list, err := h.notifications.ListByUser(r.Context(), sess.AccountID, limitParam(r))
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	if list == nil {
		list = []*models.Notification{}
	}
	handlers.WriteJSON(w, http.StatusOK, list)
}

// POST /api/v1/notifications/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	sess, ok := handlers.Session(w, r)
	if !ok {
		return
	}
	id, ok := handlers.PathUUID(w, r, "id")
	if !ok {
		return
	}
	found, err := h.notifications.MarkRead(r.Context(), id, sess.AccountID)
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	if !found {
		handlers.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "notification not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/notifications/read-all
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	sess, ok := handlers.Session(w, r)
	if !ok {
		return
	}
	n, err := h.notifications.MarkAllRead(r.Context(), sess.AccountID)
	if err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]int64{"marked": n})
}
