package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/microtasks/backend/internal/handlers"
	"github.com/microtasks/backend/internal/models"
	"github.com/microtasks/backend/internal/services"
)

type ChangeRoleRequest struct {
	Role models.Role `json:"role"`
}

type SetCoinsRequest struct {
	Coins int64 `json:"coins"`
}

type ListResponse struct {
	Users   []*models.Account `json:"users"`
	Summary Summary           `json:"summary"`
}

type Handler struct {
	svc       Service
	validator *services.Validator
	log       *slog.Logger
}

func NewHandler(svc Service, validator *services.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, validator: validator, log: log}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRole):
		handlers.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "role must be worker, buyer or admin"})
	case errors.Is(err, ErrSelfDemotion):
		handlers.WriteJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		handlers.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
	default:
		handlers.WriteError(w, h.log, err)
	}
}

// GET /api/v1/admin/users?role=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var role *models.Role
	if q := r.URL.Query().Get("role"); q != "" {
		rr := models.Role(q)
		role = &rr
	}
	list, summary, err := h.svc.List(r.Context(), role)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []*models.Account{}
	}
	handlers.WriteJSON(w, http.StatusOK, ListResponse{Users: list, Summary: summary})
}

// PATCH /api/v1/admin/users/{id}/role
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	sess, ok := handlers.Session(w, r)
	if !ok {
		return
	}
	id, ok := handlers.PathUUID(w, r, "id")
	if !ok {
		return
	}
	var req ChangeRoleRequest
	if err := h.validator.Decode(services.SchemaChangeRole, r.Body, &req); err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	acc, err := h.svc.ChangeRole(r.Context(), sess, id, req.Role)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.log.Info("role changed", "user_id", id, "role", acc.Role, "by", sess.AccountID)
	handlers.WriteJSON(w, http.StatusOK, acc)
}

// PATCH /api/v1/admin/users/{id}/coins
func (h *Handler) SetCoins(w http.ResponseWriter, r *http.Request) {
	sess, ok := handlers.Session(w, r)
	if !ok {
		return
	}
	id, ok := handlers.PathUUID(w, r, "id")
	if !ok {
		return
	}
	var req SetCoinsRequest
	if err := h.validator.Decode(services.SchemaSetCoins, r.Body, &req); err != nil {
		handlers.WriteError(w, h.log, err)
		return
	}
	acc, err := h.svc.SetCoins(r.Context(), sess, id, req.Coins)
	if err != nil {
		h.writeError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, acc)
}
