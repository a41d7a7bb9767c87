package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/microtasks/backend/internal/config"
	"github.com/microtasks/backend/internal/ledger"
	"github.com/microtasks/backend/internal/models"
	"github.com/microtasks/backend/internal/services"
)

type WithdrawalReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Withdrawal, error)
	ListByStatus(ctx context.Context, status *models.Status) ([]*models.Withdrawal, error)
	PendingSum(ctx context.Context, userID uuid.UUID) (int64, error)
}

// WithdrawalHandler serves payout requests and their admin review.
type WithdrawalHandler struct {
	Ledger      LedgerService
	Withdrawals WithdrawalReader
	Validator   *services.Validator
	Logger      *slog.Logger
}

// --- POST /api/v1/withdrawals ---

type withdrawalRequest struct {
	Coins         int64  `json:"coins"`
	PaymentSystem string `json:"payment_system"`
	AccountNumber string `json:"account_number"`
}

func (h *WithdrawalHandler) Request(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(w, r)
	if !ok {
		return
	}
	var req withdrawalRequest
	if err := h.Validator.Decode(services.SchemaRequestWithdrawal, r.Body, &req); err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	wd, err := h.Ledger.RequestWithdrawal(r.Context(), sess, ledger.WithdrawalInput{
		Coins:         req.Coins,
		PaymentSystem: req.PaymentSystem,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, wd)
}

// --- GET /api/v1/withdrawals ---

type withdrawalsResponse struct {
	Withdrawals    []*models.Withdrawal `json:"withdrawals"`
	Balance        int64                `json:"balance"`
	Pending        int64                `json:"pending"`
	Available      int64                `json:"available"`
	AvailableUSD   decimal.Decimal      `json:"available_usd"`
	MinWithdrawal  int64                `json:"min_withdrawal"`
	CanWithdraw    bool                 `json:"can_withdraw"`
	PaymentSystems []string             `json:"payment_systems"`
}

// ListMine returns the caller's requests with the balance breakdown used by
// the withdrawal form.
func (h *WithdrawalHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(w, r)
	if !ok {
		return
	}
	list, err := h.Withdrawals.ListByUser(r.Context(), sess.AccountID)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	pending, err := h.Withdrawals.PendingSum(r.Context(), sess.AccountID)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	available := max(sess.Coins-pending, 0)
	WriteJSON(w, http.StatusOK, withdrawalsResponse{
		Withdrawals:    listOf(list),
		Balance:        sess.Coins,
		Pending:        pending,
		Available:      available,
		AvailableUSD:   config.CoinsToUSD(available),
		MinWithdrawal:  config.MinWithdrawalCoins,
		CanWithdraw:    pending == 0 && available >= config.MinWithdrawalCoins,
		PaymentSystems: config.PaymentChannelNames(),
	})
}

// --- GET /api/v1/admin/withdrawals?status= ---

func (h *WithdrawalHandler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	var status *models.Status
	if q := r.URL.Query().Get("status"); q != "" {
		s := models.Status(q)
		if !s.Valid() {
			WriteJSON(w, http.StatusBadRequest, errorBody("status must be pending, approved or rejected"))
			return
		}
		status = &s
	}
	list, err := h.Withdrawals.ListByStatus(r.Context(), status)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, listOf(list))
}

// --- POST /api/v1/admin/withdrawals/{id}/approve|reject ---

func (h *WithdrawalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, ledger.Approve)
}

func (h *WithdrawalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, ledger.Reject)
}

func (h *WithdrawalHandler) decide(w http.ResponseWriter, r *http.Request, d ledger.Decision) {
	sess, ok := Session(w, r)
	if !ok {
		return
	}
	id, ok := PathUUID(w, r, "id")
	if !ok {
		return
	}
	wd, err := h.Ledger.DecideWithdrawal(r.Context(), sess, id, d)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, wd)
}
