package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/microtasks/backend/internal/ledger"
	"github.com/microtasks/backend/internal/middleware"
	"github.com/microtasks/backend/internal/models"
	"github.com/microtasks/backend/internal/services"
)

// LedgerService is every coin-moving workflow the HTTP layer can trigger.
type LedgerService interface {
	FundTask(ctx context.Context, sess *models.Session, in ledger.FundTaskInput) (*models.Task, error)
	SubmitWork(ctx context.Context, sess *models.Session, taskID uuid.UUID, details string) (*models.Submission, error)
	DecideSubmission(ctx context.Context, sess *models.Session, submissionID uuid.UUID, d ledger.Decision) (*models.Submission, error)
	DeleteTask(ctx context.Context, sess *models.Session, taskID uuid.UUID) (int64, error)
	RequestWithdrawal(ctx context.Context, sess *models.Session, in ledger.WithdrawalInput) (*models.Withdrawal, error)
	DecideWithdrawal(ctx context.Context, sess *models.Session, withdrawalID uuid.UUID, d ledger.Decision) (*models.Withdrawal, error)
	PurchaseCoins(ctx context.Context, sess *models.Session, in ledger.PurchaseInput) (*models.Payment, error)
	AdjustCoins(ctx context.Context, sess *models.Session, accountID uuid.UUID, coins int64) (*models.Account, error)
}

var _ LedgerService = (*ledger.Service)(nil)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

type errorStatus struct {
	err    error
	status int
	msg    string
}

// Messages are shown to the user as-is, so they read as toast text.
var ledgerErrors = []errorStatus{
	{ledger.ErrInsufficientFunds, http.StatusPaymentRequired, "Not enough coins. Purchase coins to continue."},
	{ledger.ErrInsufficientAvailableBalance, http.StatusPaymentRequired, "Requested coins exceed your available balance."},
	{ledger.ErrCoinsReserved, http.StatusPaymentRequired, "Part of your balance is reserved for a pending withdrawal."},
	{ledger.ErrBelowMinimum, http.StatusBadRequest, ""},
	{ledger.ErrTaskFull, http.StatusConflict, "This task has no open slots left."},
	{ledger.ErrTaskExpired, http.StatusConflict, "This task's completion date has passed."},
	{ledger.ErrAlreadyDecided, http.StatusConflict, "This request has already been reviewed."},
	{ledger.ErrPendingWithdrawalExists, http.StatusConflict, "You already have a pending withdrawal request."},
	{ledger.ErrDuplicateSubmission, http.StatusConflict, "You have already submitted work for this task."},
	{ledger.ErrNotFound, http.StatusNotFound, "Not found."},
	{ledger.ErrForbidden, http.StatusForbidden, "You are not allowed to do that."},
}

// WriteError maps a service error onto an HTTP status and a short message.
// Unknown errors are logged and reported as 500.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	if errors.Is(err, ledger.ErrValidation) || errors.Is(err, services.ErrValidation) {
		WriteJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	for _, e := range ledgerErrors {
		if errors.Is(err, e.err) {
			msg := e.msg
			if msg == "" {
				msg = err.Error()
			}
			WriteJSON(w, e.status, errorBody(msg))
			return
		}
	}
	if log == nil {
		log = slog.Default()
	}
	var pe *ledger.PersistenceError
	if errors.As(err, &pe) {
		log.Error("ledger persistence failure", "op", pe.Op, "error", pe.Err)
	} else {
		log.Error("request failed", "error", err)
	}
	WriteJSON(w, http.StatusInternalServerError, errorBody("Something went wrong. Please try again."))
}

// PathUUID parses the named path wildcard, writing 400 on failure.
func PathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, errorBody("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// Session returns the caller's session, writing 401 when there is none.
func Session(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		WriteJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return nil, false
	}
	return sess, true
}

// listOf makes nil slices encode as [] rather than null.
func listOf[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
