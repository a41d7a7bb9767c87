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

type PaymentReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error)
}

// CoinHandler serves coin packages, purchases and payment history.
type CoinHandler struct {
	Ledger    LedgerService
	Payments  PaymentReader
	Validator *services.Validator
	Logger    *slog.Logger
}

// --- GET /api/v1/coins/packages ---

type packagesResponse struct {
	Packages          []config.CoinPackage `json:"packages"`
	CustomCoinPrice   decimal.Decimal      `json:"custom_coin_price"`
	MinCustomPurchase int64                `json:"min_custom_purchase"`
	MaxCustomPurchase int64                `json:"max_custom_purchase"`
}

func (h *CoinHandler) Packages(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, packagesResponse{
		Packages:          config.CoinPackages,
		CustomCoinPrice:   config.CustomCoinPrice,
		MinCustomPurchase: config.MinCustomPurchaseCoins,
		MaxCustomPurchase: config.MaxCustomPurchaseCoins,
	})
}

// --- POST /api/v1/coins/purchase ---

type purchaseRequest struct {
	PackageID     string `json:"package_id"`
	CustomCoins   int64  `json:"custom_coins"`
	PaymentMethod string `json:"payment_method"`
}

type purchaseResponse struct {
	Payment    *models.Payment `json:"payment"`
	NewBalance int64           `json:"new_balance"`
}

func (h *CoinHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(w, r)
	if !ok {
		return
	}
	var req purchaseRequest
	if err := h.Validator.Decode(services.SchemaPurchaseCoins, r.Body, &req); err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	p, err := h.Ledger.PurchaseCoins(r.Context(), sess, ledger.PurchaseInput{
		PackageID:     req.PackageID,
		CustomCoins:   req.CustomCoins,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, purchaseResponse{Payment: p, NewBalance: sess.Coins + p.Coins})
}

// --- GET /api/v1/payments ---

func (h *CoinHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(w, r)
	if !ok {
		return
	}
	payments, err := h.Payments.ListByUser(r.Context(), sess.AccountID)
	if err != nil {
		WriteError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, listOf(payments))
}
