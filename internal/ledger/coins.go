package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/microtasks/backend/internal/config"
	"github.com/microtasks/backend/internal/models"
)

type PurchaseInput struct {
	// PackageID selects a fixed package; when empty CustomCoins is used.
	PackageID     string
	CustomCoins   int64
	PaymentMethod string
}

// PurchaseCoins records a completed payment and credits the coins.
func (s *Service) PurchaseCoins(ctx context.Context, sess *models.Session, in PurchaseInput) (*models.Payment, error) {
	if !sess.HasRole(models.RoleBuyer) {
		return nil, ErrForbidden
	}
	p := &models.Payment{
		ID:            uuid.New(),
		UserID:        sess.AccountID,
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		Status:        models.PaymentStatusCompleted,
	}
	if p.PaymentMethod == "" {
		p.PaymentMethod = "card"
	}
	if in.PackageID != "" {
		pkg, ok := config.PackageByID(in.PackageID)
		if !ok {
			return nil, validationErr("unknown coin package %q", in.PackageID)
		}
		p.Coins, p.AmountUSD = pkg.Coins, pkg.PriceUSD
	} else {
		if in.CustomCoins < config.MinCustomPurchaseCoins {
			return nil, fmt.Errorf("%w: minimum purchase is %d coins", ErrBelowMinimum, config.MinCustomPurchaseCoins)
		}
		if in.CustomCoins > config.MaxCustomPurchaseCoins {
			return nil, validationErr("custom purchase is limited to %d coins", config.MaxCustomPurchaseCoins)
		}
		p.Coins, p.AmountUSD = in.CustomCoins, config.CustomPurchasePrice(in.CustomCoins)
	}

	err := s.run(ctx, "purchase_coins", func(sc *txScope) error {
		if err := s.stores.Payments.CreateTx(ctx, sc.tx, p); err != nil {
			return persistErr("create payment", err)
		}
		balance, err := s.stores.Accounts.AddCoins(ctx, sc.tx, sess.AccountID, p.Coins)
		if err != nil {
			return persistErr("credit purchase", err)
		}
		return s.record(ctx, sc, &models.CreditLedger{
			AccountID:    sess.AccountID,
			ReferenceID:  uuidPtr(p.ID),
			EntryType:    models.CreditEntryCoinPurchase,
			Amount:       p.Coins,
			BalanceAfter: balance,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("coins purchased", "payment_id", p.ID, "user_id", sess.AccountID, "coins", p.Coins, "usd", p.AmountUSD.StringFixed(2))
	return p, nil
}

// AdjustCoins sets an account's balance outright and journals the signed delta.
func (s *Service) AdjustCoins(ctx context.Context, sess *models.Session, accountID uuid.UUID, coins int64) (*models.Account, error) {
	if !sess.HasRole(models.RoleAdmin) {
		return nil, ErrForbidden
	}
	if coins < 0 {
		return nil, validationErr("coins must not be negative")
	}
	var acc *models.Account
	err := s.run(ctx, "adjust_coins", func(sc *txScope) error {
		var err error
		acc, err = s.stores.Accounts.GetByIDForUpdate(ctx, sc.tx, accountID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: account %s", ErrNotFound, accountID)
		}
		if err != nil {
			return persistErr("lock account", err)
		}
		delta := coins - acc.Coins
		if delta == 0 {
			return nil
		}
		if err := s.stores.Accounts.SetCoins(ctx, sc.tx, accountID, coins); err != nil {
			return persistErr("set coins", err)
		}
		acc.Coins = coins
		return s.record(ctx, sc, &models.CreditLedger{
			AccountID:    accountID,
			EntryType:    models.CreditEntryAdminAdjustment,
			Amount:       delta,
			BalanceAfter: coins,
		})
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}
