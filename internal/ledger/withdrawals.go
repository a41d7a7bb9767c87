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
	"github.com/microtasks/backend/internal/repository"
)

type WithdrawalInput struct {
	Coins         int64
	PaymentSystem string
	AccountNumber string
}

// RequestWithdrawal files a pending payout request. Coins stay in the
// balance until an admin approves; meanwhile they count against the
// available balance of any later request.
func (s *Service) RequestWithdrawal(ctx context.Context, sess *models.Session, in WithdrawalInput) (*models.Withdrawal, error) {
	if !sess.HasRole(models.RoleWorker, models.RoleBuyer) {
		return nil, ErrForbidden
	}
	if in.Coins < config.MinWithdrawalCoins {
		return nil, fmt.Errorf("%w: minimum withdrawal is %d coins", ErrBelowMinimum, config.MinWithdrawalCoins)
	}
	in.PaymentSystem = strings.ToLower(strings.TrimSpace(in.PaymentSystem))
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	if !config.IsPaymentChannel(in.PaymentSystem) {
		return nil, validationErr("unknown payment system %q", in.PaymentSystem)
	}
	if in.AccountNumber == "" {
		return nil, validationErr("account number is required")
	}

	w := &models.Withdrawal{
		ID:            uuid.New(),
		UserID:        sess.AccountID,
		Coins:         in.Coins,
		AmountUSD:     config.CoinsToUSD(in.Coins),
		PaymentSystem: in.PaymentSystem,
		AccountNumber: in.AccountNumber,
		Status:        models.StatusPending,
		UserName:      sess.DisplayName,
		UserEmail:     sess.Email,
	}

	err := s.run(ctx, "request_withdrawal", func(sc *txScope) error {
		// The row lock serialises a user's own requests.
		acc, err := s.stores.Accounts.GetByIDForUpdate(ctx, sc.tx, sess.AccountID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: account %s", ErrNotFound, sess.AccountID)
		}
		if err != nil {
			return persistErr("lock account", err)
		}
		pending, err := s.stores.Withdrawals.HasPendingTx(ctx, sc.tx, sess.AccountID)
		if err != nil {
			return persistErr("check pending withdrawal", err)
		}
		if pending {
			return ErrPendingWithdrawalExists
		}
		reserved, err := s.stores.Withdrawals.PendingSumTx(ctx, sc.tx, sess.AccountID)
		if err != nil {
			return persistErr("sum pending withdrawals", err)
		}
		if available := acc.Coins - reserved; in.Coins > available {
			return fmt.Errorf("%w: %d coins available", ErrInsufficientAvailableBalance, available)
		}
		if err := s.stores.Withdrawals.CreateTx(ctx, sc.tx, w); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrPendingWithdrawalExists
			}
			return persistErr("create withdrawal", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("withdrawal requested", "withdrawal_id", w.ID, "user_id", w.UserID, "coins", w.Coins)
	return w, nil
}

// DecideWithdrawal settles a pending request. Approval debits the coins with
// a conditional update; if the balance no longer covers them the whole
// decision rolls back and the request stays pending.
func (s *Service) DecideWithdrawal(ctx context.Context, sess *models.Session, withdrawalID uuid.UUID, d Decision) (*models.Withdrawal, error) {
	target, err := d.status()
	if err != nil {
		return nil, err
	}
	if !sess.HasRole(models.RoleAdmin) {
		return nil, ErrForbidden
	}

	var decided *models.Withdrawal
	err = s.run(ctx, "decide_withdrawal", func(sc *txScope) error {
		if _, err := s.stores.Withdrawals.GetByIDTx(ctx, sc.tx, withdrawalID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: withdrawal %s", ErrNotFound, withdrawalID)
			}
			return persistErr("load withdrawal", err)
		}
		decided, err = s.stores.Withdrawals.DecideTx(ctx, sc.tx, withdrawalID, target)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyDecided
		}
		if err != nil {
			return persistErr("update withdrawal", err)
		}
		usd := decided.AmountUSD.StringFixed(2)

		if d == Reject {
			sc.notify(decided.UserID, "/dashboard/withdrawals",
				fmt.Sprintf("Your withdrawal request of $%s was rejected.", usd))
			return nil
		}

		balance, err := s.stores.Accounts.DeductCoins(ctx, sc.tx, decided.UserID, decided.Coins)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: account no longer holds %d coins", ErrInsufficientFunds, decided.Coins)
		}
		if err != nil {
			return persistErr("debit withdrawal", err)
		}
		if err := s.record(ctx, sc, &models.CreditLedger{
			AccountID:    decided.UserID,
			ReferenceID:  uuidPtr(decided.ID),
			EntryType:    models.CreditEntryWithdrawal,
			Amount:       -decided.Coins,
			BalanceAfter: balance,
		}); err != nil {
			return err
		}
		sc.notify(decided.UserID, "/dashboard/withdrawals",
			fmt.Sprintf("Your withdrawal of $%s has been approved!", usd))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("withdrawal decided", "withdrawal_id", withdrawalID, "status", decided.Status, "by", sess.AccountID)
	return decided, nil
}
