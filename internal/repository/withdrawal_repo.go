package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microtasks/backend/internal/models"
)

const withdrawalColumns = `w.id, w.user_id, w.coins, w.amount_usd, w.payment_system, w.account_number, w.status,
	w.created_at, w.updated_at, a.full_name, a.email`

type WithdrawalRepo struct {
	pool *pgxpool.Pool
}

func NewWithdrawalRepo(pool *pgxpool.Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := row.Scan(&w.ID, &w.UserID, &w.Coins, &w.AmountUSD, &w.PaymentSystem, &w.AccountNumber, &w.Status,
		&w.CreatedAt, &w.UpdatedAt, &w.UserName, &w.UserEmail); err != nil {
		return nil, err
	}
	return &w, nil
}

func collectWithdrawals(rows pgx.Rows, err error) ([]*models.Withdrawal, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

// CreateTx inserts a pending withdrawal. A second pending request for the
// same user fails with a unique violation.
func (r *WithdrawalRepo) CreateTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error {
	return tx.QueryRow(ctx, `
		INSERT INTO withdrawals (id, user_id, coins, amount_usd, payment_system, account_number, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, w.ID, w.UserID, w.Coins, w.AmountUSD, w.PaymentSystem, w.AccountNumber, w.Status).Scan(&w.CreatedAt, &w.UpdatedAt)
}

func (r *WithdrawalRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Withdrawal, error) {
	return scanWithdrawal(tx.QueryRow(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals w JOIN accounts a ON a.id = w.user_id WHERE w.id = $1
	`, id))
}

// DecideTx moves a pending withdrawal to status. It returns pgx.ErrNoRows
// when the withdrawal is no longer pending.
func (r *WithdrawalRepo) DecideTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.Status) (*models.Withdrawal, error) {
	return scanWithdrawal(tx.QueryRow(ctx, `
		WITH updated AS (
			UPDATE withdrawals SET status = $2, updated_at = now()
			WHERE id = $1 AND status = 'pending'
			RETURNING *
		)
		SELECT `+withdrawalColumns+` FROM updated w JOIN accounts a ON a.id = w.user_id
	`, id, status))
}

func (r *WithdrawalRepo) HasPendingTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM withdrawals WHERE user_id = $1 AND status = 'pending')
	`, userID).Scan(&exists)
	return exists, err
}

// PendingSumTx is the portion of the user's balance reserved by pending requests.
func (r *WithdrawalRepo) PendingSumTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error) {
	var sum int64
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(coins), 0)::bigint FROM withdrawals WHERE user_id = $1 AND status = 'pending'
	`, userID).Scan(&sum)
	return sum, err
}

func (r *WithdrawalRepo) PendingSum(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(coins), 0)::bigint FROM withdrawals WHERE user_id = $1 AND status = 'pending'
	`, userID).Scan(&sum)
	return sum, err
}

func (r *WithdrawalRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Withdrawal, error) {
	return collectWithdrawals(r.pool.Query(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals w JOIN accounts a ON a.id = w.user_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC
	`, userID))
}

// ListByStatus returns withdrawals oldest first; a nil status lists all of them.
func (r *WithdrawalRepo) ListByStatus(ctx context.Context, status *models.Status) ([]*models.Withdrawal, error) {
	return collectWithdrawals(r.pool.Query(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals w JOIN accounts a ON a.id = w.user_id
		WHERE $1::text IS NULL OR w.status = $1
		ORDER BY w.created_at ASC
	`, status))
}
