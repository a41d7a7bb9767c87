package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microtasks/backend/internal/models"
)

const accountColumns = `id, email, full_name, avatar_url, password_hash, coins, role, created_at, updated_at`

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.Email, &a.FullName, &a.AvatarURL, &a.PasswordHash, &a.Coins, &a.Role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateTx inserts the account with its opening balance inside the caller's transaction.
func (r *AccountRepo) CreateTx(ctx context.Context, tx pgx.Tx, a *models.Account) error {
	return tx.QueryRow(ctx, `
		INSERT INTO accounts (id, email, full_name, avatar_url, password_hash, coins, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, a.ID, a.Email, a.FullName, a.AvatarURL, a.PasswordHash, a.Coins, a.Role).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email))
}

// GetByIDForUpdate locks the account row for update. Call within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error) {
	return scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

// List returns accounts newest first, optionally restricted to one role.
func (r *AccountRepo) List(ctx context.Context, role *models.Role) ([]*models.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE $1::text IS NULL OR role = $1
		ORDER BY created_at DESC
	`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// UpdateProfile changes display fields only; balance and role have their own paths.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uuid.UUID, fullName string, avatarURL *string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		UPDATE accounts SET full_name = $2, avatar_url = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns, id, fullName, avatarURL))
}

func (r *AccountRepo) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `
		UPDATE accounts SET role = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns, id, role))
}

// DeductCoins atomically deducts amount if coins >= amount and returns the new balance.
// It returns pgx.ErrNoRows when the balance is too low or the account does not exist.
func (r *AccountRepo) DeductCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET coins = coins - $1, updated_at = now()
		WHERE id = $2 AND coins >= $1
		RETURNING coins
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// AddCoins adds amount to account and returns new balance.
func (r *AccountRepo) AddCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET coins = coins + $1, updated_at = now()
		WHERE id = $2
		RETURNING coins
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// SetCoins overwrites the balance. Call after GetByIDForUpdate in same tx.
func (r *AccountRepo) SetCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, coins int64) error {
	_, err := tx.Exec(ctx, `UPDATE accounts SET coins = $2, updated_at = now() WHERE id = $1`, id, coins)
	return err
}
