package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/microtasks/backend/internal/models"
)

var (
	ErrInvalidRole = errors.New("invalid role")
	ErrNotFound    = errors.New("user not found")
	// ErrSelfDemotion stops an admin from removing their own admin role.
	ErrSelfDemotion = errors.New("admins cannot change their own role")
)

type AccountStore interface {
	List(ctx context.Context, role *models.Role) ([]*models.Account, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.Account, error)
}

// CoinAdjuster sets a balance through the ledger so the change is journaled.
type CoinAdjuster interface {
	AdjustCoins(ctx context.Context, sess *models.Session, accountID uuid.UUID, coins int64) (*models.Account, error)
}

// Summary counts accounts per role.
type Summary struct {
	Workers int `json:"workers"`
	Buyers  int `json:"buyers"`
	Admins  int `json:"admins"`
}

type Service interface {
	List(ctx context.Context, role *models.Role) ([]*models.Account, Summary, error)
	ChangeRole(ctx context.Context, sess *models.Session, id uuid.UUID, role models.Role) (*models.Account, error)
	SetCoins(ctx context.Context, sess *models.Session, id uuid.UUID, coins int64) (*models.Account, error)
}

type service struct {
	accounts AccountStore
	ledger   CoinAdjuster
}

func NewService(accounts AccountStore, ledger CoinAdjuster) *service {
	return &service{accounts: accounts, ledger: ledger}
}

var _ Service = (*service)(nil)

func summarize(list []*models.Account) Summary {
	var s Summary
	for _, a := range list {
		switch a.Role {
		case models.RoleWorker:
			s.Workers++
		case models.RoleBuyer:
			s.Buyers++
		case models.RoleAdmin:
			s.Admins++
		}
	}
	return s
}

func (s *service) List(ctx context.Context, role *models.Role) ([]*models.Account, Summary, error) {
	if role != nil && !role.Valid() {
		return nil, Summary{}, ErrInvalidRole
	}
	list, err := s.accounts.List(ctx, role)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("list accounts: %w", err)
	}
	return list, summarize(list), nil
}

func (s *service) ChangeRole(ctx context.Context, sess *models.Session, id uuid.UUID, role models.Role) (*models.Account, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if id == sess.AccountID && role != models.RoleAdmin {
		return nil, ErrSelfDemotion
	}
	acc, err := s.accounts.UpdateRole(ctx, id, role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	return acc, nil
}

func (s *service) SetCoins(ctx context.Context, sess *models.Session, id uuid.UUID, coins int64) (*models.Account, error) {
	return s.ledger.AdjustCoins(ctx, sess, id, coins)
}
