package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/microtasks/backend/internal/config"
	"github.com/microtasks/backend/internal/models"
)

var (
	// ErrDuplicateEmail is returned when registering with an email that already exists.
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidRole        = errors.New("invalid role")
	ErrWeakPassword       = errors.New("password must be at least 6 characters with an uppercase and a lowercase letter")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type AccountStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, a *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

type JournalStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditLedger) error
}

type RegisterInput struct {
	Email     string
	Password  string
	FullName  string
	AvatarURL *string
	Role      models.Role
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*models.Account, error)
	Login(ctx context.Context, email, password string) (string, *models.Account, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, models.Role, error)
}

type Options struct {
	Secret      string
	TokenTTL    time.Duration
	AdminEmails []string
}

type service struct {
	pool     TxBeginner
	accounts AccountStore
	journal  JournalStore
	secret   []byte
	ttl      time.Duration
	admins   map[string]bool
	now      func() time.Time
}

func NewService(pool TxBeginner, accounts AccountStore, journal JournalStore, opts Options) *service {
	if opts.Secret == "" {
		opts.Secret = "supersecretmvp"
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	admins := make(map[string]bool, len(opts.AdminEmails))
	for _, e := range opts.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = true
		}
	}
	return &service{
		pool:     pool,
		accounts: accounts,
		journal:  journal,
		secret:   []byte(opts.Secret),
		ttl:      opts.TokenTTL,
		admins:   admins,
		now:      time.Now,
	}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func strongEnough(password string) bool {
	var upper, lower bool
	for _, r := range password {
		upper = upper || unicode.IsUpper(r)
		lower = lower || unicode.IsLower(r)
	}
	return len(password) >= 6 && upper && lower
}

// Register creates the account and grants the role's signup bonus in one
// transaction, journaled like every other coin movement.
func (s *service) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	email := normalizeEmail(in.Email)
	role := in.Role
	if role != models.RoleWorker && role != models.RoleBuyer {
		return nil, ErrInvalidRole
	}
	if s.admins[email] {
		role = models.RoleAdmin
	}
	if !strongEnough(in.Password) {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acc := &models.Account{
		ID:           uuid.New(),
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		AvatarURL:    in.AvatarURL,
		PasswordHash: string(hash),
		Coins:        config.SignupBonus(role),
		Role:         role,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.accounts.CreateTx(ctx, tx, acc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	if acc.Coins > 0 {
		if err := s.journal.CreateTx(ctx, tx, &models.CreditLedger{
			ID:           uuid.New(),
			AccountID:    acc.ID,
			EntryType:    models.CreditEntrySignupBonus,
			Amount:       acc.Coins,
			BalanceAfter: acc.Coins,
		}); err != nil {
			return nil, fmt.Errorf("record signup bonus: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, *models.Account, error) {
	acc, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.issueToken(acc.ID, acc.Role)
	if err != nil {
		return "", nil, err
	}
	return token, acc, nil
}

func (s *service) issueToken(userID uuid.UUID, role models.Role) (string, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: string(role),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (uuid.UUID, models.Role, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, models.Role(c.Role), nil
}
