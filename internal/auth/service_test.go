package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/microtasks/backend/internal/models"
	"github.com/microtasks/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type noopTx struct{ committed *bool }

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (t noopTx) Commit(context.Context) error {
	if t.committed != nil {
		*t.committed = true
	}
	return nil
}
func (noopTx) Rollback(context.Context) error { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type mockPool struct{ committed bool }

func (p *mockPool) Begin(context.Context) (pgx.Tx, error) { return noopTx{committed: &p.committed}, nil }

type mockAccounts struct {
	mu       sync.Mutex
	byEmail  map[string]*models.Account
	failWith error
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{byEmail: make(map[string]*models.Account)}
}

func (m *mockAccounts) CreateTx(_ context.Context, _ pgx.Tx, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.byEmail[a.Email]; ok {
		return &pgconn.PgError{Code: "23505"}
	}
	m.byEmail[a.Email] = a
	return nil
}

func (m *mockAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

type mockJournal struct{ entries []models.CreditLedger }

func (m *mockJournal) CreateTx(_ context.Context, _ pgx.Tx, c *models.CreditLedger) error {
	m.entries = append(m.entries, *c)
	return nil
}

func newTestService(adminEmails ...string) (*service, *mockAccounts, *mockJournal, *mockPool) {
	accounts := newMockAccounts()
	journal := &mockJournal{}
	pool := &mockPool{}
	svc := NewService(pool, accounts, journal, Options{Secret: "test-secret", TokenTTL: time.Hour, AdminEmails: adminEmails})
	return svc, accounts, journal, pool
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

func TestRegister_GrantsRoleBonus(t *testing.T) {
	cases := []struct {
		role  models.Role
		bonus int64
	}{
		{models.RoleWorker, 10},
		{models.RoleBuyer, 50},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			svc, _, journal, pool := newTestService()
			acc, err := svc.Register(context.Background(), RegisterInput{
				Email: "New.User@Example.com ", Password: "Secret1", FullName: "New User", Role: tc.role,
			})
			if err != nil {
				t.Fatalf("Register: %v", err)
			}
			if acc.Coins != tc.bonus {
				t.Errorf("coins: got %d, want %d", acc.Coins, tc.bonus)
			}
			if acc.Email != "new.user@example.com" {
				t.Errorf("email not normalized: %q", acc.Email)
			}
			if acc.PasswordHash == "" || acc.PasswordHash == "Secret1" {
				t.Error("password must be stored hashed")
			}
			if len(journal.entries) != 1 || journal.entries[0].EntryType != models.CreditEntrySignupBonus || journal.entries[0].Amount != tc.bonus {
				t.Errorf("journal: got %+v", journal.entries)
			}
			if !pool.committed {
				t.Error("registration was not committed")
			}
		})
	}
}

func TestRegister_AdminEmailPromoted(t *testing.T) {
	svc, _, _, _ := newTestService("root@example.com")

	acc, err := svc.Register(context.Background(), RegisterInput{
		Email: "ROOT@example.com", Password: "Secret1", FullName: "Root", Role: models.RoleWorker,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acc.Role != models.RoleAdmin || acc.Coins != 100 {
		t.Errorf("got role %q coins %d, want admin with 100", acc.Role, acc.Coins)
	}
}

func TestRegister_Rejections(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "Secret1", FullName: "A", Role: models.RoleAdmin}); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("admin self-signup: expected ErrInvalidRole, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "secret1", FullName: "A", Role: models.RoleBuyer}); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("no uppercase: expected ErrWeakPassword, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "Secret1", FullName: "A", Role: models.RoleBuyer}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "A@example.com", Password: "Secret1", FullName: "A", Role: models.RoleBuyer}); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("duplicate: expected ErrDuplicateEmail, got %v", err)
	}
}

func TestRegister_StoreFailureNotCommitted(t *testing.T) {
	svc, accounts, journal, pool := newTestService()
	accounts.failWith = errors.New("disk full")

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "Secret1", FullName: "A", Role: models.RoleBuyer})
	if err == nil || errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected a store error, got %v", err)
	}
	if pool.committed || len(journal.entries) != 0 {
		t.Error("failed registration must not commit or journal")
	}
}

func TestLoginAndValidateToken(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	acc, err := svc.Register(ctx, RegisterInput{Email: "w@example.com", Password: "Secret1", FullName: "W", Role: models.RoleWorker})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, got, err := svc.Login(ctx, "W@example.com", "Secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != acc.ID {
		t.Errorf("login returned account %s, want %s", got.ID, acc.ID)
	}
	id, role, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if id != acc.ID || role != models.RoleWorker {
		t.Errorf("claims: got (%s, %s)", id, role)
	}

	if _, _, err := svc.Login(ctx, "w@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "Secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	svc, _, _, _ := newTestService()
	other := NewService(&mockPool{}, newMockAccounts(), &mockJournal{}, Options{Secret: "other-secret"})
	ctx := context.Background()

	foreign, err := other.issueToken(uuid.New(), models.RoleAdmin)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	if _, _, err := svc.ValidateToken(ctx, foreign); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign signature: expected ErrInvalidToken, got %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := svc.issueToken(uuid.New(), models.RoleWorker)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	if _, _, err := svc.ValidateToken(ctx, expired); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired: expected ErrInvalidToken, got %v", err)
	}
	if _, _, err := svc.ValidateToken(ctx, "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: expected ErrInvalidToken, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	v, err := services.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	svc, _, _, _ := newTestService()
	return NewHandler(svc, v, nil)
}

func TestHandler_RegisterThenLogin(t *testing.T) {
	h := newTestHandler(t)

	body := `{"email":"b@example.com","password":"Secret1","full_name":"Bea","role":"buyer"}`
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status: got %d, body %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("response leaks password hash: %s", rec.Body)
	}

	rec = httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register status: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"b@example.com","password":"Secret1"}`)))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"token"`) {
		t.Fatalf("login: got %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"b@example.com","password":"nope"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status: got %d", rec.Code)
	}
}

func TestHandler_RegisterValidation(t *testing.T) {
	h := newTestHandler(t)

	for _, body := range []string{
		`{"email":"b@example.com","password":"Secret1","full_name":"Bea","role":"admin"}`,
		`{"email":"b@example.com","password":"Secret1","role":"buyer"}`,
		`not json`,
	} {
		rec := httptest.NewRecorder()
		h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: got %d, want 400", body, rec.Code)
		}
	}
}
