package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/pizza-service/internal/audit"
	"github.com/nerrad567/pizza-service/internal/auth"
	"github.com/nerrad567/pizza-service/internal/infrastructure/config"
	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
	"github.com/nerrad567/pizza-service/internal/infrastructure/logging"
	"github.com/nerrad567/pizza-service/internal/pizza"
	_ "github.com/nerrad567/pizza-service/migrations"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// recordingPublisher captures events instead of sending them to a broker.
type recordingPublisher struct {
	orders []*pizza.Order
	menus  [][]pizza.MenuItem
	err    error
}

func (p *recordingPublisher) PublishOrder(order *pizza.Order) error {
	p.orders = append(p.orders, order)
	return p.err
}

func (p *recordingPublisher) PublishMenu(items []pizza.MenuItem) error {
	p.menus = append(p.menus, items)
	return p.err
}

// recordingMetrics captures metric calls.
type recordingMetrics struct {
	orders   []*pizza.Order
	attempts []string
}

func (m *recordingMetrics) RecordOrder(order *pizza.Order) { m.orders = append(m.orders, order) }
func (m *recordingMetrics) RecordAuthAttempt(outcome string) {
	m.attempts = append(m.attempts, outcome)
}

// testEnv is a server over a migrated temp-file database with a seeded admin.
type testEnv struct {
	srv     *Server
	handler http.Handler
	repo    *pizza.Repository
	events  *recordingPublisher
	metrics *recordingMetrics
	audit   *audit.SQLiteRepository
	admin   *auth.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbCfg := database.Config{
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}

	hasher, err := auth.NewPasswordHasher(auth.HashConfig{BcryptCost: 4})
	if err != nil {
		t.Fatalf("NewPasswordHasher() error = %v", err)
	}

	pool := database.NewPool(db, dbCfg)
	repo := pizza.NewRepository(pool, hasher, pizza.Config{})
	admin, err := repo.CreateAdmin(context.Background(), auth.DefaultAdminName, auth.DefaultAdminEmail, auth.DefaultAdminPassword)
	if err != nil {
		t.Fatalf("CreateAdmin() error = %v", err)
	}

	env := &testEnv{
		repo:    repo,
		events:  &recordingPublisher{},
		metrics: &recordingMetrics{},
		audit:   audit.NewSQLiteRepository(pool),
		admin:   admin,
	}

	srv, err := New(Deps{
		Config:   config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:   logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test"),
		Repo:     repo,
		Sessions: auth.NewSessionStore(pool),
		Tokens:   auth.NewTokenIssuer(testJWTSecret, 0),
		Pool:     pool,
		Events:   env.events,
		Metrics:  env.metrics,
		Audit:    env.audit,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.srv = srv
	env.handler = srv.Handler()

	// Run the audit writer without a listener; stopped before the db closes.
	ctx, cancel := context.WithCancel(context.Background())
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		srv.drainAuditLog(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-drained
	})
	return env
}

// do sends a request with an optional JSON body and Bearer token.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// login authenticates and returns the session token.
func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPut, "/api/auth", map[string]string{"email": email, "password": password}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status = %d, body = %s", email, rec.Code, rec.Body.String())
	}
	return decode[sessionResponse](t, rec).Token
}

// register creates a diner through the API and returns it with its token.
func (e *testEnv) register(t *testing.T, name, email string) (*auth.User, string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth", map[string]string{
		"name": name, "email": email, "password": "pw-" + name,
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("register %s: status = %d, body = %s", email, rec.Code, rec.Body.String())
	}
	resp := decode[sessionResponse](t, rec)
	return resp.User, resp.Token
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	return e.login(t, auth.DefaultAdminEmail, auth.DefaultAdminPassword)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New(Deps{}) error = nil, want missing logger")
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without repository error = nil")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/health", nil, "")
	expectStatus(t, rec, http.StatusOK)

	body := decode[struct {
		Status   string             `json:"status"`
		Version  string             `json:"version"`
		Database database.PoolStats `json:"database"`
	}](t, rec)
	if body.Status != "healthy" || body.Version != "test" {
		t.Errorf("health = %+v", body)
	}
	if body.Database.Capacity <= 0 || body.Database.InUse != 0 {
		t.Errorf("pool stats = %+v, want positive capacity and nothing in use", body.Database)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestWriteStoreError(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", fmt.Errorf("%w: unknown user", pizza.ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"invalid", fmt.Errorf("%w: order has no items", pizza.ErrInvalid), http.StatusBadRequest, ErrCodeValidation},
		{"conflict", fmt.Errorf("%w: UNIQUE constraint failed: users.email", pizza.ErrConflict), http.StatusConflict, ErrCodeConflict},
		{"unauthorized", auth.ErrUnauthorized, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"forbidden", auth.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
		{"busy", database.ErrBusy, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"internal", fmt.Errorf("%w: disk I/O error at /var/secret", pizza.ErrInternal), http.StatusInternalServerError, ErrCodeInternal},
		{"unclassified", errors.New("driver exploded"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			env.srv.writeStoreError(rec, req, "do thing", tt.err)

			expectStatus(t, rec, tt.wantStatus)
			got := decode[Error](t, rec)
			if got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
			for _, leak := range []string{"UNIQUE", "/var/secret", "exploded"} {
				if strings.Contains(got.Message, leak) {
					t.Errorf("message %q leaks %q", got.Message, leak)
				}
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/order", nil)
	req.Header.Set("Origin", "https://pizza.example")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusNoContent)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://pizza.example" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
	}
}
