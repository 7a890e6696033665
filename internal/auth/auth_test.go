package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/galleylabs/galley/internal/metadata/memory"
	"github.com/galleylabs/galley/pkg/protocol"
)

func newAuth(t *testing.T) (*Auth, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, "test-secret", time.Hour), store
}

// echoClaims responds with the username from the request context.
func echoClaims(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		http.Error(w, "no claims", http.StatusInternalServerError)
		return
	}
	w.Write([]byte(claims.Username))
}

func TestLoginIssuesToken(t *testing.T) {
	a, _ := newAuth(t)
	if _, err := a.CreateUser(context.Background(), "ada", "secret", false); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	body := strings.NewReader(`{"username":"ada","password":"secret"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", body)
	rec := httptest.NewRecorder()
	a.HandleLogin(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var tok protocol.TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tok); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if tok.Token == "" {
		t.Error("empty token")
	}
	if tok.User.Username != "ada" || tok.User.IsAdmin {
		t.Errorf("user = %+v", tok.User)
	}
	if !tok.ExpiresAt.After(time.Now()) {
		t.Errorf("ExpiresAt = %v in the past", tok.ExpiresAt)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a, _ := newAuth(t)
	if _, err := a.CreateUser(context.Background(), "ada", "secret", false); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	for _, body := range []string{
		`{"username":"ada","password":"wrong"}`,
		`{"username":"ghost","password":"secret"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(body))
		rec := httptest.NewRecorder()
		a.HandleLogin(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("body %s: status = %d, want 401", body, rec.Code)
		}
	}
}

func TestMiddlewareAcceptsIssuedToken(t *testing.T) {
	a, _ := newAuth(t)
	if _, err := a.CreateUser(context.Background(), "ada", "secret", true); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token, _, err := a.IssueToken(context.Background(), "ada", true)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	h := a.Middleware(http.HandlerFunc(echoClaims))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "ada" {
		t.Errorf("status = %d body = %q", rec.Code, rec.Body)
	}
}

func TestMiddlewareQueryTokenFallback(t *testing.T) {
	a, _ := newAuth(t)
	if _, err := a.CreateUser(context.Background(), "ada", "secret", false); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token, _, err := a.IssueToken(context.Background(), "ada", false)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	h := a.Middleware(http.HandlerFunc(echoClaims))
	req := httptest.NewRequest(http.MethodGet, "/events?token="+token, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	a, _ := newAuth(t)
	h := a.Middleware(http.HandlerFunc(echoClaims))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareRejectsRevokedToken(t *testing.T) {
	a, store := newAuth(t)
	ctx := context.Background()
	if _, err := a.CreateUser(ctx, "ada", "secret", false); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token, _, err := a.IssueToken(ctx, "ada", false)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	sessions, err := store.ListSessions(ctx)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("ListSessions: %v (%d sessions)", err, len(sessions))
	}
	if err := a.RevokeSession(ctx, sessions[0].ID); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}

	h := a.Middleware(http.HandlerFunc(echoClaims))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareRejectsExpiredToken(t *testing.T) {
	store := memory.New()
	a := New(store, "test-secret", -time.Minute)
	ctx := context.Background()
	if _, err := a.CreateUser(ctx, "ada", "secret", false); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token, _, err := a.IssueToken(ctx, "ada", false)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	h := a.Middleware(http.HandlerFunc(echoClaims))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expired token: status = %d, want 401", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	a, _ := newAuth(t)
	h := a.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithClaims(req.Context(), &Claims{Username: "ada", IsAdmin: false}))
	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin: status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithClaims(req.Context(), &Claims{Username: "root", IsAdmin: true}))
	rec = httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin: status = %d, want 200", rec.Code)
	}
}

func TestEnsureDefaultAdmin(t *testing.T) {
	a, store := newAuth(t)
	ctx := context.Background()

	if err := a.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("EnsureDefaultAdmin: %v", err)
	}
	user, err := a.ValidateCredentials(ctx, "admin", "admin")
	if err != nil {
		t.Fatalf("default admin login: %v", err)
	}
	if !user.IsAdmin {
		t.Error("default admin is not an admin")
	}

	// Second call must not create another user.
	if err := a.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("second EnsureDefaultAdmin: %v", err)
	}
	if n, _ := store.UserCount(ctx); n != 1 {
		t.Errorf("UserCount = %d, want 1", n)
	}

	// With an existing user, no admin is seeded.
	store2 := memory.New()
	a2 := New(store2, "s", time.Hour)
	if _, err := a2.CreateUser(ctx, "ada", "pw", false); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := a2.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("EnsureDefaultAdmin: %v", err)
	}
	if _, err := store2.GetUser(ctx, "admin"); err == nil {
		t.Error("admin seeded even though users exist")
	}
}
