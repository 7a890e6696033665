// Package auth provides JWT authentication backed by the metadata
// store's users and sessions.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/galleylabs/galley/internal/logging"
	"github.com/galleylabs/galley/internal/metadata"
	"github.com/galleylabs/galley/internal/metrics"
	"github.com/galleylabs/galley/pkg/protocol"
)

type contextKey string

const userContextKey contextKey = "user"

// Store is the slice of the metadata store that auth needs. Both the
// memory and postgres stores satisfy it.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) (metadata.User, error)
	GetUser(ctx context.Context, username string) (metadata.User, error)
	ListUsers(ctx context.Context) ([]metadata.User, error)
	DeleteUser(ctx context.Context, username string) error
	SetPassword(ctx context.Context, username, passwordHash string) error
	UserCount(ctx context.Context) (int64, error)

	CreateSession(ctx context.Context, username, tokenHash string, expiresAt time.Time) (metadata.Session, error)
	IsSessionRevoked(ctx context.Context, tokenHash string) (bool, error)
	ListSessions(ctx context.Context) ([]metadata.Session, error)
	RevokeSession(ctx context.Context, id int64) error
	ActiveSessionCount(ctx context.Context) (int64, error)
}

// Claims holds the JWT token claims.
type Claims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Auth issues and validates tokens.
type Auth struct {
	store  Store
	secret []byte
	ttl    time.Duration
	oidc   *OIDCProvider
}

// New creates an Auth handler.
func New(store Store, jwtSecret string, ttl time.Duration) *Auth {
	return &Auth{
		store:  store,
		secret: []byte(jwtSecret),
		ttl:    ttl,
	}
}

// Middleware validates the request token — a locally issued JWT or,
// when an OIDC provider is configured, an OIDC ID token — and stores
// the claims in the request context.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "missing authentication token")
			return
		}

		claims, err := a.validateToken(tokenStr)
		if err == nil {
			revoked, rerr := a.store.IsSessionRevoked(r.Context(), hashToken(tokenStr))
			if rerr != nil {
				logging.L().Error("token revocation check failed", zap.Error(rerr))
			}
			if !revoked {
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
				return
			}
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "token has been revoked")
			return
		}

		if a.oidc != nil {
			claims, oerr := a.oidc.ValidateToken(r.Context(), tokenStr)
			if oerr == nil {
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
				return
			}
		}

		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
	})
}

// RequireAdmin wraps a handler to reject non-admin callers. It must
// run inside Middleware.
func (a *Auth) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		if claims == nil || !claims.IsAdmin {
			sendAuthError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}

// GetClaims extracts claims from the request context.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(userContextKey).(*Claims)
	return claims
}

// WithClaims injects claims into a context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// HandleLogin handles POST /api/v1/auth/token.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := a.ValidateCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.L().Warn("login failed", zap.String("username", req.Username))
		sendAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := a.IssueToken(r.Context(), user.Username, user.IsAdmin)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.L().Error("token issue failed", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	metrics.RecordAuthAttempt(true)
	logging.L().Info("login successful", zap.String("username", user.Username))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User: protocol.UserInfo{
			Username:  user.Username,
			IsAdmin:   user.IsAdmin,
			CreatedAt: user.CreatedAt,
		},
	})
}

// ValidateCredentials checks a username/password pair.
func (a *Auth) ValidateCredentials(ctx context.Context, username, password string) (metadata.User, error) {
	user, err := a.store.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return metadata.User{}, fmt.Errorf("invalid credentials")
		}
		return metadata.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return metadata.User{}, fmt.Errorf("invalid credentials")
	}
	return user, nil
}

// IssueToken signs a JWT for the user and records its session.
func (a *Auth) IssueToken(ctx context.Context, username string, isAdmin bool) (string, time.Time, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "galley",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	if _, err := a.store.CreateSession(ctx, username, hashToken(tokenStr), claims.ExpiresAt.Time); err != nil {
		return "", time.Time{}, fmt.Errorf("record session: %w", err)
	}
	a.updateSessionGauge(ctx)

	return tokenStr, claims.ExpiresAt.Time, nil
}

// CreateUser hashes the password and stores the account.
func (a *Auth) CreateUser(ctx context.Context, username, password string, isAdmin bool) (metadata.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return metadata.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := a.store.CreateUser(ctx, username, string(hashed), isAdmin)
	if err != nil {
		return metadata.User{}, err
	}
	logging.L().Info("user created",
		zap.String("username", username),
		zap.Bool("is_admin", isAdmin))
	return user, nil
}

// EnsureDefaultAdmin seeds admin/admin when no users exist.
func (a *Auth) EnsureDefaultAdmin(ctx context.Context) error {
	count, err := a.store.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count == 0 {
		logging.L().Warn("no users found, creating default admin (admin/admin)")
		logging.L().Warn("** change the default password immediately! **")
		_, err := a.CreateUser(ctx, "admin", "admin", true)
		return err
	}
	return nil
}

// ListUsers returns all accounts.
func (a *Auth) ListUsers(ctx context.Context) ([]metadata.User, error) {
	return a.store.ListUsers(ctx)
}

// DeleteUser removes an account and its sessions.
func (a *Auth) DeleteUser(ctx context.Context, username string) error {
	if err := a.store.DeleteUser(ctx, username); err != nil {
		return err
	}
	a.updateSessionGauge(ctx)
	logging.L().Info("user deleted", zap.String("username", username))
	return nil
}

// ChangePassword replaces an account's password.
func (a *Auth) ChangePassword(ctx context.Context, username, newPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := a.store.SetPassword(ctx, username, string(hashed)); err != nil {
		return err
	}
	logging.L().Info("password changed", zap.String("username", username))
	return nil
}

// ListSessions returns all issued tokens.
func (a *Auth) ListSessions(ctx context.Context) ([]metadata.Session, error) {
	return a.store.ListSessions(ctx)
}

// RevokeSession revokes one session by ID.
func (a *Auth) RevokeSession(ctx context.Context, id int64) error {
	if err := a.store.RevokeSession(ctx, id); err != nil {
		return err
	}
	a.updateSessionGauge(ctx)
	return nil
}

// SetOIDCProvider attaches an OIDC provider to the middleware.
func (a *Auth) SetOIDCProvider(p *OIDCProvider) {
	a.oidc = p
}

func (a *Auth) validateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func (a *Auth) updateSessionGauge(ctx context.Context) {
	if count, err := a.store.ActiveSessionCount(ctx); err == nil {
		metrics.SetActiveSessions(count)
	}
}

func extractToken(r *http.Request) string {
	// Bearer header, with a query fallback for EventSource clients
	// that cannot set headers.
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func sendAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
