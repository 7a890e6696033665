package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/galleylabs/galley/internal/logging"
	"github.com/galleylabs/galley/internal/metadata"
)

// OIDCConfig holds OIDC provider configuration.
type OIDCConfig struct {
	IssuerURL  string
	ClientID   string
	AdminClaim string // claim key for admin status (default "is_admin")
	AdminValue string // claim value that grants admin (default "true")
}

// OIDCProvider validates OIDC ID tokens and auto-provisions local
// users on first login.
type OIDCProvider struct {
	verifier *oidc.IDTokenVerifier
	config   OIDCConfig
	store    Store
}

// NewOIDCProvider creates a provider, or nil when IssuerURL is empty.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig, store Store) (*OIDCProvider, error) {
	if cfg.IssuerURL == "" {
		return nil, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider init: %w", err)
	}
	if cfg.AdminClaim == "" {
		cfg.AdminClaim = "is_admin"
	}
	if cfg.AdminValue == "" {
		cfg.AdminValue = "true"
	}

	logging.L().Info("OIDC provider initialized",
		zap.String("issuer", cfg.IssuerURL),
		zap.String("client_id", cfg.ClientID))

	return &OIDCProvider{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		config:   cfg,
		store:    store,
	}, nil
}

// ValidateToken verifies an OIDC ID token, ensures a matching local
// user, and returns local claims.
func (o *OIDCProvider) ValidateToken(ctx context.Context, tokenStr string) (*Claims, error) {
	idToken, err := o.verifier.Verify(ctx, tokenStr)
	if err != nil {
		return nil, err
	}

	var std struct {
		Sub               string `json:"sub"`
		PreferredUsername string `json:"preferred_username"`
		Email             string `json:"email"`
	}
	if err := idToken.Claims(&std); err != nil {
		return nil, fmt.Errorf("parse oidc claims: %w", err)
	}

	username := std.PreferredUsername
	if username == "" {
		username = std.Email
	}
	if username == "" {
		username = std.Sub
	}

	var raw map[string]interface{}
	idToken.Claims(&raw)
	isAdmin := false
	if val, ok := raw[o.config.AdminClaim]; ok {
		isAdmin = fmt.Sprintf("%v", val) == o.config.AdminValue
	}

	if err := o.ensureUser(ctx, username, isAdmin); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	return &Claims{
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: std.Sub,
			Issuer:  idToken.Issuer,
		},
	}, nil
}

// ensureUser creates the account on first OIDC login. The stored
// password is not a bcrypt hash, so password login stays impossible
// for OIDC-managed users.
func (o *OIDCProvider) ensureUser(ctx context.Context, username string, isAdmin bool) error {
	_, err := o.store.GetUser(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, metadata.ErrNotFound) {
		return err
	}

	if _, err := o.store.CreateUser(ctx, username, "oidc-managed", isAdmin); err != nil {
		return fmt.Errorf("create oidc user: %w", err)
	}
	logging.L().Info("auto-created OIDC user",
		zap.String("username", username),
		zap.Bool("is_admin", isAdmin))
	return nil
}
