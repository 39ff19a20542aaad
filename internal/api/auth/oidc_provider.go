package auth

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/appmonitor/internal/config"
	"github.com/jon4hz/appmonitor/internal/engine"
	"golang.org/x/oauth2"
)

// OIDCProvider signs users in with Entra ID (or any OpenID Connect issuer).
type OIDCProvider struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	config   *oauth2.Config
	cfg      *config.Config
	engine   *engine.Engine
}

// NewOIDCProvider discovers the issuer and builds the oauth2 client.
func NewOIDCProvider(ctx context.Context, cfg *config.Config, e *engine.Engine) (*OIDCProvider, error) {
	oidcCfg := cfg.Auth.OIDC
	p := OIDCProvider{
		cfg:    cfg,
		engine: e,
	}
	var err error
	p.provider, err = oidc.NewProvider(ctx, oidcCfg.Issuer)
	if err != nil {
		return nil, err
	}

	p.config = &oauth2.Config{
		ClientID:     oidcCfg.ClientID,
		ClientSecret: oidcCfg.ClientSecret,
		RedirectURL:  oidcCfg.RedirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	p.verifier = p.provider.Verifier(&oidc.Config{ClientID: oidcCfg.ClientID})
	return &p, nil
}

// RequireAuth returns middleware that requires a signed-in user.
func (p *OIDCProvider) RequireAuth() gin.HandlerFunc {
	return requireAuth(p.engine)
}

// RequireAdmin returns middleware that requires an administrator.
func (p *OIDCProvider) RequireAdmin() gin.HandlerFunc {
	return requireAdmin()
}

// GetAuthConfig returns the OIDC configuration wrapped in AuthConfig.
func (p *OIDCProvider) GetAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		OIDC: p.cfg.Auth.OIDC,
	}
}
