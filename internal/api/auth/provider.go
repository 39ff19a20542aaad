package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/appmonitor/internal/config"
	"github.com/jon4hz/appmonitor/internal/engine"
)

// AuthProvider defines the interface for authentication providers.
type AuthProvider interface {
	// Login handles the login process for the provider
	Login(c *gin.Context)

	// Callback handles the authentication callback (if applicable)
	Callback(c *gin.Context)

	// RequireAuth returns middleware that requires authentication
	RequireAuth() gin.HandlerFunc

	// RequireAdmin returns middleware that requires admin privileges
	RequireAdmin() gin.HandlerFunc

	// GetAuthConfig returns the authentication configuration for templates
	GetAuthConfig() *config.AuthConfig
}

// MultiProvider wraps the password and OIDC providers.
type MultiProvider struct {
	localProvider *LocalProvider
	oidcProvider  *OIDCProvider
	cfg           *config.Config
	engine        *engine.Engine
}

// NewProvider creates a multi-provider that supports both password and OIDC authentication.
func NewProvider(ctx context.Context, cfg *config.Config, e *engine.Engine) (AuthProvider, error) {
	if cfg == nil || cfg.Auth == nil {
		return nil, fmt.Errorf("auth config is required")
	}

	mp := &MultiProvider{cfg: cfg, engine: e}

	if cfg.Auth.Local != nil && cfg.Auth.Local.Enabled {
		mp.localProvider = NewLocalProvider(cfg, e)
	}

	if cfg.Auth.OIDC != nil && cfg.Auth.OIDC.Enabled {
		oidcProvider, err := NewOIDCProvider(ctx, cfg, e)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
		}
		mp.oidcProvider = oidcProvider
	}

	// At least one provider must be enabled
	if mp.localProvider == nil && mp.oidcProvider == nil {
		return nil, fmt.Errorf("no authentication provider is enabled")
	}

	return mp, nil
}

// Login sends form posts to the password provider and everything else to OIDC.
func (mp *MultiProvider) Login(c *gin.Context) {
	if c.Request.Method == http.MethodPost && mp.localProvider != nil {
		mp.localProvider.Login(c)
		return
	}
	if mp.oidcProvider != nil {
		mp.oidcProvider.Login(c)
		return
	}
	c.Redirect(http.StatusFound, LoginURL(c.Query("next")))
}

// Callback handles OAuth callbacks (OIDC only).
func (mp *MultiProvider) Callback(c *gin.Context) {
	if mp.oidcProvider != nil {
		mp.oidcProvider.Callback(c)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "OAuth callback not supported"})
}

// RequireAuth returns middleware that loads the session user from the database.
func (mp *MultiProvider) RequireAuth() gin.HandlerFunc {
	return requireAuth(mp.engine)
}

// RequireAdmin returns middleware that checks for admin privileges.
func (mp *MultiProvider) RequireAdmin() gin.HandlerFunc {
	return requireAdmin()
}

// GetAuthConfig returns the authentication configuration for templates.
func (mp *MultiProvider) GetAuthConfig() *config.AuthConfig {
	return mp.cfg.Auth
}

// HasLocal reports whether password logins are enabled.
func (mp *MultiProvider) HasLocal() bool {
	return mp.localProvider != nil
}

// HasOIDC reports whether OIDC logins are enabled.
func (mp *MultiProvider) HasOIDC() bool {
	return mp.oidcProvider != nil
}
