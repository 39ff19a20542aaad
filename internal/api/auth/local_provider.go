package auth

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/appmonitor/internal/config"
	"github.com/jon4hz/appmonitor/internal/engine"
)

// LocalProvider authenticates users with the password stored in the database.
type LocalProvider struct {
	cfg    *config.Config
	engine *engine.Engine
}

// NewLocalProvider creates a password provider.
func NewLocalProvider(cfg *config.Config, e *engine.Engine) *LocalProvider {
	return &LocalProvider{cfg: cfg, engine: e}
}

// Login handles the login form. The login field accepts an email or a username.
func (p *LocalProvider) Login(c *gin.Context) {
	next := SafeNext(c.Query("next"))
	if next == "" {
		next = SafeNext(c.PostForm("next"))
	}

	login := c.PostForm("email")
	if login == "" {
		login = c.PostForm("username")
	}
	password := c.PostForm("password")
	remember := c.PostForm("remember") != ""

	user, err := p.engine.Authenticate(c.Request.Context(), login, password, ClientInfo(c))
	if err != nil {
		switch {
		case engine.IsValidationError(err):
			AddFlash(c, FlashError, err.Error())
		case errors.Is(err, engine.ErrInvalidCredentials):
			AddFlash(c, FlashError, "Invalid email/username or password.")
		default:
			log.Error("Failed to authenticate user", "error", err)
			AddFlash(c, FlashError, "Login failed, please try again.")
		}
		c.Redirect(http.StatusFound, LoginURL(next))
		return
	}

	if err := SaveUser(c, p.cfg, user, remember); err != nil {
		log.Error("Failed to save session", "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	log.Info("User logged in", "username", user.Username, "ip", c.ClientIP())

	if next == "" {
		next = "/dashboard"
	}
	c.Redirect(http.StatusFound, next)
}

// Callback is not used by password logins.
func (p *LocalProvider) Callback(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Not implemented"})
}

// RequireAuth returns middleware that requires a signed-in user.
func (p *LocalProvider) RequireAuth() gin.HandlerFunc {
	return requireAuth(p.engine)
}

// RequireAdmin returns middleware that requires an administrator.
func (p *LocalProvider) RequireAdmin() gin.HandlerFunc {
	return requireAdmin()
}

// GetAuthConfig returns the local configuration wrapped in AuthConfig.
func (p *LocalProvider) GetAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{Local: p.cfg.Auth.Local}
}
