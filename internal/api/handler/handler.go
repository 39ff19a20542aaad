package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/appmonitor/internal/api/auth"
	"github.com/jon4hz/appmonitor/internal/config"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/jon4hz/appmonitor/internal/engine"
	"github.com/jon4hz/appmonitor/internal/gravatar"
	"github.com/jon4hz/appmonitor/web"
)

// Handler serves the pages and JSON endpoints.
type Handler struct {
	engine *engine.Engine
	config *config.Config
	auth   web.AuthOptions
}

// New creates the handler. authCfg describes the enabled sign-in options.
func New(eng *engine.Engine, cfg *config.Config, authCfg *config.AuthConfig) *Handler {
	opts := web.AuthOptions{AllowRegistration: cfg.RegistrationAllowed()}
	if authCfg != nil {
		if authCfg.Local != nil {
			opts.LocalEnabled = authCfg.Local.Enabled
		}
		if authCfg.OIDC != nil && authCfg.OIDC.Enabled {
			opts.OIDCEnabled = true
			opts.OIDCName = authCfg.OIDC.Name
		}
	}
	return &Handler{
		engine: eng,
		config: cfg,
		auth:   opts,
	}
}

// render executes a page with the common layout data.
func (h *Handler) render(c *gin.Context, status int, name, title string, data any) {
	page := web.Page{
		Title:   title,
		User:    auth.CurrentUser(c),
		Flashes: auth.Flashes(c),
		Auth:    h.auth,
		Path:    c.Request.URL.Path,
		Data:    data,
	}
	if page.User != nil {
		page.Avatar = gravatar.ForUser(page.User.FirstName, page.User.LastName, page.User.Email, h.config.Gravatar, 0)
	}
	c.HTML(status, name, page)
}

func (h *Handler) renderError(c *gin.Context, status int, message string) {
	h.render(c, status, "errors/error", http.StatusText(status), web.ErrorData{Status: status, Message: message})
}

// NotFound renders the 404 page, or a JSON error for API clients.
func (h *Handler) NotFound(c *gin.Context) {
	if auth.WantsJSON(c) {
		jsonError(c, http.StatusNotFound, "Not found")
		return
	}
	h.renderError(c, http.StatusNotFound, "The page you are looking for does not exist.")
}

func (h *Handler) flash(c *gin.Context, category, message string) {
	auth.AddFlash(c, category, message)
}

func (h *Handler) redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
}

func jsonError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

func jsonData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// errorStatus maps engine and database errors to a status and a message safe for clients.
func errorStatus(err error) (int, string) {
	var ve *engine.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, engine.ErrCompanyNotSetUp):
		return http.StatusBadRequest, "Company not set up"
	case errors.Is(err, engine.ErrForbidden):
		return http.StatusForbidden, "Insufficient permissions"
	case errors.Is(err, engine.ErrEntraNotConfigured):
		return http.StatusBadRequest, "Entra ID not configured"
	case errors.Is(err, engine.ErrIntegrationNotFound):
		return http.StatusBadRequest, "Entra integration not found"
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, database.ErrPasswordTooLong):
		return http.StatusBadRequest, "Password must be at most 72 bytes long."
	case errors.Is(err, database.ErrDuplicate):
		return http.StatusConflict, "Already exists"
	case errors.Is(err, database.ErrInvalidSetting):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// abortWithError writes err as JSON. Unexpected errors are logged.
func abortWithError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "path", c.Request.URL.Path, "error", err)
	}
	jsonError(c, status, msg)
}
