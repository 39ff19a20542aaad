package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/appmonitor/internal/config"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/jon4hz/appmonitor/internal/engine"
	"github.com/jon4hz/appmonitor/web"
)

const (
	sessionUserID    = "user_id"
	sessionOIDCState = "oidc_state"
	sessionOIDCNext  = "oidc_next"

	// ContextUserKey is the gin context key of the signed-in *database.User.
	ContextUserKey = "user"
)

// Flash categories.
const (
	FlashError   = "error"
	FlashSuccess = "success"
	FlashInfo    = "info"
)

var flashCategories = []string{FlashError, FlashSuccess, FlashInfo}

func flashKey(category string) string {
	return "_flash_" + category
}

// AddFlash queues a message for the next rendered page.
func AddFlash(c *gin.Context, category, message string) {
	session := sessions.Default(c)
	session.AddFlash(message, flashKey(category))
	if err := session.Save(); err != nil {
		log.Error("Failed to save flash message", "error", err)
	}
}

// Flashes pops all queued messages.
func Flashes(c *gin.Context) []web.Flash {
	session := sessions.Default(c)
	var out []web.Flash
	for _, category := range flashCategories {
		for _, f := range session.Flashes(flashKey(category)) {
			if msg, ok := f.(string); ok {
				out = append(out, web.Flash{Category: category, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		if err := session.Save(); err != nil {
			log.Error("Failed to save session", "error", err)
		}
	}
	return out
}

// CookieOptions returns the session cookie options for a max age in seconds.
func CookieOptions(cfg *config.Config, maxAge int) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
}

// SaveUser signs the user in. With remember set the cookie outlives the default session age.
func SaveUser(c *gin.Context, cfg *config.Config, user *database.User, remember bool) error {
	session := sessions.Default(c)
	session.Clear()
	if remember && cfg.RememberMaxAge > 0 {
		session.Options(CookieOptions(cfg, cfg.RememberMaxAge))
	}
	session.Set(sessionUserID, user.ID)
	return session.Save()
}

// ClearSession signs the current user out.
func ClearSession(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		log.Error("Failed to clear session", "error", err)
	}
}

// SessionUserID returns the user id stored in the session.
func SessionUserID(c *gin.Context) (uint, bool) {
	id, ok := sessions.Default(c).Get(sessionUserID).(uint)
	return id, ok && id != 0
}

// LoadUser returns the active user of the session. Stale sessions are cleared.
func LoadUser(c *gin.Context, db database.UserDB) (*database.User, bool) {
	id, ok := SessionUserID(c)
	if !ok {
		return nil, false
	}
	user, err := db.GetUserByID(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			log.Error("Failed to load session user", "user", id, "error", err)
		}
		ClearSession(c)
		return nil, false
	}
	if !user.IsActive {
		ClearSession(c)
		return nil, false
	}
	return user, true
}

// CurrentUser returns the user set by RequireAuth.
func CurrentUser(c *gin.Context) *database.User {
	if v, ok := c.Get(ContextUserKey); ok {
		if user, ok := v.(*database.User); ok {
			return user
		}
	}
	return nil
}

// ClientInfo extracts the request metadata recorded with user activity.
func ClientInfo(c *gin.Context) engine.ClientInfo {
	return engine.ClientInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// SafeNext returns next if it is a local path, else an empty string.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}

// LoginURL returns the login page that redirects back to next.
func LoginURL(next string) string {
	if next = SafeNext(next); next == "" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

// WantsJSON reports whether the client expects a JSON response.
func WantsJSON(c *gin.Context) bool {
	if c.Query("format") == "json" {
		return true
	}
	accept := c.GetHeader("Accept")
	if strings.Contains(accept, "application/json") || c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.HasPrefix(c.Request.URL.Path, "/api/") && !strings.Contains(accept, "text/html")
}
