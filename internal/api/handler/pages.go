package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/appmonitor/internal/api/auth"
	"github.com/jon4hz/appmonitor/internal/database"
)

// Index shows the landing page, or the dashboard for signed-in users.
func (h *Handler) Index(c *gin.Context) {
	if _, ok := auth.LoadUser(c, h.engine.DB()); ok {
		h.redirect(c, "/dashboard")
		return
	}
	h.render(c, http.StatusOK, "main/index", "", nil)
}

// Dashboard shows the user dashboard.
func (h *Handler) Dashboard(c *gin.Context) {
	user := auth.CurrentUser(c)
	data, err := h.engine.DashboardData(c.Request.Context(), user)
	if err != nil {
		log.Error("Failed to load dashboard", "user", user.ID, "error", err)
		h.renderError(c, http.StatusInternalServerError, "The dashboard could not be loaded.")
		return
	}
	h.render(c, http.StatusOK, "main/dashboard", "Dashboard", data)
}

type profileData struct {
	Preference *database.UserPreference
	Settings   []database.UserSetting
	Themes     []string
	Layouts    []string
}

// Profile shows the profile with preferences and settings.
func (h *Handler) Profile(c *gin.Context) {
	user := auth.CurrentUser(c)
	ctx := c.Request.Context()

	pref, err := h.engine.Preferences(ctx, user.ID)
	if err != nil {
		log.Error("Failed to load preferences", "user", user.ID, "error", err)
	}
	settings, err := h.engine.ListSettings(ctx, user.ID)
	if err != nil {
		log.Error("Failed to load settings", "user", user.ID, "error", err)
	}

	h.render(c, http.StatusOK, "main/profile", "Profile", profileData{
		Preference: pref,
		Settings:   settings,
		Themes:     database.Themes(),
		Layouts:    database.Layouts(),
	})
}

// EditProfile updates name and email.
func (h *Handler) EditProfile(c *gin.Context) {
	user := auth.CurrentUser(c)
	err := h.engine.UpdateProfile(c.Request.Context(), user,
		c.PostForm("first_name"), c.PostForm("last_name"), c.PostForm("email"))
	if err != nil {
		h.flashError(c, err, "Profile could not be updated.")
	} else {
		h.flash(c, auth.FlashSuccess, "Profile updated successfully.")
	}
	h.redirect(c, "/profile")
}

// ChangePassword sets a new password after checking the current one.
func (h *Handler) ChangePassword(c *gin.Context) {
	user := auth.CurrentUser(c)
	err := h.engine.ChangePassword(c.Request.Context(), user,
		c.PostForm("current_password"), c.PostForm("new_password"), c.PostForm("confirm_password"),
		auth.ClientInfo(c))
	if err != nil {
		h.flashError(c, err, "Password could not be changed.")
	} else {
		h.flash(c, auth.FlashSuccess, "Password changed successfully.")
	}
	h.redirect(c, "/profile")
}

// flashError shows validation errors as they are and a generic message for everything else.
func (h *Handler) flashError(c *gin.Context, err error, fallback string) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error(fallback, "path", c.Request.URL.Path, "error", err)
		msg = fallback
	}
	h.flash(c, auth.FlashError, msg)
}
