package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/appmonitor/internal/api/auth"
	"github.com/jon4hz/appmonitor/internal/engine"
)

type loginData struct {
	Next  string
	Login string
}

// Login shows the login form.
func (h *Handler) Login(c *gin.Context) {
	next := auth.SafeNext(c.Query("next"))
	if _, ok := auth.LoadUser(c, h.engine.DB()); ok {
		if next == "" {
			next = "/dashboard"
		}
		h.redirect(c, next)
		return
	}
	h.render(c, http.StatusOK, "auth/login", "Log in", loginData{Next: next})
}

// Logout clears the session.
func (h *Handler) Logout(c *gin.Context) {
	if user := auth.CurrentUser(c); user != nil {
		h.engine.RecordLogout(c.Request.Context(), user, auth.ClientInfo(c))
	}
	auth.ClearSession(c)
	h.flash(c, auth.FlashInfo, "You have been logged out.")
	h.redirect(c, "/")
}

type registerData struct {
	FirstName string
	LastName  string
	Email     string
}

// RegisterPage shows the registration form.
func (h *Handler) RegisterPage(c *gin.Context) {
	if !h.config.RegistrationAllowed() {
		h.flash(c, auth.FlashInfo, "Registration is disabled.")
		h.redirect(c, "/login")
		return
	}
	h.render(c, http.StatusOK, "auth/register", "Register", registerData{})
}

// Register creates a local account.
func (h *Handler) Register(c *gin.Context) {
	in := engine.RegisterInput{
		FirstName:       c.PostForm("first_name"),
		LastName:        c.PostForm("last_name"),
		Email:           c.PostForm("email"),
		Password:        c.PostForm("password"),
		PasswordConfirm: c.PostForm("password_confirm"),
		Agree:           c.PostForm("agree") != "",
	}
	if _, err := h.engine.Register(c.Request.Context(), in); err != nil {
		h.flashError(c, err, "Registration failed, please try again.")
		status := http.StatusOK
		if !engine.IsValidationError(err) {
			status = http.StatusInternalServerError
		}
		h.render(c, status, "auth/register", "Register", registerData{
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Email:     in.Email,
		})
		return
	}
	h.flash(c, auth.FlashSuccess, "Registration successful! Please log in.")
	h.redirect(c, "/login")
}

// ForgotPasswordPage shows the password reset request form.
func (h *Handler) ForgotPasswordPage(c *gin.Context) {
	h.render(c, http.StatusOK, "auth/forgot_password", "Forgot password", nil)
}

// ForgotPassword sends a reset link. The response is the same whether or not the account exists.
func (h *Handler) ForgotPassword(c *gin.Context) {
	if err := h.engine.RequestPasswordReset(c.Request.Context(), c.PostForm("email")); err != nil {
		h.flashError(c, err, "Password reset failed, please try again.")
		h.redirect(c, "/forgot-password")
		return
	}
	h.flash(c, auth.FlashInfo, "If an account with that email exists, a password reset link has been sent.")
	h.redirect(c, "/login")
}

type resetData struct {
	Token string
}

// ResetPasswordPage shows the new password form for a valid token.
func (h *Handler) ResetPasswordPage(c *gin.Context) {
	token := c.Param("token")
	if !h.engine.ValidResetToken(c.Request.Context(), token) {
		h.flash(c, auth.FlashError, "The password reset link is invalid or has expired.")
		h.redirect(c, "/forgot-password")
		return
	}
	h.render(c, http.StatusOK, "auth/reset_password", "Reset password", resetData{Token: token})
}

// ResetPassword consumes the token and sets the new password.
func (h *Handler) ResetPassword(c *gin.Context) {
	token := c.Param("token")
	err := h.engine.ResetPassword(c.Request.Context(), token,
		c.PostForm("password"), c.PostForm("password_confirm"), auth.ClientInfo(c))
	switch {
	case err == nil:
		h.flash(c, auth.FlashSuccess, "Your password has been reset. Please log in.")
		h.redirect(c, "/login")
	case errors.Is(err, engine.ErrInvalidToken):
		h.flash(c, auth.FlashError, "The password reset link is invalid or has expired.")
		h.redirect(c, "/forgot-password")
	default:
		h.flashError(c, err, "Password reset failed, please try again.")
		h.redirect(c, "/reset-password/"+token)
	}
}
