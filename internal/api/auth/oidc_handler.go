package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jon4hz/appmonitor/internal/engine"
)

type idTokenClaims struct {
	Email             string   `json:"email"`
	EmailVerified     bool     `json:"email_verified"`
	Name              string   `json:"name"`
	GivenName         string   `json:"given_name"`
	FamilyName        string   `json:"family_name"`
	PreferredUsername string   `json:"preferred_username"`
	Sub               string   `json:"sub"`
	OID               string   `json:"oid"`
	Groups            []string `json:"groups"`
}

// identity maps the token claims to an engine identity. Entra ID often
// omits the email claim, the UPN in preferred_username is used instead.
// The subject is the Entra object id, which unlike sub is the same for every client.
func (cl idTokenClaims) identity(adminGroup string) engine.SSOIdentity {
	id := engine.SSOIdentity{
		Subject:       cl.OID,
		Email:         cl.Email,
		EmailVerified: cl.Email != "" && cl.EmailVerified,
		FirstName:     cl.GivenName,
		LastName:      cl.FamilyName,
		IsAdmin:       adminGroup != "" && slices.Contains(cl.Groups, adminGroup),
	}
	if id.Subject == "" {
		id.Subject = cl.Sub
	}
	if id.Email == "" && strings.Contains(cl.PreferredUsername, "@") {
		id.Email = cl.PreferredUsername
	}
	if id.FirstName == "" && id.LastName == "" && cl.Name != "" {
		first, last, _ := strings.Cut(cl.Name, " ")
		id.FirstName, id.LastName = first, last
	}
	if username, _, ok := strings.Cut(cl.PreferredUsername, "@"); ok {
		id.Username = username
	} else {
		id.Username = cl.PreferredUsername
	}
	return id
}

// Login redirects to the issuer. The state is kept in the session and checked on callback.
func (p *OIDCProvider) Login(c *gin.Context) {
	state := uuid.New().String()

	session := sessions.Default(c)
	session.Set(sessionOIDCState, state)
	if next := SafeNext(c.Query("next")); next != "" {
		session.Set(sessionOIDCNext, next)
	}
	if err := session.Save(); err != nil {
		log.Error("Failed to save session", "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.Redirect(http.StatusFound, p.config.AuthCodeURL(state))
}

// Callback finishes the authorization code flow and signs the user in.
func (p *OIDCProvider) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	session := sessions.Default(c)

	expected, _ := session.Get(sessionOIDCState).(string)
	next, _ := session.Get(sessionOIDCNext).(string)
	session.Delete(sessionOIDCState)
	session.Delete(sessionOIDCNext)

	fail := func(msg string, err error) {
		log.Error(msg, "error", err)
		AddFlash(c, FlashError, "Single sign-on failed, please try again.")
		c.Redirect(http.StatusFound, "/login")
	}

	if errParam := c.Query("error"); errParam != "" {
		fail("Identity provider returned an error", &callbackError{code: errParam, description: c.Query("error_description")})
		return
	}
	if expected == "" || c.Query("state") != expected {
		fail("OIDC state mismatch", errStateMismatch)
		return
	}

	oauth2Token, err := p.config.Exchange(ctx, c.Query("code"))
	if err != nil {
		fail("Failed to exchange authorization code", err)
		return
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		fail("Token response has no id_token", errMissingIDToken)
		return
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		fail("Failed to verify id token", err)
		return
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		fail("Failed to decode id token claims", err)
		return
	}

	user, err := p.engine.LoginSSOUser(ctx, claims.identity(p.cfg.Auth.OIDC.AdminGroup), ClientInfo(c))
	if err != nil {
		if engine.IsValidationError(err) {
			log.Warn("Rejected SSO identity", "sub", claims.Sub, "error", err)
			AddFlash(c, FlashError, err.Error())
			c.Redirect(http.StatusFound, "/login")
			return
		}
		fail("Failed to sign in SSO user", err)
		return
	}

	if err := SaveUser(c, p.cfg, user, false); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}
	log.Info("User logged in via SSO", "username", user.Username)

	if next = SafeNext(next); next == "" {
		next = "/dashboard"
	}
	c.Redirect(http.StatusFound, next)
}
