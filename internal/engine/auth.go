package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jon4hz/appmonitor/internal/cache"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/jon4hz/appmonitor/internal/notify/email"
)

// ErrInvalidCredentials is returned for a wrong login, wrong password or inactive account.
var ErrInvalidCredentials = errors.New("invalid email/username or password")

// Authenticate checks a login (email or username) and password.
// On success the last login is updated and the login is recorded.
func (e *Engine) Authenticate(ctx context.Context, login, password string, client ClientInfo) (*database.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, invalid("Please provide both email and password.")
	}

	user, err := e.db.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			e.RecordFailedLogin(ctx, login, nil, "unknown user", client)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		e.RecordFailedLogin(ctx, login, user, "wrong password", client)
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		e.RecordFailedLogin(ctx, login, user, "inactive account", client)
		return nil, ErrInvalidCredentials
	}

	now := e.now().UTC()
	if err := e.db.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	e.RecordLogin(ctx, user, client)
	return user, nil
}

// RegisterInput is the data of the registration form.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	PasswordConfirm string
	Agree           bool
}

// Register creates a local account. The username is derived from the email.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*database.User, error) {
	if !e.cfg.RegistrationAllowed() {
		return nil, invalid("Registration is disabled.")
	}
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	minLen := e.cfg.GetMinPasswordLength()
	switch {
	case in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" || in.PasswordConfirm == "":
		return nil, invalid("All fields are required.")
	case in.Password != in.PasswordConfirm:
		return nil, invalid("Passwords do not match.")
	case len(in.Password) < minLen:
		return nil, invalid("Password must be at least %d characters long.", minLen)
	case len(in.Password) > database.MaxPasswordBytes:
		return nil, invalid("Password must be at most %d bytes long.", database.MaxPasswordBytes)
	case !in.Agree:
		return nil, invalid("You must agree to the terms and conditions.")
	case !strings.Contains(in.Email, "@"):
		return nil, invalid("Please provide a valid email address.")
	}

	taken, err := e.db.EmailTaken(ctx, in.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, invalid("Email already registered.")
	}

	username, err := e.db.UniqueUsername(ctx, usernameFromEmail(in.Email))
	if err != nil {
		return nil, err
	}

	user := database.NewUser(username, in.Email, in.FirstName, in.LastName)
	if err := user.SetPassword(in.Password); err != nil {
		return nil, err
	}
	if err := e.db.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, invalid("Email already registered.")
		}
		return nil, err
	}
	log.Info("User registered", "username", user.Username)
	return user, nil
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.TrimSpace(local)
	if local == "" {
		return "user"
	}
	return local
}

// checkPasswordLength enforces the configured minimum and the bcrypt maximum.
func (e *Engine) checkPasswordLength(password string) error {
	if minLen := e.cfg.GetMinPasswordLength(); len(password) < minLen {
		return invalid("Password must be at least %d characters long.", minLen)
	}
	if len(password) > database.MaxPasswordBytes {
		return invalid("Password must be at most %d bytes long.", database.MaxPasswordBytes)
	}
	return nil
}

// AdminInput describes an administrator created outside the web UI.
type AdminInput struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
	CompanyID *uint
}

// CreateAdmin creates an active administrator. An empty username is derived from the email.
func (e *Engine) CreateAdmin(ctx context.Context, in AdminInput) (*database.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if !strings.Contains(in.Email, "@") {
		return nil, invalid("Please provide a valid email address.")
	}
	if err := e.checkPasswordLength(in.Password); err != nil {
		return nil, err
	}

	taken, err := e.db.EmailTaken(ctx, in.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, invalid("Email already registered.")
	}

	base := strings.TrimSpace(in.Username)
	if base == "" {
		base = usernameFromEmail(in.Email)
	}
	username, err := e.db.UniqueUsername(ctx, base)
	if err != nil {
		return nil, err
	}

	if in.CompanyID != nil {
		if _, err := e.db.GetCompany(ctx, *in.CompanyID); err != nil {
			return nil, err
		}
	}

	user := database.NewUser(username, in.Email, in.FirstName, in.LastName)
	user.IsAdmin = true
	user.Role = database.RoleAdmin
	user.CompanyID = in.CompanyID
	if err := user.SetPassword(in.Password); err != nil {
		return nil, err
	}
	if err := e.db.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	log.Info("Administrator created", "username", user.Username)
	return user, nil
}

// UpdateProfile changes the name and email of a user.
func (e *Engine) UpdateProfile(ctx context.Context, user *database.User, firstName, lastName, mail string) error {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	mail = strings.ToLower(strings.TrimSpace(mail))
	if firstName == "" || lastName == "" || mail == "" {
		return invalid("All fields are required.")
	}

	taken, err := e.db.EmailTaken(ctx, mail, user.ID)
	if err != nil {
		return err
	}
	if taken {
		return invalid("Email already taken by another user.")
	}

	user.FirstName = firstName
	user.LastName = lastName
	user.Email = mail
	return e.db.UpdateUser(ctx, user)
}

// ChangePassword sets a new password after checking the current one.
func (e *Engine) ChangePassword(ctx context.Context, user *database.User, current, next, confirm string, client ClientInfo) error {
	if !user.CheckPassword(current) {
		return invalid("Current password is incorrect.")
	}
	if err := e.setPassword(ctx, user, next, confirm); err != nil {
		return err
	}
	e.RecordPasswordChange(ctx, user, client)
	return nil
}

func (e *Engine) setPassword(ctx context.Context, user *database.User, next, confirm string) error {
	if next != confirm {
		return invalid("Passwords do not match.")
	}
	if err := e.checkPasswordLength(next); err != nil {
		return err
	}
	if err := user.SetPassword(next); err != nil {
		return err
	}
	return e.db.UpdateUser(ctx, user)
}

// RequestPasswordReset emails a single use reset link. Unknown or inactive
// accounts are silently ignored so the caller cannot tell whether an email exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, mail string) error {
	mail = strings.ToLower(strings.TrimSpace(mail))
	if mail == "" {
		return invalid("Please provide your email address.")
	}

	user, err := e.db.GetUserByEmail(ctx, mail)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			log.Debug("Password reset for unknown email", "email", mail)
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	token := uuid.NewString()
	expires := e.now().Add(cache.ResetTokenTTL)
	if err := e.cache.ResetTokens.Set(ctx, token, cache.ResetToken{
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: expires,
	}); err != nil {
		return err
	}

	if err := e.email.SendPasswordReset(email.PasswordReset{
		UserEmail: user.Email,
		UserName:  user.FullName(),
		ResetURL:  e.cfg.ServerURL + "/reset-password/" + token,
		ExpiresAt: expires,
	}); err != nil {
		log.Error("failed to send password reset email", "user", user.ID, "error", err)
	}
	return nil
}

// ValidResetToken reports whether a reset token can still be used.
func (e *Engine) ValidResetToken(ctx context.Context, token string) bool {
	t, err := e.cache.ResetTokens.Get(ctx, token)
	return err == nil && e.now().Before(t.ExpiresAt)
}

// ResetPassword consumes a reset token and sets the new password.
func (e *Engine) ResetPassword(ctx context.Context, token, next, confirm string, client ClientInfo) error {
	if next != confirm {
		return invalid("Passwords do not match.")
	}
	if err := e.checkPasswordLength(next); err != nil {
		return err
	}
	t, err := e.cache.ResetTokens.Take(ctx, token)
	if err != nil {
		if cache.IsNotFound(err) {
			return ErrInvalidToken
		}
		return err
	}
	if !e.now().Before(t.ExpiresAt) {
		return ErrInvalidToken
	}

	user, err := e.db.GetUserByID(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if !strings.EqualFold(user.Email, t.Email) {
		// the email changed after the reset was requested
		return ErrInvalidToken
	}
	if err := e.setPassword(ctx, user, next, confirm); err != nil {
		return err
	}
	e.RecordPasswordChange(ctx, user, client)
	return nil
}

// SSOIdentity is a user authenticated by the OIDC provider.
type SSOIdentity struct {
	// Subject is the stable identifier of the account at the provider.
	Subject   string
	Email     string
	FirstName string
	LastName  string
	Username  string
	IsAdmin   bool
	// EmailVerified is set when the provider asserts ownership of Email.
	EmailVerified bool
}

// LoginSSOUser signs in the user bound to the identity's subject. On first sign-in an
// existing account with the same email is bound only when the provider verified the
// email, otherwise a new account is created.
func (e *Engine) LoginSSOUser(ctx context.Context, id SSOIdentity, client ClientInfo) (*database.User, error) {
	id.Subject = strings.TrimSpace(id.Subject)
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	if id.Subject == "" {
		return nil, invalid("The identity provider did not return a subject.")
	}
	if id.Email == "" {
		return nil, invalid("The identity provider did not return an email address.")
	}

	user, err := e.db.GetUserBySSOSubject(ctx, id.Subject)
	if errors.Is(err, database.ErrNotFound) {
		user, err = e.bindSSOUser(ctx, id, client)
	}
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		e.RecordFailedLogin(ctx, id.Email, user, "inactive account", client)
		return nil, ErrInvalidCredentials
	}
	if id.IsAdmin && !user.IsAdmin {
		user.IsAdmin = true
		if err := e.db.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
	}

	now := e.now().UTC()
	if err := e.db.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	e.RecordLogin(ctx, user, client)
	return user, nil
}

// bindSSOUser handles the first sign-in of a subject.
func (e *Engine) bindSSOUser(ctx context.Context, id SSOIdentity, client ClientInfo) (*database.User, error) {
	user, err := e.db.GetUserByEmail(ctx, id.Email)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return e.createSSOUser(ctx, id)
	case err != nil:
		return nil, err
	}

	if user.SSOSubject != nil || !id.EmailVerified {
		e.RecordFailedLogin(ctx, id.Email, user, "sso email not linkable", client)
		return nil, invalid("An account with this email already exists. Sign in with your password instead.")
	}
	user.SSOSubject = &id.Subject
	if err := e.db.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	log.Info("Linked SSO identity to existing user", "username", user.Username)
	return user, nil
}

func (e *Engine) createSSOUser(ctx context.Context, id SSOIdentity) (*database.User, error) {
	base := id.Username
	if base == "" {
		base = usernameFromEmail(id.Email)
	}
	username, err := e.db.UniqueUsername(ctx, base)
	if err != nil {
		return nil, err
	}
	user := database.NewUser(username, id.Email, id.FirstName, id.LastName)
	user.IsAdmin = id.IsAdmin
	user.SSOSubject = &id.Subject
	// SSO accounts get an unusable random password
	if err := user.SetPassword(uuid.NewString() + uuid.NewString()); err != nil {
		return nil, err
	}
	if err := e.db.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	log.Info("Created user from SSO sign-in", "username", user.Username)
	return user, nil
}
