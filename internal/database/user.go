package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PasswordCost is the bcrypt work factor used by SetPassword.
var PasswordCost = bcrypt.DefaultCost

// MaxPasswordBytes is the longest password bcrypt can hash.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by SetPassword for passwords over MaxPasswordBytes.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// NewUser returns an active user with the default role.
func NewUser(username, email, firstName, lastName string) *User {
	return &User{
		Username:  strings.TrimSpace(username),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Role:      RoleUser,
		IsActive:  true,
	}
}

// SetPassword stores a bcrypt hash of password.
func (u *User) SetPassword(password string) error {
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// FullName returns "first last", falling back to the username.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// IsCompanyAdmin reports whether the user administers its company.
func (u *User) IsCompanyAdmin() bool {
	return u.IsAdmin || u.Role == RoleAdmin
}

// CanManageCompany reports whether the user may manage the given company.
func (u *User) CanManageCompany(companyID uint) bool {
	return u.IsActive && u.CompanyID != nil && *u.CompanyID == companyID && u.IsCompanyAdmin()
}

func (u *User) BeforeSave(*gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

func (c *Client) CreateUser(ctx context.Context, user *User) error {
	if user.PasswordHash == "" {
		return fmt.Errorf("user %q has no password", user.Username)
	}
	if err := c.db.WithContext(ctx).Create(user).Error; err != nil {
		return logErr("failed to create user", err)
	}
	return nil
}

func (c *Client) GetUserByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := c.db.WithContext(ctx).Preload("Company").First(&user, id).Error; err != nil {
		return nil, logErr("failed to get user by ID", err)
	}
	return &user, nil
}

func (c *Client) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := c.db.WithContext(ctx).Preload("Company").Where("username = ?", username).First(&user).Error; err != nil {
		return nil, logErr("failed to get user by username", err)
	}
	return &user, nil
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := c.db.WithContext(ctx).Preload("Company").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, logErr("failed to get user by email", err)
	}
	return &user, nil
}

func (c *Client) GetUserBySSOSubject(ctx context.Context, subject string) (*User, error) {
	if subject == "" {
		return nil, ErrNotFound
	}
	var user User
	if err := c.db.WithContext(ctx).Preload("Company").Where("sso_subject = ?", subject).First(&user).Error; err != nil {
		return nil, logErr("failed to get user by sso subject", err)
	}
	return &user, nil
}

// GetUserByLogin looks a user up by email or username.
func (c *Client) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, ErrNotFound
	}
	user, err := c.GetUserByEmail(ctx, login)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return user, err
	}
	return c.GetUserByUsername(ctx, login)
}

// EmailTaken reports whether another user than excludeID already uses email.
func (c *Client) EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	var n int64
	q := c.db.WithContext(ctx).Model(&User{}).Where("email = ?", strings.ToLower(strings.TrimSpace(email)))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, logErr("failed to check email", err)
	}
	return n > 0, nil
}

// UniqueUsername derives a free username from base by appending a counter.
func (c *Client) UniqueUsername(ctx context.Context, base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "user"
	}
	if len(base) > 56 {
		base = base[:56]
	}
	candidate := base
	for i := 1; ; i++ {
		var n int64
		if err := c.db.WithContext(ctx).Model(&User{}).Where("username = ?", candidate).Count(&n).Error; err != nil {
			return "", logErr("failed to check username", err)
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}

// UpdateUser saves all columns of user.
func (c *Client) UpdateUser(ctx context.Context, user *User) error {
	if err := c.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error; err != nil {
		return logErr("failed to update user", err)
	}
	return nil
}

func (c *Client) UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error {
	if err := c.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("last_login", at).Error; err != nil {
		return logErr("failed to update last login", err)
	}
	return nil
}

// DeleteUser removes the user together with its settings, preference and metrics.
func (c *Client) DeleteUser(ctx context.Context, id uint) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&UserSetting{}, &UserPreference{}, &AppMetric{}} {
			if err := tx.Where("user_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&UserActivity{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return logErr("failed to delete user", err)
	}
	return nil
}

func (c *Client) ListUsersByCompany(ctx context.Context, companyID uint) ([]User, error) {
	var users []User
	if err := c.db.WithContext(ctx).Where("company_id = ?", companyID).Order("last_name, first_name, username").Find(&users).Error; err != nil {
		return nil, logErr("failed to list company users", err)
	}
	return users, nil
}

func (c *Client) ListCompanyAdmins(ctx context.Context, companyID uint) ([]User, error) {
	var users []User
	if err := c.db.WithContext(ctx).
		Where("company_id = ? AND is_active = ? AND (is_admin = ? OR role = ?)", companyID, true, true, RoleAdmin).
		Find(&users).Error; err != nil {
		return nil, logErr("failed to list company admins", err)
	}
	return users, nil
}

func (c *Client) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.WithContext(ctx).Model(&User{}).Count(&n).Error; err != nil {
		return 0, logErr("failed to count users", err)
	}
	return n, nil
}
