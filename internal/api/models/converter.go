package models

import (
	"time"

	"github.com/jon4hz/appmonitor/internal/config"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/jon4hz/appmonitor/internal/gravatar"
	"github.com/samber/lo"
)

// User is the public view of a user account.
type User struct {
	ID          uint       `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	FullName    string     `json:"full_name"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	IsAdmin     bool       `json:"is_admin"`
	CompanyID   *uint      `json:"company_id,omitempty"`
	GravatarURL string     `json:"gravatar_url,omitempty"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Setting is a user setting with its decoded value.
type Setting struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	Type      string    `json:"type"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToUser converts a database.User to its public view.
func ToUser(u *database.User, gravatarCfg *config.GravatarConfig) User {
	return User{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		Role:        string(u.Role),
		IsActive:    u.IsActive,
		IsAdmin:     u.IsAdmin,
		CompanyID:   u.CompanyID,
		GravatarURL: gravatar.GenerateURL(u.Email, gravatarCfg),
		LastLogin:   u.LastLogin,
		CreatedAt:   u.CreatedAt,
	}
}

// ToUsers converts a list of users.
func ToUsers(users []database.User, gravatarCfg *config.GravatarConfig) []User {
	return lo.Map(users, func(u database.User, _ int) User {
		return ToUser(&u, gravatarCfg)
	})
}

// ToSetting decodes the stored value. Values that fail to decode are returned as stored.
func ToSetting(s database.UserSetting) Setting {
	value, err := s.TypedValue()
	if err != nil {
		value = s.SettingValue
	}
	return Setting{
		Key:       s.SettingKey,
		Value:     value,
		Type:      string(s.SettingType),
		UpdatedAt: s.UpdatedAt,
	}
}

// ToSettings converts a list of settings.
func ToSettings(settings []database.UserSetting) []Setting {
	return lo.Map(settings, func(s database.UserSetting, _ int) Setting {
		return ToSetting(s)
	})
}
