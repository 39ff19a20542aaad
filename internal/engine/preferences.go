package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/jon4hz/appmonitor/internal/database"
)

// PreferenceUpdate holds the preference fields a user may change. Nil fields stay untouched.
type PreferenceUpdate struct {
	Theme                *string `json:"theme"`
	DashboardLayout      *string `json:"dashboard_layout"`
	SidebarCollapsed     *bool   `json:"sidebar_collapsed"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	RefreshInterval      *int    `json:"refresh_interval"`
	Language             *string `json:"language"`
	Timezone             *string `json:"timezone"`
}

// Empty reports whether no field is set.
func (u PreferenceUpdate) Empty() bool {
	return u == PreferenceUpdate{}
}

// Preferences returns the preferences of a user, creating the defaults on first access.
func (e *Engine) Preferences(ctx context.Context, userID uint) (*database.UserPreference, error) {
	return e.db.GetOrCreatePreference(ctx, userID)
}

// UpdatePreferences applies the set fields and validates the result.
func (e *Engine) UpdatePreferences(ctx context.Context, userID uint, u PreferenceUpdate) (*database.UserPreference, error) {
	if u.Empty() {
		return nil, invalid("No data provided")
	}
	pref, err := e.db.GetOrCreatePreference(ctx, userID)
	if err != nil {
		return nil, err
	}

	if u.Theme != nil {
		pref.Theme = strings.ToLower(strings.TrimSpace(*u.Theme))
	}
	if u.DashboardLayout != nil {
		pref.DashboardLayout = strings.ToLower(strings.TrimSpace(*u.DashboardLayout))
	}
	if u.SidebarCollapsed != nil {
		pref.SidebarCollapsed = *u.SidebarCollapsed
	}
	if u.NotificationsEnabled != nil {
		pref.NotificationsEnabled = *u.NotificationsEnabled
	}
	if u.RefreshInterval != nil {
		pref.RefreshInterval = *u.RefreshInterval
	}
	if u.Language != nil {
		pref.Language = strings.TrimSpace(*u.Language)
	}
	if u.Timezone != nil {
		pref.Timezone = strings.TrimSpace(*u.Timezone)
	}

	if err := pref.Validate(); err != nil {
		return nil, invalid("%s", err.Error())
	}
	if err := e.db.UpdatePreference(ctx, pref); err != nil {
		return nil, err
	}
	return pref, nil
}

// ListSettings returns the settings of a user.
func (e *Engine) ListSettings(ctx context.Context, userID uint) ([]database.UserSetting, error) {
	return e.db.ListUserSettings(ctx, userID)
}

// SetSetting creates or replaces a setting. An empty type means string.
func (e *Engine) SetSetting(ctx context.Context, userID uint, key, value string, typ database.SettingType) (*database.UserSetting, error) {
	if typ == "" {
		typ = database.SettingTypeString
	}
	setting, err := e.db.SetUserSetting(ctx, userID, strings.TrimSpace(key), value, typ)
	if errors.Is(err, database.ErrInvalidSetting) {
		return nil, invalid("%s", err.Error())
	}
	return setting, err
}

// DeleteSetting removes a setting.
func (e *Engine) DeleteSetting(ctx context.Context, userID uint, key string) error {
	return e.db.DeleteUserSetting(ctx, userID, key)
}
