package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	themes  = []string{"light", "dark", "auto"}
	layouts = []string{"default", "compact", "wide", "detailed"}
)

// Themes returns the accepted preference themes.
func Themes() []string { return slices.Clone(themes) }

// Layouts returns the accepted dashboard layouts.
func Layouts() []string { return slices.Clone(layouts) }

// ErrInvalidSetting is returned for values that cannot be stored.
var ErrInvalidSetting = errors.New("invalid setting")

// TypedValue decodes the stored value according to its type.
func (s *UserSetting) TypedValue() (any, error) {
	switch s.SettingType {
	case SettingTypeString, "":
		return s.SettingValue, nil
	case SettingTypeInt:
		return strconv.ParseInt(s.SettingValue, 10, 64)
	case SettingTypeBool:
		return strconv.ParseBool(s.SettingValue)
	case SettingTypeJSON:
		var v any
		if err := json.Unmarshal([]byte(s.SettingValue), &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unknown setting type %q", ErrInvalidSetting, s.SettingType)
	}
}

// ValidateSetting checks key, value and type of a setting before it is stored.
func ValidateSetting(key, value string, typ SettingType) error {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > 64 {
		return fmt.Errorf("%w: key must be 1-64 characters", ErrInvalidSetting)
	}
	s := UserSetting{SettingValue: value, SettingType: typ}
	if _, err := s.TypedValue(); err != nil {
		return fmt.Errorf("%w: %q is not a valid %s value", ErrInvalidSetting, value, typ)
	}
	return nil
}

// SetUserSetting creates or updates the (user, key) setting.
func (c *Client) SetUserSetting(ctx context.Context, userID uint, key, value string, typ SettingType) (*UserSetting, error) {
	if typ == "" {
		typ = SettingTypeString
	}
	key = strings.TrimSpace(key)
	if err := ValidateSetting(key, value, typ); err != nil {
		return nil, err
	}

	setting := UserSetting{
		UserID:       userID,
		SettingKey:   key,
		SettingValue: value,
		SettingType:  typ,
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "setting_key"}},
		DoUpdates: clause.Assignments(map[string]any{"setting_value": value, "setting_type": typ, "updated_at": time.Now().UTC()}),
	}).Create(&setting).Error
	if err != nil {
		return nil, logErr("failed to set user setting", err)
	}
	return c.GetUserSetting(ctx, userID, key)
}

func (c *Client) GetUserSetting(ctx context.Context, userID uint, key string) (*UserSetting, error) {
	var setting UserSetting
	if err := c.db.WithContext(ctx).Where("user_id = ? AND setting_key = ?", userID, key).First(&setting).Error; err != nil {
		return nil, logErr("failed to get user setting", err)
	}
	return &setting, nil
}

func (c *Client) ListUserSettings(ctx context.Context, userID uint) ([]UserSetting, error) {
	var settings []UserSetting
	if err := c.db.WithContext(ctx).Where("user_id = ?", userID).Order("setting_key").Find(&settings).Error; err != nil {
		return nil, logErr("failed to list user settings", err)
	}
	return settings, nil
}

func (c *Client) DeleteUserSetting(ctx context.Context, userID uint, key string) error {
	res := c.db.WithContext(ctx).Where("user_id = ? AND setting_key = ?", userID, key).Delete(&UserSetting{})
	if res.Error != nil {
		return logErr("failed to delete user setting", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DefaultPreference returns the preferences a new user starts with.
func DefaultPreference(userID uint) *UserPreference {
	return &UserPreference{
		UserID:               userID,
		Theme:                "light",
		DashboardLayout:      "default",
		NotificationsEnabled: true,
		RefreshInterval:      30,
		Language:             "en",
		Timezone:             "UTC",
	}
}

// Validate checks the preference values.
func (p *UserPreference) Validate() error {
	if !slices.Contains(themes, p.Theme) {
		return fmt.Errorf("%w: theme must be one of %s", ErrInvalidSetting, strings.Join(themes, ", "))
	}
	if !slices.Contains(layouts, p.DashboardLayout) {
		return fmt.Errorf("%w: dashboard_layout must be one of %s", ErrInvalidSetting, strings.Join(layouts, ", "))
	}
	if p.RefreshInterval < 5 || p.RefreshInterval > 3600 {
		return fmt.Errorf("%w: refresh_interval must be between 5 and 3600 seconds", ErrInvalidSetting)
	}
	if p.Language == "" || len(p.Language) > 16 {
		return fmt.Errorf("%w: language must be 1-16 characters", ErrInvalidSetting)
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil || p.Timezone == "" {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSetting, p.Timezone)
	}
	return nil
}

// GetOrCreatePreference returns the user's preferences, creating the defaults if missing.
func (c *Client) GetOrCreatePreference(ctx context.Context, userID uint) (*UserPreference, error) {
	var pref UserPreference
	err := c.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if err == nil {
		return &pref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, logErr("failed to get user preference", err)
	}

	def := DefaultPreference(userID)
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(def).Error; err != nil {
		return nil, logErr("failed to create user preference", err)
	}
	if def.ID == 0 {
		// lost a race against a concurrent insert
		if err := c.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error; err != nil {
			return nil, logErr("failed to get user preference", err)
		}
		return &pref, nil
	}
	return def, nil
}

// UpdatePreference validates and saves pref.
func (c *Client) UpdatePreference(ctx context.Context, pref *UserPreference) error {
	if err := pref.Validate(); err != nil {
		return err
	}
	if err := c.db.WithContext(ctx).Save(pref).Error; err != nil {
		return logErr("failed to update user preference", err)
	}
	return nil
}
