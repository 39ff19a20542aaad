package database

import (
	"context"
	"time"
)

// DB is the persistence API used by the engine and the HTTP handlers.
type DB interface {
	UserDB
	SettingsDB
	MetricsDB
	CompanyDB

	Transaction(ctx context.Context, fn func(tx DB) error) error
	TableCounts(ctx context.Context) (map[string]int64, error)
	Ping(ctx context.Context) error
	Reset(ctx context.Context) error
	Close() error
}

type UserDB interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uint) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserBySSOSubject(ctx context.Context, subject string) (*User, error)
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error)
	UniqueUsername(ctx context.Context, base string) (string, error)
	UpdateUser(ctx context.Context, user *User) error
	UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error
	DeleteUser(ctx context.Context, id uint) error
	ListUsersByCompany(ctx context.Context, companyID uint) ([]User, error)
	ListCompanyAdmins(ctx context.Context, companyID uint) ([]User, error)
	CountUsers(ctx context.Context) (int64, error)
}

type SettingsDB interface {
	SetUserSetting(ctx context.Context, userID uint, key, value string, typ SettingType) (*UserSetting, error)
	GetUserSetting(ctx context.Context, userID uint, key string) (*UserSetting, error)
	ListUserSettings(ctx context.Context, userID uint) ([]UserSetting, error)
	DeleteUserSetting(ctx context.Context, userID uint, key string) error
	GetOrCreatePreference(ctx context.Context, userID uint) (*UserPreference, error)
	UpdatePreference(ctx context.Context, pref *UserPreference) error
}

type MetricsDB interface {
	CreateMetric(ctx context.Context, m *AppMetric) error
	CreateMetrics(ctx context.Context, metrics []AppMetric) error
	ListMetrics(ctx context.Context, f MetricFilter) ([]AppMetric, error)
	MetricTypes(ctx context.Context, userID *uint) ([]string, error)
	DeleteMetricsBefore(ctx context.Context, t time.Time) (int64, error)
	CreateEvent(ctx context.Context, e *SystemEvent) error
	ListEvents(ctx context.Context, f EventFilter) ([]SystemEvent, error)
	CountEventsBySeverity(ctx context.Context, since time.Time) (map[Severity]int64, error)
	DeleteEventsBefore(ctx context.Context, t time.Time) (int64, error)
}

type CompanyDB interface {
	CreateCompany(ctx context.Context, company *Company) error
	GetCompany(ctx context.Context, id uint) (*Company, error)
	ListCompanies(ctx context.Context) ([]Company, error)
	DeleteCompany(ctx context.Context, id uint) error
	CreateSSOConfiguration(ctx context.Context, cfg *SSOConfiguration) error
	GetSSOConfiguration(ctx context.Context, companyID uint, provider string) (*SSOConfiguration, error)
	CreateEntraIntegration(ctx context.Context, integration *EntraIntegration) error
	UpdateEntraIntegration(ctx context.Context, integration *EntraIntegration) error
	MarkSyncSucceeded(ctx context.Context, integrationID uint, at time.Time) error
	MarkSyncFailed(ctx context.Context, integrationID uint, cause string) error
	ListActiveIntegrations(ctx context.Context) ([]SSOConfiguration, error)
	UpsertSSOApplication(ctx context.Context, app *SSOApplication) error
	ListSSOApplications(ctx context.Context, companyID uint) ([]SSOApplication, error)
	UpdateApplicationActivity(ctx context.Context, appID uint, last *time.Time, signIns int64) error
	RecordActivity(ctx context.Context, a *UserActivity) (bool, error)
	ListActivities(ctx context.Context, companyID uint, limit int) ([]UserActivity, error)
	ApplicationStats(ctx context.Context, appID uint) (count int64, last *time.Time, err error)
}
