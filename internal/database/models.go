package database

import (
	"time"

	"gorm.io/datatypes"
)

// UserRole is the role of a user inside its company.
type UserRole string

const (
	RoleUser   UserRole = "user"
	RoleAdmin  UserRole = "admin"
	RoleViewer UserRole = "viewer"
)

// SettingType describes how a UserSetting value is encoded.
type SettingType string

const (
	SettingTypeString SettingType = "string"
	SettingTypeInt    SettingType = "int"
	SettingTypeBool   SettingType = "bool"
	SettingTypeJSON   SettingType = "json"
)

// MetricKind is the kind of an AppMetric series.
type MetricKind string

const (
	MetricKindGauge     MetricKind = "gauge"
	MetricKindCounter   MetricKind = "counter"
	MetricKindHistogram MetricKind = "histogram"
)

// Severity is the level of a SystemEvent.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ActivityType classifies a UserActivity row.
type ActivityType string

const (
	ActivityLogin          ActivityType = "login"
	ActivityLogout         ActivityType = "logout"
	ActivityAccess         ActivityType = "access"
	ActivityFailedLogin    ActivityType = "failed_login"
	ActivityPasswordChange ActivityType = "password_change"
)

// SyncStatus is the state of an Entra integration.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusActive  SyncStatus = "active"
	SyncStatusError   SyncStatus = "error"
)

// ProviderEntraID is the only supported SSO provider.
const ProviderEntraID = "entra_id"

// Company is a tenant organization whose directory is monitored.
type Company struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	Name          string    `gorm:"size:120;not null" json:"name"`
	Domain        string    `gorm:"size:120;uniqueIndex;not null" json:"domain"`
	Industry      string    `gorm:"size:80" json:"industry"`
	EmployeeCount *int      `json:"employee_count,omitempty"`
	IsActive      bool      `gorm:"not null" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Users             []User             `gorm:"constraint:OnDelete:SET NULL;" json:"-"`
	SSOConfigurations []SSOConfiguration `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	SSOApplications   []SSOApplication   `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Activities        []UserActivity     `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// User is an account that can sign in to the dashboard.
type User struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	Username     string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	FirstName    string     `gorm:"size:80" json:"first_name"`
	LastName     string     `gorm:"size:80" json:"last_name"`
	Role         UserRole   `gorm:"size:20;not null" json:"role"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	IsAdmin      bool       `gorm:"not null" json:"is_admin"`
	CompanyID    *uint      `gorm:"index" json:"company_id,omitempty"`
	Company      *Company   `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	// SSOSubject is the stable identity provider subject the account is bound to.
	SSOSubject *string `gorm:"size:255;uniqueIndex" json:"-"`

	Settings   []UserSetting   `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Preference *UserPreference `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Metrics    []AppMetric     `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// UserSetting is a typed key/value pair scoped to a user.
type UserSetting struct {
	ID           uint        `gorm:"primarykey" json:"id"`
	UserID       uint        `gorm:"not null;uniqueIndex:idx_user_setting_key" json:"user_id"`
	SettingKey   string      `gorm:"size:64;not null;uniqueIndex:idx_user_setting_key" json:"key"`
	SettingValue string      `gorm:"type:text" json:"value"`
	SettingType  SettingType `gorm:"size:16;not null" json:"type"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// UserPreference holds the dashboard UI preferences of a user.
type UserPreference struct {
	ID                   uint      `gorm:"primarykey" json:"id"`
	UserID               uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Theme                string    `gorm:"size:20;not null" json:"theme"`
	DashboardLayout      string    `gorm:"size:50;not null" json:"dashboard_layout"`
	SidebarCollapsed     bool      `gorm:"not null" json:"sidebar_collapsed"`
	NotificationsEnabled bool      `gorm:"not null" json:"notifications_enabled"`
	RefreshInterval      int       `gorm:"not null" json:"refresh_interval"`
	Language             string    `gorm:"size:16;not null" json:"language"`
	Timezone             string    `gorm:"size:64;not null" json:"timezone"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// AppMetric is a single timestamped measurement.
type AppMetric struct {
	ID          uint              `gorm:"primarykey" json:"id"`
	UserID      *uint             `gorm:"index" json:"user_id,omitempty"`
	MetricType  string            `gorm:"size:64;not null;index" json:"metric_type"`
	Value       float64           `gorm:"not null" json:"value"`
	Unit        string            `gorm:"size:20" json:"unit"`
	Kind        MetricKind        `gorm:"size:16;not null" json:"kind"`
	Description string            `gorm:"type:text" json:"description"`
	Tags        datatypes.JSONMap `json:"tags,omitempty"`
	Timestamp   time.Time         `gorm:"not null;index" json:"timestamp"`
}

// SystemEvent is an audit or log record.
type SystemEvent struct {
	ID        uint              `gorm:"primarykey" json:"id"`
	EventType string            `gorm:"size:64;not null;index" json:"event_type"`
	Severity  Severity          `gorm:"size:16;not null;index" json:"severity"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Source    string            `gorm:"size:100;not null" json:"source"`
	EventData datatypes.JSONMap `json:"event_data,omitempty"`
	Timestamp time.Time         `gorm:"not null;index" json:"timestamp"`
}

// SSOConfiguration links a company to an identity provider.
type SSOConfiguration struct {
	ID           uint              `gorm:"primarykey" json:"id"`
	CompanyID    uint              `gorm:"not null;uniqueIndex:idx_sso_company_provider" json:"company_id"`
	ProviderName string            `gorm:"size:32;not null;uniqueIndex:idx_sso_company_provider" json:"provider_name"`
	DisplayName  string            `gorm:"size:120" json:"display_name"`
	IsActive     bool              `gorm:"not null" json:"is_active"`
	ConfigData   datatypes.JSONMap `json:"config_data,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`

	Integration *EntraIntegration `gorm:"foreignKey:SSOConfigID;constraint:OnDelete:CASCADE;" json:"-"`
}

// EntraIntegration stores the Graph API credentials and sync state of a configuration.
type EntraIntegration struct {
	ID                 uint                        `gorm:"primarykey" json:"id"`
	SSOConfigID        uint                        `gorm:"column:sso_config_id;not null;uniqueIndex" json:"sso_config_id"`
	TenantID           string                      `gorm:"size:64;not null" json:"tenant_id"`
	ClientID           string                      `gorm:"size:64;not null" json:"client_id"`
	ClientSecret       string                      `gorm:"size:255;not null" json:"-"`
	APIKey             string                      `gorm:"size:255" json:"-"`
	PermissionsGranted datatypes.JSONSlice[string] `json:"permissions_granted"`
	LastSync           *time.Time                  `json:"last_sync,omitempty"`
	SyncStatus         SyncStatus                  `gorm:"size:16;not null" json:"sync_status"`
	LastError          string                      `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// SSOApplication is an application registration discovered in a company directory.
type SSOApplication struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	CompanyID    uint       `gorm:"not null;uniqueIndex:idx_app_company_entra" json:"company_id"`
	EntraAppID   string     `gorm:"size:64;not null;uniqueIndex:idx_app_company_entra" json:"entra_app_id"`
	Name         string     `gorm:"size:200;not null" json:"name"`
	AppType      string     `gorm:"size:64" json:"app_type"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
	SignInCount  int64      `gorm:"not null;default:0" json:"sign_in_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserActivity is a sign-in or access record of a company member.
type UserActivity struct {
	ID            uint              `gorm:"primarykey" json:"id"`
	CompanyID     uint              `gorm:"not null;index;uniqueIndex:idx_activity_external" json:"company_id"`
	UserID        *uint             `gorm:"index" json:"user_id,omitempty"`
	User          *User             `gorm:"constraint:OnDelete:SET NULL;" json:"user,omitempty"`
	AppID         *uint             `gorm:"index" json:"app_id,omitempty"`
	App           *SSOApplication   `gorm:"foreignKey:AppID;constraint:OnDelete:SET NULL;" json:"app,omitempty"`
	ActivityType  ActivityType      `gorm:"size:32;not null" json:"activity_type"`
	Timestamp     time.Time         `gorm:"not null;index" json:"timestamp"`
	IPAddress     string            `gorm:"size:64" json:"ip_address"`
	UserAgent     string            `gorm:"type:text" json:"user_agent"`
	Location      string            `gorm:"size:120" json:"location"`
	Success       bool              `gorm:"not null" json:"success"`
	FailureReason string            `gorm:"size:255" json:"failure_reason,omitempty"`
	ExternalID    *string           `gorm:"size:64;uniqueIndex:idx_activity_external" json:"external_id,omitempty"`
	Principal     string            `gorm:"size:200" json:"principal,omitempty"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
}

func (Company) TableName() string          { return "companies" }
func (User) TableName() string             { return "users" }
func (UserSetting) TableName() string      { return "user_settings" }
func (UserPreference) TableName() string   { return "user_preferences" }
func (AppMetric) TableName() string        { return "app_metrics" }
func (SystemEvent) TableName() string      { return "system_events" }
func (SSOConfiguration) TableName() string { return "sso_configurations" }
func (EntraIntegration) TableName() string { return "entra_integrations" }
func (SSOApplication) TableName() string   { return "sso_applications" }
func (UserActivity) TableName() string     { return "user_activities" }
