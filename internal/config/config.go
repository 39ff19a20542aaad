package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

// Environment selects a configuration profile.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTesting     Environment = "testing"
)

// DevSessionKey is the fallback session key used outside of production.
const DevSessionKey = "dev-secret-key-change-in-production"

const (
	defaultDevDatabaseURL  = "sqlite:///app.db"
	defaultTestDatabaseURL = "sqlite:///:memory:"
)

// Config holds the configuration for the app monitor server and its dependencies.
type Config struct {
	// Environment is the active profile (development, production, testing).
	Environment Environment `yaml:"environment" mapstructure:"environment"`
	// Listen is the address the server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// ServerURL is the public base URL of the server, used in emails.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// SessionKey is the key used to sign session cookies.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// SessionMaxAge is the maximum age of a session in seconds.
	SessionMaxAge int `yaml:"session_max_age" mapstructure:"session_max_age"`
	// RememberMaxAge is the session age in seconds when "remember me" is checked at login.
	RememberMaxAge int `yaml:"remember_max_age" mapstructure:"remember_max_age"`
	// LogLevel is the default log level, overridden by --log-level.
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	// RetentionSchedule is the cron schedule of the retention job.
	RetentionSchedule string `yaml:"retention_schedule" mapstructure:"retention_schedule"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Auth holds the authentication configuration.
	Auth *AuthConfig `yaml:"auth" mapstructure:"auth"`
	// Entra holds the Microsoft Graph client configuration.
	Entra *EntraConfig `yaml:"entra" mapstructure:"entra"`
	// Metrics holds the host metrics collector configuration.
	Metrics *MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	// Events holds the system event configuration.
	Events *EventsConfig `yaml:"events" mapstructure:"events"`
	// Cache holds the cache engine configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Email holds the email notification configuration.
	Email *EmailConfig `yaml:"email" mapstructure:"email"`
	// Gravatar holds the configuration for Gravatar profile pictures.
	Gravatar *GravatarConfig `yaml:"gravatar" mapstructure:"gravatar"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// URL is the database connection string. postgresql:// URLs select PostgreSQL,
	// everything else is treated as a SQLite path (sqlite:///app.db, file:app.db, app.db).
	URL string `yaml:"url" mapstructure:"url"`
	// MaxOpenConns limits the number of open connections.
	MaxOpenConns int `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	// MaxIdleConns limits the number of idle connections.
	MaxIdleConns int `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
}

// AuthConfig holds the authentication configuration.
type AuthConfig struct {
	// Local holds the username/password configuration.
	Local *LocalAuthConfig `yaml:"local" mapstructure:"local"`
	// OIDC holds the OpenID Connect (Entra ID) configuration.
	OIDC *OIDCConfig `yaml:"oidc" mapstructure:"oidc"`
}

// LocalAuthConfig holds the configuration of password based logins.
type LocalAuthConfig struct {
	// Enabled indicates whether password logins are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// AllowRegistration enables the self-service registration form.
	AllowRegistration bool `yaml:"allow_registration" mapstructure:"allow_registration"`
	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength int `yaml:"min_password_length" mapstructure:"min_password_length"`
}

// OIDCConfig holds the OpenID Connect configuration.
type OIDCConfig struct {
	// Enabled indicates whether OIDC authentication is enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Name is the display name for the OIDC provider.
	Name string `yaml:"name" mapstructure:"name"`
	// Issuer is the OIDC issuer URL.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// ClientID is the OIDC client ID.
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	// ClientSecret is the OIDC client secret.
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	// RedirectURL is the redirect URL for the oidc flow.
	RedirectURL string `yaml:"redirect_url" mapstructure:"redirect_url"`
	// AdminGroup is the group that has admin privileges.
	AdminGroup string `yaml:"admin_group" mapstructure:"admin_group"`
}

// EntraConfig holds the Microsoft identity platform and Graph settings.
type EntraConfig struct {
	// AuthorityURL is the base URL of the token endpoint.
	AuthorityURL string `yaml:"authority_url" mapstructure:"authority_url"`
	// GraphURL is the base URL of Microsoft Graph.
	GraphURL string `yaml:"graph_url" mapstructure:"graph_url"`
	// SyncSchedule is the cron schedule of the Entra sync job. Empty disables it.
	SyncSchedule string `yaml:"sync_schedule" mapstructure:"sync_schedule"`
	// SignInDays is how many days of sign-in logs are fetched per sync.
	SignInDays int `yaml:"sign_in_days" mapstructure:"sign_in_days"`
	// Timeout is the HTTP timeout for Graph requests.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// MetricsConfig holds the host metrics collector configuration.
type MetricsConfig struct {
	// CollectEnabled turns on the periodic host metrics collection.
	CollectEnabled bool `yaml:"collect_enabled" mapstructure:"collect_enabled"`
	// CollectSchedule is the cron schedule of the collector.
	CollectSchedule string `yaml:"collect_schedule" mapstructure:"collect_schedule"`
	// DiskPath is the mount point sampled for disk usage.
	DiskPath string `yaml:"disk_path" mapstructure:"disk_path"`
	// RetentionDays is how long metrics are kept. 0 keeps them forever.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days"`
}

// EventsConfig holds the system event configuration.
type EventsConfig struct {
	// RetentionDays is how long events are kept. 0 keeps them forever.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days"`
}

// CacheConfig holds the cache engine configuration.
type CacheConfig struct {
	// Type is the cache backend (memory or redis).
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the address of the redis server.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// TTL is the default expiration of cached Graph responses.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// EmailConfig holds the email notification configuration.
type EmailConfig struct {
	// Enabled indicates whether email notifications are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// SMTPHost is the SMTP server host.
	SMTPHost string `yaml:"smtp_host" mapstructure:"smtp_host"`
	// SMTPPort is the SMTP server port.
	SMTPPort int `yaml:"smtp_port" mapstructure:"smtp_port"`
	// Username is the SMTP username.
	Username string `yaml:"username" mapstructure:"username"`
	// Password is the SMTP password.
	Password string `yaml:"password" mapstructure:"password"`
	// FromEmail is the email address from which notifications are sent.
	FromEmail string `yaml:"from_email" mapstructure:"from_email"`
	// FromName is the name from which notifications are sent.
	FromName string `yaml:"from_name" mapstructure:"from_name"`
	// UseTLS indicates whether to use TLS for the SMTP connection.
	UseTLS bool `yaml:"use_tls" mapstructure:"use_tls"`
	// UseSSL indicates whether to use SSL for the SMTP connection.
	UseSSL bool `yaml:"use_ssl" mapstructure:"use_ssl"`
	// InsecureSkipVerify indicates whether to skip TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// GravatarConfig holds the configuration for Gravatar profile pictures.
type GravatarConfig struct {
	// Enabled indicates whether Gravatar support is enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// DefaultImage is the default image to use when no Gravatar is found.
	// Valid values: "404", "mp", "identicon", "monsterid", "wavatar", "retro", "robohash", "blank"
	DefaultImage string `yaml:"default_image" mapstructure:"default_image"`
	// Rating is the maximum rating for Gravatar images.
	// Valid values: "g", "pg", "r", "x"
	Rating string `yaml:"rating" mapstructure:"rating"`
	// Size is the size of the Gravatar image in pixels (1-2048).
	Size int `yaml:"size" mapstructure:"size"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
// A missing config file is not an error; defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	// bind env vars that don't follow the APPMONITOR_ prefix scheme
	bindNestedEnv(v)

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("APPMONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.appmonitor")
		v.AddConfigPath("/etc/appmonitor")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Environment variables with the APPMONITOR_ prefix override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvironment(&c, v.GetString("database.dev_url"), v.GetString("database.test_url"))

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvProduction)
	v.SetDefault("listen", "0.0.0.0:5000")
	v.SetDefault("server_url", "http://localhost:5000")
	v.SetDefault("session_max_age", 86400)    // 24 hours
	v.SetDefault("remember_max_age", 2592000) // 30 days
	v.SetDefault("log_level", "info")
	v.SetDefault("retention_schedule", "30 3 * * *")

	// Database defaults
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	// Auth defaults
	v.SetDefault("auth.local.enabled", true)
	v.SetDefault("auth.local.allow_registration", true)
	v.SetDefault("auth.local.min_password_length", 6)
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.name", "Microsoft")
	v.SetDefault("auth.oidc.issuer", "")
	v.SetDefault("auth.oidc.client_id", "")
	v.SetDefault("auth.oidc.client_secret", "")
	v.SetDefault("auth.oidc.redirect_url", "")
	v.SetDefault("auth.oidc.admin_group", "")

	// Entra defaults
	v.SetDefault("entra.authority_url", "https://login.microsoftonline.com")
	v.SetDefault("entra.graph_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("entra.sync_schedule", "0 * * * *") // hourly
	v.SetDefault("entra.sign_in_days", 7)
	v.SetDefault("entra.timeout", 30*time.Second)

	// Metrics defaults
	v.SetDefault("metrics.collect_enabled", true)
	v.SetDefault("metrics.collect_schedule", "*/5 * * * *")
	v.SetDefault("metrics.disk_path", "/")
	v.SetDefault("metrics.retention_days", 30)
	v.SetDefault("events.retention_days", 90)

	// Cache defaults
	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 10*time.Minute)

	// Email defaults
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from_name", "App Monitor")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
	v.SetDefault("email.insecure_skip_verify", false)

	// Gravatar defaults
	v.SetDefault("gravatar.enabled", true)
	v.SetDefault("gravatar.default_image", "identicon")
	v.SetDefault("gravatar.rating", "g")
	v.SetDefault("gravatar.size", 80)
}

// bindNestedEnv binds the variables used by existing deployments next to the prefixed ones.
// The first variable that is set wins.
func bindNestedEnv(v *viper.Viper) {
	v.MustBindEnv("environment", "APPMONITOR_ENVIRONMENT", "APPMONITOR_ENV", "FLASK_ENV")
	v.MustBindEnv("session_key", "APPMONITOR_SESSION_KEY", "SECRET_KEY")
	v.MustBindEnv("database.url", "APPMONITOR_DATABASE_URL", "DATABASE_URL")
	v.MustBindEnv("database.dev_url", "DEV_DATABASE_URL")
	v.MustBindEnv("database.test_url", "TEST_DATABASE_URL")
}

// applyEnvironment fills profile dependent values that were not set explicitly.
func applyEnvironment(c *Config, devURL, testURL string) {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	if c.Environment == "" || c.Environment == "default" {
		c.Environment = EnvProduction
	}
	if c.Database == nil {
		c.Database = &DatabaseConfig{}
	}

	switch c.Environment {
	case EnvDevelopment:
		if devURL != "" {
			c.Database.URL = devURL
		} else if c.Database.URL == "" {
			c.Database.URL = defaultDevDatabaseURL
		}
	case EnvTesting:
		if testURL != "" {
			c.Database.URL = testURL
		} else {
			c.Database.URL = defaultTestDatabaseURL
		}
	}

	if c.SessionKey == "" && c.Environment != EnvProduction {
		c.SessionKey = DevSessionKey
	}
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing config")
	}

	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTesting:
	default:
		return fmt.Errorf("unknown environment %q (valid: development, production, testing)", c.Environment)
	}

	if c.Database == nil || c.Database.URL == "" {
		return fmt.Errorf("database url is required (set DATABASE_URL)")
	}

	if c.SessionKey == "" {
		return fmt.Errorf("session key is required (set SECRET_KEY)")
	}
	if c.IsProduction() && c.SessionKey == DevSessionKey {
		return fmt.Errorf("the development session key must not be used in production")
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("session max age must be positive")
	}

	if c.Auth == nil {
		return fmt.Errorf("missing auth config")
	}
	localEnabled := c.Auth.Local != nil && c.Auth.Local.Enabled
	oidcEnabled := c.Auth.OIDC != nil && c.Auth.OIDC.Enabled
	if !localEnabled && !oidcEnabled {
		return fmt.Errorf("at least one authentication method must be enabled")
	}
	if localEnabled && c.Auth.Local.MinPasswordLength < 1 {
		return fmt.Errorf("min password length must be at least 1")
	}
	if oidcEnabled {
		if c.Auth.OIDC.Issuer == "" {
			return fmt.Errorf("OIDC issuer is required when OIDC is enabled")
		}
		if c.Auth.OIDC.ClientID == "" {
			return fmt.Errorf("OIDC client ID is required when OIDC is enabled")
		}
		if c.Auth.OIDC.ClientSecret == "" {
			return fmt.Errorf("OIDC client secret is required when OIDC is enabled")
		}
		if c.Auth.OIDC.RedirectURL == "" {
			return fmt.Errorf("OIDC redirect URL is required when OIDC is enabled")
		}
	}

	if c.Entra != nil {
		if c.Entra.AuthorityURL == "" || c.Entra.GraphURL == "" {
			return fmt.Errorf("entra authority and graph URLs are required")
		}
		if c.Entra.SignInDays < 1 {
			return fmt.Errorf("entra sign_in_days must be at least 1")
		}
	}

	if c.Cache != nil {
		if c.Cache.Type != CacheTypeMemory && c.Cache.Type != CacheTypeRedis {
			return fmt.Errorf("cache type must be memory or redis")
		}
		if c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
		}
	}

	if c.Email != nil && c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP host is required when email is enabled") //nolint:staticcheck
		}
		if c.Email.FromEmail == "" {
			return fmt.Errorf("from email is required when email is enabled")
		}
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = urlSanitize(c.Listen)
	if c.ServerURL != "" {
		c.ServerURL = urlSanitize(c.ServerURL)
	}
	if c.Database != nil {
		c.Database.URL = NormalizeDatabaseURL(c.Database.URL)
	}
	if c.Entra != nil {
		c.Entra.AuthorityURL = urlSanitize(c.Entra.AuthorityURL)
		c.Entra.GraphURL = urlSanitize(c.Entra.GraphURL)
	}
	if c.Auth != nil && c.Auth.OIDC != nil {
		c.Auth.OIDC.Issuer = urlSanitize(c.Auth.OIDC.Issuer)
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}

// NormalizeDatabaseURL rewrites the legacy postgres:// scheme to postgresql://.
func NormalizeDatabaseURL(url string) string {
	url = strings.TrimSpace(url)
	if strings.HasPrefix(url, "postgres://") {
		return "postgresql://" + strings.TrimPrefix(url, "postgres://")
	}
	return url
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// IsDevelopment reports whether the development profile is active.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// GetMinPasswordLength returns the configured minimum password length.
func (c *Config) GetMinPasswordLength() int {
	if c.Auth == nil || c.Auth.Local == nil || c.Auth.Local.MinPasswordLength < 1 {
		return 6
	}
	return c.Auth.Local.MinPasswordLength
}

// RegistrationAllowed reports whether the self-service registration form is available.
func (c *Config) RegistrationAllowed() bool {
	return c.Auth != nil && c.Auth.Local != nil && c.Auth.Local.Enabled && c.Auth.Local.AllowRegistration
}
