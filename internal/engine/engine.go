package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/appmonitor/internal/cache"
	"github.com/jon4hz/appmonitor/internal/collector"
	"github.com/jon4hz/appmonitor/internal/config"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/jon4hz/appmonitor/internal/notify/email"
	"github.com/jon4hz/appmonitor/internal/scheduler"
	"github.com/jon4hz/appmonitor/pkg/entra"
)

var (
	// ErrCompanyNotSetUp is returned when the user has no company.
	ErrCompanyNotSetUp = errors.New("company not set up")
	// ErrForbidden is returned when the user may not manage the company.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrEntraNotConfigured is returned when the company has no Entra ID configuration.
	ErrEntraNotConfigured = errors.New("entra id not configured")
	// ErrIntegrationNotFound is returned when the configuration has no integration.
	ErrIntegrationNotFound = errors.New("entra integration not found")
	// ErrInvalidToken is returned for unknown or expired password reset tokens.
	ErrInvalidToken = errors.New("invalid or expired reset token")
)

// ValidationError is a user input error. Its message is safe to show.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GraphClient is the part of the Graph API the engine needs.
type GraphClient interface {
	GetApplications(ctx context.Context) ([]entra.Application, error)
	GetSignInLogs(ctx context.Context, days int) ([]entra.SignIn, error)
	TestConnection(ctx context.Context) (*entra.Organization, error)
	GetPermissionsStatus(ctx context.Context) ([]entra.PermissionStatus, error)
}

// GraphClientFactory builds a Graph client for an integration.
type GraphClientFactory func(integration *database.EntraIntegration) (GraphClient, error)

// Engine holds the application logic shared by the HTTP handlers and the background jobs.
type Engine struct {
	cfg       *config.Config
	db        database.DB
	scheduler *scheduler.Scheduler
	cache     *cache.EngineCache
	email     *email.NotificationService
	collector *collector.Collector

	newGraphClient GraphClientFactory
	now            func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithGraphClientFactory replaces the Graph client used for Entra ID calls.
func WithGraphClientFactory(f GraphClientFactory) Option {
	return func(e *Engine) {
		e.newGraphClient = f
	}
}

// WithClock replaces the time source of the engine.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a new Engine instance.
func New(cfg *config.Config, db database.DB, opts ...Option) (*Engine, error) {
	sched, err := scheduler.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	engineCache, err := cache.NewEngineCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine cache: %w", err)
	}

	mailer, err := email.New(cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to create email service: %w", err)
	}

	var diskPath string
	if cfg.Metrics != nil {
		diskPath = cfg.Metrics.DiskPath
	}

	e := &Engine{
		cfg:       cfg,
		db:        db,
		scheduler: sched,
		cache:     engineCache,
		email:     mailer,
		collector: collector.New(diskPath),
		now:       time.Now,
	}
	e.newGraphClient = e.defaultGraphClient
	for _, opt := range opts {
		opt(e)
	}

	if err := e.setupJobs(); err != nil {
		return nil, fmt.Errorf("failed to setup jobs: %w", err)
	}

	return e, nil
}

func (e *Engine) defaultGraphClient(integration *database.EntraIntegration) (GraphClient, error) {
	gcfg := entra.Config{
		TenantID:     integration.TenantID,
		ClientID:     integration.ClientID,
		ClientSecret: integration.ClientSecret,
	}
	if e.cfg.Entra != nil {
		gcfg.AuthorityURL = e.cfg.Entra.AuthorityURL
		gcfg.GraphURL = e.cfg.Entra.GraphURL
		gcfg.Timeout = e.cfg.Entra.Timeout
	}
	return entra.New(gcfg)
}

// DB returns the database used by the engine.
func (e *Engine) DB() database.DB {
	return e.db
}

// Config returns the application configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Run starts the scheduler and blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.scheduler.Start()
	<-ctx.Done()
	return nil
}

// Close stops the engine and cleans up resources.
func (e *Engine) Close() error {
	log.Debug("Closing engine")
	return e.scheduler.Stop()
}
