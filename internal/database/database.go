package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ DB = (*Client)(nil) // Ensure Client implements DB

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("record already exists")
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Options tune the connection pool.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Client wraps the gorm.DB instance.
type Client struct {
	db      *gorm.DB
	dialect string
}

// allModels lists every table in migration order.
func allModels() []any {
	return []any{
		&Company{},
		&User{},
		&UserSetting{},
		&UserPreference{},
		&AppMetric{},
		&SystemEvent{},
		&SSOConfiguration{},
		&EntraIntegration{},
		&SSOApplication{},
		&UserActivity{},
	}
}

// New opens the database behind dsn and performs migrations.
// postgres:// and postgresql:// URLs open PostgreSQL; anything else is a SQLite path.
func New(dsn string, opts ...Options) (*Client, error) {
	dialect, err := DetectDialect(dsn)
	if err != nil {
		return nil, err
	}

	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	var db *gorm.DB
	switch dialect {
	case DialectPostgres:
		db, err = gorm.Open(postgres.Open(strings.TrimSpace(dsn)), gcfg)
	default:
		db, err = gorm.Open(sqlite.Open(sqliteDSN(dsn)), gcfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if len(opts) > 0 {
		if opts[0].MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opts[0].MaxOpenConns)
		}
		if opts[0].MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(opts[0].MaxIdleConns)
		}
	}
	if dialect == DialectSQLite {
		// sqlite allows a single writer; an in-memory database only exists on its own connection
		sqlDB.SetMaxOpenConns(1)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c := &Client{db: db, dialect: dialect}
	if err := c.Migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return c, nil
}

// DetectDialect infers the database dialect from a connection string.
func DetectDialect(dsn string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case lower == "":
		return "", fmt.Errorf("empty database url")
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, nil
	case strings.Contains(lower, "host=") && strings.Contains(lower, "dbname="):
		return DialectPostgres, nil
	case strings.HasPrefix(lower, "sqlite://"),
		strings.HasPrefix(lower, "sqlite3://"),
		strings.HasPrefix(lower, "file:"),
		!strings.Contains(lower, "://"):
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database url scheme: %s", dsn)
	}
}

// sqliteDSN turns sqlite:///path URLs into driver paths and enables foreign keys.
func sqliteDSN(dsn string) string {
	path := strings.TrimSpace(dsn)
	for _, prefix := range []string{"sqlite:///", "sqlite3:///", "sqlite://", "sqlite3://"} {
		if strings.HasPrefix(path, prefix) {
			path = strings.TrimPrefix(path, prefix)
			break
		}
	}
	if path == "" {
		path = ":memory:"
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !strings.Contains(path, ":memory:") {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	return path + sep + pragmas
}

// Dialect returns the active database dialect.
func (c *Client) Dialect() string {
	return c.dialect
}

// Migrate creates or updates all tables.
func (c *Client) Migrate() error {
	if err := c.db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Reset drops every table and recreates the schema.
func (c *Client) Reset(ctx context.Context) error {
	models := allModels()
	// drop in reverse so dependents go first
	for i := len(models) - 1; i >= 0; i-- {
		if err := c.db.WithContext(ctx).Migrator().DropTable(models[i]); err != nil {
			log.Error("failed to drop table", "error", err)
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	return c.Migrate()
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// TableCounts returns the number of rows per table.
func (c *Client) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, m := range allModels() {
		stmt := &gorm.Statement{DB: c.db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("failed to parse model: %w", err)
		}
		var n int64
		if err := c.db.WithContext(ctx).Model(m).Count(&n).Error; err != nil {
			log.Error("failed to count rows", "table", stmt.Schema.Table, "error", err)
			return nil, err
		}
		counts[stmt.Schema.Table] = n
	}
	return counts, nil
}

// Transaction runs fn inside a database transaction using a client bound to it.
func (c *Client) Transaction(ctx context.Context, fn func(tx DB) error) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Client{db: tx, dialect: c.dialect})
	})
}

// translateError maps driver errors onto the package sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") {
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	}
	return err
}

// logErr logs unexpected database errors and returns the translated error.
func logErr(msg string, err error) error {
	err = translateError(err)
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrDuplicate) {
		log.Error(msg, "error", err)
	}
	return err
}

func clampLimit(limit, def, upper int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, upper)
}
