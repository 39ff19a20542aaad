package cache

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/codec"
	"github.com/jon4hz/appmonitor/internal/config"
	"github.com/jon4hz/appmonitor/pkg/entra"
)

// Cache key prefixes.
const (
	ResetTokenCachePrefix  = "appmonitor-reset-token-"
	ConnectionCachePrefix  = "appmonitor-connection-"
	PermissionsCachePrefix = "appmonitor-permissions-"
)

const (
	ResetTokenTTL = time.Hour
	ConnectionTTL = time.Minute
)

// ResetToken is a pending password reset.
type ResetToken struct {
	UserID    uint      `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ConnectionResult is the outcome of a Graph connection test.
type ConnectionResult struct {
	TenantName string    `json:"tenantName"`
	AppCount   int       `json:"appCount"`
	CheckedAt  time.Time `json:"checkedAt"`
}

// EngineCache bundles the caches used by the engine.
type EngineCache struct {
	ResetTokens *PrefixedCache[ResetToken]
	Connections *PrefixedCache[ConnectionResult]
	Permissions *PrefixedCache[[]entra.PermissionStatus]
}

// NewEngineCache creates the engine caches on the configured backend.
func NewEngineCache(cfg *config.CacheConfig) (*EngineCache, error) {
	ttl := 10 * time.Minute
	if cfg != nil && cfg.TTL > 0 {
		ttl = cfg.TTL
	}

	instance, err := newCacheInstanceByType(cfg)
	if err != nil {
		return nil, err
	}

	return &EngineCache{
		ResetTokens: NewPrefixedCache[ResetToken](instance, ResetTokenCachePrefix, ResetTokenTTL),
		Connections: NewPrefixedCache[ConnectionResult](instance, ConnectionCachePrefix, ConnectionTTL),
		Permissions: NewPrefixedCache[[]entra.PermissionStatus](instance, PermissionsCachePrefix, ttl),
	}, nil
}

// InvalidateCompany drops the cached Graph results of a company.
func (e *EngineCache) InvalidateCompany(ctx context.Context, companyID uint) {
	for _, err := range []error{
		e.Connections.Delete(ctx, companyID),
		e.Permissions.Delete(ctx, companyID),
	} {
		if err != nil && !IsNotFound(err) {
			log.Warn("failed to invalidate cache", "company", companyID, "error", err)
		}
	}
}

// ClearAll clears the cache backend.
func (e *EngineCache) ClearAll(ctx context.Context) {
	// all caches share one backend
	if err := e.ResetTokens.Clear(ctx); err != nil {
		log.Errorf("failed to clear cache: %v", err)
	}
}

type Stats struct {
	*codec.Stats
	CacheName string `json:"cacheName"`
}

// GetStats returns hit and miss counters of the shared backend.
func (e *EngineCache) GetStats() []*Stats {
	return []*Stats{
		{
			Stats:     e.ResetTokens.GetStats(),
			CacheName: e.ResetTokens.GetType(),
		},
	}
}
