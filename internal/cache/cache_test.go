package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jon4hz/appmonitor/internal/config"
	"github.com/jon4hz/appmonitor/pkg/entra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixedCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewPrefixedCache[ConnectionResult](newMemoryCache(), "test-", time.Minute)

	_, err := c.Get(ctx, 1)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	want := ConnectionResult{TenantName: "Contoso", AppCount: 3, CheckedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, c.Set(ctx, 1, want))

	got, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, c.Delete(ctx, 1))
	_, err = c.Get(ctx, 1)
	assert.True(t, IsNotFound(err))
}

func TestPrefixedCacheKeysDoNotCollide(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryCache()
	a := NewPrefixedCache[string](backend, "a-", 0)
	b := NewPrefixedCache[string](backend, "b-", 0)

	require.NoError(t, a.Set(ctx, "k", "from a"))
	require.NoError(t, b.Set(ctx, "k", "from b"))

	va, err := a.Get(ctx, "k")
	require.NoError(t, err)
	vb, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "from a", va)
	assert.Equal(t, "from b", vb)
}

func TestTakeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	ec, err := NewEngineCache(&config.CacheConfig{Type: config.CacheTypeMemory})
	require.NoError(t, err)

	require.NoError(t, ec.ResetTokens.Set(ctx, "tok", ResetToken{UserID: 7, Email: "ada@example.com"}))

	tok, err := ec.ResetTokens.Take(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, uint(7), tok.UserID)

	_, err = ec.ResetTokens.Take(ctx, "tok")
	assert.True(t, IsNotFound(err))
}

func TestInvalidateCompany(t *testing.T) {
	ctx := context.Background()
	ec, err := NewEngineCache(nil)
	require.NoError(t, err)

	require.NoError(t, ec.Connections.Set(ctx, uint(3), ConnectionResult{AppCount: 2}))
	require.NoError(t, ec.Permissions.Set(ctx, uint(3), []entra.PermissionStatus{{Permission: "User.Read.All", Granted: true}}))

	perms, err := ec.Permissions.Get(ctx, uint(3))
	require.NoError(t, err)
	require.Len(t, perms, 1)

	ec.InvalidateCompany(ctx, 3)

	_, err = ec.Connections.Get(ctx, uint(3))
	assert.True(t, IsNotFound(err))
	_, err = ec.Permissions.Get(ctx, uint(3))
	assert.True(t, IsNotFound(err))

	stats := ec.GetStats()
	require.Len(t, stats, 1)
	assert.NotEmpty(t, stats[0].CacheName)
}
