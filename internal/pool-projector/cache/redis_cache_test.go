package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/parimutuel-ledger/internal/shared/testutil"
	"github.com/radieske/parimutuel-ledger/pkg/contracts/events"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	c := NewRedisCache(testutil.SetupRedis(t), time.Minute)
	ctx := context.Background()

	_, ok, err := c.GetCurrent(ctx, "ev1")
	require.NoError(t, err)
	assert.False(t, ok)

	winner := 1
	snap := events.PoolSnapshot{
		EventID:      "ev1",
		Version:      9,
		Entrants:     []string{"A", "B"},
		Status:       "FINISHED",
		WinnerIndex:  &winner,
		TotalPool:    18446744073709551615,
		EntrantPools: []uint64{1, 18446744073709551614},
	}
	applied, err := c.SetCurrent(ctx, snap)
	require.NoError(t, err)
	assert.True(t, applied)

	got, ok, err := c.GetCurrent(ctx, "ev1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.TotalPool, got.TotalPool)
	assert.Equal(t, snap.EntrantPools, got.EntrantPools)
	require.NotNil(t, got.WinnerIndex)
	assert.Equal(t, 1, *got.WinnerIndex)

	ttl, err := c.Client.TTL(ctx, Key("ev1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestSetIfAbsentKeepsProjection(t *testing.T) {
	c := NewRedisCache(testutil.SetupRedis(t), time.Minute)
	ctx := context.Background()

	_, err := c.SetCurrent(ctx, events.PoolSnapshot{EventID: "ev1", Version: 3, TotalPool: 10})
	require.NoError(t, err)
	require.NoError(t, c.SetIfAbsent(ctx, events.PoolSnapshot{EventID: "ev1", Version: 2, TotalPool: 5}))

	got, ok, err := c.GetCurrent(ctx, "ev1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(10), got.TotalPool)
}

func TestSetCurrentIgnoresOlderVersions(t *testing.T) {
	c := NewRedisCache(testutil.SetupRedis(t), 0)
	ctx := context.Background()

	// publicações fora de ordem: a versão 3 chega antes da 2
	applied, err := c.SetCurrent(ctx, events.PoolSnapshot{EventID: "ev1", Version: 3, TotalPool: 30})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = c.SetCurrent(ctx, events.PoolSnapshot{EventID: "ev1", Version: 2, TotalPool: 10})
	require.NoError(t, err)
	assert.False(t, applied)

	// redelivery da mesma versão também é ignorada
	applied, err = c.SetCurrent(ctx, events.PoolSnapshot{EventID: "ev1", Version: 3, TotalPool: 30})
	require.NoError(t, err)
	assert.False(t, applied)

	got, ok, err := c.GetCurrent(ctx, "ev1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(3), got.Version)
	assert.Equal(t, uint64(30), got.TotalPool)

	applied, err = c.SetCurrent(ctx, events.PoolSnapshot{EventID: "ev1", Version: 4, TotalPool: 45})
	require.NoError(t, err)
	assert.True(t, applied)

	// TTL zero: sem expiração
	ttl, err := c.Client.TTL(ctx, Key("ev1")).Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)
}
