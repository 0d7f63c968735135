package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venus_app_echo/internal/testutil"
)

func TestGetOrSet(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	cache := NewRedisCacheFromClient(client)
	ctx := context.Background()

	calls := 0
	load := func() ([]string, error) {
		calls++
		return []string{"monthly", "yearly"}, nil
	}

	got, err := GetOrSet(cache, ctx, "plans", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"monthly", "yearly"}, got)

	got, err = GetOrSet(cache, ctx, "plans", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"monthly", "yearly"}, got)
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists("plans"))

	require.NoError(t, cache.Delete(ctx, "plans"))
	_, err = GetOrSet(cache, ctx, "plans", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	t.Run("loader error is not cached", func(t *testing.T) {
		_, err := GetOrSet(cache, ctx, "broken", time.Minute, func() (int, error) {
			return 0, errors.New("db down")
		})
		assert.Error(t, err)
		assert.False(t, mr.Exists("broken"))
	})

	t.Run("unreachable server falls back to loader", func(t *testing.T) {
		mr.Close()
		got, err := GetOrSet(cache, ctx, "plans", time.Minute, load)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestNilCache(t *testing.T) {
	var cache *RedisCache
	ctx := context.Background()

	got, err := GetOrSet(cache, ctx, "k", time.Minute, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.NoError(t, cache.Delete(ctx, "k"))
}
