package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "user-rest-service/internal/domain/user"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*RedisUserCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewRedisUserCache(client, ttl, zaptest.NewLogger(t)), mr
}

// fill reserves and fills in one step, as an uncontended reader would.
func fill(t *testing.T, c *RedisUserCache, u domain.User) {
	t.Helper()
	ctx := context.Background()
	lease, err := c.Reserve(ctx, u.ID)
	require.NoError(t, err)
	stored, err := c.Fill(ctx, u, lease)
	require.NoError(t, err)
	require.True(t, stored)
}

func TestRedisUserCache_FillThenGet(t *testing.T) {
	c, mr := setupTestCache(t, 5*time.Minute)
	u := domain.User{ID: 1, Name: "John Doe", Email: "john@example.com"}

	fill(t, c, u)

	raw, err := mr.Get("user:1")
	require.NoError(t, err)
	var stored domain.User
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, u, stored)
	assert.False(t, mr.Exists("user:1:lease"), "lease is consumed by the fill")

	got, found, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, u, got)
}

func TestRedisUserCache_Fill_UnsavedUser(t *testing.T) {
	c, _ := setupTestCache(t, 5*time.Minute)

	_, err := c.Fill(context.Background(), domain.New("John Doe", "john@example.com"), "lease")
	assert.ErrorContains(t, err, "cannot cache unsaved user")
}

func TestRedisUserCache_Fill_WithoutLease(t *testing.T) {
	c, mr := setupTestCache(t, 5*time.Minute)

	stored, err := c.Fill(context.Background(), domain.User{ID: 1, Name: "A"}, "never-issued")
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists("user:1"))
}

func TestRedisUserCache_Fill_AfterInvalidate(t *testing.T) {
	c, mr := setupTestCache(t, 5*time.Minute)
	ctx := context.Background()

	lease, err := c.Reserve(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, 1))

	stored, err := c.Fill(ctx, domain.User{ID: 1, Name: "old"}, lease)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists("user:1"))
}

func TestRedisUserCache_Fill_SupersededLease(t *testing.T) {
	c, _ := setupTestCache(t, 5*time.Minute)
	ctx := context.Background()

	first, err := c.Reserve(ctx, 1)
	require.NoError(t, err)
	second, err := c.Reserve(ctx, 1)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	stored, err := c.Fill(ctx, domain.User{ID: 1, Name: "first"}, first)
	require.NoError(t, err)
	assert.False(t, stored)

	stored, err = c.Fill(ctx, domain.User{ID: 1, Name: "second"}, second)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestRedisUserCache_Fill_ExpiredLease(t *testing.T) {
	c, mr := setupTestCache(t, 5*time.Minute)
	ctx := context.Background()

	lease, err := c.Reserve(ctx, 1)
	require.NoError(t, err)
	mr.FastForward(LeaseTTL + time.Second)

	stored, err := c.Fill(ctx, domain.User{ID: 1, Name: "slow"}, lease)
	require.NoError(t, err)
	assert.False(t, stored)
}

func TestRedisUserCache_Get_CacheMiss(t *testing.T) {
	c, _ := setupTestCache(t, 5*time.Minute)

	_, found, err := c.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisUserCache_Get_CorruptEntry(t *testing.T) {
	c, mr := setupTestCache(t, 5*time.Minute)

	require.NoError(t, mr.Set("user:7", "not-json"))

	_, found, err := c.Get(context.Background(), 7)
	assert.ErrorContains(t, err, "decode cached user 7")
	assert.False(t, found)
}

func TestRedisUserCache_RedisDown(t *testing.T) {
	c, mr := setupTestCache(t, 5*time.Minute)
	mr.Close()
	ctx := context.Background()

	_, found, err := c.Get(ctx, 1)
	assert.Error(t, err)
	assert.False(t, found)

	_, err = c.Reserve(ctx, 1)
	assert.Error(t, err)

	assert.Error(t, c.Invalidate(ctx, 1))
}

func TestRedisUserCache_Invalidate(t *testing.T) {
	c, mr := setupTestCache(t, 5*time.Minute)
	ctx := context.Background()

	users := []domain.User{
		{ID: 1, Name: "User 1", Email: "user1@example.com"},
		{ID: 2, Name: "User 2", Email: "user2@example.com"},
		{ID: 3, Name: "User 3", Email: "user3@example.com"},
	}
	for _, u := range users {
		fill(t, c, u)
	}
	_, err := c.Reserve(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, 1, 2, 3))

	for _, u := range users {
		_, found, err := c.Get(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, found)
	}
	assert.False(t, mr.Exists("user:2:lease"))
}

func TestRedisUserCache_Invalidate_NoIDs(t *testing.T) {
	c, _ := setupTestCache(t, 5*time.Minute)

	require.NoError(t, c.Invalidate(context.Background()))
}

func TestRedisUserCache_TTL(t *testing.T) {
	c, mr := setupTestCache(t, 2*time.Second)

	fill(t, c, domain.User{ID: 1, Name: "John Doe", Email: "john@example.com"})
	mr.FastForward(3 * time.Second)

	_, found, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, found)
}
