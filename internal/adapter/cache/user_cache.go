package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "user-rest-service/internal/domain/user"
)

// LeaseTTL bounds how long a reader may take between Reserve and Fill.
// A fill arriving after the lease expired is dropped.
const LeaseTTL = 10 * time.Second

// Lease is the token a reader obtains before loading a user from storage.
// Invalidating the user revokes every outstanding lease for it.
type Lease string

// UserCache stores users by id. Entries are only written through a lease, so
// a value loaded before a concurrent write commits can never land in the
// cache after that write's invalidation.
type UserCache interface {
	// Get returns the cached user. found is false on a miss.
	Get(ctx context.Context, id int64) (u domain.User, found bool, err error)

	// Reserve issues a fill lease for id. Call it before reading storage.
	Reserve(ctx context.Context, id int64) (Lease, error)

	// Fill stores u if lease is still the current lease for u.ID.
	// stored is false when the lease was revoked or superseded.
	Fill(ctx context.Context, u domain.User, lease Lease) (stored bool, err error)

	// Invalidate drops the entries and revokes the leases of ids.
	Invalidate(ctx context.Context, ids ...int64) error
}

// fillIfLeased writes KEYS[1] only while KEYS[2] still holds ARGV[1].
var fillIfLeased = redis.NewScript(`
	if redis.call('GET', KEYS[2]) ~= ARGV[1] then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	redis.call('DEL', KEYS[2])
	return 1
`)

// RedisUserCache keeps JSON encoded users under user:{id} with a fill lease
// under user:{id}:lease.
type RedisUserCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisUserCache returns a cache whose entries expire after ttl.
func NewRedisUserCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisUserCache {
	return &RedisUserCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

var _ UserCache = (*RedisUserCache)(nil)

func entryKey(id int64) string { return fmt.Sprintf("user:%d", id) }

func leaseKey(id int64) string { return fmt.Sprintf("user:%d:lease", id) }

func (c *RedisUserCache) Get(ctx context.Context, id int64) (domain.User, bool, error) {
	data, err := c.client.Get(ctx, entryKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.log.Debug("cache miss", zap.Int64("user_id", id))
		return domain.User{}, false, nil
	case err != nil:
		return domain.User{}, false, fmt.Errorf("get user %d from cache: %w", id, err)
	}

	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		return domain.User{}, false, fmt.Errorf("decode cached user %d: %w", id, err)
	}
	return u, true, nil
}

func (c *RedisUserCache) Reserve(ctx context.Context, id int64) (Lease, error) {
	lease := Lease(uuid.NewString())
	if err := c.client.Set(ctx, leaseKey(id), string(lease), LeaseTTL).Err(); err != nil {
		return "", fmt.Errorf("reserve cache fill for user %d: %w", id, err)
	}
	return lease, nil
}

func (c *RedisUserCache) Fill(ctx context.Context, u domain.User, lease Lease) (bool, error) {
	if u.ID == 0 {
		return false, errors.New("cannot cache unsaved user")
	}

	data, err := json.Marshal(u)
	if err != nil {
		return false, fmt.Errorf("encode user %d: %w", u.ID, err)
	}

	keys := []string{entryKey(u.ID), leaseKey(u.ID)}
	stored, err := fillIfLeased.Run(ctx, c.client, keys, string(lease), data, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("fill cache for user %d: %w", u.ID, err)
	}
	if stored == 0 {
		c.log.Debug("cache fill dropped, lease revoked", zap.Int64("user_id", u.ID))
		return false, nil
	}
	return true, nil
}

func (c *RedisUserCache) Invalidate(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		keys = append(keys, entryKey(id), leaseKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate %d cached users: %w", len(ids), err)
	}
	return nil
}
