package cached

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"user-rest-service/internal/adapter/cache"
	domain "user-rest-service/internal/domain/user"
	"user-rest-service/internal/usecase/user"
)

// CachedUserRepository implements user.Repository with caching support.
// It wraps a persistent repository (DB) and a cache implementation.
// Only GetByID is served from cache; writes invalidate the touched ids.
type CachedUserRepository struct {
	dbRepo user.Repository
	cache  cache.UserCache
	log    *zap.Logger
	group  singleflight.Group
}

// NewCachedUserRepository creates a new instance of CachedUserRepository.
func NewCachedUserRepository(dbRepo user.Repository, cache cache.UserCache, log *zap.Logger) *CachedUserRepository {
	return &CachedUserRepository{
		dbRepo: dbRepo,
		cache:  cache,
		log:    log,
	}
}

var _ user.Repository = (*CachedUserRepository)(nil)

type lookup struct {
	user  domain.User
	found bool
}

// Insert delegates to the DB repository. A fresh id has nothing cached.
func (r *CachedUserRepository) Insert(ctx context.Context, u *domain.User) error {
	return r.dbRepo.Insert(ctx, u)
}

// List delegates to the DB repository.
func (r *CachedUserRepository) List(ctx context.Context) ([]domain.User, error) {
	return r.dbRepo.List(ctx)
}

// GetByID retrieves a user by ID using Cache-Aside pattern.
// Absent users are not cached. The fill lease is taken before the database
// read, so a write that commits and invalidates in between makes the fill a
// no-op instead of caching the value read before it.
func (r *CachedUserRepository) GetByID(ctx context.Context, id int64) (domain.User, bool, error) {
	cachedUser, found, err := r.cache.Get(ctx, id)
	if err != nil {
		r.log.Warn("cache get error, falling back to database", zap.Int64("id", id), zap.Error(err))
	} else if found {
		r.log.Debug("user retrieved from cache", zap.Int64("id", id))
		return cachedUser, true, nil
	}

	// Cache miss - use single-flight to prevent stampede
	result, err, _ := r.group.Do(flightKey(id), func() (any, error) {
		lease, leaseErr := r.cache.Reserve(ctx, id)
		if leaseErr != nil {
			r.log.Warn("cache reserve error, reading without fill", zap.Int64("id", id), zap.Error(leaseErr))
		}

		u, found, err := r.dbRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if found && leaseErr == nil {
			if _, err := r.cache.Fill(ctx, u, lease); err != nil {
				r.log.Warn("failed to cache user", zap.Int64("id", id), zap.Error(err))
			}
		}

		return lookup{user: u, found: found}, nil
	})
	if err != nil {
		return domain.User{}, false, err
	}

	l := result.(lookup)
	return l.user, l.found, nil
}

// Update updates the user in DB and invalidates the cache.
func (r *CachedUserRepository) Update(ctx context.Context, u *domain.User) error {
	if err := r.dbRepo.Update(ctx, u); err != nil {
		return err
	}
	r.invalidate(ctx, u.ID)
	return nil
}

// DeleteByID deletes the user from DB and invalidates the cache.
func (r *CachedUserRepository) DeleteByID(ctx context.Context, id int64) error {
	if err := r.dbRepo.DeleteByID(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// InTx runs fn in a DB transaction. Reads inside the transaction bypass the
// cache. Ids written in it are invalidated once the transaction ends, which
// also revokes the fill lease of any reader that loaded the previous row.
func (r *CachedUserRepository) InTx(ctx context.Context, fn func(tx user.Repository) error) error {
	tracker := &txTracker{}

	err := r.dbRepo.InTx(ctx, func(tx user.Repository) error {
		tracker.Repository = tx
		return fn(tracker)
	})

	r.invalidate(ctx, tracker.ids()...)
	return err
}

// invalidate drops cached entries and detaches in-flight loads of ids, so a
// read that starts after the write returns does not join a load that began
// before it.
func (r *CachedUserRepository) invalidate(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		r.group.Forget(flightKey(id))
	}
	if err := r.cache.Invalidate(ctx, ids...); err != nil {
		r.log.Warn("failed to invalidate cache", zap.Int64s("ids", ids), zap.Error(err))
	}
}

func flightKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// txTracker records the ids written through a transaction-bound repository.
type txTracker struct {
	user.Repository

	mu    sync.Mutex
	dirty []int64
}

func (t *txTracker) Update(ctx context.Context, u *domain.User) error {
	t.mark(u.ID)
	return t.Repository.Update(ctx, u)
}

func (t *txTracker) DeleteByID(ctx context.Context, id int64) error {
	t.mark(id)
	return t.Repository.DeleteByID(ctx, id)
}

func (t *txTracker) InTx(ctx context.Context, fn func(tx user.Repository) error) error {
	return fn(t)
}

func (t *txTracker) mark(id int64) {
	t.mu.Lock()
	t.dirty = append(t.dirty, id)
	t.mu.Unlock()
}

func (t *txTracker) ids() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirty
}
