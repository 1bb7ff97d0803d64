package user

import (
	"context"

	"go.uber.org/zap"

	domain "user-rest-service/internal/domain/user"
	"user-rest-service/pkg/logger"
)

// Repository defines the interface for user data access operations.
// It abstracts the data layer, allowing different implementations
// (e.g., PostgreSQL, SQLite, a caching decorator) to be used interchangeably.
type Repository interface {
	Insert(ctx context.Context, u *domain.User) error                 // Insert a new user and assign its ID
	List(ctx context.Context) ([]domain.User, error)                  // List all users
	GetByID(ctx context.Context, id int64) (domain.User, bool, error) // Retrieve user by ID, found=false when absent
	Update(ctx context.Context, u *domain.User) error                 // Overwrite name and email of an existing user
	DeleteByID(ctx context.Context, id int64) error                   // Delete user by ID, no-op when absent
	InTx(ctx context.Context, fn func(tx Repository) error) error     // Run fn inside a single transaction
}

// Usecase implements the user operations on top of a Repository.
// Mutating operations each run in their own transaction.
type Usecase struct {
	repo Repository  // Repository for data access
	log  *zap.Logger // Logger for structured logging
}

// New creates a new instance of Usecase with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Usecase {
	return &Usecase{repo: r, log: log}
}

// Create persists u. On success u.ID holds the generated identifier.
func (uc *Usecase) Create(ctx context.Context, u *domain.User) error {
	log := logger.WithContext(ctx, uc.log)
	log.Info("creating user", zap.String("name", u.Name), zap.String("email", u.Email))

	err := uc.repo.InTx(ctx, func(tx Repository) error {
		return tx.Insert(ctx, u)
	})
	if err != nil {
		log.Error("failed to create user", zap.Error(err))
		return err
	}
	return nil
}

// ListAll returns every stored user.
func (uc *Usecase) ListAll(ctx context.Context) ([]domain.User, error) {
	users, err := uc.repo.List(ctx)
	if err != nil {
		logger.WithContext(ctx, uc.log).Error("failed to list users", zap.Error(err))
		return nil, err
	}
	return users, nil
}

// FindByID returns the user with the given id. An unknown id is reported
// through found=false, never as an error.
func (uc *Usecase) FindByID(ctx context.Context, id int64) (domain.User, bool, error) {
	u, found, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		logger.WithContext(ctx, uc.log).Error("failed to get user", zap.Int64("id", id), zap.Error(err))
		return domain.User{}, false, err
	}
	return u, found, nil
}

// Update overwrites name and email of the user with the given id.
// When no such user exists nothing happens and nil is returned.
func (uc *Usecase) Update(ctx context.Context, id int64, data domain.User) error {
	log := logger.WithContext(ctx, uc.log)
	log.Info("updating user", zap.Int64("id", id), zap.String("name", data.Name), zap.String("email", data.Email))

	err := uc.repo.InTx(ctx, func(tx Repository) error {
		u, found, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			log.Debug("update skipped, user not found", zap.Int64("id", id))
			return nil
		}
		u.Name = data.Name
		u.Email = data.Email
		return tx.Update(ctx, &u)
	})
	if err != nil {
		log.Error("failed to update user", zap.Int64("id", id), zap.Error(err))
		return err
	}
	return nil
}

// Delete removes the user with the given id if it exists.
func (uc *Usecase) Delete(ctx context.Context, id int64) error {
	log := logger.WithContext(ctx, uc.log)
	log.Info("deleting user", zap.Int64("id", id))

	err := uc.repo.InTx(ctx, func(tx Repository) error {
		return tx.DeleteByID(ctx, id)
	})
	if err != nil {
		log.Error("failed to delete user", zap.Int64("id", id), zap.Error(err))
		return err
	}
	return nil
}
