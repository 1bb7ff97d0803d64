package orm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	domain "user-rest-service/internal/domain/user"
	"user-rest-service/internal/usecase/user"
	"user-rest-service/pkg/logger"
)

// UserRepo implements user.Repository on top of GORM.
// The same type serves PostgreSQL and SQLite; the dialect is chosen when the
// *gorm.DB is opened.
type UserRepo struct {
	db   *gorm.DB    // GORM handle, bound to a transaction when inTx is set
	log  *zap.Logger // Structured logger for database operations
	inTx bool
}

// NewUserRepo creates a new instance of UserRepo.
func NewUserRepo(db *gorm.DB, log *zap.Logger) *UserRepo {
	return &UserRepo{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
// Name and email carry no constraints.
type UserSchema struct {
	ID    int64  `gorm:"primaryKey;autoIncrement"` // Unique identifier with auto-increment
	Name  string // User's name
	Email string // User's email
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

// AutoMigrate creates or aligns the users table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&UserSchema{}); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}

// InTx runs fn inside a database transaction. The transaction commits when fn
// returns nil and rolls back when fn returns an error or panics.
// Calling InTx on a repository that is already bound to a transaction reuses it.
func (r *UserRepo) InTx(ctx context.Context, fn func(tx user.Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	log := logger.WithContext(ctx, r.log)

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		log.Error("failed to begin transaction", zap.Error(tx.Error))
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&UserRepo{db: tx, log: r.log, inTx: true}); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			log.Error("failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Insert inserts u and stores the generated ID back into u.
func (r *UserRepo) Insert(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("user cannot be nil")
	}

	model := UserSchema{
		Name:  u.Name,
		Email: u.Email,
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		logger.WithContext(ctx, r.log).Error("failed to create user in db", zap.Error(err), zap.String("email", u.Email))
		return fmt.Errorf("failed to create user: %w", err)
	}

	u.ID = model.ID
	logger.WithContext(ctx, r.log).Info("user created in db", zap.Int64("id", model.ID))
	return nil
}

// Update overwrites name and email of the row identified by u.ID.
// Empty strings are written as well. A missing row is left alone.
func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("user cannot be nil")
	}

	result := r.db.WithContext(ctx).
		Model(&UserSchema{}).
		Where("id = ?", u.ID).
		Select("name", "email").
		Updates(UserSchema{Name: u.Name, Email: u.Email})
	if result.Error != nil {
		logger.WithContext(ctx, r.log).Error("failed to update user in db", zap.Error(result.Error), zap.Int64("id", u.ID))
		return fmt.Errorf("failed to update user: %w", result.Error)
	}

	logger.WithContext(ctx, r.log).Info("user updated in db", zap.Int64("id", u.ID), zap.Int64("rows", result.RowsAffected))
	return nil
}

// DeleteByID removes the row with the given id. Deleting an unknown id is not an error.
func (r *UserRepo) DeleteByID(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&UserSchema{})
	if result.Error != nil {
		logger.WithContext(ctx, r.log).Error("failed to delete user in db", zap.Error(result.Error), zap.Int64("id", id))
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}

	logger.WithContext(ctx, r.log).Info("user deleted in db", zap.Int64("id", id), zap.Int64("rows", result.RowsAffected))
	return nil
}

// GetByID retrieves a user by its ID. found is false when no row matches.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (domain.User, bool, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithContext(ctx, r.log).Debug("user not found", zap.Int64("id", id))
			return domain.User{}, false, nil
		}
		logger.WithContext(ctx, r.log).Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return domain.User{}, false, fmt.Errorf("failed to get user: %w", err)
	}

	return toDomain(model), true, nil
}

// List retrieves all users ordered by ID.
func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	var models []UserSchema
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		logger.WithContext(ctx, r.log).Error("failed to list users from db", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]domain.User, len(models))
	for i, model := range models {
		users[i] = toDomain(model)
	}

	return users, nil
}

func toDomain(m UserSchema) domain.User {
	return domain.User{
		ID:    m.ID,
		Name:  m.Name,
		Email: m.Email,
	}
}

// Ping checks that the underlying database answers.
func (r *UserRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
