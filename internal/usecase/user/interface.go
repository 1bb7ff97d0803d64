package user

import (
	"context"

	domain "user-rest-service/internal/domain/user"
)

// UserUsecase defines the interface for user operations exposed to transports.
type UserUsecase interface {
	Create(ctx context.Context, u *domain.User) error
	ListAll(ctx context.Context) ([]domain.User, error)
	FindByID(ctx context.Context, id int64) (domain.User, bool, error)
	Update(ctx context.Context, id int64, data domain.User) error
	Delete(ctx context.Context, id int64) error
}
