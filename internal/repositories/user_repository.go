package repositories

import (
	"context"

	"carshop/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetAll(ctx context.Context, query UserQuery) ([]models.User, PageMeta, error)
	// Update overwrites the mutable fields of user. The email is fixed at
	// registration.
	Update(ctx context.Context, user *models.User) error
}
