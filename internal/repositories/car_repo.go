package repositories

import (
	"context"

	"carshop/internal/models"
)

// CarRepository defines the interface for inventory data access. Reads never
// return soft-deleted cars.
type CarRepository interface {
	GetAll(ctx context.Context, filter CarFilter) ([]models.Car, PageMeta, error)
	GetByID(ctx context.Context, id string) (*models.Car, error)
	// FindDuplicate reports whether a live car with the same brand, model,
	// year and category exists.
	FindDuplicate(ctx context.Context, car *models.Car) (bool, error)
	Create(ctx context.Context, car *models.Car) error
	Update(ctx context.Context, car *models.Car) error
	Delete(ctx context.Context, id string) error
	// CheckAvailability reports whether qty units of a live car are on hand.
	CheckAvailability(ctx context.Context, id string, qty int) (bool, error)
	// DecrementQuantity takes qty units off the car. It fails with
	// ErrInsufficientQuantity rather than letting quantity go negative.
	DecrementQuantity(ctx context.Context, id string, qty int) error
}
