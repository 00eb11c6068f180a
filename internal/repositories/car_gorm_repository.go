package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carshop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMCarRepository is a GORM implementation of CarRepository.
type GORMCarRepository struct {
	db *gorm.DB
}

// NewGORMCarRepository creates a new instance of GORMCarRepository.
func NewGORMCarRepository(db *gorm.DB) *GORMCarRepository {
	return &GORMCarRepository{
		db: db,
	}
}

func carFilterScope(f CarFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("is_deleted = ?", false)
		if f.Search != "" {
			like := likePattern(f.Search)
			db = db.Where("(LOWER(brand) LIKE ? OR LOWER(model) LIKE ? OR LOWER(category) LIKE ?)", like, like, like)
		}
		if f.Category != "" {
			db = db.Where("category = ?", f.Category)
		}
		if f.MinPrice != nil {
			db = db.Where("price >= ?", *f.MinPrice)
		}
		if f.MaxPrice != nil {
			db = db.Where("price <= ?", *f.MaxPrice)
		}
		if f.InStock != nil {
			db = db.Where("in_stock = ?", *f.InStock)
		}
		return db
	}
}

// GetAll retrieves one page of live cars matching filter.
func (r *GORMCarRepository) GetAll(ctx context.Context, filter CarFilter) ([]models.Car, PageMeta, error) {
	page := filter.Pagination.normalize()
	scope := carFilterScope(filter)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Car{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, PageMeta{}, fmt.Errorf("failed to count cars: %w", err)
	}

	var cars []models.Car
	err := r.db.WithContext(ctx).Scopes(scope).
		Order(orderByClause(page.Sort, carSortColumns)).
		Offset(page.offset()).Limit(page.Limit).
		Find(&cars).Error
	if err != nil {
		return nil, PageMeta{}, fmt.Errorf("failed to get cars: %w", err)
	}
	return cars, newPageMeta(page, total), nil
}

// GetByID retrieves a single live car by its ID.
func (r *GORMCarRepository) GetByID(ctx context.Context, id string) (*models.Car, error) {
	var car models.Car
	if err := r.db.WithContext(ctx).First(&car, "id = ? AND is_deleted = ?", id, false).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get car by ID %s: %w", id, err)
	}
	return &car, nil
}

// FindDuplicate implements CarRepository.
func (r *GORMCarRepository) FindDuplicate(ctx context.Context, car *models.Car) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Car{}).
		Where("brand = ? AND model = ? AND year = ? AND category = ?", car.Brand, car.Model, car.Year, car.Category).
		Where("is_deleted = ?", false).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up duplicate car: %w", err)
	}
	return n > 0, nil
}

// Create creates a new car in the database.
func (r *GORMCarRepository) Create(ctx context.Context, car *models.Car) error {
	if car.ID == "" {
		car.ID = uuid.New().String()
	}
	car.IsDeleted = false
	car.RecomputeStock()
	if err := r.db.WithContext(ctx).Create(car).Error; err != nil {
		return fmt.Errorf("failed to create car: %w", translateError(err))
	}
	return nil
}

// Update overwrites every mutable column of a live car.
func (r *GORMCarRepository) Update(ctx context.Context, car *models.Car) error {
	car.RecomputeStock()
	res := r.db.WithContext(ctx).Model(car).
		Where("is_deleted = ?", false).
		Select("*").Omit("id", "created_at", "is_deleted").
		Updates(car)
	if res.Error != nil {
		return fmt.Errorf("failed to update car: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Delete soft-deletes a car so that orders keep resolving it.
func (r *GORMCarRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.Car{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{"is_deleted": true, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to delete car: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// CheckAvailability implements CarRepository.
func (r *GORMCarRepository) CheckAvailability(ctx context.Context, id string, qty int) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Car{}).
		Where("id = ? AND is_deleted = ? AND quantity >= ?", id, false, qty).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check availability of car %s: %w", id, err)
	}
	return n > 0, nil
}

// DecrementQuantity guards the subtraction in the UPDATE itself, so two
// transactions racing for the last unit cannot both succeed. in_stock is
// recomputed in the same statement, mirroring Car.RecomputeStock.
func (r *GORMCarRepository) DecrementQuantity(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("invalid decrement %d for car %s", qty, id)
	}
	res := r.db.WithContext(ctx).Model(&models.Car{}).
		Where("id = ? AND quantity >= ?", id, qty).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity - ?", qty),
			"in_stock":   gorm.Expr("quantity - ? > 0", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to decrement car %s: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Car{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to look up car %s: %w", id, err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return ErrInsufficientQuantity
}
