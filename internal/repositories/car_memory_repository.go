package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"carshop/internal/models"

	"github.com/google/uuid"
)

// MemoryCarRepository is an in-memory implementation of CarRepository.
type MemoryCarRepository struct {
	view *memoryView
}

func carMatches(c models.Car, f CarFilter) bool {
	if c.IsDeleted {
		return false
	}
	if f.Search != "" {
		s := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(c.Brand), s) &&
			!strings.Contains(strings.ToLower(c.Model), s) &&
			!strings.Contains(strings.ToLower(c.Category), s) {
			return false
		}
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && c.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && c.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.InStock != nil && c.InStock != *f.InStock {
		return false
	}
	return true
}

func sortCars(cars []models.Car, sortKey string) {
	key, _, desc := parseSort(sortKey, carSortColumns)
	less := func(a, b models.Car) bool {
		switch key {
		case "price":
			return a.Price.LessThan(b.Price)
		case "year":
			return a.Year < b.Year
		case "brand":
			return a.Brand < b.Brand
		case "mileage":
			return a.Mileage < b.Mileage
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(cars, func(i, j int) bool {
		if desc {
			return less(cars[j], cars[i])
		}
		return less(cars[i], cars[j])
	})
}

func paginate[T any](items []T, page Pagination) []T {
	start := page.offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// GetAll returns one page of live cars matching filter.
func (r *MemoryCarRepository) GetAll(ctx context.Context, filter CarFilter) ([]models.Car, PageMeta, error) {
	page := filter.Pagination.normalize()
	var cars []models.Car
	_ = r.view.read(func(d *memoryData) error {
		for _, c := range d.cars {
			if carMatches(c, filter) {
				cars = append(cars, c)
			}
		}
		return nil
	})
	sortCars(cars, page.Sort)
	return paginate(cars, page), newPageMeta(page, int64(len(cars))), nil
}

// GetByID returns a live car by its ID.
func (r *MemoryCarRepository) GetByID(ctx context.Context, id string) (*models.Car, error) {
	var car models.Car
	err := r.view.read(func(d *memoryData) error {
		c, ok := d.cars[id]
		if !ok || c.IsDeleted {
			return ErrRecordNotFound
		}
		car = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &car, nil
}

// FindDuplicate implements CarRepository.
func (r *MemoryCarRepository) FindDuplicate(ctx context.Context, car *models.Car) (bool, error) {
	found := false
	_ = r.view.read(func(d *memoryData) error {
		for _, c := range d.cars {
			if !c.IsDeleted && c.Brand == car.Brand && c.Model == car.Model &&
				c.Year == car.Year && c.Category == car.Category {
				found = true
				break
			}
		}
		return nil
	})
	return found, nil
}

// Create adds a new car.
func (r *MemoryCarRepository) Create(ctx context.Context, car *models.Car) error {
	if car.ID == "" {
		car.ID = uuid.New().String()
	}
	now := time.Now()
	if car.CreatedAt.IsZero() {
		car.CreatedAt = now
	}
	car.UpdatedAt = now
	car.IsDeleted = false
	car.RecomputeStock()
	return r.view.write(func(d *memoryData) error {
		if _, ok := d.cars[car.ID]; ok {
			return ErrDuplicateKey
		}
		d.cars[car.ID] = *car
		return nil
	})
}

// Update overwrites a live car.
func (r *MemoryCarRepository) Update(ctx context.Context, car *models.Car) error {
	car.RecomputeStock()
	return r.view.write(func(d *memoryData) error {
		stored, ok := d.cars[car.ID]
		if !ok || stored.IsDeleted {
			return ErrRecordNotFound
		}
		car.CreatedAt = stored.CreatedAt
		car.UpdatedAt = time.Now()
		d.cars[car.ID] = *car
		return nil
	})
}

// Delete soft-deletes a car.
func (r *MemoryCarRepository) Delete(ctx context.Context, id string) error {
	return r.view.write(func(d *memoryData) error {
		c, ok := d.cars[id]
		if !ok || c.IsDeleted {
			return ErrRecordNotFound
		}
		c.IsDeleted = true
		c.UpdatedAt = time.Now()
		d.cars[id] = c
		return nil
	})
}

// CheckAvailability implements CarRepository.
func (r *MemoryCarRepository) CheckAvailability(ctx context.Context, id string, qty int) (bool, error) {
	ok := false
	_ = r.view.read(func(d *memoryData) error {
		c, found := d.cars[id]
		ok = found && c.HasStock(qty)
		return nil
	})
	return ok, nil
}

// DecrementQuantity implements CarRepository.
func (r *MemoryCarRepository) DecrementQuantity(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("invalid decrement %d for car %s", qty, id)
	}
	return r.view.write(func(d *memoryData) error {
		c, ok := d.cars[id]
		if !ok {
			return ErrRecordNotFound
		}
		if c.Quantity < qty {
			return ErrInsufficientQuantity
		}
		c.Quantity -= qty
		c.RecomputeStock()
		c.UpdatedAt = time.Now()
		d.cars[id] = c
		return nil
	})
}
