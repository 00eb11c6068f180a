package services

import (
	"context"
	"errors"
	"strings"

	"carshop/internal/models"
	"carshop/internal/repositories"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// CarService handles business logic related to the car catalog.
type CarService struct {
	repo   repositories.CarRepository
	logger *log.Entry
}

// NewCarService creates a new CarService.
func NewCarService(repo repositories.CarRepository, logger *log.Entry) *CarService {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &CarService{
		repo:   repo,
		logger: logger.WithField("component", "car-service"),
	}
}

func (s *CarService) translate(err error, id string) error {
	if errors.Is(err, repositories.ErrRecordNotFound) {
		return models.NewError(models.KindNotFound, "Car %s not found", id)
	}
	s.logger.WithField("car_id", id).WithError(err).Error("Car store failure")
	return models.WrapError(models.KindInternal, err, "car store failure")
}

func validateCar(car *models.Car) error {
	if !car.Price.GreaterThan(decimal.Zero) {
		return models.NewError(models.KindInvalidRequest, "price must be greater than zero")
	}
	if car.Quantity < 0 {
		return models.NewError(models.KindInvalidRequest, "quantity must not be negative")
	}
	car.Brand = strings.TrimSpace(car.Brand)
	car.Model = strings.TrimSpace(car.Model)
	return nil
}

// GetAllCars retrieves one page of the catalog.
func (s *CarService) GetAllCars(ctx context.Context, filter repositories.CarFilter) ([]models.Car, repositories.PageMeta, error) {
	cars, meta, err := s.repo.GetAll(ctx, filter)
	if err != nil {
		return nil, repositories.PageMeta{}, s.translate(err, "")
	}
	return cars, meta, nil
}

// GetCarByID retrieves a single car by its ID.
func (s *CarService) GetCarByID(ctx context.Context, id string) (*models.Car, error) {
	car, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id)
	}
	return car, nil
}

// CreateCar adds a car to the catalog. The same brand, model, year and
// category may only be listed once.
func (s *CarService) CreateCar(ctx context.Context, car *models.Car) error {
	if err := validateCar(car); err != nil {
		return err
	}
	dup, err := s.repo.FindDuplicate(ctx, car)
	if err != nil {
		return s.translate(err, car.ID)
	}
	if dup {
		return models.NewError(models.KindInvalidRequest, "%s %s %d (%s) already exists", car.Brand, car.Model, car.Year, car.Category)
	}
	if err := s.repo.Create(ctx, car); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return models.NewError(models.KindInvalidRequest, "car %s already exists", car.ID)
		}
		return s.translate(err, car.ID)
	}
	return nil
}

// UpdateCar replaces the catalog entry of car.ID.
func (s *CarService) UpdateCar(ctx context.Context, car *models.Car) error {
	if err := validateCar(car); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, car); err != nil {
		return s.translate(err, car.ID)
	}
	return nil
}

// DeleteCar removes a car from the catalog. Orders keep their snapshot.
func (s *CarService) DeleteCar(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.translate(err, id)
	}
	return nil
}
