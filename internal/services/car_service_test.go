package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"carshop/internal/models"
	"carshop/internal/repositories"
	"carshop/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockCarRepository is a mock implementation of repositories.CarRepository
type MockCarRepository struct {
	mock.Mock
}

func (m *MockCarRepository) GetAll(ctx context.Context, filter repositories.CarFilter) ([]models.Car, repositories.PageMeta, error) {
	args := m.Called(filter)
	return args.Get(0).([]models.Car), args.Get(1).(repositories.PageMeta), args.Error(2)
}

func (m *MockCarRepository) GetByID(ctx context.Context, id string) (*models.Car, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Car), args.Error(1)
}

func (m *MockCarRepository) FindDuplicate(ctx context.Context, car *models.Car) (bool, error) {
	args := m.Called(car)
	return args.Bool(0), args.Error(1)
}

func (m *MockCarRepository) Create(ctx context.Context, car *models.Car) error {
	args := m.Called(car)
	return args.Error(0)
}

func (m *MockCarRepository) Update(ctx context.Context, car *models.Car) error {
	args := m.Called(car)
	return args.Error(0)
}

func (m *MockCarRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockCarRepository) CheckAvailability(ctx context.Context, id string, qty int) (bool, error) {
	args := m.Called(id, qty)
	return args.Bool(0), args.Error(1)
}

func (m *MockCarRepository) DecrementQuantity(ctx context.Context, id string, qty int) error {
	args := m.Called(id, qty)
	return args.Error(0)
}

func sampleCar(id string) *models.Car {
	return &models.Car{
		ID:          id,
		Brand:       "Toyota",
		Model:       "Corolla",
		Year:        2022,
		Price:       decimal.NewFromInt(22000),
		Category:    models.CategorySedan,
		Description: "Reliable compact sedan",
		Quantity:    4,
	}
}

func TestCarService_GetAllCars(t *testing.T) {
	mockRepo := new(MockCarRepository)
	service := services.NewCarService(mockRepo, nil)

	expected := []models.Car{*sampleCar("1"), *sampleCar("2")}
	filter := repositories.CarFilter{Category: models.CategorySedan}
	meta := repositories.PageMeta{Page: 1, Limit: 10, Total: 2, TotalPage: 1}

	mockRepo.On("GetAll", filter).Return(expected, meta, nil).Once()

	cars, gotMeta, err := service.GetAllCars(context.Background(), filter)
	assert.NoError(t, err)
	assert.Len(t, cars, 2)
	assert.Equal(t, meta, gotMeta)
	mockRepo.AssertExpectations(t)
}

func TestCarService_GetCarByID(t *testing.T) {
	mockRepo := new(MockCarRepository)
	service := services.NewCarService(mockRepo, nil)
	ctx := context.Background()

	expected := sampleCar("1")
	mockRepo.On("GetByID", "1").Return(expected, nil).Once()
	car, err := service.GetCarByID(ctx, "1")
	assert.NoError(t, err)
	assert.Equal(t, expected, car)
	mockRepo.AssertExpectations(t)

	// Car not found
	mockRepo.On("GetByID", "99").Return(nil, repositories.ErrRecordNotFound).Once()
	car, err = service.GetCarByID(ctx, "99")
	assert.Nil(t, car)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Contains(t, err.Error(), "not found")
	mockRepo.AssertExpectations(t)

	// Store failure is hidden behind an internal error
	mockRepo.On("GetByID", "boom").Return(nil, fmt.Errorf("connection reset")).Once()
	_, err = service.GetCarByID(ctx, "boom")
	assert.Equal(t, models.KindInternal, models.KindOf(err))
	assert.NotContains(t, err.Error(), "connection reset")
	mockRepo.AssertExpectations(t)
}

func TestCarService_CreateCar(t *testing.T) {
	mockRepo := new(MockCarRepository)
	service := services.NewCarService(mockRepo, nil)
	ctx := context.Background()

	newCar := sampleCar("")
	mockRepo.On("FindDuplicate", newCar).Return(false, nil).Once()
	mockRepo.On("Create", newCar).Return(nil).Once()
	assert.NoError(t, service.CreateCar(ctx, newCar))
	mockRepo.AssertExpectations(t)

	// Same brand, model, year and category is rejected
	mockRepo.On("FindDuplicate", newCar).Return(true, nil).Once()
	err := service.CreateCar(ctx, newCar)
	assert.True(t, errors.Is(err, models.ErrInvalidRequest))
	assert.Contains(t, err.Error(), "already exists")
	mockRepo.AssertExpectations(t)

	// Non-positive price never reaches the store
	free := sampleCar("")
	free.Price = decimal.Zero
	err = service.CreateCar(ctx, free)
	assert.True(t, errors.Is(err, models.ErrInvalidRequest))
	mockRepo.AssertExpectations(t)
}

func TestCarService_UpdateCar(t *testing.T) {
	mockRepo := new(MockCarRepository)
	service := services.NewCarService(mockRepo, nil)
	ctx := context.Background()

	updated := sampleCar("1")
	mockRepo.On("Update", updated).Return(nil).Once()
	assert.NoError(t, service.UpdateCar(ctx, updated))
	mockRepo.AssertExpectations(t)

	missing := sampleCar("99")
	mockRepo.On("Update", missing).Return(repositories.ErrRecordNotFound).Once()
	err := service.UpdateCar(ctx, missing)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	mockRepo.AssertExpectations(t)
}

func TestCarService_DeleteCar(t *testing.T) {
	mockRepo := new(MockCarRepository)
	service := services.NewCarService(mockRepo, nil)
	ctx := context.Background()

	mockRepo.On("Delete", "1").Return(nil).Once()
	assert.NoError(t, service.DeleteCar(ctx, "1"))
	mockRepo.AssertExpectations(t)

	mockRepo.On("Delete", "99").Return(repositories.ErrRecordNotFound).Once()
	err := service.DeleteCar(ctx, "99")
	assert.True(t, errors.Is(err, models.ErrNotFound))
	mockRepo.AssertExpectations(t)
}
