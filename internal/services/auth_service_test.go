package services_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"carshop/internal/models"
	"carshop/internal/repositories"
	"carshop/internal/services"

	"github.com/dgrijalva/jwt-go"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetAll(ctx context.Context, query repositories.UserQuery) ([]models.User, repositories.PageMeta, error) {
	args := m.Called(query)
	if args.Get(0) == nil {
		return nil, repositories.PageMeta{}, args.Error(2)
	}
	return args.Get(0).([]models.User), args.Get(1).(repositories.PageMeta), args.Error(2)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

// TestMain is used to setup test environment
func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func TestAuthService_RegisterUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, "test_jwt_secret", time.Hour, nil)
	ctx := context.Background()

	user := &models.User{
		Name:     "Test User",
		Email:    "Test@Example.com",
		Password: "password123",
	}

	mockRepo.On("GetByEmail", "test@example.com").Return(nil, repositories.ErrRecordNotFound).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()

	err := authService.RegisterUser(ctx, user)
	assert.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, "test@example.com", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))
	mockRepo.AssertExpectations(t)

	// Email already registered
	mockRepo.On("GetByEmail", "test@example.com").Return(&models.User{ID: "1"}, nil).Once()
	err = authService.RegisterUser(ctx, &models.User{Name: "Other", Email: "test@example.com", Password: "password123"})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidRequest))
	assert.Contains(t, err.Error(), "email 'test@example.com' already registered")
	mockRepo.AssertExpectations(t)

	// Lost race on the unique index
	mockRepo.On("GetByEmail", "race@example.com").Return(nil, repositories.ErrRecordNotFound).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(repositories.ErrDuplicateKey).Once()
	err = authService.RegisterUser(ctx, &models.User{Name: "Race", Email: "race@example.com", Password: "password123"})
	assert.True(t, errors.Is(err, models.ErrInvalidRequest))
	mockRepo.AssertExpectations(t)
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, "test_jwt_secret", time.Hour, nil)
	ctx := context.Background()

	mockRepo.On("GetByEmail", "admin@carshop.com").Return(nil, repositories.ErrRecordNotFound).Twice()
	mockRepo.On("Create", mock.MatchedBy(func(u *models.User) bool {
		return u.Role == models.RoleAdmin
	})).Return(nil).Once()
	assert.NoError(t, authService.EnsureAdmin(ctx, "Admin", "admin@carshop.com", "admin123"))
	mockRepo.AssertExpectations(t)

	// Existing account is left alone
	mockRepo.On("GetByEmail", "admin@carshop.com").Return(&models.User{ID: "1", Role: models.RoleAdmin}, nil).Once()
	assert.NoError(t, authService.EnsureAdmin(ctx, "Admin", "admin@carshop.com", "admin123"))
	mockRepo.AssertExpectations(t)

	// Nothing configured
	assert.NoError(t, authService.EnsureAdmin(ctx, "Admin", "", ""))
}

func TestAuthService_LoginUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	testJWTSecret := "test_jwt_secret"
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour, nil)
	ctx := context.Background()

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{
		ID:       "user-123",
		Name:     "Test User",
		Email:    "test@example.com",
		Password: string(hashedPassword),
		Role:     models.RoleAdmin,
	}

	mockRepo.On("GetByEmail", user.Email).Return(user, nil).Once()
	token, err := authService.LoginUser(ctx, user.Email, "password123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	assert.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, user.ID, claims["user_id"])
	assert.Equal(t, user.Email, claims["email"])
	assert.Equal(t, models.RoleAdmin, claims["role"])
	mockRepo.AssertExpectations(t)

	// Wrong password
	mockRepo.On("GetByEmail", user.Email).Return(user, nil).Once()
	_, err = authService.LoginUser(ctx, user.Email, "wrongpassword")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)

	// Unknown user
	mockRepo.On("GetByEmail", "nobody@example.com").Return(nil, repositories.ErrRecordNotFound).Once()
	_, err = authService.LoginUser(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)

	// Blocked user
	blocked := *user
	blocked.IsBlocked = true
	mockRepo.On("GetByEmail", user.Email).Return(&blocked, nil).Once()
	_, err = authService.LoginUser(ctx, user.Email, "password123")
	assert.ErrorIs(t, err, services.ErrUserBlocked)
	mockRepo.AssertExpectations(t)

	// Store failure is not reported as bad credentials
	storeErr := errors.New("connection refused")
	mockRepo.On("GetByEmail", "down@example.com").Return(nil, storeErr).Once()
	_, err = authService.LoginUser(ctx, "down@example.com", "password123")
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ChangePassword(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, "test_jwt_secret", time.Hour, nil)
	ctx := context.Background()

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("oldpass1"), bcrypt.DefaultCost)
	user := &models.User{ID: "user-123", Email: "test@example.com", Password: string(hashedPassword)}

	mockRepo.On("GetByID", "user-123").Return(user, nil).Once()
	mockRepo.On("Update", mock.MatchedBy(func(u *models.User) bool {
		return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("newpass1")) == nil
	})).Return(nil).Once()
	assert.NoError(t, authService.ChangePassword(ctx, "user-123", "oldpass1", "newpass1"))
	mockRepo.AssertExpectations(t)

	// Wrong old password
	user.Password = string(hashedPassword)
	mockRepo.On("GetByID", "user-123").Return(user, nil).Once()
	err := authService.ChangePassword(ctx, "user-123", "wrong", "newpass1")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)

	// Unknown user
	mockRepo.On("GetByID", "missing").Return(nil, repositories.ErrRecordNotFound).Once()
	err = authService.ChangePassword(ctx, "missing", "oldpass1", "newpass1")
	assert.True(t, errors.Is(err, models.ErrNotFound))
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	testJWTSecret := "test_jwt_secret"
	authService := services.NewAuthService(new(MockUserRepository), testJWTSecret, time.Hour, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-123",
		"role":    models.RoleUser,
		"exp":     jwt.TimeFunc().Add(time.Hour).Unix(),
	})
	validTokenString, _ := token.SignedString([]byte(testJWTSecret))

	claims, err := authService.ValidateToken(validTokenString)
	assert.NoError(t, err)
	assert.Equal(t, "user-123", claims["user_id"])
	assert.Equal(t, models.RoleUser, claims["role"])

	_, err = authService.ValidateToken("invalid.token.string")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")

	otherSecret, _ := token.SignedString([]byte("other_secret"))
	_, err = authService.ValidateToken(otherSecret)
	assert.Error(t, err)

	expiredToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-123",
		"exp":     jwt.TimeFunc().Add(-time.Hour).Unix(),
	})
	expiredTokenString, _ := expiredToken.SignedString([]byte(testJWTSecret))
	_, err = authService.ValidateToken(expiredTokenString)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}
