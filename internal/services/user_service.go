package services

import (
	"context"
	"errors"

	"carshop/internal/models"
	"carshop/internal/repositories"

	log "github.com/sirupsen/logrus"
)

// UpdateUserRequest changes a user's status or role. Nil fields are kept.
type UpdateUserRequest struct {
	IsBlocked *bool   `json:"isBlocked"`
	Role      *string `json:"role" validate:"omitempty,oneof=user admin"`
}

// UserService handles account administration.
type UserService struct {
	repo   repositories.UserRepository
	logger *log.Entry
}

// NewUserService creates a new UserService.
func NewUserService(repo repositories.UserRepository, logger *log.Entry) *UserService {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &UserService{
		repo:   repo,
		logger: logger.WithField("component", "user-service"),
	}
}

func (s *UserService) translate(err error, id string) error {
	if errors.Is(err, repositories.ErrRecordNotFound) {
		return models.NewError(models.KindNotFound, "User %s not found", id)
	}
	s.logger.WithField("user_id", id).WithError(err).Error("User store failure")
	return models.WrapError(models.KindInternal, err, "user store failure")
}

func withoutPassword(users []models.User) []models.User {
	for i := range users {
		users[i].Password = ""
	}
	return users
}

// ListUsers returns one page of accounts.
func (s *UserService) ListUsers(ctx context.Context, query repositories.UserQuery) ([]models.User, repositories.PageMeta, error) {
	users, meta, err := s.repo.GetAll(ctx, query)
	if err != nil {
		return nil, repositories.PageMeta{}, s.translate(err, "")
	}
	return withoutPassword(users), meta, nil
}

// GetUser returns a single account.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id)
	}
	user.Password = ""
	return user, nil
}

// UpdateUser applies req to the account id on behalf of actorID. Admins
// cannot block or demote themselves.
func (s *UserService) UpdateUser(ctx context.Context, actorID, id string, req UpdateUserRequest) (*models.User, error) {
	if req.Role != nil && *req.Role != models.RoleUser && *req.Role != models.RoleAdmin {
		return nil, models.NewError(models.KindInvalidRequest, "role must be %s or %s", models.RoleUser, models.RoleAdmin)
	}
	if actorID == id {
		return nil, models.NewError(models.KindForbidden, "You cannot change your own role or status")
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id)
	}
	if req.IsBlocked != nil {
		user.IsBlocked = *req.IsBlocked
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, s.translate(err, id)
	}

	s.logger.WithFields(log.Fields{
		"user_id":    id,
		"actor_id":   actorID,
		"role":       user.Role,
		"is_blocked": user.IsBlocked,
	}).Info("User updated")
	user.Password = ""
	return user, nil
}
