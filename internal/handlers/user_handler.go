package handlers

import (
	"strconv"

	"carshop/internal/middleware"
	"carshop/internal/models"
	"carshop/internal/repositories"
	"carshop/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// UserHandler handles account administration requests.
type UserHandler struct {
	service  *services.UserService
	validate *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserService, validate *validator.Validate) *UserHandler {
	if validate == nil {
		validate = NewValidator()
	}
	return &UserHandler{service: service, validate: validate}
}

// RegisterRoutes registers the user routes. All of them require an admin.
func (h *UserHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	userRoutes := router.Group("/users", auth, middleware.RequireRoles(models.RoleAdmin))
	userRoutes.Get("/", h.HandleGetUsers)
	userRoutes.Get("/:id", h.HandleGetUser)
	userRoutes.Patch("/:id", h.HandleUpdateUser)
}

func userQuery(c *fiber.Ctx) (repositories.UserQuery, error) {
	query := repositories.UserQuery{
		Pagination: pagination(c),
		Role:       c.Query("role"),
	}
	if raw := c.Query("isBlocked"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return query, models.NewError(models.KindInvalidRequest, "isBlocked must be true or false")
		}
		query.IsBlocked = &v
	}
	return query, nil
}

// HandleGetUsers returns one page of accounts.
func (h *UserHandler) HandleGetUsers(c *fiber.Ctx) error {
	query, err := userQuery(c)
	if err != nil {
		return errorResponse(c, err)
	}
	users, meta, err := h.service.ListUsers(c.UserContext(), query)
	if err != nil {
		return errorResponse(c, err)
	}
	return paged(c, "Users retrieved successfully", users, meta)
}

// HandleGetUser returns a single account.
func (h *UserHandler) HandleGetUser(c *fiber.Ctx) error {
	user, err := h.service.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, fiber.StatusOK, "User retrieved successfully", user)
}

// HandleUpdateUser blocks, unblocks, promotes or demotes an account.
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	var req services.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	user, err := h.service.UpdateUser(c.UserContext(), middleware.UserID(c), c.Params("id"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, fiber.StatusOK, "User updated successfully", user)
}
