package handlers

import (
	"strconv"
	"strings"

	"carshop/internal/middleware"
	"carshop/internal/models"
	"carshop/internal/repositories"
	"carshop/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// CarHandler handles HTTP requests for the car catalog.
type CarHandler struct {
	service  *services.CarService
	validate *validator.Validate
}

// NewCarHandler creates a new CarHandler.
func NewCarHandler(service *services.CarService, validate *validator.Validate) *CarHandler {
	if validate == nil {
		validate = NewValidator()
	}
	return &CarHandler{service: service, validate: validate}
}

// RegisterRoutes registers the catalog routes. Reads are public, writes
// require an admin token.
func (h *CarHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	admin := middleware.RequireRoles(models.RoleAdmin)

	carRoutes := router.Group("/cars")
	carRoutes.Get("/", h.HandleGetCars)
	carRoutes.Get("/:id", h.HandleGetCarByID)
	carRoutes.Post("/", auth, admin, h.HandleCreateCar)
	carRoutes.Patch("/:id", auth, admin, h.HandleUpdateCar)
	carRoutes.Delete("/:id", auth, admin, h.HandleDeleteCar)
}

func carFilter(c *fiber.Ctx) (repositories.CarFilter, error) {
	filter := repositories.CarFilter{
		Pagination: pagination(c),
		Search:     strings.TrimSpace(c.Query("search")),
		Category:   c.Query("category"),
	}
	if raw := c.Query("minPrice"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, models.NewError(models.KindInvalidRequest, "minPrice must be a number")
		}
		filter.MinPrice = &v
	}
	if raw := c.Query("maxPrice"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, models.NewError(models.KindInvalidRequest, "maxPrice must be a number")
		}
		filter.MaxPrice = &v
	}
	if raw := c.Query("inStock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, models.NewError(models.KindInvalidRequest, "inStock must be true or false")
		}
		filter.InStock = &v
	}
	return filter, nil
}

// HandleGetCars returns one page of the catalog.
func (h *CarHandler) HandleGetCars(c *fiber.Ctx) error {
	filter, err := carFilter(c)
	if err != nil {
		return errorResponse(c, err)
	}
	cars, meta, err := h.service.GetAllCars(c.UserContext(), filter)
	if err != nil {
		return errorResponse(c, err)
	}
	return paged(c, "Cars retrieved successfully", cars, meta)
}

// HandleGetCarByID returns a single car.
func (h *CarHandler) HandleGetCarByID(c *fiber.Ctx) error {
	car, err := h.service.GetCarByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, fiber.StatusOK, "Car retrieved successfully", car)
}

// HandleCreateCar adds a car to the catalog.
func (h *CarHandler) HandleCreateCar(c *fiber.Ctx) error {
	var car models.Car
	if err := c.BodyParser(&car); err != nil {
		return bodyError(c, err)
	}
	if err := h.validate.Struct(car); err != nil {
		return validationError(c, err)
	}
	car.ID = ""

	if err := h.service.CreateCar(c.UserContext(), &car); err != nil {
		return errorResponse(c, err)
	}
	return success(c, fiber.StatusCreated, "Car created successfully", car)
}

// HandleUpdateCar applies the fields present in the body to a catalog
// entry. Omitted fields keep their stored values.
func (h *CarHandler) HandleUpdateCar(c *fiber.Ctx) error {
	id := c.Params("id")
	car, err := h.service.GetCarByID(c.UserContext(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	if err := c.BodyParser(car); err != nil {
		return bodyError(c, err)
	}
	if err := h.validate.Struct(car); err != nil {
		return validationError(c, err)
	}
	car.ID = id

	if err := h.service.UpdateCar(c.UserContext(), car); err != nil {
		return errorResponse(c, err)
	}
	updated, err := h.service.GetCarByID(c.UserContext(), car.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, fiber.StatusOK, "Car updated successfully", updated)
}

// HandleDeleteCar removes a car from the catalog.
func (h *CarHandler) HandleDeleteCar(c *fiber.Ctx) error {
	if err := h.service.DeleteCar(c.UserContext(), c.Params("id")); err != nil {
		return errorResponse(c, err)
	}
	return success(c, fiber.StatusOK, "Car deleted successfully", nil)
}
