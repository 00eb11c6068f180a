package handlers

import (
	"strings"

	"carshop/internal/middleware"
	"carshop/internal/models"
	"carshop/internal/repositories"
	"carshop/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, validate *validator.Validate) *OrderHandler {
	if validate == nil {
		validate = NewValidator()
	}
	return &OrderHandler{
		service:  service,
		validate: validate,
	}
}

// RegisterRoutes registers the order routes. Every route requires auth.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	admin := middleware.RequireRoles(models.RoleAdmin)
	customer := middleware.RequireRoles(models.RoleUser)
	anyone := middleware.RequireRoles(models.RoleUser, models.RoleAdmin)

	orderRoutes := router.Group("/orders", auth)
	orderRoutes.Post("/", customer, h.HandlePlaceOrder)
	orderRoutes.Get("/", admin, h.HandleGetOrders)
	orderRoutes.Get("/user", anyone, h.HandleGetUserOrders)
	orderRoutes.Get("/verify", anyone, h.HandleVerifyPayment)
	orderRoutes.Get("/sales", admin, h.HandleTotalSales)
	orderRoutes.Get("/:id", anyone, h.HandleGetOrderByID)
	orderRoutes.Patch("/:id", admin, h.HandleUpdateOrder)
	orderRoutes.Delete("/:id", admin, h.HandleRemoveOrder)
}

// HandlePlaceOrder records an order and returns the checkout URL.
func (h *OrderHandler) HandlePlaceOrder(c *fiber.Ctx) error {
	var req services.PlaceOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	result, err := h.service.PlaceOrder(c.UserContext(), middleware.UserID(c), req, c.IP())
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, fiber.StatusCreated, "Order placed successfully", result)
}

// HandleVerifyPayment reconciles the payment named by ?order_id=.
func (h *OrderHandler) HandleVerifyPayment(c *fiber.Ctx) error {
	providerOrderID := strings.TrimSpace(c.Query("order_id"))
	verifications, err := h.service.VerifyPayment(c.UserContext(), providerOrderID)
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, fiber.StatusOK, "Order verified successfully", verifications)
}

func orderQuery(c *fiber.Ctx) repositories.OrderQuery {
	return repositories.OrderQuery{
		Pagination: pagination(c),
		Search:     strings.TrimSpace(c.Query("search")),
		Status:     models.OrderStatus(strings.ToLower(c.Query("status"))),
	}
}

// HandleGetOrders returns one page of all orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, meta, err := h.service.ListOrders(c.UserContext(), orderQuery(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return paged(c, "Orders retrieved successfully", orders, meta)
}

// HandleGetUserOrders returns one page of the caller's own orders.
func (h *OrderHandler) HandleGetUserOrders(c *fiber.Ctx) error {
	orders, meta, err := h.service.ListUserOrders(c.UserContext(), middleware.UserID(c), orderQuery(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return paged(c, "Orders retrieved successfully", orders, meta)
}

// HandleGetOrderByID returns one order visible to the caller.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	requester := services.Requester{UserID: middleware.UserID(c), Role: middleware.Role(c)}
	order, err := h.service.GetOrder(c.UserContext(), c.Params("id"), requester)
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, fiber.StatusOK, "Order retrieved successfully", order)
}

// HandleUpdateOrder advances the status or edits delivery details.
func (h *OrderHandler) HandleUpdateOrder(c *fiber.Ctx) error {
	var patch services.OrderPatch
	if err := c.BodyParser(&patch); err != nil {
		return bodyError(c, err)
	}

	order, err := h.service.UpdateOrder(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, fiber.StatusOK, "Order updated successfully", order)
}

// HandleRemoveOrder deletes an abandoned, unpaid order.
func (h *OrderHandler) HandleRemoveOrder(c *fiber.Ctx) error {
	order, err := h.service.RemoveOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, fiber.StatusOK, "Order deleted successfully", order)
}

// HandleTotalSales sums delivered, paid orders.
func (h *OrderHandler) HandleTotalSales(c *fiber.Ctx) error {
	total, err := h.service.TotalSales(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return success(c, fiber.StatusOK, "Total sales retrieved successfully", fiber.Map{"totalSales": total})
}
