package handlers

import (
	"errors"
	"fmt"
	"regexp"

	"carshop/internal/models"
	"carshop/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// retryAfterSeconds is sent with CONCURRENCY_CONFLICT responses.
const retryAfterSeconds = "1"

var bdPhonePattern = regexp.MustCompile(`^\+?(88)?01[0-9]\d{8}$`)

// NewValidator returns a validator that also knows the "bdphone" tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("bdphone", func(fl validator.FieldLevel) bool {
		return bdPhonePattern.MatchString(fl.Field().String())
	})
	return v
}

var kindStatus = map[models.ErrorKind]int{
	models.KindInvalidRequest:          fiber.StatusBadRequest,
	models.KindInsufficientInventory:   fiber.StatusConflict,
	models.KindPaymentInitiationFailed: fiber.StatusBadGateway,
	models.KindOrderNotFound:           fiber.StatusNotFound,
	models.KindNotFound:                fiber.StatusNotFound,
	models.KindForbidden:               fiber.StatusForbidden,
	models.KindInvalidTransition:       fiber.StatusUnprocessableEntity,
	models.KindUnpaidOrderImmutable:    fiber.StatusConflict,
	models.KindPaidOrderImmutable:      fiber.StatusConflict,
	models.KindDeleteWindowExpired:     fiber.StatusConflict,
	models.KindConcurrencyConflict:     fiber.StatusConflict,
	models.KindInternal:                fiber.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(kind models.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// errorResponse renders err with the status of its kind. Internal causes
// are never exposed.
func errorResponse(c *fiber.Ctx, err error) error {
	kind := models.KindOf(err)
	status := StatusFor(kind)

	message := "Something went wrong"
	var kinded *models.Error
	if errors.As(err, &kinded) && kind != models.KindInternal {
		message = kinded.Error()
	}
	if kind == models.KindInternal {
		log.WithError(err).WithFields(log.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		}).Error("Request failed")
	}
	if kind == models.KindConcurrencyConflict {
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
	}

	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   string(kind),
	})
}

func bodyError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

func validationError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return bodyError(c, err)
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"error":   string(models.KindInvalidRequest),
		"errors":  errorMessages,
	})
}

func success(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func paged(c *fiber.Ctx, message string, data interface{}, meta repositories.PageMeta) error {
	return c.JSON(fiber.Map{
		"message": message,
		"data":    data,
		"meta":    meta,
	})
}

// pagination reads page, limit and sort from the query string.
func pagination(c *fiber.Ctx) repositories.Pagination {
	return repositories.Pagination{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 10),
		Sort:  c.Query("sort"),
	}
}
