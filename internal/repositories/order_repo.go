package repositories

import (
	"context"

	"carshop/internal/models"

	"github.com/shopspring/decimal"
)

// OrderRepository defines the interface for order data access. Reads never
// return soft-deleted orders.
type OrderRepository interface {
	GetAll(ctx context.Context, query OrderQuery) ([]models.Order, PageMeta, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	// GetByPaymentID looks an order up by the provider's payment id.
	GetByPaymentID(ctx context.Context, providerID string) (*models.Order, error)
	// LastOrderID returns the last id ever issued under prefix, or "".
	// Deleting orders does not rewind it.
	LastOrderID(ctx context.Context, prefix string) (string, error)
	// Create inserts a new order and records its id as the last one issued
	// under its prefix. A taken order id yields ErrDuplicateKey.
	Create(ctx context.Context, order *models.Order) error
	// UpdatePayment replaces the payment record of an order.
	UpdatePayment(ctx context.Context, orderID string, payment models.Payment) error
	// Update writes every mutable field of order if its stored version still
	// matches order.Version, then bumps the version. A stale version yields
	// ErrVersionConflict.
	Update(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, orderID string) error
	// TotalSales sums the totals of delivered, paid orders.
	TotalSales(ctx context.Context) (decimal.Decimal, error)
}
