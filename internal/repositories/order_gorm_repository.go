package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carshop/internal/models"
	"carshop/internal/orderid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

func orderQueryScope(q OrderQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("is_deleted = ?", false)
		if q.UserID != "" {
			db = db.Where("user_id = ?", q.UserID)
		}
		if q.Status != "" {
			db = db.Where("current_status = ?", q.Status)
		}
		if q.Search != "" {
			like := likePattern(q.Search)
			db = db.Where("(LOWER(order_id) LIKE ? OR LOWER(email) LIKE ? OR LOWER(shipping_address) LIKE ?)", like, like, like)
		}
		return db
	}
}

// GetAll retrieves one page of orders matching query.
func (r *GORMOrderRepository) GetAll(ctx context.Context, query OrderQuery) ([]models.Order, PageMeta, error) {
	page := query.Pagination.normalize()
	scope := orderQueryScope(query)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, PageMeta{}, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	err := r.db.WithContext(ctx).Scopes(scope).
		Order(orderByClause(page.Sort, orderSortColumns)).
		Offset(page.offset()).Limit(page.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, PageMeta{}, fmt.Errorf("failed to get orders: %w", err)
	}
	return orders, newPageMeta(page, total), nil
}

func (r *GORMOrderRepository) first(ctx context.Context, query string, args ...interface{}) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where(query, args...).Where("is_deleted = ?", false).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderID retrieves a single order by its order id.
func (r *GORMOrderRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := r.first(ctx, "order_id = ?", orderID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	return order, err
}

// GetByPaymentID implements OrderRepository.
func (r *GORMOrderRepository) GetByPaymentID(ctx context.Context, providerID string) (*models.Order, error) {
	if providerID == "" {
		return nil, ErrRecordNotFound
	}
	order, err := r.first(ctx, "payment_provider_id = ?", providerID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get order by payment %s: %w", providerID, err)
	}
	return order, err
}

// LastOrderID implements OrderRepository.
func (r *GORMOrderRepository) LastOrderID(ctx context.Context, prefix string) (string, error) {
	var seq models.OrderSequence
	err := r.db.WithContext(ctx).Where("prefix = ?", prefix).Take(&seq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get last order id: %w", err)
	}
	return seq.LastID, nil
}

// Create creates a new order in the database. The order row and its
// sequence entry are written together.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.Version == 0 {
		order.Version = 1
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			err = translateError(err)
			if errors.Is(err, ErrDuplicateKey) {
				return ErrDuplicateKey
			}
			return fmt.Errorf("failed to create order: %w", err)
		}

		prefix := orderid.Prefix(order.OrderID)
		if prefix == "" {
			return nil
		}
		seq := models.OrderSequence{Prefix: prefix, LastID: order.OrderID, UpdatedAt: time.Now()}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "prefix"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_id", "updated_at"}),
		}).Create(&seq).Error
		if err != nil {
			return fmt.Errorf("failed to record order id %s: %w", order.OrderID, err)
		}
		return nil
	})
}

// UpdatePayment implements OrderRepository. Writing the same record twice
// leaves the row unchanged.
func (r *GORMOrderRepository) UpdatePayment(ctx context.Context, orderID string, payment models.Payment) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_id = ? AND is_deleted = ?", orderID, false).
		Updates(map[string]interface{}{
			"payment_provider_id":        payment.ProviderID,
			"payment_transaction_status": payment.TransactionStatus,
			"payment_bank_status":        payment.BankStatus,
			"payment_code":               payment.Code,
			"payment_message":            payment.Message,
			"payment_method":             payment.Method,
			"payment_date_time":          payment.DateTime,
			"version":                    gorm.Expr("version + 1"),
			"updated_at":                 time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update payment of order %s: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Update implements OrderRepository.
func (r *GORMOrderRepository) Update(ctx context.Context, order *models.Order) error {
	expected := order.Version
	next := *order
	next.Version = expected + 1
	next.UpdatedAt = time.Now()

	res := r.db.WithContext(ctx).Model(&next).
		Where("version = ? AND is_deleted = ?", expected, false).
		Select("*").Omit("order_id", "created_at", "is_deleted").
		Updates(&next)
	if res.Error != nil {
		return fmt.Errorf("failed to update order %s: %w", order.OrderID, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByOrderID(ctx, order.OrderID); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	*order = next
	return nil
}

// Delete removes an order row permanently.
func (r *GORMOrderRepository) Delete(ctx context.Context, orderID string) error {
	res := r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.Order{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete order %s: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// TotalSales implements OrderRepository.
func (r *GORMOrderRepository) TotalSales(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("SUM(total_price)").
		Where("is_deleted = ? AND current_status = ?", false, models.OrderStatusDelivered).
		Where("LOWER(payment_transaction_status) = ?", models.TransactionStatusSuccess).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute total sales: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
