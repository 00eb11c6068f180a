package repositories

import (
	"context"
	"sort"
	"strings"
	"time"

	"carshop/internal/models"
	"carshop/internal/orderid"

	"github.com/shopspring/decimal"
)

// MemoryOrderRepository is an in-memory implementation of OrderRepository.
type MemoryOrderRepository struct {
	view *memoryView
}

func orderMatches(o models.Order, q OrderQuery) bool {
	if o.IsDeleted {
		return false
	}
	if q.UserID != "" && o.UserID != q.UserID {
		return false
	}
	if q.Status != "" && o.Status != q.Status {
		return false
	}
	if q.Search != "" {
		s := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(o.OrderID), s) &&
			!strings.Contains(strings.ToLower(o.Email), s) &&
			!strings.Contains(strings.ToLower(o.ShippingAddress), s) {
			return false
		}
	}
	return true
}

func sortOrders(orders []models.Order, created map[string]int64, sortKey string) {
	key, _, desc := parseSort(sortKey, orderSortColumns)
	less := func(a, b models.Order) bool {
		switch key {
		case "orderId":
			return a.OrderID < b.OrderID
		case "totalPrice":
			return a.TotalPrice.LessThan(b.TotalPrice)
		case "quantity":
			return a.Quantity < b.Quantity
		case "currentStatus":
			return a.Status < b.Status
		default:
			return created[a.OrderID] < created[b.OrderID]
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if desc {
			return less(orders[j], orders[i])
		}
		return less(orders[i], orders[j])
	})
}

// GetAll returns one page of orders matching query.
func (r *MemoryOrderRepository) GetAll(ctx context.Context, query OrderQuery) ([]models.Order, PageMeta, error) {
	page := query.Pagination.normalize()
	var orders []models.Order
	_ = r.view.read(func(d *memoryData) error {
		for _, o := range d.orders {
			if orderMatches(o, query) {
				orders = append(orders, o)
			}
		}
		sortOrders(orders, d.created, page.Sort)
		return nil
	})
	return paginate(orders, page), newPageMeta(page, int64(len(orders))), nil
}

func (r *MemoryOrderRepository) find(match func(o models.Order) bool) (*models.Order, error) {
	var order *models.Order
	_ = r.view.read(func(d *memoryData) error {
		for _, o := range d.orders {
			if !o.IsDeleted && match(o) {
				found := o
				order = &found
				return nil
			}
		}
		return nil
	})
	if order == nil {
		return nil, ErrRecordNotFound
	}
	return order, nil
}

// GetByOrderID returns a live order by its order id.
func (r *MemoryOrderRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.OrderID == orderID })
}

// GetByPaymentID implements OrderRepository.
func (r *MemoryOrderRepository) GetByPaymentID(ctx context.Context, providerID string) (*models.Order, error) {
	if providerID == "" {
		return nil, ErrRecordNotFound
	}
	return r.find(func(o models.Order) bool { return o.Payment.ProviderID == providerID })
}

// LastOrderID implements OrderRepository.
func (r *MemoryOrderRepository) LastOrderID(ctx context.Context, prefix string) (string, error) {
	last := ""
	_ = r.view.read(func(d *memoryData) error {
		last = d.issued[prefix]
		return nil
	})
	return last, nil
}

// Create adds a new order.
func (r *MemoryOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.Version == 0 {
		order.Version = 1
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	return r.view.write(func(d *memoryData) error {
		if _, ok := d.orders[order.OrderID]; ok {
			return ErrDuplicateKey
		}
		d.seq++
		d.created[order.OrderID] = d.seq
		d.orders[order.OrderID] = *order
		if prefix := orderid.Prefix(order.OrderID); prefix != "" {
			d.issued[prefix] = order.OrderID
		}
		return nil
	})
}

// UpdatePayment implements OrderRepository.
func (r *MemoryOrderRepository) UpdatePayment(ctx context.Context, orderID string, payment models.Payment) error {
	return r.view.write(func(d *memoryData) error {
		o, ok := d.orders[orderID]
		if !ok || o.IsDeleted {
			return ErrRecordNotFound
		}
		o.Payment = payment
		o.Version++
		o.UpdatedAt = time.Now()
		d.orders[orderID] = o
		return nil
	})
}

// Update implements OrderRepository.
func (r *MemoryOrderRepository) Update(ctx context.Context, order *models.Order) error {
	return r.view.write(func(d *memoryData) error {
		stored, ok := d.orders[order.OrderID]
		if !ok || stored.IsDeleted {
			return ErrRecordNotFound
		}
		if stored.Version != order.Version {
			return ErrVersionConflict
		}
		next := *order
		next.Version++
		next.CreatedAt = stored.CreatedAt
		next.UpdatedAt = time.Now()
		d.orders[order.OrderID] = next
		*order = next
		return nil
	})
}

// Delete removes an order permanently.
func (r *MemoryOrderRepository) Delete(ctx context.Context, orderID string) error {
	return r.view.write(func(d *memoryData) error {
		if _, ok := d.orders[orderID]; !ok {
			return ErrRecordNotFound
		}
		delete(d.orders, orderID)
		return nil
	})
}

// TotalSales implements OrderRepository.
func (r *MemoryOrderRepository) TotalSales(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	_ = r.view.read(func(d *memoryData) error {
		for _, o := range d.orders {
			if !o.IsDeleted && o.Status == models.OrderStatusDelivered && o.IsPaid() {
				total = total.Add(o.TotalPrice)
			}
		}
		return nil
	})
	return total, nil
}
