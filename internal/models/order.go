package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is a stage of the delivery lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
)

var statusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// TransactionStatusSuccess is the provider status of a settled payment.
const TransactionStatusSuccess = "success"

// Payment is the provider's view of an order's payment. It is replaced as a
// whole on every reconciliation, never patched field by field.
type Payment struct {
	ProviderID        string `json:"id" gorm:"type:varchar(64);index"`
	TransactionStatus string `json:"transactionStatus" gorm:"type:varchar(32)"`
	BankStatus        string `json:"bankStatus"`
	Code              string `json:"spCode"`
	Message           string `json:"spMessage"`
	Method            string `json:"method"`
	DateTime          string `json:"dateTime"`
}

// IsSuccessful reports whether the provider settled this payment.
func (p Payment) IsSuccessful() bool {
	return strings.EqualFold(p.TransactionStatus, TransactionStatusSuccess)
}

// Order is a customer's purchase of a quantity of one car.
type Order struct {
	OrderID         string          `json:"orderId" gorm:"primaryKey;type:varchar(32)"`
	UserID          string          `json:"user" gorm:"type:varchar(36);index:idx_orders_user_email;not null"`
	CarID           string          `json:"car" gorm:"type:varchar(36);index;not null"`
	CarSnapshot     CarSnapshot     `json:"carSnapshot" gorm:"embedded;embeddedPrefix:car_"`
	UnitPrice       decimal.Decimal `json:"unitPrice" gorm:"type:decimal(14,2);not null"`
	Quantity        int             `json:"quantity" gorm:"not null"`
	TotalPrice      decimal.Decimal `json:"totalPrice" gorm:"type:decimal(14,2);not null"`
	Email           string          `json:"email" gorm:"type:varchar(255);index:idx_orders_user_email;not null"`
	Phone           string          `json:"phone" gorm:"type:varchar(20);not null"`
	ShippingAddress string          `json:"shippingAddress" gorm:"not null"`
	DeliveryDate    time.Time       `json:"deliveryDate"`
	Status          OrderStatus     `json:"currentStatus" gorm:"column:current_status;type:varchar(16);index;not null;default:pending"`
	ProcessedAt     *time.Time      `json:"processedAt,omitempty"`
	ShippedAt       *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	Payment         Payment         `json:"payment" gorm:"embedded;embeddedPrefix:payment_"`
	// StockDeducted is set once the car quantity has been decremented for
	// this order, so a later success report never decrements again.
	StockDeducted bool      `json:"-" gorm:"not null;default:false"`
	IsDeleted     bool      `json:"-" gorm:"not null;default:false;index"`
	Version       int64     `json:"-" gorm:"not null;default:1"`
	CreatedAt     time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// IsPaid reports whether the embedded payment settled.
func (o *Order) IsPaid() bool {
	return o.Payment.IsSuccessful()
}

// TransitionTo moves the order to status to, stamping the stage timestamp on
// first arrival. Moving backwards or leaving delivered is rejected; repeating
// the current status of an open order is a no-op.
func (o *Order) TransitionTo(to OrderStatus, now time.Time) error {
	if !to.Valid() {
		return NewError(KindInvalidTransition, "unknown order status %q", to)
	}
	from := o.Status
	if from == OrderStatusDelivered {
		return NewError(KindInvalidTransition, "order %s has already been delivered", o.OrderID)
	}
	if statusRank[to] < statusRank[from] {
		return NewError(KindInvalidTransition, "order %s cannot move from %s back to %s", o.OrderID, from, to)
	}

	o.Status = to
	stamp := func(ts **time.Time) {
		if *ts == nil {
			t := now
			*ts = &t
		}
	}
	switch to {
	case OrderStatusProcessing:
		stamp(&o.ProcessedAt)
	case OrderStatusShipped:
		stamp(&o.ShippedAt)
	case OrderStatusDelivered:
		stamp(&o.DeliveredAt)
	}
	return nil
}

// TotalFor computes the order total for qty units at unitPrice.
func TotalFor(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// OrderSequence remembers the last order id issued under a prefix. Removing
// an order leaves it untouched, so an id sent to the payment provider is
// never issued twice.
type OrderSequence struct {
	Prefix    string `gorm:"primaryKey;type:varchar(16)"`
	LastID    string `gorm:"type:varchar(32);not null"`
	UpdatedAt time.Time
}
