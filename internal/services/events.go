package services

import (
	"context"
	"time"

	"carshop/internal/models"

	"github.com/shopspring/decimal"
)

// Routing keys of the order events.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderPaid          = "order.paid"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderRemoved       = "order.removed"
)

// EventPublisher delivers domain events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// OrderEvent is the payload of every order event.
type OrderEvent struct {
	OrderID       string             `json:"orderId"`
	UserID        string             `json:"userId"`
	CarID         string             `json:"carId"`
	Quantity      int                `json:"quantity"`
	TotalPrice    decimal.Decimal    `json:"totalPrice"`
	Status        models.OrderStatus `json:"status"`
	PaymentStatus string             `json:"paymentStatus,omitempty"`
	OccurredAt    time.Time          `json:"occurredAt"`
}

func newOrderEvent(o *models.Order, at time.Time) OrderEvent {
	return OrderEvent{
		OrderID:       o.OrderID,
		UserID:        o.UserID,
		CarID:         o.CarID,
		Quantity:      o.Quantity,
		TotalPrice:    o.TotalPrice,
		Status:        o.Status,
		PaymentStatus: o.Payment.TransactionStatus,
		OccurredAt:    at,
	}
}
