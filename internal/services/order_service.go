package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"carshop/internal/metrics"
	"carshop/internal/models"
	"carshop/internal/orderid"
	"carshop/internal/payment"
	"carshop/internal/repositories"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// OrderServiceConfig tunes the order workflow.
type OrderServiceConfig struct {
	IDPrefix         string
	Currency         string
	CustomerCity     string
	DeleteWindow     time.Duration
	DeliveryLeadTime time.Duration
	Retry            RetryConfig
	Now              func() time.Time
}

// DefaultOrderServiceConfig returns the production defaults.
func DefaultOrderServiceConfig() OrderServiceConfig {
	return OrderServiceConfig{
		IDPrefix:         orderid.DefaultPrefix,
		Currency:         "BDT",
		CustomerCity:     "Dhaka",
		DeleteWindow:     30 * time.Minute,
		DeliveryLeadTime: 7 * 24 * time.Hour,
		Retry:            DefaultRetryConfig(),
		Now:              time.Now,
	}
}

func (c OrderServiceConfig) withDefaults() OrderServiceConfig {
	d := DefaultOrderServiceConfig()
	if c.IDPrefix == "" {
		c.IDPrefix = d.IDPrefix
	}
	if c.Currency == "" {
		c.Currency = d.Currency
	}
	if c.CustomerCity == "" {
		c.CustomerCity = d.CustomerCity
	}
	if c.DeleteWindow <= 0 {
		c.DeleteWindow = d.DeleteWindow
	}
	if c.DeliveryLeadTime <= 0 {
		c.DeliveryLeadTime = d.DeliveryLeadTime
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = d.Retry
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// OrderService places orders, reconciles their payments and drives them
// through the delivery lifecycle.
type OrderService struct {
	store   repositories.Store
	gateway payment.Gateway
	events  EventPublisher
	metrics *metrics.OrderMetrics
	cfg     OrderServiceConfig
	logger  *log.Entry
}

// NewOrderService creates a new OrderService. events and m may be nil.
func NewOrderService(store repositories.Store, gateway payment.Gateway, events EventPublisher, m *metrics.OrderMetrics, cfg OrderServiceConfig, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &OrderService{
		store:   store,
		gateway: gateway,
		events:  events,
		metrics: m,
		cfg:     cfg.withDefaults(),
		logger:  logger.WithField("component", "order-service"),
	}
}

// PlaceOrderRequest is a customer's request to buy a car.
type PlaceOrderRequest struct {
	CarID           string     `json:"car" validate:"required"`
	Quantity        int        `json:"quantity" validate:"required,gt=0"`
	Email           string     `json:"email" validate:"omitempty,email"`
	Phone           string     `json:"phone" validate:"omitempty,bdphone"`
	ShippingAddress string     `json:"shippingAddress" validate:"required,min=5,max=500"`
	DeliveryDate    *time.Time `json:"deliveryDate,omitempty"`
}

func (r PlaceOrderRequest) validate() error {
	switch {
	case strings.TrimSpace(r.CarID) == "":
		return models.NewError(models.KindInvalidRequest, "car is required")
	case r.Quantity <= 0:
		return models.NewError(models.KindInvalidRequest, "quantity must be greater than zero")
	case strings.TrimSpace(r.ShippingAddress) == "":
		return models.NewError(models.KindInvalidRequest, "shipping address is required")
	}
	return nil
}

// PlaceOrderResult tells the customer where to pay.
type PlaceOrderResult struct {
	CheckoutURL string `json:"checkoutUrl"`
	OrderID     string `json:"orderId"`
}

// OrderPatch lists the fields an operator may change. Nil fields are kept.
type OrderPatch struct {
	Status          *models.OrderStatus `json:"currentStatus,omitempty"`
	ShippingAddress *string             `json:"shippingAddress,omitempty"`
	DeliveryDate    *time.Time          `json:"deliveryDate,omitempty"`
}

func (p OrderPatch) validate() error {
	if p.Status == nil && p.ShippingAddress == nil && p.DeliveryDate == nil {
		return models.NewError(models.KindInvalidRequest, "nothing to update")
	}
	if p.ShippingAddress != nil && strings.TrimSpace(*p.ShippingAddress) == "" {
		return models.NewError(models.KindInvalidRequest, "shipping address must not be empty")
	}
	return nil
}

// Requester identifies the caller of a read.
type Requester struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the requester is an operator.
func (r Requester) IsAdmin() bool {
	return r.Role == models.RoleAdmin
}

// internal hides a store or gateway error behind a stable kind. The cause is
// logged here and kept on the error for callers that log it again.
func (s *OrderService) internal(err error, msg string, fields log.Fields) error {
	var kinded *models.Error
	if errors.As(err, &kinded) {
		return err
	}
	s.logger.WithFields(fields).WithError(err).Error(msg)
	return models.WrapError(models.KindInternal, err, "%s", msg)
}

func isConflict(err error) bool {
	return errors.Is(err, models.ErrConcurrencyConflict)
}

func (s *OrderService) publish(ctx context.Context, routingKey string, order *models.Order) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, routingKey, newOrderEvent(order, s.cfg.Now())); err != nil {
		s.logger.WithFields(log.Fields{
			"order_id":    order.OrderID,
			"routing_key": routingKey,
		}).WithError(err).Warn("Failed to publish order event")
	}
}

// PlaceOrder records a pending order for userID and hands it to the payment
// provider. The order is committed before the provider is called; when the
// provider fails the order stays pending without a payment record and
// PaymentInitiationFailed is returned. Inventory is not touched here.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, req PlaceOrderRequest, clientIP string) (*PlaceOrderResult, error) {
	defer s.metrics.ObserveDuration("place_order", time.Now())

	if userID == "" {
		return nil, models.NewError(models.KindInvalidRequest, "Invalid order request")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	var (
		order *models.Order
		buyer *models.User
	)
	err := s.store.WithTransaction(ctx, func(tx repositories.Repositories) error {
		user, err := tx.Users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repositories.ErrRecordNotFound) {
				return models.NewError(models.KindInvalidRequest, "Invalid order request")
			}
			return err
		}
		car, err := tx.Cars.GetByID(ctx, req.CarID)
		if err != nil {
			if errors.Is(err, repositories.ErrRecordNotFound) {
				return models.NewError(models.KindInvalidRequest, "Invalid order request")
			}
			return err
		}

		available, err := tx.Cars.CheckAvailability(ctx, car.ID, req.Quantity)
		if err != nil {
			return err
		}
		if !available {
			return models.NewError(models.KindInsufficientInventory, "Car is not available in the requested quantity")
		}

		email, phone := req.Email, req.Phone
		if email == "" {
			email = user.Email
		}
		if phone == "" {
			phone = user.Phone
		}
		if phone == "" {
			return models.NewError(models.KindInvalidRequest, "phone is required")
		}

		lastID, err := tx.Orders.LastOrderID(ctx, s.cfg.IDPrefix)
		if err != nil {
			return err
		}
		now := s.cfg.Now()
		deliveryDate := now.Add(s.cfg.DeliveryLeadTime)
		if req.DeliveryDate != nil {
			deliveryDate = *req.DeliveryDate
		}

		o := &models.Order{
			OrderID:         orderid.Next(s.cfg.IDPrefix, lastID, now),
			UserID:          user.ID,
			CarID:           car.ID,
			CarSnapshot:     car.Snapshot(),
			UnitPrice:       car.Price,
			Quantity:        req.Quantity,
			TotalPrice:      models.TotalFor(car.Price, req.Quantity),
			Email:           strings.ToLower(email),
			Phone:           phone,
			ShippingAddress: strings.TrimSpace(req.ShippingAddress),
			DeliveryDate:    deliveryDate,
			Status:          models.OrderStatusPending,
			CreatedAt:       now,
		}
		if err := tx.Orders.Create(ctx, o); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return models.WrapError(models.KindConcurrencyConflict, err, "order id %s was taken by a concurrent request", o.OrderID)
			}
			return err
		}
		order, buyer = o, user
		return nil
	})
	if err != nil {
		if isConflict(err) {
			s.metrics.RecordConflict("place_order")
		}
		return nil, s.internal(err, "Failed to place order", log.Fields{"user_id": userID, "car_id": req.CarID})
	}

	logger := s.logger.WithFields(log.Fields{"order_id": order.OrderID, "car_id": order.CarID})

	resp, err := s.gateway.SubmitPayment(ctx, payment.PaymentRequest{
		Amount:          order.TotalPrice,
		OrderID:         order.OrderID,
		Currency:        s.cfg.Currency,
		CustomerName:    buyer.Name,
		CustomerAddress: order.ShippingAddress,
		CustomerEmail:   order.Email,
		CustomerPhone:   order.Phone,
		CustomerCity:    s.cfg.CustomerCity,
		ClientIP:        clientIP,
	})
	if err != nil || resp == nil || resp.CheckoutURL == "" || resp.ProviderOrderID == "" {
		s.metrics.RecordPaymentInitiationFailure()
		logger.WithError(err).Warn("Payment initiation failed, order left pending")
		return nil, models.WrapError(models.KindPaymentInitiationFailed, err, "Payment failed for order %s", order.OrderID)
	}

	ref := models.Payment{ProviderID: resp.ProviderOrderID, TransactionStatus: resp.TransactionStatus}
	err = withRetry(ctx, s.cfg.Retry, s.logger, "record_payment", order.OrderID,
		func(err error) bool { return !errors.Is(err, repositories.ErrRecordNotFound) },
		func() error { return s.store.Repositories().Orders.UpdatePayment(ctx, order.OrderID, ref) })
	if err != nil {
		return nil, s.internal(err, "Failed to record payment reference", log.Fields{"order_id": order.OrderID, "sp_order_id": ref.ProviderID})
	}
	order.Payment = ref

	s.metrics.RecordOrderPlaced()
	logger.WithField("sp_order_id", ref.ProviderID).Info("Order placed")
	s.publish(ctx, EventOrderPlaced, order)

	return &PlaceOrderResult{CheckoutURL: resp.CheckoutURL, OrderID: order.OrderID}, nil
}

// VerifyPayment asks the provider for the status of providerOrderID and
// reconciles the matching order with it. The stored payment record is
// replaced by the provider's, and the first success report decrements the
// car's quantity. Repeating a verification never decrements twice. The
// provider's records are returned as-is; an empty result changes nothing.
func (s *OrderService) VerifyPayment(ctx context.Context, providerOrderID string) ([]payment.Verification, error) {
	defer s.metrics.ObserveDuration("verify_payment", time.Now())

	if strings.TrimSpace(providerOrderID) == "" {
		return nil, models.NewError(models.KindInvalidRequest, "order_id is required")
	}
	logger := s.logger.WithField("sp_order_id", providerOrderID)

	verifications, err := s.gateway.VerifyPayment(ctx, providerOrderID)
	if err != nil {
		s.metrics.RecordVerification(metrics.VerificationFailed)
		return nil, s.internal(err, "Payment verification failed", log.Fields{"sp_order_id": providerOrderID})
	}
	if len(verifications) == 0 {
		s.metrics.RecordVerification(metrics.VerificationEmpty)
		return []payment.Verification{}, nil
	}

	incoming := verifications[0].ToPayment(providerOrderID)
	var (
		reconciled *models.Order
		outcome    string
	)
	err = withRetry(ctx, s.cfg.Retry, s.logger, "verify_payment", providerOrderID, isConflict, func() error {
		return s.store.WithTransaction(ctx, func(tx repositories.Repositories) error {
			order, err := tx.Orders.GetByPaymentID(ctx, providerOrderID)
			if err != nil {
				if errors.Is(err, repositories.ErrRecordNotFound) {
					return models.NewError(models.KindOrderNotFound, "Order not found")
				}
				return err
			}

			wasPaid := order.IsPaid()
			order.Payment = incoming
			deduct := incoming.IsSuccessful() && !order.StockDeducted
			if deduct {
				order.StockDeducted = true
			}

			if err := tx.Orders.Update(ctx, order); err != nil {
				if errors.Is(err, repositories.ErrVersionConflict) {
					s.metrics.RecordConflict("verify_payment")
					return models.WrapError(models.KindConcurrencyConflict, err, "order %s was modified concurrently", order.OrderID)
				}
				return err
			}

			if deduct {
				if err := tx.Cars.DecrementQuantity(ctx, order.CarID, order.Quantity); err != nil {
					switch {
					case errors.Is(err, repositories.ErrInsufficientQuantity):
						return models.WrapError(models.KindInsufficientInventory, err, "Car %s no longer has %d unit(s) in stock", order.CarID, order.Quantity)
					case errors.Is(err, repositories.ErrRecordNotFound):
						return models.WrapError(models.KindInternal, err, "car %s of order %s is missing", order.CarID, order.OrderID)
					}
					return err
				}
			}

			switch {
			case deduct:
				outcome = metrics.VerificationPaid
			case wasPaid || order.StockDeducted:
				outcome = metrics.VerificationAlreadyPaid
			default:
				outcome = metrics.VerificationUnpaid
			}
			reconciled = order
			return nil
		})
	})
	if err != nil {
		s.metrics.RecordVerification(metrics.VerificationFailed)
		return nil, s.internal(err, "Failed to reconcile payment", log.Fields{"sp_order_id": providerOrderID})
	}

	s.metrics.RecordVerification(outcome)
	logger.WithFields(log.Fields{
		"order_id": reconciled.OrderID,
		"status":   incoming.TransactionStatus,
		"outcome":  outcome,
	}).Info("Payment reconciled")

	if outcome == metrics.VerificationPaid {
		s.metrics.RecordInventoryDecrement()
		s.publish(ctx, EventOrderPaid, reconciled)
	}
	return verifications, nil
}

// UpdateOrder applies an operator's patch to a paid order. Status changes
// must move forward through the delivery lifecycle.
func (s *OrderService) UpdateOrder(ctx context.Context, orderID string, patch OrderPatch) (*models.Order, error) {
	defer s.metrics.ObserveDuration("update_order", time.Now())

	if err := patch.validate(); err != nil {
		return nil, err
	}

	var (
		updated *models.Order
		changed bool
	)
	err := withRetry(ctx, s.cfg.Retry, s.logger, "update_order", orderID, isConflict, func() error {
		return s.store.WithTransaction(ctx, func(tx repositories.Repositories) error {
			order, err := tx.Orders.GetByOrderID(ctx, orderID)
			if err != nil {
				if errors.Is(err, repositories.ErrRecordNotFound) {
					return models.NewError(models.KindOrderNotFound, "Order not found")
				}
				return err
			}
			if !order.IsPaid() {
				return models.NewError(models.KindUnpaidOrderImmutable, "Order %s has not been paid and cannot be updated", orderID)
			}

			previous := order.Status
			if patch.Status != nil {
				if err := order.TransitionTo(*patch.Status, s.cfg.Now()); err != nil {
					return err
				}
			}
			if patch.ShippingAddress != nil {
				order.ShippingAddress = strings.TrimSpace(*patch.ShippingAddress)
			}
			if patch.DeliveryDate != nil {
				order.DeliveryDate = *patch.DeliveryDate
			}

			if err := tx.Orders.Update(ctx, order); err != nil {
				if errors.Is(err, repositories.ErrVersionConflict) {
					s.metrics.RecordConflict("update_order")
					return models.WrapError(models.KindConcurrencyConflict, err, "order %s was modified concurrently", orderID)
				}
				return err
			}
			updated, changed = order, order.Status != previous
			return nil
		})
	})
	if err != nil {
		return nil, s.internal(err, "Failed to update order", log.Fields{"order_id": orderID})
	}

	if changed {
		s.metrics.RecordTransition(string(updated.Status))
		s.logger.WithFields(log.Fields{"order_id": orderID, "status": updated.Status}).Info("Order status changed")
		s.publish(ctx, EventOrderStatusChanged, updated)
	}
	return updated, nil
}

// RemoveOrder hard-deletes an abandoned order. Paid orders are never removed,
// and unpaid ones only once the grace window since creation has passed.
func (s *OrderService) RemoveOrder(ctx context.Context, orderID string) (*models.Order, error) {
	defer s.metrics.ObserveDuration("remove_order", time.Now())

	var removed *models.Order
	err := s.store.WithTransaction(ctx, func(tx repositories.Repositories) error {
		order, err := tx.Orders.GetByOrderID(ctx, orderID)
		if err != nil {
			if errors.Is(err, repositories.ErrRecordNotFound) {
				return models.NewError(models.KindOrderNotFound, "Order not found")
			}
			return err
		}
		if order.IsPaid() {
			return models.NewError(models.KindPaidOrderImmutable, "Order %s has been paid and cannot be deleted", orderID)
		}
		if age := s.cfg.Now().Sub(order.CreatedAt); age < s.cfg.DeleteWindow {
			return models.NewError(models.KindDeleteWindowExpired,
				"Order %s may still be in payment, it can be deleted %s after creation", orderID, s.cfg.DeleteWindow)
		}
		if err := tx.Orders.Delete(ctx, orderID); err != nil {
			if errors.Is(err, repositories.ErrRecordNotFound) {
				return models.NewError(models.KindOrderNotFound, "Order not found")
			}
			return err
		}
		removed = order
		return nil
	})
	if err != nil {
		return nil, s.internal(err, "Failed to remove order", log.Fields{"order_id": orderID})
	}

	s.metrics.RecordOrderRemoved()
	s.logger.WithField("order_id", orderID).Info("Order removed")
	s.publish(ctx, EventOrderRemoved, removed)
	return removed, nil
}

// ListOrders returns one page of all orders.
func (s *OrderService) ListOrders(ctx context.Context, query repositories.OrderQuery) ([]models.Order, repositories.PageMeta, error) {
	orders, meta, err := s.store.Repositories().Orders.GetAll(ctx, query)
	if err != nil {
		return nil, repositories.PageMeta{}, s.internal(err, "Failed to list orders", nil)
	}
	return orders, meta, nil
}

// ListUserOrders returns one page of the orders placed by userID.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string, query repositories.OrderQuery) ([]models.Order, repositories.PageMeta, error) {
	query.UserID = userID
	return s.ListOrders(ctx, query)
}

// GetOrder returns an order visible to requester. Customers only see their
// own orders; any other order is reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, orderID string, requester Requester) (*models.Order, error) {
	order, err := s.store.Repositories().Orders.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			return nil, models.NewError(models.KindOrderNotFound, "Order not found")
		}
		return nil, s.internal(err, "Failed to get order", log.Fields{"order_id": orderID})
	}
	if !requester.IsAdmin() && order.UserID != requester.UserID {
		return nil, models.NewError(models.KindOrderNotFound, "Order not found")
	}
	return order, nil
}

// TotalSales sums the totals of delivered, paid orders.
func (s *OrderService) TotalSales(ctx context.Context) (decimal.Decimal, error) {
	total, err := s.store.Repositories().Orders.TotalSales(ctx)
	if err != nil {
		return decimal.Zero, s.internal(err, "Failed to compute total sales", nil)
	}
	return total, nil
}
