// Package metrics exposes Prometheus collectors for the order workflow.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Verification outcomes.
const (
	VerificationPaid        = "paid"
	VerificationAlreadyPaid = "already_paid"
	VerificationUnpaid      = "unpaid"
	VerificationEmpty       = "empty"
	VerificationFailed      = "failed"
)

// OrderMetrics holds the collectors of the order workflow. A nil
// *OrderMetrics is valid and records nothing.
type OrderMetrics struct {
	ordersPlaced        prometheus.Counter
	paymentInitFailures prometheus.Counter
	ordersRemoved       prometheus.Counter
	inventoryDecrements prometheus.Counter
	verifications       *prometheus.CounterVec
	transitions         *prometheus.CounterVec
	conflicts           *prometheus.CounterVec
	duration            *prometheus.HistogramVec
}

// NewOrderMetrics registers the order collectors with registerer, or with the
// default registerer when nil. Registering twice reuses the existing
// collectors.
func NewOrderMetrics(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersPlaced: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carshop_orders_placed_total",
			Help: "Total number of orders recorded and handed to the payment provider",
		})),
		paymentInitFailures: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carshop_payment_initiation_failures_total",
			Help: "Total number of orders whose payment could not be initiated",
		})),
		ordersRemoved: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carshop_orders_removed_total",
			Help: "Total number of abandoned orders removed",
		})),
		inventoryDecrements: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carshop_inventory_decrements_total",
			Help: "Total number of inventory decrements applied for paid orders",
		})),
		verifications: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carshop_payment_verifications_total",
			Help: "Total number of payment verifications by outcome",
		}, []string{"result"})),
		transitions: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carshop_order_transitions_total",
			Help: "Total number of order status transitions by target status",
		}, []string{"status"})),
		conflicts: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carshop_concurrency_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts by operation",
		}, []string{"operation"})),
		duration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carshop_workflow_duration_seconds",
			Help:    "Duration of order workflow operations in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"})),
	}
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			existing, ok := already.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector already registered with unexpected type %T", already.ExistingCollector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector: %v", err))
	}
	return collector
}

// RecordOrderPlaced counts an order handed to the provider.
func (m *OrderMetrics) RecordOrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// RecordPaymentInitiationFailure counts a failed checkout.
func (m *OrderMetrics) RecordPaymentInitiationFailure() {
	if m == nil {
		return
	}
	m.paymentInitFailures.Inc()
}

// RecordVerification counts a verification outcome.
func (m *OrderMetrics) RecordVerification(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(result).Inc()
}

// RecordInventoryDecrement counts a stock decrement.
func (m *OrderMetrics) RecordInventoryDecrement() {
	if m == nil {
		return
	}
	m.inventoryDecrements.Inc()
}

// RecordTransition counts a status change.
func (m *OrderMetrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// RecordOrderRemoved counts a removal.
func (m *OrderMetrics) RecordOrderRemoved() {
	if m == nil {
		return
	}
	m.ordersRemoved.Inc()
}

// RecordConflict counts a version conflict hit by operation.
func (m *OrderMetrics) RecordConflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation).Inc()
}

// ObserveDuration records how long operation took since start.
func (m *OrderMetrics) ObserveDuration(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
