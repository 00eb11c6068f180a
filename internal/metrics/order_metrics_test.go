package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOrderMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)

	m.RecordOrderPlaced()
	m.RecordOrderPlaced()
	m.RecordPaymentInitiationFailure()
	m.RecordVerification(VerificationPaid)
	m.RecordVerification(VerificationAlreadyPaid)
	m.RecordVerification(VerificationAlreadyPaid)
	m.RecordInventoryDecrement()
	m.RecordTransition("shipped")
	m.RecordOrderRemoved()
	m.RecordConflict("verify_payment")
	m.ObserveDuration("place_order", time.Now().Add(-time.Second))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersPlaced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentInitFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues(VerificationPaid)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.verifications.WithLabelValues(VerificationAlreadyPaid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inventoryDecrements))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("shipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersRemoved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("verify_payment")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestOrderMetrics_ReRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewOrderMetrics(reg)
	second := NewOrderMetrics(reg)

	first.RecordOrderPlaced()
	assert.Equal(t, 1.0, testutil.ToFloat64(second.ordersPlaced))
}

func TestOrderMetrics_NilIsNoop(t *testing.T) {
	var m *OrderMetrics
	assert.NotPanics(t, func() {
		m.RecordOrderPlaced()
		m.RecordVerification(VerificationEmpty)
		m.ObserveDuration("remove_order", time.Now())
	})
}
