// Package payment talks to the hosted-checkout payment provider.
package payment

import (
	"context"
	"encoding/json"
	"strings"

	"carshop/internal/models"

	"github.com/shopspring/decimal"
)

// Gateway initiates payments and reports their status. Implementations must
// be safe for concurrent use.
type Gateway interface {
	// SubmitPayment registers a payment and returns the checkout handle.
	SubmitPayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
	// VerifyPayment returns the provider's records for a provider order id.
	// An empty slice means the provider has nothing to report yet.
	VerifyPayment(ctx context.Context, providerOrderID string) ([]Verification, error)
}

// PaymentRequest describes one checkout.
type PaymentRequest struct {
	Amount          decimal.Decimal
	OrderID         string
	Currency        string
	CustomerName    string
	CustomerAddress string
	CustomerEmail   string
	CustomerPhone   string
	CustomerCity    string
	ClientIP        string
}

// PaymentResponse is the provider's answer to a checkout request.
type PaymentResponse struct {
	CheckoutURL       string `json:"checkout_url"`
	ProviderOrderID   string `json:"sp_order_id"`
	CustomerOrderID   string `json:"customer_order_id"`
	TransactionStatus string `json:"transactionStatus"`
}

// Verification is one provider record for a payment.
type Verification struct {
	OrderID           string     `json:"order_id"`
	CustomerOrderID   string     `json:"customer_order_id"`
	Amount            FlexString `json:"amount"`
	Currency          string     `json:"currency"`
	BankStatus        string     `json:"bank_status"`
	Code              FlexString `json:"sp_code"`
	Message           string     `json:"sp_message"`
	TransactionStatus string     `json:"transaction_status"`
	Method            string     `json:"method"`
	DateTime          string     `json:"date_time"`
}

// ToPayment builds the payment record stored on an order. The record is
// built from scratch so no field of a previous record survives.
func (v Verification) ToPayment(providerOrderID string) models.Payment {
	return models.Payment{
		ProviderID:        providerOrderID,
		TransactionStatus: v.TransactionStatus,
		BankStatus:        v.BankStatus,
		Code:              string(v.Code),
		Message:           v.Message,
		Method:            v.Method,
		DateTime:          v.DateTime,
	}
}

// FlexString accepts a JSON string, number or null.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = FlexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}
