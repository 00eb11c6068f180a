package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrUnauthorized is returned when the provider rejects the credentials.
var ErrUnauthorized = errors.New("payment provider rejected credentials")

// Config holds the merchant credentials of the Shurjopay gateway.
type Config struct {
	Endpoint  string
	Username  string
	Password  string
	Prefix    string
	ReturnURL string
	CancelURL string
	Timeout   time.Duration
}

// ShurjopayClient is a Gateway backed by the Shurjopay REST API.
type ShurjopayClient struct {
	httpClient *http.Client
	cfg        Config
	logger     *log.Entry

	mu        sync.Mutex
	token     string
	storeID   FlexString
	expiresAt time.Time
}

type tokenResponse struct {
	Token     string     `json:"token"`
	StoreID   FlexString `json:"store_id"`
	TokenType string     `json:"token_type"`
	Code      FlexString `json:"sp_code"`
	Message   string     `json:"message"`
	ExpiresIn int        `json:"expires_in"`
}

// NewShurjopayClient creates a new instance of ShurjopayClient.
func NewShurjopayClient(cfg Config, logger *log.Entry) *ShurjopayClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &ShurjopayClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger.WithField("component", "shurjopay"),
	}
}

func (c *ShurjopayClient) post(ctx context.Context, path, token string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal req payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("shurjopay error %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode shurjopay response: %w", err)
	}
	return nil
}

// authenticate returns a cached token, fetching a new one once the previous
// token is about to expire.
func (c *ShurjopayClient) authenticate(ctx context.Context) (string, FlexString, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiresAt) {
		return c.token, c.storeID, nil
	}

	var res tokenResponse
	payload := map[string]string{"username": c.cfg.Username, "password": c.cfg.Password}
	if err := c.post(ctx, "/api/get_token", "", payload, &res); err != nil {
		return "", "", fmt.Errorf("get shurjopay token: %w", err)
	}
	if res.Token == "" {
		return "", "", fmt.Errorf("get shurjopay token: %w: %s", ErrUnauthorized, res.Message)
	}

	ttl := time.Duration(res.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	c.token = res.Token
	c.storeID = res.StoreID
	c.expiresAt = time.Now().Add(ttl - time.Minute)
	return c.token, c.storeID, nil
}

func (c *ShurjopayClient) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// withToken runs call with a valid token, refreshing it once if the provider
// rejects a cached one.
func (c *ShurjopayClient) withToken(ctx context.Context, call func(token string, storeID FlexString) error) error {
	token, storeID, err := c.authenticate(ctx)
	if err != nil {
		return err
	}
	err = call(token, storeID)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}
	c.invalidate()
	if token, storeID, err = c.authenticate(ctx); err != nil {
		return err
	}
	return call(token, storeID)
}

// SubmitPayment implements Gateway.
func (c *ShurjopayClient) SubmitPayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	var res PaymentResponse
	err := c.withToken(ctx, func(token string, storeID FlexString) error {
		payload := map[string]interface{}{
			"token":              token,
			"store_id":           storeID,
			"prefix":             c.cfg.Prefix,
			"return_url":         c.cfg.ReturnURL,
			"cancel_url":         c.cfg.CancelURL,
			"amount":             req.Amount.StringFixed(2),
			"order_id":           req.OrderID,
			"currency":           req.Currency,
			"customer_name":      req.CustomerName,
			"customer_address":   req.CustomerAddress,
			"customer_email":     req.CustomerEmail,
			"customer_phone":     req.CustomerPhone,
			"customer_city":      req.CustomerCity,
			"customer_post_code": "",
			"client_ip":          req.ClientIP,
		}
		return c.post(ctx, "/api/secret-pay", token, payload, &res)
	})
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(log.Fields{
		"order_id":    req.OrderID,
		"sp_order_id": res.ProviderOrderID,
		"status":      res.TransactionStatus,
	}).Debug("payment submitted")
	return &res, nil
}

// VerifyPayment implements Gateway.
func (c *ShurjopayClient) VerifyPayment(ctx context.Context, providerOrderID string) ([]Verification, error) {
	var res []Verification
	err := c.withToken(ctx, func(token string, _ FlexString) error {
		res = nil
		return c.post(ctx, "/api/verification", token, map[string]string{"order_id": providerOrderID}, &res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
