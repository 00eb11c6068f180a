package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	amqp "github.com/streadway/amqp"
)

// Defaults for the order exchange and the verification queue.
const (
	DefaultExchange          = "carshop.orders"
	DefaultVerificationQueue = "payment_verification_queue"
)

// ErrMalformedMessage marks a delivery that can never be processed.
var ErrMalformedMessage = errors.New("malformed message")

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	logger  *log.Entry

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL               string
	Exchange          string
	VerificationQueue string
}

func (c Config) withDefaults() Config {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.VerificationQueue == "" {
		c.VerificationQueue = DefaultVerificationQueue
	}
	return c
}

// NewClient connects to RabbitMQ, declares the order exchange and the
// verification queue.
func NewClient(cfg Config, logger *log.Entry) (*Client, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	if _, err := ch.QueueDeclare(
		cfg.VerificationQueue, // name
		true,                  // durable
		false,                 // delete when unused
		false,                 // exclusive
		false,                 // no-wait
		nil,                   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", cfg.VerificationQueue, err)
	}

	logger = logger.WithField("component", "rabbitmq")
	logger.WithFields(log.Fields{
		"exchange": cfg.Exchange,
		"queue":    cfg.VerificationQueue,
	}).Info("RabbitMQ client connected")

	return &Client{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// newPublishing wraps payload as a persistent JSON message.
func newPublishing(payload interface{}, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
	}, nil
}

// Publish sends payload to the order exchange under routingKey.
func (c *Client) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := newPublishing(payload, time.Now())
	if err != nil {
		return err
	}

	c.mu.Lock()
	err = c.channel.Publish(
		c.cfg.Exchange, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		msg,
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	c.logger.WithField("routing_key", routingKey).Debug("Event published")
	return nil
}

// VerificationHandler reconciles the payment with the given provider order id.
type VerificationHandler func(ctx context.Context, providerOrderID string) error

type verificationRequest struct {
	OrderID string `json:"order_id"`
}

func parseVerificationRequest(body []byte) (string, error) {
	var req verificationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	id := strings.TrimSpace(req.OrderID)
	if id == "" {
		return "", fmt.Errorf("%w: order_id is missing", ErrMalformedMessage)
	}
	return id, nil
}

// ConsumeVerificationRequests reads payment callbacks from the verification
// queue and runs handler for each until ctx is cancelled. Processed messages
// are acked, malformed ones dropped, and failed ones requeued once.
func (c *Client) ConsumeVerificationRequests(ctx context.Context, handler VerificationHandler) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	c.mu.Lock()
	msgs, err := c.channel.Consume(
		c.cfg.VerificationQueue, // queue
		"",                      // consumer
		false,                   // auto-ack
		false,                   // exclusive
		false,                   // no-local
		false,                   // no-wait
		nil,                     // args
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.WithField("queue", c.cfg.VerificationQueue).Info("Waiting for payment verification requests")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("Verification delivery channel closed")
					return
				}
				processDelivery(ctx, c.logger, msg, handler)
			}
		}
	}()
	return nil
}

// processDelivery runs handler for one delivery and settles it.
func processDelivery(ctx context.Context, logger *log.Entry, msg amqp.Delivery, handler VerificationHandler) {
	entry := logger.WithField("delivery_tag", msg.DeliveryTag)

	providerOrderID, err := parseVerificationRequest(msg.Body)
	if err != nil {
		entry.WithError(err).Warn("Dropping verification request")
		if nackErr := msg.Nack(false, false); nackErr != nil {
			entry.WithError(nackErr).Error("Failed to nack message")
		}
		return
	}

	entry = entry.WithField("sp_order_id", providerOrderID)
	if err := handler(ctx, providerOrderID); err != nil {
		requeue := !msg.Redelivered
		entry.WithError(err).WithField("requeue", requeue).Warn("Verification request failed")
		if nackErr := msg.Nack(false, requeue); nackErr != nil {
			entry.WithError(nackErr).Error("Failed to nack message")
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		entry.WithError(ackErr).Error("Failed to ack message")
	}
}
