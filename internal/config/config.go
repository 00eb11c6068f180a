package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the runtime configuration of the showroom service.
type Config struct {
	AppPort string

	StorageDriver string
	DatabaseDSN   string

	JWTSecret   string
	JWTTokenTTL time.Duration

	RabbitMQURL string

	ShurjopayEndpoint  string
	ShurjopayUsername  string
	ShurjopayPassword  string
	ShurjopayPrefix    string
	ShurjopayReturnURL string
	ShurjopayCancelURL string
	ShurjopayTimeout   time.Duration

	PaymentCurrency       string
	CustomerCity          string
	OrderIDPrefix         string
	OrderDeleteWindow     time.Duration
	OrderDeliveryLeadTime time.Duration

	AdminName     string
	AdminEmail    string
	AdminPassword string

	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("STORAGE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "carshop.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TOKEN_TTL", "24h")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("SP_ENDPOINT", "https://sandbox.shurjopayment.com")
	v.SetDefault("SP_USERNAME", "")
	v.SetDefault("SP_PASSWORD", "")
	v.SetDefault("SP_PREFIX", "SP")
	v.SetDefault("SP_RETURN_URL", "http://localhost:5173/order/verification")
	v.SetDefault("SP_CANCEL_URL", "http://localhost:5173/order/verification")
	v.SetDefault("SP_TIMEOUT", "15s")
	v.SetDefault("PAYMENT_CURRENCY", "BDT")
	v.SetDefault("CUSTOMER_CITY", "Dhaka")
	v.SetDefault("ORDER_ID_PREFIX", "INV")
	v.SetDefault("ORDER_DELETE_WINDOW", "30m")
	v.SetDefault("ORDER_DELIVERY_LEAD_TIME", "168h")
	v.SetDefault("ADMIN_NAME", "Administrator")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("METRICS_ENABLED", true)
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded, using environment only")
	}
	return fromViper(viper.New())
}

func fromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:               v.GetString("APP_PORT"),
		StorageDriver:         strings.ToLower(v.GetString("STORAGE_DRIVER")),
		DatabaseDSN:           v.GetString("DATABASE_DSN"),
		JWTSecret:             v.GetString("JWT_SECRET"),
		JWTTokenTTL:           v.GetDuration("JWT_TOKEN_TTL"),
		RabbitMQURL:           v.GetString("RABBITMQ_URL"),
		ShurjopayEndpoint:     v.GetString("SP_ENDPOINT"),
		ShurjopayUsername:     v.GetString("SP_USERNAME"),
		ShurjopayPassword:     v.GetString("SP_PASSWORD"),
		ShurjopayPrefix:       v.GetString("SP_PREFIX"),
		ShurjopayReturnURL:    v.GetString("SP_RETURN_URL"),
		ShurjopayCancelURL:    v.GetString("SP_CANCEL_URL"),
		ShurjopayTimeout:      v.GetDuration("SP_TIMEOUT"),
		PaymentCurrency:       v.GetString("PAYMENT_CURRENCY"),
		CustomerCity:          v.GetString("CUSTOMER_CITY"),
		OrderIDPrefix:         v.GetString("ORDER_ID_PREFIX"),
		OrderDeleteWindow:     v.GetDuration("ORDER_DELETE_WINDOW"),
		OrderDeliveryLeadTime: v.GetDuration("ORDER_DELIVERY_LEAD_TIME"),
		AdminName:             v.GetString("ADMIN_NAME"),
		AdminEmail:            v.GetString("ADMIN_EMAIL"),
		AdminPassword:         v.GetString("ADMIN_PASSWORD"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogFormat:             strings.ToLower(v.GetString("LOG_FORMAT")),
		MetricsEnabled:        v.GetBool("METRICS_ENABLED"),
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.StorageDriver != "memory" && c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required for %s storage", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.OrderDeleteWindow < 0 || c.OrderDeliveryLeadTime < 0 {
		return fmt.Errorf("order durations must not be negative")
	}
	if c.PaymentCurrency == "" || c.OrderIDPrefix == "" {
		return fmt.Errorf("PAYMENT_CURRENCY and ORDER_ID_PREFIX must not be empty")
	}
	return nil
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logger.
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
