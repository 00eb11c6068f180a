package config

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppPort)
	assert.Equal(t, "sqlite", cfg.StorageDriver)
	assert.Equal(t, "BDT", cfg.PaymentCurrency)
	assert.Equal(t, "INV", cfg.OrderIDPrefix)
	assert.Equal(t, 30*time.Minute, cfg.OrderDeleteWindow)
	assert.Equal(t, 7*24*time.Hour, cfg.OrderDeliveryLeadTime)
	assert.Equal(t, 24*time.Hour, cfg.JWTTokenTTL)
	assert.True(t, cfg.MetricsEnabled)
	assert.Empty(t, cfg.RabbitMQURL)
}

func TestFromViper_Environment(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("ORDER_DELETE_WINDOW", "45m")
	t.Setenv("ORDER_ID_PREFIX", "CAR")
	t.Setenv("SP_USERNAME", "sp_sandbox")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.Equal(t, 45*time.Minute, cfg.OrderDeleteWindow)
	assert.Equal(t, "CAR", cfg.OrderIDPrefix)
	assert.Equal(t, "sp_sandbox", cfg.ShurjopayUsername)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			StorageDriver:   "sqlite",
			DatabaseDSN:     "carshop.db",
			JWTSecret:       "secret",
			PaymentCurrency: "BDT",
			OrderIDPrefix:   "INV",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"memory needs no dsn", func(c *Config) { c.StorageDriver = "memory"; c.DatabaseDSN = "" }, true},
		{"unknown driver", func(c *Config) { c.StorageDriver = "mongo" }, false},
		{"missing dsn", func(c *Config) { c.DatabaseDSN = "" }, false},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, false},
		{"negative window", func(c *Config) { c.OrderDeleteWindow = -time.Minute }, false},
		{"empty prefix", func(c *Config) { c.OrderIDPrefix = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfigureLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	defer log.SetFormatter(log.StandardLogger().Formatter)

	cfg := &Config{LogLevel: "debug", LogFormat: "json"}
	cfg.ConfigureLogging()
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	cfg = &Config{LogLevel: "nonsense", LogFormat: "text"}
	cfg.ConfigureLogging()
	assert.Equal(t, log.InfoLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
}
