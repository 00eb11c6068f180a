package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"carshop/internal/config"
	"carshop/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		AppPort:           ":0",
		StorageDriver:     "memory",
		JWTSecret:         "test_jwt_secret",
		ShurjopayEndpoint: "http://127.0.0.1:1",
		PaymentCurrency:   "BDT",
		OrderIDPrefix:     "INV",
		OrderDeleteWindow: 30 * time.Minute,
		AdminName:         "Admin",
		AdminEmail:        "admin@example.com",
		AdminPassword:     "admin123",
		LogLevel:          "info",
		MetricsEnabled:    true,
	}
}

func get(t *testing.T, a *application, path string) (*http.Response, string) {
	t.Helper()
	resp, err := a.app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServerStartupAndHealthCheck(t *testing.T) {
	cfg := testConfig()
	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.close()
	require.NoError(t, a.start(context.Background(), cfg))

	t.Run("HealthCheck", func(t *testing.T) {
		resp, body := get(t, a, "/health")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `"status":"healthy"`)
		assert.Contains(t, body, `"rabbitmq":"disabled"`)
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, body := get(t, a, "/metrics")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "carshop_orders_placed_total")
	})

	t.Run("UnauthenticatedAccess", func(t *testing.T) {
		resp, _ := get(t, a, "/api/v1/orders")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp, _ = get(t, a, "/api/v1/cars")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = get(t, a, "/api/v1/users")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("AdminSeeded", func(t *testing.T) {
		token, err := a.authService.LoginUser(context.Background(), "admin@example.com", "admin123")
		require.NoError(t, err)
		claims, err := a.authService.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, claims["role"])
	})
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = false
	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.close()

	resp, _ := get(t, a, "/metrics")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSQLiteStorage(t *testing.T) {
	cfg := testConfig()
	cfg.StorageDriver = "sqlite"
	cfg.DatabaseDSN = "file:main_test?mode=memory&cache=shared"
	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.close()

	resp, body := get(t, a, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"database":"connected"`)
}

func TestVerificationHandlerDiscardsHopelessRequests(t *testing.T) {
	a, err := newApp(testConfig())
	require.NoError(t, err)
	defer a.close()

	// An empty id can never be verified, so it must not be requeued.
	assert.NoError(t, verificationHandler(a.orderService)(context.Background(), ""))
}
