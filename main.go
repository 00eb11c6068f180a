package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carshop/internal/config"
	"carshop/internal/handlers"
	"carshop/internal/metrics"
	"carshop/internal/middleware"
	"carshop/internal/models"
	"carshop/internal/payment"
	"carshop/internal/repositories"
	"carshop/internal/services"
	"carshop/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// application holds the wired server and the resources it must release.
type application struct {
	app          *fiber.App
	db           *gorm.DB
	mq           *rabbitmq.Client
	orderService *services.OrderService
	authService  *services.AuthService
}

func openStore(cfg *config.Config) (repositories.Store, *gorm.DB, error) {
	if cfg.StorageDriver == "memory" {
		log.Warn("Using in-memory storage, data is lost on restart")
		return repositories.NewMemoryStore(), nil, nil
	}
	db, err := repositories.OpenDatabase(cfg.StorageDriver, cfg.DatabaseDSN, cfg.LogLevel != "debug")
	if err != nil {
		return nil, nil, err
	}
	if err := repositories.AutoMigrate(db); err != nil {
		return nil, nil, err
	}
	return repositories.NewGORMStore(db), db, nil
}

// newApp wires every component from cfg. RabbitMQ is optional: when it is
// not configured or unreachable, events are not published.
func newApp(cfg *config.Config) (*application, error) {
	store, db, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &application{db: db}

	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log.WithField("app", "carshop"))
		if err != nil {
			log.WithError(err).Warn("RabbitMQ unavailable, order events are disabled")
		} else {
			a.mq = mq
			events = mq
		}
	}

	var registry *prometheus.Registry
	var orderMetrics *metrics.OrderMetrics
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		orderMetrics = metrics.NewOrderMetrics(registry)
	}

	gateway := payment.NewShurjopayClient(payment.Config{
		Endpoint:  cfg.ShurjopayEndpoint,
		Username:  cfg.ShurjopayUsername,
		Password:  cfg.ShurjopayPassword,
		Prefix:    cfg.ShurjopayPrefix,
		ReturnURL: cfg.ShurjopayReturnURL,
		CancelURL: cfg.ShurjopayCancelURL,
		Timeout:   cfg.ShurjopayTimeout,
	}, log.NewEntry(log.StandardLogger()))

	repos := store.Repositories()
	serviceLogger := log.NewEntry(log.StandardLogger())
	a.authService = services.NewAuthService(repos.Users, cfg.JWTSecret, cfg.JWTTokenTTL, serviceLogger)
	carService := services.NewCarService(repos.Cars, serviceLogger)
	a.orderService = services.NewOrderService(store, gateway, events, orderMetrics, services.OrderServiceConfig{
		IDPrefix:         cfg.OrderIDPrefix,
		Currency:         cfg.PaymentCurrency,
		CustomerCity:     cfg.CustomerCity,
		DeleteWindow:     cfg.OrderDeleteWindow,
		DeliveryLeadTime: cfg.OrderDeliveryLeadTime,
	}, serviceLogger)

	validate := handlers.NewValidator()
	authHandler := handlers.NewAuthHandler(a.authService, validate)
	userHandler := handlers.NewUserHandler(services.NewUserService(repos.Users, serviceLogger), validate)
	carHandler := handlers.NewCarHandler(carService, validate)
	orderHandler := handlers.NewOrderHandler(a.orderService, validate)

	app := fiber.New(fiber.Config{AppName: "carshop"})
	app.Use(recover.New())
	app.Use(logger.New()) // Request logger

	apiV1 := app.Group("/api/v1")
	auth := middleware.AuthRequired(a.authService)
	authHandler.RegisterRoutes(apiV1, auth)
	userHandler.RegisterRoutes(apiV1, auth)
	carHandler.RegisterRoutes(apiV1, auth)
	orderHandler.RegisterRoutes(apiV1, auth)

	app.Get("/health", a.handleHealth)
	if registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	a.app = app
	return a, nil
}

func (a *application) handleHealth(c *fiber.Ctx) error {
	status := fiber.StatusOK
	body := fiber.Map{
		"status":   "healthy",
		"time":     time.Now().Format(time.RFC3339),
		"rabbitmq": "disabled",
		"database": "memory",
	}
	if a.mq != nil {
		body["rabbitmq"] = "connected"
	}
	if a.db != nil {
		body["database"] = "connected"
		sqlDB, err := a.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			log.WithError(err).Warn("Database health check failed")
			status = fiber.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["database"] = "unreachable"
		}
	}
	return c.Status(status).JSON(body)
}

// verificationHandler turns payment callbacks into VerifyPayment calls.
// Requests that can never succeed are logged and acknowledged.
func verificationHandler(svc *services.OrderService) rabbitmq.VerificationHandler {
	return func(ctx context.Context, providerOrderID string) error {
		_, err := svc.VerifyPayment(ctx, providerOrderID)
		if err == nil {
			return nil
		}
		switch models.KindOf(err) {
		case models.KindOrderNotFound, models.KindInvalidRequest, models.KindInsufficientInventory:
			log.WithError(err).WithField("sp_order_id", providerOrderID).Warn("Verification request discarded")
			return nil
		}
		return err
	}
}

// start seeds the operator account and starts the callback consumer.
func (a *application) start(ctx context.Context, cfg *config.Config) error {
	if err := a.authService.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	if a.mq != nil {
		if err := a.mq.ConsumeVerificationRequests(ctx, verificationHandler(a.orderService)); err != nil {
			log.WithError(err).Warn("Failed to start payment verification consumer")
		}
	}
	return nil
}

func (a *application) close() {
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			log.WithError(err).Warn("Error closing RabbitMQ client")
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	cfg.ConfigureLogging()

	a, err := newApp(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.start(ctx, cfg); err != nil {
		log.WithError(err).Fatal("Failed to start application")
	}

	go func() {
		log.WithField("port", cfg.AppPort).Info("Starting server")
		if err := a.app.Listen(cfg.AppPort); err != nil {
			log.WithError(err).Error("Server stopped")
			stop()
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()
	log.Info("Shutting down server...")

	if err := a.app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("Error during Fiber shutdown")
	}
	log.Info("Server gracefully stopped")
}
