package repositories

import (
	"context"
	"fmt"

	"carshop/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repositories bundles the repositories bound to one connection or transaction.
type Repositories struct {
	Cars   CarRepository
	Orders OrderRepository
	Users  UserRepository
}

// Store hands out repositories and runs all-or-nothing units of work.
type Store interface {
	// Repositories returns repositories that run outside any transaction.
	Repositories() Repositories
	// WithTransaction runs fn against transaction-scoped repositories. Every
	// write fn makes is committed together, or none is when fn returns an error.
	WithTransaction(ctx context.Context, fn func(tx Repositories) error) error
}

// GORMStore is a Store backed by a GORM connection.
type GORMStore struct {
	db *gorm.DB
}

// NewGORMStore creates a new instance of GORMStore.
func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{db: db}
}

func newGORMRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Cars:   NewGORMCarRepository(db),
		Orders: NewGORMOrderRepository(db),
		Users:  NewGORMUserRepository(db),
	}
}

// Repositories implements Store.
func (s *GORMStore) Repositories() Repositories {
	return newGORMRepositories(s.db)
}

// WithTransaction implements Store using a native database transaction.
func (s *GORMStore) WithTransaction(ctx context.Context, fn func(tx Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newGORMRepositories(tx))
	})
}

// OpenDatabase connects to the configured driver ("postgres" or "sqlite").
func OpenDatabase(driver, dsn string, silent bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	cfg := &gorm.Config{TranslateError: true}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// SQLite allows a single writer; one pooled connection makes
		// concurrent transactions queue instead of failing with "locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// AutoMigrate creates or updates the schema for every persisted model.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Car{}, &models.User{}, &models.Order{}, &models.OrderSequence{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}
