// Package gormrepo provides gorm-backed implementations of the page and
// execution repositories, with a dialector registry covering SQLite, MySQL
// and PostgreSQL.
package gormrepo

import (
	"fmt"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	config "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/config"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

// DialectorFactory builds a gorm.Dialector from a database configuration.
type DialectorFactory func(cfg *config.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given driver name.
func RegisterDialector(driver string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[driver]; exists {
		logger.Warnf("Dialector for driver '%s' already registered. Overwriting.", driver)
	}
	dialectorRegistry[driver] = factory
}

// GetDialectorFactory retrieves the DialectorFactory for the specified driver.
func GetDialectorFactory(driver string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[driver]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database driver: %s", driver)
	}
	return factory, nil
}

func init() {
	RegisterDialector("sqlite", func(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite database path cannot be empty")
		}
		return sqlite.Open(cfg.DSN), nil
	})
	RegisterDialector("mysql", func(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.DSN == "" {
			return nil, fmt.Errorf("mysql DSN cannot be empty")
		}
		return mysql.Open(cfg.DSN), nil
	})
	RegisterDialector("postgres", func(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres DSN cannot be empty")
		}
		return postgres.Open(cfg.DSN), nil
	})
}

// NewConnection opens a gorm connection for the configured driver and runs
// schema migration for the curation tables.
func NewConnection(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	factory, err := GetDialectorFactory(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dialector, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", cfg.Driver, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm connection: %w", err)
	}

	if err := db.AutoMigrate(&pageEntity{}, &executionEntity{}); err != nil {
		return nil, fmt.Errorf("failed to migrate curation schema: %w", err)
	}
	logger.Infof("Database connection established (%s)", cfg.Driver)
	return db, nil
}
