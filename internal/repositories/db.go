// Package repositories provides data access layer implementations.
// It handles all database operations and data persistence logic.
package repositories

import (
	"fmt"
	"log"
	"os"
	"time"

	"pearlbingo/internal/config"
	"pearlbingo/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig holds database connection pool configuration
type DBConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

var defaultDBConfig = DBConfig{
	MaxIdleConns:    10,
	MaxOpenConns:    100,
	ConnMaxLifetime: time.Hour,
	ConnMaxIdleTime: time.Minute * 30,
}

// OpenPostgres connects to Postgres, configures the pool and runs migrations.
func OpenPostgres(cfg config.Config) (*gorm.DB, error) {
	// Configure GORM logger to ignore "record not found" errors
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  !config.IsProduction(),
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	pool := defaultDBConfig
	pool.MaxIdleConns = config.GetIntEnv("DB_MAX_IDLE_CONNS", pool.MaxIdleConns)
	pool.MaxOpenConns = config.GetIntEnv("DB_MAX_OPEN_CONNS", pool.MaxOpenConns)
	pool.ConnMaxLifetime = config.GetDurationEnv("DB_CONN_MAX_LIFETIME", pool.ConnMaxLifetime)
	pool.ConnMaxIdleTime = config.GetDurationEnv("DB_CONN_MAX_IDLE_TIME", pool.ConnMaxIdleTime)

	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates the ledger tables. The unique indexes on transactions.reference,
// gateway_transactions.external_charge_id and webhook_events.external_event_id
// back the idempotency guarantees and must not be dropped.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Transaction{},
		&models.DepositRequest{},
		&models.GatewayTransaction{},
		&models.WebhookEvent{},
		&models.Game{},
		&models.BingoCard{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
