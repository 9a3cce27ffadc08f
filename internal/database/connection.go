// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/modelmint/modelmint-backend/internal/config"
	"github.com/modelmint/modelmint-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.User{},
		&models.Store{},
		&models.Generation{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.WebhookEvent{},
		&models.DeadLetterEntry{},
		&models.Royalty{},
		&models.Transfer{},
		&models.AuditLog{},
		&models.AdminNotification{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)",
		"CREATE INDEX IF NOT EXISTS idx_users_training_job ON users(training_job_id)",
		"CREATE INDEX IF NOT EXISTS idx_users_stripe_account ON users(stripe_account_id)",

		// Webhook event indexes; the retry scheduler selects on (status, retry_count, updated_at)
		"CREATE INDEX IF NOT EXISTS idx_webhook_events_source_status ON webhook_events(source, status)",
		"CREATE INDEX IF NOT EXISTS idx_webhook_events_retryable ON webhook_events(status, retry_count, updated_at)",
		"CREATE INDEX IF NOT EXISTS idx_webhook_events_created_at ON webhook_events(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_dead_letter_reviewed ON dead_letter_entries(reviewed, created_at DESC)",

		// Order / payout indexes
		"CREATE INDEX IF NOT EXISTS idx_orders_session ON orders(stripe_session_id)",
		"CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_transfers_order ON transfers(order_id)",
		"CREATE INDEX IF NOT EXISTS idx_transfers_external ON transfers(external_transfer_id)",
		"CREATE INDEX IF NOT EXISTS idx_royalties_order_creator ON royalties(order_id, creator_id)",
		"CREATE INDEX IF NOT EXISTS idx_royalties_status ON royalties(status)",

		// Generation / product indexes
		"CREATE INDEX IF NOT EXISTS idx_generations_prediction ON generations(prediction_id)",
		"CREATE INDEX IF NOT EXISTS idx_generations_status ON generations(status)",
		"CREATE INDEX IF NOT EXISTS idx_products_store_status ON products(store_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_products_creator ON products(creator_id)",

		// Admin indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_admin_notifications_status ON admin_notifications(status, priority)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
