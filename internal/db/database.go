package db

import (
	"log"
	"time"

	"chainvault-backend/internal/config"
	"chainvault-backend/internal/metrics"
	"chainvault-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB connects to the database and migrates the schema. Fatal on
// failure; the service cannot run without its persistence layer.
func InitDB() {
	var err error

	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	DB, err = gorm.Open(postgres.Open(config.AppConfig.Database.DSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		CreateBatchSize:                          1000,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		log.Fatalf("Failed to connect database: %v", err)
	}

	if err := DB.AutoMigrate(
		&models.AssetLedger{},
		&models.Position{},
		&models.Strategy{},
		&models.SupportedChain{},
		&models.Allocation{},
		&models.PendingOperation{},
		&models.ProcessedMessage{},
	); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	metrics.DBConnectionStatus.Set(1)
	log.Println("Database connected and schema migrated")
}

// HealthCheck pings the database and updates the connection gauge
func HealthCheck() error {
	sqlDB, err := DB.DB()
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		return err
	}
	if err := sqlDB.Ping(); err != nil {
		metrics.DBConnectionStatus.Set(0)
		return err
	}
	metrics.DBConnectionStatus.Set(1)
	return nil
}

// Close releases the underlying connection pool
func Close() {
	if DB == nil {
		return
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return
	}
	sqlDB.SetConnMaxLifetime(time.Second)
	_ = sqlDB.Close()
	metrics.DBConnectionStatus.Set(0)
}
