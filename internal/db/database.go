package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shieldswap-client/internal/config"
	"shieldswap-client/internal/metrics"
	"shieldswap-client/internal/models"
)

// DB is the shared connection, set by InitDB.
var DB *gorm.DB

// InitDB connects to Postgres and migrates the note schema. In ephemeral
// mode the daemon skips this entirely and keeps notes in memory.
func InitDB() error {
	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	var err error
	DB, err = gorm.Open(postgres.Open(config.AppConfig.Database.DSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		return fmt.Errorf("failed to connect database: %w", err)
	}

	if err := DB.AutoMigrate(&models.Note{}); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}

	metrics.DBConnectionStatus.Set(1)
	return nil
}

// Close releases the underlying connection pool.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	metrics.DBConnectionStatus.Set(0)
	return sqlDB.Close()
}
