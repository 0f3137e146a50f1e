package database

import (
	"fmt"
	"log/slog"

	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.SSLMode == "disable" && cfg.Driver == "postgres" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying db: %w", err)
	}

	// Connection pool settings
	if cfg.Driver == "sqlite" {
		// A single writer; an in-memory database also lives on one connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}

	log.Info("connected to database", "driver", cfg.Driver, "database", cfg.Name)

	return db, nil
}

// AutoMigrate creates or updates every table from the gorm models. The
// versioned SQL migrations in Migrate are the source of truth for postgres.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// Prepare brings the schema up to date on startup when AUTO_MIGRATE is set.
func Prepare(db *gorm.DB, cfg *config.DatabaseConfig, log *slog.Logger) error {
	if !cfg.AutoMigrate {
		return nil
	}

	if cfg.Driver != "postgres" {
		log.Info("auto-migrating schema", "driver", cfg.Driver)
		return AutoMigrate(db)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}
	m, err := NewMigrator(sqlDB, log)
	if err != nil {
		return err
	}
	defer m.Close()

	return m.Up()
}
