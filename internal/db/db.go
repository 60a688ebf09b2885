// Package db owns the database handle: connection setup, schema
// migration, and seeding of the default model catalog.
package db

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"scribber/internal/model"
)

// Open connects to the database identified by url. A postgres:// URL gets
// the postgres driver; anything else is treated as a SQLite DSN, which is
// what tests and local development use.
func Open(url string, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		dialector = postgres.Open(url)
	} else {
		dialector = sqlite.Open(url)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialector.Name() == "sqlite" {
		// Cascading deletes need the pragma on.
		if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}

	log.Info().Str("driver", dialector.Name()).Msg("database connected")
	return gdb, nil
}

// Migrate creates or updates the schema for all persisted entities.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&model.User{},
		&model.ModelConfig{},
		&model.Project{},
		&model.UsageLog{},
		&model.Job{},
	)
}
