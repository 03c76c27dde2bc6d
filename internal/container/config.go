// Package container provides dependency injection and lifecycle management
// for the location workflow service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/standort-workflow/internal/domain/entity"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Workflow routing configuration
	Workflow WorkflowConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a writer waits for the database lock
	BusyTimeout time.Duration

	// SkipMigrations leaves the schema untouched on start
	SkipMigrations bool
}

// WorkflowConfig holds the variant catalog.
type WorkflowConfig struct {
	Variants []entity.VariantRule
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/standort.db",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Workflow: WorkflowConfig{
			Variants: entity.DefaultVariantRules(),
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if _, err := entity.NewVariantCatalog(c.Workflow.Variants); err != nil {
		return fmt.Errorf("workflow.variants: %w", err)
	}
	return nil
}
