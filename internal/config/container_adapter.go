package config

import (
	"github.com/garyjia/standort-workflow/internal/container"
	"github.com/garyjia/standort-workflow/internal/domain/entity"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	variants := make([]entity.VariantRule, 0, len(c.Workflow.Variants))
	for _, v := range c.Workflow.Variants {
		variants = append(variants, entity.VariantRule{
			Name:             v.Name,
			SkipBranchReview: v.SkipBranchReview,
			MaxSides:         v.MaxSides,
		})
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Workflow: container.WorkflowConfig{
			Variants: variants,
		},
	}
}
