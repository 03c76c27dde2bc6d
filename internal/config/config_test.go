package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/standort-workflow/internal/domain/entity"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/standort.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, "json", cfg.Logger.Format)

	catalog, err := cfg.VariantCatalog()
	require.NoError(t, err)
	assert.Len(t, catalog.Names(), 5)
	assert.True(t, catalog.SkipsBranchReview(entity.VariantDigitaleSaeule))
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  mode: debug
database:
  path: /var/lib/standort/standort.db
logger:
  level: debug
  format: console
workflow:
  variants:
    - name: Digitale Säule
      skip_branch_review: true
      max_sides: 3
    - name: Roadside-Screen
      max_sides: 2
report:
  default_days: 90
`)
	t.Setenv("STANDORT_SERVER_PORT", "9191")
	t.Setenv("STANDORT_LOGGER_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port, "environment overrides file")
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "/var/lib/standort/standort.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.Equal(t, 90, cfg.Report.DefaultDays)

	require.Len(t, cfg.Workflow.Variants, 2)
	assert.True(t, cfg.Workflow.Variants[0].SkipBranchReview)
	assert.False(t, cfg.Workflow.Variants[1].SkipBranchReview)

	cc := cfg.ToContainerConfig()
	assert.Equal(t, cfg.Database.Path, cc.Database.Path)
	assert.Equal(t, "Roadside-Screen", cc.Workflow.Variants[1].Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad mode", func(c *Config) { c.Server.Mode = "verbose" }, "server.mode"},
		{"empty db path", func(c *Config) { c.Database.Path = " " }, "database.path"},
		{"unknown log level", func(c *Config) { c.Logger.Level = "chatty" }, "logger.level"},
		{"unknown log format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"negative report days", func(c *Config) { c.Report.DefaultDays = -1 }, "report.default_days"},
		{"empty catalog", func(c *Config) { c.Workflow.Variants = nil }, "workflow.variants"},
		{"duplicate variant", func(c *Config) {
			c.Workflow.Variants = []VariantConfig{{Name: "A", MaxSides: 1}, {Name: "A", MaxSides: 2}}
		}, "duplicate"},
		{"too many sides", func(c *Config) {
			c.Workflow.Variants = []VariantConfig{{Name: "A", MaxSides: 4}}
		}, "max_sides"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
