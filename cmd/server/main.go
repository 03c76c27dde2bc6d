package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/standort-workflow/internal/application/service"
	"github.com/garyjia/standort-workflow/internal/config"
	"github.com/garyjia/standort-workflow/internal/container"
	httpserver "github.com/garyjia/standort-workflow/internal/interfaces/http"
	"github.com/garyjia/standort-workflow/pkg/database"
	"github.com/garyjia/standort-workflow/pkg/utils"
)

const version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "standortd",
	Short:         "Approval workflow for advertising display locations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		logger.Info("Starting standort workflow",
			zap.String("version", version),
			zap.Int("port", cfg.Server.Port))

		c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
		if err != nil {
			return err
		}
		defer c.Close()

		// Wait for interrupt signal to gracefully shutdown the server
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("failed to start container: %w", err)
		}

		server := httpserver.NewServer(httpserver.ServerConfig{
			Host:              cfg.Server.Host,
			Port:              cfg.Server.Port,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			ShutdownTimeout:   cfg.Server.ShutdownTimeout,
			Mode:              cfg.Server.Mode,
			AllowedOrigins:    cfg.CORS.AllowedOrigins,
			AllowedMethods:    cfg.CORS.AllowedMethods,
			AllowedHeaders:    cfg.CORS.AllowedHeaders,
			CORSMaxAge:        cfg.CORS.MaxAge,
			DefaultReportDays: cfg.Report.DefaultDays,
		}, httpserver.Deps{
			Engine:    c.WorkflowEngine(),
			Locations: c.Services().Location,
			Reports:   c.Services().Report,
			Health:    c,
		}, c.ServiceLogger())

		if err := server.Start(ctx); err != nil {
			return err
		}

		logger.Info("Server exited successfully")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and print the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := database.New(database.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			BusyTimeout:     cfg.Database.BusyTimeout,
		}, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		migrator := database.NewMigrator(db, logger)
		if err := migrator.Up(); err != nil {
			return err
		}

		v, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", v, dirty)
		return nil
	},
}

var reportDays int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the pipeline summary as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx := cmd.Context()
		if err := c.Start(ctx); err != nil {
			return err
		}

		days := cfg.Report.DefaultDays
		if cmd.Flags().Changed("days") {
			days = reportDays
		}
		variants, _ := cmd.Flags().GetStringSlice("variant")

		summary, err := c.Services().Report.Summary(ctx, service.ReportFilter{Days: days, Variants: variants})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

// bootstrap loads configuration and builds the logger shared by all commands
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "standortd",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	reportCmd.Flags().IntVar(&reportDays, "days", 0, "only count locations created in the last N days")
	reportCmd.Flags().StringSlice("variant", nil, "restrict to marketing variants")

	rootCmd.AddCommand(serveCmd, migrateCmd, reportCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
