package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/standort-workflow/internal/application/dispatcher"
	"github.com/garyjia/standort-workflow/internal/application/port"
	"github.com/garyjia/standort-workflow/internal/application/service"
	"github.com/garyjia/standort-workflow/internal/application/workflow"
	"github.com/garyjia/standort-workflow/internal/domain/entity"
	"github.com/garyjia/standort-workflow/internal/infrastructure/persistence/sqlite"
)

// Container owns the storage pools, the dispatcher, the engine and the
// services of one process. Start opens them in order, Close releases them
// in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	databases    *DatabaseBundle
	db           *sqlite.DB
	repositories *RepositoryBundle

	catalog    *entity.VariantCatalog
	dispatcher dispatcher.Dispatcher
	counter    *TransitionCounter
	workflow   workflow.Engine
	services   *ServiceBundle

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Location port.LocationRepository
	History  port.HistoryRepository
	Report   port.ReportRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Location service.LocationService
	Report   service.ReportService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
	Events     map[string]int             `json:"events"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// Nothing is opened until Start.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// stage is one named initialization step of Start
type stage struct {
	name string
	init func() error
}

// Start initializes components in dependency order: storage, dispatcher,
// engine, services. A failing stage releases everything opened before it.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed.Load():
		return fmt.Errorf("container has been closed")
	case c.ready.Load():
		return fmt.Errorf("container already started")
	}

	stages := []stage{
		{"database", c.initDatabase},
		{"dispatcher", c.initDispatcher},
		{"workflow engine", c.initWorkflow},
		{"services", c.initServices},
	}

	c.logger.Info("Starting container", zap.Int("stages", len(stages)))
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			c.releasePartial()
			return fmt.Errorf("start interrupted before %s: %w", st.name, err)
		}
		if err := st.init(); err != nil {
			c.releasePartial()
			return fmt.Errorf("failed to initialize %s: %w", st.name, err)
		}
		c.logger.Info("Stage ready", zap.String("stage", st.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started", zap.Strings("variants", c.catalog.Names()))

	return nil
}

// releasePartial undoes a failed Start
func (c *Container) releasePartial() {
	if c.dispatcher != nil {
		_ = c.dispatcher.Close()
		c.dispatcher = nil
	}
	_ = c.closeDatabase()
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Step 1: Close dispatcher so pending async handlers finish
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 2: Close database
	if err := c.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) closeDatabase() error {
	if c.databases == nil {
		return nil
	}
	err := c.databases.Close()
	if err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
	} else {
		c.logger.Info("Database closed")
	}
	c.databases = nil
	return err
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health probes each component. Overall is false as soon as one probe fails.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	probes := map[string]func() ComponentHealth{
		"database": func() ComponentHealth {
			if c.databases == nil {
				return notInitialized
			}
			if err := c.databases.Writer.PingContext(ctx); err != nil {
				return ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)}
			}
			return ComponentHealth{Healthy: true}
		},
		"dispatcher": func() ComponentHealth {
			if c.dispatcher == nil {
				return notInitialized
			}
			return ComponentHealth{Healthy: true}
		},
		"workflow": func() ComponentHealth {
			if c.workflow == nil {
				return notInitialized
			}
			return ComponentHealth{Healthy: true, Message: fmt.Sprintf("variants: %d", len(c.catalog.Names()))}
		},
	}

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth, len(probes)),
		Events:     map[string]int{},
	}
	for name, probe := range probes {
		h := probe()
		status.Components[name] = h
		status.Overall = status.Overall && h.Healthy
	}

	if c.counter != nil {
		status.Events = c.counter.Snapshot()
	}

	return status
}

var notInitialized = ComponentHealth{Message: "not initialized"}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.databases = bundle
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(bundle.Writer, c.logger)
	if err != nil {
		return err
	}

	c.repositories = repos
	return nil
}

// initDispatcher creates the dispatcher and subscribes the audit logger and
// transition counter.
func (c *Container) initDispatcher() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp
	c.counter = NewTransitionCounter()
	RegisterEventHandlers(c.dispatcher, c.counter, c.logger)
	return nil
}

// initWorkflow builds the variant catalog and the engine.
func (c *Container) initWorkflow() error {
	catalog, err := entity.NewVariantCatalog(c.config.Workflow.Variants)
	if err != nil {
		return err
	}
	c.catalog = catalog

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Catalog:    c.catalog,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.workflow = engine
	return nil
}

// initServices initializes all application services using providers.
func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Catalog returns the variant catalog.
func (c *Container) Catalog() *entity.VariantCatalog {
	return c.catalog
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.Engine {
	return c.workflow
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// ServiceLogger returns the key-value logger handed to services.
func (c *Container) ServiceLogger() service.Logger {
	return &zapLoggerAdapter{logger: c.logger}
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
