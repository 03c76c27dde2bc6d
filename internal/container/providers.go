package container

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/standort-workflow/internal/application/dispatcher"
	"github.com/garyjia/standort-workflow/internal/application/port"
	"github.com/garyjia/standort-workflow/internal/application/service"
	"github.com/garyjia/standort-workflow/internal/application/workflow"
	"github.com/garyjia/standort-workflow/internal/domain/entity"
	"github.com/garyjia/standort-workflow/internal/domain/event"
	"github.com/garyjia/standort-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/standort-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/standort-workflow/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Writer         *database.DB
	Reader         *database.DB
	TransactionMgr *sqlite.DB
}

// Close closes both pools
func (b *DatabaseBundle) Close() error {
	var firstErr error
	for _, db := range []*database.DB{b.Reader, b.Writer} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ProvideDatabase opens the writer and reader pools and applies pending
// migrations unless disabled.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dbCfg := database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}

	writer, err := database.New(dbCfg, logger)
	if err != nil {
		return nil, err
	}

	if !cfg.SkipMigrations {
		if err := database.NewMigrator(writer, logger).Up(); err != nil {
			writer.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	reader, err := database.NewReader(dbCfg, logger.Named("reader"))
	if err != nil {
		writer.Close()
		return nil, err
	}

	return &DatabaseBundle{
		Writer:         writer,
		Reader:         reader,
		TransactionMgr: sqlite.NewDB(writer.DB, logger, sqlite.WithReader(reader.DB)),
	}, nil
}

// ProvideRepositories creates all repositories from the writer pool.
// Reads inside WithReadTransaction use the reader transaction from context.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Location: repository.NewLocationRepository(db.DB, logger),
		History:  repository.NewHistoryRepository(db.DB, logger),
		Report:   repository.NewReportRepository(db.DB, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(logger.Named("dispatcher"))), nil
}

// WorkflowDeps holds dependencies for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Catalog    *entity.VariantCatalog
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.Engine, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("variant catalog is required")
	}

	return workflow.NewEngine(
		deps.Repos.Location,
		deps.Repos.History,
		deps.TxManager,
		deps.Catalog,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(deps.Logger.Named("workflow")),
	), nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger.Named("service")}
	return &ServiceBundle{
		Location: service.NewLocationService(deps.Repos.Location, deps.Repos.History, deps.TxManager, deps.Dispatcher, logger),
		Report:   service.NewReportService(deps.Repos.Report, deps.Repos.Location, deps.TxManager, logger),
	}, nil
}

// RegisterEventHandlers subscribes the audit logger and the transition
// counter to every location event.
func RegisterEventHandlers(d dispatcher.Dispatcher, counter *TransitionCounter, logger *zap.Logger) {
	audit := logger.Named("audit")
	d.Subscribe("audit-log", func(ctx context.Context, evt *event.Event) error {
		audit.Info("Location event",
			zap.String("event_id", evt.ID),
			zap.String("type", evt.Type.String()),
			zap.String("location_id", evt.LocationID),
			zap.String("from_step", evt.GetPayloadString("from_step")),
			zap.String("to_step", evt.GetPayloadString("to_step")),
			zap.String("actor", evt.GetPayloadString("actor")),
		)
		return nil
	}, event.AllTypes...)

	d.Subscribe("transition-counter", func(ctx context.Context, evt *event.Event) error {
		counter.Record(evt.Type)
		return nil
	}, event.AllTypes...)
}

// TransitionCounter counts dispatched events per type since start.
type TransitionCounter struct {
	mu     sync.Mutex
	counts map[event.Type]int
}

// NewTransitionCounter creates an empty counter.
func NewTransitionCounter() *TransitionCounter {
	return &TransitionCounter{counts: make(map[event.Type]int)}
}

// Record increments the count for t.
func (c *TransitionCounter) Record(t event.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[t]++
}

// Snapshot returns a copy of the counts keyed by event type name.
func (c *TransitionCounter) Snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int, len(c.counts))
	for t, n := range c.counts {
		out[t.String()] = n
	}
	return out
}

// String renders the counts in a stable order for health messages.
func (c *TransitionCounter) String() string {
	snap := c.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, snap[k]))
	}
	return strings.Join(parts, ", ")
}
