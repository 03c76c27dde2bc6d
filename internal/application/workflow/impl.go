package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/standort-workflow/internal/application/dispatcher"
	"github.com/garyjia/standort-workflow/internal/application/port"
	"github.com/garyjia/standort-workflow/internal/domain/entity"
	"github.com/garyjia/standort-workflow/internal/domain/event"
	domainwf "github.com/garyjia/standort-workflow/internal/domain/workflow"
	"github.com/garyjia/standort-workflow/pkg/utils"
)

// engineImpl is the concrete implementation of Engine. State machines are
// rebuilt from the stored step on every call, never cached.
type engineImpl struct {
	locations  port.LocationRepository
	history    port.HistoryRepository
	txManager  port.TransactionManager
	catalog    *entity.VariantCatalog
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *engineImpl) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithIDGenerator overrides how location and history ids are generated
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *engineImpl) {
		e.newID = newID
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	locations port.LocationRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	catalog *entity.VariantCatalog,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		locations: locations,
		history:   history,
		txManager: txManager,
		catalog:   catalog,
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) Capture(ctx context.Context, req CaptureRequest) (*entity.Location, error) {
	now := e.now()

	loc, err := newLocation(req, e.catalog, e.newID(), now)
	if err != nil {
		return nil, err
	}

	machine := BuildLocationStateMachine(domainwf.StepErfassung, e.catalog)
	taken, err := machine.Fire(ctx, domainwf.DecisionComplete, domainwf.Facts{Variant: loc.Vermarktungsform})
	if err != nil {
		return nil, fmt.Errorf("capture transition failed: %w", err)
	}
	loc.CurrentStep = taken.To
	loc.Status = taken.To.Status()

	actor := utils.SanitizeString(req.Actor)
	if actor == "" {
		actor = loc.Erfasser
	}
	comment := utils.SanitizeString(req.Comment)
	if comment == "" {
		comment = defaultCaptureComment
	}

	entry := &entity.HistoryEntry{
		ID:         e.newID(),
		LocationID: loc.ID,
		Step:       taken.From,
		Outcome:    taken.Outcome,
		Comment:    comment,
		User:       actor,
		Timestamp:  now,
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.locations.Create(txCtx, loc); err != nil {
			return classify("create location", err)
		}
		if err := e.history.Append(txCtx, entry); err != nil {
			return classify("append history", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify("capture", err)
	}

	e.logger.Info("Location captured",
		zap.String("location_id", loc.ID),
		zap.String("variant", loc.Vermarktungsform),
		zap.String("actor", actor),
	)
	e.publish(ctx, event.TypeLocationCaptured, loc, taken, actor)

	return loc, nil
}

func (e *engineImpl) Decide(ctx context.Context, req DecideRequest) (*entity.Location, error) {
	req.Actor = utils.SanitizeString(req.Actor)
	req.Comment = utils.SanitizeString(req.Comment)

	if req.LocationID == "" {
		return nil, domainwf.NewValidationError([]domainwf.FieldError{required("location_id")})
	}
	if !req.Step.IsValid() {
		return nil, fmt.Errorf("%w: %q", domainwf.ErrInvalidStep, req.Step)
	}
	if !req.Decision.IsValid() {
		return nil, domainwf.NewValidationError([]domainwf.FieldError{invalid("decision", "unknown decision %q", req.Decision)})
	}

	now := e.now()
	var (
		updated *entity.Location
		taken   domainwf.Transition
	)

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		loc, err := e.locations.GetByID(txCtx, req.LocationID)
		if err != nil {
			return classify("load location", err)
		}

		if loc.CurrentStep != req.Step {
			return &domainwf.StaleStateError{LocationID: loc.ID, Expected: req.Step, Actual: loc.CurrentStep}
		}
		if loc.CurrentStep.IsTerminal() {
			return fmt.Errorf("%w: location %s is at %s", domainwf.ErrTerminalState, loc.ID, loc.CurrentStep)
		}

		machine := BuildLocationStateMachine(loc.CurrentStep, e.catalog)
		if !machine.CanFire(req.Decision) {
			return fmt.Errorf("%w: %s is not accepted at %s", domainwf.ErrInvalidTransition, req.Decision, loc.CurrentStep)
		}

		extra, err := validateDecision(req, loc, now)
		if err != nil {
			return err
		}

		taken, err = machine.Fire(txCtx, req.Decision, domainwf.Facts{
			Variant:   loc.Vermarktungsform,
			SubBranch: req.SubBranch,
		})
		if err != nil {
			return err
		}

		status := taken.To.Status()
		if err := e.locations.UpdateStep(txCtx, loc.ID, taken.From, status, taken.To, extra); err != nil {
			return classify("update location", err)
		}

		entry := &entity.HistoryEntry{
			ID:         e.newID(),
			LocationID: loc.ID,
			Step:       taken.From,
			Outcome:    taken.Outcome,
			Comment:    req.Comment,
			User:       req.Actor,
			Timestamp:  now,
		}
		if err := e.history.Append(txCtx, entry); err != nil {
			return classify("append history", err)
		}

		loc.Status = status
		loc.CurrentStep = taken.To
		loc.SupplementaryFields = loc.SupplementaryFields.Merge(extra)
		updated = loc
		return nil
	})
	if err != nil {
		return nil, classify("decide", err)
	}

	e.logger.Info("Decision applied",
		zap.String("location_id", updated.ID),
		zap.String("from_step", taken.From.String()),
		zap.String("to_step", taken.To.String()),
		zap.String("outcome", taken.Outcome.String()),
		zap.String("actor", req.Actor),
	)
	e.publish(ctx, eventTypeFor(taken), updated, taken, req.Actor)

	return updated, nil
}

func (e *engineImpl) Definition() []StepDefinition {
	steps := domainwf.Steps()
	defs := make([]StepDefinition, 0, len(steps))
	for _, s := range steps {
		def := StepDefinition{
			Step:      s,
			Status:    s.Status(),
			Terminal:  s.IsTerminal(),
			Decisions: []domainwf.Decision{},
		}
		if !s.IsTerminal() {
			def.Decisions = BuildLocationStateMachine(s, e.catalog).PermittedDecisions()
		}
		defs = append(defs, def)
	}
	return defs
}

func (e *engineImpl) publish(ctx context.Context, t event.Type, loc *entity.Location, taken domainwf.Transition, actor string) {
	if e.dispatcher == nil {
		return
	}

	e.dispatcher.DispatchAsync(ctx, event.NewEvent(t, loc.ID, map[string]interface{}{
		"from_step": taken.From.String(),
		"to_step":   taken.To.String(),
		"outcome":   taken.Outcome.String(),
		"status":    loc.Status.String(),
		"variant":   loc.Vermarktungsform,
		"actor":     actor,
	}))
}

func eventTypeFor(t domainwf.Transition) event.Type {
	switch {
	case !t.Advances():
		return event.TypeLocationUpdated
	case t.To.Status() == domainwf.StatusRejected:
		return event.TypeLocationRejected
	case t.To.Status() == domainwf.StatusCompleted:
		return event.TypeLocationCompleted
	default:
		return event.TypeLocationAdvanced
	}
}

// classify keeps domain errors intact and wraps everything else as a
// persistence failure
func classify(op string, err error) error {
	switch {
	case errors.Is(err, domainwf.ErrNotFound),
		errors.Is(err, domainwf.ErrStaleState),
		errors.Is(err, domainwf.ErrValidation),
		errors.Is(err, domainwf.ErrTerminalState),
		errors.Is(err, domainwf.ErrInvalidTransition),
		errors.Is(err, domainwf.ErrInvalidStep),
		errors.Is(err, domainwf.ErrGuardFailed),
		errors.Is(err, domainwf.ErrPersistence):
		return err
	default:
		return &domainwf.PersistenceError{Op: op, Err: err}
	}
}
