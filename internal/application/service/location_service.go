package service

import (
	"context"
	"fmt"

	"github.com/garyjia/standort-workflow/internal/application/dispatcher"
	"github.com/garyjia/standort-workflow/internal/application/port"
	"github.com/garyjia/standort-workflow/internal/domain/entity"
	"github.com/garyjia/standort-workflow/internal/domain/event"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// LocationService serves location reads and deletion. State changes go
// through the workflow engine instead.
type LocationService interface {
	Get(ctx context.Context, id string) (*entity.Location, error)
	List(ctx context.Context, filter entity.LocationFilter) ([]*entity.Location, error)
	History(ctx context.Context, id string) ([]*entity.HistoryEntry, error)
	Purge(ctx context.Context, id, actor string) error
}

type locationServiceImpl struct {
	locations  port.LocationRepository
	history    port.HistoryRepository
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
}

// NewLocationService creates a new LocationService. d may be nil.
func NewLocationService(
	locations port.LocationRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) LocationService {
	return &locationServiceImpl{
		locations:  locations,
		history:    history,
		txManager:  txManager,
		dispatcher: d,
		logger:     loggerOrNop(logger),
	}
}

// Get retrieves a location by id
func (s *locationServiceImpl) Get(ctx context.Context, id string) (*entity.Location, error) {
	loc, err := s.locations.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get location", "error", err, "location_id", id)
		return nil, err
	}
	return loc, nil
}

// List retrieves a page of locations, newest first
func (s *locationServiceImpl) List(ctx context.Context, filter entity.LocationFilter) ([]*entity.Location, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	locations, err := s.locations.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list locations", "error", err, "limit", filter.Limit, "offset", filter.Offset)
		return nil, err
	}
	return locations, nil
}

// History returns the audit trail of a location in chronological order
func (s *locationServiceImpl) History(ctx context.Context, id string) ([]*entity.HistoryEntry, error) {
	var entries []*entity.HistoryEntry

	err := s.txManager.WithReadTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.locations.GetByID(txCtx, id); err != nil {
			return err
		}

		var err error
		entries, err = s.history.ListForLocation(txCtx, id)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to get history", "error", err, "location_id", id)
		return nil, err
	}
	return entries, nil
}

// Purge deletes a location together with its history
func (s *locationServiceImpl) Purge(ctx context.Context, id, actor string) error {
	var loc *entity.Location

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if loc, err = s.locations.GetByID(txCtx, id); err != nil {
			return err
		}
		if err := s.locations.Delete(txCtx, id); err != nil {
			return fmt.Errorf("delete location: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to purge location", "error", err, "location_id", id)
		return err
	}

	s.logger.Info("Location purged", "location_id", id, "actor", actor)
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeLocationPurged, id, map[string]interface{}{
			"actor":   actor,
			"step":    loc.CurrentStep.String(),
			"status":  loc.Status.String(),
			"variant": loc.Vermarktungsform,
		}))
	}
	return nil
}
