package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/standort-workflow/internal/application/port"
	"github.com/garyjia/standort-workflow/internal/domain/entity"
	"github.com/garyjia/standort-workflow/internal/infrastructure/persistence/sqlite"
)

const historyColumns = `id, location_id, step, status, comment, "user", timestamp`

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlx.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one immutable history entry
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.HistoryEntry) error {
	query := `
		INSERT INTO workflow_history (` + historyColumns + `)
		VALUES (:id, :location_id, :step, :status, :comment, :user, :timestamp)
	`

	if _, err := sqlx.NamedExecContext(ctx, sqlite.Executor(ctx, r.db), query, entry); err != nil {
		r.logger.Error("Failed to append history entry",
			zap.String("location_id", entry.LocationID),
			zap.String("step", entry.Step.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// ListForLocation returns the history of one location in chronological order
func (r *HistoryRepository) ListForLocation(ctx context.Context, locationID string) ([]*entity.HistoryEntry, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM workflow_history
		WHERE location_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`

	entries := []*entity.HistoryEntry{}
	if err := sqlx.SelectContext(ctx, sqlite.Executor(ctx, r.db), &entries, query, locationID); err != nil {
		r.logger.Error("Failed to list history", zap.String("location_id", locationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
