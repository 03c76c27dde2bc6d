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

// ReportRepository implements port.ReportRepository
type ReportRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sqlx.DB, logger *zap.Logger) port.ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

// CountByGroup counts locations per status, step and variant
func (r *ReportRepository) CountByGroup(ctx context.Context, filter entity.LocationFilter) ([]port.GroupCount, error) {
	where, args, err := locationWhere(filter, "")
	if err != nil {
		return nil, err
	}

	query := `
		SELECT status, current_step, vermarktungsform, COUNT(*) AS count
		FROM locations` + where + `
		GROUP BY status, current_step, vermarktungsform
		ORDER BY status, current_step, vermarktungsform
	`

	exec := sqlite.Executor(ctx, r.db)
	counts := []port.GroupCount{}
	if err := sqlx.SelectContext(ctx, exec, &counts, exec.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to count locations", zap.Error(err))
		return nil, fmt.Errorf("failed to count locations: %w", err)
	}
	return counts, nil
}

// ListHistory returns history for all matching locations
func (r *ReportRepository) ListHistory(ctx context.Context, filter entity.LocationFilter) ([]*entity.HistoryEntry, error) {
	where, args, err := locationWhere(filter, "l")
	if err != nil {
		return nil, err
	}

	query := `
		SELECT h.id, h.location_id, h.step, h.status, h.comment, h."user", h.timestamp
		FROM workflow_history h
		JOIN locations l ON l.id = h.location_id` + where + `
		ORDER BY h.location_id, h.timestamp ASC, h.rowid ASC
	`

	exec := sqlite.Executor(ctx, r.db)
	entries := []*entity.HistoryEntry{}
	if err := sqlx.SelectContext(ctx, exec, &entries, exec.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to list report history", zap.Error(err))
		return nil, fmt.Errorf("failed to list report history: %w", err)
	}
	return entries, nil
}

// ListIDsByGroup returns ids of the locations behind one CountByGroup row.
// Status and step of filter are ignored.
func (r *ReportRepository) ListIDsByGroup(ctx context.Context, group port.GroupCount, filter entity.LocationFilter) ([]string, error) {
	filter.Status = ""
	filter.Step = ""
	where, args, err := locationWhere(filter, "")
	if err != nil {
		return nil, err
	}

	exact := "status = ? AND current_step = ? AND vermarktungsform = ?"
	if where == "" {
		where = " WHERE " + exact
	} else {
		where += " AND " + exact
	}
	args = append(args, group.Status, group.Step, group.Variant)

	query := `SELECT id FROM locations` + where + ` ORDER BY created_at, id`

	exec := sqlite.Executor(ctx, r.db)
	ids := []string{}
	if err := sqlx.SelectContext(ctx, exec, &ids, exec.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to list group ids",
			zap.String("status", group.Status),
			zap.String("current_step", group.Step),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list group ids: %w", err)
	}
	return ids, nil
}

var _ port.ReportRepository = (*ReportRepository)(nil)
