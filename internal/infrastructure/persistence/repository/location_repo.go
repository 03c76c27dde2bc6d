package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/standort-workflow/internal/application/port"
	"github.com/garyjia/standort-workflow/internal/domain/entity"
	"github.com/garyjia/standort-workflow/internal/domain/workflow"
	"github.com/garyjia/standort-workflow/internal/infrastructure/persistence/sqlite"
)

const locationColumns = `
	id, erfasser, datum, standort, stadt, lat, lng, leistungswert,
	eigentuemer, umruestung, alte_nummer, seiten, vermarktungsform,
	status, current_step, created_at,
	bauantrag_datum, plan_date, ist_date, build_status, contractor,
	power_connection, completion_date, final_inspection, network_id, dms_id`

// LocationRepository implements port.LocationRepository
type LocationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *sqlx.DB, logger *zap.Logger) port.LocationRepository {
	return &LocationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new location
func (r *LocationRepository) Create(ctx context.Context, loc *entity.Location) error {
	query := `
		INSERT INTO locations (` + locationColumns + `
		) VALUES (
			:id, :erfasser, :datum, :standort, :stadt, :lat, :lng, :leistungswert,
			:eigentuemer, :umruestung, :alte_nummer, :seiten, :vermarktungsform,
			:status, :current_step, :created_at,
			:bauantrag_datum, :plan_date, :ist_date, :build_status, :contractor,
			:power_connection, :completion_date, :final_inspection, :network_id, :dms_id
		)
	`

	if _, err := sqlx.NamedExecContext(ctx, sqlite.Executor(ctx, r.db), query, loc); err != nil {
		r.logger.Error("Failed to create location", zap.String("location_id", loc.ID), zap.Error(err))
		return fmt.Errorf("failed to create location: %w", err)
	}
	return nil
}

// GetByID retrieves a location by id
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*entity.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = ?`

	var loc entity.Location
	if err := sqlx.GetContext(ctx, sqlite.Executor(ctx, r.db), &loc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
		}
		r.logger.Error("Failed to get location", zap.String("location_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return &loc, nil
}

// UpdateStep moves a location only if it still sits at expected
func (r *LocationRepository) UpdateStep(ctx context.Context, id string, expected workflow.Step, status workflow.Status, step workflow.Step, extra entity.SupplementaryFields) error {
	query := `
		UPDATE locations SET
			status = ?,
			current_step = ?,
			bauantrag_datum = COALESCE(?, bauantrag_datum),
			plan_date = COALESCE(?, plan_date),
			ist_date = COALESCE(?, ist_date),
			build_status = COALESCE(?, build_status),
			contractor = COALESCE(?, contractor),
			power_connection = COALESCE(?, power_connection),
			completion_date = COALESCE(?, completion_date),
			final_inspection = COALESCE(?, final_inspection),
			network_id = COALESCE(?, network_id),
			dms_id = COALESCE(?, dms_id)
		WHERE id = ? AND current_step = ?
	`

	exec := sqlite.Executor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		status, step,
		extra.BauantragDatum, extra.PlanDate, extra.IstDate,
		extra.BuildStatus, extra.Contractor, extra.PowerConnection,
		extra.CompletionDate, extra.FinalInspection,
		extra.NetworkID, extra.DMSID,
		id, expected,
	)
	if err != nil {
		r.logger.Error("Failed to update location step", zap.String("location_id", id), zap.Error(err))
		return fmt.Errorf("failed to update location step: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var actual workflow.Step
	if err := sqlx.GetContext(ctx, exec, &actual, `SELECT current_step FROM locations WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
		}
		return fmt.Errorf("failed to read location step: %w", err)
	}
	return &workflow.StaleStateError{LocationID: id, Expected: expected, Actual: actual}
}

// List returns locations matching filter, newest first
func (r *LocationRepository) List(ctx context.Context, filter entity.LocationFilter) ([]*entity.Location, error) {
	where, args, err := locationWhere(filter, "")
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + locationColumns + ` FROM locations` + where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	exec := sqlite.Executor(ctx, r.db)
	locations := []*entity.Location{}
	if err := sqlx.SelectContext(ctx, exec, &locations, exec.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to list locations", zap.Error(err))
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locations, nil
}

// Delete removes a location and its history
func (r *LocationRepository) Delete(ctx context.Context, id string) error {
	exec := sqlite.Executor(ctx, r.db)

	// Explicit so databases created without foreign keys do not keep orphans
	if _, err := exec.ExecContext(ctx, `DELETE FROM workflow_history WHERE location_id = ?`, id); err != nil {
		r.logger.Error("Failed to delete location history", zap.String("location_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete history: %w", err)
	}

	result, err := exec.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete location", zap.String("location_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete location: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	return nil
}

// locationWhere renders filter as a WHERE clause. alias prefixes column
// names when the locations table is joined.
func locationWhere(filter entity.LocationFilter, alias string) (string, []interface{}, error) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}

	var conds []string
	var args []interface{}

	if filter.Status != "" {
		conds = append(conds, col("status")+" = ?")
		args = append(args, filter.Status)
	}
	if filter.Step != "" {
		conds = append(conds, col("current_step")+" = ?")
		args = append(args, filter.Step)
	}
	if filter.CreatedSince != nil {
		conds = append(conds, col("created_at")+" >= ?")
		args = append(args, filter.CreatedSince.UTC())
	}
	if len(filter.Variants) > 0 {
		in, inArgs, err := sqlx.In(col("vermarktungsform")+" IN (?)", filter.Variants)
		if err != nil {
			return "", nil, fmt.Errorf("failed to build variant filter: %w", err)
		}
		conds = append(conds, in)
		args = append(args, inArgs...)
	}

	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

var _ port.LocationRepository = (*LocationRepository)(nil)
