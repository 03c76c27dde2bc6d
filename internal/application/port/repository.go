package port

import (
	"context"

	"github.com/garyjia/standort-workflow/internal/domain/entity"
	"github.com/garyjia/standort-workflow/internal/domain/workflow"
)

// LocationRepository defines persistence operations for Location.
// Missing ids fail with an error matching workflow.ErrNotFound.
type LocationRepository interface {
	Create(ctx context.Context, loc *entity.Location) error
	GetByID(ctx context.Context, id string) (*entity.Location, error)

	// UpdateStep moves the location from expected to step. It fails with
	// *workflow.StaleStateError when the stored step is no longer expected.
	UpdateStep(ctx context.Context, id string, expected workflow.Step, status workflow.Status, step workflow.Step, extra entity.SupplementaryFields) error

	List(ctx context.Context, filter entity.LocationFilter) ([]*entity.Location, error)

	// Delete removes the location together with its history
	Delete(ctx context.Context, id string) error
}

// HistoryRepository defines persistence operations for HistoryEntry.
// Entries are append-only.
type HistoryRepository interface {
	Append(ctx context.Context, entry *entity.HistoryEntry) error
	ListForLocation(ctx context.Context, locationID string) ([]*entity.HistoryEntry, error)
}

// GroupCount is the number of locations sharing one status, step and variant
type GroupCount struct {
	Status  string `json:"status" db:"status"`
	Step    string `json:"current_step" db:"current_step"`
	Variant string `json:"variant" db:"vermarktungsform"`
	Count   int    `json:"count" db:"count"`
}

// ReportRepository provides read-only aggregation queries
type ReportRepository interface {
	CountByGroup(ctx context.Context, filter entity.LocationFilter) ([]GroupCount, error)

	// ListHistory returns history of all locations matching filter, ordered
	// by location and then chronologically
	ListHistory(ctx context.Context, filter entity.LocationFilter) ([]*entity.HistoryEntry, error)

	// ListIDsByGroup returns ids of locations matching filter whose status,
	// step and variant equal the group's values exactly, blanks included
	ListIDsByGroup(ctx context.Context, group GroupCount, filter entity.LocationFilter) ([]string, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// WithReadTransaction gives fn a consistent snapshot without blocking writers
	WithReadTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
