package entity

import (
	"time"

	"github.com/garyjia/standort-workflow/internal/domain/workflow"
)

// HistoryEntry is one immutable audit record of a decision. Step is the step
// that was exited, never the destination.
type HistoryEntry struct {
	ID         string           `json:"id" db:"id"`
	LocationID string           `json:"location_id" db:"location_id"`
	Step       workflow.Step    `json:"step" db:"step"`
	Outcome    workflow.Outcome `json:"outcome" db:"status"`
	Comment    string           `json:"comment" db:"comment"`
	User       string           `json:"user" db:"user"`
	Timestamp  time.Time        `json:"timestamp" db:"timestamp"`
}
