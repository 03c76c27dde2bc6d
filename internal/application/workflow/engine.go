package workflow

import (
	"context"
	"time"

	"github.com/garyjia/standort-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/standort-workflow/internal/domain/workflow"
)

// Engine is the sole writer of workflow state. Every change to a location's
// step goes through it together with exactly one history entry.
type Engine interface {
	// Capture creates a location, applies the automatic erfassung transition
	// and records the first history entry
	Capture(ctx context.Context, req CaptureRequest) (*entity.Location, error)

	// Decide applies a decision for the step the caller believes is current
	Decide(ctx context.Context, req DecideRequest) (*entity.Location, error)

	// Definition describes the pipeline and the decisions accepted per step
	Definition() []StepDefinition
}

// CaptureRequest carries the attributes collected by the capture form
type CaptureRequest struct {
	Erfasser         string
	Datum            time.Time
	Standort         string
	Stadt            string
	Lat              float64
	Lng              float64
	Leistungswert    *float64
	Eigentuemer      string
	Umruestung       bool
	AlteNummer       string
	Seiten           string
	Vermarktungsform string

	// Actor defaults to Erfasser
	Actor   string
	Comment string
}

// DecideRequest is one human decision for a location
type DecideRequest struct {
	LocationID string
	Step       domainwf.Step
	Decision   domainwf.Decision
	SubBranch  domainwf.SubBranch
	Actor      string
	Comment    string
	Fields     entity.SupplementaryFields

	// Checklist confirms handover items, keyed by entity.ChecklistItems
	Checklist map[string]bool
}

// StepDefinition describes one pipeline step
type StepDefinition struct {
	Step      domainwf.Step       `json:"step"`
	Status    domainwf.Status     `json:"status"`
	Terminal  bool                `json:"terminal"`
	Decisions []domainwf.Decision `json:"decisions"`
}
