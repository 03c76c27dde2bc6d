package entity

import (
	"time"

	"github.com/garyjia/standort-workflow/internal/domain/workflow"
)

// Location is one advertising-display installation candidate
type Location struct {
	ID               string          `json:"id" db:"id"`
	Erfasser         string          `json:"erfasser" db:"erfasser"`
	Datum            time.Time       `json:"datum" db:"datum"`
	Standort         string          `json:"standort" db:"standort"`
	Stadt            string          `json:"stadt" db:"stadt"`
	Lat              float64         `json:"lat" db:"lat"`
	Lng              float64         `json:"lng" db:"lng"`
	Leistungswert    *float64        `json:"leistungswert,omitempty" db:"leistungswert"`
	Eigentuemer      string          `json:"eigentuemer" db:"eigentuemer"`
	Umruestung       bool            `json:"umruestung" db:"umruestung"`
	AlteNummer       *string         `json:"alte_nummer,omitempty" db:"alte_nummer"`
	Seiten           string          `json:"seiten" db:"seiten"`
	Vermarktungsform string          `json:"vermarktungsform" db:"vermarktungsform"`
	Status           workflow.Status `json:"status" db:"status"`
	CurrentStep      workflow.Step   `json:"current_step" db:"current_step"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`

	SupplementaryFields
}

// SupplementaryFields are collected by later steps. A nil field is left unchanged on update.
type SupplementaryFields struct {
	BauantragDatum  *time.Time `json:"bauantrag_datum,omitempty" db:"bauantrag_datum"`
	PlanDate        *time.Time `json:"plan_date,omitempty" db:"plan_date"`
	IstDate         *time.Time `json:"ist_date,omitempty" db:"ist_date"`
	BuildStatus     *string    `json:"build_status,omitempty" db:"build_status"`
	Contractor      *string    `json:"contractor,omitempty" db:"contractor"`
	PowerConnection *string    `json:"power_connection,omitempty" db:"power_connection"`
	CompletionDate  *time.Time `json:"completion_date,omitempty" db:"completion_date"`
	FinalInspection *time.Time `json:"final_inspection,omitempty" db:"final_inspection"`
	NetworkID       *string    `json:"network_id,omitempty" db:"network_id"`
	DMSID           *string    `json:"dms_id,omitempty" db:"dms_id"`
}

// IsEmpty reports whether no supplementary field is set
func (f SupplementaryFields) IsEmpty() bool {
	return f.BauantragDatum == nil && f.PlanDate == nil && f.IstDate == nil &&
		f.BuildStatus == nil && f.Contractor == nil && f.PowerConnection == nil &&
		f.CompletionDate == nil && f.FinalInspection == nil &&
		f.NetworkID == nil && f.DMSID == nil
}

// Merge returns f with every non-nil field of other applied on top
func (f SupplementaryFields) Merge(other SupplementaryFields) SupplementaryFields {
	if other.BauantragDatum != nil {
		f.BauantragDatum = other.BauantragDatum
	}
	if other.PlanDate != nil {
		f.PlanDate = other.PlanDate
	}
	if other.IstDate != nil {
		f.IstDate = other.IstDate
	}
	if other.BuildStatus != nil {
		f.BuildStatus = other.BuildStatus
	}
	if other.Contractor != nil {
		f.Contractor = other.Contractor
	}
	if other.PowerConnection != nil {
		f.PowerConnection = other.PowerConnection
	}
	if other.CompletionDate != nil {
		f.CompletionDate = other.CompletionDate
	}
	if other.FinalInspection != nil {
		f.FinalInspection = other.FinalInspection
	}
	if other.NetworkID != nil {
		f.NetworkID = other.NetworkID
	}
	if other.DMSID != nil {
		f.DMSID = other.DMSID
	}
	return f
}

// LocationFilter narrows List queries. Zero values match everything.
type LocationFilter struct {
	Status       workflow.Status
	Step         workflow.Step
	Variants     []string
	CreatedSince *time.Time
	Limit        int
	Offset       int
}
