package workflow

import (
	"time"

	"github.com/garyjia/standort-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/standort-workflow/internal/domain/workflow"
	"github.com/garyjia/standort-workflow/pkg/utils"
)

const defaultCaptureComment = "Standort erfasst"

// newLocation validates a capture request against the variant catalog
func newLocation(req CaptureRequest, catalog *entity.VariantCatalog, id string, now time.Time) (*entity.Location, error) {
	var errs []domainwf.FieldError

	erfasser := utils.SanitizeString(req.Erfasser)
	standort := utils.SanitizeString(req.Standort)
	stadt := utils.SanitizeString(req.Stadt)
	alteNummer := utils.SanitizeString(req.AlteNummer)

	if erfasser == "" {
		errs = append(errs, required("erfasser"))
	}
	if req.Datum.IsZero() {
		errs = append(errs, required("datum"))
	}
	if standort == "" {
		errs = append(errs, required("standort"))
	}
	if stadt == "" {
		errs = append(errs, required("stadt"))
	}
	if err := utils.ValidateCoordinates(req.Lat, req.Lng); err != nil {
		errs = append(errs, invalid("lat_lng", "%v", err))
	}
	if req.Leistungswert != nil && *req.Leistungswert < 0 {
		errs = append(errs, invalid("leistungswert", "must not be negative"))
	}
	if req.Eigentuemer == "" {
		errs = append(errs, required("eigentuemer"))
	} else if !entity.IsValidOwner(req.Eigentuemer) {
		errs = append(errs, invalid("eigentuemer", "unknown ownership %q", req.Eigentuemer))
	}
	if req.Umruestung && alteNummer == "" {
		errs = append(errs, invalid("alte_nummer", "is required for a retrofit"))
	}

	rule, known := catalog.Lookup(req.Vermarktungsform)
	switch {
	case req.Vermarktungsform == "":
		errs = append(errs, required("vermarktungsform"))
	case !known:
		errs = append(errs, invalid("vermarktungsform", "unknown variant %q", req.Vermarktungsform))
	}

	sides, ok := entity.SideCount(req.Seiten)
	switch {
	case req.Seiten == "":
		errs = append(errs, required("seiten"))
	case !ok:
		errs = append(errs, invalid("seiten", "unknown side count %q", req.Seiten))
	case known && sides > rule.MaxSides:
		errs = append(errs, invalid("seiten", "%s allows at most %d sides", rule.Name, rule.MaxSides))
	}

	if err := domainwf.NewValidationError(errs); err != nil {
		return nil, err
	}

	loc := &entity.Location{
		ID:               id,
		Erfasser:         erfasser,
		Datum:            req.Datum.UTC(),
		Standort:         standort,
		Stadt:            stadt,
		Lat:              req.Lat,
		Lng:              req.Lng,
		Leistungswert:    req.Leistungswert,
		Eigentuemer:      req.Eigentuemer,
		Umruestung:       req.Umruestung,
		Seiten:           req.Seiten,
		Vermarktungsform: req.Vermarktungsform,
		Status:           domainwf.StatusActive,
		CurrentStep:      domainwf.StepErfassung,
		CreatedAt:        now,
	}
	if req.Umruestung {
		loc.AlteNummer = &alteNummer
	}
	return loc, nil
}
