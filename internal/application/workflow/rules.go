package workflow

import (
	"fmt"
	"time"

	"github.com/garyjia/standort-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/standort-workflow/internal/domain/workflow"
	"github.com/garyjia/standort-workflow/pkg/utils"
)

// ruleFunc checks the decision-specific inputs against the stored location
// and returns the supplementary fields to persist
type ruleFunc func(req DecideRequest, loc *entity.Location, now time.Time) (entity.SupplementaryFields, []domainwf.FieldError)

type ruleKey struct {
	step     domainwf.Step
	decision domainwf.Decision
}

var decisionRules = map[ruleKey]ruleFunc{
	{domainwf.StepBaurecht, domainwf.DecisionSubmit}:         requirePermitApplication,
	{domainwf.StepBauteam, domainwf.DecisionUpdate}:          requireBuildUpdate,
	{domainwf.StepBauteam, domainwf.DecisionComplete}:        requireBuildComplete,
	{domainwf.StepFertigstellung, domainwf.DecisionFinalize}: requireHandover,
}

func required(field string) domainwf.FieldError {
	return domainwf.FieldError{Field: field, Message: "is required"}
}

func invalid(field, format string, args ...interface{}) domainwf.FieldError {
	return domainwf.FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// validateDecision runs the checks shared by all decisions and then the rule
// registered for the step and decision, if any
func validateDecision(req DecideRequest, loc *entity.Location, now time.Time) (entity.SupplementaryFields, error) {
	var errs []domainwf.FieldError

	fields := sanitizeFields(req.Fields)

	if req.Actor == "" {
		errs = append(errs, required("actor"))
	}
	if req.Decision == domainwf.DecisionReject && req.Comment == "" {
		errs = append(errs, invalid("comment", "a reason is required when rejecting"))
	}
	if req.SubBranch != domainwf.SubBranchNone {
		if req.SubBranch != domainwf.SubBranchObjection {
			errs = append(errs, invalid("sub_branch", "unknown sub branch %q", req.SubBranch))
		} else if req.Step != domainwf.StepBaurecht || req.Decision != domainwf.DecisionReject {
			errs = append(errs, invalid("sub_branch", "objection only applies to a permit denial"))
		}
	}
	if fields.CompletionDate != nil {
		errs = append(errs, invalid("completion_date", "is set by finalize"))
	}
	if fields.BuildStatus != nil {
		if _, ok := entity.BuildProgress(*fields.BuildStatus); !ok {
			errs = append(errs, invalid("build_status", "unknown build status %q", *fields.BuildStatus))
		}
	}
	if fields.PowerConnection != nil && !entity.IsValidPowerConnection(*fields.PowerConnection) {
		errs = append(errs, invalid("power_connection", "unknown power connection state %q", *fields.PowerConnection))
	}

	if rule, ok := decisionRules[ruleKey{req.Step, req.Decision}]; ok {
		req.Fields = fields
		var ruleErrs []domainwf.FieldError
		fields, ruleErrs = rule(req, loc, now)
		errs = append(errs, ruleErrs...)
	}

	if err := domainwf.NewValidationError(errs); err != nil {
		return entity.SupplementaryFields{}, err
	}
	return fields, nil
}

func sanitizeFields(f entity.SupplementaryFields) entity.SupplementaryFields {
	f.BuildStatus = utils.SanitizePtr(f.BuildStatus)
	f.Contractor = utils.SanitizePtr(f.Contractor)
	f.PowerConnection = utils.SanitizePtr(f.PowerConnection)
	f.NetworkID = utils.SanitizePtr(f.NetworkID)
	f.DMSID = utils.SanitizePtr(f.DMSID)
	return f
}

func requirePermitApplication(req DecideRequest, _ *entity.Location, _ time.Time) (entity.SupplementaryFields, []domainwf.FieldError) {
	if req.Fields.BauantragDatum == nil {
		return req.Fields, []domainwf.FieldError{required("bauantrag_datum")}
	}
	return req.Fields, nil
}

func requireBuildUpdate(req DecideRequest, _ *entity.Location, _ time.Time) (entity.SupplementaryFields, []domainwf.FieldError) {
	f := req.Fields
	if f.PlanDate == nil && f.IstDate == nil && f.BuildStatus == nil && f.Contractor == nil && f.PowerConnection == nil {
		return f, []domainwf.FieldError{invalid("fields", "at least one build field is required")}
	}
	return f, nil
}

func requireBuildComplete(req DecideRequest, loc *entity.Location, _ time.Time) (entity.SupplementaryFields, []domainwf.FieldError) {
	effective := loc.SupplementaryFields.Merge(req.Fields)

	var errs []domainwf.FieldError
	if effective.BuildStatus == nil || *effective.BuildStatus != entity.BuildDone {
		errs = append(errs, invalid("build_status", "must be %q", entity.BuildDone))
	}
	if effective.IstDate == nil {
		errs = append(errs, required("ist_date"))
	}
	if effective.PowerConnection == nil || !entity.IsPowerConnected(*effective.PowerConnection) {
		errs = append(errs, invalid("power_connection", "must be %q or %q", entity.PowerInstalled, entity.PowerActive))
	}
	return req.Fields, errs
}

func requireHandover(req DecideRequest, loc *entity.Location, now time.Time) (entity.SupplementaryFields, []domainwf.FieldError) {
	f := req.Fields

	var errs []domainwf.FieldError
	for _, item := range entity.ChecklistItems {
		if !req.Checklist[item] {
			errs = append(errs, invalid("checklist."+item, "must be confirmed"))
		}
	}

	f.NetworkID, errs = normalizeID("network_id", entity.NetworkIDPrefix, f.NetworkID, errs)
	f.DMSID, errs = normalizeID("dms_id", entity.DMSIDPrefix, f.DMSID, errs)
	effective := loc.SupplementaryFields.Merge(f)
	if effective.NetworkID == nil && effective.DMSID == nil {
		errs = append(errs, invalid("network_id", "network_id or dms_id is required"))
	}

	completed := now
	f.CompletionDate = &completed
	if f.FinalInspection == nil {
		inspected := now.Truncate(24 * time.Hour)
		f.FinalInspection = &inspected
	}
	return f, errs
}

// normalizeID prefixes a given id. An id that is only the prefix is
// dropped and reported.
func normalizeID(field, prefix string, raw *string, errs []domainwf.FieldError) (*string, []domainwf.FieldError) {
	if raw == nil {
		return nil, errs
	}
	id := utils.NormalizePrefixedID(prefix, *raw)
	if id == "" {
		return nil, append(errs, invalid(field, "needs an identifier after %s", prefix))
	}
	return &id, errs
}
