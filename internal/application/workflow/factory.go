package workflow

import (
	"context"

	domainwf "github.com/garyjia/standort-workflow/internal/domain/workflow"
)

// Router decides variant-dependent routing. The variant catalog implements it.
type Router interface {
	SkipsBranchReview(variant string) bool
}

// BuildLocationStateMachine creates a state machine for the approval pipeline
func BuildLocationStateMachine(initial domainwf.Step, router Router) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	skipsBranchReview := func(_ context.Context, f domainwf.Facts) bool {
		return router.SkipsBranchReview(f.Variant)
	}
	objectionRequested := func(_ context.Context, f domainwf.Facts) bool {
		return f.SubBranch == domainwf.SubBranchObjection
	}

	// Capture is recorded as a completed erfassung step
	builder.Configure(domainwf.StepErfassung).
		Permit(domainwf.DecisionComplete, domainwf.StepLeiterAkquisition, domainwf.OutcomeCompleted)

	builder.Configure(domainwf.StepLeiterAkquisition).
		PermitIf(domainwf.DecisionApprove, domainwf.StepBaurecht, domainwf.OutcomeApproved, skipsBranchReview).
		Permit(domainwf.DecisionApprove, domainwf.StepNiederlassungsleiter, domainwf.OutcomeApproved).
		Permit(domainwf.DecisionReject, domainwf.StepLeiterAkquisitionRejected, domainwf.OutcomeRejected)

	builder.Configure(domainwf.StepNiederlassungsleiter).
		Permit(domainwf.DecisionApprove, domainwf.StepBaurecht, domainwf.OutcomeApproved).
		Permit(domainwf.DecisionReject, domainwf.StepNiederlassungsleiterRejected, domainwf.OutcomeRejected)

	builder.Configure(domainwf.StepBaurecht).
		Permit(domainwf.DecisionSubmit, domainwf.StepBaurecht, domainwf.OutcomeSubmitted).
		Permit(domainwf.DecisionApprove, domainwf.StepCEO, domainwf.OutcomeApproved).
		PermitIf(domainwf.DecisionReject, domainwf.StepWiderspruch, domainwf.OutcomeObjection, objectionRequested).
		Permit(domainwf.DecisionReject, domainwf.StepBaurechtRejected, domainwf.OutcomeRejected)

	builder.Configure(domainwf.StepWiderspruch).
		Permit(domainwf.DecisionApprove, domainwf.StepCEO, domainwf.OutcomeApproved).
		Permit(domainwf.DecisionReject, domainwf.StepWiderspruchRejected, domainwf.OutcomeRejected)

	builder.Configure(domainwf.StepCEO).
		Permit(domainwf.DecisionApprove, domainwf.StepBauteam, domainwf.OutcomeApproved).
		Permit(domainwf.DecisionReject, domainwf.StepCEORejected, domainwf.OutcomeRejected)

	builder.Configure(domainwf.StepBauteam).
		Permit(domainwf.DecisionUpdate, domainwf.StepBauteam, domainwf.OutcomeUpdated).
		Permit(domainwf.DecisionComplete, domainwf.StepFertigstellung, domainwf.OutcomeCompleted)

	builder.Configure(domainwf.StepFertigstellung).
		Permit(domainwf.DecisionFinalize, domainwf.StepFertig, domainwf.OutcomeCompleted)

	// fertig and the rejection markers are terminal - no outgoing transitions

	return builder.Build(initial)
}
