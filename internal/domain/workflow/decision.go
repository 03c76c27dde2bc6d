package workflow

// Decision is a human-entered outcome submitted for the current step.
type Decision string

const (
	DecisionApprove  Decision = "approve"
	DecisionReject   Decision = "reject"
	DecisionSubmit   Decision = "submit"
	DecisionUpdate   Decision = "update"
	DecisionComplete Decision = "complete"
	DecisionFinalize Decision = "finalize"
)

var validDecisions = map[Decision]bool{
	DecisionApprove:  true,
	DecisionReject:   true,
	DecisionSubmit:   true,
	DecisionUpdate:   true,
	DecisionComplete: true,
	DecisionFinalize: true,
}

// String returns the string representation of the decision
func (d Decision) String() string {
	return string(d)
}

// IsValid returns true if the decision is part of the vocabulary
func (d Decision) IsValid() bool {
	return validDecisions[d]
}

// SubBranch refines a decision. Only a permit denial uses one today.
type SubBranch string

const (
	SubBranchNone      SubBranch = ""
	SubBranchObjection SubBranch = "objection"
)

// Outcome tags a history entry with the branch that was taken.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeApproved  Outcome = "approved"
	OutcomeRejected  Outcome = "rejected"
	OutcomeObjection Outcome = "objection"
	OutcomeSubmitted Outcome = "submitted"
	OutcomeUpdated   Outcome = "updated"
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	return string(o)
}

// Facts are the location attributes guards may consult.
type Facts struct {
	Variant   string
	SubBranch SubBranch
}
