package workflow

import "context"

// Transition describes one applied decision
type Transition struct {
	From     Step
	To       Step
	Decision Decision
	Outcome  Outcome
}

// Advances reports whether the transition moved the location to another step
func (t Transition) Advances() bool {
	return t.From != t.To
}

// StateMachine tracks the current step of one location and validates decisions
type StateMachine interface {
	// Step returns the current step
	Step() Step

	// CanFire returns true if the decision is configured at the current step
	CanFire(decision Decision) bool

	// Fire applies the decision, moving to the next step if allowed
	Fire(ctx context.Context, decision Decision, facts Facts) (Transition, error)

	// PermittedDecisions returns all decisions accepted at the current step
	PermittedDecisions() []Decision
}
