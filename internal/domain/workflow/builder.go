package workflow

import (
	"context"
	"fmt"
)

// GuardFunc evaluates whether a transition applies to the given facts
type GuardFunc func(ctx context.Context, facts Facts) bool

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns a step configuration for the given step
	Configure(step Step) StepConfiguration

	// Build creates a new state machine instance positioned at the given step
	Build(initial Step) StateMachine
}

// StepConfiguration configures the decisions accepted at one step
type StepConfiguration interface {
	// Permit allows a decision to move the machine to the target step
	Permit(decision Decision, to Step, outcome Outcome) StepConfiguration

	// PermitIf allows a decision to move to the target step if the guard passes.
	// Transitions for one decision are tried in registration order.
	PermitIf(decision Decision, to Step, outcome Outcome, guard GuardFunc) StepConfiguration
}

type transition struct {
	to      Step
	outcome Outcome
	guard   GuardFunc
}

type stepConfig struct {
	step        Step
	decisions   []Decision
	transitions map[Decision][]transition
}

type stateMachineBuilder struct {
	configurations map[Step]*stepConfig
}

type stateMachine struct {
	current        Step
	configurations map[Step]*stepConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[Step]*stepConfig),
	}
}

// Configure returns a step configuration for the given step
func (b *stateMachineBuilder) Configure(step Step) StepConfiguration {
	if !step.IsValid() {
		panic(fmt.Sprintf("invalid step: %s", step))
	}
	if step.IsTerminal() {
		panic(fmt.Sprintf("terminal step cannot be configured: %s", step))
	}

	config, exists := b.configurations[step]
	if !exists {
		config = &stepConfig{
			step:        step,
			transitions: make(map[Decision][]transition),
		}
		b.configurations[step] = config
	}

	return config
}

// Build creates a new state machine instance positioned at the given step
func (b *stateMachineBuilder) Build(initial Step) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial step: %s", initial))
	}

	// Deep copy so later Configure calls do not leak into built machines
	configsCopy := make(map[Step]*stepConfig, len(b.configurations))
	for step, config := range b.configurations {
		transitionsCopy := make(map[Decision][]transition, len(config.transitions))
		for decision, transitions := range config.transitions {
			transitionsCopy[decision] = append([]transition{}, transitions...)
		}
		configsCopy[step] = &stepConfig{
			step:        step,
			decisions:   append([]Decision{}, config.decisions...),
			transitions: transitionsCopy,
		}
	}

	return &stateMachine{
		current:        initial,
		configurations: configsCopy,
	}
}

// Permit allows a decision to move the machine to the target step
func (c *stepConfig) Permit(decision Decision, to Step, outcome Outcome) StepConfiguration {
	return c.PermitIf(decision, to, outcome, nil)
}

// PermitIf allows a decision to move to the target step if the guard passes
func (c *stepConfig) PermitIf(decision Decision, to Step, outcome Outcome, guard GuardFunc) StepConfiguration {
	if !decision.IsValid() {
		panic(fmt.Sprintf("invalid decision: %s", decision))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target step: %s", to))
	}

	if _, seen := c.transitions[decision]; !seen {
		c.decisions = append(c.decisions, decision)
	}
	c.transitions[decision] = append(c.transitions[decision], transition{
		to:      to,
		outcome: outcome,
		guard:   guard,
	})

	return c
}

// Step returns the current step
func (m *stateMachine) Step() Step {
	return m.current
}

// CanFire returns true if the decision is configured at the current step.
// Guards are not evaluated.
func (m *stateMachine) CanFire(decision Decision) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}
	return len(config.transitions[decision]) > 0
}

// Fire applies the decision and returns the transition that was taken
func (m *stateMachine) Fire(ctx context.Context, decision Decision, facts Facts) (Transition, error) {
	if m.current.IsTerminal() {
		return Transition{}, fmt.Errorf("%w: %s", ErrTerminalState, m.current)
	}

	config, exists := m.configurations[m.current]
	if !exists {
		return Transition{}, fmt.Errorf("%w: cannot apply %s at step %s (no configuration)", ErrInvalidTransition, decision, m.current)
	}

	transitions := config.transitions[decision]
	if len(transitions) == 0 {
		return Transition{}, fmt.Errorf("%w: cannot apply %s at step %s", ErrInvalidTransition, decision, m.current)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx, facts) {
			taken := Transition{
				From:     m.current,
				To:       t.to,
				Decision: decision,
				Outcome:  t.outcome,
			}
			m.current = t.to
			return taken, nil
		}
	}

	return Transition{}, fmt.Errorf("%w: %s at step %s", ErrGuardFailed, decision, m.current)
}

// PermittedDecisions returns the decisions configured at the current step in registration order
func (m *stateMachine) PermittedDecisions() []Decision {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Decision{}
	}
	return append([]Decision{}, config.decisions...)
}
