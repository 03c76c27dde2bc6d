package workflow

// Step is a named stage of the location approval pipeline. Rejection markers
// and the done marker are steps too: they are what current_step holds once a
// location has left the active pipeline.
type Step string

const (
	StepErfassung            Step = "erfassung"
	StepLeiterAkquisition    Step = "leiter_akquisition"
	StepNiederlassungsleiter Step = "niederlassungsleiter"
	StepBaurecht             Step = "baurecht"
	StepWiderspruch          Step = "widerspruch"
	StepCEO                  Step = "ceo"
	StepBauteam              Step = "bauteam"
	StepFertigstellung       Step = "fertigstellung"
	StepFertig               Step = "fertig"
)

// Rejection-terminal markers, one per review step that can reject.
const (
	StepLeiterAkquisitionRejected    Step = "leiter_akquisition_abgelehnt"
	StepNiederlassungsleiterRejected Step = "niederlassungsleiter_abgelehnt"
	StepBaurechtRejected             Step = "baurecht_abgelehnt"
	StepWiderspruchRejected          Step = "widerspruch_abgelehnt"
	StepCEORejected                  Step = "ceo_abgelehnt"

	// Markers written by older versions of the capture tool.
	StepLegacyRejected Step = "abgelehnt"
	StepLegacyAborted  Step = "abgebrochen"
)

// stepOrder is the nominal pipeline order. Reporting relies on it for
// at-or-past comparisons; never compare step names lexically.
var stepOrder = []Step{
	StepErfassung,
	StepLeiterAkquisition,
	StepNiederlassungsleiter,
	StepBaurecht,
	StepWiderspruch,
	StepCEO,
	StepBauteam,
	StepFertigstellung,
	StepFertig,
}

var stepIndex = func() map[Step]int {
	idx := make(map[Step]int, len(stepOrder))
	for i, s := range stepOrder {
		idx[s] = i
	}
	return idx
}()

// rejectionMarkers maps each marker to the step it was rejected at.
// Legacy markers carry no step.
var rejectionMarkers = map[Step]Step{
	StepLeiterAkquisitionRejected:    StepLeiterAkquisition,
	StepNiederlassungsleiterRejected: StepNiederlassungsleiter,
	StepBaurechtRejected:             StepBaurecht,
	StepWiderspruchRejected:          StepWiderspruch,
	StepCEORejected:                  StepCEO,
	StepLegacyRejected:               "",
	StepLegacyAborted:                "",
}

var rejectionFor = map[Step]Step{
	StepLeiterAkquisition:    StepLeiterAkquisitionRejected,
	StepNiederlassungsleiter: StepNiederlassungsleiterRejected,
	StepBaurecht:             StepBaurechtRejected,
	StepWiderspruch:          StepWiderspruchRejected,
	StepCEO:                  StepCEORejected,
}

// Steps returns the pipeline steps in nominal order.
func Steps() []Step {
	return append([]Step(nil), stepOrder...)
}

// String returns the string representation of the step
func (s Step) String() string {
	return string(s)
}

// IsValid reports whether s is a pipeline step or a rejection marker.
func (s Step) IsValid() bool {
	_, inPipeline := stepIndex[s]
	return inPipeline || s.IsRejection()
}

// IsRejection reports whether s is a rejection-terminal marker.
func (s Step) IsRejection() bool {
	_, ok := rejectionMarkers[s]
	return ok
}

// IsTerminal returns true if no further decisions are accepted at s.
func (s Step) IsTerminal() bool {
	return s == StepFertig || s.IsRejection()
}

// Index returns the position of s in the nominal order.
func (s Step) Index() (int, bool) {
	i, ok := stepIndex[s]
	return i, ok
}

// AtOrPast reports whether s sits at or beyond other in the nominal order.
// Unknown steps and rejection markers are never at or past anything.
func (s Step) AtOrPast(other Step) bool {
	i, ok := stepIndex[s]
	if !ok {
		return false
	}
	j, ok := stepIndex[other]
	if !ok {
		return false
	}
	return i >= j
}

// RejectedAt returns the step a rejection marker was written from.
func (s Step) RejectedAt() (Step, bool) {
	at, ok := rejectionMarkers[s]
	return at, ok && at != ""
}

// RejectionMarker returns the terminal marker for a rejection at s.
func RejectionMarker(s Step) (Step, bool) {
	m, ok := rejectionFor[s]
	return m, ok
}

// Status derives the location status implied by holding step s.
func (s Step) Status() Status {
	switch {
	case s == StepFertig:
		return StatusCompleted
	case s.IsRejection():
		return StatusRejected
	default:
		return StatusActive
	}
}
