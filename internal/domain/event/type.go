package event

// Type identifies the type of domain event
type Type string

const (
	TypeLocationCaptured  Type = "location.captured"
	TypeLocationAdvanced  Type = "location.advanced"
	TypeLocationUpdated   Type = "location.updated"
	TypeLocationRejected  Type = "location.rejected"
	TypeLocationCompleted Type = "location.completed"
	TypeLocationPurged    Type = "location.purged"
)

// AllTypes lists every event type in emission order of a location's life
var AllTypes = []Type{
	TypeLocationCaptured,
	TypeLocationAdvanced,
	TypeLocationUpdated,
	TypeLocationRejected,
	TypeLocationCompleted,
	TypeLocationPurged,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeLocationCaptured,
		TypeLocationAdvanced,
		TypeLocationUpdated,
		TypeLocationRejected,
		TypeLocationCompleted,
		TypeLocationPurged:
		return true
	default:
		return false
	}
}
