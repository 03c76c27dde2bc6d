package workflow

// Status is the coarse lifecycle state of a location.
type Status string

const (
	StatusActive    Status = "active"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

var validStatuses = map[Status]bool{
	StatusActive:    true,
	StatusRejected:  true,
	StatusCompleted: true,
}

// IsValid returns true if the status is one of the known values
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// Consistent reports whether status and step agree:
// completed only at fertig, rejected only at a rejection marker, active
// everywhere else.
func Consistent(status Status, step Step) bool {
	return step.Status() == status
}
