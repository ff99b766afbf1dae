package models

// ConflictKind is the closed set of constraint violations the detector reports.
type ConflictKind string

const (
	ConflictTeacherDoubleBooking ConflictKind = "teacher_double_booking"
	ConflictRoom                 ConflictKind = "room_conflict"
	ConflictClassOverload        ConflictKind = "class_overload"
	ConflictTeacherOverload      ConflictKind = "teacher_overload"
)

// ConflictSeverity ranks how blocking a conflict is. Only critical conflicts
// block commits outright; the rest are advisory.
type ConflictSeverity string

const (
	SeverityCritical ConflictSeverity = "critical"
	SeverityWarning  ConflictSeverity = "warning"
	SeverityMinor    ConflictSeverity = "minor"
)

// Conflict describes one violated constraint, with the committed slots that
// cause it for traceability.
type Conflict struct {
	Kind        ConflictKind     `json:"kind"`
	Severity    ConflictSeverity `json:"severity"`
	Description string           `json:"description"`
	Slots       []ScheduleSlot   `json:"slots,omitempty"`
}

// Critical reports whether the conflict blocks a commit.
func (c Conflict) Critical() bool {
	return c.Severity == SeverityCritical
}

// HasCritical reports whether any conflict in the list is blocking.
func HasCritical(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Critical() {
			return true
		}
	}
	return false
}
