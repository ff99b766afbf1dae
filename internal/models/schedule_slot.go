package models

import "time"

// SlotType classifies a schedule slot.
type SlotType string

const (
	SlotTypeRegular SlotType = "regular"
	SlotTypeExam    SlotType = "exam"
	SlotTypeBreak   SlotType = "break"
	SlotTypeSpecial SlotType = "special"
)

// SlotStatus is the lifecycle state of a schedule slot. Slots are never
// deleted; terminal states keep the audit trail.
type SlotStatus string

const (
	SlotStatusActive      SlotStatus = "active"
	SlotStatusCancelled   SlotStatus = "cancelled"
	SlotStatusMoved       SlotStatus = "moved"
	SlotStatusSubstituted SlotStatus = "substituted"
)

// ScheduleSlot is the atomic assignment unit: one (day, period) occupancy of a
// class by a subject/teacher pair. Identity is (term, class, day, period).
type ScheduleSlot struct {
	ID            string     `db:"id" json:"id"`
	InstitutionID string     `db:"institution_id" json:"institution_id"`
	TermID        string     `db:"term_id" json:"term_id"`
	ClassID       string     `db:"class_id" json:"class_id"`
	SubjectID     string     `db:"subject_id" json:"subject_id"`
	TeacherID     string     `db:"teacher_id" json:"teacher_id"`
	DayOfWeek     int        `db:"day_of_week" json:"day_of_week"`
	Period        int        `db:"period" json:"period"`
	Room          *string    `db:"room" json:"room,omitempty"`
	SlotType      SlotType   `db:"slot_type" json:"slot_type"`
	Status        SlotStatus `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// RoomValue returns the room or empty string.
func (s ScheduleSlot) RoomValue() string {
	if s.Room == nil {
		return ""
	}
	return *s.Room
}

// SlotFilter describes query params for listing schedule slots.
type SlotFilter struct {
	InstitutionID string
	TermID        string
	ClassID       string
	TeacherID     string
	DayOfWeek     int
	Period        int
	Status        SlotStatus
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
