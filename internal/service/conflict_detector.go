package service

import (
	"fmt"

	"github.com/noah-isme/emis-scheduler-api/internal/models"
)

// ConflictDetector evaluates a candidate slot against committed schedule
// state. It is pure: it never mutates and holds no state of its own.
type ConflictDetector struct{}

// NewConflictDetector builds a detector.
func NewConflictDetector() *ConflictDetector {
	return &ConflictDetector{}
}

// BatchConflict pairs one candidate of a batch with its conflicts.
type BatchConflict struct {
	Index     int                 `json:"index"`
	Candidate models.ScheduleSlot `json:"candidate"`
	Conflicts []models.Conflict   `json:"conflicts"`
}

// Check reports every constraint the candidate would violate against the
// committed slots. Only active committed slots participate; a committed slot
// sharing the candidate's id is skipped so edits do not conflict with
// themselves. The teacher pool supplies weekly-hour ceilings;
// maxSubjectsPerTeacher of 0 disables the distinct-subject ceiling.
func (d *ConflictDetector) Check(candidate models.ScheduleSlot, committed []models.ScheduleSlot, pool map[string]models.Teacher, maxSubjectsPerTeacher int) []models.Conflict {
	var conflicts []models.Conflict

	var teacherHours int
	teacherSubjects := make(map[string]bool)
	var doubleBooked []models.ScheduleSlot
	var classClashes []models.ScheduleSlot
	var roomClashes []models.ScheduleSlot

	for _, existing := range committed {
		if existing.Status != models.SlotStatusActive || existing.ID == candidate.ID {
			continue
		}
		if existing.TeacherID == candidate.TeacherID {
			teacherHours++
			teacherSubjects[existing.SubjectID] = true
			if existing.DayOfWeek == candidate.DayOfWeek && existing.Period == candidate.Period {
				doubleBooked = append(doubleBooked, existing)
			}
		}
		if existing.DayOfWeek != candidate.DayOfWeek || existing.Period != candidate.Period {
			continue
		}
		if existing.ClassID == candidate.ClassID {
			classClashes = append(classClashes, existing)
		}
		if candidate.RoomValue() != "" && existing.RoomValue() == candidate.RoomValue() && existing.ClassID != candidate.ClassID {
			roomClashes = append(roomClashes, existing)
		}
	}

	if len(doubleBooked) > 0 {
		conflicts = append(conflicts, models.Conflict{
			Kind:        models.ConflictTeacherDoubleBooking,
			Severity:    models.SeverityCritical,
			Description: fmt.Sprintf("teacher %s already has an active slot at day %d period %d", candidate.TeacherID, candidate.DayOfWeek, candidate.Period),
			Slots:       doubleBooked,
		})
	}
	if len(classClashes) > 0 {
		conflicts = append(conflicts, models.Conflict{
			Kind:        models.ConflictClassOverload,
			Severity:    models.SeverityWarning,
			Description: fmt.Sprintf("class %s already has an active slot at day %d period %d", candidate.ClassID, candidate.DayOfWeek, candidate.Period),
			Slots:       classClashes,
		})
	}
	if len(roomClashes) > 0 {
		conflicts = append(conflicts, models.Conflict{
			Kind:        models.ConflictRoom,
			Severity:    models.SeverityWarning,
			Description: fmt.Sprintf("room %s is shared at day %d period %d", candidate.RoomValue(), candidate.DayOfWeek, candidate.Period),
			Slots:       roomClashes,
		})
	}

	if teacher, ok := pool[candidate.TeacherID]; ok {
		overHours := teacher.MaxWeeklyHours > 0 && teacherHours+1 > teacher.MaxWeeklyHours
		newSubject := !teacherSubjects[candidate.SubjectID]
		overSubjects := maxSubjectsPerTeacher > 0 && newSubject && len(teacherSubjects)+1 > maxSubjectsPerTeacher
		if overHours || overSubjects {
			reason := fmt.Sprintf("committing would raise teacher %s to %d/%d weekly hours", candidate.TeacherID, teacherHours+1, teacher.MaxWeeklyHours)
			if overSubjects {
				reason = fmt.Sprintf("committing would raise teacher %s to %d distinct subjects (max %d)", candidate.TeacherID, len(teacherSubjects)+1, maxSubjectsPerTeacher)
			}
			conflicts = append(conflicts, models.Conflict{
				Kind:        models.ConflictTeacherOverload,
				Severity:    models.SeverityWarning,
				Description: reason,
			})
		}
	}

	return conflicts
}

// CheckBatch validates a whole plan: each candidate is checked against the
// committed state plus the candidates placed before it, so conflicts inside
// the plan itself are also caught. Only conflicting entries are returned.
func (d *ConflictDetector) CheckBatch(candidates, committed []models.ScheduleSlot, pool map[string]models.Teacher, maxSubjectsPerTeacher int) []BatchConflict {
	var results []BatchConflict
	working := make([]models.ScheduleSlot, len(committed), len(committed)+len(candidates))
	copy(working, committed)

	for i, candidate := range candidates {
		if conflicts := d.Check(candidate, working, pool, maxSubjectsPerTeacher); len(conflicts) > 0 {
			results = append(results, BatchConflict{Index: i, Candidate: candidate, Conflicts: conflicts})
		}
		working = append(working, candidate)
	}
	return results
}
