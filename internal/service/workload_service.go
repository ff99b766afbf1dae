package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/emis-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/emis-scheduler-api/pkg/errors"
)

type subjectReader interface {
	List(ctx context.Context) ([]models.Subject, error)
}

type workloadSlotReader interface {
	ListActiveByTerm(ctx context.Context, institutionID, termID string) ([]models.ScheduleSlot, error)
}

// WorkloadService derives per-teacher load summaries from the committed
// schedule. Load is never stored; one period equals one weekly hour.
type WorkloadService struct {
	teachers lifecycleTeacherReader
	slots    workloadSlotReader
	subjects subjectReader
	logger   *zap.Logger
}

// NewWorkloadService wires the workload reader.
func NewWorkloadService(teachers lifecycleTeacherReader, slots workloadSlotReader, subjects subjectReader, logger *zap.Logger) *WorkloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkloadService{teachers: teachers, slots: slots, subjects: subjects, logger: logger}
}

// ListTeacherLoads returns the current utilization of every active teacher.
func (s *WorkloadService) ListTeacherLoads(ctx context.Context, institutionID, termID string) ([]models.TeacherLoad, error) {
	if institutionID == "" || termID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "institutionId and termId are required")
	}

	teachers, err := s.teachers.ListActive(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher pool")
	}
	committed, err := s.slots.ListActiveByTerm(ctx, institutionID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed schedule")
	}

	hours := make(map[string]int)
	subjects := make(map[string]map[string]bool)
	for _, slot := range committed {
		hours[slot.TeacherID]++
		if subjects[slot.TeacherID] == nil {
			subjects[slot.TeacherID] = make(map[string]bool)
		}
		subjects[slot.TeacherID][slot.SubjectID] = true
	}

	loads := make([]models.TeacherLoad, 0, len(teachers))
	for _, teacher := range teachers {
		load := models.TeacherLoad{
			TeacherID:          teacher.ID,
			MaxWeeklyHours:     teacher.MaxWeeklyHours,
			CurrentWeeklyHours: hours[teacher.ID],
			SubjectCount:       len(subjects[teacher.ID]),
		}
		if teacher.MaxWeeklyHours > 0 {
			load.Utilization = float64(load.CurrentWeeklyHours) / float64(teacher.MaxWeeklyHours)
		}
		loads = append(loads, load)
	}
	return loads, nil
}

// ListSubjects returns the subject reference list.
func (s *WorkloadService) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	subjects, err := s.subjects.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}
