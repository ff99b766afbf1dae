package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/emis-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/emis-scheduler-api/pkg/errors"
)

func TestWorkloadDerivesLoadFromActiveSlots(t *testing.T) {
	teachers := &planTeacherStub{teachers: []models.Teacher{
		{ID: "t1", MaxWeeklyHours: 20, Active: true},
		{ID: "t2", MaxWeeklyHours: 24, Active: true},
	}}
	slots := &planSlotStoreStub{committed: []models.ScheduleSlot{
		{ID: "s1", TeacherID: "t1", SubjectID: "math", DayOfWeek: 1, Period: 1, Status: models.SlotStatusActive},
		{ID: "s2", TeacherID: "t1", SubjectID: "math", DayOfWeek: 2, Period: 1, Status: models.SlotStatusActive},
		{ID: "s3", TeacherID: "t1", SubjectID: "bio", DayOfWeek: 3, Period: 1, Status: models.SlotStatusActive},
		{ID: "s4", TeacherID: "t1", SubjectID: "math", DayOfWeek: 4, Period: 1, Status: models.SlotStatusCancelled},
	}}
	svc := NewWorkloadService(teachers, slots, &subjectReaderStub{}, zap.NewNop())

	loads, err := svc.ListTeacherLoads(context.Background(), "inst-1", "term-1")
	require.NoError(t, err)
	require.Len(t, loads, 2)

	assert.Equal(t, 3, loads[0].CurrentWeeklyHours, "cancelled slots carry no load")
	assert.Equal(t, 2, loads[0].SubjectCount)
	assert.InDelta(t, 0.15, loads[0].Utilization, 1e-9)
	assert.Equal(t, 0, loads[1].CurrentWeeklyHours)
}

func TestWorkloadRequiresScope(t *testing.T) {
	svc := NewWorkloadService(&planTeacherStub{}, &planSlotStoreStub{}, &subjectReaderStub{}, zap.NewNop())

	_, err := svc.ListTeacherLoads(context.Background(), "", "term-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

type subjectReaderStub struct {
	subjects []models.Subject
}

func (s *subjectReaderStub) List(ctx context.Context) ([]models.Subject, error) {
	return s.subjects, nil
}
