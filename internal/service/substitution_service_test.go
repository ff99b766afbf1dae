package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/emis-scheduler-api/internal/dto"
	"github.com/noah-isme/emis-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/emis-scheduler-api/pkg/errors"
)

// The default fixture: t1 is absent 2026-01-05 (Monday) through 2026-01-16,
// teaching math on Mondays (slot-a) and bio on Wednesdays (slot-b). t2 can
// cover math; t3 can cover bio but teaches their own class at that coordinate.
func TestSubstitutionAutoCoversWhatItCan(t *testing.T) {
	fixture := newSubstitutionFixture(t, defaultSubstitutionConfig())

	resp, err := fixture.service.ResolveAbsence(context.Background(), "a1", dto.ResolveAbsenceRequest{Mode: dto.ResolveAuto})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.CoveredPeriods)
	assert.Equal(t, 4, resp.TotalPeriods)
	require.Len(t, resp.Substitutions, 2)
	for _, sub := range resp.Substitutions {
		assert.Equal(t, "t2", sub.SubstituteTeacherID)
		assert.Equal(t, "slot-a", sub.SlotID)
		assert.Equal(t, models.SubstitutionAssigned, sub.Status)
	}
	assert.True(t, resp.Substitutions[0].Date.Equal(janDate(5)))
	assert.True(t, resp.Substitutions[1].Date.Equal(janDate(12)))

	require.Len(t, resp.Warnings, 2)
	for _, w := range resp.Warnings {
		assert.Equal(t, "slot-b", w.SlotID)
		assert.Equal(t, "no eligible substitute available", w.Reason)
	}

	assert.Equal(t, models.AbsencePending, fixture.lifecycle.status)
	assert.Equal(t, models.SlotStatusSubstituted, fixture.slots.statusOf("slot-a"))
	assert.Equal(t, models.SlotStatusActive, fixture.slots.statusOf("slot-b"))
}

func TestSubstitutionAutoExhaustsSubstituteCapacity(t *testing.T) {
	cfg := substitutionFixtureConfig{
		absence: models.Absence{
			ID:            "a1",
			InstitutionID: "inst-1",
			TermID:        "term-1",
			TeacherID:     "t1",
			StartDate:     janDate(5),
			EndDate:       janDate(9),
			Status:        models.AbsencePending,
		},
		// Both substitutes have room for exactly one more hour this week.
		teachers: []models.Teacher{
			{ID: "t1", MaxWeeklyHours: 24, Active: true},
			{ID: "t2", MaxWeeklyHours: 1, Active: true},
			{ID: "t3", MaxWeeklyHours: 1, Active: true},
		},
		quals: []models.TeacherQualification{
			{TeacherID: "t1", SubjectID: "math", Primary: true},
			{TeacherID: "t2", SubjectID: "math", Primary: true},
			{TeacherID: "t3", SubjectID: "math", Primary: true},
		},
		slots: []models.ScheduleSlot{
			{ID: "slot-w", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c1", SubjectID: "math", TeacherID: "t1", DayOfWeek: 1, Period: 1, Status: models.SlotStatusActive},
			{ID: "slot-x", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c1", SubjectID: "math", TeacherID: "t1", DayOfWeek: 2, Period: 1, Status: models.SlotStatusActive},
			{ID: "slot-y", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c1", SubjectID: "math", TeacherID: "t1", DayOfWeek: 3, Period: 1, Status: models.SlotStatusActive},
			{ID: "slot-z", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c1", SubjectID: "math", TeacherID: "t1", DayOfWeek: 4, Period: 1, Status: models.SlotStatusActive},
		},
	}
	fixture := newSubstitutionFixture(t, cfg)

	resp, err := fixture.service.ResolveAbsence(context.Background(), "a1", dto.ResolveAbsenceRequest{Mode: dto.ResolveAuto})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.CoveredPeriods)
	assert.Equal(t, 4, resp.TotalPeriods)
	require.Len(t, resp.Substitutions, 2)

	// Hours picked up during the run count against the ceiling, so each
	// substitute absorbs exactly one slot and the rest stay uncovered.
	perTeacher := make(map[string]int)
	for _, sub := range resp.Substitutions {
		perTeacher[sub.SubstituteTeacherID]++
	}
	assert.Equal(t, 1, perTeacher["t2"])
	assert.Equal(t, 1, perTeacher["t3"])

	require.Len(t, resp.Warnings, 2)
	assert.Equal(t, "slot-y", resp.Warnings[0].SlotID)
	assert.Equal(t, "slot-z", resp.Warnings[1].SlotID)
}

func TestSubstitutionResolveIsIdempotent(t *testing.T) {
	fixture := newSubstitutionFixture(t, defaultSubstitutionConfig())

	first, err := fixture.service.ResolveAbsence(context.Background(), "a1", dto.ResolveAbsenceRequest{Mode: dto.ResolveAuto})
	require.NoError(t, err)
	require.Len(t, fixture.lifecycle.applied, 2)

	// Covered slots left the active set, so a re-run finds the same coverage
	// and assigns nothing new.
	fixture.subs.existing = fixture.lifecycle.applied
	second, err := fixture.service.ResolveAbsence(context.Background(), "a1", dto.ResolveAbsenceRequest{Mode: dto.ResolveAuto})
	require.NoError(t, err)

	assert.Equal(t, first.CoveredPeriods, second.CoveredPeriods)
	assert.Equal(t, first.TotalPeriods, second.TotalPeriods)
	assert.Len(t, fixture.lifecycle.applied, 2, "re-running must not duplicate assignments")
}

func TestSubstitutionAutoPrefersPrimaryQualification(t *testing.T) {
	cfg := defaultSubstitutionConfig()
	// t4 is idle but only secondarily qualified; loaded t2 still wins slot-a.
	cfg.teachers = append(cfg.teachers, models.Teacher{ID: "t4", MaxWeeklyHours: 24, Active: true})
	cfg.quals = append(cfg.quals, models.TeacherQualification{TeacherID: "t4", SubjectID: "math", Primary: false})
	cfg.slots = append(cfg.slots, models.ScheduleSlot{
		ID: "slot-t2", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c3",
		SubjectID: "math", TeacherID: "t2", DayOfWeek: 5, Period: 6, Status: models.SlotStatusActive,
	})
	fixture := newSubstitutionFixture(t, cfg)

	resp, err := fixture.service.ResolveAbsence(context.Background(), "a1", dto.ResolveAbsenceRequest{Mode: dto.ResolveAuto})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Substitutions)
	assert.Equal(t, "t2", resp.Substitutions[0].SubstituteTeacherID)
}

func TestSubstitutionManualCoversChosenSlot(t *testing.T) {
	fixture := newSubstitutionFixture(t, defaultSubstitutionConfig())

	resp, err := fixture.service.ResolveAbsence(context.Background(), "a1", dto.ResolveAbsenceRequest{
		Mode:      dto.ResolveManual,
		SlotID:    "slot-a",
		TeacherID: "t2",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.CoveredPeriods)
	assert.Equal(t, 4, resp.TotalPeriods)
	require.Len(t, resp.Substitutions, 2)
	require.Len(t, resp.Warnings, 2)
	assert.Equal(t, "slot-b", resp.Warnings[0].SlotID)
	assert.Equal(t, models.SlotStatusSubstituted, fixture.slots.statusOf("slot-a"))
}

func TestSubstitutionManualRejectsIneligibleTeacher(t *testing.T) {
	fixture := newSubstitutionFixture(t, defaultSubstitutionConfig())

	// t3 has no math qualification.
	_, err := fixture.service.ResolveAbsence(context.Background(), "a1", dto.ResolveAbsenceRequest{
		Mode:      dto.ResolveManual,
		SlotID:    "slot-a",
		TeacherID: "t3",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// t3 is bio-qualified but already teaches at slot-b's coordinate.
	_, err = fixture.service.ResolveAbsence(context.Background(), "a1", dto.ResolveAbsenceRequest{
		Mode:      dto.ResolveManual,
		SlotID:    "slot-b",
		TeacherID: "t3",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, fixture.lifecycle.applied)
}

func TestSubstitutionManualUnknownSlotAndDateMismatch(t *testing.T) {
	fixture := newSubstitutionFixture(t, defaultSubstitutionConfig())

	_, err := fixture.service.ResolveAbsence(context.Background(), "a1", dto.ResolveAbsenceRequest{
		Mode:      dto.ResolveManual,
		SlotID:    "ghost",
		TeacherID: "t2",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	// slot-a runs on Mondays; January 6th is a Tuesday.
	mismatch := janDate(6)
	_, err = fixture.service.ResolveAbsence(context.Background(), "a1", dto.ResolveAbsenceRequest{
		Mode:      dto.ResolveManual,
		SlotID:    "slot-a",
		TeacherID: "t2",
		Date:      &mismatch,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubstitutionResolveWithoutOccurrences(t *testing.T) {
	cfg := defaultSubstitutionConfig()
	// Weekend-only window: no working day, nothing to cover.
	cfg.absence.StartDate = janDate(10)
	cfg.absence.EndDate = janDate(11)
	cfg.absence.TotalPeriods = 3
	fixture := newSubstitutionFixture(t, cfg)

	resp, err := fixture.service.ResolveAbsence(context.Background(), "a1", dto.ResolveAbsenceRequest{Mode: dto.ResolveAuto})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.CoveredPeriods)
	assert.Equal(t, 3, resp.TotalPeriods)
	assert.Empty(t, resp.Warnings)
	assert.Empty(t, fixture.lifecycle.applied)
}

func TestSubstitutionResolveRejectsCancelledAbsence(t *testing.T) {
	cfg := defaultSubstitutionConfig()
	cfg.absence.Status = models.AbsenceCancelled
	fixture := newSubstitutionFixture(t, cfg)

	_, err := fixture.service.ResolveAbsence(context.Background(), "a1", dto.ResolveAbsenceRequest{Mode: dto.ResolveAuto})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubstitutionResolveUnknownAbsence(t *testing.T) {
	fixture := newSubstitutionFixture(t, defaultSubstitutionConfig())

	_, err := fixture.service.ResolveAbsence(context.Background(), "ghost", dto.ResolveAbsenceRequest{Mode: dto.ResolveAuto})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

// --- Fixtures ---

func janDate(day int) time.Time {
	return time.Date(2026, time.January, day, 0, 0, 0, 0, time.UTC)
}

type substitutionFixtureConfig struct {
	absence  models.Absence
	teachers []models.Teacher
	quals    []models.TeacherQualification
	slots    []models.ScheduleSlot
}

func defaultSubstitutionConfig() substitutionFixtureConfig {
	return substitutionFixtureConfig{
		absence: models.Absence{
			ID:            "a1",
			InstitutionID: "inst-1",
			TermID:        "term-1",
			TeacherID:     "t1",
			StartDate:     janDate(5),
			EndDate:       janDate(16),
			Status:        models.AbsencePending,
		},
		teachers: []models.Teacher{
			{ID: "t1", MaxWeeklyHours: 24, Active: true},
			{ID: "t2", MaxWeeklyHours: 24, Active: true},
			{ID: "t3", MaxWeeklyHours: 24, Active: true},
		},
		quals: []models.TeacherQualification{
			{TeacherID: "t1", SubjectID: "math", Primary: true},
			{TeacherID: "t1", SubjectID: "bio", Primary: true},
			{TeacherID: "t2", SubjectID: "math", Primary: true},
			{TeacherID: "t3", SubjectID: "bio", Primary: true},
		},
		slots: []models.ScheduleSlot{
			{ID: "slot-a", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c1", SubjectID: "math", TeacherID: "t1", DayOfWeek: 1, Period: 1, Status: models.SlotStatusActive},
			{ID: "slot-b", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c1", SubjectID: "bio", TeacherID: "t1", DayOfWeek: 3, Period: 2, Status: models.SlotStatusActive},
			{ID: "slot-c", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c2", SubjectID: "bio", TeacherID: "t3", DayOfWeek: 3, Period: 2, Status: models.SlotStatusActive},
		},
	}
}

type substitutionFixture struct {
	service   *SubstitutionService
	slots     *subSlotReaderStub
	subs      *substitutionReaderStub
	lifecycle *slotRetirerStub
}

func newSubstitutionFixture(t *testing.T, cfg substitutionFixtureConfig) *substitutionFixture {
	t.Helper()

	slots := &subSlotReaderStub{slots: cfg.slots}
	subs := &substitutionReaderStub{}
	lifecycle := &slotRetirerStub{slots: slots}

	svc := NewSubstitutionService(
		&absenceStoreStub{absence: cfg.absence},
		subs,
		&planTeacherStub{teachers: cfg.teachers, quals: cfg.quals},
		slots,
		gridResolverStub{grid: testGrid()},
		lifecycle,
		validator.New(),
		zap.NewNop(),
		nil,
	)
	return &substitutionFixture{service: svc, slots: slots, subs: subs, lifecycle: lifecycle}
}

type absenceStoreStub struct {
	absence models.Absence
}

func (s *absenceStoreStub) FindByID(ctx context.Context, id string) (*models.Absence, error) {
	if id != s.absence.ID {
		return nil, sql.ErrNoRows
	}
	copied := s.absence
	return &copied, nil
}

func (s *absenceStoreStub) List(ctx context.Context, filter models.AbsenceFilter) ([]models.Absence, int, error) {
	return []models.Absence{s.absence}, 1, nil
}

type substitutionReaderStub struct {
	existing []models.Substitution
}

func (s *substitutionReaderStub) ListByAbsence(ctx context.Context, absenceID string) ([]models.Substitution, error) {
	return s.existing, nil
}

type subSlotReaderStub struct {
	slots []models.ScheduleSlot
}

func (s *subSlotReaderStub) ListActiveByTerm(ctx context.Context, institutionID, termID string) ([]models.ScheduleSlot, error) {
	var active []models.ScheduleSlot
	for _, slot := range s.slots {
		if slot.Status == models.SlotStatusActive {
			active = append(active, slot)
		}
	}
	return active, nil
}

func (s *subSlotReaderStub) ListActiveByTeacher(ctx context.Context, termID, teacherID string) ([]models.ScheduleSlot, error) {
	var active []models.ScheduleSlot
	for _, slot := range s.slots {
		if slot.TeacherID == teacherID && slot.Status == models.SlotStatusActive {
			active = append(active, slot)
		}
	}
	return active, nil
}

func (s *subSlotReaderStub) setStatus(id string, status models.SlotStatus) {
	for i := range s.slots {
		if s.slots[i].ID == id {
			s.slots[i].Status = status
		}
	}
}

func (s *subSlotReaderStub) statusOf(id string) models.SlotStatus {
	for _, slot := range s.slots {
		if slot.ID == id {
			return slot.Status
		}
	}
	return ""
}

type slotRetirerStub struct {
	slots   *subSlotReaderStub
	applied []models.Substitution
	covered int
	total   int
	status  models.AbsenceStatus
}

func (s *slotRetirerStub) ApplySubstitutions(ctx context.Context, slot models.ScheduleSlot, subs []models.Substitution) error {
	s.applied = append(s.applied, subs...)
	s.slots.setStatus(slot.ID, models.SlotStatusSubstituted)
	return nil
}

func (s *slotRetirerStub) UpdateAbsenceCoverage(ctx context.Context, absenceID string, covered, total int, status models.AbsenceStatus) error {
	s.covered = covered
	s.total = total
	s.status = status
	return nil
}
