package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/emis-scheduler-api/internal/dto"
	"github.com/noah-isme/emis-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/emis-scheduler-api/pkg/errors"
)

func TestLifecycleCancelRetiresSlot(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fixture := newLifecycleFixture(t, lifecycleFixtureConfig{
		slots: defaultLifecycleSlots(),
		tx:    tx,
	})

	mock.ExpectBegin()
	mock.ExpectCommit()

	slot, err := fixture.service.Mutate(context.Background(), "s1", dto.SlotMutationRequest{Operation: dto.SlotOpCancel})
	require.NoError(t, err)
	assert.Equal(t, models.SlotStatusCancelled, slot.Status)
	assert.Equal(t, models.SlotStatusCancelled, fixture.slots.byID["s1"].Status)
	assert.Equal(t, 1, fixture.versions.current, "every mutation bumps the schedule version")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLifecycleMoveBlocksTeacherDoubleBooking(t *testing.T) {
	fixture := newLifecycleFixture(t, lifecycleFixtureConfig{
		slots: defaultLifecycleSlots(),
	})

	day, period := 1, 1
	_, err := fixture.service.Mutate(context.Background(), "s2", dto.SlotMutationRequest{
		Operation: dto.SlotOpMove,
		DayOfWeek: &day,
		Period:    &period,
		Force:     true,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	detail, ok := appErr.Details.(dto.ConflictDetail)
	require.True(t, ok)
	require.NotEmpty(t, detail.Conflicts)
	assert.Equal(t, models.ConflictTeacherDoubleBooking, detail.Conflicts[0].Kind)
	assert.Equal(t, 0, fixture.versions.current)
}

func TestLifecycleMoveBlocksClassCoordinateClashEvenForced(t *testing.T) {
	fixture := newLifecycleFixture(t, lifecycleFixtureConfig{
		slots: defaultLifecycleSlots(),
	})

	// s3 belongs to the same class as s1; moving it onto s1's coordinate
	// would give the class two active slots there.
	day, period := 1, 1
	_, err := fixture.service.Mutate(context.Background(), "s3", dto.SlotMutationRequest{
		Operation: dto.SlotOpMove,
		DayOfWeek: &day,
		Period:    &period,
		Force:     true,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	detail, ok := appErr.Details.(dto.ConflictDetail)
	require.True(t, ok)
	assert.Equal(t, models.ConflictClassOverload, detail.Conflicts[0].Kind)
}

func TestLifecycleMoveKeepsAuditTrail(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fixture := newLifecycleFixture(t, lifecycleFixtureConfig{
		slots: defaultLifecycleSlots(),
		tx:    tx,
	})

	mock.ExpectBegin()
	mock.ExpectCommit()

	day, period := 4, 2
	moved, err := fixture.service.Mutate(context.Background(), "s2", dto.SlotMutationRequest{
		Operation: dto.SlotOpMove,
		DayOfWeek: &day,
		Period:    &period,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "s2", moved.ID)
	assert.Equal(t, models.SlotStatusActive, moved.Status)
	assert.Equal(t, 4, moved.DayOfWeek)
	assert.Equal(t, models.SlotStatusMoved, fixture.slots.byID["s2"].Status)
	assert.Equal(t, models.SlotStatusActive, fixture.slots.byID[moved.ID].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLifecycleEditForceOverridesWarning(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fixture := newLifecycleFixture(t, lifecycleFixtureConfig{
		slots: defaultLifecycleSlots(),
		tx:    tx,
	})

	// t3 is at their weekly ceiling, so reassignment raises a warning.
	teacher := "t3"
	req := dto.SlotMutationRequest{Operation: dto.SlotOpEdit, TeacherID: &teacher}

	_, err := fixture.service.Mutate(context.Background(), "s2", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	mock.ExpectBegin()
	mock.ExpectCommit()

	req.Force = true
	slot, err := fixture.service.Mutate(context.Background(), "s2", req)
	require.NoError(t, err)
	assert.Equal(t, "t3", slot.TeacherID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLifecycleMutateRejectsInactiveSlot(t *testing.T) {
	slots := defaultLifecycleSlots()
	slots["s1"].Status = models.SlotStatusCancelled
	fixture := newLifecycleFixture(t, lifecycleFixtureConfig{slots: slots})

	_, err := fixture.service.Mutate(context.Background(), "s1", dto.SlotMutationRequest{Operation: dto.SlotOpCancel})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLifecycleMutateUnknownSlot(t *testing.T) {
	fixture := newLifecycleFixture(t, lifecycleFixtureConfig{slots: defaultLifecycleSlots()})

	_, err := fixture.service.Mutate(context.Background(), "ghost", dto.SlotMutationRequest{Operation: dto.SlotOpCancel})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLifecycleApplySubstitutionsRetiresSlot(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fixture := newLifecycleFixture(t, lifecycleFixtureConfig{
		slots: defaultLifecycleSlots(),
		tx:    tx,
	})

	mock.ExpectBegin()
	mock.ExpectCommit()

	slot := *fixture.slots.byID["s1"]
	subs := []models.Substitution{
		{AbsenceID: "a1", SlotID: "s1", SubstituteTeacherID: "t2", DayOfWeek: 1, Period: 1, Status: models.SubstitutionAssigned},
	}
	require.NoError(t, fixture.service.ApplySubstitutions(context.Background(), slot, subs))
	assert.Equal(t, models.SlotStatusSubstituted, fixture.slots.byID["s1"].Status)
	assert.Len(t, fixture.subs.inserted, 1)
	assert.Equal(t, 1, fixture.versions.current)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Fixtures ---

type lifecycleFixtureConfig struct {
	slots map[string]*models.ScheduleSlot
	tx    txProvider
}

type lifecycleFixture struct {
	service  *SlotLifecycleService
	slots    *lifecycleSlotStoreStub
	subs     *substitutionWriterStub
	absences *absenceWriterStub
	versions *versionStoreStub
}

func newLifecycleFixture(t *testing.T, cfg lifecycleFixtureConfig) *lifecycleFixture {
	t.Helper()

	slots := &lifecycleSlotStoreStub{byID: cfg.slots}
	subs := &substitutionWriterStub{}
	absences := &absenceWriterStub{}
	versions := &versionStoreStub{}
	tx := cfg.tx
	if tx == nil {
		tx = noopTxProvider{}
	}

	teachers := &planTeacherStub{teachers: []models.Teacher{
		{ID: "t1", MaxWeeklyHours: 24, Active: true},
		{ID: "t2", MaxWeeklyHours: 24, Active: true},
		{ID: "t3", MaxWeeklyHours: 1, Active: true},
	}}

	svc := NewSlotLifecycleService(
		slots,
		teachers,
		&settingsStoreStub{},
		subs,
		absences,
		versions,
		NewConflictDetector(),
		tx,
		validator.New(),
		zap.NewNop(),
		nil,
	)
	return &lifecycleFixture{service: svc, slots: slots, subs: subs, absences: absences, versions: versions}
}

// defaultLifecycleSlots: s1 (t1/c1 at 1,1), s2 (t1/c2 at 2,2), s3 (t2/c1 at
// 3,3), s4 keeps t3 at their one-hour ceiling.
func defaultLifecycleSlots() map[string]*models.ScheduleSlot {
	return map[string]*models.ScheduleSlot{
		"s1": {ID: "s1", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c1", SubjectID: "math", TeacherID: "t1", DayOfWeek: 1, Period: 1, Status: models.SlotStatusActive},
		"s2": {ID: "s2", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c2", SubjectID: "math", TeacherID: "t1", DayOfWeek: 2, Period: 2, Status: models.SlotStatusActive},
		"s3": {ID: "s3", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c1", SubjectID: "bio", TeacherID: "t2", DayOfWeek: 3, Period: 3, Status: models.SlotStatusActive},
		"s4": {ID: "s4", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c3", SubjectID: "math", TeacherID: "t3", DayOfWeek: 5, Period: 5, Status: models.SlotStatusActive},
	}
}

type lifecycleSlotStoreStub struct {
	byID map[string]*models.ScheduleSlot
}

func (s *lifecycleSlotStoreStub) List(ctx context.Context, filter models.SlotFilter) ([]models.ScheduleSlot, int, error) {
	var result []models.ScheduleSlot
	for _, slot := range s.byID {
		result = append(result, *slot)
	}
	return result, len(result), nil
}

func (s *lifecycleSlotStoreStub) FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	slot, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *slot
	return &copied, nil
}

func (s *lifecycleSlotStoreStub) ListActiveByTerm(ctx context.Context, institutionID, termID string) ([]models.ScheduleSlot, error) {
	var active []models.ScheduleSlot
	for _, slot := range s.byID {
		if slot.Status == models.SlotStatusActive {
			active = append(active, *slot)
		}
	}
	return active, nil
}

func (s *lifecycleSlotStoreStub) InsertWithTx(ctx context.Context, exec sqlx.ExtContext, slot *models.ScheduleSlot) error {
	copied := *slot
	s.byID[slot.ID] = &copied
	return nil
}

func (s *lifecycleSlotStoreStub) UpdateWithTx(ctx context.Context, exec sqlx.ExtContext, slot *models.ScheduleSlot) error {
	copied := *slot
	s.byID[slot.ID] = &copied
	return nil
}

func (s *lifecycleSlotStoreStub) UpdateStatusWithTx(ctx context.Context, exec sqlx.ExtContext, id string, status models.SlotStatus) error {
	slot, ok := s.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	slot.Status = status
	return nil
}

type substitutionWriterStub struct {
	inserted []models.Substitution
}

func (s *substitutionWriterStub) InsertWithTx(ctx context.Context, exec sqlx.ExtContext, sub *models.Substitution) error {
	if sub.ID == "" {
		sub.ID = "sub-" + sub.SlotID + "-" + sub.Date.Format("20060102")
	}
	s.inserted = append(s.inserted, *sub)
	return nil
}

type absenceWriterStub struct {
	covered int
	total   int
	status  models.AbsenceStatus
	calls   int
}

func (s *absenceWriterStub) UpdateCoverageWithTx(ctx context.Context, exec sqlx.ExtContext, id string, covered, total int, status models.AbsenceStatus) error {
	s.covered = covered
	s.total = total
	s.status = status
	s.calls++
	return nil
}
