package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/emis-scheduler-api/internal/dto"
	"github.com/noah-isme/emis-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/emis-scheduler-api/pkg/errors"
)

func TestDistributionPreviewBalancesWorkload(t *testing.T) {
	fixture := newDistributionFixture(t, distributionFixtureConfig{
		teachers: []models.Teacher{
			{ID: "t1", MaxWeeklyHours: 24, Active: true},
			{ID: "t2", MaxWeeklyHours: 24, Active: true},
		},
		quals: []models.TeacherQualification{
			{TeacherID: "t1", SubjectID: "math", Primary: true},
			{TeacherID: "t2", SubjectID: "math", Primary: true},
		},
		classes: []models.ClassSection{{ID: "c1"}},
		targets: []models.ClassSubjectTarget{{ClassID: "c1", SubjectID: "math", WeeklyHours: 3}},
		// t2 already carries 20 of 24 hours for another class.
		committed: busySlots("t2", "c2", 20),
	})

	resp, err := fixture.service.BuildPreview(context.Background(), dto.BuildPreviewRequest{
		InstitutionID:   "inst-1",
		TermID:          "term-1",
		Strategy:        models.StrategyAutomatic,
		SelectedClasses: []string{"c1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "preview", resp.Mode)
	require.Len(t, resp.Plan.Slots, 3)
	for _, slot := range resp.Plan.Slots {
		assert.Equal(t, "t1", slot.TeacherID, "the least loaded teacher should absorb new hours")
	}
	assert.Empty(t, resp.Plan.Warnings)
	assert.Equal(t, 0, resp.Plan.ScheduleVersion)
	assert.NotEmpty(t, resp.Plan.PlanID)
}

func TestDistributionPreviewIsDeterministic(t *testing.T) {
	cfg := distributionFixtureConfig{
		teachers: []models.Teacher{
			{ID: "t1", MaxWeeklyHours: 24, Active: true},
			{ID: "t2", MaxWeeklyHours: 24, Active: true},
		},
		quals: []models.TeacherQualification{
			{TeacherID: "t1", SubjectID: "math", Primary: true},
			{TeacherID: "t2", SubjectID: "math", Primary: true},
		},
		classes: []models.ClassSection{{ID: "c1"}},
		targets: []models.ClassSubjectTarget{{ClassID: "c1", SubjectID: "math", WeeklyHours: 4}},
	}
	first := newDistributionFixture(t, cfg)
	second := newDistributionFixture(t, cfg)

	req := dto.BuildPreviewRequest{
		InstitutionID:   "inst-1",
		TermID:          "term-1",
		Strategy:        models.StrategyAutomatic,
		SelectedClasses: []string{"c1"},
	}
	respA, err := first.service.BuildPreview(context.Background(), req)
	require.NoError(t, err)
	respB, err := second.service.BuildPreview(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, len(respA.Plan.Slots), len(respB.Plan.Slots))
	for i := range respA.Plan.Slots {
		a, b := respA.Plan.Slots[i], respB.Plan.Slots[i]
		assert.Equal(t, a.TeacherID, b.TeacherID)
		assert.Equal(t, a.DayOfWeek, b.DayOfWeek)
		assert.Equal(t, a.Period, b.Period)
	}
}

func TestDistributionPreviewSubtractsCommittedHours(t *testing.T) {
	committed := []models.ScheduleSlot{
		{ID: "s1", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c1", SubjectID: "math", TeacherID: "t1", DayOfWeek: 1, Period: 1, Status: models.SlotStatusActive},
	}
	fixture := newDistributionFixture(t, distributionFixtureConfig{
		teachers:  []models.Teacher{{ID: "t1", MaxWeeklyHours: 24, Active: true}},
		quals:     []models.TeacherQualification{{TeacherID: "t1", SubjectID: "math", Primary: true}},
		classes:   []models.ClassSection{{ID: "c1"}},
		targets:   []models.ClassSubjectTarget{{ClassID: "c1", SubjectID: "math", WeeklyHours: 3}},
		committed: committed,
	})

	resp, err := fixture.service.BuildPreview(context.Background(), dto.BuildPreviewRequest{
		InstitutionID:   "inst-1",
		TermID:          "term-1",
		Strategy:        models.StrategyAutomatic,
		SelectedClasses: []string{"c1"},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Plan.Slots, 2)
	for _, slot := range resp.Plan.Slots {
		assert.False(t, slot.DayOfWeek == 1 && slot.Period == 1, "occupied class coordinate must stay untouched")
	}
}

func TestDistributionPreviewManualReturnsDemands(t *testing.T) {
	fixture := newDistributionFixture(t, distributionFixtureConfig{
		teachers: []models.Teacher{{ID: "t1", MaxWeeklyHours: 24, Active: true}},
		quals:    []models.TeacherQualification{{TeacherID: "t1", SubjectID: "math", Primary: true}},
		classes:  []models.ClassSection{{ID: "c1"}},
		targets:  []models.ClassSubjectTarget{{ClassID: "c1", SubjectID: "math", WeeklyHours: 3}},
	})

	resp, err := fixture.service.BuildPreview(context.Background(), dto.BuildPreviewRequest{
		InstitutionID:   "inst-1",
		TermID:          "term-1",
		Strategy:        models.StrategyManual,
		SelectedClasses: []string{"c1"},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Plan.Slots)
	require.Len(t, resp.Plan.Demands, 1)
	assert.Equal(t, 3, resp.Plan.Demands[0].RemainingHours)
}

func TestDistributionPreviewReportsUnsatisfiedDemand(t *testing.T) {
	fixture := newDistributionFixture(t, distributionFixtureConfig{
		teachers: []models.Teacher{{ID: "t1", MaxWeeklyHours: 24, Active: true}},
		quals:    []models.TeacherQualification{{TeacherID: "t1", SubjectID: "math", Primary: true}},
		classes:  []models.ClassSection{{ID: "c1"}},
		targets: []models.ClassSubjectTarget{
			{ClassID: "c1", SubjectID: "physics", WeeklyHours: 2},
		},
	})

	resp, err := fixture.service.BuildPreview(context.Background(), dto.BuildPreviewRequest{
		InstitutionID:   "inst-1",
		TermID:          "term-1",
		Strategy:        models.StrategyAutomatic,
		SelectedClasses: []string{"c1"},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Plan.Slots)
	require.Len(t, resp.Plan.Warnings, 1)
	assert.Equal(t, "physics", resp.Plan.Warnings[0].SubjectID)
	assert.Equal(t, 2, resp.Plan.Warnings[0].RemainingHours)
}

func TestDistributionPreviewUnknownClass(t *testing.T) {
	fixture := newDistributionFixture(t, distributionFixtureConfig{
		classes: []models.ClassSection{{ID: "c1"}},
	})

	_, err := fixture.service.BuildPreview(context.Background(), dto.BuildPreviewRequest{
		InstitutionID:   "inst-1",
		TermID:          "term-1",
		Strategy:        models.StrategyAutomatic,
		SelectedClasses: []string{"c1", "ghost"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDistributionCommitPersistsPlan(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fixture := newDistributionFixture(t, distributionFixtureConfig{
		teachers: []models.Teacher{{ID: "t1", MaxWeeklyHours: 24, Active: true}},
		quals:    []models.TeacherQualification{{TeacherID: "t1", SubjectID: "math", Primary: true}},
		classes:  []models.ClassSection{{ID: "c1"}},
		targets:  []models.ClassSubjectTarget{{ClassID: "c1", SubjectID: "math", WeeklyHours: 3}},
		tx:       tx,
	})

	resp, err := fixture.service.BuildPreview(context.Background(), dto.BuildPreviewRequest{
		InstitutionID:   "inst-1",
		TermID:          "term-1",
		Strategy:        models.StrategyAutomatic,
		SelectedClasses: []string{"c1"},
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	committed, err := fixture.service.CommitPlan(context.Background(), dto.CommitPlanRequest{
		PlanID:                  resp.Plan.PlanID,
		ExpectedScheduleVersion: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, committed.ScheduleVersion)
	assert.Len(t, committed.Slots, 3)
	assert.Len(t, fixture.slots.inserted, 3)
	assert.NoError(t, mock.ExpectationsWereMet())

	// The plan is consumed on commit.
	_, err = fixture.service.CommitPlan(context.Background(), dto.CommitPlanRequest{
		PlanID:                  resp.Plan.PlanID,
		ExpectedScheduleVersion: 1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDistributionCommitStalePlan(t *testing.T) {
	tx, _ := newTxProviderMock(t)
	fixture := newDistributionFixture(t, distributionFixtureConfig{
		teachers: []models.Teacher{{ID: "t1", MaxWeeklyHours: 24, Active: true}},
		quals:    []models.TeacherQualification{{TeacherID: "t1", SubjectID: "math", Primary: true}},
		classes:  []models.ClassSection{{ID: "c1"}},
		targets:  []models.ClassSubjectTarget{{ClassID: "c1", SubjectID: "math", WeeklyHours: 2}},
		tx:       tx,
	})

	resp, err := fixture.service.BuildPreview(context.Background(), dto.BuildPreviewRequest{
		InstitutionID:   "inst-1",
		TermID:          "term-1",
		Strategy:        models.StrategyAutomatic,
		SelectedClasses: []string{"c1"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Plan.Slots, 2)

	// A concurrent mutation lands: version moves and the first proposed
	// coordinate gets taken by the same teacher.
	fixture.versions.current = 1
	first := resp.Plan.Slots[0]
	fixture.slots.committed = append(fixture.slots.committed, models.ScheduleSlot{
		ID: "sx", InstitutionID: "inst-1", TermID: "term-1", ClassID: "c9",
		SubjectID: "math", TeacherID: first.TeacherID,
		DayOfWeek: first.DayOfWeek, Period: first.Period,
		Status: models.SlotStatusActive,
	})

	_, err = fixture.service.CommitPlan(context.Background(), dto.CommitPlanRequest{
		PlanID:                  resp.Plan.PlanID,
		ExpectedScheduleVersion: 0,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPlanStale.Code, appErr.Code)

	detail, ok := appErr.Details.(dto.StalePlanDetail)
	require.True(t, ok)
	assert.Equal(t, 0, detail.ExpectedVersion)
	assert.Equal(t, 1, detail.CurrentVersion)
	require.Len(t, detail.StaleSlots, 1)
	assert.Equal(t, first.DayOfWeek, detail.StaleSlots[0].DayOfWeek)
	assert.Equal(t, first.Period, detail.StaleSlots[0].Period)
	assert.Empty(t, fixture.slots.inserted, "a stale plan must not partially commit")
}

func TestDistributionScoreRespectsUtilizationBand(t *testing.T) {
	fixture := newDistributionFixture(t, distributionFixtureConfig{})

	settings := models.DefaultDistributionSettings("inst-1", "term-1")
	settings.PrioritizeSpecial = false
	settings.RespectPreferences = false
	settings.MinUtilizationPct = 40
	settings.MaxUtilizationPct = 90
	weight := float64(settings.RuleWeight(models.RuleWorkloadBalance))

	teacher := models.Teacher{ID: "t1", MaxWeeklyHours: 20}
	qual := models.TeacherQualification{TeacherID: "t1", SubjectID: "math", Primary: true}
	coord := models.GridCoordinate{DayOfWeek: 1, Period: 1}

	// 3/20 hours lands under the 40% floor and earns the fill-up bonus.
	below := fixture.service.scoreCandidate(teacher, qual, coord, 2, nil, teacherPrefs{}, &settings)
	assert.InDelta(t, weight*(1-0.15)+weight*0.5, below, 1e-9)

	// 10/20 hours sits inside the band: plain balance score only.
	inside := fixture.service.scoreCandidate(teacher, qual, coord, 9, nil, teacherPrefs{}, &settings)
	assert.InDelta(t, weight*(1-0.5), inside, 1e-9)

	// 20/20 hours breaches the 90% ceiling and is penalized.
	above := fixture.service.scoreCandidate(teacher, qual, coord, 19, nil, teacherPrefs{}, &settings)
	assert.InDelta(t, -weight, above, 1e-9)
}

func TestDistributionSettingsFallBackToDefaults(t *testing.T) {
	fixture := newDistributionFixture(t, distributionFixtureConfig{})

	settings, err := fixture.service.GetSettings(context.Background(), "inst-1", "term-1")
	require.NoError(t, err)
	assert.True(t, settings.AvoidConflicts)
	assert.Equal(t, 5, settings.RuleWeight(models.RuleWorkloadBalance))
	assert.Equal(t, 0, settings.RuleWeight(models.RuleKind("unknown")))
}

func TestDistributionUpdateSettingsValidatesWeights(t *testing.T) {
	fixture := newDistributionFixture(t, distributionFixtureConfig{})

	bad := models.DefaultDistributionSettings("inst-1", "term-1")
	bad.Rules[0].Weight = 11
	err := fixture.service.UpdateSettings(context.Background(), &bad)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	good := models.DefaultDistributionSettings("inst-1", "term-1")
	require.NoError(t, fixture.service.UpdateSettings(context.Background(), &good))
	assert.NotNil(t, fixture.settings.stored)
}

// --- Fixtures ---

type distributionFixtureConfig struct {
	teachers  []models.Teacher
	quals     []models.TeacherQualification
	classes   []models.ClassSection
	targets   []models.ClassSubjectTarget
	committed []models.ScheduleSlot
	settings  *models.DistributionSettings
	tx        txProvider
}

type distributionFixture struct {
	service  *DistributionService
	slots    *planSlotStoreStub
	versions *versionStoreStub
	settings *settingsStoreStub
}

func newDistributionFixture(t *testing.T, cfg distributionFixtureConfig) *distributionFixture {
	t.Helper()

	slots := &planSlotStoreStub{committed: cfg.committed}
	versions := &versionStoreStub{}
	settings := &settingsStoreStub{settings: cfg.settings}
	tx := cfg.tx
	if tx == nil {
		tx = noopTxProvider{}
	}

	svc := NewDistributionService(
		slots,
		&planTeacherStub{teachers: cfg.teachers, quals: cfg.quals},
		&planClassStub{classes: cfg.classes, targets: cfg.targets},
		settings,
		versions,
		gridResolverStub{grid: testGrid()},
		NewConflictDetector(),
		tx,
		validator.New(),
		zap.NewNop(),
		nil,
		DistributionConfig{PlanTTL: time.Hour, MaxIterations: 500},
	)
	return &distributionFixture{service: svc, slots: slots, versions: versions, settings: settings}
}

// testGrid is five days of six schedulable periods.
func testGrid() *models.TimeGrid {
	grid := &models.TimeGrid{
		InstitutionID: "inst-1",
		TermID:        "term-1",
		Days:          []int{1, 2, 3, 4, 5},
	}
	for p := 1; p <= 6; p++ {
		grid.Periods = append(grid.Periods, models.TimeSlot{Period: p})
	}
	for _, day := range grid.Days {
		for p := 1; p <= 6; p++ {
			grid.Coordinates = append(grid.Coordinates, models.GridCoordinate{DayOfWeek: day, Period: p})
		}
	}
	return grid
}

// busySlots spreads n active slots for one teacher over the test grid.
func busySlots(teacherID, classID string, n int) []models.ScheduleSlot {
	var slots []models.ScheduleSlot
	for i := 0; i < n; i++ {
		slots = append(slots, models.ScheduleSlot{
			ID:            "busy-" + teacherID + "-" + string(rune('a'+i)),
			InstitutionID: "inst-1",
			TermID:        "term-1",
			ClassID:       classID,
			SubjectID:     "math",
			TeacherID:     teacherID,
			DayOfWeek:     i/4 + 1,
			Period:        i%4 + 1,
			Status:        models.SlotStatusActive,
		})
	}
	return slots
}

type planSlotStoreStub struct {
	committed []models.ScheduleSlot
	inserted  []models.ScheduleSlot
}

func (s *planSlotStoreStub) ListActiveByTerm(ctx context.Context, institutionID, termID string) ([]models.ScheduleSlot, error) {
	var active []models.ScheduleSlot
	for _, slot := range s.committed {
		if slot.Status == models.SlotStatusActive {
			active = append(active, slot)
		}
	}
	return active, nil
}

func (s *planSlotStoreStub) BulkInsertWithTx(ctx context.Context, exec sqlx.ExtContext, slots []models.ScheduleSlot) error {
	s.inserted = append(s.inserted, slots...)
	s.committed = append(s.committed, slots...)
	return nil
}

type planTeacherStub struct {
	teachers []models.Teacher
	quals    []models.TeacherQualification
	prefs    map[string]*models.TeacherPreference
}

func (s *planTeacherStub) ListActive(ctx context.Context, institutionID string) ([]models.Teacher, error) {
	return s.teachers, nil
}

func (s *planTeacherStub) ListQualifications(ctx context.Context, institutionID string) ([]models.TeacherQualification, error) {
	return s.quals, nil
}

func (s *planTeacherStub) GetPreference(ctx context.Context, teacherID string) (*models.TeacherPreference, error) {
	if pref, ok := s.prefs[teacherID]; ok {
		return pref, nil
	}
	return nil, sql.ErrNoRows
}

type planClassStub struct {
	classes []models.ClassSection
	targets []models.ClassSubjectTarget
}

func (s *planClassStub) ListByIDs(ctx context.Context, ids []string) ([]models.ClassSection, error) {
	var found []models.ClassSection
	for _, class := range s.classes {
		for _, id := range ids {
			if class.ID == id {
				found = append(found, class)
			}
		}
	}
	return found, nil
}

func (s *planClassStub) ListTargets(ctx context.Context, termID string, classIDs []string) ([]models.ClassSubjectTarget, error) {
	var found []models.ClassSubjectTarget
	for _, target := range s.targets {
		for _, id := range classIDs {
			if target.ClassID == id {
				found = append(found, target)
			}
		}
	}
	return found, nil
}

type settingsStoreStub struct {
	settings *models.DistributionSettings
	stored   *models.DistributionSettings
}

func (s *settingsStoreStub) GetByTerm(ctx context.Context, institutionID, termID string) (*models.DistributionSettings, error) {
	if s.settings == nil {
		return nil, sql.ErrNoRows
	}
	return s.settings, nil
}

func (s *settingsStoreStub) Upsert(ctx context.Context, settings *models.DistributionSettings) error {
	s.stored = settings
	return nil
}

type versionStoreStub struct {
	current int
}

func (s *versionStoreStub) Current(ctx context.Context, institutionID, termID string) (int, error) {
	return s.current, nil
}

func (s *versionStoreStub) BumpWithTx(ctx context.Context, exec sqlx.ExtContext, institutionID, termID string, expected int) (int, error) {
	s.current = expected + 1
	return s.current, nil
}

type gridResolverStub struct {
	grid *models.TimeGrid
}

func (s gridResolverStub) Resolve(ctx context.Context, institutionID, termID string) (*models.TimeGrid, error) {
	return s.grid, nil
}

type noopTxProvider struct{}

func (noopTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}
