package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/emis-scheduler-api/internal/dto"
	"github.com/noah-isme/emis-scheduler-api/internal/models"
	"github.com/noah-isme/emis-scheduler-api/internal/repository"
	appErrors "github.com/noah-isme/emis-scheduler-api/pkg/errors"
)

type planSlotStore interface {
	ListActiveByTerm(ctx context.Context, institutionID, termID string) ([]models.ScheduleSlot, error)
	BulkInsertWithTx(ctx context.Context, exec sqlx.ExtContext, slots []models.ScheduleSlot) error
}

type planTeacherReader interface {
	ListActive(ctx context.Context, institutionID string) ([]models.Teacher, error)
	ListQualifications(ctx context.Context, institutionID string) ([]models.TeacherQualification, error)
	GetPreference(ctx context.Context, teacherID string) (*models.TeacherPreference, error)
}

type planClassReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.ClassSection, error)
	ListTargets(ctx context.Context, termID string, classIDs []string) ([]models.ClassSubjectTarget, error)
}

type planSettingsReader interface {
	GetByTerm(ctx context.Context, institutionID, termID string) (*models.DistributionSettings, error)
}

type settingsStore interface {
	planSettingsReader
	Upsert(ctx context.Context, settings *models.DistributionSettings) error
}

type scheduleVersionStore interface {
	Current(ctx context.Context, institutionID, termID string) (int, error)
	BumpWithTx(ctx context.Context, exec sqlx.ExtContext, institutionID, termID string, expected int) (int, error)
}

type planGridResolver interface {
	Resolve(ctx context.Context, institutionID, termID string) (*models.TimeGrid, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// DistributionService builds assignment plan previews and commits confirmed
// plans as schedule slots.
type DistributionService struct {
	slots     planSlotStore
	teachers  planTeacherReader
	classes   planClassReader
	settings  settingsStore
	versions  scheduleVersionStore
	grid      planGridResolver
	detector  *ConflictDetector
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	store     *planStore
	maxIter   int
}

// DistributionConfig governs engine behaviour.
type DistributionConfig struct {
	PlanTTL       time.Duration
	MaxIterations int
}

// NewDistributionService wires the distribution engine.
func NewDistributionService(
	slots planSlotStore,
	teachers planTeacherReader,
	classes planClassReader,
	settings settingsStore,
	versions scheduleVersionStore,
	grid planGridResolver,
	detector *ConflictDetector,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg DistributionConfig,
) *DistributionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if detector == nil {
		detector = NewConflictDetector()
	}
	if cfg.PlanTTL <= 0 {
		cfg.PlanTTL = 30 * time.Minute
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 2000
	}
	return &DistributionService{
		slots:     slots,
		teachers:  teachers,
		classes:   classes,
		settings:  settings,
		versions:  versions,
		grid:      grid,
		detector:  detector,
		tx:        tx,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		store:     newPlanStore(cfg.PlanTTL),
		maxIter:   cfg.MaxIterations,
	}
}

// BuildPreview produces an uncommitted assignment plan for the selected
// classes. Manual strategy returns the demand list only; automatic and hybrid
// run the greedy weighted placement pass.
func (s *DistributionService) BuildPreview(ctx context.Context, req dto.BuildPreviewRequest) (*dto.PlanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preview payload")
	}

	classes, err := s.classes.ListByIDs(ctx, req.SelectedClasses)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
	}
	if len(classes) != len(uniqueStrings(req.SelectedClasses)) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "one or more selected classes do not exist")
	}

	settings, err := s.resolveSettings(ctx, req)
	if err != nil {
		return nil, err
	}

	grid, err := s.grid.Resolve(ctx, req.InstitutionID, req.TermID)
	if err != nil {
		return nil, err
	}

	committed, err := s.slots.ListActiveByTerm(ctx, req.InstitutionID, req.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed schedule")
	}

	demands, err := s.deriveDemands(ctx, req.TermID, req.SelectedClasses, committed)
	if err != nil {
		return nil, err
	}

	version, err := s.versions.Current(ctx, req.InstitutionID, req.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule version")
	}

	plan := &models.Plan{
		PlanID:          uuid.NewString(),
		InstitutionID:   req.InstitutionID,
		TermID:          req.TermID,
		Strategy:        req.Strategy,
		ScheduleVersion: version,
		GeneratedAt:     time.Now().UTC(),
		Warnings:        []models.PlanWarning{},
	}

	if req.Strategy == models.StrategyManual {
		// Manual operators place each slot themselves through the lifecycle
		// manager; the engine only reports what is unmet.
		plan.Demands = demands
		s.store.Save(plan)
		if s.metrics != nil {
			s.metrics.RecordPreview(string(req.Strategy))
		}
		return &dto.PlanResponse{Mode: "preview", Plan: plan}, nil
	}

	pool, quals, prefs, err := s.loadTeacherPool(ctx, req.InstitutionID, settings)
	if err != nil {
		return nil, err
	}

	slots, warnings := s.placeDemands(demands, grid, committed, pool, quals, prefs, settings)
	plan.Slots = slots
	plan.Warnings = warnings
	plan.BalanceScore = balanceScore(pool, committed, slots)

	s.store.Save(plan)
	if s.metrics != nil {
		s.metrics.RecordPreview(string(req.Strategy))
	}
	s.logger.Info("plan preview built",
		zap.String("plan_id", plan.PlanID),
		zap.String("term_id", req.TermID),
		zap.Int("slots", len(plan.Slots)),
		zap.Int("warnings", len(plan.Warnings)),
	)
	return &dto.PlanResponse{Mode: "preview", Plan: plan}, nil
}

// CommitPlan re-validates a previewed plan against current committed state
// and writes it atomically. A stale plan never partially commits.
func (s *DistributionService) CommitPlan(ctx context.Context, req dto.CommitPlanRequest) (*dto.CommitPlanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid commit payload")
	}
	plan, ok := s.store.Get(req.PlanID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found or expired")
	}
	if len(plan.Slots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "plan has no slots to commit")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	current, err := s.versions.Current(ctx, plan.InstitutionID, plan.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule version")
	}

	committed, err := s.slots.ListActiveByTerm(ctx, plan.InstitutionID, plan.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed schedule")
	}

	teachers, err := s.teachers.ListActive(ctx, plan.InstitutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher pool")
	}
	pool := teacherMap(teachers)

	candidates := planToSlots(plan)
	batch := s.detector.CheckBatch(candidates, committed, pool, 0)

	if req.ExpectedScheduleVersion != current || plan.ScheduleVersion != current {
		detail := dto.StalePlanDetail{
			ExpectedVersion: req.ExpectedScheduleVersion,
			CurrentVersion:  current,
		}
		for _, entry := range batch {
			detail.StaleSlots = append(detail.StaleSlots, plan.Slots[entry.Index])
			detail.Conflicts = append(detail.Conflicts, entry.Conflicts...)
		}
		if s.metrics != nil {
			s.metrics.RecordCommit("stale")
		}
		return nil, appErrors.WithDetails(appErrors.ErrPlanStale, "committed schedule changed since the preview was generated", detail)
	}

	for _, entry := range batch {
		if models.HasCritical(entry.Conflicts) {
			if s.metrics != nil {
				s.metrics.RecordCommit("conflict")
			}
			return nil, appErrors.WithDetails(appErrors.ErrConflict, "plan conflicts with the committed schedule", dto.ConflictDetail{Conflicts: entry.Conflicts})
		}
	}

	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	newVersion, err := s.versions.BumpWithTx(ctx, tx, plan.InstitutionID, plan.TermID, current)
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			err = appErrors.WithDetails(appErrors.ErrPlanStale, "a concurrent commit won the race", dto.StalePlanDetail{ExpectedVersion: current, CurrentVersion: current + 1})
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bump schedule version")
		return nil, err
	}

	if err = s.slots.BulkInsertWithTx(ctx, tx, candidates); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist plan slots")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit plan transaction")
		return nil, err
	}

	s.store.Delete(req.PlanID)
	if s.metrics != nil {
		s.metrics.RecordCommit("committed")
	}
	s.logger.Info("plan committed",
		zap.String("plan_id", plan.PlanID),
		zap.Int("schedule_version", newVersion),
		zap.Int("slots", len(candidates)),
	)
	return &dto.CommitPlanResponse{ScheduleVersion: newVersion, Slots: candidates}, nil
}

// GetSettings returns distribution settings, falling back to defaults.
func (s *DistributionService) GetSettings(ctx context.Context, institutionID, termID string) (*models.DistributionSettings, error) {
	if institutionID == "" || termID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "institutionId and termId are required")
	}
	settings, err := s.settings.GetByTerm(ctx, institutionID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			defaults := models.DefaultDistributionSettings(institutionID, termID)
			return &defaults, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load distribution settings")
	}
	return settings, nil
}

// UpdateSettings validates and stores the distribution settings, replacing
// the rule list wholesale.
func (s *DistributionService) UpdateSettings(ctx context.Context, settings *models.DistributionSettings) error {
	if settings.InstitutionID == "" || settings.TermID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "institution_id and term_id are required")
	}
	for _, rule := range settings.Rules {
		switch rule.Kind {
		case models.RuleSpecialization, models.RuleWorkloadBalance, models.RulePreference, models.RuleConflictPenalty:
		default:
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown rule kind %q", rule.Kind))
		}
		if rule.Weight < 0 || rule.Weight > 10 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("rule %s weight must be within 0-10", rule.Kind))
		}
	}
	if settings.MinUtilizationPct < 0 || settings.MaxUtilizationPct > 100 ||
		(settings.MaxUtilizationPct > 0 && settings.MinUtilizationPct > settings.MaxUtilizationPct) {
		return appErrors.Clone(appErrors.ErrValidation, "utilization band must satisfy 0 <= min <= max <= 100")
	}
	if err := s.settings.Upsert(ctx, settings); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store distribution settings")
	}
	return nil
}

func (s *DistributionService) resolveSettings(ctx context.Context, req dto.BuildPreviewRequest) (*models.DistributionSettings, error) {
	if req.Settings != nil {
		for _, rule := range req.Settings.Rules {
			if rule.Weight < 0 || rule.Weight > 10 {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("rule %s weight must be within 0-10", rule.Kind))
			}
		}
		return req.Settings, nil
	}
	return s.GetSettings(ctx, req.InstitutionID, req.TermID)
}

func (s *DistributionService) deriveDemands(ctx context.Context, termID string, classIDs []string, committed []models.ScheduleSlot) ([]models.Demand, error) {
	targets, err := s.classes.ListTargets(ctx, termID, classIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class subject targets")
	}

	committedCount := make(map[string]int)
	for _, slot := range committed {
		if slot.Status == models.SlotStatusActive {
			committedCount[slot.ClassID+"|"+slot.SubjectID]++
		}
	}

	demands := make([]models.Demand, 0, len(targets))
	for _, target := range targets {
		have := committedCount[target.ClassID+"|"+target.SubjectID]
		remaining := target.WeeklyHours - have
		if remaining <= 0 {
			continue
		}
		demands = append(demands, models.Demand{
			ClassID:        target.ClassID,
			SubjectID:      target.SubjectID,
			TargetHours:    target.WeeklyHours,
			CommittedHours: have,
			RemainingHours: remaining,
		})
	}

	sort.Slice(demands, func(i, j int) bool {
		if demands[i].RemainingHours != demands[j].RemainingHours {
			return demands[i].RemainingHours > demands[j].RemainingHours
		}
		if demands[i].ClassID != demands[j].ClassID {
			return demands[i].ClassID < demands[j].ClassID
		}
		return demands[i].SubjectID < demands[j].SubjectID
	})
	return demands, nil
}

func (s *DistributionService) loadTeacherPool(ctx context.Context, institutionID string, settings *models.DistributionSettings) ([]models.Teacher, map[string]map[string]models.TeacherQualification, map[string]teacherPrefs, error) {
	teachers, err := s.teachers.ListActive(ctx, institutionID)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher pool")
	}

	rawQuals, err := s.teachers.ListQualifications(ctx, institutionID)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher qualifications")
	}
	quals := make(map[string]map[string]models.TeacherQualification)
	for _, q := range rawQuals {
		if quals[q.TeacherID] == nil {
			quals[q.TeacherID] = make(map[string]models.TeacherQualification)
		}
		quals[q.TeacherID][q.SubjectID] = q
	}

	prefs := make(map[string]teacherPrefs, len(teachers))
	if settings.RespectPreferences {
		for _, teacher := range teachers {
			pref, err := s.teachers.GetPreference(ctx, teacher.ID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher preferences")
			}
			prefs[teacher.ID] = decodePrefs(pref)
		}
	}
	return teachers, quals, prefs, nil
}

// placeDemands is the greedy, state-updating placement pass: deterministic
// and explainable, not globally optimal.
func (s *DistributionService) placeDemands(
	demands []models.Demand,
	grid *models.TimeGrid,
	committed []models.ScheduleSlot,
	pool []models.Teacher,
	quals map[string]map[string]models.TeacherQualification,
	prefs map[string]teacherPrefs,
	settings *models.DistributionSettings,
) ([]models.PlanSlot, []models.PlanWarning) {
	poolMap := teacherMap(pool)
	state := newDistributionState(committed)

	var placed []models.PlanSlot
	var warnings []models.PlanWarning
	iterations := 0
	capped := false

	for _, demand := range demands {
		remaining := demand.RemainingHours
		for h := 0; h < demand.RemainingHours; h++ {
			if iterations >= s.maxIter {
				capped = true
				break
			}
			iterations++

			best, ok := s.bestCandidate(demand, grid, state, pool, poolMap, quals, prefs, settings)
			if !ok {
				break
			}
			placed = append(placed, best)
			state.place(best)
			remaining--
		}
		if remaining > 0 {
			// Unplaceable or capped demand is reported, not silently dropped.
			reason := "no qualified or available teacher for an open slot"
			if capped {
				reason = "iteration cap reached; partial plan returned"
			}
			warnings = append(warnings, models.PlanWarning{
				ClassID:        demand.ClassID,
				SubjectID:      demand.SubjectID,
				RemainingHours: remaining,
				Reason:         reason,
			})
		}
	}
	return placed, warnings
}

func (s *DistributionService) bestCandidate(
	demand models.Demand,
	grid *models.TimeGrid,
	state *distributionState,
	pool []models.Teacher,
	poolMap map[string]models.Teacher,
	quals map[string]map[string]models.TeacherQualification,
	prefs map[string]teacherPrefs,
	settings *models.DistributionSettings,
) (models.PlanSlot, bool) {
	const eps = 1e-9
	var best models.PlanSlot
	bestScore := math.Inf(-1)
	bestHours := 0
	found := false

	for _, coord := range grid.Coordinates {
		if state.classBusyAt(demand.ClassID, coord.DayOfWeek, coord.Period) {
			continue
		}
		for _, teacher := range pool {
			qual, qualified := quals[teacher.ID][demand.SubjectID]
			if !qualified {
				continue
			}
			hours := state.hoursOf(teacher.ID)
			if teacher.MaxWeeklyHours > 0 && hours+1 > teacher.MaxWeeklyHours {
				continue
			}
			if settings.MaxSubjectsPerTeacher > 0 && state.subjectCountAfter(teacher.ID, demand.SubjectID) > settings.MaxSubjectsPerTeacher {
				continue
			}
			if settings.MaxClassesPerTeacher > 0 && state.classCountAfter(teacher.ID, demand.ClassID) > settings.MaxClassesPerTeacher {
				continue
			}

			candidate := models.ScheduleSlot{
				ClassID:   demand.ClassID,
				SubjectID: demand.SubjectID,
				TeacherID: teacher.ID,
				DayOfWeek: coord.DayOfWeek,
				Period:    coord.Period,
				Status:    models.SlotStatusActive,
				SlotType:  models.SlotTypeRegular,
			}

			conflicts := s.detector.Check(candidate, state.slots, poolMap, settings.MaxSubjectsPerTeacher)
			if settings.AvoidConflicts && models.HasCritical(conflicts) {
				continue
			}

			score := s.scoreCandidate(teacher, qual, coord, hours, conflicts, prefs[teacher.ID], settings)

			replace := !found
			switch {
			case found && score > bestScore+eps:
				replace = true
			case found && math.Abs(score-bestScore) <= eps:
				if hours != bestHours {
					replace = hours < bestHours
				} else {
					replace = teacher.ID < best.TeacherID
				}
			}
			if replace {
				best = models.PlanSlot{
					DayOfWeek: coord.DayOfWeek,
					Period:    coord.Period,
					ClassID:   demand.ClassID,
					SubjectID: demand.SubjectID,
					TeacherID: teacher.ID,
					Score:     score,
				}
				bestScore = score
				bestHours = hours
				found = true
			}
		}
	}
	return best, found
}

func (s *DistributionService) scoreCandidate(
	teacher models.Teacher,
	qual models.TeacherQualification,
	coord models.GridCoordinate,
	currentHours int,
	conflicts []models.Conflict,
	pref teacherPrefs,
	settings *models.DistributionSettings,
) float64 {
	score := 0.0

	if settings.PrioritizeSpecial {
		weight := float64(settings.RuleWeight(models.RuleSpecialization))
		match := 0.5
		if qual.Primary {
			match = 1.0
		}
		if teacher.Expertise != nil && *teacher.Expertise == qual.SubjectID {
			match = 1.0
		}
		score += weight * match
	}

	if settings.BalanceWorkload && teacher.MaxWeeklyHours > 0 {
		weight := float64(settings.RuleWeight(models.RuleWorkloadBalance))
		utilAfter := float64(currentHours+1) / float64(teacher.MaxWeeklyHours)
		score += weight * (1 - utilAfter)
		if settings.MinUtilizationPct > 0 && utilAfter*100 < float64(settings.MinUtilizationPct) {
			// Teachers still under the utilization floor absorb hours first.
			score += weight * 0.5
		}
		if settings.MaxUtilizationPct > 0 && utilAfter*100 > float64(settings.MaxUtilizationPct) {
			score -= weight
		}
	}

	if settings.RespectPreferences {
		weight := float64(settings.RuleWeight(models.RulePreference))
		if pref.preferredDays[coord.DayOfWeek] || pref.preferredSlots[coord.Period] {
			score += weight
		}
		if pref.avoidedDays[coord.DayOfWeek] || pref.avoidedSlots[coord.Period] {
			score -= weight
		}
	}

	if len(conflicts) > 0 {
		weight := float64(settings.RuleWeight(models.RuleConflictPenalty))
		for _, c := range conflicts {
			penalty := 1.0
			if c.Critical() {
				penalty = 3.0
			}
			score -= weight * penalty
		}
	}
	return score
}

func planToSlots(plan *models.Plan) []models.ScheduleSlot {
	slots := make([]models.ScheduleSlot, 0, len(plan.Slots))
	for _, p := range plan.Slots {
		slots = append(slots, models.ScheduleSlot{
			InstitutionID: plan.InstitutionID,
			TermID:        plan.TermID,
			ClassID:       p.ClassID,
			SubjectID:     p.SubjectID,
			TeacherID:     p.TeacherID,
			DayOfWeek:     p.DayOfWeek,
			Period:        p.Period,
			Room:          p.Room,
			SlotType:      models.SlotTypeRegular,
			Status:        models.SlotStatusActive,
		})
	}
	return slots
}

func teacherMap(teachers []models.Teacher) map[string]models.Teacher {
	m := make(map[string]models.Teacher, len(teachers))
	for _, t := range teachers {
		m[t.ID] = t
	}
	return m
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// balanceScore is the standard deviation of resulting teacher utilization.
// Reported, not minimized, by the greedy pass.
func balanceScore(pool []models.Teacher, committed []models.ScheduleSlot, placed []models.PlanSlot) float64 {
	hours := make(map[string]int)
	for _, slot := range committed {
		if slot.Status == models.SlotStatusActive {
			hours[slot.TeacherID]++
		}
	}
	for _, slot := range placed {
		hours[slot.TeacherID]++
	}

	var utils []float64
	for _, teacher := range pool {
		if teacher.MaxWeeklyHours <= 0 {
			continue
		}
		utils = append(utils, float64(hours[teacher.ID])/float64(teacher.MaxWeeklyHours))
	}
	if len(utils) == 0 {
		return 0
	}

	mean := 0.0
	for _, u := range utils {
		mean += u
	}
	mean /= float64(len(utils))

	variance := 0.0
	for _, u := range utils {
		variance += (u - mean) * (u - mean)
	}
	variance /= float64(len(utils))
	return math.Sqrt(variance)
}

// --- Working placement state ---

type coordKey struct {
	Day    int
	Period int
}

// distributionState tracks the committed schedule plus the working plan so
// each greedy placement sees the effect of the previous ones.
type distributionState struct {
	slots       []models.ScheduleSlot
	classBusy   map[string]map[coordKey]bool
	hours       map[string]int
	subjects    map[string]map[string]bool
	classCounts map[string]map[string]bool
}

func newDistributionState(committed []models.ScheduleSlot) *distributionState {
	state := &distributionState{
		slots:       make([]models.ScheduleSlot, 0, len(committed)),
		classBusy:   make(map[string]map[coordKey]bool),
		hours:       make(map[string]int),
		subjects:    make(map[string]map[string]bool),
		classCounts: make(map[string]map[string]bool),
	}
	for _, slot := range committed {
		if slot.Status != models.SlotStatusActive {
			continue
		}
		state.slots = append(state.slots, slot)
		state.mark(slot.ClassID, slot.TeacherID, slot.SubjectID, slot.DayOfWeek, slot.Period)
	}
	return state
}

func (s *distributionState) mark(classID, teacherID, subjectID string, day, period int) {
	key := coordKey{Day: day, Period: period}
	if s.classBusy[classID] == nil {
		s.classBusy[classID] = make(map[coordKey]bool)
	}
	s.classBusy[classID][key] = true
	s.hours[teacherID]++
	if s.subjects[teacherID] == nil {
		s.subjects[teacherID] = make(map[string]bool)
	}
	s.subjects[teacherID][subjectID] = true
	if s.classCounts[teacherID] == nil {
		s.classCounts[teacherID] = make(map[string]bool)
	}
	s.classCounts[teacherID][classID] = true
}

func (s *distributionState) place(p models.PlanSlot) {
	s.slots = append(s.slots, models.ScheduleSlot{
		ClassID:   p.ClassID,
		SubjectID: p.SubjectID,
		TeacherID: p.TeacherID,
		DayOfWeek: p.DayOfWeek,
		Period:    p.Period,
		Status:    models.SlotStatusActive,
		SlotType:  models.SlotTypeRegular,
	})
	s.mark(p.ClassID, p.TeacherID, p.SubjectID, p.DayOfWeek, p.Period)
}

func (s *distributionState) classBusyAt(classID string, day, period int) bool {
	return s.classBusy[classID][coordKey{Day: day, Period: period}]
}

func (s *distributionState) hoursOf(teacherID string) int {
	return s.hours[teacherID]
}

func (s *distributionState) subjectCountAfter(teacherID, subjectID string) int {
	count := len(s.subjects[teacherID])
	if !s.subjects[teacherID][subjectID] {
		count++
	}
	return count
}

func (s *distributionState) classCountAfter(teacherID, classID string) int {
	count := len(s.classCounts[teacherID])
	if !s.classCounts[teacherID][classID] {
		count++
	}
	return count
}

// --- Teacher preferences ---

type teacherPrefs struct {
	preferredDays  map[int]bool
	avoidedDays    map[int]bool
	preferredSlots map[int]bool
	avoidedSlots   map[int]bool
}

func decodePrefs(pref *models.TeacherPreference) teacherPrefs {
	result := teacherPrefs{
		preferredDays:  make(map[int]bool),
		avoidedDays:    make(map[int]bool),
		preferredSlots: make(map[int]bool),
		avoidedSlots:   make(map[int]bool),
	}
	if pref == nil {
		return result
	}
	fill := func(raw []byte, dest map[int]bool) {
		if len(raw) == 0 {
			return
		}
		var values []int
		_ = json.Unmarshal(raw, &values) // best-effort, missing prefs are neutral
		for _, v := range values {
			dest[v] = true
		}
	}
	fill(pref.PreferredDays, result.preferredDays)
	fill(pref.AvoidedDays, result.avoidedDays)
	fill(pref.PreferredSlots, result.preferredSlots)
	fill(pref.AvoidedSlots, result.avoidedSlots)
	return result
}

// --- Plan cache ---

type planStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]*models.Plan
}

func newPlanStore(ttl time.Duration) *planStore {
	return &planStore{
		ttl:   ttl,
		items: make(map[string]*models.Plan),
	}
}

func (s *planStore) Save(plan *models.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[plan.PlanID] = plan
}

func (s *planStore) Get(id string) (*models.Plan, bool) {
	s.mu.RLock()
	plan, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(plan.GeneratedAt) > s.ttl {
		s.Delete(id)
		return nil, false
	}
	return plan, true
}

func (s *planStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
