package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/emis-scheduler-api/internal/dto"
	"github.com/noah-isme/emis-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/emis-scheduler-api/pkg/errors"
)

type absenceReader interface {
	FindByID(ctx context.Context, id string) (*models.Absence, error)
	List(ctx context.Context, filter models.AbsenceFilter) ([]models.Absence, int, error)
}

type substitutionReader interface {
	ListByAbsence(ctx context.Context, absenceID string) ([]models.Substitution, error)
}

type substitutionTeacherReader interface {
	ListActive(ctx context.Context, institutionID string) ([]models.Teacher, error)
	ListQualifications(ctx context.Context, institutionID string) ([]models.TeacherQualification, error)
}

type substitutionSlotReader interface {
	ListActiveByTerm(ctx context.Context, institutionID, termID string) ([]models.ScheduleSlot, error)
	ListActiveByTeacher(ctx context.Context, termID, teacherID string) ([]models.ScheduleSlot, error)
}

// slotRetirer is the lifecycle surface the resolver writes through. The
// resolver itself never touches slot or absence rows directly.
type slotRetirer interface {
	ApplySubstitutions(ctx context.Context, slot models.ScheduleSlot, subs []models.Substitution) error
	UpdateAbsenceCoverage(ctx context.Context, absenceID string, covered, total int, status models.AbsenceStatus) error
}

// SubstitutionService covers teacher absences with substitute assignments.
// Auto and manual resolution share the same eligibility and ranking rules.
type SubstitutionService struct {
	absences      absenceReader
	substitutions substitutionReader
	teachers      substitutionTeacherReader
	slots         substitutionSlotReader
	grid          planGridResolver
	lifecycle     slotRetirer
	validator     *validator.Validate
	logger        *zap.Logger
	metrics       *MetricsService
}

// NewSubstitutionService wires the absence resolver.
func NewSubstitutionService(
	absences absenceReader,
	substitutions substitutionReader,
	teachers substitutionTeacherReader,
	slots substitutionSlotReader,
	grid planGridResolver,
	lifecycle slotRetirer,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
) *SubstitutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubstitutionService{
		absences:      absences,
		substitutions: substitutions,
		teachers:      teachers,
		slots:         slots,
		grid:          grid,
		lifecycle:     lifecycle,
		validator:     validate,
		logger:        logger,
		metrics:       metrics,
	}
}

// ListAbsences returns absences matching the query.
func (s *SubstitutionService) ListAbsences(ctx context.Context, q dto.AbsenceListQuery) ([]models.Absence, int, error) {
	filter := models.AbsenceFilter{
		InstitutionID: q.InstitutionID,
		TermID:        q.TermID,
		TeacherID:     q.TeacherID,
		Status:        models.AbsenceStatus(q.Status),
		Page:          q.Page,
		PageSize:      q.PageSize,
	}
	absences, total, err := s.absences.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absences")
	}
	return absences, total, nil
}

// ListSubstitutions returns the substitute assignments of an absence.
func (s *SubstitutionService) ListSubstitutions(ctx context.Context, absenceID string) ([]models.Substitution, error) {
	if _, err := s.loadAbsence(ctx, absenceID); err != nil {
		return nil, err
	}
	subs, err := s.substitutions.ListByAbsence(ctx, absenceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list substitutions")
	}
	return subs, nil
}

// ResolveAbsence covers the affected slot occurrences of an absence. Uncovered
// occurrences are reported as warnings, never as a failure: partial coverage
// is a normal operational state.
func (s *SubstitutionService) ResolveAbsence(ctx context.Context, absenceID string, req dto.ResolveAbsenceRequest) (*dto.ResolveAbsenceResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolve payload")
	}

	absence, err := s.loadAbsence(ctx, absenceID)
	if err != nil {
		return nil, err
	}
	if absence.Status == models.AbsenceCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "absence is cancelled")
	}

	existing, err := s.substitutions.ListByAbsence(ctx, absenceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list substitutions")
	}

	occurrences, err := s.deriveOccurrences(ctx, absence)
	if err != nil {
		return nil, err
	}

	if len(occurrences) == 0 {
		// Nothing left to cover: either already resolved or the absence
		// touches no scheduled slot.
		covered := len(existing)
		total := covered
		if absence.TotalPeriods > total {
			total = absence.TotalPeriods
		}
		if err := s.persistCoverage(ctx, absence, covered, total); err != nil {
			return nil, err
		}
		return &dto.ResolveAbsenceResponse{
			AbsenceID:      absence.ID,
			CoveredPeriods: covered,
			TotalPeriods:   total,
			Substitutions:  existing,
			Warnings:       []dto.SubstitutionWarning{},
		}, nil
	}

	ranking, err := s.buildRankingState(ctx, absence)
	if err != nil {
		return nil, err
	}

	var created []models.Substitution
	var warnings []dto.SubstitutionWarning

	switch req.Mode {
	case dto.ResolveManual:
		created, warnings, err = s.resolveManual(ctx, absence, occurrences, ranking, req)
	default:
		created, warnings, err = s.resolveAuto(ctx, absence, occurrences, ranking)
	}
	if err != nil {
		return nil, err
	}

	covered := len(existing) + len(created)
	total := len(existing) + len(occurrences)
	if err := s.persistCoverage(ctx, absence, covered, total); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordAbsenceResolution(string(req.Mode), len(created), len(warnings))
	}
	s.logger.Info("absence resolved",
		zap.String("absence_id", absence.ID),
		zap.String("mode", string(req.Mode)),
		zap.Int("covered", covered),
		zap.Int("total", total),
	)

	return &dto.ResolveAbsenceResponse{
		AbsenceID:      absence.ID,
		CoveredPeriods: covered,
		TotalPeriods:   total,
		Substitutions:  append(existing, created...),
		Warnings:       warnings,
	}, nil
}

func (s *SubstitutionService) loadAbsence(ctx context.Context, id string) (*models.Absence, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "absence id is required")
	}
	absence, err := s.absences.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "absence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absence")
	}
	return absence, nil
}

// occurrence is one affected slot on one concrete date.
type occurrence struct {
	Date time.Time
	Slot models.ScheduleSlot
}

// deriveOccurrences crosses the absence date range with the absent teacher's
// active slots. Substituted slots have already left the active set, which is
// what makes re-running a resolution idempotent.
func (s *SubstitutionService) deriveOccurrences(ctx context.Context, absence *models.Absence) ([]occurrence, error) {
	if absence.EndDate.Before(absence.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "absence end date precedes start date")
	}

	grid, err := s.grid.Resolve(ctx, absence.InstitutionID, absence.TermID)
	if err != nil {
		return nil, err
	}
	workingDays := make(map[int]bool, len(grid.Days))
	for _, day := range grid.Days {
		workingDays[day] = true
	}

	slots, err := s.slots.ListActiveByTeacher(ctx, absence.TermID, absence.TeacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load affected slots")
	}
	byDay := make(map[int][]models.ScheduleSlot)
	for _, slot := range slots {
		byDay[slot.DayOfWeek] = append(byDay[slot.DayOfWeek], slot)
	}

	var occurrences []occurrence
	for date := absence.StartDate; !date.After(absence.EndDate); date = date.AddDate(0, 0, 1) {
		day := isoWeekday(date)
		if !workingDays[day] {
			continue
		}
		for _, slot := range byDay[day] {
			occurrences = append(occurrences, occurrence{Date: date, Slot: slot})
		}
	}
	sort.Slice(occurrences, func(i, j int) bool {
		if !occurrences[i].Date.Equal(occurrences[j].Date) {
			return occurrences[i].Date.Before(occurrences[j].Date)
		}
		return occurrences[i].Slot.Period < occurrences[j].Slot.Period
	})
	return occurrences, nil
}

// rankingState carries everything candidate ranking needs, including the hours
// substitutes pick up during this run.
type rankingState struct {
	pool       []models.Teacher
	quals      map[string]map[string]models.TeacherQualification
	busy       map[string]map[coordKey]bool
	hours      map[string]int
	addedHours map[string]int
}

func (s *SubstitutionService) buildRankingState(ctx context.Context, absence *models.Absence) (*rankingState, error) {
	teachers, err := s.teachers.ListActive(ctx, absence.InstitutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher pool")
	}

	rawQuals, err := s.teachers.ListQualifications(ctx, absence.InstitutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher qualifications")
	}
	quals := make(map[string]map[string]models.TeacherQualification)
	for _, q := range rawQuals {
		if quals[q.TeacherID] == nil {
			quals[q.TeacherID] = make(map[string]models.TeacherQualification)
		}
		quals[q.TeacherID][q.SubjectID] = q
	}

	committed, err := s.slots.ListActiveByTerm(ctx, absence.InstitutionID, absence.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed schedule")
	}
	busy := make(map[string]map[coordKey]bool)
	hours := make(map[string]int)
	for _, slot := range committed {
		if busy[slot.TeacherID] == nil {
			busy[slot.TeacherID] = make(map[coordKey]bool)
		}
		busy[slot.TeacherID][coordKey{Day: slot.DayOfWeek, Period: slot.Period}] = true
		hours[slot.TeacherID]++
	}

	return &rankingState{
		pool:       teachers,
		quals:      quals,
		busy:       busy,
		hours:      hours,
		addedHours: make(map[string]int),
	}, nil
}

// rankCandidates returns eligible substitutes for a slot, best first: primary
// qualification, then lowest resulting load, then teacher id.
func (state *rankingState) rankCandidates(slot models.ScheduleSlot, absentTeacherID string) []dto.SubstituteCandidate {
	var candidates []dto.SubstituteCandidate
	for _, teacher := range state.pool {
		if teacher.ID == absentTeacherID {
			continue
		}
		qual, qualified := state.quals[teacher.ID][slot.SubjectID]
		if !qualified {
			continue
		}
		if state.busy[teacher.ID][coordKey{Day: slot.DayOfWeek, Period: slot.Period}] {
			continue
		}
		load := state.hours[teacher.ID] + state.addedHours[teacher.ID]
		if teacher.MaxWeeklyHours > 0 && load+1 > teacher.MaxWeeklyHours {
			continue
		}
		resulting := 0.0
		if teacher.MaxWeeklyHours > 0 {
			resulting = float64(load+1) / float64(teacher.MaxWeeklyHours)
		}
		candidates = append(candidates, dto.SubstituteCandidate{
			TeacherID:          teacher.ID,
			ExactQualification: qual.Primary,
			ResultingLoad:      resulting,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ExactQualification != candidates[j].ExactQualification {
			return candidates[i].ExactQualification
		}
		if candidates[i].ResultingLoad != candidates[j].ResultingLoad {
			return candidates[i].ResultingLoad < candidates[j].ResultingLoad
		}
		return candidates[i].TeacherID < candidates[j].TeacherID
	})
	return candidates
}

func (state *rankingState) take(teacherID string, slot models.ScheduleSlot) {
	if state.busy[teacherID] == nil {
		state.busy[teacherID] = make(map[coordKey]bool)
	}
	state.busy[teacherID][coordKey{Day: slot.DayOfWeek, Period: slot.Period}] = true
	state.addedHours[teacherID]++
}

// resolveAuto assigns the best-ranked substitute to each affected slot,
// applying one slot's full occurrence run at a time through the lifecycle.
func (s *SubstitutionService) resolveAuto(ctx context.Context, absence *models.Absence, occurrences []occurrence, state *rankingState) ([]models.Substitution, []dto.SubstitutionWarning, error) {
	grouped, order := groupBySlot(occurrences)

	var created []models.Substitution
	var warnings []dto.SubstitutionWarning
	for _, slotID := range order {
		group := grouped[slotID]
		slot := group[0].Slot

		candidates := state.rankCandidates(slot, absence.TeacherID)
		if len(candidates) == 0 {
			for _, occ := range group {
				warnings = append(warnings, uncoveredWarning(occ, "no eligible substitute available"))
			}
			continue
		}

		chosen := candidates[0]
		subs := buildSubstitutions(absence.ID, group, chosen.TeacherID)
		if err := s.lifecycle.ApplySubstitutions(ctx, slot, subs); err != nil {
			return nil, nil, err
		}
		state.take(chosen.TeacherID, slot)
		created = append(created, subs...)
	}
	return created, warnings, nil
}

// resolveManual applies an operator-chosen teacher to every remaining
// occurrence of the chosen slot. The choice still passes eligibility.
func (s *SubstitutionService) resolveManual(ctx context.Context, absence *models.Absence, occurrences []occurrence, state *rankingState, req dto.ResolveAbsenceRequest) ([]models.Substitution, []dto.SubstitutionWarning, error) {
	if req.SlotID == "" || req.TeacherID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "manual mode requires slotId and teacherId")
	}

	var group []occurrence
	for _, occ := range occurrences {
		if occ.Slot.ID == req.SlotID {
			group = append(group, occ)
		}
	}
	if len(group) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "slot has no uncovered occurrence in the absence window")
	}
	if req.Date != nil {
		found := false
		for _, occ := range group {
			if sameDate(occ.Date, *req.Date) {
				found = true
				break
			}
		}
		if !found {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "date does not match an uncovered occurrence of the slot")
		}
	}

	slot := group[0].Slot
	eligible := false
	for _, candidate := range state.rankCandidates(slot, absence.TeacherID) {
		if candidate.TeacherID == req.TeacherID {
			eligible = true
			break
		}
	}
	if !eligible {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "chosen teacher is not eligible for this slot")
	}

	subs := buildSubstitutions(absence.ID, group, req.TeacherID)
	if err := s.lifecycle.ApplySubstitutions(ctx, slot, subs); err != nil {
		return nil, nil, err
	}
	state.take(req.TeacherID, slot)

	var warnings []dto.SubstitutionWarning
	for _, occ := range occurrences {
		if occ.Slot.ID != req.SlotID {
			warnings = append(warnings, uncoveredWarning(occ, "occurrence not covered by this manual assignment"))
		}
	}
	return subs, warnings, nil
}

func (s *SubstitutionService) persistCoverage(ctx context.Context, absence *models.Absence, covered, total int) error {
	status := models.AbsencePending
	if total > 0 && covered >= total {
		status = models.AbsenceCovered
	}
	return s.lifecycle.UpdateAbsenceCoverage(ctx, absence.ID, covered, total, status)
}

func groupBySlot(occurrences []occurrence) (map[string][]occurrence, []string) {
	grouped := make(map[string][]occurrence)
	var order []string
	for _, occ := range occurrences {
		if _, ok := grouped[occ.Slot.ID]; !ok {
			order = append(order, occ.Slot.ID)
		}
		grouped[occ.Slot.ID] = append(grouped[occ.Slot.ID], occ)
	}
	return grouped, order
}

func buildSubstitutions(absenceID string, group []occurrence, teacherID string) []models.Substitution {
	subs := make([]models.Substitution, 0, len(group))
	for _, occ := range group {
		subs = append(subs, models.Substitution{
			AbsenceID:           absenceID,
			SlotID:              occ.Slot.ID,
			SubstituteTeacherID: teacherID,
			Date:                occ.Date,
			DayOfWeek:           occ.Slot.DayOfWeek,
			Period:              occ.Slot.Period,
			Status:              models.SubstitutionAssigned,
		})
	}
	return subs
}

func uncoveredWarning(occ occurrence, reason string) dto.SubstitutionWarning {
	return dto.SubstitutionWarning{
		SlotID:    occ.Slot.ID,
		Date:      occ.Date,
		DayOfWeek: occ.Slot.DayOfWeek,
		Period:    occ.Slot.Period,
		SubjectID: occ.Slot.SubjectID,
		ClassID:   occ.Slot.ClassID,
		Reason:    reason,
	}
}

// isoWeekday maps time.Weekday to 1 (Monday) through 7 (Sunday).
func isoWeekday(t time.Time) int {
	day := int(t.Weekday())
	if day == 0 {
		return 7
	}
	return day
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
