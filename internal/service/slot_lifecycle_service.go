package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/emis-scheduler-api/internal/dto"
	"github.com/noah-isme/emis-scheduler-api/internal/models"
	"github.com/noah-isme/emis-scheduler-api/internal/repository"
	appErrors "github.com/noah-isme/emis-scheduler-api/pkg/errors"
)

type lifecycleSlotStore interface {
	List(ctx context.Context, filter models.SlotFilter) ([]models.ScheduleSlot, int, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error)
	ListActiveByTerm(ctx context.Context, institutionID, termID string) ([]models.ScheduleSlot, error)
	InsertWithTx(ctx context.Context, exec sqlx.ExtContext, slot *models.ScheduleSlot) error
	UpdateWithTx(ctx context.Context, exec sqlx.ExtContext, slot *models.ScheduleSlot) error
	UpdateStatusWithTx(ctx context.Context, exec sqlx.ExtContext, id string, status models.SlotStatus) error
}

type lifecycleTeacherReader interface {
	ListActive(ctx context.Context, institutionID string) ([]models.Teacher, error)
}

type substitutionWriter interface {
	InsertWithTx(ctx context.Context, exec sqlx.ExtContext, sub *models.Substitution) error
}

type absenceCoverageWriter interface {
	UpdateCoverageWithTx(ctx context.Context, exec sqlx.ExtContext, id string, covered, total int, status models.AbsenceStatus) error
}

// SlotLifecycleService is the single writer for committed schedule slots.
// Every mutation re-runs conflict detection and bumps the schedule version,
// so plan previews taken before the change become stale.
type SlotLifecycleService struct {
	slots         lifecycleSlotStore
	teachers      lifecycleTeacherReader
	settings      planSettingsReader
	substitutions substitutionWriter
	absences      absenceCoverageWriter
	versions      scheduleVersionStore
	detector      *ConflictDetector
	tx            txProvider
	validator     *validator.Validate
	logger        *zap.Logger
	metrics       *MetricsService
}

// NewSlotLifecycleService wires the lifecycle manager.
func NewSlotLifecycleService(
	slots lifecycleSlotStore,
	teachers lifecycleTeacherReader,
	settings planSettingsReader,
	substitutions substitutionWriter,
	absences absenceCoverageWriter,
	versions scheduleVersionStore,
	detector *ConflictDetector,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
) *SlotLifecycleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if detector == nil {
		detector = NewConflictDetector()
	}
	return &SlotLifecycleService{
		slots:         slots,
		teachers:      teachers,
		settings:      settings,
		substitutions: substitutions,
		absences:      absences,
		versions:      versions,
		detector:      detector,
		tx:            tx,
		validator:     validate,
		logger:        logger,
		metrics:       metrics,
	}
}

// ListSlots returns committed slots matching the query.
func (s *SlotLifecycleService) ListSlots(ctx context.Context, q dto.SlotListQuery) ([]models.ScheduleSlot, int, error) {
	filter := models.SlotFilter{
		InstitutionID: q.InstitutionID,
		TermID:        q.TermID,
		ClassID:       q.ClassID,
		TeacherID:     q.TeacherID,
		Status:        models.SlotStatus(q.Status),
		Page:          q.Page,
		PageSize:      q.PageSize,
	}
	slots, total, err := s.slots.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule slots")
	}
	return slots, total, nil
}

// Mutate applies one lifecycle transition to a slot. Cancel and move keep the
// original record under a terminal status; slots are never deleted.
func (s *SlotLifecycleService) Mutate(ctx context.Context, slotID string, req dto.SlotMutationRequest) (*models.ScheduleSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot mutation payload")
	}

	slot, err := s.slots.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule slot")
	}
	if slot.Status != models.SlotStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only active slots can be mutated")
	}

	switch req.Operation {
	case dto.SlotOpCancel:
		return s.cancel(ctx, slot)
	case dto.SlotOpEdit:
		return s.edit(ctx, slot, req)
	case dto.SlotOpMove:
		return s.move(ctx, slot, req)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown slot operation")
	}
}

func (s *SlotLifecycleService) cancel(ctx context.Context, slot *models.ScheduleSlot) (*models.ScheduleSlot, error) {
	err := s.inVersionedTx(ctx, slot.InstitutionID, slot.TermID, func(tx *sqlx.Tx) error {
		return s.slots.UpdateStatusWithTx(ctx, tx, slot.ID, models.SlotStatusCancelled)
	})
	if err != nil {
		return nil, err
	}
	slot.Status = models.SlotStatusCancelled
	s.recordMutation("cancel")
	s.logger.Info("slot cancelled", zap.String("slot_id", slot.ID))
	return slot, nil
}

func (s *SlotLifecycleService) edit(ctx context.Context, slot *models.ScheduleSlot, req dto.SlotMutationRequest) (*models.ScheduleSlot, error) {
	updated := *slot
	if req.TeacherID != nil {
		updated.TeacherID = *req.TeacherID
	}
	if req.SubjectID != nil {
		updated.SubjectID = *req.SubjectID
	}
	if req.Room != nil {
		updated.Room = req.Room
	}
	if req.SlotType != nil {
		updated.SlotType = *req.SlotType
	}

	if err := s.gate(ctx, updated, req.Force); err != nil {
		return nil, err
	}

	err := s.inVersionedTx(ctx, slot.InstitutionID, slot.TermID, func(tx *sqlx.Tx) error {
		return s.slots.UpdateWithTx(ctx, tx, &updated)
	})
	if err != nil {
		return nil, err
	}
	s.recordMutation("edit")
	s.logger.Info("slot edited", zap.String("slot_id", updated.ID))
	return &updated, nil
}

func (s *SlotLifecycleService) move(ctx context.Context, slot *models.ScheduleSlot, req dto.SlotMutationRequest) (*models.ScheduleSlot, error) {
	if req.DayOfWeek == nil || req.Period == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "move requires dayOfWeek and period")
	}
	if *req.DayOfWeek == slot.DayOfWeek && *req.Period == slot.Period {
		return nil, appErrors.Clone(appErrors.ErrValidation, "move target equals the current coordinate")
	}

	moved := *slot
	moved.ID = uuid.NewString()
	moved.DayOfWeek = *req.DayOfWeek
	moved.Period = *req.Period
	moved.Status = models.SlotStatusActive
	if req.TeacherID != nil {
		moved.TeacherID = *req.TeacherID
	}
	if req.Room != nil {
		moved.Room = req.Room
	}

	if err := s.gate(ctx, moved, req.Force); err != nil {
		return nil, err
	}

	// The old record stays as an audit trail; the replacement becomes the
	// active occupant of the new coordinate in the same transaction.
	err := s.inVersionedTx(ctx, slot.InstitutionID, slot.TermID, func(tx *sqlx.Tx) error {
		if err := s.slots.UpdateStatusWithTx(ctx, tx, slot.ID, models.SlotStatusMoved); err != nil {
			return err
		}
		return s.slots.InsertWithTx(ctx, tx, &moved)
	})
	if err != nil {
		return nil, err
	}
	s.recordMutation("move")
	s.logger.Info("slot moved",
		zap.String("from_slot_id", slot.ID),
		zap.String("to_slot_id", moved.ID),
		zap.Int("day_of_week", moved.DayOfWeek),
		zap.Int("period", moved.Period),
	)
	return &moved, nil
}

// gate runs conflict detection and decides whether the mutation may proceed.
// Critical conflicts and class coordinate clashes are never forceable; the
// latter would break slot identity (term, class, day, period).
func (s *SlotLifecycleService) gate(ctx context.Context, candidate models.ScheduleSlot, force bool) error {
	committed, err := s.slots.ListActiveByTerm(ctx, candidate.InstitutionID, candidate.TermID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed schedule")
	}

	pool := map[string]models.Teacher{}
	if s.teachers != nil {
		teachers, err := s.teachers.ListActive(ctx, candidate.InstitutionID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher pool")
		}
		pool = teacherMap(teachers)
	}

	maxSubjects := 0
	if s.settings != nil {
		if settings, err := s.settings.GetByTerm(ctx, candidate.InstitutionID, candidate.TermID); err == nil {
			maxSubjects = settings.MaxSubjectsPerTeacher
		} else if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load distribution settings")
		}
	}

	conflicts := s.detector.Check(candidate, committed, pool, maxSubjects)
	if len(conflicts) == 0 {
		return nil
	}
	s.recordConflicts(conflicts)

	for _, c := range conflicts {
		if c.Critical() {
			return appErrors.WithDetails(appErrors.ErrConflict, "mutation blocked by a critical conflict", dto.ConflictDetail{Conflicts: conflicts})
		}
		if c.Kind == models.ConflictClassOverload {
			return appErrors.WithDetails(appErrors.ErrConflict, "the class already occupies the target coordinate", dto.ConflictDetail{Conflicts: conflicts})
		}
	}
	if !force {
		return appErrors.WithDetails(appErrors.ErrConflict, "mutation has conflicts; repeat with force to override", dto.ConflictDetail{Conflicts: conflicts})
	}
	return nil
}

// ApplySubstitutions records the substitute assignments for one affected slot
// and retires the slot from the active schedule, atomically.
func (s *SlotLifecycleService) ApplySubstitutions(ctx context.Context, slot models.ScheduleSlot, subs []models.Substitution) error {
	if len(subs) == 0 {
		return nil
	}
	if s.substitutions == nil {
		return appErrors.Clone(appErrors.ErrInternal, "substitution writer missing")
	}
	err := s.inVersionedTx(ctx, slot.InstitutionID, slot.TermID, func(tx *sqlx.Tx) error {
		for i := range subs {
			if err := s.substitutions.InsertWithTx(ctx, tx, &subs[i]); err != nil {
				return err
			}
		}
		return s.slots.UpdateStatusWithTx(ctx, tx, slot.ID, models.SlotStatusSubstituted)
	})
	if err != nil {
		return err
	}
	s.recordMutation("substitute")
	return nil
}

// UpdateAbsenceCoverage persists the coverage counters after a resolver run.
func (s *SlotLifecycleService) UpdateAbsenceCoverage(ctx context.Context, absenceID string, covered, total int, status models.AbsenceStatus) error {
	if s.absences == nil {
		return appErrors.Clone(appErrors.ErrInternal, "absence writer missing")
	}
	if err := s.absences.UpdateCoverageWithTx(ctx, nil, absenceID, covered, total, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update absence coverage")
	}
	return nil
}

// inVersionedTx runs fn and the version bump in one transaction. Losing the
// compare-and-swap means another writer changed the schedule concurrently.
func (s *SlotLifecycleService) inVersionedTx(ctx context.Context, institutionID, termID string, fn func(tx *sqlx.Tx) error) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	current, err := s.versions.Current(ctx, institutionID, termID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule version")
	}

	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply slot mutation")
		return err
	}
	if _, err = s.versions.BumpWithTx(ctx, tx, institutionID, termID, current); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			err = appErrors.Clone(appErrors.ErrConflict, "the schedule changed concurrently; retry the mutation")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bump schedule version")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit slot mutation")
		return err
	}
	return nil
}

func (s *SlotLifecycleService) recordMutation(op string) {
	if s.metrics != nil {
		s.metrics.RecordSlotMutation(op)
	}
}

func (s *SlotLifecycleService) recordConflicts(conflicts []models.Conflict) {
	if s.metrics == nil {
		return
	}
	for _, c := range conflicts {
		s.metrics.RecordConflict(string(c.Kind), string(c.Severity))
	}
}
