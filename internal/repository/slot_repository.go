package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/emis-scheduler-api/internal/models"
)

// SlotRepository provides persistence for committed schedule slots.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository creates a new slot repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

const slotColumns = `id, institution_id, term_id, class_id, subject_id, teacher_id, day_of_week, period, room, slot_type, status, created_at, updated_at`

// List returns slots with optional filtering and pagination.
func (r *SlotRepository) List(ctx context.Context, filter models.SlotFilter) ([]models.ScheduleSlot, int, error) {
	base := "FROM schedule_slots WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.InstitutionID != "" {
		conditions = append(conditions, fmt.Sprintf("institution_id = $%d", len(args)+1))
		args = append(args, filter.InstitutionID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.DayOfWeek > 0 {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}
	if filter.Period > 0 {
		conditions = append(conditions, fmt.Sprintf("period = $%d", len(args)+1))
		args = append(args, filter.Period)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"day_of_week": true,
		"period":      true,
		"class_id":    true,
		"created_at":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "day_of_week"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, period ASC LIMIT %d OFFSET %d", slotColumns, base, sortBy, order, size, offset)
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedule slots: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedule slots: %w", err)
	}

	return slots, total, nil
}

// FindByID loads a slot by id.
func (r *SlotRepository) FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_slots WHERE id = $1", slotColumns)
	var slot models.ScheduleSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListActiveByTerm returns every active slot for an institution/term. This is
// the committed state the conflict detector evaluates against.
func (r *SlotRepository) ListActiveByTerm(ctx context.Context, institutionID, termID string) ([]models.ScheduleSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_slots
WHERE institution_id = $1 AND term_id = $2 AND status = $3
ORDER BY day_of_week ASC, period ASC, class_id ASC`, slotColumns)
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, institutionID, termID, models.SlotStatusActive); err != nil {
		return nil, fmt.Errorf("list active slots: %w", err)
	}
	return slots, nil
}

// ListActiveByTeacher returns a teacher's active slots within a term.
func (r *SlotRepository) ListActiveByTeacher(ctx context.Context, termID, teacherID string) ([]models.ScheduleSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_slots
WHERE term_id = $1 AND teacher_id = $2 AND status = $3
ORDER BY day_of_week ASC, period ASC`, slotColumns)
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, termID, teacherID, models.SlotStatusActive); err != nil {
		return nil, fmt.Errorf("list active slots by teacher: %w", err)
	}
	return slots, nil
}

// InsertWithTx stores a new slot inside an existing transaction.
func (r *SlotRepository) InsertWithTx(ctx context.Context, exec sqlx.ExtContext, slot *models.ScheduleSlot) error {
	if exec == nil {
		exec = r.db
	}
	now := time.Now().UTC()
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO schedule_slots (id, institution_id, term_id, class_id, subject_id, teacher_id, day_of_week, period, room, slot_type, status, created_at, updated_at)
VALUES (:id, :institution_id, :term_id, :class_id, :subject_id, :teacher_id, :day_of_week, :period, :room, :slot_type, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, slot); err != nil {
		return fmt.Errorf("insert schedule slot: %w", err)
	}
	return nil
}

// BulkInsertWithTx stores many slots inside an existing transaction.
func (r *SlotRepository) BulkInsertWithTx(ctx context.Context, exec sqlx.ExtContext, slots []models.ScheduleSlot) error {
	for i := range slots {
		if err := r.InsertWithTx(ctx, exec, &slots[i]); err != nil {
			return err
		}
	}
	return nil
}

// UpdateWithTx modifies an existing slot inside a transaction.
func (r *SlotRepository) UpdateWithTx(ctx context.Context, exec sqlx.ExtContext, slot *models.ScheduleSlot) error {
	if exec == nil {
		exec = r.db
	}
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_slots
SET class_id = :class_id, subject_id = :subject_id, teacher_id = :teacher_id,
    day_of_week = :day_of_week, period = :period, room = :room,
    slot_type = :slot_type, status = :status, updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, slot); err != nil {
		return fmt.Errorf("update schedule slot: %w", err)
	}
	return nil
}

// UpdateStatusWithTx transitions a slot's status inside a transaction.
func (r *SlotRepository) UpdateStatusWithTx(ctx context.Context, exec sqlx.ExtContext, id string, status models.SlotStatus) error {
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE schedule_slots SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := exec.ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update schedule slot status: %w", err)
	}
	return nil
}
