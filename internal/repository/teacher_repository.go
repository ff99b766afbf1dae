package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/emis-scheduler-api/internal/models"
)

// TeacherRepository reads teacher reference data. The roster itself is owned
// by the external administration module; this service never writes it.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository creates a new teacher repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

const teacherColumns = `id, institution_id, full_name, expertise, max_weekly_hours, active, created_at, updated_at`

// FindByID loads a teacher by id.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := fmt.Sprintf("SELECT %s FROM teachers WHERE id = $1", teacherColumns)
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ListActive returns the active teacher pool for an institution, ordered by
// id for deterministic downstream ranking.
func (r *TeacherRepository) ListActive(ctx context.Context, institutionID string) ([]models.Teacher, error) {
	query := fmt.Sprintf("SELECT %s FROM teachers WHERE institution_id = $1 AND active = TRUE ORDER BY id ASC", teacherColumns)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, institutionID); err != nil {
		return nil, fmt.Errorf("list active teachers: %w", err)
	}
	return teachers, nil
}

// ListQualifications returns every teacher-subject capability pair for an
// institution.
func (r *TeacherRepository) ListQualifications(ctx context.Context, institutionID string) ([]models.TeacherQualification, error) {
	const query = `SELECT tq.teacher_id, tq.subject_id, tq.is_primary
FROM teacher_qualifications tq
JOIN teachers t ON t.id = tq.teacher_id
WHERE t.institution_id = $1
ORDER BY tq.teacher_id ASC, tq.subject_id ASC`
	var quals []models.TeacherQualification
	if err := r.db.SelectContext(ctx, &quals, query, institutionID); err != nil {
		return nil, fmt.Errorf("list teacher qualifications: %w", err)
	}
	return quals, nil
}

// GetPreference loads a teacher's preference record, if any.
func (r *TeacherRepository) GetPreference(ctx context.Context, teacherID string) (*models.TeacherPreference, error) {
	const query = `SELECT id, teacher_id, preferred_days, avoided_days, preferred_slots, avoided_slots, created_at, updated_at
FROM teacher_preferences WHERE teacher_id = $1`
	var pref models.TeacherPreference
	if err := r.db.GetContext(ctx, &pref, query, teacherID); err != nil {
		return nil, err
	}
	return &pref, nil
}
