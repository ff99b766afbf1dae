package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/emis-scheduler-api/internal/models"
)

// ClassRepository reads class-section reference data.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classColumns = `id, institution_id, name, grade_level, section_label, max_capacity, current_enrollment, created_at, updated_at`

// FindByID loads a class by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassSection, error) {
	query := fmt.Sprintf("SELECT %s FROM class_sections WHERE id = $1", classColumns)
	var class models.ClassSection
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListByIDs loads the given classes, preserving only existing ones.
func (r *ClassRepository) ListByIDs(ctx context.Context, ids []string) ([]models.ClassSection, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM class_sections WHERE id IN (?) ORDER BY id ASC", classColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build class query: %w", err)
	}
	query = r.db.Rebind(query)
	var classes []models.ClassSection
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// ListTargets returns the weekly-hours targets for the given classes. A
// curriculum override wins over the subject default.
func (r *ClassRepository) ListTargets(ctx context.Context, termID string, classIDs []string) ([]models.ClassSubjectTarget, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	const raw = `SELECT cs.class_id, cs.subject_id,
COALESCE(cs.weekly_hours, s.default_weekly_hours) AS weekly_hours
FROM class_subjects cs
JOIN subjects s ON s.id = cs.subject_id
WHERE cs.term_id = ? AND cs.class_id IN (?)
ORDER BY cs.class_id ASC, cs.subject_id ASC`
	query, args, err := sqlx.In(raw, termID, classIDs)
	if err != nil {
		return nil, fmt.Errorf("build target query: %w", err)
	}
	query = r.db.Rebind(query)
	var targets []models.ClassSubjectTarget
	if err := r.db.SelectContext(ctx, &targets, query, args...); err != nil {
		return nil, fmt.Errorf("list class subject targets: %w", err)
	}
	return targets, nil
}
