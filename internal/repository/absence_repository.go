package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/emis-scheduler-api/internal/models"
)

// AbsenceRepository reads absences and updates their coverage fields. Absence
// records are created by the external HR/attendance system.
type AbsenceRepository struct {
	db *sqlx.DB
}

// NewAbsenceRepository creates a new absence repository.
func NewAbsenceRepository(db *sqlx.DB) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

const absenceColumns = `id, institution_id, term_id, teacher_id, start_date, end_date, absence_type, status, covered_periods, total_periods, created_at, updated_at`

// FindByID loads an absence by id.
func (r *AbsenceRepository) FindByID(ctx context.Context, id string) (*models.Absence, error) {
	query := fmt.Sprintf("SELECT %s FROM absences WHERE id = $1", absenceColumns)
	var absence models.Absence
	if err := r.db.GetContext(ctx, &absence, query, id); err != nil {
		return nil, err
	}
	return &absence, nil
}

// List returns absences with optional filtering and pagination.
func (r *AbsenceRepository) List(ctx context.Context, filter models.AbsenceFilter) ([]models.Absence, int, error) {
	base := "FROM absences WHERE 1=1"
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
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_date DESC LIMIT %d OFFSET %d", absenceColumns, base, size, offset)
	var absences []models.Absence
	if err := r.db.SelectContext(ctx, &absences, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list absences: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count absences: %w", err)
	}

	return absences, total, nil
}

// UpdateCoverageWithTx updates the coverage counters and status inside a
// transaction. These are the only absence fields this service may write.
func (r *AbsenceRepository) UpdateCoverageWithTx(ctx context.Context, exec sqlx.ExtContext, id string, covered, total int, status models.AbsenceStatus) error {
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE absences SET covered_periods = $1, total_periods = $2, status = $3, updated_at = $4 WHERE id = $5`
	if _, err := exec.ExecContext(ctx, query, covered, total, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update absence coverage: %w", err)
	}
	return nil
}
