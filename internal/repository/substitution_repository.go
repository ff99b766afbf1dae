package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/emis-scheduler-api/internal/models"
)

// SubstitutionRepository persists substitute assignments.
type SubstitutionRepository struct {
	db *sqlx.DB
}

// NewSubstitutionRepository creates a new substitution repository.
func NewSubstitutionRepository(db *sqlx.DB) *SubstitutionRepository {
	return &SubstitutionRepository{db: db}
}

// InsertWithTx stores a substitution inside an existing transaction.
func (r *SubstitutionRepository) InsertWithTx(ctx context.Context, exec sqlx.ExtContext, sub *models.Substitution) error {
	if exec == nil {
		exec = r.db
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO substitutions (id, absence_id, slot_id, substitute_teacher_id, date, day_of_week, period, status, created_at)
VALUES (:id, :absence_id, :slot_id, :substitute_teacher_id, :date, :day_of_week, :period, :status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, sub); err != nil {
		return fmt.Errorf("insert substitution: %w", err)
	}
	return nil
}

// ListByAbsence returns substitutions for an absence ordered by date/period.
func (r *SubstitutionRepository) ListByAbsence(ctx context.Context, absenceID string) ([]models.Substitution, error) {
	const query = `SELECT id, absence_id, slot_id, substitute_teacher_id, date, day_of_week, period, status, created_at
FROM substitutions WHERE absence_id = $1 ORDER BY date ASC, period ASC`
	var subs []models.Substitution
	if err := r.db.SelectContext(ctx, &subs, query, absenceID); err != nil {
		return nil, fmt.Errorf("list substitutions: %w", err)
	}
	return subs, nil
}
