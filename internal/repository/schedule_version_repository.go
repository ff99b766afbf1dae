package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrVersionConflict is returned when the compare-and-swap bump loses the
// race against a concurrent commit.
var ErrVersionConflict = errors.New("schedule version conflict")

// ScheduleVersionRepository owns the monotonically increasing schedule
// version per institution/term used for optimistic concurrency.
type ScheduleVersionRepository struct {
	db *sqlx.DB
}

// NewScheduleVersionRepository builds the repository.
func NewScheduleVersionRepository(db *sqlx.DB) *ScheduleVersionRepository {
	return &ScheduleVersionRepository{db: db}
}

// Current returns the schedule version, creating the counter at 0 on first use.
func (r *ScheduleVersionRepository) Current(ctx context.Context, institutionID, termID string) (int, error) {
	const query = `SELECT version FROM schedule_versions WHERE institution_id = $1 AND term_id = $2`
	var version int
	err := r.db.GetContext(ctx, &version, query, institutionID, termID)
	if errors.Is(err, sql.ErrNoRows) {
		const insert = `INSERT INTO schedule_versions (institution_id, term_id, version)
VALUES ($1, $2, 0) ON CONFLICT (institution_id, term_id) DO NOTHING`
		if _, err := r.db.ExecContext(ctx, insert, institutionID, termID); err != nil {
			return 0, fmt.Errorf("init schedule version: %w", err)
		}
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get schedule version: %w", err)
	}
	return version, nil
}

// BumpWithTx increments the version iff it still equals expected. Two
// concurrent commits against the same snapshot cannot both succeed.
func (r *ScheduleVersionRepository) BumpWithTx(ctx context.Context, exec sqlx.ExtContext, institutionID, termID string, expected int) (int, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE schedule_versions SET version = version + 1
WHERE institution_id = $1 AND term_id = $2 AND version = $3`
	res, err := exec.ExecContext(ctx, query, institutionID, termID, expected)
	if err != nil {
		return 0, fmt.Errorf("bump schedule version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bump schedule version result: %w", err)
	}
	if affected == 0 {
		return 0, ErrVersionConflict
	}
	return expected + 1, nil
}
