package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/emis-scheduler-api/internal/models"
)

// GridRepository reads the stored time-grid configuration.
type GridRepository struct {
	db *sqlx.DB
}

// NewGridRepository creates a new grid repository.
func NewGridRepository(db *sqlx.DB) *GridRepository {
	return &GridRepository{db: db}
}

// GetConfig loads the grid configuration for an institution/term.
func (r *GridRepository) GetConfig(ctx context.Context, institutionID, termID string) (*models.GridConfig, error) {
	const query = `SELECT id, institution_id, term_id, working_days, periods_per_day, period_minutes, break_minutes, day_start, break_periods, lunch_period
FROM grid_configs WHERE institution_id = $1 AND term_id = $2`
	var cfg models.GridConfig
	if err := r.db.GetContext(ctx, &cfg, query, institutionID, termID); err != nil {
		return nil, err
	}
	if cfg.WorkingDaysRaw != "" {
		if err := json.Unmarshal([]byte(cfg.WorkingDaysRaw), &cfg.WorkingDays); err != nil {
			return nil, fmt.Errorf("decode working days: %w", err)
		}
	}
	if cfg.BreakRaw != nil && *cfg.BreakRaw != "" {
		if err := json.Unmarshal([]byte(*cfg.BreakRaw), &cfg.BreakPeriods); err != nil {
			return nil, fmt.Errorf("decode break periods: %w", err)
		}
	}
	return &cfg, nil
}
