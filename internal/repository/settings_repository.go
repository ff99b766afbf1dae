package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/emis-scheduler-api/internal/models"
)

// SettingsRepository persists distribution settings per institution/term.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

const settingsColumns = `id, institution_id, term_id, prioritize_specialization, balance_workload, respect_preferences, avoid_conflicts, max_classes_per_teacher, max_subjects_per_teacher, min_utilization_pct, max_utilization_pct, rules, updated_at`

// GetByTerm loads settings for an institution/term pair.
func (r *SettingsRepository) GetByTerm(ctx context.Context, institutionID, termID string) (*models.DistributionSettings, error) {
	query := fmt.Sprintf("SELECT %s FROM distribution_settings WHERE institution_id = $1 AND term_id = $2", settingsColumns)
	var settings models.DistributionSettings
	if err := r.db.GetContext(ctx, &settings, query, institutionID, termID); err != nil {
		return nil, err
	}
	if len(settings.RulesRaw) > 0 {
		if err := json.Unmarshal(settings.RulesRaw, &settings.Rules); err != nil {
			return nil, fmt.Errorf("decode distribution rules: %w", err)
		}
	}
	return &settings, nil
}

// Upsert stores settings, replacing the rule list wholesale.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.DistributionSettings) error {
	if settings.ID == "" {
		settings.ID = uuid.NewString()
	}
	settings.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(settings.Rules)
	if err != nil {
		return fmt.Errorf("encode distribution rules: %w", err)
	}
	settings.RulesRaw = types.JSONText(raw)

	const query = `INSERT INTO distribution_settings (id, institution_id, term_id, prioritize_specialization, balance_workload, respect_preferences, avoid_conflicts, max_classes_per_teacher, max_subjects_per_teacher, min_utilization_pct, max_utilization_pct, rules, updated_at)
VALUES (:id, :institution_id, :term_id, :prioritize_specialization, :balance_workload, :respect_preferences, :avoid_conflicts, :max_classes_per_teacher, :max_subjects_per_teacher, :min_utilization_pct, :max_utilization_pct, :rules, :updated_at)
ON CONFLICT (institution_id, term_id) DO UPDATE
SET prioritize_specialization = EXCLUDED.prioritize_specialization,
    balance_workload = EXCLUDED.balance_workload,
    respect_preferences = EXCLUDED.respect_preferences,
    avoid_conflicts = EXCLUDED.avoid_conflicts,
    max_classes_per_teacher = EXCLUDED.max_classes_per_teacher,
    max_subjects_per_teacher = EXCLUDED.max_subjects_per_teacher,
    min_utilization_pct = EXCLUDED.min_utilization_pct,
    max_utilization_pct = EXCLUDED.max_utilization_pct,
    rules = EXCLUDED.rules,
    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert distribution settings: %w", err)
	}
	return nil
}
