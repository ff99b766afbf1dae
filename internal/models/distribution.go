package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Strategy selects how the distribution engine places demand.
type Strategy string

const (
	StrategyAutomatic Strategy = "automatic"
	StrategyManual    Strategy = "manual"
	StrategyHybrid    Strategy = "hybrid"
)

// RuleKind is the closed enumeration of scoring rules.
type RuleKind string

const (
	RuleSpecialization  RuleKind = "specialization"
	RuleWorkloadBalance RuleKind = "workload_balance"
	RulePreference      RuleKind = "preference"
	RuleConflictPenalty RuleKind = "conflict_penalty"
)

// DistributionRule weighs one scoring dimension when ranking candidate
// placements. Weight is 0-10.
type DistributionRule struct {
	ID      string   `json:"id"`
	Kind    RuleKind `json:"kind"`
	Enabled bool     `json:"enabled"`
	Weight  int      `json:"weight"`
}

// DistributionSettings governs a distribution run for an institution/term.
type DistributionSettings struct {
	ID                    string             `db:"id" json:"id"`
	InstitutionID         string             `db:"institution_id" json:"institution_id"`
	TermID                string             `db:"term_id" json:"term_id"`
	PrioritizeSpecial     bool               `db:"prioritize_specialization" json:"prioritize_specialization"`
	BalanceWorkload       bool               `db:"balance_workload" json:"balance_workload"`
	RespectPreferences    bool               `db:"respect_preferences" json:"respect_preferences"`
	AvoidConflicts        bool               `db:"avoid_conflicts" json:"avoid_conflicts"`
	MaxClassesPerTeacher  int                `db:"max_classes_per_teacher" json:"max_classes_per_teacher"`
	MaxSubjectsPerTeacher int                `db:"max_subjects_per_teacher" json:"max_subjects_per_teacher"`
	MinUtilizationPct     int                `db:"min_utilization_pct" json:"min_utilization_pct"`
	MaxUtilizationPct     int                `db:"max_utilization_pct" json:"max_utilization_pct"`
	Rules                 []DistributionRule `db:"-" json:"rules"`
	RulesRaw              types.JSONText     `db:"rules" json:"-"`
	UpdatedAt             time.Time          `db:"updated_at" json:"updated_at"`
}

// DefaultDistributionSettings returns the standard rule set with every toggle
// on and mid-range weights.
func DefaultDistributionSettings(institutionID, termID string) DistributionSettings {
	return DistributionSettings{
		InstitutionID:         institutionID,
		TermID:                termID,
		PrioritizeSpecial:     true,
		BalanceWorkload:       true,
		RespectPreferences:    true,
		AvoidConflicts:        true,
		MaxClassesPerTeacher:  8,
		MaxSubjectsPerTeacher: 4,
		MinUtilizationPct:     40,
		MaxUtilizationPct:     90,
		Rules: []DistributionRule{
			{ID: "rule-specialization", Kind: RuleSpecialization, Enabled: true, Weight: 5},
			{ID: "rule-workload", Kind: RuleWorkloadBalance, Enabled: true, Weight: 5},
			{ID: "rule-preference", Kind: RulePreference, Enabled: true, Weight: 3},
			{ID: "rule-conflict", Kind: RuleConflictPenalty, Enabled: true, Weight: 8},
		},
	}
}

// RuleWeight returns the weight of an enabled rule, or 0 when disabled/absent.
func (s DistributionSettings) RuleWeight(kind RuleKind) int {
	for _, rule := range s.Rules {
		if rule.Kind == kind && rule.Enabled {
			return rule.Weight
		}
	}
	return 0
}

// Demand is the unmet weekly-hours gap for one class/subject pair.
type Demand struct {
	ClassID        string `json:"class_id"`
	SubjectID      string `json:"subject_id"`
	TargetHours    int    `json:"target_hours"`
	CommittedHours int    `json:"committed_hours"`
	RemainingHours int    `json:"remaining_hours"`
}

// PlanSlot is a proposed, uncommitted placement.
type PlanSlot struct {
	DayOfWeek int     `json:"day_of_week"`
	Period    int     `json:"period"`
	ClassID   string  `json:"class_id"`
	SubjectID string  `json:"subject_id"`
	TeacherID string  `json:"teacher_id"`
	Room      *string `json:"room,omitempty"`
	Score     float64 `json:"score"`
}

// PlanWarning reports demand the engine could not satisfy. Unsatisfied demand
// is a normal operational state, not an error.
type PlanWarning struct {
	ClassID        string `json:"class_id"`
	SubjectID      string `json:"subject_id"`
	RemainingHours int    `json:"remaining_hours"`
	Reason         string `json:"reason"`
}

// Plan is an uncommitted proposed set of slots, stamped with the schedule
// version it was previewed against.
type Plan struct {
	PlanID          string        `json:"plan_id"`
	InstitutionID   string        `json:"institution_id"`
	TermID          string        `json:"term_id"`
	Strategy        Strategy      `json:"strategy"`
	Slots           []PlanSlot    `json:"slots"`
	Demands         []Demand      `json:"demands,omitempty"`
	BalanceScore    float64       `json:"balance_score"`
	Warnings        []PlanWarning `json:"warnings"`
	ScheduleVersion int           `json:"schedule_version"`
	GeneratedAt     time.Time     `json:"generated_at"`
}
