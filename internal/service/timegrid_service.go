package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/emis-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/emis-scheduler-api/pkg/errors"
)

type gridConfigReader interface {
	GetConfig(ctx context.Context, institutionID, termID string) (*models.GridConfig, error)
}

type gridCache interface {
	Key(institutionID, termID string) string
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// TimeGridService turns grid configuration into the finite set of
// schedulable (day, period) coordinates with wall-clock bounds.
type TimeGridService struct {
	configs  gridConfigReader
	cache    gridCache
	cacheTTL time.Duration
	logger   *zap.Logger
	metrics  *MetricsService
}

// NewTimeGridService wires the grid builder.
func NewTimeGridService(configs gridConfigReader, cache gridCache, cacheTTL time.Duration, logger *zap.Logger, metrics *MetricsService) *TimeGridService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &TimeGridService{configs: configs, cache: cache, cacheTTL: cacheTTL, logger: logger, metrics: metrics}
}

const defaultDayStart = "07:30"

// Build derives the time grid from a configuration. Pure and deterministic.
func (s *TimeGridService) Build(cfg models.GridConfig) (*models.TimeGrid, error) {
	days, err := normalizeDays(cfg.WorkingDays)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "working days must contain at least one entry between 1-7")
	}
	if cfg.PeriodsPerDay <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "periods per day must be greater than zero")
	}
	if cfg.PeriodMinutes <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period duration must be greater than zero")
	}

	breaks := make(map[int]bool, len(cfg.BreakPeriods)+1)
	for _, p := range cfg.BreakPeriods {
		if p < 1 || p > cfg.PeriodsPerDay {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("break period %d is outside 1-%d", p, cfg.PeriodsPerDay))
		}
		breaks[p] = true
	}
	if cfg.LunchPeriod != 0 {
		if cfg.LunchPeriod < 1 || cfg.LunchPeriod > cfg.PeriodsPerDay {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("lunch period %d is outside 1-%d", cfg.LunchPeriod, cfg.PeriodsPerDay))
		}
		breaks[cfg.LunchPeriod] = true
	}

	dayStart := cfg.DayStart
	if dayStart == "" {
		dayStart = defaultDayStart
	}
	start, err := time.Parse("15:04", dayStart)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("day start %q is not a valid HH:MM time", dayStart))
	}

	breakMinutes := cfg.BreakMinutes
	if breakMinutes <= 0 {
		breakMinutes = cfg.PeriodMinutes
	}

	periods := make([]models.TimeSlot, 0, cfg.PeriodsPerDay)
	cursor := start
	for p := 1; p <= cfg.PeriodsPerDay; p++ {
		duration := cfg.PeriodMinutes
		if breaks[p] {
			duration = breakMinutes
		}
		end := cursor.Add(time.Duration(duration) * time.Minute)
		periods = append(periods, models.TimeSlot{
			Period:          p,
			StartTime:       cursor.Format("15:04"),
			EndTime:         end.Format("15:04"),
			DurationMinutes: duration,
			Break:           breaks[p],
		})
		cursor = end
	}

	coordinates := make([]models.GridCoordinate, 0, len(days)*cfg.PeriodsPerDay)
	for _, day := range days {
		for p := 1; p <= cfg.PeriodsPerDay; p++ {
			if breaks[p] {
				continue
			}
			coordinates = append(coordinates, models.GridCoordinate{DayOfWeek: day, Period: p})
		}
	}

	return &models.TimeGrid{
		InstitutionID: cfg.InstitutionID,
		TermID:        cfg.TermID,
		Days:          days,
		Periods:       periods,
		Coordinates:   coordinates,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

// Resolve returns the grid for an institution/term, from cache when present.
func (s *TimeGridService) Resolve(ctx context.Context, institutionID, termID string) (*models.TimeGrid, error) {
	if institutionID == "" || termID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "institutionId and termId are required")
	}

	var key string
	if s.cache != nil {
		key = s.cache.Key(institutionID, termID)
		var cached models.TimeGrid
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true)
			}
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("grid cache read failed", zap.String("key", key), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
	}

	cfg, err := s.configs.GetConfig(ctx, institutionID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grid configuration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grid configuration")
	}

	grid, err := s.Build(*cfg)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, grid, s.cacheTTL); err != nil {
			s.logger.Warn("grid cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return grid, nil
}

// InvalidateCache drops the cached grid after a configuration change.
func (s *TimeGridService) InvalidateCache(ctx context.Context, institutionID, termID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, s.cache.Key(institutionID, termID))
}

// normalizeDays dedupes and sorts working days. Any out-of-range entry fails
// the whole configuration rather than silently shrinking the grid.
func normalizeDays(days []int) ([]int, error) {
	unique := make(map[int]struct{})
	for _, day := range days {
		if day < 1 || day > 7 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("working day %d is outside 1-7", day))
		}
		unique[day] = struct{}{}
	}
	result := make([]int, 0, len(unique))
	for day := range unique {
		result = append(result, day)
	}
	sort.Ints(result)
	return result, nil
}
