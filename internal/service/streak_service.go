package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/listenupapp/readtrack-server/internal/clock"
	"github.com/listenupapp/readtrack-server/internal/metrics"
	"github.com/listenupapp/readtrack-server/internal/store"
	"github.com/listenupapp/readtrack-server/internal/streak"
)

// DefaultStreakLookbackDays bounds the history a streak is computed from.
const DefaultStreakLookbackDays = 90

// ActivityCounter is the daily activity cache as seen by the engine.
// Implemented by *activity.Daily.
type ActivityCounter interface {
	Record(ctx context.Context, userID string, at time.Time, count int64) (int64, error)
	Count(ctx context.Context, userID string, at time.Time) (int64, error)
}

// StreakConfig configures streak computation.
type StreakConfig struct {
	LookbackDays int
	RecentSize   int
	Location     *time.Location
}

// StreakService builds daily buckets from session history and the activity
// cache, then runs the streak calculator over them.
type StreakService struct {
	sessions store.SessionRepository
	activity ActivityCounter
	calc     streak.Calculator
	lookback int
	loc      *time.Location
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewStreakService creates a streak service. activity may be nil.
func NewStreakService(
	cfg StreakConfig,
	sessions store.SessionRepository,
	activity ActivityCounter,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *StreakService {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultStreakLookbackDays
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &StreakService{
		sessions: sessions,
		activity: activity,
		calc:     streak.Calculator{RecentSize: cfg.RecentSize},
		lookback: cfg.LookbackDays,
		loc:      cfg.Location,
		clock:    clk,
		metrics:  m,
		logger:   logger,
	}
}

// Now returns the current time in the engine's location.
func (s *StreakService) Now() time.Time {
	return s.clock.Now().In(s.loc)
}

// Summary computes the user's current and longest streak over the lookback
// window.
func (s *StreakService) Summary(ctx context.Context, userID string) (streak.Summary, error) {
	now := s.Now()
	buckets, err := s.Buckets(ctx, userID, now, s.lookback)
	if err != nil {
		return streak.Summary{}, err
	}
	return s.calc.Calculate(buckets, now), nil
}

// Calendar returns a dense day-by-day view of the last days days.
func (s *StreakService) Calendar(ctx context.Context, userID string, days int) ([]streak.Day, error) {
	now := s.Now()
	buckets, err := s.Buckets(ctx, userID, now, days)
	if err != nil {
		return nil, err
	}
	return streak.Calendar(buckets, now, days), nil
}

// Buckets returns per-day completed-session counts for the days calendar days
// ending today. Today's bucket is raised to the cached activity count so
// reading in a still-open session keeps the streak alive.
func (s *StreakService) Buckets(ctx context.Context, userID string, now time.Time, days int) ([]streak.Bucket, error) {
	today := streak.Midnight(now, s.loc)
	query := store.DayAggregateQuery{
		UserID: userID,
		From:   today.AddDate(0, 0, -(days - 1)).Format(time.DateOnly),
		To:     today.AddDate(0, 0, 1).Format(time.DateOnly),
	}

	aggregates, err := s.sessions.AggregateByDay(ctx, query)
	if err != nil {
		return nil, storeError(err, "aggregate sessions by day")
	}

	buckets := make([]streak.Bucket, 0, len(aggregates)+1)
	var todayCount int64
	for _, agg := range aggregates {
		date, err := time.ParseInLocation(time.DateOnly, agg.Date, s.loc)
		if err != nil {
			s.logger.Warn("skipping malformed activity date", "user_id", userID, "date", agg.Date)
			continue
		}
		if date.Equal(today) {
			todayCount = agg.Sessions
			continue
		}
		buckets = append(buckets, streak.Bucket{Date: date, Count: agg.Sessions})
	}

	if cached := s.cachedCount(ctx, userID, now); cached > todayCount {
		todayCount = cached
	}
	if todayCount > 0 {
		buckets = append(buckets, streak.Bucket{Date: today, Count: todayCount})
	}
	return buckets, nil
}

// TodayCount returns the cached activity counter for today, 0 when the cache
// is unavailable.
func (s *StreakService) TodayCount(ctx context.Context, userID string) int64 {
	return s.cachedCount(ctx, userID, s.Now())
}

func (s *StreakService) cachedCount(ctx context.Context, userID string, now time.Time) int64 {
	if s.activity == nil {
		return 0
	}
	n, err := s.activity.Count(ctx, userID, now)
	if err != nil {
		s.metrics.ActivityCacheError("read")
		s.logger.Warn("failed to read activity cache", "user_id", userID, "error", err)
		return 0
	}
	return n
}
