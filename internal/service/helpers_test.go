package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readtrack-server/internal/activity"
	"github.com/listenupapp/readtrack-server/internal/clock"
	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/metrics"
	"github.com/listenupapp/readtrack-server/internal/store"
	"github.com/listenupapp/readtrack-server/internal/store/sqlite"
)

// monday is 2026-03-02 09:00 UTC.
var monday = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	events []PointsEvent
}

func (s *recordingSink) Emit(_ context.Context, e PointsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Events() []PointsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PointsEvent(nil), s.events...)
}

type harness struct {
	store    *sqlite.Store
	clock    *clock.Fixed
	activity *activity.Daily
	metrics  *metrics.Metrics
	sink     *recordingSink
	streaks  *StreakService
	goals    *GoalUpdater
	manager  *SessionManager
	progress *ProgressService
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	wrapGoals    func(store.GoalRepository) store.GoalRepository
	wrapSessions func(store.SessionRepository) store.SessionRepository
	wrapStats    func(store.UserStatsStore) store.UserStatsStore
	bounds       domain.PositionBounds
	location     *time.Location
}

// withFailingGoals makes UpdateGoal fail for the given goal IDs.
func withFailingGoals(ids ...string) harnessOption {
	return func(c *harnessConfig) {
		c.wrapGoals = func(inner store.GoalRepository) store.GoalRepository {
			fail := make(map[string]bool, len(ids))
			for _, id := range ids {
				fail[id] = true
			}
			return &failingGoals{GoalRepository: inner, fail: fail}
		}
	}
}

// withFailingCompletions makes the first n CompleteSession writes fail
// without touching storage.
func withFailingCompletions(n int) harnessOption {
	return func(c *harnessConfig) {
		c.wrapSessions = func(inner store.SessionRepository) store.SessionRepository {
			return &flakySessions{SessionRepository: inner, failures: n}
		}
	}
}

// withFailingStreakWrites makes every SetUserStreak call fail.
func withFailingStreakWrites() harnessOption {
	return func(c *harnessConfig) {
		c.wrapStats = func(inner store.UserStatsStore) store.UserStatsStore {
			return &failingStreakStats{UserStatsStore: inner}
		}
	}
}

func withLocation(loc *time.Location) harnessOption {
	return func(c *harnessConfig) { c.location = loc }
}

func withBounds(b domain.PositionBounds) harnessOption {
	return func(c *harnessConfig) { c.bounds = b }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	counter, err := activity.OpenBadgerCounter("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { counter.Close() })

	var cfg harnessConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	var goals store.GoalRepository = db
	if cfg.wrapGoals != nil {
		goals = cfg.wrapGoals(db)
	}
	var sessions store.SessionRepository = db
	if cfg.wrapSessions != nil {
		sessions = cfg.wrapSessions(db)
	}
	var stats store.UserStatsStore = db
	if cfg.wrapStats != nil {
		stats = cfg.wrapStats(db)
	}
	loc := cfg.location
	if loc == nil {
		loc = time.UTC
	}

	h := &harness{
		store:    db,
		clock:    clock.NewFixed(monday),
		activity: activity.NewDaily(counter, activity.DefaultTTL, loc),
		metrics:  metrics.New(),
		sink:     &recordingSink{},
	}

	h.streaks = NewStreakService(StreakConfig{Location: loc}, db, h.activity, h.clock, h.metrics, logger)
	h.goals = NewGoalUpdater(goals, loc, h.clock, h.metrics, logger)
	h.manager = NewSessionManager(SessionManagerConfig{
		IdleTimeout:        30 * time.Minute,
		Bounds:             cfg.bounds,
		Location:           loc,
		Points:             DefaultPointsConfig(),
		ExperiencePerLevel: 1000,
	}, SessionManagerDeps{
		Sessions: sessions,
		Stats:    stats,
		Activity: h.activity,
		Streaks:  h.streaks,
		Goals:    h.goals,
		Points:   h.sink,
		Metrics:  h.metrics,
		Clock:    h.clock,
	}, logger)
	h.progress = NewProgressService(h.manager, h.streaks, db, db, db, db, h.clock, loc, logger)
	return h
}

func (h *harness) start(t *testing.T, userID, sessionID string) {
	t.Helper()
	_, err := h.manager.StartSession(context.Background(), userID, sessionID, &domain.Position{Major: 1, Minor: 1}, domain.SessionOptions{})
	require.NoError(t, err)
}

func (h *harness) session(t *testing.T, id string) *domain.ReadingSession {
	t.Helper()
	s, err := h.store.GetSession(context.Background(), id)
	require.NoError(t, err)
	return s
}

func (h *harness) insertGoal(t *testing.T, g *domain.Goal) *domain.Goal {
	t.Helper()
	if g.Status == "" {
		g.Status = domain.GoalActive
	}
	if g.Period == "" {
		g.Period = domain.PeriodDaily
	}
	if g.StartDate.IsZero() {
		g.StartDate = g.Period.Start(h.clock.Now())
	}
	g.CreatedAt = h.clock.Now()
	g.UpdatedAt = h.clock.Now()
	require.NoError(t, h.store.InsertGoal(context.Background(), g))
	return g
}

// readOneUnit starts a session, reports one unit of timeMs and advances the
// clock by a minute so active time fits inside the session's duration.
func (h *harness) readOneUnit(t *testing.T, userID, sessionID string, timeMs int64) {
	t.Helper()
	h.start(t, userID, sessionID)
	err := h.manager.UpdateProgress(context.Background(), userID, sessionID, domain.ProgressDelta{
		UnitsRead:        []domain.UnitRead{{Position: domain.Position{Major: 1, Minor: 1}, TimeSpentMs: timeMs}},
		AdditionalTimeMs: timeMs,
	})
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
}

// failingGoals fails UpdateGoal for the listed goal IDs.
type failingGoals struct {
	store.GoalRepository
	fail map[string]bool
}

func (f *failingGoals) UpdateGoal(ctx context.Context, g *domain.Goal) error {
	if f.fail[g.ID] {
		return store.ErrVersionConflict
	}
	return f.GoalRepository.UpdateGoal(ctx, g)
}

var errDiskIO = fmt.Errorf("disk I/O error")

// flakySessions fails the first CompleteSession calls before any write.
type flakySessions struct {
	store.SessionRepository
	mu       sync.Mutex
	failures int
}

func (f *flakySessions) CompleteSession(ctx context.Context, rs *domain.ReadingSession, inc domain.StatsIncrement, now time.Time) error {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return errDiskIO
	}
	return f.SessionRepository.CompleteSession(ctx, rs, inc, now)
}

// failingStreakStats fails every SetUserStreak call.
type failingStreakStats struct {
	store.UserStatsStore
}

func (f *failingStreakStats) SetUserStreak(context.Context, string, int, int, time.Time) error {
	return errDiskIO
}

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
