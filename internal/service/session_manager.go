package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/listenupapp/readtrack-server/internal/clock"
	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/errors"
	"github.com/listenupapp/readtrack-server/internal/metrics"
	"github.com/listenupapp/readtrack-server/internal/store"
	"github.com/listenupapp/readtrack-server/internal/streak"
	"github.com/listenupapp/readtrack-server/internal/validation"
)

// DefaultIdleTimeout is how long an open session may go without updates
// before the sweeper abandons it.
const DefaultIdleTimeout = 30 * time.Minute

// SessionManagerConfig holds the session engine tunables. Nothing is read
// from the environment at call time.
type SessionManagerConfig struct {
	IdleTimeout        time.Duration
	Bounds             domain.PositionBounds
	Location           *time.Location
	Points             PointsConfig
	ExperiencePerLevel int64
}

// SessionManagerDeps are the collaborators of a SessionManager. Activity,
// Points and Metrics are optional.
type SessionManagerDeps struct {
	Sessions store.SessionRepository
	Stats    store.UserStatsStore
	Activity ActivityCounter
	Streaks  *StreakService
	Goals    *GoalUpdater
	Points   PointsSink
	Metrics  *metrics.Metrics
	Clock    clock.Clock
}

// SessionManager owns the reading session state machine and keeps at most
// one open session per user by superseding older ones.
type SessionManager struct {
	cfg       SessionManagerConfig
	sessions  store.SessionRepository
	stats     store.UserStatsStore
	activity  ActivityCounter
	streaks   *StreakService
	goals     *GoalUpdater
	points    PointsSink
	metrics   *metrics.Metrics
	clock     clock.Clock
	validator *validation.Validator
	logger    *slog.Logger
}

// NewSessionManager creates a session manager.
func NewSessionManager(cfg SessionManagerConfig, deps SessionManagerDeps, logger *slog.Logger) *SessionManager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	return &SessionManager{
		cfg:       cfg,
		sessions:  deps.Sessions,
		stats:     deps.Stats,
		activity:  deps.Activity,
		streaks:   deps.Streaks,
		goals:     deps.Goals,
		points:    deps.Points,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		validator: validation.New(),
		logger:    logger,
	}
}

// IdleTimeout returns the configured idle threshold.
func (m *SessionManager) IdleTimeout() time.Duration {
	return m.cfg.IdleTimeout
}

// StartSession opens a new active session for the user, abandoning any
// session the user still has open. A nil start position means 1:1.
//
// Retrying with the ID of a session the user already has active returns that
// session unchanged; any other reuse of an existing ID is ALREADY_EXISTS.
func (m *SessionManager) StartSession(
	ctx context.Context,
	userID, sessionID string,
	start *domain.Position,
	opts domain.SessionOptions,
) (string, error) {
	if err := m.validateIDs(userID, sessionID); err != nil {
		return "", err
	}
	startPos := domain.Position{Major: 1, Minor: 1}
	if start != nil {
		startPos = *start
	}
	if err := m.cfg.Bounds.Check("start_position", startPos); err != nil {
		return "", err
	}
	if opts.GoalType != "" && !opts.GoalType.Valid() {
		return "", errors.ValidationWithDetails("invalid session options", map[string]string{
			"goal_type": fmt.Sprintf("unknown goal type %q", opts.GoalType),
		})
	}
	if opts.GoalTarget < 0 {
		return "", errors.ValidationWithDetails("invalid session options", map[string]string{
			"goal_target": "must be at least 0",
		})
	}

	existing, err := m.sessions.GetSession(ctx, sessionID)
	switch {
	case err == nil:
		if existing.UserID == userID && existing.IsActive() {
			m.logger.Debug("session already active, returning existing",
				"user_id", userID,
				"session_id", sessionID)
			return existing.ID, nil
		}
		return "", errors.AlreadyExistsf("session %s already exists", sessionID)
	case !errors.Is(err, store.ErrNotFound):
		return "", storeError(err, "get session")
	}

	now := m.clock.Now()

	superseded, err := m.sessions.AbandonSessions(ctx, store.SessionFilter{UserID: userID}, domain.ReasonSuperseded, now)
	if err != nil {
		return "", storeError(err, "abandon open sessions")
	}
	if len(superseded) > 0 {
		m.metrics.SessionsAbandoned(domain.ReasonSuperseded, len(superseded))
		for _, rs := range superseded {
			m.logger.Info("superseded open session",
				"user_id", userID,
				"session_id", rs.ID,
				"new_session_id", sessionID)
		}
	}

	session := domain.NewReadingSession(sessionID, userID, startPos, opts, now)
	if err := m.sessions.InsertSession(ctx, session); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return "", errors.AlreadyExistsf("session %s already exists", sessionID)
		}
		return "", storeError(err, "insert session")
	}

	m.metrics.SessionStarted()
	m.logger.Info("reading session started",
		"user_id", userID,
		"session_id", sessionID,
		"start_position", startPos.String())

	return session.ID, nil
}

// UpdateProgress merges a progress delta into the user's active session.
// Only the session and today's activity counter change; statistics and goals
// are updated at completion.
func (m *SessionManager) UpdateProgress(ctx context.Context, userID, sessionID string, delta domain.ProgressDelta) error {
	if err := m.validateDelta(delta); err != nil {
		return err
	}

	session, err := m.loadOwned(ctx, userID, sessionID, func(s domain.SessionStatus) bool {
		return s == domain.SessionActive
	})
	if err != nil {
		return err
	}

	now := m.clock.Now()
	session.ApplyProgress(delta, now)
	if err := m.sessions.UpdateSession(ctx, session); err != nil {
		return storeError(err, "update session")
	}
	m.metrics.ProgressUpdated()

	if n := int64(len(delta.UnitsRead)); n > 0 {
		m.recordActivity(ctx, userID, now, n)
	}

	m.logger.Debug("progress updated",
		"user_id", userID,
		"session_id", sessionID,
		"units_read", len(delta.UnitsRead),
		"total_units_read", session.TotalUnitsRead)
	return nil
}

// PauseSession moves the user's active session to paused. A paused session
// still occupies the user's session slot.
func (m *SessionManager) PauseSession(ctx context.Context, userID, sessionID string) error {
	session, err := m.loadOwned(ctx, userID, sessionID, func(s domain.SessionStatus) bool {
		return s == domain.SessionActive
	})
	if err != nil {
		return err
	}
	session.Pause(m.clock.Now())
	if err := m.sessions.UpdateSession(ctx, session); err != nil {
		return storeError(err, "pause session")
	}
	return nil
}

// ResumeSession moves a paused session back to active.
func (m *SessionManager) ResumeSession(ctx context.Context, userID, sessionID string) error {
	session, err := m.loadOwned(ctx, userID, sessionID, func(s domain.SessionStatus) bool {
		return s == domain.SessionPaused
	})
	if err != nil {
		return err
	}
	session.Resume(m.clock.Now())
	if err := m.sessions.UpdateSession(ctx, session); err != nil {
		return storeError(err, "resume session")
	}
	return nil
}

// CompleteSession finalizes an open session and then, strictly in order,
// folds it into statistics and the streak, credits goals and awards points.
//
// The completed session and the statistics fold are written in one
// transaction: a storage failure leaves the session open so the caller can
// retry, and once it succeeds a retry returns NOT_FOUND, so the fold is never
// applied twice. Streak and goal write failures after that point are reported
// on the summary as a PARTIAL_FAILURE warning.
func (m *SessionManager) CompleteSession(
	ctx context.Context,
	userID, sessionID string,
	final domain.CompletionFields,
) (*domain.SessionSummary, error) {
	if err := m.validateCompletion(final); err != nil {
		return nil, err
	}

	session, err := m.loadOwned(ctx, userID, sessionID, domain.SessionStatus.Open)
	if err != nil {
		return nil, err
	}

	started := m.clock.Now()
	session.Complete(final, started, m.cfg.Location)
	endTime := *session.EndTime

	// 1. statistics and streak
	inc := domain.StatsIncrement{
		ReadingMs:           session.ActiveReadingMs,
		UnitsRead:           session.TotalUnitsRead,
		MajorUnitsCompleted: int64(len(session.CompletedMajorUnits)),
		Sessions:            1,
		LastActivityAt:      endTime,
	}
	if err := m.sessions.CompleteSession(ctx, session, inc, endTime); err != nil {
		return nil, storeError(err, "complete session")
	}
	m.recordActivity(ctx, userID, endTime, 1)

	streakSummary, streakErr := m.refreshStreak(ctx, userID, endTime)

	summary := &domain.SessionSummary{
		Session:       session,
		CurrentStreak: streakSummary.CurrentStreak,
		LongestStreak: streakSummary.LongestStreak,
		GoalsUpdated:  []domain.GoalOutcome{},
	}
	if streakErr != nil {
		m.logger.Warn("streak refresh failed",
			"user_id", userID,
			"session_id", sessionID,
			"error", streakErr)
		summary.Warning = errors.PartialFailure("streak could not be refreshed", map[string]string{
			"streak": streakErr.Error(),
		})
	}

	// 2. goals
	goalResult, err := m.goals.Apply(ctx, session, streakSummary.CurrentStreak)
	switch {
	case err != nil:
		m.logger.Warn("goal update skipped",
			"user_id", userID,
			"session_id", sessionID,
			"error", err)
		goalResult.Failures = append(goalResult.Failures, domain.GoalFailure{Error: err.Error()})
		if summary.Warning == nil {
			summary.Warning = errors.PartialFailure("goals could not be updated", goalResult.Failures)
		}
	case len(goalResult.Failures) > 0 && summary.Warning == nil:
		summary.Warning = errors.PartialFailure("some goals could not be updated", goalResult.Failures)
	}
	if goalResult.Updated != nil {
		summary.GoalsUpdated = goalResult.Updated
	}
	summary.GoalFailures = goalResult.Failures
	summary.GoalsCompleted = goalResult.Completed()

	// 3. points
	points := m.cfg.Points.Calculate(
		session.TotalUnitsRead,
		session.ActiveReadingMs,
		streakSummary.CurrentStreak,
		summary.GoalsCompleted,
	)
	summary.PointsEarned = points
	m.awardPoints(ctx, session, points, endTime, summary)

	m.metrics.SessionCompleted(m.clock.Now().Sub(started))
	m.logger.Info("reading session completed",
		"user_id", userID,
		"session_id", sessionID,
		"units_read", session.TotalUnitsRead,
		"active_reading_ms", session.ActiveReadingMs,
		"points", points,
		"current_streak", summary.CurrentStreak,
		"goals_completed", summary.GoalsCompleted)

	return summary, nil
}

// refreshStreak recomputes the user's streak and caches it on the statistics
// row. The summary is usable even when err is set: it falls back to the last
// cached streak when the recompute itself failed.
func (m *SessionManager) refreshStreak(ctx context.Context, userID string, at time.Time) (streak.Summary, error) {
	sum, err := m.streaks.Summary(ctx, userID)
	if err != nil {
		if stats, getErr := m.stats.GetUserStats(ctx, userID); getErr == nil && stats != nil {
			sum = streak.Summary{CurrentStreak: stats.CurrentStreak, LongestStreak: stats.LongestStreak}
		}
		return sum, err
	}
	if err := m.stats.SetUserStreak(ctx, userID, sum.CurrentStreak, sum.LongestStreak, at); err != nil {
		return sum, storeError(err, "store streak")
	}
	return sum, nil
}

// awardPoints stores points on the session, adds them to the user's
// experience and hands them to the sink. Failures are logged; the session is
// already complete and the summary is still returned.
func (m *SessionManager) awardPoints(
	ctx context.Context,
	session *domain.ReadingSession,
	points int64,
	at time.Time,
	summary *domain.SessionSummary,
) {
	session.PointsEarned = points
	if points > 0 {
		if err := m.sessions.UpdateSession(ctx, session); err != nil {
			m.logger.Error("failed to store points on session",
				"user_id", session.UserID,
				"session_id", session.ID,
				"points", points,
				"error", err)
		}
	}

	stats, err := m.stats.AddExperience(ctx, session.UserID, points, m.cfg.ExperiencePerLevel, at)
	if err != nil {
		m.logger.Error("failed to add experience",
			"user_id", session.UserID,
			"session_id", session.ID,
			"points", points,
			"error", err)
	} else if stats != nil {
		summary.LongestStreak = max(summary.LongestStreak, stats.LongestStreak)
	}

	if points <= 0 {
		return
	}
	m.metrics.PointsAwarded(points)
	if m.points == nil {
		return
	}
	event := NewPointsEvent(session.UserID, session.ID, points, at)
	if err := m.points.Emit(ctx, event); err != nil {
		m.logger.Error("failed to emit points event",
			"user_id", session.UserID,
			"session_id", session.ID,
			"event_id", event.ID,
			"error", err)
	}
}

// AbandonSession terminates one of the user's open sessions at their request.
func (m *SessionManager) AbandonSession(ctx context.Context, userID, sessionID string) error {
	session, err := m.loadOwned(ctx, userID, sessionID, domain.SessionStatus.Open)
	if err != nil {
		return err
	}
	session.Abandon(domain.ReasonUserAbandoned, m.clock.Now())
	if err := m.sessions.UpdateSession(ctx, session); err != nil {
		return storeError(err, "abandon session")
	}
	m.metrics.SessionsAbandoned(domain.ReasonUserAbandoned, 1)
	m.logger.Info("reading session abandoned", "user_id", userID, "session_id", sessionID)
	return nil
}

// GetActiveSession returns the user's active session, or nil when none is
// active. Paused sessions are not returned; when a race left more than one
// active session the most recently started wins.
func (m *SessionManager) GetActiveSession(ctx context.Context, userID string) (*domain.ReadingSession, error) {
	active, err := m.sessions.FindSessions(ctx, store.SessionFilter{
		UserID:   userID,
		Statuses: []domain.SessionStatus{domain.SessionActive},
		Limit:    1,
	})
	if err != nil {
		return nil, storeError(err, "find active session")
	}
	if len(active) == 0 {
		return nil, nil
	}
	return active[0], nil
}

// ListStaleSessions returns up to limit open sessions idle past the timeout.
func (m *SessionManager) ListStaleSessions(ctx context.Context, limit int) ([]*domain.ReadingSession, error) {
	sessions, err := m.sessions.FindSessions(ctx, store.SessionFilter{
		Statuses:      []domain.SessionStatus{domain.SessionActive, domain.SessionPaused},
		UpdatedBefore: m.clock.Now().Add(-m.cfg.IdleTimeout),
		Limit:         limit,
	})
	if err != nil {
		return nil, storeError(err, "find stale sessions")
	}
	return sessions, nil
}

// AbandonStale abandons an open session that has been idle past the
// timeout. It is NOT_FOUND when the session is not open and INVALID_STATE
// when it saw an update recently.
func (m *SessionManager) AbandonStale(ctx context.Context, sessionID string) error {
	session, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("session %s not found", sessionID)
		}
		return storeError(err, "get session")
	}
	if !session.Status.Open() {
		return errors.NotFoundf("session %s not found", sessionID)
	}

	now := m.clock.Now()
	if !session.IsStale(now, m.cfg.IdleTimeout) {
		return errors.InvalidStatef("session %s was updated %s ago", sessionID, now.Sub(session.UpdatedAt).Round(time.Second))
	}

	session.Abandon(domain.ReasonIdleTimeout, now)
	if err := m.sessions.UpdateSession(ctx, session); err != nil {
		return storeError(err, "abandon stale session")
	}
	m.metrics.SessionsAbandoned(domain.ReasonIdleTimeout, 1)
	m.logger.Info("abandoned idle session",
		"user_id", session.UserID,
		"session_id", sessionID,
		"idle_for", now.Sub(session.UpdatedAt))
	return nil
}

// loadOwned fetches a session owned by userID whose status satisfies accept.
// Foreign and missing sessions are indistinguishable.
func (m *SessionManager) loadOwned(
	ctx context.Context,
	userID, sessionID string,
	accept func(domain.SessionStatus) bool,
) (*domain.ReadingSession, error) {
	session, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("session %s not found", sessionID)
		}
		return nil, storeError(err, "get session")
	}
	if session.UserID != userID || !accept(session.Status) {
		return nil, errors.NotFoundf("session %s not found", sessionID)
	}
	return session, nil
}

func (m *SessionManager) recordActivity(ctx context.Context, userID string, at time.Time, count int64) {
	if m.activity == nil {
		return
	}
	if _, err := m.activity.Record(ctx, userID, at, count); err != nil {
		m.metrics.ActivityCacheError("record")
		m.logger.Warn("failed to record daily activity",
			"user_id", userID,
			"count", count,
			"error", err)
	}
}

func (m *SessionManager) validateIDs(userID, sessionID string) error {
	if err := m.validator.Var("user_id", userID, "required,recordid"); err != nil {
		return err
	}
	return m.validator.Var("session_id", sessionID, "required,recordid")
}

func (m *SessionManager) validateDelta(d domain.ProgressDelta) error {
	details := map[string]string{}
	if d.AdditionalTimeMs < 0 {
		details["additional_time_ms"] = "must be at least 0"
	}
	if d.GoalProgress != nil && *d.GoalProgress < 0 {
		details["goal_progress"] = "must be at least 0"
	}
	if d.CurrentPosition != nil {
		if err := m.cfg.Bounds.Check("current_position", *d.CurrentPosition); err != nil {
			return err
		}
	}
	for i, u := range d.UnitsRead {
		field := fmt.Sprintf("units_read[%d]", i)
		if u.TimeSpentMs < 0 {
			details[field+".time_spent_ms"] = "must be at least 0"
		}
		if err := m.cfg.Bounds.Check(field+".position", u.Position); err != nil {
			return err
		}
	}
	for i, major := range d.CompletedMajorUnits {
		if major < 1 || (m.cfg.Bounds.MaxMajor > 0 && major > m.cfg.Bounds.MaxMajor) {
			details[fmt.Sprintf("completed_major_units[%d]", i)] = "is out of range"
		}
	}
	if len(details) > 0 {
		return errors.ValidationWithDetails("invalid progress update", details)
	}
	return nil
}

func (m *SessionManager) validateCompletion(final domain.CompletionFields) error {
	if final.Rating != nil && (*final.Rating < 1 || *final.Rating > 5) {
		return errors.ValidationWithDetails("invalid completion", map[string]string{
			"rating": "must be between 1 and 5",
		})
	}
	if final.EndPosition != nil {
		return m.cfg.Bounds.Check("end_position", *final.EndPosition)
	}
	return nil
}
