package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/readtrack-server/internal/clock"
	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/errors"
	"github.com/listenupapp/readtrack-server/internal/id"
	"github.com/listenupapp/readtrack-server/internal/store"
	"github.com/listenupapp/readtrack-server/internal/streak"
	"github.com/listenupapp/readtrack-server/internal/validation"
)

const (
	recentSessionsLimit = 5
	streakCalendarDays  = 28
)

// StreakResponse is the caller-facing streak view.
type StreakResponse struct {
	CurrentStreak  int             `json:"current_streak"`
	LongestStreak  int             `json:"longest_streak"`
	RecentActivity []streak.Bucket `json:"recent_activity"`
	Calendar       []streak.Day    `json:"calendar"`
}

// TodayActivity is today's cached activity bucket.
type TodayActivity struct {
	Date          string `json:"date"`
	ActivityCount int64  `json:"activity_count"`
}

// Overview is the dashboard summary of a user's reading.
type Overview struct {
	ActiveSession      *domain.ReadingSession   `json:"active_session"`
	RecentSessions     []*domain.ReadingSession `json:"recent_sessions"`
	BookmarkCount      int64                    `json:"bookmark_count"`
	ActiveGoalCount    int64                    `json:"active_goal_count"`
	CompletedGoalCount int64                    `json:"completed_goal_count"`
	Today              TodayActivity            `json:"today"`
	Stats              *domain.UserStatistics   `json:"stats"`
}

// CreateGoalRequest describes a new goal. Period defaults from the type and
// StartDate defaults to the start of the current period.
type CreateGoalRequest struct {
	Title       string            `json:"title" validate:"max=200"`
	Type        domain.GoalType   `json:"type" validate:"required,oneof=daily_time daily_units weekly_units monthly_units streak_days complete_major_unit"`
	Period      domain.GoalPeriod `json:"period" validate:"omitempty,oneof=daily weekly monthly yearly one_time"`
	TargetValue int64             `json:"target_value" validate:"required,min=1"`
	IsRecurring bool              `json:"is_recurring"`
	StartDate   string            `json:"start_date" validate:"omitempty,isodate"`
	Deadline    string            `json:"deadline" validate:"omitempty,isodate"`
}

// ProgressService is the caller-facing facade over the session engine,
// streaks, goals and statistics.
type ProgressService struct {
	manager   *SessionManager
	streaks   *StreakService
	sessions  store.SessionRepository
	goals     store.GoalRepository
	stats     store.UserStatsStore
	bookmarks store.BookmarkStore
	validator *validation.Validator
	clock     clock.Clock
	loc       *time.Location
	logger    *slog.Logger
}

// NewProgressService creates the facade.
func NewProgressService(
	manager *SessionManager,
	streaks *StreakService,
	sessions store.SessionRepository,
	goals store.GoalRepository,
	stats store.UserStatsStore,
	bookmarks store.BookmarkStore,
	clk clock.Clock,
	loc *time.Location,
	logger *slog.Logger,
) *ProgressService {
	if loc == nil {
		loc = time.UTC
	}
	return &ProgressService{
		manager:   manager,
		streaks:   streaks,
		sessions:  sessions,
		goals:     goals,
		stats:     stats,
		bookmarks: bookmarks,
		validator: validation.New(),
		clock:     clk,
		loc:       loc,
		logger:    logger,
	}
}

// Manager exposes the underlying session manager.
func (s *ProgressService) Manager() *SessionManager {
	return s.manager
}

// StartSession opens a new active session, superseding any open one.
func (s *ProgressService) StartSession(ctx context.Context, userID, sessionID string, start *domain.Position, opts domain.SessionOptions) (string, error) {
	return s.manager.StartSession(ctx, userID, sessionID, start, opts)
}

// UpdateProgress merges a progress delta into the user's active session.
func (s *ProgressService) UpdateProgress(ctx context.Context, userID, sessionID string, delta domain.ProgressDelta) error {
	return s.manager.UpdateProgress(ctx, userID, sessionID, delta)
}

// PauseSession pauses the user's active session.
func (s *ProgressService) PauseSession(ctx context.Context, userID, sessionID string) error {
	return s.manager.PauseSession(ctx, userID, sessionID)
}

// ResumeSession reactivates a paused session.
func (s *ProgressService) ResumeSession(ctx context.Context, userID, sessionID string) error {
	return s.manager.ResumeSession(ctx, userID, sessionID)
}

// CompleteSession finalizes a session and applies statistics, goals and points.
func (s *ProgressService) CompleteSession(ctx context.Context, userID, sessionID string, final domain.CompletionFields) (*domain.SessionSummary, error) {
	return s.manager.CompleteSession(ctx, userID, sessionID, final)
}

// AbandonSession terminates an open session at the user's request.
func (s *ProgressService) AbandonSession(ctx context.Context, userID, sessionID string) error {
	return s.manager.AbandonSession(ctx, userID, sessionID)
}

// GetActiveSession returns the user's active session, or nil.
func (s *ProgressService) GetActiveSession(ctx context.Context, userID string) (*domain.ReadingSession, error) {
	return s.manager.GetActiveSession(ctx, userID)
}

// GetStreak returns the user's streaks, recent active days and a four week
// activity calendar.
func (s *ProgressService) GetStreak(ctx context.Context, userID string) (*StreakResponse, error) {
	summary, err := s.streaks.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	calendar, err := s.streaks.Calendar(ctx, userID, streakCalendarDays)
	if err != nil {
		return nil, err
	}
	return &StreakResponse{
		CurrentStreak:  summary.CurrentStreak,
		LongestStreak:  summary.LongestStreak,
		RecentActivity: summary.RecentActivity,
		Calendar:       calendar,
	}, nil
}

// GetOverview gathers the dashboard. The reads are independent and run
// concurrently; the first failure cancels the rest.
func (s *ProgressService) GetOverview(ctx context.Context, userID string) (*Overview, error) {
	overview := &Overview{
		Today: TodayActivity{Date: s.now().Format(time.DateOnly)},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		active, err := s.manager.GetActiveSession(gctx, userID)
		overview.ActiveSession = active
		return err
	})
	g.Go(func() error {
		recent, err := s.sessions.FindSessions(gctx, store.SessionFilter{UserID: userID, Limit: recentSessionsLimit})
		if err != nil {
			return storeError(err, "find recent sessions")
		}
		overview.RecentSessions = recent
		return nil
	})
	g.Go(func() error {
		n, err := s.bookmarks.CountBookmarks(gctx, userID)
		if err != nil {
			return storeError(err, "count bookmarks")
		}
		overview.BookmarkCount = n
		return nil
	})
	g.Go(func() error {
		n, err := s.goals.CountGoals(gctx, store.GoalFilter{UserID: userID, Statuses: []domain.GoalStatus{domain.GoalActive}})
		if err != nil {
			return storeError(err, "count active goals")
		}
		overview.ActiveGoalCount = n
		return nil
	})
	g.Go(func() error {
		n, err := s.goals.CountGoals(gctx, store.GoalFilter{UserID: userID, Statuses: []domain.GoalStatus{domain.GoalCompleted}})
		if err != nil {
			return storeError(err, "count completed goals")
		}
		overview.CompletedGoalCount = n
		return nil
	})
	g.Go(func() error {
		stats, err := s.stats.GetUserStats(gctx, userID)
		if err != nil {
			return storeError(err, "get user statistics")
		}
		if stats == nil {
			stats = &domain.UserStatistics{UserID: userID, Level: 1}
		}
		overview.Stats = stats
		return nil
	})
	g.Go(func() error {
		overview.Today.ActivityCount = s.streaks.TodayCount(gctx, userID)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if overview.RecentSessions == nil {
		overview.RecentSessions = []*domain.ReadingSession{}
	}
	return overview, nil
}

// GetStats returns completed-session totals for period with a per-day
// breakdown, oldest day first.
func (s *ProgressService) GetStats(ctx context.Context, userID string, period domain.StatsPeriod) (*domain.ReadingStats, error) {
	if period == "" {
		period = domain.StatsPeriodWeek
	}
	if !period.Valid() {
		return nil, errors.ValidationWithDetails("invalid period", map[string]string{
			"period": "must be one of day, week, month, year, all",
		})
	}

	start, end := period.Bounds(s.now())
	query := store.DayAggregateQuery{UserID: userID, To: end.Format(time.DateOnly)}
	if !start.IsZero() {
		query.From = start.Format(time.DateOnly)
	}

	aggregates, err := s.sessions.AggregateByDay(ctx, query)
	if err != nil {
		return nil, storeError(err, "aggregate sessions by day")
	}

	stats := &domain.ReadingStats{
		Period:    period,
		StartDate: start,
		EndDate:   end,
		Daily:     make([]domain.DailyReading, 0, len(aggregates)),
	}
	for _, agg := range slices.Backward(aggregates) {
		stats.Sessions += agg.Sessions
		stats.TotalReadingMs += agg.ReadingMs
		stats.TotalUnitsRead += agg.UnitsRead
		if agg.Sessions > 0 {
			stats.ActiveDays++
		}
		stats.Daily = append(stats.Daily, domain.DailyReading{
			Date:      agg.Date,
			Sessions:  agg.Sessions,
			ReadingMs: agg.ReadingMs,
			UnitsRead: agg.UnitsRead,
		})
	}
	return stats, nil
}

// CreateGoal validates and stores a new active goal.
func (s *ProgressService) CreateGoal(ctx context.Context, userID string, req CreateGoalRequest) (*domain.Goal, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	period := req.Period
	if period == "" {
		period = defaultPeriod(req.Type)
	}

	now := s.now()
	startFrom := now
	if req.StartDate != "" {
		startFrom, _ = time.ParseInLocation(time.DateOnly, req.StartDate, s.loc)
	}

	goalID, err := id.NewGoalID()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "generate goal id")
	}

	goal := &domain.Goal{
		ID:              goalID,
		UserID:          userID,
		Title:           req.Title,
		Type:            req.Type,
		Period:          period,
		Status:          domain.GoalActive,
		TargetValue:     req.TargetValue,
		StartDate:       period.Start(startFrom),
		IsRecurring:     req.IsRecurring && period != domain.PeriodOneTime,
		ProgressHistory: []domain.GoalProgressEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if period == domain.PeriodOneTime {
		goal.StartDate = startFrom
	}
	if req.Deadline != "" {
		deadline, _ := time.ParseInLocation(time.DateOnly, req.Deadline, s.loc)
		if !deadline.After(goal.StartDate) {
			return nil, errors.ValidationWithDetails("invalid goal", map[string]string{
				"deadline": "must be after the start date",
			})
		}
		goal.Deadline = &deadline
	}

	if err := s.goals.InsertGoal(ctx, goal); err != nil {
		return nil, storeError(err, "insert goal")
	}

	s.logger.Info("goal created",
		"user_id", userID,
		"goal_id", goal.ID,
		"type", goal.Type,
		"period", goal.Period,
		"target", goal.TargetValue)
	return goal, nil
}

// ListGoals returns the user's goals, optionally filtered by status.
func (s *ProgressService) ListGoals(ctx context.Context, userID string, status domain.GoalStatus) ([]*domain.Goal, error) {
	filter := store.GoalFilter{UserID: userID}
	if status != "" {
		filter.Statuses = []domain.GoalStatus{status}
	}
	goals, err := s.goals.FindGoals(ctx, filter)
	if err != nil {
		return nil, storeError(err, "find goals")
	}
	if goals == nil {
		goals = []*domain.Goal{}
	}
	return goals, nil
}

// CancelGoal cancels an active or paused goal owned by the user.
func (s *ProgressService) CancelGoal(ctx context.Context, userID, goalID string) (*domain.Goal, error) {
	goal, err := s.goals.GetGoal(ctx, goalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("goal %s not found", goalID)
		}
		return nil, storeError(err, "get goal")
	}
	if goal.UserID != userID {
		return nil, errors.NotFoundf("goal %s not found", goalID)
	}
	if goal.Status != domain.GoalActive && goal.Status != domain.GoalPaused {
		return nil, errors.InvalidStatef("goal %s is %s", goalID, goal.Status)
	}

	goal.Status = domain.GoalCancelled
	goal.UpdatedAt = s.clock.Now()
	if err := s.goals.UpdateGoal(ctx, goal); err != nil {
		return nil, storeError(err, "cancel goal")
	}
	s.logger.Info("goal cancelled", "user_id", userID, "goal_id", goalID)
	return goal, nil
}

// AddBookmark records a bookmark at pos.
func (s *ProgressService) AddBookmark(ctx context.Context, userID string, pos domain.Position, note string) (*domain.Bookmark, error) {
	if err := s.manager.cfg.Bounds.Check("position", pos); err != nil {
		return nil, err
	}
	if err := s.validator.Var("note", note, "max=1000"); err != nil {
		return nil, err
	}

	bookmarkID, err := id.NewBookmarkID()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "generate bookmark id")
	}
	bookmark := &domain.Bookmark{
		ID:        bookmarkID,
		UserID:    userID,
		Position:  pos,
		Note:      note,
		CreatedAt: s.clock.Now(),
	}
	if err := s.bookmarks.InsertBookmark(ctx, bookmark); err != nil {
		return nil, storeError(err, "insert bookmark")
	}
	return bookmark, nil
}

func (s *ProgressService) now() time.Time {
	return s.clock.Now().In(s.loc)
}

func defaultPeriod(t domain.GoalType) domain.GoalPeriod {
	switch t {
	case domain.GoalDailyTime, domain.GoalDailyUnits:
		return domain.PeriodDaily
	case domain.GoalWeeklyUnits:
		return domain.PeriodWeekly
	case domain.GoalMonthlyUnits:
		return domain.PeriodMonthly
	default:
		return domain.PeriodOneTime
	}
}
