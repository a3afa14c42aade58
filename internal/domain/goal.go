package domain

import "time"

// GoalType identifies what a goal measures.
type GoalType string

// Goal types.
const (
	GoalDailyTime         GoalType = "daily_time" // milliseconds
	GoalDailyUnits        GoalType = "daily_units"
	GoalWeeklyUnits       GoalType = "weekly_units"
	GoalMonthlyUnits      GoalType = "monthly_units"
	GoalStreakDays        GoalType = "streak_days"
	GoalCompleteMajorUnit GoalType = "complete_major_unit"
)

// GoalCategory groups goal types by the session quantity that feeds them.
type GoalCategory int

// Goal categories.
const (
	CategoryUnknown GoalCategory = iota
	CategoryTime
	CategoryUnits
	CategoryMajorUnits
	CategoryStreak
)

// Category maps the goal type to its session-derived category.
func (t GoalType) Category() GoalCategory {
	switch t {
	case GoalDailyTime:
		return CategoryTime
	case GoalDailyUnits, GoalWeeklyUnits, GoalMonthlyUnits:
		return CategoryUnits
	case GoalCompleteMajorUnit:
		return CategoryMajorUnits
	case GoalStreakDays:
		return CategoryStreak
	default:
		return CategoryUnknown
	}
}

// Valid reports whether t is a known goal type.
func (t GoalType) Valid() bool {
	return t.Category() != CategoryUnknown
}

// GoalPeriod is the recurrence window of a goal.
type GoalPeriod string

// Goal periods.
const (
	PeriodDaily   GoalPeriod = "daily"
	PeriodWeekly  GoalPeriod = "weekly"
	PeriodMonthly GoalPeriod = "monthly"
	PeriodYearly  GoalPeriod = "yearly"
	PeriodOneTime GoalPeriod = "one_time"
)

// Start returns the beginning of the period containing t, in t's location.
// Weeks start on Monday.
func (p GoalPeriod) Start(t time.Time) time.Time {
	switch p {
	case PeriodWeekly:
		start, _ := StatsPeriodWeek.Bounds(t)
		return start
	case PeriodMonthly:
		start, _ := StatsPeriodMonth.Bounds(t)
		return start
	case PeriodYearly:
		start, _ := StatsPeriodYear.Bounds(t)
		return start
	default:
		start, _ := StatsPeriodDay.Bounds(t)
		return start
	}
}

// Next returns the start of the period following the one that begins at start.
// One-time goals have no next period and return the zero time.
func (p GoalPeriod) Next(start time.Time) time.Time {
	switch p {
	case PeriodDaily:
		return start.AddDate(0, 0, 1)
	case PeriodWeekly:
		return start.AddDate(0, 0, 7)
	case PeriodMonthly:
		return start.AddDate(0, 1, 0)
	case PeriodYearly:
		return start.AddDate(1, 0, 0)
	default:
		return time.Time{}
	}
}

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

// Goal statuses.
const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
	GoalFailed    GoalStatus = "failed"
	GoalCancelled GoalStatus = "cancelled"
)

// GoalProgressEntry records one contribution to a goal.
type GoalProgressEntry struct {
	Date            time.Time `json:"date"`
	Value           int64     `json:"value"`
	SourceSessionID string    `json:"source_session_id"`
}

// Goal is a user-defined reading target.
type Goal struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	Title           string              `json:"title,omitempty"`
	Type            GoalType            `json:"type"`
	Period          GoalPeriod          `json:"period"`
	Status          GoalStatus          `json:"status"`
	TargetValue     int64               `json:"target_value"`
	CurrentProgress int64               `json:"current_progress"`
	StartDate       time.Time           `json:"start_date"`
	EndDate         *time.Time          `json:"end_date,omitempty"`
	Deadline        *time.Time          `json:"deadline,omitempty"`
	IsRecurring     bool                `json:"is_recurring"`
	CurrentStreak   int                 `json:"current_streak"`
	BestStreak      int                 `json:"best_streak"`
	ProgressHistory []GoalProgressEntry `json:"progress_history"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	Version         int64               `json:"version"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// In converts the goal's period boundaries to loc. Period arithmetic steps
// calendar days in the boundaries' location, so goals read back from storage
// must be moved into the engine's location before Window or AdvanceTo.
func (g *Goal) In(loc *time.Location) {
	if loc == nil {
		return
	}
	g.StartDate = g.StartDate.In(loc)
	if g.EndDate != nil {
		end := g.EndDate.In(loc)
		g.EndDate = &end
	}
	if g.Deadline != nil {
		deadline := g.Deadline.In(loc)
		g.Deadline = &deadline
	}
}

// Window returns the goal's active interval [start, end). A zero end means
// open-ended; one-time goals without a deadline never close.
func (g *Goal) Window() (start, end time.Time) {
	start = g.StartDate
	switch {
	case g.EndDate != nil:
		end = *g.EndDate
	case g.Period == PeriodOneTime:
		if g.Deadline != nil {
			end = *g.Deadline
		}
	default:
		end = g.Period.Next(start)
	}
	return start, end
}

// Contains reports whether t falls inside the goal's window.
func (g *Goal) Contains(t time.Time) bool {
	start, end := g.Window()
	if t.Before(start) {
		return false
	}
	return end.IsZero() || t.Before(end)
}

// AddProgress applies a contribution, keeping CurrentProgress monotonic.
// Streak goals take the observed streak as a floor instead of adding it.
func (g *Goal) AddProgress(value int64, at time.Time, sessionID string) {
	if g.Type.Category() == CategoryStreak {
		g.CurrentProgress = max(g.CurrentProgress, value)
	} else {
		g.CurrentProgress += value
	}
	g.ProgressHistory = append(g.ProgressHistory, GoalProgressEntry{
		Date:            at,
		Value:           value,
		SourceSessionID: sessionID,
	})
}

// Reached reports whether the target has been met.
func (g *Goal) Reached() bool {
	return g.TargetValue > 0 && g.CurrentProgress >= g.TargetValue
}

// MarkCompleted records completion of the current period. Recurring goals
// immediately open their next period.
func (g *Goal) MarkCompleted(now time.Time) {
	completedAt := now
	g.CompletedAt = &completedAt
	g.Status = GoalCompleted
	g.CurrentStreak++
	g.BestStreak = max(g.BestStreak, g.CurrentStreak)

	if g.IsRecurring && g.Period != PeriodOneTime {
		g.openNextPeriod()
		g.Status = GoalActive
	}
	g.UpdatedAt = now
}

// AdvanceTo rolls a recurring goal forward until its window contains t.
// Skipping a period means it ended without completion, which resets the
// goal's streak. Reports whether the window moved.
func (g *Goal) AdvanceTo(t time.Time) bool {
	if !g.IsRecurring || g.Period == PeriodOneTime {
		return false
	}
	moved := false
	for {
		_, end := g.Window()
		if end.IsZero() || t.Before(end) {
			return moved
		}
		g.openNextPeriod()
		g.CurrentStreak = 0
		moved = true
	}
}

func (g *Goal) openNextPeriod() {
	_, end := g.Window()
	g.StartDate = end
	if g.EndDate != nil {
		next := g.Period.Next(end)
		g.EndDate = &next
	}
	g.CurrentProgress = 0
}

// GoalOutcome describes a goal touched by a session completion.
type GoalOutcome struct {
	GoalID          string     `json:"goal_id"`
	Type            GoalType   `json:"type"`
	Contribution    int64      `json:"contribution"`
	CurrentProgress int64      `json:"current_progress"`
	TargetValue     int64      `json:"target_value"`
	Status          GoalStatus `json:"status"`
	Completed       bool       `json:"completed"`
}

// GoalFailure describes a goal whose update could not be stored.
type GoalFailure struct {
	GoalID string `json:"goal_id"`
	Error  string `json:"error"`
}
