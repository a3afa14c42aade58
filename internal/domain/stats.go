package domain

import "time"

// StatsPeriod represents a time window for statistics queries.
type StatsPeriod string

// StatsPeriod constants for time window queries.
const (
	StatsPeriodDay     StatsPeriod = "day"
	StatsPeriodWeek    StatsPeriod = "week"
	StatsPeriodMonth   StatsPeriod = "month"
	StatsPeriodYear    StatsPeriod = "year"
	StatsPeriodAllTime StatsPeriod = "all"
)

// Valid returns true if the period is a recognized value.
func (p StatsPeriod) Valid() bool {
	switch p {
	case StatsPeriodDay, StatsPeriodWeek, StatsPeriodMonth, StatsPeriodYear, StatsPeriodAllTime:
		return true
	default:
		return false
	}
}

// Bounds returns the start and end times for a period relative to now.
// Start is inclusive, end is exclusive. End is always midnight tomorrow in now's location.
func (p StatsPeriod) Bounds(now time.Time) (start, end time.Time) {
	year, month, day := now.Date()
	loc := now.Location()
	today := time.Date(year, month, day, 0, 0, 0, 0, loc)
	endOfToday := today.AddDate(0, 0, 1)

	switch p {
	case StatsPeriodDay:
		return today, endOfToday
	case StatsPeriodWeek:
		// ISO weeks start on Monday.
		weekday := int(today.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		return today.AddDate(0, 0, -(weekday - 1)), endOfToday
	case StatsPeriodMonth:
		return time.Date(year, month, 1, 0, 0, 0, 0, loc), endOfToday
	case StatsPeriodYear:
		return time.Date(year, 1, 1, 0, 0, 0, 0, loc), endOfToday
	case StatsPeriodAllTime:
		return time.Time{}, endOfToday
	default:
		return today, endOfToday
	}
}

// UserStatistics is the durable per-user rollup of completed sessions.
type UserStatistics struct {
	UserID                   string     `json:"user_id"`
	TotalReadingMs           int64      `json:"total_reading_ms"`
	TotalUnitsRead           int64      `json:"total_units_read"`
	TotalMajorUnitsCompleted int64      `json:"total_major_units_completed"`
	TotalSessions            int64      `json:"total_sessions"`
	CurrentStreak            int        `json:"current_streak"`
	LongestStreak            int        `json:"longest_streak"`
	LastActivityAt           *time.Time `json:"last_activity_at,omitempty"`
	Level                    int64      `json:"level"`
	Experience               int64      `json:"experience"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// LevelFor derives the level from accumulated experience.
func LevelFor(experience, perLevel int64) int64 {
	if perLevel <= 0 || experience <= 0 {
		return 1
	}
	return 1 + experience/perLevel
}

// StatsIncrement is the delta a completed session folds into UserStatistics.
type StatsIncrement struct {
	ReadingMs           int64
	UnitsRead           int64
	MajorUnitsCompleted int64
	Sessions            int64
	LastActivityAt      time.Time
}

// DailyReading is the activity of a single day.
type DailyReading struct {
	Date      string `json:"date"` // YYYY-MM-DD
	Sessions  int64  `json:"sessions"`
	ReadingMs int64  `json:"reading_ms"`
	UnitsRead int64  `json:"units_read"`
}

// ReadingStats are completed-session totals for a period.
type ReadingStats struct {
	Period         StatsPeriod    `json:"period"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        time.Time      `json:"end_date"`
	Sessions       int64          `json:"sessions"`
	TotalReadingMs int64          `json:"total_reading_ms"`
	TotalUnitsRead int64          `json:"total_units_read"`
	ActiveDays     int64          `json:"active_days"`
	Daily          []DailyReading `json:"daily"`
}
