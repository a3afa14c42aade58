package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/listenupapp/readtrack-server/internal/errors"
)

// SessionStatus is the lifecycle state of a reading session.
type SessionStatus string

// Session statuses. Completed and abandoned are terminal.
const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// Open reports whether the status still occupies the user's single session slot.
func (s SessionStatus) Open() bool {
	return s == SessionActive || s == SessionPaused
}

// Termination reasons recorded on abandoned sessions.
const (
	ReasonSuperseded    = "superseded_by_new_session"
	ReasonIdleTimeout   = "idle_timeout"
	ReasonUserAbandoned = "user_abandoned"
)

// ProgressRecord is one entry of a session's append-only progress log.
type ProgressRecord struct {
	Position    Position  `json:"position"`
	Timestamp   time.Time `json:"timestamp"`
	TimeSpentMs int64     `json:"time_spent_ms"`
}

// ReadingSession is one bounded period of reading by one user.
type ReadingSession struct {
	ID     string        `json:"id"`
	UserID string        `json:"user_id"`
	Status SessionStatus `json:"status"`

	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMs      int64      `json:"duration_ms"`
	ActiveReadingMs int64      `json:"active_reading_ms"`

	StartPosition   Position  `json:"start_position"`
	CurrentPosition Position  `json:"current_position"`
	EndPosition     *Position `json:"end_position,omitempty"`

	Progress            []ProgressRecord `json:"progress"`
	TotalUnitsRead      int64            `json:"total_units_read"`
	VisitedMajorUnits   []int            `json:"visited_major_units"`
	CompletedMajorUnits []int            `json:"completed_major_units"`

	GoalType     GoalType `json:"goal_type,omitempty"`
	GoalTarget   int64    `json:"goal_target,omitempty"`
	GoalProgress int64    `json:"goal_progress,omitempty"`
	GoalAchieved bool     `json:"goal_achieved"`

	AverageUnitTimeMs *float64 `json:"average_unit_time_ms,omitempty"`
	ReadingRate       *float64 `json:"reading_rate,omitempty"` // units per minute
	PointsEarned      int64    `json:"points_earned"`

	Notes      string `json:"notes,omitempty"`
	Reflection string `json:"reflection,omitempty"`
	Rating     *int   `json:"rating,omitempty"`

	TerminationReason string `json:"termination_reason,omitempty"`
	// ActivityDate is the YYYY-MM-DD day the session counts toward.
	ActivityDate string `json:"activity_date,omitempty"`

	// Extra carries caller data that no computation reads.
	Extra map[string]string `json:"extra,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionOptions carries the optional goal linkage for a new session.
type SessionOptions struct {
	GoalType   GoalType
	GoalTarget int64
	Extra      map[string]string
}

// UnitRead is a single minor unit reported by a progress update. ReadAt is
// the client's timestamp; nil means the time the update is applied.
type UnitRead struct {
	Position    Position   `json:"position"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	TimeSpentMs int64      `json:"time_spent_ms"`
}

// ProgressDelta is an incremental progress report. Absent fields leave the
// session untouched.
type ProgressDelta struct {
	CurrentPosition     *Position
	UnitsRead           []UnitRead
	CompletedMajorUnits []int
	AdditionalTimeMs    int64
	GoalProgress        *int64
}

// CompletionFields are the caller-supplied values recorded at completion.
type CompletionFields struct {
	EndPosition *Position
	Notes       string
	Reflection  string
	Rating      *int
}

// NewReadingSession creates an active session starting at start.
func NewReadingSession(id, userID string, start Position, opts SessionOptions, now time.Time) *ReadingSession {
	return &ReadingSession{
		ID:                  id,
		UserID:              userID,
		Status:              SessionActive,
		StartTime:           now,
		StartPosition:       start,
		CurrentPosition:     start,
		Progress:            []ProgressRecord{},
		VisitedMajorUnits:   []int{start.Major},
		CompletedMajorUnits: []int{},
		GoalType:            opts.GoalType,
		GoalTarget:          opts.GoalTarget,
		Extra:               maps.Clone(opts.Extra),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// IsActive reports whether the session accepts progress updates.
func (s *ReadingSession) IsActive() bool {
	return s.Status == SessionActive
}

// IsStale reports whether an open session has gone without updates for longer
// than idle.
func (s *ReadingSession) IsStale(now time.Time, idle time.Duration) bool {
	return s.Status.Open() && now.Sub(s.UpdatedAt) > idle
}

// ApplyProgress merges a delta into the session. Units are appended without
// deduplication; revisiting a unit counts again. Client timestamps are
// clamped to [StartTime, now].
func (s *ReadingSession) ApplyProgress(d ProgressDelta, now time.Time) {
	if d.CurrentPosition != nil {
		s.CurrentPosition = *d.CurrentPosition
		s.VisitedMajorUnits = addToSet(s.VisitedMajorUnits, d.CurrentPosition.Major)
	}

	for _, u := range d.UnitsRead {
		s.Progress = append(s.Progress, ProgressRecord{
			Position:    u.Position,
			Timestamp:   s.readAt(u, now),
			TimeSpentMs: u.TimeSpentMs,
		})
		s.VisitedMajorUnits = addToSet(s.VisitedMajorUnits, u.Position.Major)
	}
	s.TotalUnitsRead += int64(len(d.UnitsRead))

	for _, major := range d.CompletedMajorUnits {
		s.CompletedMajorUnits = addToSet(s.CompletedMajorUnits, major)
	}

	s.ActiveReadingMs += d.AdditionalTimeMs

	if d.GoalProgress != nil {
		s.GoalProgress = *d.GoalProgress
		s.GoalAchieved = s.GoalTarget > 0 && s.GoalProgress >= s.GoalTarget
	}

	s.UpdatedAt = now
}

func (s *ReadingSession) readAt(u UnitRead, now time.Time) time.Time {
	switch {
	case u.ReadAt == nil || u.ReadAt.After(now):
		return now
	case u.ReadAt.Before(s.StartTime):
		return s.StartTime
	default:
		return *u.ReadAt
	}
}

// Pause moves an active session to paused.
func (s *ReadingSession) Pause(now time.Time) {
	s.Status = SessionPaused
	s.UpdatedAt = now
}

// Resume moves a paused session back to active.
func (s *ReadingSession) Resume(now time.Time) {
	s.Status = SessionActive
	s.UpdatedAt = now
}

// Complete finalizes the session. Active time is clamped to wall-clock
// duration; per-unit averages are derived only when units were read.
func (s *ReadingSession) Complete(final CompletionFields, now time.Time, loc *time.Location) {
	s.end(now)
	s.Status = SessionCompleted
	s.EndPosition = final.EndPosition
	s.Notes = final.Notes
	s.Reflection = final.Reflection
	s.Rating = final.Rating
	s.ActivityDate = now.In(loc).Format(time.DateOnly)

	s.ActiveReadingMs = min(s.ActiveReadingMs, s.DurationMs)

	s.AverageUnitTimeMs = nil
	s.ReadingRate = nil
	if s.TotalUnitsRead > 0 {
		avg := float64(s.ActiveReadingMs) / float64(s.TotalUnitsRead)
		s.AverageUnitTimeMs = &avg
		if s.ActiveReadingMs > 0 {
			rate := float64(s.TotalUnitsRead) / (float64(s.ActiveReadingMs) / float64(time.Minute/time.Millisecond))
			s.ReadingRate = &rate
		}
	}
}

// Abandon terminates the session without folding it into statistics.
func (s *ReadingSession) Abandon(reason string, now time.Time) {
	s.end(now)
	s.Status = SessionAbandoned
	s.TerminationReason = reason
}

func (s *ReadingSession) end(now time.Time) {
	end := now
	s.EndTime = &end
	s.DurationMs = max(now.Sub(s.StartTime).Milliseconds(), 0)
	s.UpdatedAt = now
}

// addToSet inserts v into the sorted slice set if absent.
func addToSet(set []int, v int) []int {
	i, found := slices.BinarySearch(set, v)
	if found {
		return set
	}
	return slices.Insert(set, i, v)
}

// SessionSummary is returned from completion: the finalized session plus the
// outcomes of the follow-up steps.
type SessionSummary struct {
	Session        *ReadingSession `json:"session"`
	PointsEarned   int64           `json:"points_earned"`
	CurrentStreak  int             `json:"current_streak"`
	LongestStreak  int             `json:"longest_streak"`
	GoalsUpdated   []GoalOutcome   `json:"goals_updated"`
	GoalFailures   []GoalFailure   `json:"goal_failures,omitempty"`
	GoalsCompleted int             `json:"goals_completed"`
	// Warning is a PARTIAL_FAILURE error when some goal writes failed.
	Warning *errors.Error `json:"warning,omitempty"`
}
