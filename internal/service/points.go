package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PointsConfig holds the constants of the points formula.
type PointsConfig struct {
	PerUnit             int64
	PerMinute           int64
	StreakBonusPerDay   int64
	StreakBonusCap      int
	GoalCompletionBonus int64
}

// DefaultPointsConfig returns the stock points constants.
func DefaultPointsConfig() PointsConfig {
	return PointsConfig{
		PerUnit:             1,
		PerMinute:           2,
		StreakBonusPerDay:   5,
		StreakBonusCap:      30,
		GoalCompletionBonus: 25,
	}
}

// Calculate returns the points earned by a completed session:
//
//	units*PerUnit + floor(activeMinutes)*PerMinute
//	  + min(streak, StreakBonusCap)*StreakBonusPerDay
//	  + completedGoals*GoalCompletionBonus
//
// A session with no reading and no goal completions earns nothing, so an
// empty session cannot farm the streak bonus.
func (c PointsConfig) Calculate(units, activeReadingMs int64, currentStreak, completedGoals int) int64 {
	minutes := activeReadingMs / int64(time.Minute/time.Millisecond)
	if units <= 0 && minutes <= 0 && completedGoals <= 0 {
		return 0
	}

	streakDays := int64(min(max(currentStreak, 0), c.StreakBonusCap))

	return max(units, 0)*c.PerUnit +
		minutes*c.PerMinute +
		streakDays*c.StreakBonusPerDay +
		int64(max(completedGoals, 0))*c.GoalCompletionBonus
}

// PointsEvent is the "points earned" signal handed to the reward ledger.
type PointsEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Points    int64     `json:"points"`
	AwardedAt time.Time `json:"awarded_at"`
}

// NewPointsEvent creates an event with a fresh uuid.
func NewPointsEvent(userID, sessionID string, points int64, at time.Time) PointsEvent {
	return PointsEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Points:    points,
		AwardedAt: at,
	}
}

// PointsSink receives points earned by completed sessions. Balance and
// withdrawal accounting live behind it.
type PointsSink interface {
	Emit(ctx context.Context, event PointsEvent) error
}

// LogPointsSink writes points events to the log.
type LogPointsSink struct {
	logger *slog.Logger
}

// NewLogPointsSink creates a sink that logs every event at info level.
func NewLogPointsSink(logger *slog.Logger) *LogPointsSink {
	return &LogPointsSink{logger: logger}
}

// Emit implements PointsSink.
func (s *LogPointsSink) Emit(_ context.Context, event PointsEvent) error {
	s.logger.Info("points earned",
		"event_id", event.ID,
		"user_id", event.UserID,
		"session_id", event.SessionID,
		"points", event.Points)
	return nil
}
