// Package store defines the persistence contracts of the reading engine.
package store

import (
	"context"
	"time"

	"github.com/listenupapp/readtrack-server/internal/domain"
)

// SessionFilter selects reading sessions. Zero fields do not constrain.
type SessionFilter struct {
	UserID   string
	Statuses []domain.SessionStatus
	// UpdatedBefore matches sessions whose last update is strictly older.
	UpdatedBefore time.Time
	// Limit caps the result size; 0 means no limit.
	Limit int
}

// SessionRepository persists reading sessions. Updates are compare-and-swap
// on (id, version): the stored version must equal the session's Version, and
// a successful write increments it.
type SessionRepository interface {
	InsertSession(ctx context.Context, session *domain.ReadingSession) error
	GetSession(ctx context.Context, id string) (*domain.ReadingSession, error)
	// FindSessions returns matches ordered by start_time DESC, id DESC.
	FindSessions(ctx context.Context, filter SessionFilter) ([]*domain.ReadingSession, error)
	UpdateSession(ctx context.Context, session *domain.ReadingSession) error
	// CompleteSession writes a completed session under the UpdateSession
	// contract and folds inc into the owner's statistics in the same
	// transaction. Either both land or neither does.
	CompleteSession(ctx context.Context, session *domain.ReadingSession, inc domain.StatsIncrement, now time.Time) error
	// AbandonSessions terminates every open session matching filter in one
	// transaction and returns the sessions it changed.
	AbandonSessions(ctx context.Context, filter SessionFilter, reason string, now time.Time) ([]*domain.ReadingSession, error)
	// AggregateByDay groups completed sessions by activity date.
	AggregateByDay(ctx context.Context, query DayAggregateQuery) ([]DayAggregate, error)
}

// DayAggregateQuery bounds a per-day aggregate over completed sessions.
// From is inclusive and To exclusive, both YYYY-MM-DD; empty means unbounded.
type DayAggregateQuery struct {
	UserID string
	From   string
	To     string
}

// DayAggregate is one group of AggregateByDay, ordered by Date DESC.
type DayAggregate struct {
	Date      string
	Sessions  int64
	ReadingMs int64
	UnitsRead int64
}

// GoalFilter selects goals. Zero fields do not constrain.
type GoalFilter struct {
	UserID   string
	Statuses []domain.GoalStatus
	Types    []domain.GoalType
}

// GoalRepository persists goals with the same compare-and-swap contract as
// SessionRepository.
type GoalRepository interface {
	InsertGoal(ctx context.Context, goal *domain.Goal) error
	GetGoal(ctx context.Context, id string) (*domain.Goal, error)
	FindGoals(ctx context.Context, filter GoalFilter) ([]*domain.Goal, error)
	CountGoals(ctx context.Context, filter GoalFilter) (int64, error)
	UpdateGoal(ctx context.Context, goal *domain.Goal) error
}

// UserStatsStore persists per-user statistics. Every mutation is a single
// atomic upsert.
type UserStatsStore interface {
	// GetUserStats returns nil, nil when the user has no statistics yet.
	GetUserStats(ctx context.Context, userID string) (*domain.UserStatistics, error)
	IncrementUserStats(ctx context.Context, userID string, inc domain.StatsIncrement, now time.Time) error
	SetUserStreak(ctx context.Context, userID string, current, longest int, now time.Time) error
	// AddExperience adds points and recomputes the level, returning the new totals.
	AddExperience(ctx context.Context, userID string, points, perLevel int64, now time.Time) (*domain.UserStatistics, error)
}

// BookmarkStore persists bookmarks.
type BookmarkStore interface {
	InsertBookmark(ctx context.Context, bookmark *domain.Bookmark) error
	CountBookmarks(ctx context.Context, userID string) (int64, error)
	ListBookmarks(ctx context.Context, userID string, limit int) ([]*domain.Bookmark, error)
}
