package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/listenupapp/readtrack-server/internal/domain"
)

const userStatsColumns = `user_id, total_reading_ms, total_units_read, total_major_units_completed,
	total_sessions, current_streak, longest_streak, last_activity_at, level, experience, updated_at`

func scanUserStats(scanner interface{ Scan(dest ...any) error }) (*domain.UserStatistics, error) {
	var stats domain.UserStatistics
	var lastActivity sql.NullString
	var updatedAt string

	err := scanner.Scan(
		&stats.UserID,
		&stats.TotalReadingMs,
		&stats.TotalUnitsRead,
		&stats.TotalMajorUnitsCompleted,
		&stats.TotalSessions,
		&stats.CurrentStreak,
		&stats.LongestStreak,
		&lastActivity,
		&stats.Level,
		&stats.Experience,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if stats.LastActivityAt, err = parseNullableTime(lastActivity); err != nil {
		return nil, err
	}
	if stats.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetUserStats retrieves the statistics for a user.
// Returns nil, nil if no stats exist yet.
func (s *Store) GetUserStats(ctx context.Context, userID string) (*domain.UserStatistics, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userStatsColumns+` FROM user_stats WHERE user_id = ?`, userID)
	stats, err := scanUserStats(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user stats: %w", err)
	}
	return stats, nil
}

// IncrementUserStats atomically folds a completed session into the totals.
func (s *Store) IncrementUserStats(ctx context.Context, userID string, inc domain.StatsIncrement, now time.Time) error {
	return incrementUserStats(ctx, s.db, userID, inc, now)
}

func incrementUserStats(ctx context.Context, e execer, userID string, inc domain.StatsIncrement, now time.Time) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO user_stats (
			user_id, total_reading_ms, total_units_read, total_major_units_completed,
			total_sessions, last_activity_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_reading_ms = total_reading_ms + excluded.total_reading_ms,
			total_units_read = total_units_read + excluded.total_units_read,
			total_major_units_completed = total_major_units_completed + excluded.total_major_units_completed,
			total_sessions = total_sessions + excluded.total_sessions,
			last_activity_at = excluded.last_activity_at,
			updated_at = excluded.updated_at`,
		userID, inc.ReadingMs, inc.UnitsRead, inc.MajorUnitsCompleted, inc.Sessions,
		formatTime(inc.LastActivityAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("increment user stats: %w", err)
	}
	return nil
}

// SetUserStreak stores the recomputed streak values.
func (s *Store) SetUserStreak(ctx context.Context, userID string, current, longest int, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, current_streak, longest_streak, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = MAX(longest_streak, excluded.longest_streak),
			updated_at = excluded.updated_at`,
		userID, current, longest, formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("set user streak: %w", err)
	}
	return nil
}

// AddExperience adds points and recomputes the level in one statement.
func (s *Store) AddExperience(ctx context.Context, userID string, points, perLevel int64, now time.Time) (*domain.UserStatistics, error) {
	if perLevel <= 0 {
		return nil, fmt.Errorf("add experience: experience per level must be positive, got %d", perLevel)
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO user_stats (user_id, experience, level, updated_at)
		VALUES (?, ?, 1 + ? / ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			experience = experience + excluded.experience,
			level = 1 + (experience + excluded.experience) / ?,
			updated_at = excluded.updated_at
		RETURNING `+userStatsColumns,
		userID, points, points, perLevel, formatTime(now), perLevel,
	)
	stats, err := scanUserStats(row)
	if err != nil {
		return nil, fmt.Errorf("add experience: %w", err)
	}
	return stats, nil
}
