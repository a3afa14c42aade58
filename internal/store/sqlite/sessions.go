package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/store"
)

// sessionColumns is the ordered list of columns selected in reading session
// queries. Must match the scan order in scanSession.
const sessionColumns = `id, user_id, status, start_time, end_time, duration_ms, active_reading_ms,
	start_major, start_minor, current_major, current_minor, end_major, end_minor,
	progress_json, total_units_read, visited_json, completed_json,
	goal_type, goal_target, goal_progress, goal_achieved,
	average_unit_time_ms, reading_rate, points_earned,
	notes, reflection, rating, termination_reason, activity_date, extra_json,
	version, created_at, updated_at`

func scanSession(scanner interface{ Scan(dest ...any) error }) (*domain.ReadingSession, error) {
	var rs domain.ReadingSession

	var (
		status              string
		startTime           string
		endTime             sql.NullString
		endMajor, endMinor  sql.NullInt64
		progressJSON        sql.NullString
		visitedJSON         sql.NullString
		completedJSON       sql.NullString
		goalType            sql.NullString
		goalAchieved        int
		avgUnitTime, rate   sql.NullFloat64
		notes, reflection   sql.NullString
		rating              sql.NullInt64
		reason, activityDay sql.NullString
		extraJSON           sql.NullString
		createdAt           string
		updatedAt           string
	)

	err := scanner.Scan(
		&rs.ID, &rs.UserID, &status, &startTime, &endTime, &rs.DurationMs, &rs.ActiveReadingMs,
		&rs.StartPosition.Major, &rs.StartPosition.Minor,
		&rs.CurrentPosition.Major, &rs.CurrentPosition.Minor,
		&endMajor, &endMinor,
		&progressJSON, &rs.TotalUnitsRead, &visitedJSON, &completedJSON,
		&goalType, &rs.GoalTarget, &rs.GoalProgress, &goalAchieved,
		&avgUnitTime, &rate, &rs.PointsEarned,
		&notes, &reflection, &rating, &reason, &activityDay, &extraJSON,
		&rs.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rs.Status = domain.SessionStatus(status)
	if rs.StartTime, err = parseTime(startTime); err != nil {
		return nil, err
	}
	if rs.EndTime, err = parseNullableTime(endTime); err != nil {
		return nil, err
	}
	if rs.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rs.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	if endMajor.Valid && endMinor.Valid {
		rs.EndPosition = &domain.Position{Major: int(endMajor.Int64), Minor: int(endMinor.Int64)}
	}

	rs.Progress = []domain.ProgressRecord{}
	rs.VisitedMajorUnits = []int{}
	rs.CompletedMajorUnits = []int{}
	if err := decodeJSON(progressJSON, &rs.Progress); err != nil {
		return nil, err
	}
	if err := decodeJSON(visitedJSON, &rs.VisitedMajorUnits); err != nil {
		return nil, err
	}
	if err := decodeJSON(completedJSON, &rs.CompletedMajorUnits); err != nil {
		return nil, err
	}
	if err := decodeJSON(extraJSON, &rs.Extra); err != nil {
		return nil, err
	}

	rs.GoalType = domain.GoalType(goalType.String)
	rs.GoalAchieved = goalAchieved != 0
	rs.AverageUnitTimeMs = floatPtr(avgUnitTime)
	rs.ReadingRate = floatPtr(rate)
	rs.Notes = notes.String
	rs.Reflection = reflection.String
	if rating.Valid {
		r := int(rating.Int64)
		rs.Rating = &r
	}
	rs.TerminationReason = reason.String
	rs.ActivityDate = activityDay.String

	return &rs, nil
}

// sessionValues returns the mutable column values in sessionColumns order,
// excluding id, version, created_at.
func sessionValues(rs *domain.ReadingSession) ([]any, error) {
	progressJSON, err := encodeJSON(rs.Progress)
	if err != nil {
		return nil, err
	}
	visitedJSON, err := encodeJSON(rs.VisitedMajorUnits)
	if err != nil {
		return nil, err
	}
	completedJSON, err := encodeJSON(rs.CompletedMajorUnits)
	if err != nil {
		return nil, err
	}
	var extraJSON sql.NullString
	if len(rs.Extra) > 0 {
		encoded, err := encodeJSON(rs.Extra)
		if err != nil {
			return nil, err
		}
		extraJSON = nullString(encoded)
	}

	var endMajor, endMinor sql.NullInt64
	if rs.EndPosition != nil {
		endMajor = sql.NullInt64{Int64: int64(rs.EndPosition.Major), Valid: true}
		endMinor = sql.NullInt64{Int64: int64(rs.EndPosition.Minor), Valid: true}
	}
	var rating sql.NullInt64
	if rs.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*rs.Rating), Valid: true}
	}

	return []any{
		rs.UserID, string(rs.Status), formatTime(rs.StartTime), nullTimeString(rs.EndTime),
		rs.DurationMs, rs.ActiveReadingMs,
		rs.StartPosition.Major, rs.StartPosition.Minor,
		rs.CurrentPosition.Major, rs.CurrentPosition.Minor,
		endMajor, endMinor,
		progressJSON, rs.TotalUnitsRead, visitedJSON, completedJSON,
		nullString(string(rs.GoalType)), rs.GoalTarget, rs.GoalProgress, boolToInt(rs.GoalAchieved),
		nullFloat(rs.AverageUnitTimeMs), nullFloat(rs.ReadingRate), rs.PointsEarned,
		nullString(rs.Notes), nullString(rs.Reflection), rating,
		nullString(rs.TerminationReason), nullString(rs.ActivityDate), extraJSON,
		formatTime(rs.UpdatedAt),
	}, nil
}

// InsertSession stores a new session at version 1.
// Returns store.ErrAlreadyExists if the session ID already exists.
func (s *Store) InsertSession(ctx context.Context, rs *domain.ReadingSession) error {
	values, err := sessionValues(rs)
	if err != nil {
		return err
	}
	args := append([]any{rs.ID}, values...)
	args = append(args, 1, formatTime(rs.CreatedAt))

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reading_sessions (
			id, user_id, status, start_time, end_time, duration_ms, active_reading_ms,
			start_major, start_minor, current_major, current_minor, end_major, end_minor,
			progress_json, total_units_read, visited_json, completed_json,
			goal_type, goal_target, goal_progress, goal_achieved,
			average_unit_time_ms, reading_rate, points_earned,
			notes, reflection, rating, termination_reason, activity_date, extra_json,
			updated_at, version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert session: %w", err)
	}
	rs.Version = 1
	return nil
}

// GetSession returns the session with the given ID.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.ReadingSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM reading_sessions WHERE id = ?`, id)
	rs, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return rs, nil
}

// FindSessions returns sessions matching filter, newest start first.
func (s *Store) FindSessions(ctx context.Context, filter store.SessionFilter) ([]*domain.ReadingSession, error) {
	return findSessions(ctx, s.db, filter)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func findSessions(ctx context.Context, q queryer, filter store.SessionFilter) ([]*domain.ReadingSession, error) {
	where, args := sessionWhere(filter)
	query := `SELECT ` + sessionColumns + ` FROM reading_sessions` + where +
		` ORDER BY start_time DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.ReadingSession
	for rows.Next() {
		rs, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, rs)
	}
	return sessions, rows.Err()
}

func sessionWhere(filter store.SessionFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		var clause string
		clause, args = inClause("status", filter.Statuses, args)
		clauses = append(clauses, clause)
	}
	if !filter.UpdatedBefore.IsZero() {
		clauses = append(clauses, "updated_at < ?")
		args = append(args, formatTime(filter.UpdatedBefore))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpdateSession writes the full session if its version is unchanged in storage.
// Returns store.ErrNotFound for unknown IDs and store.ErrVersionConflict when
// another writer got there first.
func (s *Store) UpdateSession(ctx context.Context, rs *domain.ReadingSession) error {
	err := updateSession(ctx, s.db, rs)
	if errors.Is(err, store.ErrVersionConflict) {
		if _, getErr := s.GetSession(ctx, rs.ID); errors.Is(getErr, store.ErrNotFound) {
			return store.ErrNotFound
		}
	}
	return err
}

// CompleteSession stores a completed session and folds inc into the owner's
// statistics in one transaction.
func (s *Store) CompleteSession(ctx context.Context, rs *domain.ReadingSession, inc domain.StatsIncrement, now time.Time) error {
	version := rs.Version
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateSession(ctx, tx, rs); err != nil {
			return err
		}
		return incrementUserStats(ctx, tx, rs.UserID, inc, now)
	})
	if err == nil {
		return nil
	}
	rs.Version = version
	if errors.Is(err, store.ErrVersionConflict) {
		if _, getErr := s.GetSession(ctx, rs.ID); errors.Is(getErr, store.ErrNotFound) {
			return store.ErrNotFound
		}
	}
	return err
}

func updateSession(ctx context.Context, e execer, rs *domain.ReadingSession) error {
	values, err := sessionValues(rs)
	if err != nil {
		return err
	}
	args := append(values, rs.ID, rs.Version)

	result, err := e.ExecContext(ctx, `
		UPDATE reading_sessions SET
			user_id = ?, status = ?, start_time = ?, end_time = ?, duration_ms = ?, active_reading_ms = ?,
			start_major = ?, start_minor = ?, current_major = ?, current_minor = ?, end_major = ?, end_minor = ?,
			progress_json = ?, total_units_read = ?, visited_json = ?, completed_json = ?,
			goal_type = ?, goal_target = ?, goal_progress = ?, goal_achieved = ?,
			average_unit_time_ms = ?, reading_rate = ?, points_earned = ?,
			notes = ?, reflection = ?, rating = ?, termination_reason = ?, activity_date = ?, extra_json = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return store.ErrVersionConflict
	}
	rs.Version++
	return nil
}

// AbandonSessions terminates every open session matching filter.
func (s *Store) AbandonSessions(ctx context.Context, filter store.SessionFilter, reason string, now time.Time) ([]*domain.ReadingSession, error) {
	filter.Statuses = []domain.SessionStatus{domain.SessionActive, domain.SessionPaused}

	var abandoned []*domain.ReadingSession
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		open, err := findSessions(ctx, tx, filter)
		if err != nil {
			return err
		}
		for _, rs := range open {
			rs.Abandon(reason, now)
			if err := updateSession(ctx, tx, rs); err != nil {
				return err
			}
		}
		abandoned = open
		return nil
	})
	if err != nil {
		return nil, err
	}
	return abandoned, nil
}

// AggregateByDay groups completed sessions by activity date, newest first.
func (s *Store) AggregateByDay(ctx context.Context, q store.DayAggregateQuery) ([]store.DayAggregate, error) {
	clauses := []string{"status = 'completed'", "activity_date IS NOT NULL"}
	var args []any
	if q.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, q.UserID)
	}
	if q.From != "" {
		clauses = append(clauses, "activity_date >= ?")
		args = append(args, q.From)
	}
	if q.To != "" {
		clauses = append(clauses, "activity_date < ?")
		args = append(args, q.To)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT activity_date, COUNT(*), COALESCE(SUM(active_reading_ms), 0), COALESCE(SUM(total_units_read), 0)
		FROM reading_sessions
		WHERE `+strings.Join(clauses, " AND ")+`
		GROUP BY activity_date
		ORDER BY activity_date DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate sessions: %w", err)
	}
	defer rows.Close()

	var out []store.DayAggregate
	for rows.Next() {
		var agg store.DayAggregate
		if err := rows.Scan(&agg.Date, &agg.Sessions, &agg.ReadingMs, &agg.UnitsRead); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}
