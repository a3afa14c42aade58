package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/store"
)

const goalColumns = `id, user_id, title, type, period, status, target_value, current_progress,
	start_date, end_date, deadline, is_recurring, current_streak, best_streak,
	history_json, completed_at, version, created_at, updated_at`

func scanGoal(scanner interface{ Scan(dest ...any) error }) (*domain.Goal, error) {
	var g domain.Goal
	var (
		title                        sql.NullString
		goalType, period, status     string
		startDate                    string
		endDate, deadline, completed sql.NullString
		isRecurring                  int
		historyJSON                  sql.NullString
		createdAt, updatedAt         string
	)

	err := scanner.Scan(
		&g.ID, &g.UserID, &title, &goalType, &period, &status, &g.TargetValue, &g.CurrentProgress,
		&startDate, &endDate, &deadline, &isRecurring, &g.CurrentStreak, &g.BestStreak,
		&historyJSON, &completed, &g.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.Title = title.String
	g.Type = domain.GoalType(goalType)
	g.Period = domain.GoalPeriod(period)
	g.Status = domain.GoalStatus(status)
	g.IsRecurring = isRecurring != 0

	if g.StartDate, err = parseTime(startDate); err != nil {
		return nil, err
	}
	if g.EndDate, err = parseNullableTime(endDate); err != nil {
		return nil, err
	}
	if g.Deadline, err = parseNullableTime(deadline); err != nil {
		return nil, err
	}
	if g.CompletedAt, err = parseNullableTime(completed); err != nil {
		return nil, err
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	g.ProgressHistory = []domain.GoalProgressEntry{}
	if err := decodeJSON(historyJSON, &g.ProgressHistory); err != nil {
		return nil, err
	}
	return &g, nil
}

// InsertGoal stores a new goal at version 1.
func (s *Store) InsertGoal(ctx context.Context, g *domain.Goal) error {
	history, err := encodeJSON(nonNilHistory(g.ProgressHistory))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO goals (
			id, user_id, title, type, period, status, target_value, current_progress,
			start_date, end_date, deadline, is_recurring, current_streak, best_streak,
			history_json, completed_at, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		g.ID, g.UserID, nullString(g.Title), string(g.Type), string(g.Period), string(g.Status),
		g.TargetValue, g.CurrentProgress,
		formatTime(g.StartDate), nullTimeString(g.EndDate), nullTimeString(g.Deadline),
		boolToInt(g.IsRecurring), g.CurrentStreak, g.BestStreak,
		history, nullTimeString(g.CompletedAt), formatTime(g.CreatedAt), formatTime(g.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert goal: %w", err)
	}
	g.Version = 1
	return nil
}

// GetGoal returns the goal with the given ID.
func (s *Store) GetGoal(ctx context.Context, id string) (*domain.Goal, error) {
	g, err := scanGoal(s.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

// FindGoals returns goals matching filter, oldest first.
func (s *Store) FindGoals(ctx context.Context, filter store.GoalFilter) ([]*domain.Goal, error) {
	where, args := goalWhere(filter)
	rows, err := s.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals`+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("find goals: %w", err)
	}
	defer rows.Close()

	var goals []*domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// CountGoals counts goals matching filter.
func (s *Store) CountGoals(ctx context.Context, filter store.GoalFilter) (int64, error) {
	where, args := goalWhere(filter)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM goals`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count goals: %w", err)
	}
	return n, nil
}

func goalWhere(filter store.GoalFilter) (string, []any) {
	var (
		clauses []string
		args    []any
		clause  string
	)
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		clause, args = inClause("status", filter.Statuses, args)
		clauses = append(clauses, clause)
	}
	if len(filter.Types) > 0 {
		clause, args = inClause("type", filter.Types, args)
		clauses = append(clauses, clause)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// UpdateGoal writes the goal if its version is unchanged in storage.
func (s *Store) UpdateGoal(ctx context.Context, g *domain.Goal) error {
	history, err := encodeJSON(nonNilHistory(g.ProgressHistory))
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE goals SET
			title = ?, status = ?, target_value = ?, current_progress = ?,
			start_date = ?, end_date = ?, deadline = ?, is_recurring = ?,
			current_streak = ?, best_streak = ?, history_json = ?, completed_at = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		nullString(g.Title), string(g.Status), g.TargetValue, g.CurrentProgress,
		formatTime(g.StartDate), nullTimeString(g.EndDate), nullTimeString(g.Deadline), boolToInt(g.IsRecurring),
		g.CurrentStreak, g.BestStreak, history, nullTimeString(g.CompletedAt),
		formatTime(g.UpdatedAt), g.ID, g.Version,
	)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	if n == 0 {
		if _, getErr := s.GetGoal(ctx, g.ID); errors.Is(getErr, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return store.ErrVersionConflict
	}
	g.Version++
	return nil
}

func nonNilHistory(h []domain.GoalProgressEntry) []domain.GoalProgressEntry {
	if h == nil {
		return []domain.GoalProgressEntry{}
	}
	return h
}
