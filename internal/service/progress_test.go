package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/errors"
)

func TestProgressService_GetOverview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.readOneUnit(t, "u1", "s1", 5000)
	_, err := h.progress.CompleteSession(ctx, "u1", "s1", domain.CompletionFields{})
	require.NoError(t, err)
	h.start(t, "u1", "s2")

	_, err = h.progress.AddBookmark(ctx, "u1", domain.Position{Major: 3, Minor: 16}, "")
	require.NoError(t, err)
	_, err = h.progress.CreateGoal(ctx, "u1", CreateGoalRequest{Type: domain.GoalDailyUnits, TargetValue: 10})
	require.NoError(t, err)
	h.insertGoal(t, &domain.Goal{ID: "done", UserID: "u1", Type: domain.GoalDailyUnits, TargetValue: 1, Status: domain.GoalCompleted})

	overview, err := h.progress.GetOverview(ctx, "u1")
	require.NoError(t, err)

	require.NotNil(t, overview.ActiveSession)
	assert.Equal(t, "s2", overview.ActiveSession.ID)
	require.Len(t, overview.RecentSessions, 2)
	assert.Equal(t, "s2", overview.RecentSessions[0].ID)
	assert.Equal(t, int64(1), overview.BookmarkCount)
	assert.Equal(t, int64(1), overview.ActiveGoalCount)
	assert.Equal(t, int64(1), overview.CompletedGoalCount)
	assert.Equal(t, "2026-03-02", overview.Today.Date)
	assert.Equal(t, int64(2), overview.Today.ActivityCount)
	require.NotNil(t, overview.Stats)
	assert.Equal(t, int64(1), overview.Stats.TotalSessions)
}

func TestProgressService_GetOverviewNewUser(t *testing.T) {
	h := newHarness(t)

	overview, err := h.progress.GetOverview(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, overview.ActiveSession)
	assert.Empty(t, overview.RecentSessions)
	require.NotNil(t, overview.Stats)
	assert.Equal(t, int64(1), overview.Stats.Level)
}

func TestProgressService_GetStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Saturday before, then Monday twice.
	days := []time.Time{monday.AddDate(0, 0, -2), monday, monday.Add(2 * time.Hour)}
	for i, day := range days {
		h.clock.Set(day)
		id := []string{"sat", "mon-1", "mon-2"}[i]
		h.readOneUnit(t, "u1", id, 30_000)
		_, err := h.progress.CompleteSession(ctx, "u1", id, domain.CompletionFields{})
		require.NoError(t, err)
	}

	week, err := h.progress.GetStats(ctx, "u1", domain.StatsPeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, int64(2), week.Sessions)
	assert.Equal(t, int64(2), week.TotalUnitsRead)
	assert.Equal(t, int64(60_000), week.TotalReadingMs)
	assert.Equal(t, int64(1), week.ActiveDays)

	all, err := h.progress.GetStats(ctx, "u1", domain.StatsPeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Sessions)
	assert.Equal(t, int64(2), all.ActiveDays)
	require.Len(t, all.Daily, 2)
	assert.Equal(t, "2026-02-28", all.Daily[0].Date, "oldest day first")

	_, err = h.progress.GetStats(ctx, "u1", "decade")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestProgressService_GetStreak(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.readOneUnit(t, "u1", "s1", 5000)
	_, err := h.progress.CompleteSession(ctx, "u1", "s1", domain.CompletionFields{})
	require.NoError(t, err)

	resp, err := h.progress.GetStreak(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.CurrentStreak)
	assert.Equal(t, 1, resp.LongestStreak)
	assert.Len(t, resp.RecentActivity, 1)
	assert.Len(t, resp.Calendar, streakCalendarDays)
}

func TestProgressService_CreateGoal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	goal, err := h.progress.CreateGoal(ctx, "u1", CreateGoalRequest{
		Title:       "A chapter a week",
		Type:        domain.GoalWeeklyUnits,
		TargetValue: 25,
		IsRecurring: true,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(goal.ID, "goal-"))
	assert.Equal(t, domain.PeriodWeekly, goal.Period)
	assert.Equal(t, domain.GoalActive, goal.Status)
	assert.True(t, goal.IsRecurring)
	assert.True(t, goal.StartDate.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)), "weeks start on Monday")

	stored, err := h.store.GetGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, "A chapter a week", stored.Title)
}

func TestProgressService_CreateGoalOneTimeWithDeadline(t *testing.T) {
	h := newHarness(t)

	goal, err := h.progress.CreateGoal(context.Background(), "u1", CreateGoalRequest{
		Type:        domain.GoalCompleteMajorUnit,
		TargetValue: 50,
		IsRecurring: true,
		Deadline:    "2026-06-01",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PeriodOneTime, goal.Period)
	assert.False(t, goal.IsRecurring, "one-time goals never recur")
	require.NotNil(t, goal.Deadline)
}

func TestProgressService_CreateGoalValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   CreateGoalRequest
		field string
	}{
		{name: "missing type", req: CreateGoalRequest{TargetValue: 1}, field: "type"},
		{name: "unknown type", req: CreateGoalRequest{Type: "pages", TargetValue: 1}, field: "type"},
		{name: "zero target", req: CreateGoalRequest{Type: domain.GoalDailyUnits}, field: "target_value"},
		{name: "bad period", req: CreateGoalRequest{Type: domain.GoalDailyUnits, TargetValue: 1, Period: "hourly"}, field: "period"},
		{name: "bad deadline", req: CreateGoalRequest{Type: domain.GoalDailyUnits, TargetValue: 1, Deadline: "soon"}, field: "deadline"},
		{name: "deadline in the past", req: CreateGoalRequest{Type: domain.GoalStreakDays, TargetValue: 1, Deadline: "2026-01-01"}, field: "deadline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.progress.CreateGoal(ctx, "u1", tt.req)
			require.Error(t, err)

			var domainErr *errors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, errors.CodeValidation, domainErr.Code)
			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.field)
		})
	}
}

func TestProgressService_ListAndCancelGoals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	goal, err := h.progress.CreateGoal(ctx, "u1", CreateGoalRequest{Type: domain.GoalDailyTime, TargetValue: 600_000})
	require.NoError(t, err)

	_, err = h.progress.CancelGoal(ctx, "u2", goal.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "foreign goals look missing")

	cancelled, err := h.progress.CancelGoal(ctx, "u1", goal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GoalCancelled, cancelled.Status)

	_, err = h.progress.CancelGoal(ctx, "u1", goal.ID)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))

	active, err := h.progress.ListGoals(ctx, "u1", domain.GoalActive)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := h.progress.ListGoals(ctx, "u1", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProgressService_AddBookmark(t *testing.T) {
	h := newHarness(t, withBounds(domain.PositionBounds{MaxMajor: 150, MaxMinor: 176}))
	ctx := context.Background()

	b, err := h.progress.AddBookmark(ctx, "u1", domain.Position{Major: 119, Minor: 105}, "lamp")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(b.ID, "bm-"))

	_, err = h.progress.AddBookmark(ctx, "u1", domain.Position{Major: 151, Minor: 1}, "")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
