package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/store"
)

func newGoal(id, userID string, typ domain.GoalType, status domain.GoalStatus) *domain.Goal {
	return &domain.Goal{
		ID:          id,
		UserID:      userID,
		Type:        typ,
		Period:      domain.PeriodDaily,
		Status:      status,
		TargetValue: 10,
		StartDate:   base,
		CreatedAt:   base,
		UpdatedAt:   base,
	}
}

func TestGoals_InsertGetUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g := newGoal("goal-1", "u1", domain.GoalDailyUnits, domain.GoalActive)
	deadline := base.AddDate(0, 1, 0)
	g.Deadline = &deadline
	g.IsRecurring = true
	require.NoError(t, s.InsertGoal(ctx, g))
	assert.ErrorIs(t, s.InsertGoal(ctx, g), store.ErrAlreadyExists)

	got, err := s.GetGoal(ctx, "goal-1")
	require.NoError(t, err)
	assert.Equal(t, domain.GoalDailyUnits, got.Type)
	assert.True(t, got.IsRecurring)
	require.NotNil(t, got.Deadline)
	assert.True(t, deadline.Equal(*got.Deadline))
	assert.Empty(t, got.ProgressHistory)

	got.AddProgress(4, base.Add(time.Hour), "s1")
	got.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.UpdateGoal(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	reloaded, err := s.GetGoal(ctx, "goal-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), reloaded.CurrentProgress)
	require.Len(t, reloaded.ProgressHistory, 1)
	assert.Equal(t, "s1", reloaded.ProgressHistory[0].SourceSessionID)

	stale := *g // version 1
	assert.ErrorIs(t, s.UpdateGoal(ctx, &stale), store.ErrVersionConflict)

	_, err = s.GetGoal(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGoals_FindAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertGoal(ctx, newGoal("g1", "u1", domain.GoalDailyUnits, domain.GoalActive)))
	require.NoError(t, s.InsertGoal(ctx, newGoal("g2", "u1", domain.GoalDailyTime, domain.GoalActive)))
	require.NoError(t, s.InsertGoal(ctx, newGoal("g3", "u1", domain.GoalDailyUnits, domain.GoalCompleted)))
	require.NoError(t, s.InsertGoal(ctx, newGoal("g4", "u2", domain.GoalDailyUnits, domain.GoalActive)))

	active, err := s.FindGoals(ctx, store.GoalFilter{UserID: "u1", Statuses: []domain.GoalStatus{domain.GoalActive}})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	units, err := s.FindGoals(ctx, store.GoalFilter{UserID: "u1", Types: []domain.GoalType{domain.GoalDailyUnits}})
	require.NoError(t, err)
	assert.Len(t, units, 2)

	n, err := s.CountGoals(ctx, store.GoalFilter{UserID: "u1", Statuses: []domain.GoalStatus{domain.GoalCompleted}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
