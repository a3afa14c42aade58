package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/store"
)

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newSession(id, userID string, start time.Time) *domain.ReadingSession {
	return domain.NewReadingSession(id, userID, domain.Position{Major: 1, Minor: 1}, domain.SessionOptions{}, start)
}

func TestInsertAndGetSession_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rs := domain.NewReadingSession("s1", "u1", domain.Position{Major: 3, Minor: 7}, domain.SessionOptions{
		GoalType:   domain.GoalDailyUnits,
		GoalTarget: 10,
		Extra:      map[string]string{"translation": "kjv"},
	}, base)
	rs.ApplyProgress(domain.ProgressDelta{
		UnitsRead:           []domain.UnitRead{{Position: domain.Position{Major: 3, Minor: 7}, TimeSpentMs: 4000}},
		CompletedMajorUnits: []int{3},
		AdditionalTimeMs:    4000,
	}, base.Add(time.Minute))
	rating := 5
	rs.Complete(domain.CompletionFields{
		EndPosition: &domain.Position{Major: 4, Minor: 1},
		Notes:       "good",
		Rating:      &rating,
	}, base.Add(2*time.Minute), time.UTC)

	require.NoError(t, s.InsertSession(ctx, rs))
	assert.Equal(t, int64(1), rs.Version)

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, domain.SessionCompleted, got.Status)
	assert.Equal(t, rs.StartTime, got.StartTime)
	require.NotNil(t, got.EndTime)
	assert.True(t, rs.EndTime.Equal(*got.EndTime))
	assert.Equal(t, rs.Progress[0].Position, got.Progress[0].Position)
	assert.Equal(t, []int{3}, got.VisitedMajorUnits)
	assert.Equal(t, []int{3}, got.CompletedMajorUnits)
	assert.Equal(t, &domain.Position{Major: 4, Minor: 1}, got.EndPosition)
	require.NotNil(t, got.AverageUnitTimeMs)
	assert.InDelta(t, *rs.AverageUnitTimeMs, *got.AverageUnitTimeMs, 0.001)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 5, *got.Rating)
	assert.Equal(t, "kjv", got.Extra["translation"])
	assert.Equal(t, "2026-03-02", got.ActivityDate)
	assert.Equal(t, domain.GoalDailyUnits, got.GoalType)
}

func TestInsertSession_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertSession(ctx, newSession("s1", "u1", base)))
	err := s.InsertSession(ctx, newSession("s1", "u2", base))
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestGetSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateSession_CompareAndSwap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertSession(ctx, newSession("s1", "u1", base)))

	first, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	second, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)

	first.ApplyProgress(domain.ProgressDelta{AdditionalTimeMs: 1000}, base.Add(time.Second))
	require.NoError(t, s.UpdateSession(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.ApplyProgress(domain.ProgressDelta{AdditionalTimeMs: 5000}, base.Add(time.Second))
	err = s.UpdateSession(ctx, second)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.ActiveReadingMs)

	ghost := newSession("ghost", "u1", base)
	assert.ErrorIs(t, s.UpdateSession(ctx, ghost), store.ErrNotFound)
}

func TestFindSessions_OrderingAndFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertSession(ctx, newSession("a", "u1", base)))
	require.NoError(t, s.InsertSession(ctx, newSession("c", "u1", base.Add(time.Hour))))
	require.NoError(t, s.InsertSession(ctx, newSession("b", "u1", base.Add(time.Hour))))
	require.NoError(t, s.InsertSession(ctx, newSession("z", "u2", base.Add(2*time.Hour))))

	got, err := s.FindSessions(ctx, store.SessionFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].ID, got[1].ID, got[2].ID}, "start_time DESC, id DESC")

	limited, err := s.FindSessions(ctx, store.SessionFilter{UserID: "u1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "c", limited[0].ID)

	stale, err := s.FindSessions(ctx, store.SessionFilter{
		Statuses:      []domain.SessionStatus{domain.SessionActive},
		UpdatedBefore: base.Add(30 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "a", stale[0].ID)
}

func TestAbandonSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	paused := newSession("p", "u1", base)
	paused.Pause(base)
	require.NoError(t, s.InsertSession(ctx, newSession("a", "u1", base)))
	require.NoError(t, s.InsertSession(ctx, paused))
	require.NoError(t, s.InsertSession(ctx, newSession("other", "u2", base)))

	done := newSession("done", "u1", base)
	done.Complete(domain.CompletionFields{}, base.Add(time.Minute), time.UTC)
	require.NoError(t, s.InsertSession(ctx, done))

	now := base.Add(time.Hour)
	abandoned, err := s.AbandonSessions(ctx, store.SessionFilter{UserID: "u1"}, domain.ReasonSuperseded, now)
	require.NoError(t, err)
	assert.Len(t, abandoned, 2)

	for _, id := range []string{"a", "p"} {
		got, err := s.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionAbandoned, got.Status)
		assert.Equal(t, domain.ReasonSuperseded, got.TerminationReason)
		require.NotNil(t, got.EndTime)
		assert.True(t, now.Equal(*got.EndTime))
		assert.Equal(t, int64(2), got.Version)
	}

	untouched, err := s.GetSession(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, untouched.Status)

	completed, err := s.GetSession(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, completed.Status)
}

func TestAggregateByDay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	complete := func(id string, day int, ms int64, units int) {
		start := base.AddDate(0, 0, day)
		rs := newSession(id, "u1", start)
		var read []domain.UnitRead
		for i := range units {
			read = append(read, domain.UnitRead{Position: domain.Position{Major: 1, Minor: i + 1}})
		}
		rs.ApplyProgress(domain.ProgressDelta{UnitsRead: read, AdditionalTimeMs: ms}, start)
		rs.Complete(domain.CompletionFields{}, start.Add(time.Hour), time.UTC)
		require.NoError(t, s.InsertSession(ctx, rs))
	}

	complete("d0a", 0, 1000, 1)
	complete("d0b", 0, 2000, 2)
	complete("d1", 1, 500, 3)
	complete("d5", 5, 100, 1)
	require.NoError(t, s.InsertSession(ctx, newSession("open", "u1", base)))

	all, err := s.AggregateByDay(ctx, store.DayAggregateQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, store.DayAggregate{Date: "2026-03-07", Sessions: 1, ReadingMs: 100, UnitsRead: 1}, all[0])
	assert.Equal(t, store.DayAggregate{Date: "2026-03-02", Sessions: 2, ReadingMs: 3000, UnitsRead: 3}, all[2])

	windowed, err := s.AggregateByDay(ctx, store.DayAggregateQuery{UserID: "u1", From: "2026-03-03", To: "2026-03-07"})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "2026-03-03", windowed[0].Date)
}

func TestFindSessions_ManyUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, s.InsertSession(ctx, newSession(fmt.Sprintf("s%d", i), fmt.Sprintf("u%d", i%2), base)))
	}

	got, err := s.FindSessions(ctx, store.SessionFilter{UserID: "u0"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCompleteSession_FoldsStatsWithSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rs := newSession("s1", "u1", base)
	require.NoError(t, s.InsertSession(ctx, rs))
	rs.ApplyProgress(domain.ProgressDelta{
		UnitsRead:        []domain.UnitRead{{Position: domain.Position{Major: 1, Minor: 1}, TimeSpentMs: 5000}},
		AdditionalTimeMs: 5000,
	}, base.Add(time.Minute))
	end := base.Add(2 * time.Minute)
	rs.Complete(domain.CompletionFields{}, end, time.UTC)

	inc := domain.StatsIncrement{ReadingMs: 5000, UnitsRead: 1, Sessions: 1, LastActivityAt: end}
	require.NoError(t, s.CompleteSession(ctx, rs, inc, end))
	assert.Equal(t, int64(2), rs.Version)

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, got.Status)

	stats, err := s.GetUserStats(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, int64(1), stats.TotalSessions)
	assert.Equal(t, int64(5000), stats.TotalReadingMs)
	assert.Equal(t, int64(1), stats.TotalUnitsRead)
}

func TestCompleteSession_LostRaceLeavesStatsUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rs := newSession("s1", "u1", base)
	require.NoError(t, s.InsertSession(ctx, rs))

	// Another writer bumps the version first.
	other, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	other.Pause(base.Add(time.Minute))
	require.NoError(t, s.UpdateSession(ctx, other))

	end := base.Add(2 * time.Minute)
	rs.Complete(domain.CompletionFields{}, end, time.UTC)
	err = s.CompleteSession(ctx, rs, domain.StatsIncrement{Sessions: 1, LastActivityAt: end}, end)
	assert.ErrorIs(t, err, store.ErrVersionConflict)
	assert.Equal(t, int64(1), rs.Version)

	stats, err := s.GetUserStats(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, stats)

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaused, got.Status)
}

func TestCompleteSession_Missing(t *testing.T) {
	s := newTestStore(t)
	rs := newSession("ghost", "u1", base)
	rs.Version = 1
	rs.Complete(domain.CompletionFields{}, base.Add(time.Minute), time.UTC)

	err := s.CompleteSession(context.Background(), rs, domain.StatsIncrement{Sessions: 1}, base.Add(time.Minute))
	assert.ErrorIs(t, err, store.ErrNotFound)
}
