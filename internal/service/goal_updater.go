package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/listenupapp/readtrack-server/internal/clock"
	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/metrics"
	"github.com/listenupapp/readtrack-server/internal/store"
)

// GoalUpdateResult reports what a completed session did to the user's goals.
type GoalUpdateResult struct {
	Updated  []domain.GoalOutcome
	Failures []domain.GoalFailure
}

// Completed counts goal periods completed by this update.
func (r GoalUpdateResult) Completed() int {
	n := 0
	for _, o := range r.Updated {
		if o.Completed {
			n++
		}
	}
	return n
}

// GoalUpdater folds completed sessions into the user's active goals. Each
// goal is written on its own; one failed write never blocks the others.
type GoalUpdater struct {
	goals   store.GoalRepository
	loc     *time.Location
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewGoalUpdater creates a goal updater. Goal periods roll over at midnight
// in loc.
func NewGoalUpdater(goals store.GoalRepository, loc *time.Location, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *GoalUpdater {
	if loc == nil {
		loc = time.UTC
	}
	return &GoalUpdater{goals: goals, loc: loc, clock: clk, metrics: m, logger: logger}
}

// Apply credits session to every active goal of its owner whose window
// contains the session's end time. currentStreak is the user's streak after
// the session was folded into statistics.
//
// The returned error is set only when the goals could not be listed at all;
// per-goal write failures are reported in the result.
func (u *GoalUpdater) Apply(ctx context.Context, session *domain.ReadingSession, currentStreak int) (GoalUpdateResult, error) {
	var result GoalUpdateResult
	if session.EndTime == nil {
		return result, nil
	}
	endTime := *session.EndTime

	goals, err := u.goals.FindGoals(ctx, store.GoalFilter{
		UserID:   session.UserID,
		Statuses: []domain.GoalStatus{domain.GoalActive},
	})
	if err != nil {
		return result, storeError(err, "find goals")
	}

	now := u.clock.Now()
	for _, g := range goals {
		g.In(u.loc)
		rolled := g.AdvanceTo(endTime)

		contribution, ok := contributionFor(g, session, currentStreak)
		if !ok || !g.Contains(endTime) {
			contribution = 0
		}
		if contribution == 0 && !rolled {
			continue
		}

		completed := false
		if contribution > 0 {
			g.AddProgress(contribution, endTime, session.ID)
			if g.Reached() {
				g.MarkCompleted(now)
				completed = true
			}
		}
		g.UpdatedAt = now

		outcome := domain.GoalOutcome{
			GoalID:          g.ID,
			Type:            g.Type,
			Contribution:    contribution,
			CurrentProgress: g.CurrentProgress,
			TargetValue:     g.TargetValue,
			Status:          g.Status,
			Completed:       completed,
		}

		if err := u.goals.UpdateGoal(ctx, g); err != nil {
			u.metrics.GoalUpdateFailed()
			u.logger.Warn("failed to update goal",
				"goal_id", g.ID,
				"user_id", g.UserID,
				"session_id", session.ID,
				"error", err)
			result.Failures = append(result.Failures, domain.GoalFailure{
				GoalID: g.ID,
				Error:  storeError(err, "update goal").Error(),
			})
			continue
		}

		if completed {
			u.metrics.GoalCompleted(string(g.Type))
			u.logger.Info("goal completed",
				"goal_id", g.ID,
				"user_id", g.UserID,
				"type", g.Type,
				"current_streak", g.CurrentStreak)
		}
		if contribution > 0 {
			result.Updated = append(result.Updated, outcome)
		}
	}

	return result, nil
}

// contributionFor maps a session onto a goal's category. The second return
// is false for goal types no session quantity feeds.
func contributionFor(g *domain.Goal, session *domain.ReadingSession, currentStreak int) (int64, bool) {
	switch g.Type.Category() {
	case domain.CategoryTime:
		return session.ActiveReadingMs, true
	case domain.CategoryUnits:
		return session.TotalUnitsRead, true
	case domain.CategoryMajorUnits:
		return int64(len(session.CompletedMajorUnits)), true
	case domain.CategoryStreak:
		return int64(currentStreak), true
	default:
		return 0, false
	}
}
