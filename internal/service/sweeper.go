package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/listenupapp/readtrack-server/internal/errors"
)

// DefaultSweepBatchSize caps how many stale sessions one sweep abandons.
const DefaultSweepBatchSize = 100

// SweepResult summarizes one sweep.
type SweepResult struct {
	Checked   int `json:"checked"`
	Abandoned int `json:"abandoned"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Sweeper abandons sessions left open past the idle timeout, including the
// orphans a racing pair of StartSession calls can leave behind.
type Sweeper struct {
	manager   *SessionManager
	batchSize int
	logger    *slog.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(manager *SessionManager, batchSize int, logger *slog.Logger) *Sweeper {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &Sweeper{manager: manager, batchSize: batchSize, logger: logger}
}

// Sweep runs one pass. Sessions that were updated or closed between listing
// and abandoning are skipped.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	stale, err := s.manager.ListStaleSessions(ctx, s.batchSize)
	if err != nil {
		return result, err
	}
	result.Checked = len(stale)

	for _, session := range stale {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		err := s.manager.AbandonStale(ctx, session.ID)
		switch {
		case err == nil:
			result.Abandoned++
		case errors.Is(err, errors.ErrNotFound), errors.Is(err, errors.ErrInvalidState), errors.Is(err, errors.ErrConflict):
			result.Skipped++
		default:
			result.Failed++
			s.logger.Warn("failed to abandon stale session",
				"session_id", session.ID,
				"user_id", session.UserID,
				"error", err)
		}
	}

	if result.Checked > 0 {
		s.logger.Info("stale session sweep finished",
			"checked", result.Checked,
			"abandoned", result.Abandoned,
			"skipped", result.Skipped,
			"failed", result.Failed)
	}
	return result, nil
}

// SweepScheduler runs a Sweeper on a cron schedule.
type SweepScheduler struct {
	sweeper *Sweeper
	cron    *cron.Cron
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSweepScheduler parses schedule (standard cron or "@every 5m").
func NewSweepScheduler(sweeper *Sweeper, schedule string, logger *slog.Logger) (*SweepScheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &SweepScheduler{
		sweeper: sweeper,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running sweeps in the background.
func (s *SweepScheduler) Start() {
	s.cron.Start()
	s.logger.Info("stale session sweeper started", "next_run", s.cron.Entries()[0].Next)
}

// Stop cancels any sweep in progress and waits for it to return.
func (s *SweepScheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

func (s *SweepScheduler) run() {
	if _, err := s.sweeper.Sweep(s.ctx); err != nil && s.ctx.Err() == nil {
		s.logger.Error("stale session sweep failed", "error", err)
	}
}
