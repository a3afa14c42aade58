package api

import (
	domainerrors "github.com/listenupapp/readtrack-server/internal/errors"
	"github.com/listenupapp/readtrack-server/internal/ratelimit"
)

// Defaults for progress updates when the config leaves them unset.
const (
	defaultProgressRPS   = 5
	defaultProgressBurst = 20
)

func newProgressLimiter(rps float64, burst int) *ratelimit.KeyedRateLimiter {
	if rps <= 0 {
		rps = defaultProgressRPS
	}
	if burst <= 0 {
		burst = defaultProgressBurst
	}
	return ratelimit.New(rps, burst)
}

// checkProgressRate limits progress updates per user. Clients report progress
// continuously, so this is the one endpoint that needs it.
func (s *Server) checkProgressRate(userID string) error {
	if s.progressLimiter.Allow(userID) {
		return nil
	}
	s.logger.Warn("progress rate limit exceeded", "user_id", userID)
	return domainerrors.RateLimited("Too many progress updates. Please slow down.")
}
