package scheduler

import (
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

const rateLimitSweepJob = "rate_limit_sweep"

// Sweeper evicts stale rate limit counters and reports how many were removed.
type Sweeper interface {
	Sweep() int
}

// RegisterRateLimitSweep runs limiter.Sweep on cronExpr.
func RegisterRateLimitSweep(svc *Service, limiter Sweeper, cronExpr string) (gocron.Job, error) {
	if limiter == nil {
		return nil, fmt.Errorf("rate limit sweep requires a limiter")
	}
	jobLogger := log.With().
		Str("component", "rate_limit_sweep_job").
		Str("job_name", rateLimitSweepJob).
		Logger()

	return svc.AddJob(rateLimitSweepJob, cronExpr, func() {
		removed := limiter.Sweep()
		if removed > 0 {
			jobLogger.Info().Int("removed", removed).Msg("Swept stale rate limit entries")
		}
	})
}
