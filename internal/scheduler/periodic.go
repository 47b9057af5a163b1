package scheduler

import (
	"context"
	"fmt"

	"leadengine_backend/platform/config"
	"leadengine_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Periodic registers cron entries that sweep every configured organization:
// a score refresh and, when enabled, an automatic assignment run.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	scheduler := asynq.NewScheduler(opt, nil)
	p := &Periodic{scheduler: scheduler, log: log}

	for _, raw := range cfg.GetScheduledOrganizations() {
		orgID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduled organization id %q: %w", raw, err)
		}

		if cron := cfg.GetScoreRefreshCron(); cron != "" {
			task, err := NewScoreRefreshTask(ScoreRefreshPayload{OrganizationID: orgID.String()})
			if err != nil {
				return nil, err
			}
			if _, err := scheduler.Register(cron, task, asynq.Queue(queue)); err != nil {
				return nil, err
			}
		}

		if cron := cfg.GetAutoAssignCron(); cron != "" {
			task, err := NewAutoAssignTask(AutoAssignPayload{
				OrganizationID: orgID.String(),
				Strategy:       cfg.GetAutoAssignStrategy(),
				Limit:          cfg.GetAutoAssignLimit(),
			})
			if err != nil {
				return nil, err
			}
			if _, err := scheduler.Register(cron, task, asynq.Queue(queue)); err != nil {
				return nil, err
			}
		}
	}

	return p, nil
}

// Run blocks until the context is cancelled.
func (p *Periodic) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()
	return p.scheduler.Run()
}
