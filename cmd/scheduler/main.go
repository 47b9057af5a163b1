// The scheduler binary runs the background side of the engine: the asynq
// worker that processes score refreshes and auto-assignment batches, plus
// the cron scheduler that enqueues them for configured organizations.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadengine_backend/internal/assignment"
	"leadengine_backend/internal/events"
	"leadengine_backend/internal/notification"
	"leadengine_backend/internal/scheduler"
	"leadengine_backend/internal/scoring"
	"leadengine_backend/platform/config"
	"leadengine_backend/platform/db"
	"leadengine_backend/platform/logger"
	"leadengine_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	scoringModule := scoring.NewModule(pool, eventBus, cfg, log)
	assignmentModule := assignment.NewModule(pool, eventBus, val, cfg, log)

	if cfg.GetMailEnabled() {
		notifier := notification.NewNotifier(notification.NewSMTPSender(cfg), log)
		notifier.Subscribe(eventBus)
	}

	worker, err := scheduler.NewWorker(cfg, scoringModule.Service(), assignmentModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	periodicErr := make(chan error, 1)
	go func() {
		periodicErr <- periodic.Run(ctx)
	}()

	log.Info("scheduler worker running",
		"queue", cfg.GetAsynqQueueName(),
		"score_refresh_cron", cfg.GetScoreRefreshCron(),
		"auto_assign_cron", cfg.GetAutoAssignCron(),
	)
	worker.Run(ctx)

	if err := <-periodicErr; err != nil {
		log.Error("periodic scheduler stopped", "error", err)
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
