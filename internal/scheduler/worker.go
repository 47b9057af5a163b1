package scheduler

import (
	"context"
	"fmt"

	assignmentservice "leadengine_backend/internal/assignment/service"
	scoringservice "leadengine_backend/internal/scoring/service"
	"leadengine_backend/platform/config"
	"leadengine_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	scoring    *scoringservice.Service
	assignment *assignmentservice.Service
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, scoring *scoringservice.Service, assignment *assignmentservice.Service, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		scoring:    scoring,
		assignment: assignment,
		log:        log,
	}

	mux.HandleFunc(TaskScoreRefresh, w.handleScoreRefresh)
	mux.HandleFunc(TaskAutoAssign, w.handleAutoAssign)

	return w, nil
}

func (w *Worker) handleScoreRefresh(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScoreRefreshPayload(task)
	if err != nil {
		return err
	}

	orgID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		return err
	}

	_, err = w.scoring.RefreshAllScores(ctx, orgID)
	return err
}

func (w *Worker) handleAutoAssign(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAutoAssignPayload(task)
	if err != nil {
		return err
	}

	orgID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		return err
	}

	result, err := w.assignment.BulkAssign(ctx, orgID, payload.Strategy, payload.Limit)
	if err != nil {
		return err
	}
	w.log.Info("scheduled bulk assignment finished",
		"organization_id", orgID,
		"strategy", payload.Strategy,
		"assignments_made", result.AssignmentsMade,
		"skipped", result.Skipped,
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
