package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string                 { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool           { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string           { return "leads" }
func (c testSchedulerConfig) GetAsynqConcurrency() int            { return 2 }
func (c testSchedulerConfig) GetScoreRefreshCron() string         { return "0 * * * *" }
func (c testSchedulerConfig) GetAutoAssignCron() string           { return "" }
func (c testSchedulerConfig) GetScheduledOrganizations() []string { return nil }
func (c testSchedulerConfig) GetAutoAssignStrategy() string       { return "workload" }
func (c testSchedulerConfig) GetAutoAssignLimit() int             { return 50 }

func TestAutoAssignPayloadRoundTrip(t *testing.T) {
	orgID := uuid.New()
	task, err := NewAutoAssignTask(AutoAssignPayload{
		OrganizationID: orgID.String(),
		Strategy:       "territory",
		Limit:          25,
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if task.Type() != TaskAutoAssign {
		t.Errorf("task type = %s, want %s", task.Type(), TaskAutoAssign)
	}

	payload, err := ParseAutoAssignPayload(task)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.OrganizationID != orgID.String() || payload.Strategy != "territory" || payload.Limit != 25 {
		t.Errorf("payload round-trip mismatch: %+v", payload)
	}
}

func TestClientEnqueuesToConfiguredQueue(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(testSchedulerConfig{redisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Close()

	orgID := uuid.New()
	if err := client.EnqueueScoreRefresh(context.Background(), orgID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()

	pending, err := inspector.ListPendingTasks("leads")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(pending))
	}
	if pending[0].Type != TaskScoreRefresh {
		t.Errorf("task type = %s, want %s", pending[0].Type, TaskScoreRefresh)
	}

	payload, err := ParseScoreRefreshPayload(asynq.NewTask(pending[0].Type, pending[0].Payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if payload.OrganizationID != orgID.String() {
		t.Errorf("payload org = %s, want %s", payload.OrganizationID, orgID)
	}
}

func TestClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Error("missing redis url must be rejected")
	}
}
