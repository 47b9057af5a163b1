package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskScoreRefresh = "scoring.refresh"

const TaskAutoAssign = "automation.assign"

type ScoreRefreshPayload struct {
	OrganizationID string `json:"organizationId"`
}

type AutoAssignPayload struct {
	OrganizationID string `json:"organizationId"`
	Strategy       string `json:"strategy"`
	Limit          int    `json:"limit"`
}

func NewScoreRefreshTask(payload ScoreRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScoreRefresh, data), nil
}

func ParseScoreRefreshPayload(task *asynq.Task) (ScoreRefreshPayload, error) {
	var payload ScoreRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScoreRefreshPayload{}, err
	}
	return payload, nil
}

func NewAutoAssignTask(payload AutoAssignPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAutoAssign, data), nil
}

func ParseAutoAssignPayload(task *asynq.Task) (AutoAssignPayload, error) {
	var payload AutoAssignPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AutoAssignPayload{}, err
	}
	return payload, nil
}
