// Package tasks moves call resolution and stale sweeps onto an asynq queue
// so they survive an api restart and run in the worker process.
package tasks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	TypeRetrieve = "screening.retrieve"
	TypeReap     = "screening.reap"
)

type RetrievePayload struct {
	ScreeningCallID string `json:"screening_call_id"`
}

func NewRetrieveTask(screeningCallID string) (*asynq.Task, error) {
	if strings.TrimSpace(screeningCallID) == "" {
		return nil, fmt.Errorf("tasks: screening call id is required")
	}
	data, err := json.Marshal(RetrievePayload{ScreeningCallID: screeningCallID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRetrieve, data), nil
}

func ParseRetrievePayload(task *asynq.Task) (RetrievePayload, error) {
	var p RetrievePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return RetrievePayload{}, err
	}
	if p.ScreeningCallID == "" {
		return RetrievePayload{}, fmt.Errorf("tasks: %s payload missing screening_call_id", TypeRetrieve)
	}
	return p, nil
}

func NewReapTask() *asynq.Task {
	return asynq.NewTask(TypeReap, nil)
}

// retrieveTaskID dedupes enqueues for one call while a task is pending.
func retrieveTaskID(screeningCallID string) string {
	return TypeRetrieve + ":" + screeningCallID
}
