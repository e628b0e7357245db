package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"screening-platform/internal/config"

	"github.com/hibiken/asynq"
)

// Client enqueues retrieval tasks. It satisfies session.Runner.
type Client struct {
	client *asynq.Client
	queue  string
	log    *slog.Logger
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		client: asynq.NewClient(RedisClientOpt(cfg)),
		queue:  cfg.Worker.Queue,
		log:    log,
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Dispatch enqueues resolution of an ended call. A task already pending for
// the same call is not an error.
func (c *Client) Dispatch(ctx context.Context, screeningCallID string) error {
	task, err := NewRetrieveTask(screeningCallID)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(retrieveTaskID(screeningCallID)),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.log.Info("retrieval already queued", "screening_call_id", screeningCallID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("tasks: enqueue %s: %w", TypeRetrieve, err)
	}
	c.log.Info("retrieval queued", "screening_call_id", screeningCallID, "task_id", info.ID, "queue", info.Queue)
	return nil
}

// RedisClientOpt builds the asynq connection from the shared redis settings.
func RedisClientOpt(cfg config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
	}
}
