// Package queue hands parsed uploads to the worker pool over an asynq
// (Redis-backed) transport. Delivery is at-least-once: a worker crash before
// acknowledgement makes the broker redeliver the payload, and the task
// store's transition guard keeps duplicate completions from double-applying.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/lopatinay/dokka/internal/models"
)

// TypeDistanceCompute is the asynq task type for distance computation jobs.
const TypeDistanceCompute = "distance:compute"

// ComputeQueue is the asynq queue distance jobs are routed to. The worker
// server must subscribe to it.
const ComputeQueue = "distances"

// ComputePayload is the work item handed to a worker: the task identity plus
// the already-parsed records, so workers never touch the raw upload.
type ComputePayload struct {
	TaskID      uuid.UUID                 `json:"task_id"`
	Records     []models.CoordinateRecord `json:"records"`
	ParseErrors []models.ParseError       `json:"parse_errors,omitempty"`
}

// Enqueuer is the producer-side contract of the queue adapter.
type Enqueuer interface {
	EnqueueCompute(ctx context.Context, payload ComputePayload) error
}

// Client wraps an asynq client for the submission path. Enqueue is
// fire-and-forget: it returns as soon as the broker accepts the message.
type Client struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewClient creates a queue client talking to the given Redis instance.
func NewClient(redisAddr, redisPassword string, redisDB int, log *slog.Logger) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		}),
		log: log,
	}
}

// EnqueueCompute serializes the payload and hands it to the broker.
func (c *Client) EnqueueCompute(ctx context.Context, payload ComputePayload) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode compute payload: %w", err)
	}

	task := asynq.NewTask(TypeDistanceCompute, encoded)
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(ComputeQueue))
	if err != nil {
		return fmt.Errorf("failed to enqueue compute task: %w", err)
	}

	c.log.DebugContext(ctx, "Enqueued compute task",
		"task", payload.TaskID, "queue", info.Queue, "records", len(payload.Records))

	return nil
}

// Close releases the underlying broker connection.
func (c *Client) Close() error {
	return c.client.Close()
}
