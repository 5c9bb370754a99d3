package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lopatinay/dokka/internal/models"
)

// CreateTask inserts a fresh task record with status "pending" and returns it.
// Identifiers are random UUIDs, so concurrent creation is collision-safe.
func (r *Repository) CreateTask(ctx context.Context) (models.Task, error) {
	query := `
		INSERT INTO tasks (id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $3);
	`

	task := models.Task{
		ID:        uuid.New(),
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	task.UpdatedAt = task.CreatedAt

	if _, err := r.db.Exec(ctx, query, task.ID, string(task.Status), task.CreatedAt); err != nil {
		return models.Task{}, fmt.Errorf("failed to insert task: %w", err)
	}

	r.log.DebugContext(ctx, "Created task record", "task", task.ID)

	return task, nil
}

// GetTask returns the task with the given id, or ErrNotFound if it is absent.
// It is a pure read and never mutates the record.
func (r *Repository) GetTask(ctx context.Context, id uuid.UUID) (models.Task, error) {
	query := `
		SELECT id, status, result, error, created_at, updated_at
		FROM tasks
		WHERE id = $1;
	`

	var (
		task       models.Task
		status     string
		resultJSON []byte
		errMsg     *string
	)

	err := r.db.QueryRow(ctx, query, id).
		Scan(&task.ID, &status, &resultJSON, &errMsg, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, fmt.Errorf("failed to query task: %w", err)
	}

	task.Status = models.TaskStatus(status)
	if errMsg != nil {
		task.Error = *errMsg
	}
	if len(resultJSON) > 0 {
		task.Result = &models.TaskResult{}
		if err = json.Unmarshal(resultJSON, task.Result); err != nil {
			return models.Task{}, fmt.Errorf("failed to decode task result: %w", err)
		}
	}

	return task, nil
}

// UpdateStatus moves a task to the next lifecycle state with a conditional
// write keyed on the current status, which serializes concurrent writers per
// task. A request that skips a state, leaves a terminal state, or carries an
// inconsistent payload (completed without result, failed without error) fails
// with ErrInvalidTransition and does not mutate the record.
func (r *Repository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	next models.TaskStatus,
	result *models.TaskResult,
	errMsg string,
) error {
	required, err := validateTransition(next, result, errMsg)
	if err != nil {
		return err
	}

	var resultJSON any
	if result != nil {
		encoded, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			return fmt.Errorf("failed to encode task result: %w", marshalErr)
		}
		resultJSON = encoded
	}

	var errVal any
	if errMsg != "" {
		errVal = errMsg
	}

	query := `
		UPDATE tasks
		SET status = $2, result = $3, error = $4, updated_at = $5
		WHERE id = $1 AND status = $6;
	`

	tag, err := r.db.Exec(ctx, query, id, string(next), resultJSON, errVal, time.Now().UTC(), string(required))
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return r.explainRejectedUpdate(ctx, id, next)
	}

	r.log.DebugContext(ctx, "Task status updated", "task", id, "status", next)

	return nil
}

// validateTransition checks the payload invariants for the requested status
// and returns the status the record must currently hold for the move to be legal.
func validateTransition(next models.TaskStatus, result *models.TaskResult, errMsg string) (models.TaskStatus, error) {
	switch next {
	case models.StatusProcessing:
		if result != nil || errMsg != "" {
			return "", fmt.Errorf("%w: processing task must not carry result or error", ErrInvalidTransition)
		}
		return models.StatusPending, nil
	case models.StatusCompleted:
		if result == nil {
			return "", fmt.Errorf("%w: completed task requires a result", ErrInvalidTransition)
		}
		if errMsg != "" {
			return "", fmt.Errorf("%w: completed task must not carry an error", ErrInvalidTransition)
		}
		return models.StatusProcessing, nil
	case models.StatusFailed:
		if errMsg == "" {
			return "", fmt.Errorf("%w: failed task requires an error", ErrInvalidTransition)
		}
		if result != nil {
			return "", fmt.Errorf("%w: failed task must not carry a result", ErrInvalidTransition)
		}
		return models.StatusProcessing, nil
	default:
		return "", fmt.Errorf("%w: no transition into status %q", ErrInvalidTransition, next)
	}
}

// explainRejectedUpdate distinguishes a missing record from a conditional
// write lost to the transition guard.
func (r *Repository) explainRejectedUpdate(ctx context.Context, id uuid.UUID, next models.TaskStatus) error {
	var current string

	err := r.db.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1;`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to inspect task status: %w", err)
	}

	return fmt.Errorf("%w: cannot move task from %q to %q", ErrInvalidTransition, current, next)
}
