// Package service contains the task orchestrator: it owns the submission,
// retrieval and synchronous compute paths, and the worker-side handler that
// drives a task through its lifecycle.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lopatinay/dokka/internal/geocoding"
	"github.com/lopatinay/dokka/internal/geodesy"
	"github.com/lopatinay/dokka/internal/metrics"
	"github.com/lopatinay/dokka/internal/models"
	"github.com/lopatinay/dokka/internal/parser"
	"github.com/lopatinay/dokka/internal/queue"
	"github.com/lopatinay/dokka/internal/repository"
)

// DistanceService orchestrates distance computation tasks. Submission and
// retrieval never block on computation: Submit returns as soon as the task
// record is persisted and the payload is enqueued, and GetResult is a
// point-in-time read of the task store.
type DistanceService struct {
	log      *slog.Logger         // Logger for logging service activities
	repo     repository.Interface // Durable task store
	enq      queue.Enqueuer       // Queue adapter for handing work to the worker pool
	geocoder geocoding.Provider   // Reverse geocoding provider for result enrichment
	metrics  *metrics.Metrics     // Metrics for tracking service performance
}

// NewDistanceService creates a new instance of DistanceService. The enqueuer
// is only exercised by Submit and may be nil in a pure worker process; the
// geocoder is only exercised by the worker handler.
func NewDistanceService(
	log *slog.Logger,
	repo repository.Interface,
	enq queue.Enqueuer,
	geocoder geocoding.Provider,
	metrics *metrics.Metrics,
) *DistanceService {
	return &DistanceService{
		log:      log,
		repo:     repo,
		enq:      enq,
		geocoder: geocoder,
		metrics:  metrics,
	}
}

// Submit parses the uploaded CSV, creates a pending task and enqueues the
// parsed records for asynchronous computation. It returns the task id without
// waiting for the computation. When the upload is structurally unusable no
// task is created and the error wraps parser.ErrInvalidInputFormat.
func (s *DistanceService) Submit(ctx context.Context, raw []byte) (uuid.UUID, error) {
	records, parseErrs, err := parser.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse upload: %w", err)
	}

	s.metrics.RowsParsed.Add(float64(len(records)))
	s.metrics.ParseErrors.Add(float64(len(parseErrs)))

	task, err := s.repo.CreateTask(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create task: %w", err)
	}

	payload := queue.ComputePayload{
		TaskID:      task.ID,
		Records:     records,
		ParseErrors: parseErrs,
	}
	if err = s.enq.EnqueueCompute(ctx, payload); err != nil {
		s.log.ErrorContext(ctx, "Failed to enqueue compute task, record stays pending",
			"task", task.ID, "error", err)
		return uuid.Nil, fmt.Errorf("failed to enqueue compute task: %w", err)
	}

	s.log.InfoContext(ctx, "Upload accepted",
		"task", task.ID, "records", len(records), "parse_errors", len(parseErrs))

	return task.ID, nil
}

// GetResult returns the current state of the task with the given id. It is a
// pure read; callers distinguish pending/processing (poll again) from the
// terminal states via Task.Status.
func (s *DistanceService) GetResult(ctx context.Context, id uuid.UUID) (models.Task, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// RunSync parses the upload and computes all distances inline, bypassing the
// queue and the task store entirely. It shares the parser and the distance
// engine with the asynchronous path, so identical input always yields an
// identical distance sequence on both paths.
func (s *DistanceService) RunSync(ctx context.Context, raw []byte) (*models.TaskResult, error) {
	records, parseErrs, err := parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse upload: %w", err)
	}

	s.metrics.RowsParsed.Add(float64(len(records)))
	s.metrics.ParseErrors.Add(float64(len(parseErrs)))

	points := make([]models.GeocodedPoint, 0, len(records))
	for _, rec := range records {
		points = append(points, models.GeocodedPoint{
			Name:      rec.Name,
			Latitude:  rec.Latitude,
			Longitude: rec.Longitude,
		})
	}

	s.log.DebugContext(ctx, "Synchronous computation requested", "records", len(records))

	return &models.TaskResult{
		Points:      points,
		Links:       geodesy.ComputeAll(records),
		ParseErrors: parseErrs,
	}, nil
}
