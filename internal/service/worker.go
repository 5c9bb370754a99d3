package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/lopatinay/dokka/internal/geodesy"
	"github.com/lopatinay/dokka/internal/models"
	"github.com/lopatinay/dokka/internal/queue"
	"github.com/lopatinay/dokka/internal/repository"
)

// HandleComputeTask is the asynq handler that executes one distance
// computation job. Delivery is at-least-once: the handler tolerates
// redelivery of payloads whose task already moved forward, and the task
// store's transition guard turns duplicate completion signals into no-ops.
func (s *DistanceService) HandleComputeTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ComputePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to decode compute payload: %v: %w", err, asynq.SkipRetry)
	}

	s.metrics.ActiveWorkers.Inc()
	defer s.metrics.ActiveWorkers.Dec()

	s.log.DebugContext(ctx, "Processing compute task", "task", payload.TaskID, "records", len(payload.Records))

	if err := s.repo.UpdateStatus(ctx, payload.TaskID, models.StatusProcessing, nil, ""); err != nil {
		proceed, resolveErr := s.resolveRedelivery(ctx, payload.TaskID, err)
		if resolveErr != nil {
			return resolveErr
		}
		if !proceed {
			return nil
		}
	}

	start := time.Now()
	pairs, err := computePairs(payload.Records)
	s.metrics.ComputeSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		s.log.ErrorContext(ctx, "Distance computation failed", "task", payload.TaskID, "error", err)
		s.metrics.TasksProcessed.WithLabelValues("failure").Inc()

		if updErr := s.repo.UpdateStatus(ctx, payload.TaskID, models.StatusFailed, nil, err.Error()); updErr != nil {
			if errors.Is(updErr, repository.ErrInvalidTransition) {
				s.log.WarnContext(ctx, "Duplicate failure signal ignored", "task", payload.TaskID)
				return nil
			}
			return fmt.Errorf("failed to record task failure: %w", updErr)
		}
		return nil
	}

	result := &models.TaskResult{
		Points:      s.geocodePoints(ctx, payload.Records),
		Links:       pairs,
		ParseErrors: payload.ParseErrors,
	}

	if err = s.repo.UpdateStatus(ctx, payload.TaskID, models.StatusCompleted, result, ""); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			s.log.WarnContext(ctx, "Duplicate completion signal ignored", "task", payload.TaskID)
			return nil
		}
		// The terminal write is guarded, so letting the broker retry is safe.
		return fmt.Errorf("failed to record task result: %w", err)
	}

	s.metrics.TasksProcessed.WithLabelValues("success").Inc()
	s.log.InfoContext(ctx, "Compute task completed", "task", payload.TaskID, "pairs", len(pairs))

	return nil
}

// resolveRedelivery decides what to do when the pending->processing move was
// rejected. A task already in "processing" means the previous delivery
// crashed mid-computation, so the batch is recomputed; a terminal task means
// this is a duplicate delivery and the payload is dropped.
func (s *DistanceService) resolveRedelivery(ctx context.Context, id uuid.UUID, updErr error) (bool, error) {
	if !errors.Is(updErr, repository.ErrInvalidTransition) {
		if errors.Is(updErr, repository.ErrNotFound) {
			s.log.ErrorContext(ctx, "Compute task references a missing record", "task", id)
			return false, fmt.Errorf("task %s record missing: %w", id, asynq.SkipRetry)
		}
		return false, fmt.Errorf("failed to mark task processing: %w", updErr)
	}

	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to inspect redelivered task: %w", err)
	}

	switch {
	case task.Status == models.StatusProcessing:
		// Identical input yields an identical result, so re-execution is safe.
		s.log.WarnContext(ctx, "Recomputing task after redelivery", "task", id)
		return true, nil
	case task.Status.Terminal():
		s.log.InfoContext(ctx, "Dropping duplicate delivery for terminal task",
			"task", id, "status", task.Status)
		return false, nil
	default:
		return false, fmt.Errorf("task %s in unexpected status %q: %w", id, task.Status, asynq.SkipRetry)
	}
}

// computePairs runs the distance engine over the batch, converting a panic
// inside the computation into a task failure instead of killing the worker.
func computePairs(records []models.CoordinateRecord) (pairs []models.DistancePair, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("distance computation panicked: %v", r)
		}
	}()

	return geodesy.ComputeAll(records), nil
}

// geocodePoints enriches the uploaded points with reverse-geocoded addresses.
// Enrichment is best effort: a provider failure leaves the address empty and
// never fails the task.
func (s *DistanceService) geocodePoints(ctx context.Context, records []models.CoordinateRecord) []models.GeocodedPoint {
	points := make([]models.GeocodedPoint, 0, len(records))

	for _, rec := range records {
		point := models.GeocodedPoint{
			Name:      rec.Name,
			Latitude:  rec.Latitude,
			Longitude: rec.Longitude,
		}

		address, err := s.geocoder.ReverseGeocode(ctx, models.Coordinates{
			Latitude:  rec.Latitude,
			Longitude: rec.Longitude,
		})
		if err != nil {
			s.metrics.GeocodeErrors.Inc()
			s.log.WarnContext(ctx, "Failed to reverse geocode point", "row", rec.Row, "error", err)
		} else {
			point.Address = address
		}

		points = append(points, point)
	}

	return points
}
