package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/lopatinay/dokka/internal/metrics"
	"github.com/lopatinay/dokka/internal/models"
	"github.com/lopatinay/dokka/internal/parser"
	"github.com/lopatinay/dokka/internal/queue"
	"github.com/lopatinay/dokka/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) CreateTask(ctx context.Context) (models.Task, error) {
	args := m.Called(ctx)
	task, _ := args.Get(0).(models.Task)
	return task, args.Error(1)
}

func (m *mockRepository) GetTask(ctx context.Context, id uuid.UUID) (models.Task, error) {
	args := m.Called(ctx, id)
	task, _ := args.Get(0).(models.Task)
	return task, args.Error(1)
}

func (m *mockRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	next models.TaskStatus,
	result *models.TaskResult,
	errMsg string,
) error {
	args := m.Called(ctx, id, next, result, errMsg)
	return args.Error(0)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueCompute(ctx context.Context, payload queue.ComputePayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, coords models.Coordinates) (string, error) {
	args := m.Called(ctx, coords)
	return args.String(0), args.Error(1)
}

func newTestService(t *testing.T) (*DistanceService, *mockRepository, *mockEnqueuer, *mockGeocoder) {
	t.Helper()
	repo := &mockRepository{}
	enq := &mockEnqueuer{}
	geo := &mockGeocoder{}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewDistanceService(logger, repo, enq, geo, m), repo, enq, geo
}

const validUpload = "Point,Latitude,Longitude\nA,50.4501,30.5234\nB,49.8397,24.0297\nC,59.9139,10.7522\n"

func computeTask(t *testing.T, payload queue.ComputePayload) *asynq.Task {
	t.Helper()
	encoded, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeDistanceCompute, encoded)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("successful submission", func(t *testing.T) {
		svc, repo, enq, _ := newTestService(t)
		task := models.Task{ID: uuid.New(), Status: models.StatusPending}

		repo.On("CreateTask", ctx).Return(task, nil).Once()
		enq.On("EnqueueCompute", ctx, mock.MatchedBy(func(p queue.ComputePayload) bool {
			return p.TaskID == task.ID && len(p.Records) == 3 && len(p.ParseErrors) == 0
		})).Return(nil).Once()

		id, err := svc.Submit(ctx, []byte(validUpload))

		require.NoError(t, err)
		assert.Equal(t, task.ID, id)
		repo.AssertExpectations(t)
		enq.AssertExpectations(t)
	})

	t.Run("parse errors travel with the payload", func(t *testing.T) {
		svc, repo, enq, _ := newTestService(t)
		task := models.Task{ID: uuid.New(), Status: models.StatusPending}
		upload := "Point,Latitude,Longitude\nA,50.4501,30.5234\nB,bad,24.0297\nC,59.9139,10.7522\n"

		repo.On("CreateTask", ctx).Return(task, nil).Once()
		enq.On("EnqueueCompute", ctx, mock.MatchedBy(func(p queue.ComputePayload) bool {
			return len(p.Records) == 2 && len(p.ParseErrors) == 1 && p.ParseErrors[0].Row == 2
		})).Return(nil).Once()

		_, err := svc.Submit(ctx, []byte(upload))

		require.NoError(t, err)
		repo.AssertExpectations(t)
		enq.AssertExpectations(t)
	})

	t.Run("invalid input creates no task", func(t *testing.T) {
		svc, repo, enq, _ := newTestService(t)

		id, err := svc.Submit(ctx, []byte(""))

		require.Error(t, err)
		require.ErrorIs(t, err, parser.ErrInvalidInputFormat)
		assert.Equal(t, uuid.Nil, id)
		repo.AssertNotCalled(t, "CreateTask", mock.Anything)
		enq.AssertNotCalled(t, "EnqueueCompute", mock.Anything, mock.Anything)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		svc, repo, enq, _ := newTestService(t)

		repo.On("CreateTask", ctx).Return(models.Task{}, assert.AnError).Once()

		_, err := svc.Submit(ctx, []byte(validUpload))

		require.Error(t, err)
		require.ErrorIs(t, err, assert.AnError)
		enq.AssertNotCalled(t, "EnqueueCompute", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("enqueue failure propagates", func(t *testing.T) {
		svc, repo, enq, _ := newTestService(t)
		task := models.Task{ID: uuid.New(), Status: models.StatusPending}

		repo.On("CreateTask", ctx).Return(task, nil).Once()
		enq.On("EnqueueCompute", ctx, mock.Anything).Return(assert.AnError).Once()

		_, err := svc.Submit(ctx, []byte(validUpload))

		require.Error(t, err)
		require.ErrorIs(t, err, assert.AnError)
		repo.AssertExpectations(t)
		enq.AssertExpectations(t)
	})
}

func TestGetResult(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the stored task", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		stored := models.Task{ID: uuid.New(), Status: models.StatusCompleted, Result: &models.TaskResult{}}

		repo.On("GetTask", ctx, stored.ID).Return(stored, nil).Once()

		task, err := svc.GetResult(ctx, stored.ID)

		require.NoError(t, err)
		assert.Equal(t, stored, task)
		repo.AssertExpectations(t)
	})

	t.Run("unknown id surfaces ErrNotFound", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		id := uuid.New()

		repo.On("GetTask", ctx, id).Return(models.Task{}, repository.ErrNotFound).Once()

		_, err := svc.GetResult(ctx, id)

		require.ErrorIs(t, err, repository.ErrNotFound)
		repo.AssertExpectations(t)
	})
}

func TestRunSync(t *testing.T) {
	ctx := context.Background()

	t.Run("computes distances inline without a task", func(t *testing.T) {
		svc, repo, enq, _ := newTestService(t)

		result, err := svc.RunSync(ctx, []byte(validUpload))

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Len(t, result.Links, 3)
		assert.Len(t, result.Points, 3)
		assert.Empty(t, result.ParseErrors)
		repo.AssertNotCalled(t, "CreateTask", mock.Anything)
		enq.AssertNotCalled(t, "EnqueueCompute", mock.Anything, mock.Anything)
	})

	t.Run("invalid input fails with ErrInvalidInputFormat", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)

		_, err := svc.RunSync(ctx, []byte("garbage"))

		require.ErrorIs(t, err, parser.ErrInvalidInputFormat)
	})

	t.Run("partial success includes parse errors", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		upload := "Point,Latitude,Longitude\nA,50.4501,30.5234\nB,200.0,24.0297\nC,59.9139,10.7522\nD,48.9226,24.7111\n"

		result, err := svc.RunSync(ctx, []byte(upload))

		require.NoError(t, err)
		assert.Len(t, result.Points, 3)
		assert.Len(t, result.Links, 3)
		require.Len(t, result.ParseErrors, 1)
		assert.Equal(t, 2, result.ParseErrors[0].Row)
	})
}

func TestHandleComputeTask(t *testing.T) {
	ctx := context.Background()

	records, parseErrs, err := parser.Parse([]byte(validUpload))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	t.Run("successful computation completes the task", func(t *testing.T) {
		svc, repo, _, geo := newTestService(t)
		taskID := uuid.New()
		var captured *models.TaskResult

		repo.On("UpdateStatus", ctx, taskID, models.StatusProcessing, (*models.TaskResult)(nil), "").
			Return(nil).Once()
		geo.On("ReverseGeocode", ctx, mock.Anything).Return("Somewhere, Ukraine", nil).Times(3)
		repo.On("UpdateStatus", ctx, taskID, models.StatusCompleted, mock.Anything, "").
			Run(func(args mock.Arguments) {
				captured, _ = args.Get(3).(*models.TaskResult)
			}).
			Return(nil).Once()

		err := svc.HandleComputeTask(ctx, computeTask(t, queue.ComputePayload{
			TaskID:      taskID,
			Records:     records,
			ParseErrors: parseErrs,
		}))

		require.NoError(t, err)
		require.NotNil(t, captured)
		assert.Len(t, captured.Links, 3)
		require.Len(t, captured.Points, 3)
		assert.Equal(t, "Somewhere, Ukraine", captured.Points[0].Address)
		repo.AssertExpectations(t)
		geo.AssertExpectations(t)
	})

	t.Run("async result matches the synchronous path", func(t *testing.T) {
		svc, repo, _, geo := newTestService(t)
		taskID := uuid.New()
		var captured *models.TaskResult

		repo.On("UpdateStatus", ctx, taskID, models.StatusProcessing, (*models.TaskResult)(nil), "").
			Return(nil).Once()
		geo.On("ReverseGeocode", ctx, mock.Anything).Return("", nil).Times(3)
		repo.On("UpdateStatus", ctx, taskID, models.StatusCompleted, mock.Anything, "").
			Run(func(args mock.Arguments) {
				captured, _ = args.Get(3).(*models.TaskResult)
			}).
			Return(nil).Once()

		err := svc.HandleComputeTask(ctx, computeTask(t, queue.ComputePayload{TaskID: taskID, Records: records}))
		require.NoError(t, err)

		syncResult, err := svc.RunSync(ctx, []byte(validUpload))
		require.NoError(t, err)

		require.NotNil(t, captured)
		assert.Equal(t, syncResult.Links, captured.Links)
	})

	t.Run("geocoding failures never fail the task", func(t *testing.T) {
		svc, repo, _, geo := newTestService(t)
		taskID := uuid.New()
		var captured *models.TaskResult

		repo.On("UpdateStatus", ctx, taskID, models.StatusProcessing, (*models.TaskResult)(nil), "").
			Return(nil).Once()
		geo.On("ReverseGeocode", ctx, mock.Anything).Return("", assert.AnError).Times(3)
		repo.On("UpdateStatus", ctx, taskID, models.StatusCompleted, mock.Anything, "").
			Run(func(args mock.Arguments) {
				captured, _ = args.Get(3).(*models.TaskResult)
			}).
			Return(nil).Once()

		err := svc.HandleComputeTask(ctx, computeTask(t, queue.ComputePayload{TaskID: taskID, Records: records}))

		require.NoError(t, err)
		require.NotNil(t, captured)
		for _, point := range captured.Points {
			assert.Empty(t, point.Address)
		}
		repo.AssertExpectations(t)
	})

	t.Run("duplicate delivery for terminal task is a no-op", func(t *testing.T) {
		svc, repo, _, geo := newTestService(t)
		taskID := uuid.New()

		repo.On("UpdateStatus", ctx, taskID, models.StatusProcessing, (*models.TaskResult)(nil), "").
			Return(repository.ErrInvalidTransition).Once()
		repo.On("GetTask", ctx, taskID).
			Return(models.Task{ID: taskID, Status: models.StatusCompleted, Result: &models.TaskResult{}}, nil).Once()

		err := svc.HandleComputeTask(ctx, computeTask(t, queue.ComputePayload{TaskID: taskID, Records: records}))

		require.NoError(t, err)
		geo.AssertNotCalled(t, "ReverseGeocode", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("redelivery of a processing task recomputes it", func(t *testing.T) {
		svc, repo, _, geo := newTestService(t)
		taskID := uuid.New()

		repo.On("UpdateStatus", ctx, taskID, models.StatusProcessing, (*models.TaskResult)(nil), "").
			Return(repository.ErrInvalidTransition).Once()
		repo.On("GetTask", ctx, taskID).
			Return(models.Task{ID: taskID, Status: models.StatusProcessing}, nil).Once()
		geo.On("ReverseGeocode", ctx, mock.Anything).Return("", nil).Times(3)
		repo.On("UpdateStatus", ctx, taskID, models.StatusCompleted, mock.Anything, "").
			Return(nil).Once()

		err := svc.HandleComputeTask(ctx, computeTask(t, queue.ComputePayload{TaskID: taskID, Records: records}))

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("missing task record skips retry", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		taskID := uuid.New()

		repo.On("UpdateStatus", ctx, taskID, models.StatusProcessing, (*models.TaskResult)(nil), "").
			Return(repository.ErrNotFound).Once()

		err := svc.HandleComputeTask(ctx, computeTask(t, queue.ComputePayload{TaskID: taskID, Records: records}))

		require.Error(t, err)
		require.ErrorIs(t, err, asynq.SkipRetry)
		repo.AssertExpectations(t)
	})

	t.Run("malformed payload skips retry", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)

		err := svc.HandleComputeTask(ctx, asynq.NewTask(queue.TypeDistanceCompute, []byte("not json")))

		require.Error(t, err)
		require.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("store failure while completing is retryable", func(t *testing.T) {
		svc, repo, _, geo := newTestService(t)
		taskID := uuid.New()

		repo.On("UpdateStatus", ctx, taskID, models.StatusProcessing, (*models.TaskResult)(nil), "").
			Return(nil).Once()
		geo.On("ReverseGeocode", ctx, mock.Anything).Return("", nil).Times(3)
		repo.On("UpdateStatus", ctx, taskID, models.StatusCompleted, mock.Anything, "").
			Return(assert.AnError).Once()

		err := svc.HandleComputeTask(ctx, computeTask(t, queue.ComputePayload{TaskID: taskID, Records: records}))

		require.Error(t, err)
		require.ErrorIs(t, err, assert.AnError)
		require.NotErrorIs(t, err, asynq.SkipRetry)
		repo.AssertExpectations(t)
	})
}
