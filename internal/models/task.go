package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a distance computation task.
// Transitions are monotonic forward only: pending -> processing -> {completed, failed}.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s permits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// GeocodedPoint is a coordinate record enriched with a reverse-geocoded
// address. Address is empty when geocoding is disabled or failed for the point.
type GeocodedPoint struct {
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// TaskResult is the payload of a completed task: the ordered distance pairs,
// the uploaded points, and any per-row parse errors collected during submission.
type TaskResult struct {
	Points      []GeocodedPoint `json:"points"`
	Links       []DistancePair  `json:"links"`
	ParseErrors []ParseError    `json:"parse_errors,omitempty"`
}

// Task is the durable record of one uploaded batch's distance computation.
// Result is non-nil only for completed tasks; Error is non-empty only for
// failed tasks.
type Task struct {
	ID        uuid.UUID
	Status    TaskStatus
	Result    *TaskResult
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
