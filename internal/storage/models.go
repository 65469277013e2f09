package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Interaction statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Interaction is one answered (or failed) question.
type Interaction struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	Question        string    `json:"question"`
	ScheduleContext string    `json:"schedule_context"`
	ScheduleNames   []string  `json:"schedule_names"`
	Model           string    `json:"model"`
	RawResponse     string    `json:"raw_response"`
	Lines           []string  `json:"lines"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
}
