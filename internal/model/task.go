package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidStatus = errors.New("model: invalid task status")
	ErrNotWritable   = errors.New("model: status cannot be written to the server")
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "Pending"
	TaskStatusCompleted TaskStatus = "Completed"
	TaskStatusExpired   TaskStatus = "Expired"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusCompleted, TaskStatusExpired:
		return true
	default:
		return false
	}
}

// IsWritable reports whether the status may be sent in an update request.
// Expired only ever exists as a client-side overlay.
func (s TaskStatus) IsWritable() bool {
	return s == TaskStatusPending || s == TaskStatusCompleted
}

type Task struct {
	ID          string
	Name        string
	OwnerUserID string
	OwnerEmail  string
	Status      TaskStatus
	CreatedAt   time.Time
	ExpiryDate  *time.Time
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: task id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("model: task name is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	return nil
}

// IsExpiredAt reports whether the expiry date lies strictly before now.
func (t Task) IsExpiredAt(now time.Time) bool {
	return t.ExpiryDate != nil && t.ExpiryDate.Before(now)
}

// Displayed returns the task as it should be shown at now: the stored status,
// unless the expiry date has passed, in which case Expired.
func (t Task) Displayed(now time.Time) Task {
	out := t
	if t.ExpiryDate != nil {
		expiry := *t.ExpiryDate
		out.ExpiryDate = &expiry
	}
	if t.IsExpiredAt(now) {
		out.Status = TaskStatusExpired
	}
	return out
}

// Toggled returns the status a checkbox flip should write.
func (t Task) Toggled() (TaskStatus, error) {
	switch t.Status {
	case TaskStatusPending:
		return TaskStatusCompleted, nil
	case TaskStatusCompleted:
		return TaskStatusPending, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrNotWritable, t.Status)
	}
}

func ApplyExpiryOverlay(tasks []Task, now time.Time) []Task {
	out := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Displayed(now))
	}
	return out
}

// RemainingHours is the number of whole hours until expiry, never negative.
func RemainingHours(expiry time.Time, now time.Time) int {
	diff := expiry.Sub(now)
	if diff <= 0 {
		return 0
	}
	return int(diff / time.Hour)
}
