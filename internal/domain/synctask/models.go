package synctask

import (
	"errors"
	"time"
)

// Task statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Reasons a task is enqueued for.
const (
	ReasonWebhook = "webhook"
	ReasonSweep   = "sweep"
	ReasonLink    = "link"
	ReasonManual  = "manual"
)

var validReasons = map[string]struct{}{
	ReasonWebhook: {},
	ReasonSweep:   {},
	ReasonLink:    {},
	ReasonManual:  {},
}

// Domain errors
var (
	ErrInvalidItemID = errors.New("item ID is required")
	ErrInvalidReason = errors.New("invalid task reason")
	ErrNoTask        = errors.New("no task ready")
	ErrTaskNotFound  = errors.New("task not found")
)

// Task asks the worker to sync one item.
type Task struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"itemId"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
	RunAfter  time.Time `json:"runAfter"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func IsValidReason(r string) bool {
	_, ok := validReasons[r]
	return ok
}

// permanentError marks a handler failure that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the task fails without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
