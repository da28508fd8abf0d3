package worker

import (
	"context"
	"errors"

	"github.com/DukeRupert/chartwise/internal/domain"
)

// JobHandler runs one job type. The payload is the JSON stored at enqueue
// time. Returning a PermanentError fails the job immediately; any other
// error is retried with backoff until max_attempts.
type JobHandler interface {
	Type() string
	Handle(ctx context.Context, payload []byte) error
}

// =============================================================================
// Priorities
// =============================================================================

// Priority orders pending jobs. Higher runs first; equal priorities run in
// scheduled order.
type Priority int32

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 10
	PriorityHigh   Priority = 20
)

// TicketEmailPriority places ticket mail in the queue by the ticket's own
// priority, so an urgent request is acknowledged before routine mail.
func TicketEmailPriority(p domain.TicketPriority) Priority {
	switch p {
	case domain.TicketPriorityUrgent:
		return PriorityHigh
	case domain.TicketPriorityLow:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// =============================================================================
// Failure classification
// =============================================================================

// PermanentError marks a failure that retrying cannot fix, such as a
// malformed payload, an unknown email kind or a recipient the mail server
// rejected outright.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// NewPermanentError wraps err so the worker will not retry it.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err, or anything it wraps, is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
