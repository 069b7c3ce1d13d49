package models

import (
	"errors"
	"fmt"
)

// Domain specific errors shared across services and handlers.
var (
	ErrNotFound         = errors.New("requested item not found")
	ErrConflict         = errors.New("item already exists or conflict")
	ErrUnauthenticated  = errors.New("authentication required or invalid credentials")
	ErrForbidden        = errors.New("action forbidden")
	ErrBadRequest       = errors.New("bad request")
	ErrValidation       = errors.New("validation failed")
	ErrPermissionDenied = errors.New("location permission denied")
)

// ValidationReason identifies why a recording could not be completed.
type ValidationReason string

const (
	ReasonTooShort     ValidationReason = "too_short"
	ReasonTooFewPoints ValidationReason = "too_few_points"
)

// RecordingValidationError is returned by stop when the recording does not
// meet the minimum duration or point count. The journey is persisted as
// cancelled, never as an invalid completed record.
type RecordingValidationError struct {
	Reason      ValidationReason
	DurationSec float64
	PointCount  int
}

func (e *RecordingValidationError) Error() string {
	return fmt.Sprintf("recording validation failed: %s", e.Reason)
}

// Is makes errors.Is(err, ErrValidation) hold for validation failures.
func (e *RecordingValidationError) Is(target error) bool {
	return target == ErrValidation
}
