package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by store, repo and service functions when the
// requested marker does not exist.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation.
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrInvalidLocation and ErrInvalidCategory are the two local validation
// failures of a create call. Both wrap ErrValidation, so
// errors.Is(err, ErrValidation) holds for either of them.
var (
	ErrInvalidLocation = fmt.Errorf("%w: invalid location", ErrValidation)
	ErrInvalidCategory = fmt.Errorf("%w: invalid category", ErrValidation)
)

// ErrPermissionDenied and ErrLocationUnavailable are reported by location
// providers. They are distinct so callers can show different messages.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrLocationUnavailable = errors.New("location unavailable")
)

// ErrSyncFailed matches any *SyncFailedError via errors.Is.
var ErrSyncFailed = errors.New("sync failed")

// SyncFailureKind classifies the cause of a failed sync.
type SyncFailureKind string

const (
	SyncNetwork SyncFailureKind = "network"
	SyncTimeout SyncFailureKind = "timeout"
	SyncServer  SyncFailureKind = "server"
)

// SyncFailedError is returned when a call to the remote marker source fails.
// It is recoverable: local state is left as it was and the caller may retry.
type SyncFailedError struct {
	Kind  SyncFailureKind
	Cause error
}

func (e *SyncFailedError) Error() string {
	return fmt.Sprintf("sync failed (%s): %v", e.Kind, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *SyncFailedError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrSyncFailed) true for every SyncFailedError.
func (e *SyncFailedError) Is(target error) bool { return target == ErrSyncFailed }

// NewSyncFailed wraps cause in a SyncFailedError of the given kind.
func NewSyncFailed(kind SyncFailureKind, cause error) *SyncFailedError {
	return &SyncFailedError{Kind: kind, Cause: cause}
}

func invalidCategory(s string) error {
	return fmt.Errorf("%w: %q is not one of ice, observer", ErrInvalidCategory, s)
}
