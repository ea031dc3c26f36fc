package reservation

import "errors"

// Failure kinds the engine reports. Contention failures (ErrSeatUnavailable,
// ErrSeatLocked) are normal under concurrent load and safe for the caller to
// retry with a different seat. ErrCapacityInconsistent means the trip counter
// no longer matches the seat rows and is alerted, never swallowed.
var (
	ErrNotFound             = errors.New("reservation or seat not found")
	ErrSeatUnavailable      = errors.New("seat is not available")
	ErrSeatLocked           = errors.New("seat is locked by another booking in progress")
	ErrAlreadyCancelled     = errors.New("reservation is already cancelled")
	ErrCapacityInconsistent = errors.New("trip capacity counter is inconsistent")
)
