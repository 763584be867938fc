package nv

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange indicates an access outside the address space.
	ErrOutOfRange = errors.New("address out of range")
	// ErrNotInitialized indicates Init has not succeeded yet.
	ErrNotInitialized = errors.New("storage not initialized")
	// ErrBadWindow indicates the cache window does not fit the address space.
	ErrBadWindow = errors.New("cache window exceeds address space")
	// ErrBackendBusy indicates the backend stayed busy past the configured limit.
	ErrBackendBusy = errors.New("backend busy")
	// ErrWriteThrough indicates a write-through access could not be committed
	// in time. The bytes stay pending and are flushed by later polls.
	ErrWriteThrough = errors.New("write-through not committed")
	// ErrShortRead indicates a range read returned fewer bytes than asked.
	ErrShortRead = errors.New("short range read")
)

// RangeError reports a rejected access.
type RangeError struct {
	Addr int
	Len  int
	Size int
}

// Error implements error.
func (e *RangeError) Error() string {
	return fmt.Sprintf("access [%d, %d) outside [0, %d)", e.Addr, e.Addr+e.Len, e.Size)
}

// Unwrap makes errors.Is(err, ErrOutOfRange) hold.
func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// StallError is returned by Poll once a byte failed MaxRetries consecutive
// writes, the durability barrier failed MaxRetries consecutive syncs, or
// the backend stayed busy for BusyLimit polls. Addr is -1 for the latter
// two. The work stays pending and is still retried.
type StallError struct {
	Addr     int
	Attempts int
	Err      error
}

// Error implements error.
func (e *StallError) Error() string {
	if e.Addr < 0 {
		return fmt.Sprintf("flush stalled after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("flush of address %d stalled after %d attempts: %v", e.Addr, e.Attempts, e.Err)
}

// Unwrap returns the backend error.
func (e *StallError) Unwrap() error { return e.Err }
