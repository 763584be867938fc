// Package media holds what the physical media drivers share.
package media

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBusy is returned when an operation is issued while the device is busy.
	ErrBusy = errors.New("device busy")
	// ErrNotInitialized is returned before Init succeeds.
	ErrNotInitialized = errors.New("device not initialized")
	// ErrWornOut is reported when a cell or page exceeded its endurance.
	ErrWornOut = errors.New("endurance exceeded")
)

// AddressError reports an access outside the device.
type AddressError struct {
	Addr int
	Size int
}

// Error implements error.
func (e *AddressError) Error() string {
	return fmt.Sprintf("address %d outside device of %d bytes", e.Addr, e.Size)
}

// CheckAddr validates addr against a device of size bytes.
func CheckAddr(addr, size int) error {
	if size == 0 {
		return ErrNotInitialized
	}
	if addr < 0 || addr >= size {
		return &AddressError{Addr: addr, Size: size}
	}
	return nil
}

// Clock supplies the time for simulated write cycles.
type Clock func() time.Time

// Now returns the time from c, or time.Now if c is nil.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// ManualClock is a Clock advanced explicitly, for deterministic tests.
type ManualClock struct {
	T time.Time
}

// Clock returns the Clock reading m.
func (m *ManualClock) Clock() Clock {
	return func() time.Time { return m.T }
}

// Advance moves the clock forward.
func (m *ManualClock) Advance(d time.Duration) {
	m.T = m.T.Add(d)
}
