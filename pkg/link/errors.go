package link

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by Send before the link is synced.
	ErrNotReady = errors.New("link not ready")
	// ErrNoReply fails a call when the peer answered a later call first.
	ErrNoReply = errors.New("no reply")
	// ErrReset fails outstanding calls when the link loses sync.
	ErrReset = errors.New("link reset")
	// ErrFrameTooLarge is returned for payloads above MaxData.
	ErrFrameTooLarge = errors.New("frame too large")
)

// CommandError is the error code a peer replied with.
type CommandError struct {
	Code byte
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command error %#02x", e.Code)
}
