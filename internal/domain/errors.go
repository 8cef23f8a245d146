package domain

import "errors"

// Start failures surfaced to the picker. The error text is the tag.
var (
	ErrNoWindows   = errors.New("no-windows")
	ErrMaskFailed  = errors.New("mask-failed")
	ErrMaskMissing = errors.New("mask-missing")
)

var (
	// ErrSessionActive is returned when a start races an existing session.
	ErrSessionActive = errors.New("session already active")
	// ErrEngineStopped is returned once the engine loop has exited.
	ErrEngineStopped = errors.New("engine stopped")
	// ErrAlreadyRunning is returned when another applock instance is live.
	ErrAlreadyRunning = errors.New("another applock instance is running")
)

// ErrorCode returns the tag of a known start failure, or "" for other errors.
func ErrorCode(err error) string {
	for _, tagged := range []error{ErrNoWindows, ErrMaskFailed, ErrMaskMissing} {
		if errors.Is(err, tagged) {
			return tagged.Error()
		}
	}
	return ""
}
