package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateID indicates a caller reused a request id while a prior
	// call with the same id is still outstanding.
	ErrDuplicateID = errors.New("request id already pending")

	// ErrRequestTimeout indicates no correlated reply arrived within the
	// configured window.
	ErrRequestTimeout = errors.New("timed out waiting for backend reply")

	// ErrNotRunning indicates a write was attempted while the backend
	// process is not running.
	ErrNotRunning = errors.New("backend process is not running")
)

// StartError reports a backend process that could not be launched; it is
// fatal to bridge startup.
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start backend %q: %v", e.Command, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// UnavailableError reports a failed write to the backend's input stream.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("backend unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// CrashedError is propagated to every outstanding request when the reader
// loop observes end of the backend's output stream.
type CrashedError struct {
	Stderr string
}

func (e *CrashedError) Error() string {
	if e.Stderr == "" {
		return "backend process exited"
	}
	return fmt.Sprintf("backend process exited, stderr: %s", e.Stderr)
}
