package backend

import (
	"bufio"
	"sync"
)

// writer serializes outbound messages to the backend's input stream. The
// mutex covers write and flush only, so one full line is emitted at a time
// and no caller suspends while holding it.
type writer struct {
	mux  sync.Mutex
	out  *bufio.Writer
	proc *Process
}

func newWriter(proc *Process) *writer {
	return &writer{
		out:  bufio.NewWriter(proc.stdin),
		proc: proc,
	}
}

// writeLine appends a newline to message and writes it to the backend
// stdin. The message must already be a single line of JSON.
func (w *writer) writeLine(message []byte) error {
	if !w.proc.IsAlive() {
		return &UnavailableError{Err: ErrNotRunning}
	}
	w.mux.Lock()
	defer w.mux.Unlock()
	if _, err := w.out.Write(message); err != nil {
		return &UnavailableError{Err: err}
	}
	if err := w.out.WriteByte('\n'); err != nil {
		return &UnavailableError{Err: err}
	}
	if err := w.out.Flush(); err != nil {
		return &UnavailableError{Err: err}
	}
	return nil
}
