package backend

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog"
)

// Config holds the resolved backend command tuple.
type Config struct {
	Command string
	Args    []string
	Dir     string
	// Env entries in KEY=VALUE form, appended on top of the parent environment.
	Env []string
}

// Process owns the backend child process handle and its standard streams.
// The input stream is written exclusively by the outbound writer and the
// output stream is read exclusively by the dispatcher.
type Process struct {
	cfg    Config
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr *tailBuffer
	alive  atomic.Bool
	stop   sync.Once
	logger zerolog.Logger
}

func newProcess(cfg Config, logger zerolog.Logger) *Process {
	return &Process{
		cfg:    cfg,
		stderr: newTailBuffer(stderrTailLimit),
		logger: logger.With().Str("component", "process").Logger(),
	}
}

// Start launches the backend with stdin/stdout captured as pipes and a
// bounded stderr capture for crash diagnostics.
func (p *Process) Start() error {
	cmd := exec.Command(p.cfg.Command, p.cfg.Args...)
	cmd.Dir = p.cfg.Dir
	cmd.Env = append(os.Environ(), p.cfg.Env...)
	cmd.Stderr = p.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &StartError{Command: p.cfg.Command, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &StartError{Command: p.cfg.Command, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &StartError{Command: p.cfg.Command, Err: err}
	}
	p.cmd = cmd
	p.stdin = stdin
	p.stdout = stdout
	p.alive.Store(true)
	p.logger.Info().Str("command", p.cfg.Command).Strs("args", p.cfg.Args).Int("pid", cmd.Process.Pid).Msg("backend started")

	go func() {
		err := cmd.Wait()
		p.alive.Store(false)
		p.logger.Info().Err(err).Msg("backend exited")
	}()
	return nil
}

// Stop signals the backend to terminate. It is idempotent and does not
// block waiting for the process to exit; the reaper goroutine collects it.
func (p *Process) Stop() {
	p.stop.Do(func() {
		if p.cmd == nil || p.cmd.Process == nil {
			return
		}
		_ = p.stdin.Close()
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			_ = p.cmd.Process.Kill()
		}
	})
}

// IsAlive is a non-blocking liveness probe.
func (p *Process) IsAlive() bool {
	return p.alive.Load()
}

// Pid returns the backend process identifier, or 0 when never started.
func (p *Process) Pid() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// StderrTail returns the most recent backend stderr output.
func (p *Process) StderrTail() string {
	return p.stderr.String()
}

func (p *Process) markExited() {
	p.alive.Store(false)
}

const stderrTailLimit = 8 * 1024

// tailBuffer is an io.Writer keeping only the trailing limit bytes.
type tailBuffer struct {
	mux   sync.Mutex
	data  []byte
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	b.data = append(b.data, p...)
	if overflow := len(b.data) - b.limit; overflow > 0 {
		b.data = b.data[overflow:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mux.Lock()
	defer b.mux.Unlock()
	return string(b.data)
}
