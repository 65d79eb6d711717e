package expect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wavexx/expect/pkg/discipline"
	"github.com/wavexx/expect/pkg/termios"
	"github.com/wavexx/expect/pkg/tty"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultBufferSize = 64 * 1024

	readChunkSize = 4096
)

var (
	// ErrTimeout is returned by Expect when no match arrives in time.
	ErrTimeout = errors.New("timed out waiting for match")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
)

// Options configures a spawned session. Zero values select the defaults.
type Options struct {
	Timeout    time.Duration // per-Expect deadline
	BufferSize int           // unmatched output kept, oldest dropped first
	Env        []string      // nil inherits the current environment
	Dir        string
	Cols       uint16
	Rows       uint16
	Raw        bool // switch the pty to raw mode before reading
	Logger     *zerolog.Logger
	Kernel     termios.Kernel
}

func (o *Options) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Kernel == nil {
		o.Kernel = termios.System
	}
	if o.Logger == nil {
		o.Logger = &log.Logger
	}
}

// Session is a child process attached to a pseudo-terminal.
type Session struct {
	id      string
	cmd     *exec.Cmd
	master  *os.File
	term    *tty.TTY
	ctl     *discipline.Controller
	buf     *outputBuffer
	timeout time.Duration
	log     zerolog.Logger

	notify  chan struct{}
	done    chan struct{}
	readErr error // valid once done is closed

	closed    atomic.Bool
	closeOnce sync.Once
	waitOnce  sync.Once
	waitErr   error
}

// Spawn starts name with args on a new pseudo-terminal. The child is killed
// when ctx is cancelled.
func Spawn(ctx context.Context, name string, args []string, opts Options) (*Session, error) {
	opts.setDefaults()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = opts.Env
	cmd.Dir = opts.Dir

	var size *pty.Winsize
	if opts.Cols > 0 && opts.Rows > 0 {
		size = &pty.Winsize{Cols: opts.Cols, Rows: opts.Rows}
	}

	master, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s on a pty: %w", name, err)
	}

	s := &Session{
		id:      uuid.NewString(),
		cmd:     cmd,
		master:  master,
		ctl:     discipline.New(opts.Kernel),
		buf:     newOutputBuffer(opts.BufferSize),
		timeout: opts.Timeout,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.log = opts.Logger.With().
		Str("session", s.id).
		Str("command", name).
		Int("pid", cmd.Process.Pid).
		Logger()

	if err := s.setup(opts); err != nil {
		_ = s.Close()
		return nil, err
	}

	go s.readLoop()

	s.log.Debug().Bool("raw", opts.Raw).Msg("Session started")
	return s, nil
}

func (s *Session) setup(opts Options) error {
	term, err := tty.Open(s.master, tty.WithKernel(opts.Kernel), tty.WithLogger(s.log))
	if err != nil {
		return fmt.Errorf("failed to wrap pty master: %w", err)
	}
	s.term = term

	fd, err := discipline.Fileno(term)
	if err != nil {
		return err
	}
	if err := s.ctl.SetCloseOnExec(fd); err != nil {
		return fmt.Errorf("failed to mark pty master close-on-exec: %w", err)
	}

	if opts.Raw {
		if err := s.ctl.SetMode(term, termios.Raw); err != nil {
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
	}
	return nil
}

func (s *Session) readLoop() {
	defer close(s.done)

	chunk := make([]byte, readChunkSize)
	for {
		n, err := s.master.Read(chunk)
		if n > 0 {
			s.buf.Write(chunk[:n])
			select {
			case s.notify <- struct{}{}:
			default:
			}
		}
		if err == nil {
			continue
		}

		switch {
		case errors.Is(err, io.EOF), errors.Is(err, syscall.EIO):
			// Linux reports EIO on the master once every slave descriptor is closed.
			s.readErr = io.EOF
		case errors.Is(err, os.ErrClosed):
			s.readErr = ErrClosed
		default:
			s.readErr = fmt.Errorf("failed to read pty: %w", err)
		}
		s.log.Debug().Err(err).Msg("Output stream ended")
		return
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Pid returns the child's process id.
func (s *Session) Pid() int {
	return s.cmd.Process.Pid
}

// Send writes p to the child's terminal input.
func (s *Session) Send(p []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.master.Write(p); err != nil {
		return fmt.Errorf("failed to write to pty: %w", err)
	}
	return nil
}

// Write implements io.Writer on top of Send.
func (s *Session) Write(p []byte) (int, error) {
	if err := s.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SendLine writes line followed by a newline.
func (s *Session) SendLine(line string) error {
	return s.Send([]byte(line + "\n"))
}

// SendEOF makes the child's next read on its terminal return end-of-file.
// The terminal is left in canonical mode with echo off.
func (s *Session) SendEOF() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.ctl.SendEOF(s.term)
}

// SetRaw switches the child's terminal between raw and cooked mode.
func (s *Session) SetRaw(raw bool) error {
	if s.closed.Load() {
		return ErrClosed
	}
	m := termios.Cooked
	if raw {
		m = termios.Raw
	}
	return s.ctl.SetMode(s.term, m)
}

// Mode returns the mode the pty handle believes it is in.
func (s *Session) Mode() termios.Mode {
	return s.term.Mode()
}

// Expect waits until re matches the unconsumed output and returns the match
// followed by its submatches. Output up to the end of the match is consumed.
//
// It fails with ErrTimeout once the session timeout elapses, io.EOF when the
// child closed its terminal without a match, or ctx.Err() on cancellation.
func (s *Session) Expect(ctx context.Context, re *regexp.Regexp) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		// Observe the end of stream before matching so that the last chunk
		// read is always tried.
		finished := s.finished()

		if groups, ok := s.buf.Match(re); ok {
			s.log.Trace().Str("pattern", re.String()).Msg("Matched output")
			return groups, nil
		}
		if finished {
			return nil, s.readErr
		}

		select {
		case <-s.notify:
		case <-s.done:
		case <-timer.C:
			return nil, fmt.Errorf("%w after %s: %q", ErrTimeout, s.timeout, re.String())
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Stream copies output to w as it arrives until the child closes its
// terminal or ctx is cancelled. Copied output is consumed.
func (s *Session) Stream(ctx context.Context, w io.Writer) error {
	for {
		finished := s.finished()

		if data := s.buf.Take(); len(data) > 0 {
			if _, err := w.Write(data); err != nil {
				return err
			}
		}
		if finished {
			if errors.Is(s.readErr, io.EOF) {
				return nil
			}
			return s.readErr
		}

		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Output returns the unconsumed output without consuming it.
func (s *Session) Output() []byte {
	return s.buf.Bytes()
}

// Wait waits for the child to exit. It is safe to call more than once.
func (s *Session) Wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
		s.log.Debug().Int("exit_code", s.ExitCode()).Msg("Child exited")
	})
	return s.waitErr
}

// ExitCode returns the child's exit code, or -1 if it has not been waited for.
// A child killed by a signal reports 128 plus the signal number, as shells do.
func (s *Session) ExitCode() int {
	state := s.cmd.ProcessState
	if state == nil {
		return -1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// Close kills the child if it is still running, releases the pty and reaps
// the process.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		if kerr := s.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			s.log.Debug().Err(kerr).Msg("Failed to kill child")
		}
		if s.term != nil {
			_ = s.term.Close()
		}
		if cerr := s.master.Close(); cerr != nil {
			err = fmt.Errorf("failed to close pty master: %w", cerr)
		}
		_ = s.Wait()

		s.log.Debug().Msg("Session closed")
	})
	return err
}

func (s *Session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
