package tty

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/wavexx/expect/pkg/termios"
)

// TTY is the runtime handle of a terminal device.
//
// The handle tracks whether it believes the device is in raw mode. SetMode
// updates that flag and applies the runtime's own discipline, which is only a
// partial raw mode: output post-processing stays on. Callers needing a fully
// raw device use the discipline package on top of it.
type TTY struct {
	fd atomic.Int64

	mu     sync.Mutex
	mode   termios.Mode
	saved  *termios.Attributes
	kernel termios.Kernel
	log    zerolog.Logger
}

// Option configures a TTY
type Option func(*TTY)

// WithKernel replaces the system-call layer, mainly for tests and instrumentation.
func WithKernel(k termios.Kernel) Option {
	return func(t *TTY) {
		if k != nil {
			t.kernel = k
		}
	}
}

// WithLogger sets the logger used for mode transitions.
func WithLogger(l zerolog.Logger) Option {
	return func(t *TTY) {
		t.log = l
	}
}

// Open wraps the terminal open on f. The file stays owned by the caller and
// must outlive the handle.
func Open(f *os.File, opts ...Option) (*TTY, error) {
	fd, err := descriptor(f)
	if err != nil {
		return nil, err
	}
	return New(fd, opts...)
}

// New wraps fd. The initial mode flag is derived from the device's current
// canonical bit.
func New(fd int, opts ...Option) (*TTY, error) {
	t := &TTY{
		kernel: termios.System,
		log:    log.Logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With().Str("component", "tty").Int("fd", fd).Logger()

	attr, err := t.kernel.GetAttr(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to read terminal attributes: %w", err)
	}
	if !termios.IsCanonical(attr) {
		t.mode = termios.Raw
	}
	t.fd.Store(int64(fd))

	t.log.Debug().Str("mode", t.mode.String()).Msg("TTY handle opened")
	return t, nil
}

func (t *TTY) Type() HandleType {
	return TypeTTY
}

// Fileno returns the wrapped descriptor, or ErrInvalidHandle once closed.
func (t *TTY) Fileno() (int, error) {
	return Fileno(t)
}

func (t *TTY) fileno() (int, bool) {
	if t == nil {
		return -1, false
	}
	fd := t.fd.Load()
	return int(fd), fd >= 0
}

// Mode returns the mode the runtime believes the device is in.
func (t *TTY) Mode() termios.Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// SetMode records m as the current mode and applies the runtime discipline.
//
// The flag is updated before any kernel call, so it reflects the request
// even when the kernel rejects it. Leaving cooked mode saves the device's
// attributes; returning to cooked restores them, or applies a sane canonical
// profile when nothing was saved (the handle was opened already raw).
func (t *TTY) SetMode(m termios.Mode) error {
	fd, err := Fileno(t)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.mode
	t.mode = m
	if prev == m {
		return nil
	}

	cur, err := t.kernel.GetAttr(fd)
	if err != nil {
		return err
	}

	var next termios.Attributes
	switch m {
	case termios.Raw:
		saved := cur
		t.saved = &saved
		next = runtimeRaw(cur)
	case termios.Cooked:
		if t.saved != nil {
			next = *t.saved
		} else {
			next = sane(cur)
		}
	default:
		t.mode = prev
		return fmt.Errorf("unsupported mode: %s", m)
	}

	if err := t.kernel.SetAttrDrain(fd, next); err != nil {
		return err
	}
	if m == termios.Cooked {
		t.saved = nil
	}

	t.log.Debug().
		Str("from", prev.String()).
		Str("to", m.String()).
		Msg("TTY mode changed")
	return nil
}

// Close invalidates the handle. The underlying device is left open.
func (t *TTY) Close() error {
	t.fd.Store(-1)
	return nil
}

// runtimeRaw is the runtime's raw profile: no canonical processing, echo or
// signals, but output post-processing and ECHONL are kept.
func runtimeRaw(a termios.Attributes) termios.Attributes {
	a.Iflag &^= unix.BRKINT | unix.ICRNL | unix.INPCK | unix.ISTRIP | unix.IXON
	a.Oflag |= unix.ONLCR
	a.Cflag |= unix.CS8
	a.Lflag &^= unix.ECHO | unix.ICANON | unix.IEXTEN | unix.ISIG
	a.Cc[unix.VMIN] = 1
	a.Cc[unix.VTIME] = 0
	return a
}

func sane(a termios.Attributes) termios.Attributes {
	a.Iflag |= unix.BRKINT | unix.ICRNL | unix.IXON
	a.Iflag &^= unix.INLCR | unix.IGNCR
	a.Oflag |= unix.OPOST | unix.ONLCR
	a.Cflag = a.Cflag&^unix.CSIZE | unix.CS8 | unix.CREAD
	a.Lflag |= unix.ICANON | unix.ECHO | unix.ECHOE | unix.ECHOK | unix.ISIG | unix.IEXTEN
	a.Lflag &^= unix.ECHONL
	return a
}
