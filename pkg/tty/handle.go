// Package tty provides the runtime-owned handles that wrap open character
// devices. A handle owns the runtime's bookkeeping for its device, notably the
// raw mode flag; the descriptor inside is only lent out through Fileno.
package tty

import (
	"fmt"
	"os"

	"github.com/wavexx/expect/pkg/termios"
)

// HandleType identifies the kind of device a handle wraps
type HandleType string

const (
	TypeTTY  HandleType = "tty"
	TypePipe HandleType = "pipe"
)

// Handle is an opaque runtime handle.
type Handle interface {
	Type() HandleType
}

// descriptorHandle is implemented by handles backed by a file descriptor.
// ok is false once the handle has been closed.
type descriptorHandle interface {
	Handle
	fileno() (fd int, ok bool)
}

// Fileno returns the descriptor wrapped by h. It performs no system call.
func Fileno(h Handle) (int, error) {
	if h == nil {
		return -1, fmt.Errorf("%w: nil handle", termios.ErrInvalidHandle)
	}
	dh, ok := h.(descriptorHandle)
	if !ok {
		return -1, fmt.Errorf("%w: %s handle", termios.ErrInvalidHandle, h.Type())
	}
	fd, ok := dh.fileno()
	if !ok {
		return -1, fmt.Errorf("%w: %s handle is closed", termios.ErrInvalidHandle, h.Type())
	}
	return fd, nil
}

// descriptor extracts the descriptor of f without switching it to blocking
// mode, which os.File.Fd would do.
func descriptor(f *os.File) (int, error) {
	if f == nil {
		return -1, fmt.Errorf("%w: nil file", termios.ErrInvalidHandle)
	}
	rc, err := f.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("failed to access %s: %w", f.Name(), err)
	}
	fd := -1
	if err := rc.Control(func(raw uintptr) { fd = int(raw) }); err != nil {
		return -1, fmt.Errorf("failed to access %s: %w", f.Name(), err)
	}
	return fd, nil
}
