package termios

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Kernel operation names carried by Error.
const (
	OpGetAttr     = "tcgetattr"
	OpSetAttr     = "tcsetattr"
	OpWrite       = "write"
	OpCloseOnExec = "ioctl(FIOCLEX)"
)

var (
	// ErrInvalidHandle is returned when a handle does not resolve to a file descriptor.
	ErrInvalidHandle = errors.New("handle does not wrap a file descriptor")

	// ErrShortWrite is returned when a write is not accepted in full by a single call.
	ErrShortWrite = errors.New("short write")
)

// Error reports a failed kernel call on a descriptor.
type Error struct {
	Op  string
	Fd  int
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s on fd %d: %v", e.Op, e.Fd, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKernelError checks if err came from a failed kernel call
func IsKernelError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// Code converts err to the negated errno convention: 0 for nil, -errno when an
// errno is carried, -EINVAL for invalid handles and -EIO otherwise.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return -int(errno)
	}
	if errors.Is(err, ErrInvalidHandle) {
		return -int(unix.EINVAL)
	}
	return -int(unix.EIO)
}
