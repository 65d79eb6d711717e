package termios

import (
	"golang.org/x/sys/unix"
)

// Kernel is the set of system calls the discipline code performs. Every
// method acts on the kernel state of fd directly and keeps nothing between
// calls.
type Kernel interface {
	// GetAttr fetches the current attributes of fd.
	GetAttr(fd int) (Attributes, error)

	// SetAttrDrain writes attr to fd once all pending output has been transmitted.
	SetAttrDrain(fd int, attr Attributes) error

	// Write performs exactly one write call.
	Write(fd int, p []byte) (int, error)

	// SetCloseOnExec marks fd so that it is closed across exec.
	SetCloseOnExec(fd int) error
}

// System is the Kernel backed by real system calls.
var System Kernel = systemKernel{}

type systemKernel struct{}

func (systemKernel) GetAttr(fd int) (Attributes, error) {
	t, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return Attributes{}, &Error{Op: OpGetAttr, Fd: fd, Err: err}
	}
	return *t, nil
}

func (systemKernel) SetAttrDrain(fd int, attr Attributes) error {
	if err := unix.IoctlSetTermios(fd, ioctlWriteTermiosDrain, &attr); err != nil {
		return &Error{Op: OpSetAttr, Fd: fd, Err: err}
	}
	return nil
}

func (systemKernel) Write(fd int, p []byte) (int, error) {
	n, err := unix.Write(fd, p)
	if err != nil {
		if n < 0 {
			n = 0
		}
		return n, &Error{Op: OpWrite, Fd: fd, Err: err}
	}
	return n, nil
}

func (systemKernel) SetCloseOnExec(fd int) error {
	// FIOCLEX takes no argument.
	if err := unix.IoctlSetInt(fd, ioctlCloseOnExec, 0); err != nil {
		return &Error{Op: OpCloseOnExec, Fd: fd, Err: err}
	}
	return nil
}
