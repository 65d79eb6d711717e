package discipline

import (
	"errors"
	"fmt"

	"github.com/wavexx/expect/pkg/termios"
)

// eofSequenceLen is the length of the synthesized newline + EOF sequence.
const eofSequenceLen = 2

// Descriptor is the capability of resolving to an OS file descriptor.
type Descriptor interface {
	Fileno() (int, error)
}

// ModeSetter is the runtime's own mode primitive. It updates the runtime's
// raw flag regardless of what it manages to apply to the kernel.
type ModeSetter interface {
	SetMode(termios.Mode) error
}

// Device is a handle that both resolves to a descriptor and tracks a mode.
type Device interface {
	Descriptor
	ModeSetter
}

// Controller performs discipline operations through a Kernel.
type Controller struct {
	kernel termios.Kernel
}

// New creates a Controller; a nil kernel selects termios.System.
func New(k termios.Kernel) *Controller {
	if k == nil {
		k = termios.System
	}
	return &Controller{kernel: k}
}

var std = New(termios.System)

// Fileno resolves h to its descriptor. Failures match termios.ErrInvalidHandle.
func Fileno(h Descriptor) (int, error) {
	if h == nil {
		return -1, fmt.Errorf("%w: nil handle", termios.ErrInvalidHandle)
	}
	fd, err := h.Fileno()
	if err != nil {
		if errors.Is(err, termios.ErrInvalidHandle) {
			return -1, err
		}
		return -1, fmt.Errorf("%w: %v", termios.ErrInvalidHandle, err)
	}
	if fd < 0 {
		return -1, fmt.Errorf("%w: descriptor %d", termios.ErrInvalidHandle, fd)
	}
	return fd, nil
}

// SetCloseOnExec marks fd close-on-exec. Kernel errors are returned unchanged.
func (c *Controller) SetCloseOnExec(fd int) error {
	return c.kernel.SetCloseOnExec(fd)
}

// SetMode switches dev to m. See the package documentation for the failure
// window on the raw path.
func (c *Controller) SetMode(dev Device, m termios.Mode) error {
	if dev == nil {
		return fmt.Errorf("%w: nil handle", termios.ErrInvalidHandle)
	}

	switch m {
	case termios.Cooked:
		return dev.SetMode(termios.Cooked)
	case termios.Raw:
		return c.makeRaw(dev)
	default:
		return fmt.Errorf("unsupported mode: %s", m)
	}
}

func (c *Controller) makeRaw(dev Device) error {
	// Bookkeeping only: the runtime's raw profile is incomplete and its
	// result does not decide ours.
	_ = dev.SetMode(termios.Raw)

	fd, err := Fileno(dev)
	if err != nil {
		return err
	}

	attr, err := c.kernel.GetAttr(fd)
	if err != nil {
		return err
	}

	return c.kernel.SetAttrDrain(fd, termios.MakeRaw(attr))
}

// SendEOF makes a reader on the other side of h observe end-of-file. The
// device is left in canonical mode with echo disabled.
func (c *Controller) SendEOF(h Descriptor) error {
	fd, err := Fileno(h)
	if err != nil {
		return err
	}

	attr, err := c.kernel.GetAttr(fd)
	if err != nil {
		return err
	}

	// EOF is a canonical-mode signal; in raw mode the character is plain data.
	if err := c.kernel.SetAttrDrain(fd, termios.Canonical(attr)); err != nil {
		return err
	}

	seq := []byte{'\n', termios.EOFChar(attr)}
	n, err := c.kernel.Write(fd, seq)
	if err != nil {
		return err
	}
	if n != eofSequenceLen {
		return &termios.Error{
			Op:  termios.OpWrite,
			Fd:  fd,
			Err: fmt.Errorf("%w: %d of %d bytes", termios.ErrShortWrite, n, eofSequenceLen),
		}
	}
	return nil
}

// SetCloseOnExec marks fd close-on-exec using the system kernel.
func SetCloseOnExec(fd int) error {
	return std.SetCloseOnExec(fd)
}

// SetMode switches dev to m using the system kernel.
func SetMode(dev Device, m termios.Mode) error {
	return std.SetMode(dev, m)
}

// SendEOF synthesizes end-of-file on h using the system kernel.
func SendEOF(h Descriptor) error {
	return std.SendEOF(h)
}
