package metrics

import (
	"time"

	"github.com/wavexx/expect/pkg/termios"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type instrumentedKernel struct {
	next termios.Kernel
}

// InstrumentKernel returns a Kernel that counts and times every call made
// through k.
func InstrumentKernel(k termios.Kernel) termios.Kernel {
	if k == nil {
		k = termios.System
	}
	return &instrumentedKernel{next: k}
}

func observe(op string, start time.Time, err error) {
	KernelCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	status := statusSuccess
	if err != nil {
		status = statusError
	}
	KernelCallsTotal.WithLabelValues(op, status).Inc()
}

func (k *instrumentedKernel) GetAttr(fd int) (termios.Attributes, error) {
	start := time.Now()
	attr, err := k.next.GetAttr(fd)
	observe(termios.OpGetAttr, start, err)
	return attr, err
}

func (k *instrumentedKernel) SetAttrDrain(fd int, attr termios.Attributes) error {
	start := time.Now()
	err := k.next.SetAttrDrain(fd, attr)
	observe(termios.OpSetAttr, start, err)
	return err
}

func (k *instrumentedKernel) Write(fd int, p []byte) (int, error) {
	start := time.Now()
	n, err := k.next.Write(fd, p)
	observe(termios.OpWrite, start, err)
	return n, err
}

func (k *instrumentedKernel) SetCloseOnExec(fd int) error {
	start := time.Now()
	err := k.next.SetCloseOnExec(fd)
	observe(termios.OpCloseOnExec, start, err)
	return err
}
