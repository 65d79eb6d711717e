// Package termiostest provides a deterministic in-memory Kernel that records
// every call made against it.
package termiostest

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/wavexx/expect/pkg/termios"
)

// Call is one recorded operation. Attr is set for attribute writes and Data
// for byte writes.
type Call struct {
	Op   string
	Fd   int
	Attr termios.Attributes
	Data []byte
}

// Recorder implements termios.Kernel over per-descriptor attribute records.
// Descriptors without seeded attributes behave like non-terminals.
type Recorder struct {
	mu         sync.Mutex
	attrs      map[int]termios.Attributes
	cloexec    map[int]bool
	output     map[int][]byte
	failures   map[string]error
	writeLimit int
	calls      []Call
}

// New creates an empty recorder.
func New() *Recorder {
	return &Recorder{
		attrs:    make(map[int]termios.Attributes),
		cloexec:  make(map[int]bool),
		output:   make(map[int][]byte),
		failures: make(map[string]error),
	}
}

// Cooked returns a typical canonical attribute record with ^D as EOF.
func Cooked() termios.Attributes {
	var a termios.Attributes
	a.Iflag = unix.BRKINT | unix.ICRNL | unix.IXON
	a.Oflag = unix.OPOST | unix.ONLCR
	a.Cflag = unix.CS8 | unix.CREAD
	a.Lflag = unix.ICANON | unix.ECHO | unix.ECHOE | unix.ECHOK | unix.ISIG | unix.IEXTEN
	a.Cc[unix.VINTR] = 0x03
	a.Cc[unix.VEOF] = 0x04
	a.Cc[unix.VMIN] = 1
	return a
}

// SetAttributes seeds fd as a terminal with attr. It is not recorded.
func (r *Recorder) SetAttributes(fd int, attr termios.Attributes) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attrs[fd] = attr
}

// Attributes returns the current record of fd without recording a call.
func (r *Recorder) Attributes(fd int) termios.Attributes {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attrs[fd]
}

// FailOn makes every later call of op fail with err; a nil err clears it.
func (r *Recorder) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, op)
		return
	}
	r.failures[op] = err
}

// LimitWrites makes each write accept at most n bytes; 0 removes the limit.
func (r *Recorder) LimitWrites(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeLimit = n
}

// Note records an external event so its order relative to kernel calls can be
// asserted.
func (r *Recorder) Note(op string, fd int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: op, Fd: fd})
}

// Calls returns a copy of the call log.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Ops returns the operation names of the call log in order.
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]string, len(r.calls))
	for i, c := range r.calls {
		ops[i] = c.Op
	}
	return ops
}

// CallsFor returns the recorded calls of op.
func (r *Recorder) CallsFor(op string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Output returns every byte accepted by writes to fd.
func (r *Recorder) Output(fd int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.output[fd]...)
}

// CloseOnExec reports whether fd has been marked close-on-exec.
func (r *Recorder) CloseOnExec(fd int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cloexec[fd]
}

// Reset clears the call log, keeping attributes and configured failures.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) GetAttr(fd int) (termios.Attributes, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: termios.OpGetAttr, Fd: fd})
	if err := r.failures[termios.OpGetAttr]; err != nil {
		return termios.Attributes{}, &termios.Error{Op: termios.OpGetAttr, Fd: fd, Err: err}
	}
	attr, ok := r.attrs[fd]
	if !ok {
		return termios.Attributes{}, &termios.Error{Op: termios.OpGetAttr, Fd: fd, Err: unix.ENOTTY}
	}
	return attr, nil
}

func (r *Recorder) SetAttrDrain(fd int, attr termios.Attributes) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: termios.OpSetAttr, Fd: fd, Attr: attr})
	if err := r.failures[termios.OpSetAttr]; err != nil {
		return &termios.Error{Op: termios.OpSetAttr, Fd: fd, Err: err}
	}
	if _, ok := r.attrs[fd]; !ok {
		return &termios.Error{Op: termios.OpSetAttr, Fd: fd, Err: unix.ENOTTY}
	}
	r.attrs[fd] = attr
	return nil
}

func (r *Recorder) Write(fd int, p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: termios.OpWrite, Fd: fd, Data: append([]byte(nil), p...)})
	if err := r.failures[termios.OpWrite]; err != nil {
		return 0, &termios.Error{Op: termios.OpWrite, Fd: fd, Err: err}
	}
	n := len(p)
	if r.writeLimit > 0 && n > r.writeLimit {
		n = r.writeLimit
	}
	r.output[fd] = append(r.output[fd], p[:n]...)
	return n, nil
}

func (r *Recorder) SetCloseOnExec(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: termios.OpCloseOnExec, Fd: fd})
	if err := r.failures[termios.OpCloseOnExec]; err != nil {
		return &termios.Error{Op: termios.OpCloseOnExec, Fd: fd, Err: err}
	}
	if fd < 0 {
		return &termios.Error{Op: termios.OpCloseOnExec, Fd: fd, Err: unix.EBADF}
	}
	r.cloexec[fd] = true
	return nil
}

var _ termios.Kernel = (*Recorder)(nil)
