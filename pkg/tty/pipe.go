package tty

import (
	"os"
	"sync/atomic"
)

// Pipe is a descriptor-backed handle for a device that is not a terminal.
type Pipe struct {
	fd atomic.Int64
}

// NewPipe wraps the descriptor of f. The file stays owned by the caller.
func NewPipe(f *os.File) (*Pipe, error) {
	fd, err := descriptor(f)
	if err != nil {
		return nil, err
	}
	p := &Pipe{}
	p.fd.Store(int64(fd))
	return p, nil
}

func (p *Pipe) Type() HandleType {
	return TypePipe
}

func (p *Pipe) Fileno() (int, error) {
	return Fileno(p)
}

func (p *Pipe) fileno() (int, bool) {
	if p == nil {
		return -1, false
	}
	fd := p.fd.Load()
	return int(fd), fd >= 0
}

// Close invalidates the handle.
func (p *Pipe) Close() error {
	p.fd.Store(-1)
	return nil
}
