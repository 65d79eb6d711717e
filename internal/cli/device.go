package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/wavexx/expect/pkg/tty"
)

// device is an open terminal and its runtime handle.
type device struct {
	name   string
	file   *os.File
	handle *tty.TTY
	owned  bool
}

// openDevice opens path, or wraps standard input when path is empty. The
// device never becomes the controlling terminal of this process.
func openDevice(path string) (*device, error) {
	d := &device{name: "stdin", file: os.Stdin}
	if path != "" {
		f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		d.name, d.file, d.owned = path, f, true
	}

	h, err := tty.Open(d.file, tty.WithKernel(kernel), tty.WithLogger(log.Logger))
	if err != nil {
		d.closeFile()
		return nil, fmt.Errorf("%s is not a terminal: %w", d.name, err)
	}
	d.handle = h

	return d, nil
}

func (d *device) Close() error {
	d.handle.Close()
	return d.closeFile()
}

func (d *device) closeFile() error {
	if !d.owned {
		return nil
	}
	return d.file.Close()
}
