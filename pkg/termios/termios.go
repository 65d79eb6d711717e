// Package termios wraps the kernel terminal-attribute calls used to control the
// line discipline of a character device.
//
// Attributes are always handled as values: callers fetch the current record,
// transform a copy and write it back, so settings this package does not know
// about are carried through untouched.
package termios

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Attributes is a complete termios record as returned by the kernel.
type Attributes = unix.Termios

// Mode is the line discipline a handle is switched to.
type Mode int

const (
	// Cooked is line-buffered, canonical, echoing input.
	Cooked Mode = iota
	// Raw delivers input byte by byte with no editing, echo or signal characters.
	Raw
)

func (m Mode) String() string {
	switch m {
	case Cooked:
		return "cooked"
	case Raw:
		return "raw"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a mode name. "normal" and "canonical" are accepted as
// aliases of cooked.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cooked", "normal", "canonical":
		return Cooked, nil
	case "raw":
		return Raw, nil
	default:
		return Cooked, fmt.Errorf("invalid mode: %q (must be 'raw' or 'cooked')", s)
	}
}

// MakeRaw applies the cfmakeraw(3) transformation: no input translation, no
// output post-processing, no canonical processing, echo or signal generation,
// 8-bit characters and reads returning after a single byte with no delay.
func MakeRaw(a Attributes) Attributes {
	a.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	a.Oflag &^= unix.OPOST
	a.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	a.Cflag &^= unix.CSIZE | unix.PARENB
	a.Cflag |= unix.CS8
	a.Cc[unix.VMIN] = 1
	a.Cc[unix.VTIME] = 0
	return a
}

// Canonical enables line-buffered input with echo and echo-of-newline off.
func Canonical(a Attributes) Attributes {
	a.Lflag |= unix.ICANON
	a.Lflag &^= unix.ECHO | unix.ECHONL
	return a
}

// IsCanonical reports whether canonical input processing is enabled.
func IsCanonical(a Attributes) bool {
	return a.Lflag&unix.ICANON != 0
}

// EOFChar returns the configured end-of-file control character.
func EOFChar(a Attributes) byte {
	return a.Cc[unix.VEOF]
}
