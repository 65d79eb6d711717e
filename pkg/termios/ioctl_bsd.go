//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package termios

import "golang.org/x/sys/unix"

const (
	ioctlReadTermios       = unix.TIOCGETA
	ioctlWriteTermiosDrain = unix.TIOCSETAW

	// FIOCLEX is _IO('f', 1) on every BSD.
	ioctlCloseOnExec = 0x20006601
)
