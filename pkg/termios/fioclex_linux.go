//go:build linux && !(mips || mipsle || mips64 || mips64le || ppc || ppc64 || ppc64le || sparc64)

package termios

// FIOCLEX from asm-generic/ioctls.h; x/sys/unix does not export it.
const ioctlCloseOnExec = 0x5451
