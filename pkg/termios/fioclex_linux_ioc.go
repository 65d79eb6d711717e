//go:build linux && (mips || mipsle || mips64 || mips64le || ppc || ppc64 || ppc64le || sparc64)

package termios

// FIOCLEX is _IO('f', 1) on architectures with their own ioctl numbering.
const ioctlCloseOnExec = 0x20006601
