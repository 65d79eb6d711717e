package termios_test

import (
	"os"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/wavexx/expect/pkg/termios"
)

// openPair opens a pty pair or skips when the host has none.
func openPair(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("Skipping test: pty not available: %v", err)
	}
	t.Cleanup(func() {
		slave.Close()
		master.Close()
	})
	return master, slave
}

func TestSystem_GetSetAttr(t *testing.T) {
	_, slave := openPair(t)
	fd := int(slave.Fd())

	before, err := termios.System.GetAttr(fd)
	require.NoError(t, err)

	require.NoError(t, termios.System.SetAttrDrain(fd, termios.MakeRaw(before)))

	after, err := termios.System.GetAttr(fd)
	require.NoError(t, err)
	assert.False(t, termios.IsCanonical(after))
	assert.Zero(t, after.Lflag&unix.ECHO)

	require.NoError(t, termios.System.SetAttrDrain(fd, before))
	restored, err := termios.System.GetAttr(fd)
	require.NoError(t, err)
	assert.Equal(t, before.Lflag, restored.Lflag)
}

func TestSystem_GetAttrNotATerminal(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	_, err = termios.System.GetAttr(int(r.Fd()))
	require.Error(t, err)
	assert.True(t, termios.IsKernelError(err))
	assert.ErrorIs(t, err, unix.ENOTTY)
}

func TestSystem_SetCloseOnExecIdempotent(t *testing.T) {
	_, slave := openPair(t)
	fd := int(slave.Fd())

	// Files opened by the os package already carry the flag.
	_, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, 0)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, termios.System.SetCloseOnExec(fd))
		flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
		require.NoError(t, err)
		assert.NotZero(t, flags&unix.FD_CLOEXEC, "call %d", i+1)
	}
}

func TestSystem_SetCloseOnExecPipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	fd := int(r.Fd())
	_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFD, 0)
	require.NoError(t, err)

	require.NoError(t, termios.System.SetCloseOnExec(fd))

	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	require.NoError(t, err)
	assert.Equal(t, unix.FD_CLOEXEC, flags&unix.FD_CLOEXEC)
}

func TestSystem_SetCloseOnExecBadDescriptor(t *testing.T) {
	err := termios.System.SetCloseOnExec(-1)
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.EBADF)
	assert.Equal(t, -int(unix.EBADF), termios.Code(err))
}

func TestSystem_Write(t *testing.T) {
	master, slave := openPair(t)

	n, err := termios.System.Write(int(master.Fd()), []byte("ping\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 16)
	n, err = slave.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping\n", string(buf[:n]))
}
