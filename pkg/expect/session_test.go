package expect

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"regexp"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/wavexx/expect/pkg/termios"
)

func requirePTY(t *testing.T, commands ...string) {
	t.Helper()
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("Skipping test: pty not available: %v", err)
	}
	master.Close()
	slave.Close()

	for _, c := range commands {
		if _, err := exec.LookPath(c); err != nil {
			t.Skipf("Skipping test: %s not found", c)
		}
	}
}

func spawn(t *testing.T, name string, args []string, opts Options) *Session {
	t.Helper()
	requirePTY(t, name)

	nop := zerolog.Nop()
	opts.Logger = &nop
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}

	s, err := Spawn(context.Background(), name, args, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func masterAttributes(t *testing.T, s *Session) termios.Attributes {
	t.Helper()
	fd, err := s.term.Fileno()
	require.NoError(t, err)
	attr, err := termios.System.GetAttr(fd)
	require.NoError(t, err)
	return attr
}

func TestSession_SendLineAndEOF(t *testing.T) {
	s := spawn(t, "cat", nil, Options{})
	ctx := context.Background()

	require.NoError(t, s.SendLine("hello"))
	groups, err := s.Expect(ctx, regexp.MustCompile(`hel+o`))
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, groups)

	require.NoError(t, s.SendEOF())
	require.NoError(t, s.Wait())
	assert.Equal(t, 0, s.ExitCode())

	attr := masterAttributes(t, s)
	assert.True(t, termios.IsCanonical(attr))
	assert.Zero(t, attr.Lflag&unix.ECHO)
}

func TestSession_Submatches(t *testing.T) {
	s := spawn(t, "sh", []string{"-c", "echo value=42"}, Options{})
	ctx := context.Background()

	groups, err := s.Expect(ctx, regexp.MustCompile(`value=(\d+)`))
	require.NoError(t, err)
	assert.Equal(t, []string{"value=42", "42"}, groups)

	_, err = s.Expect(ctx, regexp.MustCompile(`value`))
	assert.ErrorIs(t, err, io.EOF, "the match was consumed and the child is gone")
}

func TestSession_Timeout(t *testing.T) {
	s := spawn(t, "cat", nil, Options{Timeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := s.Expect(context.Background(), regexp.MustCompile(`never`))

	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestSession_ContextCancelled(t *testing.T) {
	s := spawn(t, "cat", nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Expect(ctx, regexp.MustCompile(`never`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_SetRaw(t *testing.T) {
	s := spawn(t, "cat", nil, Options{})

	require.NoError(t, s.SetRaw(true))
	assert.Equal(t, termios.Raw, s.Mode())
	attr := masterAttributes(t, s)
	assert.False(t, termios.IsCanonical(attr))
	assert.Zero(t, attr.Oflag&unix.OPOST, "full raw mode, not the runtime's partial one")

	require.NoError(t, s.SetRaw(false))
	assert.Equal(t, termios.Cooked, s.Mode())
	assert.True(t, termios.IsCanonical(masterAttributes(t, s)))
}

func TestSession_SpawnRaw(t *testing.T) {
	s := spawn(t, "cat", nil, Options{Raw: true})

	assert.Equal(t, termios.Raw, s.Mode())
	assert.False(t, termios.IsCanonical(masterAttributes(t, s)))
}

func TestSession_Stream(t *testing.T) {
	s := spawn(t, "sh", []string{"-c", "printf 'one two'"}, Options{})

	var out bytes.Buffer
	require.NoError(t, s.Stream(context.Background(), &out))
	assert.Equal(t, "one two", out.String())
	assert.Empty(t, s.Output())
}

func TestSession_ExitCode(t *testing.T) {
	s := spawn(t, "sh", []string{"-c", "exit 3"}, Options{})

	err := s.Wait()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, s.ExitCode())
}

func TestSession_ExitCodeKilledBySignal(t *testing.T) {
	s := spawn(t, "sh", []string{"-c", "kill -9 $$"}, Options{})

	assert.Equal(t, -1, s.ExitCode())
	require.Error(t, s.Wait())
	assert.Equal(t, 128+int(unix.SIGKILL), s.ExitCode())
}

func TestSession_Closed(t *testing.T) {
	s := spawn(t, "cat", nil, Options{})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Expect(context.Background(), regexp.MustCompile(`x`))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Send([]byte("x")), ErrClosed)
	assert.ErrorIs(t, s.SendEOF(), ErrClosed)
	assert.ErrorIs(t, s.SetRaw(true), ErrClosed)
}

func TestSession_ID(t *testing.T) {
	s := spawn(t, "cat", nil, Options{})

	_, err := uuid.Parse(s.ID())
	assert.NoError(t, err)
	assert.Positive(t, s.Pid())
}

func TestSpawn_MissingCommand(t *testing.T) {
	requirePTY(t)

	_, err := Spawn(context.Background(), "/nonexistent/command", nil, Options{})
	assert.Error(t, err)
}

func TestOptions_Defaults(t *testing.T) {
	var o Options
	o.setDefaults()

	assert.Equal(t, DefaultTimeout, o.Timeout)
	assert.Equal(t, DefaultBufferSize, o.BufferSize)
	assert.Equal(t, termios.System, o.Kernel)
	assert.NotNil(t, o.Logger)
}
