package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/wavexx/expect/pkg/expect"
)

func requireCommands(t *testing.T, names ...string) {
	t.Helper()
	openSlave(t)
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("Skipping test: %s not found", name)
		}
	}
}

func TestRun_RelaysOutput(t *testing.T) {
	requireCommands(t, "sh")

	out, err := executeCommand(t, "", "run", "--", "sh", "-c", "echo relayed")
	require.NoError(t, err)
	assert.Contains(t, out, "relayed")
}

func TestRun_ForwardsInputAndEOF(t *testing.T) {
	requireCommands(t, "sh")

	out, err := executeCommand(t, "first\nsecond\n", "run", "--", "sh", "-c", "while read line; do echo got:$line; done; echo done")
	require.NoError(t, err)
	assert.Contains(t, out, "got:first")
	assert.Contains(t, out, "got:second")
	assert.Contains(t, out, "done")
}

func TestRun_ExpectConsumesOutput(t *testing.T) {
	requireCommands(t, "sh")

	out, err := executeCommand(t, "", "run", "-e", `ready`, "--", "sh", "-c", "echo ready; echo after")
	require.NoError(t, err)
	assert.NotContains(t, out, "ready")
	assert.Contains(t, out, "after")
}

func TestRun_ExpectFailure(t *testing.T) {
	requireCommands(t, "sh")

	_, err := executeCommand(t, "", "run", "-e", `never`, "--timeout", "5s", "--", "sh", "-c", "echo other")
	require.Error(t, err)
	assert.ErrorIs(t, err, io.EOF)
}

func TestRun_ExitStatus(t *testing.T) {
	requireCommands(t, "sh")

	_, err := executeCommand(t, "", "run", "--", "sh", "-c", "exit 7")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 7, exitErr.Code)
	assert.Equal(t, "exit status 7", exitErr.Error())
}

func TestRun_ExitStatusKilledBySignal(t *testing.T) {
	requireCommands(t, "sh")

	_, err := executeCommand(t, "", "run", "--", "sh", "-c", "kill -9 $$")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 128+int(unix.SIGKILL), exitErr.Code)
	assert.Equal(t, "exit status 137", exitErr.Error())
}

func TestRun_InvalidPattern(t *testing.T) {
	_, err := executeCommand(t, "", "run", "-e", `(`, "--", "true")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --expect pattern")
}

func TestRun_RequiresCommand(t *testing.T) {
	_, err := executeCommand(t, "", "run")
	assert.Error(t, err)
}

func TestExpectResult(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{err: expect.ErrTimeout, expected: "timeout"},
		{err: io.EOF, expected: "eof"},
		{err: context.Canceled, expected: "cancelled"},
		{err: errors.New("boom"), expected: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, expectResult(tt.err))
		})
	}
}

// syncBuffer is a bytes.Buffer safe for a writer and a reader goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRelayTerminal_CopiesUntilEOF(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	_, err = w.Write([]byte("keys\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var out syncBuffer
	require.NoError(t, relayTerminal(context.Background(), &out, r))
	assert.Equal(t, "keys\n", out.String())
}

func TestRelayTerminal_StopsOnCancel(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- relayTerminal(ctx, &out, r) }()

	_, err = w.Write([]byte("a"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return out.String() == "a" }, 2*time.Second, 10*time.Millisecond)

	// No more input arrives; cancellation alone must end the relay.
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}
