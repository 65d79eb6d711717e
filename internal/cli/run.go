package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/wavexx/expect/internal/metrics"
	"github.com/wavexx/expect/pkg/discipline"
	"github.com/wavexx/expect/pkg/expect"
	"github.com/wavexx/expect/pkg/termios"
	"github.com/wavexx/expect/pkg/tty"
)

const (
	relayChunkSize    = 1024
	relayPollInterval = 100 * time.Millisecond
)

type runOptions struct {
	expects []string
	timeout time.Duration
	raw     bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Run a command on a pseudo-terminal",
		Long: `Run a command on a new pseudo-terminal and relay its output.

Each --expect pattern is waited for in order before anything else happens;
output up to the end of each match is consumed. The command then receives
standard input: when it is a terminal the session is interactive and the
local terminal is switched to raw mode until the command exits, otherwise
the input is copied and end-of-file is delivered once it is exhausted.

ttyctl exits with the command's exit status.`,
		Example: `  ttyctl run -- sh -c 'read x; echo got $x' < input.txt
  ttyctl run --expect 'password:' --timeout 5s -- ssh host`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("timeout") {
				opts.timeout = cfg.Expect.Timeout
			}
			return runSession(cmd, args, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.expects, "expect", "e", nil, "regular expression to wait for before relaying input (repeatable)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "time to wait for each --expect match (default from expect.timeout)")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "put the command's terminal in raw mode")

	return cmd
}

func runSession(cmd *cobra.Command, args []string, opts runOptions) error {
	patterns := make([]*regexp.Regexp, 0, len(opts.expects))
	for _, e := range opts.expects {
		re, err := regexp.Compile(e)
		if err != nil {
			return fmt.Errorf("invalid --expect pattern %q: %w", e, err)
		}
		patterns = append(patterns, re)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	stdin := cmd.InOrStdin()
	localTerm, interactive := terminalFile(stdin)

	sessionOpts := expect.Options{
		Timeout:    opts.timeout,
		BufferSize: cfg.Expect.BufferSize,
		Raw:        opts.raw,
		Logger:     &log.Logger,
		Kernel:     kernel,
	}
	if interactive {
		if cols, rows, err := term.GetSize(int(localTerm.Fd())); err == nil {
			sessionOpts.Cols, sessionOpts.Rows = uint16(cols), uint16(rows)
		}
	}

	session, err := expect.Spawn(ctx, args[0], args[1:], sessionOpts)
	if err != nil {
		return err
	}
	defer session.Close()

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	log.Debug().
		Str("session", session.ID()).
		Int("pid", session.Pid()).
		Bool("interactive", interactive).
		Msg("Command started")

	for _, re := range patterns {
		if _, err := session.Expect(ctx, re); err != nil {
			metrics.ExpectMatchesTotal.WithLabelValues(expectResult(err)).Inc()
			return fmt.Errorf("failed waiting for %q: %w", re.String(), err)
		}
		metrics.ExpectMatchesTotal.WithLabelValues("matched").Inc()
	}

	streamErr := make(chan error, 1)
	go func() {
		streamErr <- session.Stream(ctx, cmd.OutOrStdout())
	}()

	if interactive {
		restore, err := enterRaw(localTerm)
		if err != nil {
			return err
		}
		defer restore()

		relayCtx, stopRelay := context.WithCancel(ctx)
		relayDone := make(chan struct{})
		go func() {
			defer close(relayDone)
			if err := relayTerminal(relayCtx, session, localTerm); err != nil {
				log.Debug().Err(err).Msg("Input relay stopped")
			}
		}()
		// The relay must be gone before the local terminal is restored.
		defer func() {
			stopRelay()
			<-relayDone
		}()
	} else {
		go forwardInput(session, stdin)
	}

	if err := <-streamErr; err != nil {
		return fmt.Errorf("failed relaying output: %w", err)
	}

	if err := session.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: session.ExitCode()}
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

// forwardInput copies r to the session and then delivers end-of-file.
func forwardInput(session *expect.Session, r io.Reader) {
	if _, err := io.Copy(session, r); err != nil {
		log.Debug().Err(err).Msg("Input forwarding stopped")
		return
	}
	if err := session.SendEOF(); err != nil {
		log.Debug().Err(err).Int("code", termios.Code(err)).Msg("Failed to deliver end-of-file")
	}
}

// relayTerminal copies keystrokes from f to w until ctx is cancelled or f
// reaches end-of-file. Reads are polled so none is left pending once the
// session is over.
func relayTerminal(ctx context.Context, w io.Writer, f *os.File) error {
	fd := int(f.Fd())
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	buf := make([]byte, relayChunkSize)

	for ctx.Err() == nil {
		n, err := unix.Poll(fds, int(relayPollInterval.Milliseconds()))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("failed to poll input: %w", err)
		}
		if n == 0 {
			continue
		}

		nr, err := unix.Read(fd, buf)
		switch {
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			return fmt.Errorf("failed to read input: %w", err)
		case nr == 0:
			return nil
		}
		if _, err := w.Write(buf[:nr]); err != nil {
			return err
		}
	}
	return nil
}

func terminalFile(r io.Reader) (*os.File, bool) {
	f, ok := r.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil, false
	}
	return f, true
}

// enterRaw switches the local terminal to raw mode and returns the function
// that puts it back.
func enterRaw(f *os.File) (func(), error) {
	h, err := tty.Open(f, tty.WithKernel(kernel), tty.WithLogger(log.Logger))
	if err != nil {
		return nil, err
	}

	ctl := discipline.New(kernel)
	if err := ctl.SetMode(h, termios.Raw); err != nil {
		// The runtime flag already says raw; putting it back restores the
		// attributes it saved.
		_ = ctl.SetMode(h, termios.Cooked)
		return nil, fmt.Errorf("failed to switch local terminal to raw mode: %w", err)
	}

	return func() {
		if err := ctl.SetMode(h, termios.Cooked); err != nil {
			log.Error().Err(err).Msg("Failed to restore local terminal")
		}
		h.Close()
	}, nil
}

func expectResult(err error) string {
	switch {
	case errors.Is(err, expect.ErrTimeout):
		return "timeout"
	case errors.Is(err, io.EOF):
		return "eof"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
