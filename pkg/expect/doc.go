// Package expect drives interactive programs through a pseudo-terminal.
//
// A Session starts a child on a new pty and collects everything the child
// writes into a bounded buffer. Expect blocks until a regular expression
// matches that buffer, then consumes the output up to the end of the match,
// so consecutive calls walk forward through the conversation.
//
// # USAGE
//
//	s, err := expect.Spawn(ctx, "sh", nil, expect.Options{Timeout: 5 * time.Second})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if _, err := s.Expect(ctx, regexp.MustCompile(`\$ $`)); err != nil {
//	    return err
//	}
//	s.SendLine("exit")
//	return s.Wait()
//
// # TERMINAL CONTROL
//
// The pty master is wrapped in a tty.TTY and every terminal operation goes
// through the discipline package: SetRaw uses the full raw profile rather
// than the runtime's partial one, and SendEOF delivers end-of-file to the
// child without closing the terminal. After SendEOF the terminal is
// canonical with echo off; call SetRaw(true) to go back to raw mode.
//
// # ERRORS
//
// Expect returns ErrTimeout when the session timeout elapses, io.EOF when
// the child closed its side of the terminal without producing a match, and
// ctx.Err() when the context is cancelled. Operations on a closed session
// return ErrClosed.
package expect
