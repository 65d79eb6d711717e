// Package discipline controls the line discipline of a terminal whose
// descriptor is owned by a runtime handle.
//
// The runtime's own mode switch only tracks a raw flag and applies a partial
// raw profile, and it has no way to deliver end-of-file without closing the
// device. This package reaches through the handle to the descriptor and
// drives the kernel attributes directly, while keeping the runtime's flag in
// step with what the kernel actually does.
//
// # OPERATIONS
//
//   - Fileno: resolves a handle to its descriptor, without a system call.
//   - SetCloseOnExec: marks a descriptor close-on-exec (FIOCLEX). Idempotent.
//   - SetMode: cooked mode is delegated to the runtime unchanged; raw mode
//     first updates the runtime flag, then applies cfmakeraw(3) with drain
//     semantics.
//   - SendEOF: switches to canonical input with echo off, then writes a
//     newline followed by the configured EOF character in a single write.
//     The canonical state is kept afterwards; re-enter raw mode if needed.
//
// # USAGE
//
//	t, err := tty.Open(master)
//	if err != nil {
//	    return err
//	}
//	if err := discipline.SetMode(t, termios.Raw); err != nil {
//	    return err // the handle is unusable, see below
//	}
//	// ... later, let the reader on the other side see end-of-file
//	if err := discipline.SendEOF(t); err != nil {
//	    return err
//	}
//
// # ERROR HANDLING
//
// Errors are returned to the caller and never logged or retried here. Kernel
// failures are *termios.Error values carrying the errno; termios.Code turns
// any error into the negated errno convention.
//
// When SetMode(Raw) fails after the runtime flag was updated, the flag says
// raw while the kernel may still be cooked. The update is not rolled back:
// callers must treat the handle as unusable from then on.
//
// A short write of the EOF sequence fails with termios.ErrShortWrite and is
// not retried.
//
// # THREAD SAFETY
//
// Every operation is a fetch-modify-write of kernel state with no locking.
// Concurrent calls on the same handle can overwrite each other's changes;
// distinct handles need no coordination. Attribute records are fetched fresh
// on every call and never cached.
package discipline
