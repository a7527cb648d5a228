// Package ptysession implements the PTY Session component of spec.md
// §4.1: a local shell running under a pseudo-terminal, its output streamed
// to the event bus and its input/resize/close driven by the IPC/Command
// Facade layer. Structure follows the teacher's bridge/terminal package
// (PTY lifecycle, environment setup, SIGHUP-then-kill teardown) adapted
// from a multi-user web-session model to a single local-user session
// registry keyed by session id.
package ptysession

import "errors"

var (
	// ErrSessionNotFound is returned when an operation targets an id with
	// no live PTY session.
	ErrSessionNotFound = errors.New("ptysession: session not found")
	// ErrSessionClosed is returned when an operation targets a session
	// whose shell process has already exited.
	ErrSessionClosed = errors.New("ptysession: session closed")
)

// Config describes how to start a PTY-backed shell. Shell defaults to the
// user's login shell (falling back to bash, then sh) when empty; Cwd
// defaults to the invoking user's home directory when empty.
type Config struct {
	Shell string
	Cwd   string
	Env   map[string]string
	Cols  uint16
	Rows  uint16
}

// OutputEvent is the payload published on eventbus.TopicPTYOutput.
type OutputEvent struct {
	SessionID string
	Data      []byte
}

// ExitEvent is the payload published on eventbus.TopicPTYExit.
type ExitEvent struct {
	SessionID string
	Err       error
}
