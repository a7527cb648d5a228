// Package sshsession implements the SSH Session component of spec.md
// §4.2: a remote shell reached over golang.org/x/crypto/ssh, its output
// streamed to the event bus, its input/resize serialized through a
// single-consumer command inbox. Grounded on original_source/ssh/*.rs
// (kihyun1998/rusterm) for connect/auth/channel semantics, translated
// from the Rust original's non-blocking-read-plus-sleep loop (forced by
// the ssh2 crate's single-threaded API) into two goroutines: one blocked
// in Read, one draining the command inbox — see SPEC_FULL.md §4.
package sshsession

import "errors"

var (
	ErrSessionNotFound      = errors.New("sshsession: session not found")
	ErrSessionClosed        = errors.New("sshsession: session closed")
	ErrConnectionFailed     = errors.New("sshsession: connection failed")
	ErrAuthenticationFailed = errors.New("sshsession: authentication failed")
)

// AuthMethod mirrors original_source/ssh/types.rs's AuthMethod enum:
// exactly one of Password or PrivateKey must be set.
type AuthMethod struct {
	Password string

	PrivateKeyPath       string
	PrivateKeyPassphrase string // optional, only meaningful with PrivateKeyPath
}

func (a AuthMethod) isPrivateKey() bool { return a.PrivateKeyPath != "" }

// Config describes a remote host to connect to, matching
// original_source/ssh/types.rs's SshConfig.
type Config struct {
	Host     string
	Port     uint16
	Username string
	Auth     AuthMethod
}

// OutputEvent is the payload published on eventbus.TopicSSHOutput.
type OutputEvent struct {
	SessionID string
	Data      []byte
}

// ExitEvent is the payload published on eventbus.TopicSSHExit, mirroring
// original_source/ssh/types.rs's SshExitEvent{session_id, reason}.
type ExitEvent struct {
	SessionID string
	Reason    string
}
