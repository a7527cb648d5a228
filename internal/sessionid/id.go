// Package sessionid generates the opaque identifiers spec.md's Data Model
// uses to name PTY, SSH and SFTP sessions: 128-bit values rendered as
// lowercase hex with dashes, so they're safe to embed in event topic
// strings ("pty-output-<id>") without further escaping.
package sessionid

import "github.com/google/uuid"

// New returns a fresh session identifier.
func New() string {
	return uuid.NewString()
}
