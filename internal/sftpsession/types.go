// Package sftpsession implements the SFTP Session component of spec.md
// §4.3: one SSH transport plus SFTP subsystem, serving synchronous
// file/directory operations and 64KiB chunked transfers with progress.
// Grounded on original_source/sftp/{session,types,manager}.rs, with the
// SSH-agent auth fallback from SPEC_FULL.md §4 and private-key auth from
// SPEC_FULL.md §1.3.
package sftpsession

import (
	"errors"

	"github.com/mordilloSan/termbridge/internal/sshsession"
)

var (
	// ErrSessionNotFound is returned both for an unknown id and for an id
	// that is currently checked out by another in-flight operation — per
	// spec.md §4.3, checkout makes the session appear absent from the
	// registry rather than exposing a distinct "busy" error.
	ErrSessionNotFound      = errors.New("sftpsession: session not found")
	ErrConnectionFailed     = errors.New("sftpsession: connection failed")
	ErrAuthenticationFailed = errors.New("sftpsession: authentication failed")
	ErrPathNotDirectory     = errors.New("sftpsession: path exists but is not a directory")
)

// AuthMethod is the same shape as sshsession.AuthMethod; Config.Auth is
// optional here (spec.md §4.3: absent ⇒ SSH agent fallback), unlike an
// SSH tab where auth is mandatory.
type AuthMethod = sshsession.AuthMethod

// Config describes the remote host an SFTP session connects to, matching
// spec.md §3's Config shape for SSH/SFTP. Auth is a pointer so "no auth
// supplied" (agent fallback) is representable.
type Config struct {
	Host     string
	Port     uint16
	Username string
	Auth     *AuthMethod
}

// FileEntry mirrors spec.md §3's File Entry, emitted by directory
// listings.
type FileEntry struct {
	Name        string
	Path        string
	IsDirectory bool
	SizeBytes   int64
	ModifiedSec int64
	Permissions string
}

// ProgressEvent mirrors spec.md §3's Progress Event.
type ProgressEvent struct {
	TransferID      string
	BytesTransfered int64
	TotalBytes      int64
	Percentage      int
}
