//go:build !windows

package ipc

import (
	"fmt"
	"net"
	"os"

	"github.com/coreos/go-systemd/v22/activation"

	"github.com/mordilloSan/termbridge/internal/logger"
)

// ListenUnix binds the per-user Unix socket at
// /tmp/<appName>-<uid>.sock, mode 0600, per spec.md §6. It first checks
// for an already-bound systemd-activation socket
// (LISTEN_FDS/LISTEN_PID, via github.com/coreos/go-systemd/v22/activation)
// — the library call the teacher's bridge/main.go should have used
// instead of hand-parsing those env vars itself, per SPEC_FULL.md §6 —
// falling back to binding the path directly. A stale socket file from a
// crashed prior instance is unconditionally unlinked before binding,
// per the Open Question resolution in DESIGN.md.
func ListenUnix(appName string) (net.Listener, func(), error) {
	if listeners, err := activation.Listeners(); err == nil && len(listeners) > 0 {
		logger.InfoKV("ipc using systemd socket activation", "count", len(listeners))
		return listeners[0], func() {}, nil
	}

	path := unixSocketPath(appName, os.Getuid())

	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return nil, nil, fmt.Errorf("%w: remove stale socket %s: %v", ErrBindFailed, path, err)
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrBindFailed, path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, nil, fmt.Errorf("%w: chmod %s: %v", ErrBindFailed, path, err)
	}

	cleanup := func() { os.Remove(path) }
	return ln, cleanup, nil
}
