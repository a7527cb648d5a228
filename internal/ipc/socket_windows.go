//go:build windows

package ipc

import (
	"fmt"
	"net"
	"os"

	"github.com/Microsoft/go-winio"
)

// ListenUnix is named to match its Unix sibling's call sites in
// cmd/termbridge; on Windows it binds the named pipe
// \\.\pipe\<appName>-<USERNAME> instead, per spec.md §6. go-winio's
// ListenPipe already creates a fresh pipe instance per accepted
// connection internally, so — unlike original_source/ipc/platform/windows.rs,
// which has to juggle ServerOptions.first_pipe_instance/create_next_instance
// by hand — this needs no manual instance bookkeeping.
func ListenUnix(appName string) (net.Listener, func(), error) {
	username := os.Getenv("USERNAME")
	if username == "" {
		username = "default"
	}
	path := windowsPipeName(appName, username)

	ln, err := winio.ListenPipe(path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create pipe %s: %v", ErrBindFailed, path, err)
	}
	return ln, func() {}, nil
}
