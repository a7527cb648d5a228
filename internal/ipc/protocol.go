// Package ipc implements the local IPC endpoint of spec.md §6: a
// per-user Unix socket (or Windows named pipe) speaking line-delimited
// JSON requests/responses, dispatched to a flat command table. Grounded
// on the teacher's bridge/main.go accept-loop/shutdown skeleton, with
// the teacher's yamux/binary-frame multiplexing dropped in favor of the
// spec's plain JSON-lines protocol, and original_source/ipc/protocol.rs
// for the exact request/response field shape.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for the IPC package, tested with errors.Is and wrapped
// with %w at each failure site, per spec.md §7's error-handling design.
var (
	ErrEmptyRequest   = errors.New("Empty request")
	ErrParseError     = errors.New("Invalid JSON")
	ErrUnknownCommand = errors.New("Unknown command")
	ErrInvalidParams  = errors.New("invalid params")
	ErrBindFailed     = errors.New("ipc: bind failed")
	ErrAcceptFailed   = errors.New("ipc: accept failed")
)

// errInvalidRequest reports malformed request JSON, matching spec.md
// §4.5's exact wire text ("Invalid JSON: …").
func errInvalidRequest(cause error) error {
	return fmt.Errorf("%w: %v", ErrParseError, cause)
}

// errUnknownCommand reports an unregistered command, matching spec.md
// §4.5's exact wire text ("Unknown command: …").
func errUnknownCommand(name string) error {
	return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

// Request is one line of client input, matching
// original_source/ipc/protocol.rs's IpcRequest{token, command, params}.
// Token is optional — present only when the caller wants to authenticate
// a privileged command; spec.md leaves token validation to the facade
// that owns the privileged operation.
type Request struct {
	Token   *string         `json:"token,omitempty"`
	Command string          `json:"command"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one line of server output, matching
// original_source/ipc/protocol.rs's IpcResponse{success, data, error}.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(data any) Response { return Response{Success: true, Data: data} }

func fail(err error) Response {
	return Response{Success: false, Error: err.Error()}
}
