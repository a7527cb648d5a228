package ipc

import (
	"context"
	"encoding/json"
	"sync"
)

// Handler serves one IPC command. params is the raw JSON of the
// request's "params" field (nil when absent); the returned value becomes
// the response's "data" field.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Dispatcher is a flat command-name -> Handler table, the Command Facade's
// registration surface. It is the teacher's common/ipc/registry.go
// generalized from a two-level (handlerType, command) map to spec.md's
// single flat command namespace (ping, add_ssh_tab, add_local_tab,
// close_tab, list_tabs), and instance-scoped rather than package-global
// so each server (and each test) owns its own table.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register adds a handler for command. Panics on an empty command or nil
// handler — a programming error, not a runtime condition.
func (d *Dispatcher) Register(command string, h Handler) {
	if command == "" {
		panic("ipc: command cannot be empty")
	}
	if h == nil {
		panic("ipc: handler cannot be nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[command] = h
}

// Unregister removes command's handler, reporting whether one existed.
func (d *Dispatcher) Unregister(command string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handlers[command]; !ok {
		return false
	}
	delete(d.handlers, command)
	return true
}

// List returns the names of every registered command.
func (d *Dispatcher) List() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		out = append(out, name)
	}
	return out
}

// Dispatch looks up req.Command and invokes its handler, translating a
// missing command or handler error into a Response rather than an error
// return — the wire contract is always a Response, per spec.md §6.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	d.mu.RLock()
	h, found := d.handlers[req.Command]
	d.mu.RUnlock()

	if !found {
		return fail(errUnknownCommand(req.Command))
	}

	data, err := h(ctx, req.Params)
	if err != nil {
		return fail(err)
	}
	return ok(data)
}
