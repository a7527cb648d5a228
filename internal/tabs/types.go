// Package tabs implements the Tab Lifecycle Coordinator of spec.md §4.6:
// it resolves a tab id against the PTY and SSH managers, emits
// tab-created/tab-closed exactly once per successful create/close, and
// implements the create-tab-first, connect-after flow for SSH described in
// §4.2 and §4.5. Tab ids are not a separate namespace: a tab's id is the
// underlying PTY or SSH session id (spec.md §3 — "Session ids are globally
// unique across PTY, SSH, and SFTP managers"), so the coordinator only
// needs to track the metadata those managers don't: tab type, title, and
// whether the backing session has been established (Active is not cleared
// when that session later exits).
package tabs

import "errors"

// ErrTabNotFound is returned by CloseTab when the id is unknown to both the
// PTY and SSH managers.
var ErrTabNotFound = errors.New("tabs: tab not found")

// Type distinguishes a local PTY tab from a remote SSH tab.
type Type string

const (
	TypeLocal Type = "local"
	TypeSSH   Type = "ssh"
)

// Tab is the coordinator's view of one open tab, returned by ListTabs.
type Tab struct {
	ID     string
	Type   Type
	Title  string
	Active bool
}

// CreatedEvent is the payload published on eventbus.TopicTabCreated,
// mirroring original_source/ipc/events.rs's TabCreatedPayload.
type CreatedEvent struct {
	TabID     string
	TabType   Type
	Title     string
	PTYID     string
	SessionID string
}

// ClosedEvent is the payload published on eventbus.TopicTabClosed.
type ClosedEvent struct {
	TabID string
}
