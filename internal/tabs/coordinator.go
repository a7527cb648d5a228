package tabs

import (
	"fmt"
	"sync"

	"github.com/mordilloSan/termbridge/internal/eventbus"
	"github.com/mordilloSan/termbridge/internal/logger"
	"github.com/mordilloSan/termbridge/internal/ptysession"
	"github.com/mordilloSan/termbridge/internal/sessionid"
	"github.com/mordilloSan/termbridge/internal/sshsession"
)

// ansiRed frames a connect-failure message the way spec.md §7 requires:
// rendered as if it were ordinary terminal output, in red.
const ansiRed = "\x1b[31m%s\x1b[0m\r\n"

// Coordinator owns tab metadata (type, title, active) layered over the PTY
// and SSH managers, which only know about sessions, not tabs. Grounded on
// original_source/ipc/events.rs's TabCreatedPayload/TabClosedPayload shape
// and the create-tab-first flow sketched across original_source/ssh/*.rs
// and spec.md §4.2/§4.6.
type Coordinator struct {
	mu   sync.Mutex
	tabs map[string]*Tab

	pty *ptysession.Manager
	ssh *sshsession.Manager
	bus *eventbus.Bus
}

func NewCoordinator(bus *eventbus.Bus, pty *ptysession.Manager, ssh *sshsession.Manager) *Coordinator {
	return &Coordinator{tabs: make(map[string]*Tab), pty: pty, ssh: ssh, bus: bus}
}

// AddLocalTab creates a PTY session synchronously and emits tab-created
// only after it succeeds (spec.md §4.5: "add_local_tab creates the PTY
// synchronously"). The returned id is both the pty id and the tab id.
func (c *Coordinator) AddLocalTab(cfg ptysession.Config) (id string, pid int, shell string, err error) {
	id, err = c.pty.Create(cfg)
	if err != nil {
		return "", 0, "", err
	}
	pid, shell, err = c.pty.Info(id)
	if err != nil {
		logger.WarnKV("pty info unavailable right after create", "pty", id, "error", err)
	}

	title := shell
	if title == "" {
		title = "local"
	}
	c.register(&Tab{ID: id, Type: TypeLocal, Title: title, Active: true})
	c.emitCreated(CreatedEvent{TabID: id, TabType: TypeLocal, Title: title, PTYID: id})
	return id, pid, shell, nil
}

// AddSSHTab implements the create-tab-first flow: the id is allocated and
// a tab-created event emitted before the connection is attempted. On
// connect failure it synthesizes an ANSI-red output event into the tab's
// stream rather than returning a hard error, and releases the id.
func (c *Coordinator) AddSSHTab(cfg sshsession.Config, cols, rows uint16) string {
	id := sessionid.New()
	title := fmt.Sprintf("%s@%s", cfg.Username, cfg.Host)

	c.register(&Tab{ID: id, Type: TypeSSH, Title: title, Active: false})
	c.emitCreated(CreatedEvent{TabID: id, TabType: TypeSSH, Title: title, SessionID: id})

	go c.connectSSHTab(id, cfg, cols, rows)
	return id
}

func (c *Coordinator) connectSSHTab(id string, cfg sshsession.Config, cols, rows uint16) {
	if err := c.ssh.CreateWithID(id, cfg, cols, rows); err != nil {
		logger.WarnKV("ssh tab connect failed", "tab", id, "host", cfg.Host, "error", err)
		c.bus.Publish(eventbus.Event{
			Topic:     eventbus.TopicSSHOutput,
			SessionID: id,
			Data: sshsession.OutputEvent{
				SessionID: id,
				Data:      []byte(fmt.Sprintf(ansiRed, err.Error())),
			},
		})
		c.release(id)
		return
	}
	c.mu.Lock()
	if t, ok := c.tabs[id]; ok {
		t.Active = true
	}
	c.mu.Unlock()
}

// CloseTab attempts to close the tab's backing session in both managers;
// it succeeds if either does, matching spec.md §4.5's "success if either
// succeeds, error otherwise".
func (c *Coordinator) CloseTab(id string) error {
	sshErr := c.ssh.Close(id)
	ptyErr := c.pty.Close(id)
	if sshErr == nil || ptyErr == nil {
		c.release(id)
		c.bus.Publish(eventbus.Event{
			Topic:     eventbus.TopicTabClosed,
			SessionID: id,
			Data:      ClosedEvent{TabID: id},
		})
		return nil
	}
	return fmt.Errorf("%w: ssh: %v, pty: %v", ErrTabNotFound, sshErr, ptyErr)
}

// ListTabs returns every tab the coordinator has registered and not yet
// released, for the IPC list_tabs command. It does not scan the PTY/SSH
// manager registries: a session created directly on a manager is not
// listed, and a local tab stays listed after its shell exits until
// CloseTab.
func (c *Coordinator) ListTabs() []Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Tab, 0, len(c.tabs))
	for _, t := range c.tabs {
		out = append(out, *t)
	}
	return out
}

func (c *Coordinator) register(t *Tab) {
	c.mu.Lock()
	c.tabs[t.ID] = t
	c.mu.Unlock()
}

func (c *Coordinator) release(id string) {
	c.mu.Lock()
	delete(c.tabs, id)
	c.mu.Unlock()
}

func (c *Coordinator) emitCreated(ev CreatedEvent) {
	c.bus.Publish(eventbus.Event{
		Topic:     eventbus.TopicTabCreated,
		SessionID: ev.TabID,
		Data:      ev,
	})
}
