package sshsession

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/mordilloSan/termbridge/internal/eventbus"
	"github.com/mordilloSan/termbridge/internal/logger"
	"github.com/mordilloSan/termbridge/internal/sessionid"
)

const readChunkSize = 8192

// command is the single-consumer inbox message type, mirroring
// original_source/ssh/session.rs's SshCommand enum (Write/Resize).
type command struct {
	write  []byte
	resize *resizeCmd
}

type resizeCmd struct {
	cols, rows uint16
}

// inbox is an unbounded, FIFO, single-consumer command queue. spec.md
// §4.2 calls for an unbounded inbox (original_source/ssh/session.rs uses
// mpsc::unbounded_channel()) so Write/Resize never reject under
// backpressure the way a bounded channel would.
type inbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []command
	closed bool
}

func newInbox() *inbox {
	q := &inbox{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *inbox) push(cmd command) {
	q.mu.Lock()
	q.queue = append(q.queue, cmd)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *inbox) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// pop blocks until a command is queued, returning ok=false once closed
// and drained.
func (q *inbox) pop() (cmd command, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.queue) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.queue) == 0 && q.closed {
		return command{}, false
	}
	cmd = q.queue[0]
	q.queue = q.queue[1:]
	return cmd, true
}

// Session is one connected SSH shell. All writes and resizes funnel
// through inbox so only one goroutine ever drives the ssh.Session; a
// second, independent goroutine owns the blocking Read. This replaces
// original_source's single-threaded non-blocking-poll-plus-sleep loop
// (forced by the ssh2 crate) with Go's natural one-goroutine-per-
// blocking-call idiom — see SPEC_FULL.md §4.
type Session struct {
	id     string
	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser
	bus    *eventbus.Bus

	inbox *inbox

	mu   sync.Mutex
	open bool
}

// Create dials host, authenticates, opens a PTY-backed shell channel and
// starts the session's I/O goroutines, under a freshly generated id.
func (m *Manager) Create(cfg Config, cols, rows uint16) (string, error) {
	id := sessionid.New()
	if err := m.CreateWithID(id, cfg, cols, rows); err != nil {
		return "", err
	}
	return id, nil
}

// CreateWithID is Create with a caller-supplied id, used by the Tab
// Lifecycle Coordinator's create-tab-first flow (spec.md §4.5/§4.6):
// the id is allocated and a tab-created event emitted before the
// connection is attempted, so a connect failure can still report into
// that tab's output stream instead of failing the call outright.
func (m *Manager) CreateWithID(id string, cfg Config, cols, rows uint16) error {
	authMethods, err := ResolveAuth(cfg.Auth)
	if err != nil {
		return err
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return fmt.Errorf("%w: open channel: %v", ErrConnectionFailed, err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if cols == 0 {
		cols = 120
	}
	if rows == 0 {
		rows = 32
	}
	if err := sess.RequestPty("xterm-256color", int(rows), int(cols), modes); err != nil {
		sess.Close()
		client.Close()
		return fmt.Errorf("%w: request pty: %v", ErrConnectionFailed, err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return fmt.Errorf("%w: stdin pipe: %v", ErrConnectionFailed, err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return fmt.Errorf("%w: stdout pipe: %v", ErrConnectionFailed, err)
	}

	if err := sess.Shell(); err != nil {
		sess.Close()
		client.Close()
		return fmt.Errorf("%w: start shell: %v", ErrConnectionFailed, err)
	}

	s := &Session{
		id:     id,
		client: client,
		sess:   sess,
		stdin:  stdin,
		bus:    m.bus,
		inbox:  newInbox(),
		open:   true,
	}
	m.put(id, s)

	go s.consumeInbox()
	go s.pump(stdout)

	logger.InfoKV("ssh session started", "session", id, "host", cfg.Host, "user", cfg.Username)
	return nil
}

// ResolveAuth turns an AuthMethod into the ssh.AuthMethod list the
// x/crypto/ssh client expects, matching original_source/ssh/session.rs's
// authenticate() dispatch on AuthMethod::{Password,PrivateKey}.
func ResolveAuth(a AuthMethod) ([]ssh.AuthMethod, error) {
	switch {
	case a.isPrivateKey():
		key, err := os.ReadFile(a.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read private key: %v", ErrAuthenticationFailed, err)
		}
		var signer ssh.Signer
		if a.PrivateKeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(a.PrivateKeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse private key: %v", ErrAuthenticationFailed, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	case a.Password != "":
		return []ssh.AuthMethod{ssh.Password(a.Password)}, nil
	default:
		return nil, fmt.Errorf("%w: no auth method supplied", ErrAuthenticationFailed)
	}
}

// SSHAgentAuthMethod is used by sftpsession's agent-fallback auth; exported
// so that package can build an ssh.ClientConfig with the same fallback
// semantics as original_source/sftp/session.rs's userauth_agent() path.
func SSHAgentAuthMethod() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("%w: SSH_AUTH_SOCK not set", ErrAuthenticationFailed)
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("%w: dial ssh-agent: %v", ErrAuthenticationFailed, err)
	}
	ag := agent.NewClient(conn)
	return ssh.PublicKeysCallback(ag.Signers), nil
}

// Write enqueues input data for the session's single writer goroutine.
func (m *Manager) Write(id string, data []byte) error {
	s := m.get(id)
	if s == nil {
		return ErrSessionNotFound
	}
	if !s.isOpen() {
		return ErrSessionClosed
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.inbox.push(command{write: cp})
	return nil
}

// Resize enqueues a PTY window-change request.
func (m *Manager) Resize(id string, cols, rows uint16) error {
	s := m.get(id)
	if s == nil {
		return ErrSessionNotFound
	}
	if !s.isOpen() {
		return ErrSessionClosed
	}
	s.inbox.push(command{resize: &resizeCmd{cols: cols, rows: rows}})
	return nil
}

// Close tears down the SSH session and its underlying connection.
func (m *Manager) Close(id string) error {
	s := m.delete(id)
	if s == nil {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	s.inbox.close()

	var errs []error
	if err := s.sess.Close(); err != nil && err != io.EOF {
		errs = append(errs, err)
	}
	if err := s.client.Close(); err != nil {
		errs = append(errs, err)
	}
	logger.InfoKV("ssh session closed", "session", id)
	if len(errs) > 0 {
		return fmt.Errorf("sshsession: cleanup errors: %v", errs)
	}
	return nil
}

func (s *Session) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// consumeInbox is the single consumer goroutine: it is the only writer
// of stdin and the only caller of WindowChange, so writes stay in
// submission order and never interleave with resize requests.
func (s *Session) consumeInbox() {
	for {
		cmd, ok := s.inbox.pop()
		if !ok {
			return
		}
		switch {
		case cmd.write != nil:
			if _, err := s.stdin.Write(cmd.write); err != nil {
				logger.WarnKV("ssh write failed", "session", s.id, "error", err)
			}
		case cmd.resize != nil:
			if err := s.sess.WindowChange(int(cmd.resize.rows), int(cmd.resize.cols)); err != nil {
				logger.WarnKV("ssh resize failed", "session", s.id, "error", err)
			}
		}
	}
}

// pump is the dedicated blocking-read goroutine, publishing output
// chunks and a final exit event, mirroring original_source's read arm
// (Ok(0) => "Connection closed", Err(e) => "Read error: {e}").
func (s *Session) pump(stdout io.Reader) {
	buf := make([]byte, readChunkSize)
	reason := "Connection closed"
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			// spec.md §4.2: invalid UTF-8 is lossily replaced, never
			// passed through raw, before it reaches a subscriber.
			chunk := []byte(strings.ToValidUTF8(string(buf[:n]), "�"))
			s.bus.Publish(eventbus.Event{
				Topic:     eventbus.TopicSSHOutput,
				SessionID: s.id,
				Data:      OutputEvent{SessionID: s.id, Data: chunk},
			})
		}
		if err != nil {
			if err != io.EOF {
				reason = fmt.Sprintf("Read error: %v", err)
			}
			break
		}
	}

	s.mu.Lock()
	s.open = false
	s.mu.Unlock()

	s.bus.Publish(eventbus.Event{
		Topic:     eventbus.TopicSSHExit,
		SessionID: s.id,
		Data:      ExitEvent{SessionID: s.id, Reason: reason},
	})
}
