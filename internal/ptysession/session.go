package ptysession

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/mordilloSan/termbridge/internal/eventbus"
	"github.com/mordilloSan/termbridge/internal/logger"
	"github.com/mordilloSan/termbridge/internal/sessionid"
)

// readChunkSize matches spec.md §4.1: output is pushed to the event bus
// in chunks of at most 8KiB rather than buffered for later polling.
const readChunkSize = 8192

// Session is a single PTY-backed shell process, grounded on the teacher's
// TerminalSession (bridge/terminal/manager.go) but pushing every read
// straight to the event bus instead of accumulating a pollable buffer.
type Session struct {
	id    string
	pty   *os.File
	cmd   *exec.Cmd
	shell string
	bus   *eventbus.Bus

	mu   sync.Mutex
	open bool
}

// Create starts a new PTY-backed shell and registers it under a fresh
// session id.
func (m *Manager) Create(cfg Config) (string, error) {
	shellPath, cwd, env, err := resolveShellEnv(cfg)
	if err != nil {
		return "", err
	}

	cmd := exec.Command(shellPath, "-i", "-l")
	cmd.Dir = cwd
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return "", fmt.Errorf("ptysession: start shell: %w", err)
	}

	cols, rows := cfg.Cols, cfg.Rows
	if cols == 0 {
		cols = 120
	}
	if rows == 0 {
		rows = 32
	}
	_ = pty.Setsize(ptmx, &pty.Winsize{Cols: cols, Rows: rows})

	id := sessionid.New()
	s := &Session{id: id, pty: ptmx, cmd: cmd, shell: shellPath, bus: m.bus, open: true}
	m.put(id, s)

	go s.pump()
	logger.InfoKV("pty session started", "session", id, "shell", shellPath)
	return id, nil
}

func resolveShellEnv(cfg Config) (shellPath, cwd string, env []string, err error) {
	cwd = cfg.Cwd
	if cwd == "" {
		if u, uerr := user.Current(); uerr == nil {
			cwd = u.HomeDir
		} else {
			cwd = "/"
		}
	}

	shellPath = cfg.Shell
	if shellPath == "" {
		shellPath = os.Getenv("SHELL")
	}
	if shellPath == "" {
		shellPath = "bash"
	}
	if _, lookErr := exec.LookPath(shellPath); lookErr != nil {
		shellPath = "sh"
		if _, lookErr := exec.LookPath(shellPath); lookErr != nil {
			return "", "", nil, fmt.Errorf("ptysession: no usable shell found: %w", lookErr)
		}
	}

	base := append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
		"SHELL="+shellPath,
	)
	for k, v := range cfg.Env {
		base = append(base, k+"="+v)
	}
	return shellPath, cwd, base, nil
}

// Info returns the child process id and resolved shell path for a session,
// for the IPC add_local_tab response's {pid, shell} fields.
func (m *Manager) Info(id string) (pid int, shell string, err error) {
	s := m.get(id)
	if s == nil {
		return 0, "", ErrSessionNotFound
	}
	if s.cmd.Process == nil {
		return 0, s.shell, ErrSessionNotFound
	}
	return s.cmd.Process.Pid, s.shell, nil
}

// Write sends data to the session's PTY, as keyboard input.
func (m *Manager) Write(id string, data []byte) error {
	s := m.get(id)
	if s == nil {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()
	if !open {
		return ErrSessionClosed
	}
	_, err := s.pty.Write(data)
	return err
}

// Resize adjusts the PTY's reported terminal size.
func (m *Manager) Resize(id string, cols, rows uint16) error {
	s := m.get(id)
	if s == nil {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()
	if !open {
		return ErrSessionClosed
	}
	return pty.Setsize(s.pty, &pty.Winsize{Cols: cols, Rows: rows})
}

// Close terminates the shell process and its PTY. Grounded on the
// teacher's CloseTerminal: SIGHUP the process group, close the PTY file,
// then wait with a short grace period before SIGKILL.
func (m *Manager) Close(id string) error {
	s := m.delete(id)
	if s == nil {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()

	var errs []error
	if s.cmd.Process != nil {
		_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGHUP)
	}
	if err := s.pty.Close(); err != nil && !isExpectedFileClosed(err) {
		errs = append(errs, fmt.Errorf("pty close: %w", err))
	}
	if s.cmd.Process != nil {
		done := make(chan error, 1)
		go func() { done <- s.cmd.Wait() }()
		select {
		case err := <-done:
			if err != nil && !isExpectedWaitError(err) {
				errs = append(errs, fmt.Errorf("wait: %w", err))
			}
		case <-time.After(750 * time.Millisecond):
			_ = s.cmd.Process.Kill()
			if err := <-done; err != nil && !isExpectedWaitError(err) {
				errs = append(errs, fmt.Errorf("kill wait: %w", err))
			}
		}
	}
	logger.InfoKV("pty session closed", "session", id)
	if len(errs) > 0 {
		return fmt.Errorf("ptysession: cleanup errors: %v", errs)
	}
	return nil
}

// pump owns the single blocking-read goroutine for this session (the
// "pinned OS thread" of spec.md §5), publishing every chunk straight to
// the event bus and a final exit event when the shell terminates.
func (s *Session) pump() {
	buf := make([]byte, readChunkSize)
	var exitErr error
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			// spec.md §4.1: invalid UTF-8 is lossily replaced, never
			// passed through raw, before it reaches a subscriber.
			chunk := []byte(strings.ToValidUTF8(string(buf[:n]), "�"))
			s.bus.Publish(eventbus.Event{
				Topic:     eventbus.TopicPTYOutput,
				SessionID: s.id,
				Data:      OutputEvent{SessionID: s.id, Data: chunk},
			})
		}
		if err != nil {
			if !isExpectedFileClosed(err) {
				exitErr = err
			}
			break
		}
	}

	s.mu.Lock()
	s.open = false
	s.mu.Unlock()

	s.bus.Publish(eventbus.Event{
		Topic:     eventbus.TopicPTYExit,
		SessionID: s.id,
		Data:      ExitEvent{SessionID: s.id, Err: exitErr},
	})
}

func isExpectedWaitError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "signal: hangup") ||
		strings.Contains(msg, "signal: terminated") ||
		strings.Contains(msg, "signal: killed") ||
		strings.Contains(strings.ToLower(msg), "status 129") ||
		strings.Contains(strings.ToLower(msg), "status 137")
}

func isExpectedFileClosed(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "bad file descriptor") ||
		strings.Contains(s, "file already closed") ||
		strings.Contains(s, "input/output error")
}
