package sshsession

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/mordilloSan/termbridge/internal/eventbus"
)

// startEchoSSHServer spins up a minimal golang.org/x/crypto/ssh server on
// loopback that accepts password auth for user "tester"/"secret", opens
// one session channel, and echoes whatever it receives back out,
// acknowledging pty-req/shell/window-change requests. It exists purely
// to exercise Manager.Create/Write/Resize/Close against a real wire
// handshake without depending on an external sshd.
func startEchoSSHServer(t *testing.T) (addr string, stop func()) {
	t.Helper()

	signer, err := ssh.NewSignerFromKey(mustGenerateTestKey(t))
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "tester" && string(pass) == "secret" {
				return nil, nil
			}
			return nil, ssh.ErrNoAuth
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	done := make(chan struct{})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				serveOneConn(conn, cfg, done)
			}()
		}
	}()

	return ln.Addr().String(), func() {
		close(done)
		ln.Close()
		wg.Wait()
	}
}

func serveOneConn(conn net.Conn, cfg *ssh.ServerConfig, done chan struct{}) {
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			return
		}
		go func() {
			for req := range requests {
				switch req.Type {
				case "pty-req", "shell", "window-change":
					if req.WantReply {
						req.Reply(true, nil)
					}
				default:
					if req.WantReply {
						req.Reply(false, nil)
					}
				}
			}
		}()
		go func(ch ssh.Channel) {
			defer ch.Close()
			buf := make([]byte, 4096)
			for {
				select {
				case <-done:
					return
				default:
				}
				n, err := ch.Read(buf)
				if n > 0 {
					ch.Write(buf[:n])
				}
				if err != nil {
					return
				}
			}
		}(ch)
	}
}

func TestCreateWriteReadClose(t *testing.T) {
	addr, stop := startEchoSSHServer(t)
	defer stop()

	host, port := splitHostPort(t, addr)

	bus := eventbus.New()
	mgr := NewManager(bus)

	var mu sync.Mutex
	var out strings.Builder
	unsub := bus.Subscribe(eventbus.TopicSSHOutput, func(ev eventbus.Event) {
		oe, ok := ev.Data.(OutputEvent)
		if !ok {
			return
		}
		mu.Lock()
		out.Write(oe.Data)
		mu.Unlock()
	})
	defer unsub()

	id, err := mgr.Create(Config{
		Host:     host,
		Port:     port,
		Username: "tester",
		Auth:     AuthMethod{Password: "secret"},
	}, 80, 24)
	require.NoError(t, err)
	require.Contains(t, mgr.List(), id)

	require.NoError(t, mgr.Write(id, []byte("ping")))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return strings.Contains(out.String(), "ping")
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, mgr.Resize(id, 100, 40))
	require.NoError(t, mgr.Close(id))
	require.NotContains(t, mgr.List(), id)
}

func TestAuthenticationFailure(t *testing.T) {
	addr, stop := startEchoSSHServer(t)
	defer stop()

	host, port := splitHostPort(t, addr)

	mgr := NewManager(eventbus.New())
	_, err := mgr.Create(Config{
		Host:     host,
		Port:     port,
		Username: "tester",
		Auth:     AuthMethod{Password: "wrong"},
	}, 80, 24)
	require.Error(t, err)
}

func TestOperationsOnUnknownSessionFail(t *testing.T) {
	mgr := NewManager(eventbus.New())
	require.ErrorIs(t, mgr.Write("missing", []byte("x")), ErrSessionNotFound)
	require.ErrorIs(t, mgr.Resize("missing", 80, 24), ErrSessionNotFound)
	require.ErrorIs(t, mgr.Close("missing"), ErrSessionNotFound)
}
