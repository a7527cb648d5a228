package sftpsession

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/mordilloSan/termbridge/internal/eventbus"
)

// startSFTPServer runs a minimal golang.org/x/crypto/ssh server exposing
// only the "sftp" subsystem, backed by github.com/pkg/sftp's server side
// with root as its working directory: relative paths resolve under root,
// absolute paths are not confined to it, so the tests use relative paths.
// Grounded on the sftp subsystem wiring shown in
// _examples/other_examples' daytona ssh server (sftpHandler), adapted to
// a self-contained x/crypto/ssh server so the test needs no extra deps.
func startSFTPServer(t *testing.T, root string) (addr string, stop func()) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
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
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				serveSFTPConn(t, conn, cfg, root)
			}()
		}
	}()

	return ln.Addr().String(), func() {
		ln.Close()
		wg.Wait()
	}
}

func serveSFTPConn(t *testing.T, conn net.Conn, cfg *ssh.ServerConfig, root string) {
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
		go func(ch ssh.Channel) {
			for req := range requests {
				ok := req.Type == "subsystem"
				if req.WantReply {
					req.Reply(ok, nil)
				}
			}
		}(ch)

		go func(ch ssh.Channel) {
			defer ch.Close()
			server, err := sftp.NewServer(ch, sftp.WithServerWorkingDirectory(root))
			if err != nil {
				return
			}
			server.Serve()
		}(ch)
	}
}

func TestSFTPOperations(t *testing.T) {
	root := t.TempDir()
	addr, stop := startSFTPServer(t, root)
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	portNum, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	port := uint16(portNum)

	mgr := NewManager(eventbus.New())
	id, err := mgr.Create(Config{
		Host:     host,
		Port:     port,
		Username: "tester",
		Auth:     &AuthMethod{Password: "secret"},
	})
	require.NoError(t, err)
	require.Contains(t, mgr.List(), id)

	require.NoError(t, mgr.MkdirP(id, "a/b/c"))
	require.NoError(t, mgr.MkdirP(id, "a/b/c")) // idempotent

	entries, err := mgr.ListDirectory(id, "a/b")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "c", entries[0].Name)
	require.True(t, entries[0].IsDirectory)

	localFile := filepath.Join(t.TempDir(), "upload.txt")
	require.NoError(t, os.WriteFile(localFile, []byte("hello sftp world"), 0o644))
	require.NoError(t, mgr.Upload(id, localFile, "a/b/c/uploaded.txt", "xfer-1"))

	stat, err := mgr.Stat(id, "a/b/c/uploaded.txt")
	require.NoError(t, err)
	require.Equal(t, int64(len("hello sftp world")), stat.SizeBytes)

	downloaded := filepath.Join(t.TempDir(), "downloaded.txt")
	require.NoError(t, mgr.Download(id, "a/b/c/uploaded.txt", downloaded, "xfer-2"))
	data, err := os.ReadFile(downloaded)
	require.NoError(t, err)
	require.Equal(t, "hello sftp world", string(data))

	require.NoError(t, mgr.Rename(id, "a/b/c/uploaded.txt", "a/b/c/renamed.txt"))
	require.NoError(t, mgr.Unlink(id, "a/b/c/renamed.txt"))

	require.NoError(t, mgr.RmdirRecursive(id, "a"))
	_, err = mgr.Stat(id, "a")
	require.Error(t, err)

	require.NoError(t, mgr.Close(id))
	require.NotContains(t, mgr.List(), id)
}

func TestListDirectoryFiltersDotEntriesAndSortsCaseInsensitively(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "Zebra"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "apple.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Banana.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("h"), 0o644))

	addr, stop := startSFTPServer(t, root)
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	portNum, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	port := uint16(portNum)

	mgr := NewManager(eventbus.New())
	id, err := mgr.Create(Config{Host: host, Port: port, Username: "tester", Auth: &AuthMethod{Password: "secret"}})
	require.NoError(t, err)

	entries, err := mgr.ListDirectory(id, ".")
	require.NoError(t, err)

	for _, e := range entries {
		require.NotEqual(t, ".", e.Name)
		require.NotEqual(t, "..", e.Name)
	}

	// Directories first, then case-insensitive name order within each group.
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	require.Equal(t, []string{"Zebra", ".hidden", "apple.txt", "Banana.txt"}, names)
}

func TestCheckoutMakesSessionAppearAbsent(t *testing.T) {
	root := t.TempDir()
	addr, stop := startSFTPServer(t, root)
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	portNum, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	port := uint16(portNum)

	mgr := NewManager(eventbus.New())
	id, err := mgr.Create(Config{Host: host, Port: port, Username: "tester", Auth: &AuthMethod{Password: "secret"}})
	require.NoError(t, err)

	blockCh := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mgr.withSession(id, func(s *Session) error {
			close(blockCh)
			time.Sleep(100 * time.Millisecond)
			return nil
		})
	}()

	<-blockCh
	_, err = mgr.Stat(id, "/")
	require.ErrorIs(t, err, ErrSessionNotFound)

	wg.Wait()
	_, err = mgr.Stat(id, "/")
	require.NoError(t, err)
}

func TestOperationsOnUnknownSessionFail(t *testing.T) {
	mgr := NewManager(eventbus.New())
	_, err := mgr.ListDirectory("missing", "/")
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.ErrorIs(t, mgr.Close("missing"), ErrSessionNotFound)
}
