package sftpsession

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/mordilloSan/termbridge/internal/eventbus"
	"github.com/mordilloSan/termbridge/internal/logger"
	"github.com/mordilloSan/termbridge/internal/sessionid"
	"github.com/mordilloSan/termbridge/internal/sshsession"
)

const transferChunkSize = 64 * 1024

// Session is one connected SFTP subsystem. It is never accessed by two
// goroutines at once: Manager.withSession checks it out of the registry
// for the duration of each operation.
type Session struct {
	id      string
	conn    *ssh.Client
	client  *sftp.Client
	dropped bool
}

// Create dials host, authenticates (falling back to the SSH agent when
// cfg.Auth is nil, matching original_source/sftp/session.rs's
// userauth_agent() path) and opens the SFTP subsystem.
func (m *Manager) Create(cfg Config) (string, error) {
	var methods []ssh.AuthMethod
	if cfg.Auth != nil {
		resolved, err := sshsession.ResolveAuth(*cfg.Auth)
		if err != nil {
			return "", err
		}
		methods = resolved
	} else {
		agentAuth, err := sshsession.SSHAgentAuthMethod()
		if err != nil {
			return "", fmt.Errorf("%w: no auth supplied and agent unavailable: %v", ErrAuthenticationFailed, err)
		}
		methods = []ssh.AuthMethod{agentAuth}
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return "", fmt.Errorf("%w: open sftp subsystem: %v", ErrConnectionFailed, err)
	}

	id := sessionid.New()
	m.register(id, &Session{id: id, conn: conn, client: client})
	logger.InfoKV("sftp session started", "session", id, "host", cfg.Host, "user", cfg.Username)
	return id, nil
}

// Close tears down the SFTP subsystem and its underlying connection.
func (m *Manager) Close(id string) error {
	return m.withSession(id, func(s *Session) error {
		s.dropped = true
		var errs []error
		if err := s.client.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		logger.InfoKV("sftp session closed", "session", id)
		if len(errs) > 0 {
			return fmt.Errorf("sftpsession: cleanup errors: %v", errs)
		}
		return nil
	})
}

// ListDirectory lists path, directories first then by case-insensitive
// name, skipping the "." and ".." entries, matching
// original_source/sftp/session.rs's list_directory.
func (m *Manager) ListDirectory(id, path string) ([]FileEntry, error) {
	var out []FileEntry
	err := m.withSession(id, func(s *Session) error {
		infos, err := s.client.ReadDir(path)
		if err != nil {
			return fmt.Errorf("sftpsession: list %s: %w", path, err)
		}
		out = make([]FileEntry, 0, len(infos))
		for _, fi := range infos {
			if fi.Name() == "." || fi.Name() == ".." {
				continue
			}
			out = append(out, entryFromInfo(joinRemote(path, fi.Name()), fi))
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].IsDirectory != out[j].IsDirectory {
				return out[i].IsDirectory
			}
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
		return nil
	})
	return out, err
}

// Stat returns the FileEntry for a single path.
func (m *Manager) Stat(id, path string) (FileEntry, error) {
	var entry FileEntry
	err := m.withSession(id, func(s *Session) error {
		fi, err := s.client.Stat(path)
		if err != nil {
			return fmt.Errorf("sftpsession: stat %s: %w", path, err)
		}
		entry = entryFromInfo(path, fi)
		return nil
	})
	return entry, err
}

// Home returns the remote user's home directory.
func (m *Manager) Home(id string) (string, error) {
	var home string
	err := m.withSession(id, func(s *Session) error {
		wd, err := s.client.Getwd()
		if err != nil {
			return fmt.Errorf("sftpsession: getwd: %w", err)
		}
		home = wd
		return nil
	})
	return home, err
}

// MkdirP creates path and all missing parents, idempotently: per
// spec.md §4.3, build the path incrementally, attempt mkdir 0755 at each
// level, and on failure stat that level — an existing directory is fine,
// an existing file is ErrPathNotDirectory, anything else is surfaced.
func (m *Manager) MkdirP(id, path string) error {
	return m.withSession(id, func(s *Session) error {
		parts := strings.Split(strings.Trim(path, "/"), "/")
		prefix := ""
		if strings.HasPrefix(path, "/") {
			prefix = "/"
		}
		for _, part := range parts {
			if part == "" {
				continue
			}
			if prefix == "" || prefix == "/" {
				prefix += part
			} else {
				prefix += "/" + part
			}
			if err := s.client.Mkdir(prefix); err != nil {
				fi, statErr := s.client.Stat(prefix)
				if statErr != nil {
					return fmt.Errorf("sftpsession: mkdir_p %s: %w", prefix, err)
				}
				if !fi.IsDir() {
					return fmt.Errorf("sftpsession: mkdir_p %s: %w", prefix, ErrPathNotDirectory)
				}
			} else if err := s.client.Chmod(prefix, 0o755); err != nil {
				return fmt.Errorf("sftpsession: mkdir_p chmod %s: %w", prefix, err)
			}
		}
		return nil
	})
}

// RmdirRecursive deletes path and everything under it, depth-first:
// files before their containing directory, failing fast on the first
// error.
func (m *Manager) RmdirRecursive(id, path string) error {
	return m.withSession(id, func(s *Session) error {
		return removeRecursive(s.client, path)
	})
}

func removeRecursive(client *sftp.Client, path string) error {
	fi, err := client.Stat(path)
	if err != nil {
		return fmt.Errorf("sftpsession: stat %s: %w", path, err)
	}
	if !fi.IsDir() {
		return client.Remove(path)
	}

	entries, err := client.ReadDir(path)
	if err != nil {
		return fmt.Errorf("sftpsession: read %s: %w", path, err)
	}
	for _, e := range entries {
		child := joinRemote(path, e.Name())
		if e.IsDir() {
			if err := removeRecursive(client, child); err != nil {
				return err
			}
		} else if err := client.Remove(child); err != nil {
			return fmt.Errorf("sftpsession: remove %s: %w", child, err)
		}
	}
	return client.RemoveDirectory(path)
}

// Unlink removes a single remote file (not a directory), distinct from
// RmdirRecursive per SPEC_FULL.md §1.3.
func (m *Manager) Unlink(id, path string) error {
	return m.withSession(id, func(s *Session) error {
		if err := s.client.Remove(path); err != nil {
			return fmt.Errorf("sftpsession: unlink %s: %w", path, err)
		}
		return nil
	})
}

// Rename renames/moves a remote path.
func (m *Manager) Rename(id, oldPath, newPath string) error {
	return m.withSession(id, func(s *Session) error {
		if err := s.client.Rename(oldPath, newPath); err != nil {
			return fmt.Errorf("sftpsession: rename %s -> %s: %w", oldPath, newPath, err)
		}
		return nil
	})
}

// Upload streams local to remote in 64KiB chunks, publishing progress
// events on eventbus.TopicUploadProgress per spec.md §4.3's threshold
// rule.
func (m *Manager) Upload(id, local, remote, transferID string) error {
	return m.withSession(id, func(s *Session) error {
		localFile, err := os.Open(local)
		if err != nil {
			return fmt.Errorf("sftpsession: open local %s: %w", local, err)
		}
		defer localFile.Close()

		info, err := localFile.Stat()
		if err != nil {
			return fmt.Errorf("sftpsession: stat local %s: %w", local, err)
		}

		remoteFile, err := s.client.Create(remote)
		if err != nil {
			return fmt.Errorf("sftpsession: create remote %s: %w", remote, err)
		}
		defer remoteFile.Close()

		return copyChunked(m.bus, eventbus.TopicUploadProgress, transferID, remoteFile, localFile, info.Size())
	})
}

// Download streams remote to local in 64KiB chunks, publishing progress
// events on eventbus.TopicDownloadProgress.
func (m *Manager) Download(id, remote, local, transferID string) error {
	return m.withSession(id, func(s *Session) error {
		remoteFile, err := s.client.Open(remote)
		if err != nil {
			return fmt.Errorf("sftpsession: open remote %s: %w", remote, err)
		}
		defer remoteFile.Close()

		total := int64(0)
		if fi, err := s.client.Stat(remote); err == nil {
			total = fi.Size()
		}

		localFile, err := os.Create(local)
		if err != nil {
			return fmt.Errorf("sftpsession: create local %s: %w", local, err)
		}
		defer localFile.Close()

		return copyChunked(m.bus, eventbus.TopicDownloadProgress, transferID, localFile, remoteFile, total)
	})
}

// copyChunked implements spec.md §4.3's exact chunked-transfer rule:
// 64KiB read-then-write loop until EOF, publishing a progress event on
// the first chunk, any +5 integer-percentage increase, and the final
// chunk — clamped to 100, with a zero-length total emitting a single
// 100% event.
func copyChunked(bus *eventbus.Bus, topic, transferID string, dst io.Writer, src io.Reader, total int64) error {
	if total == 0 {
		bus.Publish(eventbus.Event{Topic: topic, Data: ProgressEvent{
			TransferID: transferID, BytesTransfered: 0, TotalBytes: 0, Percentage: 100,
		}})
		return nil
	}

	buf := make([]byte, transferChunkSize)
	var transferred int64
	lastPct := -1
	first := true
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("sftpsession: write chunk: %w", err)
			}
			transferred += int64(n)

			pct := int(transferred * 100 / total)
			if pct > 100 {
				pct = 100
			}
			isFinal := transferred >= total
			if first || pct-lastPct >= 5 || isFinal {
				if isFinal {
					pct = 100
				}
				bus.Publish(eventbus.Event{Topic: topic, Data: ProgressEvent{
					TransferID: transferID, BytesTransfered: transferred, TotalBytes: total, Percentage: pct,
				}})
				lastPct = pct
				first = false
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return fmt.Errorf("sftpsession: read chunk: %w", readErr)
		}
	}
}

func entryFromInfo(path string, fi os.FileInfo) FileEntry {
	perm := ""
	if st, ok := fi.Sys().(*sftp.FileStat); ok {
		perm = fmt.Sprintf("%o", st.Mode&0o7777)
	} else {
		perm = fmt.Sprintf("%o", fi.Mode().Perm())
	}
	return FileEntry{
		Name:        fi.Name(),
		Path:        path,
		IsDirectory: fi.IsDir(),
		SizeBytes:   fi.Size(),
		ModifiedSec: fi.ModTime().Unix(),
		Permissions: perm,
	}
}

func joinRemote(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
