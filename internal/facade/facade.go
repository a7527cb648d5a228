// Package facade is the Command Facade of spec.md §2: a thin adapter that
// turns IPC requests into manager calls and manager errors into wire
// strings, mirroring original_source/commands/{pty,ssh,sftp}_commands.rs's
// `state.method(...).map_err(|e| e.to_string())` pattern verb-for-verb.
// spec.md §4.5's wire-command table names five commands (ping,
// add_ssh_tab, add_local_tab, close_tab, list_tabs); §2's data flow and
// §4.1-§4.3's "write(id, bytes)/resize(id, cols, rows)" and SFTP operation
// lists make clear those five are representative, not exhaustive — a
// terminal multiplexer that could create tabs but never send keystrokes
// would not implement the spec. Register wires the full operation set.
package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mordilloSan/termbridge/internal/config"
	"github.com/mordilloSan/termbridge/internal/ipc"
	"github.com/mordilloSan/termbridge/internal/ptysession"
	"github.com/mordilloSan/termbridge/internal/sftpsession"
	"github.com/mordilloSan/termbridge/internal/sshsession"
	"github.com/mordilloSan/termbridge/internal/tabs"
	"github.com/mordilloSan/termbridge/internal/version"
)

// Facade wires every session manager plus the Tab Lifecycle Coordinator
// into one registration surface.
type Facade struct {
	pty  *ptysession.Manager
	ssh  *sshsession.Manager
	sftp *sftpsession.Manager
	tabs *tabs.Coordinator
}

func New(pty *ptysession.Manager, ssh *sshsession.Manager, sftp *sftpsession.Manager, coord *tabs.Coordinator) *Facade {
	return &Facade{pty: pty, ssh: ssh, sftp: sftp, tabs: coord}
}

// Register installs every command on d.
func (f *Facade) Register(d *ipc.Dispatcher) {
	d.Register("ping", f.ping)

	d.Register("add_ssh_tab", f.addSSHTab)
	d.Register("add_local_tab", f.addLocalTab)
	d.Register("close_tab", f.closeTab)
	d.Register("list_tabs", f.listTabs)

	d.Register("write_pty", f.writePTY)
	d.Register("resize_pty", f.resizePTY)
	d.Register("write_ssh", f.writeSSH)
	d.Register("resize_ssh", f.resizeSSH)

	d.Register("sftp_create", f.sftpCreate)
	d.Register("sftp_close", f.sftpClose)
	d.Register("sftp_home", f.sftpHome)
	d.Register("sftp_list_directory", f.sftpListDirectory)
	d.Register("sftp_stat", f.sftpStat)
	d.Register("sftp_mkdir_p", f.sftpMkdirP)
	d.Register("sftp_rmdir_recursive", f.sftpRmdirRecursive)
	d.Register("sftp_unlink", f.sftpUnlink)
	d.Register("sftp_rename", f.sftpRename)
	d.Register("sftp_upload", f.sftpUpload)
	d.Register("sftp_download", f.sftpDownload)
}

func decode[T any](params json.RawMessage) (T, error) {
	var v T
	if len(params) == 0 {
		return v, fmt.Errorf("%w: missing params", ipc.ErrInvalidParams)
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ipc.ErrInvalidParams, err)
	}
	return v, nil
}

func (f *Facade) ping(ctx context.Context, params json.RawMessage) (any, error) {
	return map[string]any{
		"version":         version.Version,
		"commitSha":       version.CommitSHA,
		"buildTime":       version.BuildTime,
		"selfSha256":      version.SelfSHA256(),
		"pid":             os.Getpid(),
		"ipcMajorVersion": config.IPCMajorVersion,
	}, nil
}

// --- tabs ---

type wireAuthMethod struct {
	Type       string `json:"type"`
	Password   string `json:"password,omitempty"`
	Path       string `json:"path,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
}

func (w wireAuthMethod) toAuth() sshsession.AuthMethod {
	switch w.Type {
	case "privateKey":
		return sshsession.AuthMethod{PrivateKeyPath: w.Path, PrivateKeyPassphrase: w.Passphrase}
	default:
		return sshsession.AuthMethod{Password: w.Password}
	}
}

type wireSSHConfig struct {
	Host       string         `json:"host"`
	Port       uint16         `json:"port"`
	Username   string         `json:"username"`
	AuthMethod wireAuthMethod `json:"authMethod"`
}

type addSSHTabParams struct {
	Config wireSSHConfig `json:"config"`
	Cols   uint16        `json:"cols"`
	Rows   uint16        `json:"rows"`
}

func (f *Facade) addSSHTab(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[addSSHTabParams](params)
	if err != nil {
		return nil, err
	}
	cfg := sshsession.Config{
		Host:     p.Config.Host,
		Port:     p.Config.Port,
		Username: p.Config.Username,
		Auth:     p.Config.AuthMethod.toAuth(),
	}
	id := f.tabs.AddSSHTab(cfg, p.Cols, p.Rows)
	return map[string]any{
		"sessionId": id,
		"host":      cfg.Host,
		"username":  cfg.Username,
	}, nil
}

type addLocalTabParams struct {
	Cwd  string `json:"cwd,omitempty"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

func (f *Facade) addLocalTab(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[addLocalTabParams](params)
	if err != nil {
		return nil, err
	}
	id, pid, shell, err := f.tabs.AddLocalTab(ptysession.Config{Cwd: p.Cwd, Cols: p.Cols, Rows: p.Rows})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"ptyId": id,
		"pid":   pid,
		"shell": shell,
	}, nil
}

type tabIDParams struct {
	TabID string `json:"tabId"`
}

func (f *Facade) closeTab(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[tabIDParams](params)
	if err != nil {
		return nil, err
	}
	if err := f.tabs.CloseTab(p.TabID); err != nil {
		return nil, err
	}
	return map[string]any{"tabId": p.TabID, "closed": true}, nil
}

func (f *Facade) listTabs(ctx context.Context, params json.RawMessage) (any, error) {
	list := f.tabs.ListTabs()
	out := make([]map[string]any, 0, len(list))
	for _, t := range list {
		out = append(out, map[string]any{
			"tabId":  t.ID,
			"type":   string(t.Type),
			"title":  t.Title,
			"active": t.Active,
		})
	}
	return map[string]any{"tabs": out}, nil
}

// --- pty/ssh write & resize ---

type sessionWriteParams struct {
	SessionID string `json:"sessionId"`
	Data      string `json:"data"`
}

type sessionResizeParams struct {
	SessionID string `json:"sessionId"`
	Cols      uint16 `json:"cols"`
	Rows      uint16 `json:"rows"`
}

func (f *Facade) writePTY(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sessionWriteParams](params)
	if err != nil {
		return nil, err
	}
	return nil, f.pty.Write(p.SessionID, []byte(p.Data))
}

func (f *Facade) resizePTY(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sessionResizeParams](params)
	if err != nil {
		return nil, err
	}
	return nil, f.pty.Resize(p.SessionID, p.Cols, p.Rows)
}

func (f *Facade) writeSSH(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sessionWriteParams](params)
	if err != nil {
		return nil, err
	}
	return nil, f.ssh.Write(p.SessionID, []byte(p.Data))
}

func (f *Facade) resizeSSH(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sessionResizeParams](params)
	if err != nil {
		return nil, err
	}
	return nil, f.ssh.Resize(p.SessionID, p.Cols, p.Rows)
}

// --- sftp ---

type sftpCreateParams struct {
	Host       string          `json:"host"`
	Port       uint16          `json:"port"`
	Username   string          `json:"username"`
	AuthMethod *wireAuthMethod `json:"authMethod,omitempty"`
}

func (f *Facade) sftpCreate(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sftpCreateParams](params)
	if err != nil {
		return nil, err
	}
	cfg := sftpsession.Config{Host: p.Host, Port: p.Port, Username: p.Username}
	if p.AuthMethod != nil {
		auth := p.AuthMethod.toAuth()
		cfg.Auth = &auth
	}
	id, err := f.sftp.Create(cfg)
	if err != nil {
		return nil, err
	}
	return map[string]any{"sessionId": id, "host": cfg.Host, "username": cfg.Username}, nil
}

type sftpSessionIDParams struct {
	SessionID string `json:"sessionId"`
}

func (f *Facade) sftpClose(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sftpSessionIDParams](params)
	if err != nil {
		return nil, err
	}
	return nil, f.sftp.Close(p.SessionID)
}

func (f *Facade) sftpHome(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sftpSessionIDParams](params)
	if err != nil {
		return nil, err
	}
	home, err := f.sftp.Home(p.SessionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"path": home}, nil
}

type sftpPathParams struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
}

func (f *Facade) sftpListDirectory(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sftpPathParams](params)
	if err != nil {
		return nil, err
	}
	entries, err := f.sftp.ListDirectory(p.SessionID, p.Path)
	if err != nil {
		return nil, err
	}
	return map[string]any{"entries": entries}, nil
}

func (f *Facade) sftpStat(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sftpPathParams](params)
	if err != nil {
		return nil, err
	}
	return f.sftp.Stat(p.SessionID, p.Path)
}

func (f *Facade) sftpMkdirP(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sftpPathParams](params)
	if err != nil {
		return nil, err
	}
	return nil, f.sftp.MkdirP(p.SessionID, p.Path)
}

func (f *Facade) sftpRmdirRecursive(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sftpPathParams](params)
	if err != nil {
		return nil, err
	}
	return nil, f.sftp.RmdirRecursive(p.SessionID, p.Path)
}

func (f *Facade) sftpUnlink(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sftpPathParams](params)
	if err != nil {
		return nil, err
	}
	return nil, f.sftp.Unlink(p.SessionID, p.Path)
}

type sftpRenameParams struct {
	SessionID string `json:"sessionId"`
	OldPath   string `json:"oldPath"`
	NewPath   string `json:"newPath"`
}

func (f *Facade) sftpRename(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sftpRenameParams](params)
	if err != nil {
		return nil, err
	}
	return nil, f.sftp.Rename(p.SessionID, p.OldPath, p.NewPath)
}

type sftpTransferParams struct {
	SessionID  string `json:"sessionId"`
	LocalPath  string `json:"localPath"`
	RemotePath string `json:"remotePath"`
	TransferID string `json:"transferId"`
}

func (f *Facade) sftpUpload(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sftpTransferParams](params)
	if err != nil {
		return nil, err
	}
	return nil, f.sftp.Upload(p.SessionID, p.LocalPath, p.RemotePath, p.TransferID)
}

func (f *Facade) sftpDownload(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := decode[sftpTransferParams](params)
	if err != nil {
		return nil, err
	}
	return nil, f.sftp.Download(p.SessionID, p.RemotePath, p.LocalPath, p.TransferID)
}
