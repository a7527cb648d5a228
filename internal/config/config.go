// Package config holds process-wide constants. Settings persistence (a
// JSON file on disk) is an external collaborator and lives outside this
// module; config only carries what the core needs to name itself and its
// IPC endpoint.
package config

// AppName derives the per-user IPC endpoint name: the Unix socket at
// /tmp/<AppName>-<uid>.sock and the Windows named pipe \\.\pipe\<AppName>-<USERNAME>.
const AppName = "termbridge"

// IPCMajorVersion is reported by ping so clients can refuse to talk to an
// incompatible server before issuing other commands.
const IPCMajorVersion = 1
