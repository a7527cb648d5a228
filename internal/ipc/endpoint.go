package ipc

import "fmt"

// unixSocketPath and windowsPipeName both derive from a single appName
// so the two platform listener files can share this naming rule — the
// "<appname>" placeholder of spec.md §6.
func unixSocketPath(appName string, uid int) string {
	return fmt.Sprintf("/tmp/%s-%d.sock", appName, uid)
}

func windowsPipeName(appName, username string) string {
	return fmt.Sprintf(`\\.\pipe\%s-%s`, appName, username)
}
