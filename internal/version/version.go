// Package version exposes build metadata injected via -ldflags and a
// self-checksum helper used by the ping/version surfaces.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"
)

var (
	Version   = "untracked"
	CommitSHA = "untracked"
	BuildTime = "unknown"

	shaOnce sync.Once
	shaHex  string
)

// SelfSHA256 returns the sha256 of the running executable, computed once.
func SelfSHA256() string {
	shaOnce.Do(func() {
		exe, err := os.Executable()
		if err != nil {
			shaHex = "unknown"
			return
		}
		f, err := os.Open(exe)
		if err != nil {
			shaHex = "unknown"
			return
		}
		defer f.Close()

		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			shaHex = "unknown"
			return
		}
		shaHex = hex.EncodeToString(h.Sum(nil))
	})
	return shaHex
}
