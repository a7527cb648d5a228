// Package logger is the process-wide logging facility. In "production"
// mode, or whenever it runs under systemd, it writes to the journal with
// structured fields; otherwise it writes colorized lines to stderr.
// Session payload bytes are never logged, only lengths and ids.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

var (
	Debug   = log.New(io.Discard, "", 0)
	Info    = log.New(io.Discard, "", 0)
	Warning = log.New(io.Discard, "", 0)
	Error   = log.New(io.Discard, "", 0)

	verbose bool
)

// Init wires the four level loggers. mode is "development" or
// "production"; under systemd (INVOCATION_ID set) the journal sink is
// used regardless of mode.
func Init(mode string, v bool) {
	verbose = v

	if _, underSystemd := os.LookupEnv("INVOCATION_ID"); underSystemd || mode == "production" {
		Debug = log.New(&journalWriter{priority: journal.PriDebug}, "", 0)
		Info = log.New(&journalWriter{priority: journal.PriInfo}, "", 0)
		Warning = log.New(&journalWriter{priority: journal.PriWarning}, "", 0)
		Error = log.New(&journalWriter{priority: journal.PriErr}, "", 0)
		return
	}

	Debug = newDevLogger("\033[36mDEBUG\033[0m")
	Info = newDevLogger("\033[32mINFO \033[0m")
	Warning = newDevLogger("\033[33mWARN \033[0m")
	Error = newDevLogger("\033[31mERROR\033[0m")
}

func newDevLogger(prefix string) *log.Logger {
	return log.New(os.Stderr, prefix+" ", log.Ltime)
}

// journalWriter adapts io.Writer to journal.Send so *log.Logger can target
// systemd-journald without pulling in a third logging abstraction.
type journalWriter struct {
	priority journal.Priority
}

func (w *journalWriter) Write(p []byte) (int, error) {
	if err := journal.Send(strings.TrimRight(string(p), "\n"), w.priority, nil); err != nil {
		return 0, err
	}
	return len(p), nil
}

func getCallerFuncName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "?"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "?"
	}
	full := fn.Name()
	if idx := strings.LastIndex(full, "/"); idx != -1 {
		full = full[idx+1:]
	}
	return full
}

func Debugf(format string, args ...any) {
	if !verbose {
		return
	}
	Debug.Printf("[%s] "+format, append([]any{getCallerFuncName(2)}, args...)...)
}

func Infof(format string, args ...any)    { Info.Printf(format, args...) }
func Warnf(format string, args ...any)    { Warning.Printf(format, args...) }
func Errorf(format string, args ...any)   { Error.Printf(format, args...) }
func Debugln(args ...any)                 { if verbose { Debug.Println(args...) } }
func Infoln(args ...any)                  { Info.Println(args...) }
func Warnln(args ...any)                  { Warning.Println(args...) }
func Errorln(args ...any)                 { Error.Println(args...) }

// KV variants append key/value pairs in logfmt style, matching the
// structured-log calls used at the IPC and session boundary.
func kv(msg string, pairs ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, " %v=%v", pairs[i], pairs[i+1])
	}
	return b.String()
}

func DebugKV(msg string, pairs ...any) { if verbose { Debug.Println(kv(msg, pairs...)) } }
func InfoKV(msg string, pairs ...any)  { Info.Println(kv(msg, pairs...)) }
func WarnKV(msg string, pairs ...any)  { Warning.Println(kv(msg, pairs...)) }
func ErrorKV(msg string, pairs ...any) { Error.Println(kv(msg, pairs...)) }
