// Command termbridge is the process entrypoint: it wires the event bus,
// the three session managers, the Tab Lifecycle Coordinator, the Command
// Facade and the IPC server together, then blocks until a shutdown
// signal arrives. Bootstrap/shutdown shape is grounded on the teacher's
// bridge/main.go (flags via pflag, SIGINT/SIGTERM-triggered graceful
// shutdown with a bounded drain), minus the teacher's bootstrap-from-stdin
// and yamux session plumbing, which have no counterpart in spec.md.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/mordilloSan/termbridge/internal/config"
	"github.com/mordilloSan/termbridge/internal/eventbus"
	"github.com/mordilloSan/termbridge/internal/facade"
	"github.com/mordilloSan/termbridge/internal/ipc"
	"github.com/mordilloSan/termbridge/internal/logger"
	"github.com/mordilloSan/termbridge/internal/ptysession"
	"github.com/mordilloSan/termbridge/internal/sftpsession"
	"github.com/mordilloSan/termbridge/internal/sshsession"
	"github.com/mordilloSan/termbridge/internal/tabs"
	"github.com/mordilloSan/termbridge/internal/version"
)

func main() {
	var verbose bool
	var showVersion bool
	var socketName string
	var envMode string

	pflag.BoolVar(&showVersion, "version", false, "print version and exit")
	pflag.BoolVar(&verbose, "verbose", false, "enable verbose logs")
	pflag.StringVar(&socketName, "socket-name", config.AppName, "app name used to derive the IPC endpoint")
	pflag.StringVar(&envMode, "env", "production", "environment (development|production)")
	pflag.Parse()

	if showVersion {
		fmt.Printf("%s %s (commit %s, built %s)\n", config.AppName, version.Version, version.CommitSHA, version.BuildTime)
		return
	}

	logger.Init(envMode, verbose)
	logger.InfoKV("termbridge starting", "pid", os.Getpid(), "version", version.Version)

	listener, cleanup, err := ipc.ListenUnix(socketName)
	if err != nil {
		logger.Errorf("create IPC endpoint: %v", err)
		os.Exit(1)
	}
	logger.InfoKV("ipc endpoint ready", "socket_name", socketName)

	bus := eventbus.New()
	ptyMgr := ptysession.NewManager(bus)
	sshMgr := sshsession.NewManager(bus)
	sftpMgr := sftpsession.NewManager(bus)
	coordinator := tabs.NewCoordinator(bus, ptyMgr, sshMgr)

	dispatcher := ipc.NewDispatcher()
	facade.New(ptyMgr, sshMgr, sftpMgr, coordinator).Register(dispatcher)

	server := ipc.NewServer(dispatcher, listener, cleanup)

	sigc := make(chan os.Signal, 2)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.InfoKV("termbridge shutting down", "signal", s.String())
		server.Shutdown()
	}()

	server.Serve()
	logger.InfoKV("termbridge stopped")
}
