// Package main is the entry point for the nodechaos CLI.
//
// nodechaos stops, reboots, terminates and otherwise disrupts Kubernetes
// nodes through their cloud provider or over SSH, and records how long the
// provider and the cluster take to reach each expected state.
//
// For detailed usage information, run:
//
//	nodechaos --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/nodechaos/cmd/nodechaos/commands"
	"github.com/imamik/nodechaos/cmd/nodechaos/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(handlers.ExitCode(err))
}
