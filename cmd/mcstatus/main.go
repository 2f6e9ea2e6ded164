// Command mcstatus polls a fixed set of game servers and serves their last
// known status over HTTP.
//
// Usage:
//
//	mcstatus <config.yaml|config.json> [--log-level debug]
//
// The first iteration starts immediately; later ones follow every
// polling_interval_seconds. Send SIGINT or SIGTERM to stop: in-flight probes
// are cancelled and API requests get up to 10 seconds to complete.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via -ldflags.
//
//	-X main.version=$(git describe --tags --always)
//	-X main.commit=$(git rev-parse --short HEAD)
//	-X main.buildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "mcstatus <config-path>",
		Short: "Poll game servers and serve their status over HTTP",
		Long: "mcstatus periodically pings every configured server with the Server List Ping protocol, " +
			"caches whether each one is online, offline or unreachable, and exposes that cache " +
			"through a read-only JSON API.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "override log_level from the config file (debug, info, warn, error)")
	return cmd
}
