package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "psui",
		Short: "Live patch server for server-rendered pages",
		Long: `psui serves HTML pages and streams fragment patches to connected
browsers over a WebSocket, falling back to HTTP polling when no
socket is open. Pages stay plain server-rendered HTML; the bundled
client script applies patches in place.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
