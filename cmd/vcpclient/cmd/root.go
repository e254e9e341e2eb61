package cmd

import (
	"github.com/spf13/cobra"
)

// Version is reported by --version and used as the instrumentation version.
var Version = "0.1.0"

var (
	verbose  bool
	debug    bool
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "vcpclient",
	Short:   "Persistent WebSocket client",
	Version: Version,
	Long: `vcpclient keeps a WebSocket connection to a single server open for as
long as it runs, reconnecting whenever the connection fails.

Inbound frames are logged (optionally reshaped by a jq query) and an
outbound message is sent on a fixed interval. Configuration is read from
HCL or JSON files.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug output")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
}
