package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [config-files-or-directories...]",
	Short: "Connect to the configured server and run until interrupted",
	Long: `Connect to the configured WebSocket server and keep the connection
alive until interrupted, reconnecting after every failure.

Configuration is read from the given HCL (.hcl, .vcl) or JSON (.json) files
and directories, or from vcp_config.json in the working directory.

Examples:
  vcpclient run
  vcpclient run client.hcl
  vcpclient run ./conf.d/ --log-level debug`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig(args, logger)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting vcpclient",
		zap.String("version", Version),
		zap.String("server-url", cfg.ServerURL),
		zap.Int("queue-size", cfg.Client.QueueSize),
		zap.Duration("interval", cfg.Dispatch.Interval),
	)

	return a.run(ctx)
}
