package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tsarna/vcpclient/pkg/vcp"
	"github.com/tsarna/vcpclient/pkg/vcp/config"
	"github.com/tsarna/vcpclient/pkg/vcp/websockets/client"
	"go.uber.org/zap"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [config-files-or-directories...]",
	Short: "Validate the configuration and try to connect once",
	Long: `Validate the configuration, then connect to the configured server,
retrying up to --max-retries times. Exits non-zero if no connection could be
made.

Examples:
  vcpclient check
  vcpclient check client.hcl --max-retries 5 --timeout 1m`,
	RunE: runCheck,
}

var (
	checkMaxRetries int
	checkTimeout    time.Duration
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().IntVar(&checkMaxRetries, "max-retries", 3, "connection attempts before giving up")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 2*time.Minute, "total operation timeout")
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := loadConfig(args, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := checkConnection(ctx, cfg, checkMaxRetries, logger); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", cfg.ServerURL)
	return nil
}

// connectedMonitor ends the check as soon as one session starts.
type connectedMonitor struct {
	vcp.BaseSessionMonitor
	cancel    context.CancelFunc
	connected atomic.Bool
}

func (m *connectedMonitor) OnSessionStart(ctx context.Context, endpoint string) {
	m.connected.Store(true)
	m.cancel()
}

func checkConnection(ctx context.Context, cfg *config.Config, maxRetries int, logger *zap.Logger) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	monitor := &connectedMonitor{cancel: cancel}
	inbound, outbound := vcp.NewQueuePair(1)

	supervisor, err := client.NewSupervisor().
		WithURL(cfg.ServerURL).
		WithLogger(logger.Named("supervisor")).
		WithDialTimeout(cfg.Client.DialTimeout).
		WithRetryDelay(cfg.Client.RetryDelay).
		WithMaxRetryDelay(cfg.Client.MaxRetryDelay).
		WithBackoffFactor(cfg.Client.BackoffFactor).
		WithMaxRetries(maxRetries).
		WithHeaders(cfg.Client.Headers).
		WithInbound(inbound).
		WithOutbound(outbound).
		WithMonitor(monitor).
		Build()
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}

	err = supervisor.Run(ctx)
	if monitor.connected.Load() {
		return nil
	}
	if err == nil {
		err = vcp.ErrConnect
	}
	return fmt.Errorf("connection check failed: %w", err)
}
