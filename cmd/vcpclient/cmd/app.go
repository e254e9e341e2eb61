package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tsarna/vcpclient/pkg/vcp"
	"github.com/tsarna/vcpclient/pkg/vcp/config"
	"github.com/tsarna/vcpclient/pkg/vcp/dispatch"
	"github.com/tsarna/vcpclient/pkg/vcp/heartbeat"
	"github.com/tsarna/vcpclient/pkg/vcp/otel"
	"github.com/tsarna/vcpclient/pkg/vcp/websockets/client"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrShutdownTimeout is returned when tasks are still running once the
// shutdown grace period has elapsed.
var ErrShutdownTimeout = errors.New("shutdown grace period exceeded")

// app is one configured client: the supervisor and dispatcher joined by a
// queue pair, plus the optional heartbeat.
type app struct {
	logger     *zap.Logger
	grace      time.Duration
	inbound    *vcp.Queue
	outbound   *vcp.Queue
	supervisor *client.Supervisor
	dispatcher *dispatch.Dispatcher
	heartbeat  *heartbeat.Heartbeat

	// tasks run concurrently under run's context.
	tasks []func(ctx context.Context) error
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	inbound, outbound := vcp.NewQueuePair(cfg.Client.QueueSize)
	provider := otel.NewProvider("vcpclient", Version)

	supervisor, err := client.NewSupervisor().
		WithURL(cfg.ServerURL).
		WithLogger(logger.Named("supervisor")).
		WithDialTimeout(cfg.Client.DialTimeout).
		WithRetryDelay(cfg.Client.RetryDelay).
		WithMaxRetryDelay(cfg.Client.MaxRetryDelay).
		WithBackoffFactor(cfg.Client.BackoffFactor).
		WithHeaders(cfg.Client.Headers).
		WithReadLimit(cfg.Client.ReadLimit).
		WithInbound(inbound).
		WithOutbound(outbound).
		WithMetrics(provider).
		WithTracing(provider).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create supervisor: %w", err)
	}

	handler, err := newInboundHandler(cfg, logger.Named("inbound"))
	if err != nil {
		return nil, fmt.Errorf("failed to create inbound handler: %w", err)
	}

	dispatcher, err := dispatch.NewDispatcher().
		WithInbound(inbound).
		WithOutbound(outbound).
		WithHandler(handler).
		WithSource(cfg.MessageSource()).
		WithInterval(cfg.Dispatch.Interval).
		WithLogger(logger.Named("dispatch")).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	a := &app{
		logger:     logger,
		grace:      cfg.ShutdownGrace,
		inbound:    inbound,
		outbound:   outbound,
		supervisor: supervisor,
		dispatcher: dispatcher,
	}
	a.tasks = []func(ctx context.Context) error{supervisor.Run, dispatcher.Run}

	if cfg.Heartbeat.Enabled {
		a.heartbeat, err = heartbeat.New(cfg.Heartbeat.Schedule, logger.Named("heartbeat"))
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

func newInboundHandler(cfg *config.Config, logger *zap.Logger) (dispatch.Handler, error) {
	logging := dispatch.NewLoggingHandler(nil, logger, cfg.Dispatch.LogLevel)
	if cfg.Dispatch.InboundQuery == "" {
		return logging, nil
	}

	jq, err := dispatch.NewJqHandler(cfg.Dispatch.InboundQuery, logging, logger)
	if err != nil {
		return nil, err
	}
	return jq, nil
}

// run starts every task and blocks until ctx is cancelled or a task stops
// on its own. After cancellation the tasks get the grace period to finish;
// if they do not, run returns ErrShutdownTimeout without waiting further.
// Either way the queues are closed and the heartbeat is stopped before run
// returns, and shutdown as a whole stays within the grace period.
func (a *app) run(ctx context.Context) error {
	if a.heartbeat != nil {
		a.heartbeat.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range a.tasks {
		g.Go(func() error { return task(gctx) })
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	deadline := time.Time{}
	select {
	case err = <-done:
	case <-ctx.Done():
		a.logger.Info("Shutdown requested", zap.Duration("grace", a.grace))
		deadline = time.Now().Add(a.grace)
		timer := time.NewTimer(a.grace)
		defer timer.Stop()

		select {
		case err = <-done:
		case <-timer.C:
			a.logger.Error("Tasks did not stop within the grace period", zap.Duration("grace", a.grace))
			err = ErrShutdownTimeout
		}
	}

	a.inbound.Close()
	a.outbound.Close()

	if stopErr := a.stopHeartbeat(deadline); stopErr != nil {
		a.logger.Error("Heartbeat did not stop within the grace period", zap.Error(stopErr))
		return ErrShutdownTimeout
	}

	if errors.Is(err, ErrShutdownTimeout) {
		return err
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		a.logger.Info("Shutdown complete",
			zap.Uint64("received", a.dispatcher.Received()),
			zap.Uint64("sent", a.dispatcher.Sent()),
		)
		return nil
	}
	return err
}

// stopHeartbeat stops the heartbeat and waits for a running tick until
// deadline, or for the grace period when no deadline is set yet.
func (a *app) stopHeartbeat(deadline time.Time) error {
	if a.heartbeat == nil {
		return nil
	}
	if deadline.IsZero() {
		deadline = time.Now().Add(a.grace)
	}

	stopCtx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	return a.heartbeat.Stop(stopCtx)
}
