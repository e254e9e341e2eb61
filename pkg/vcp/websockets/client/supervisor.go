package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/tsarna/vcpclient/pkg/vcp"
	"github.com/tsarna/vcpclient/pkg/vcp/o11y"
	"github.com/tsarna/vcpclient/pkg/vcp/websockets"
	"go.uber.org/zap"
)

// Supervisor keeps a single WebSocket session to the configured endpoint
// alive. Each session runs a read pump feeding the inbound queue and a write
// pump draining the outbound queue. When either pump stops, the session is
// torn down and the supervisor dials again.
type Supervisor struct {
	endpoint    string
	logger      *zap.Logger
	dialer      websockets.Dialer
	dialTimeout time.Duration
	backoff     Backoff
	maxRetries  int
	inbound     vcp.Producer
	outbound    vcp.Consumer
	monitor     vcp.SessionMonitor
	metrics     *SessionMetrics
	tracing     o11y.TracingProvider

	running  int32
	attempts int64
	sessions int64

	// held is only touched by the write pump, and sessions never overlap.
	held *vcp.Message

	mu      sync.Mutex
	lastErr error
}

// Run dials, runs sessions and redials until ctx is cancelled, and returns
// the context error. Connect and session failures are logged and retried;
// Run also returns if a queue is closed underneath it or, when a retry limit
// is configured, once that many consecutive attempts have failed.
func (s *Supervisor) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return fmt.Errorf("supervisor is already running")
	}
	defer atomic.StoreInt32(&s.running, 0)
	defer s.dropHeld()

	s.logger.Info("Starting connection supervisor",
		zap.String("endpoint", s.endpoint),
		zap.Duration("retry-delay", s.backoff.Initial),
		zap.Int("max-retries", s.maxRetries),
	)

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("Connection supervisor stopped", zap.Error(err))
			return err
		}

		conn, target, err := s.connect(ctx, failures+1)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Connection supervisor stopped", zap.Error(ctx.Err()))
				return ctx.Err()
			}

			failures++
			s.setLastError(err)
			s.monitor.OnConnectFailed(ctx, failures, err)

			if s.maxRetries > 0 && failures >= s.maxRetries {
				s.logger.Error("Giving up on connecting",
					zap.String("endpoint", s.endpoint),
					zap.Int("attempts", failures),
					zap.Error(err))
				return fmt.Errorf("%w after %d attempts: %w", vcp.ErrRetriesExhausted, failures, err)
			}

			delay := s.backoff.Delay(failures)
			s.logger.Warn("Connection attempt failed, retrying",
				zap.String("endpoint", s.endpoint),
				zap.Int("attempt", failures),
				zap.Duration("retry-in", delay),
				zap.Error(err))

			if err := sleep(ctx, delay); err != nil {
				s.logger.Info("Connection supervisor stopped", zap.Error(err))
				return err
			}
			continue
		}

		failures = 0
		err = s.runSession(ctx, conn, target)
		if errors.Is(err, vcp.ErrQueueClosed) {
			s.logger.Info("Queue closed, connection supervisor stopping")
			return err
		}

		if ctx.Err() == nil {
			// A peer that accepts and immediately drops us must not turn
			// the loop into a busy redial.
			if err := sleep(ctx, s.backoff.Initial); err != nil {
				s.logger.Info("Connection supervisor stopped", zap.Error(err))
				return err
			}
		}
	}
}

// connect performs one connect attempt.
func (s *Supervisor) connect(ctx context.Context, attempt int) (websockets.Conn, string, error) {
	atomic.AddInt64(&s.attempts, 1)
	s.monitor.OnConnectAttempt(ctx, attempt)
	s.metrics.RecordConnectAttempt(ctx)

	ctx, span := s.startSpan(ctx, "vcp.connect")
	defer span.End()
	span.SetAttributes(o11y.L("endpoint", s.endpoint))

	target, err := websockets.NormalizeEndpoint(s.endpoint)
	if err != nil {
		span.SetStatus(o11y.SpanStatusError, err.Error())
		s.metrics.RecordConnectError(ctx, "address")
		return nil, "", err
	}

	s.logger.Debug("Connecting", zap.String("url", target), zap.Int("attempt", attempt))

	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	defer cancel()

	conn, err := s.dialer.Dial(dialCtx, target)
	if err != nil {
		span.SetStatus(o11y.SpanStatusError, err.Error())
		s.metrics.RecordConnectError(ctx, "dial")
		return nil, "", fmt.Errorf("%w to %s: %w", vcp.ErrConnect, target, err)
	}

	span.SetStatus(o11y.SpanStatusOK, "")
	return conn, target, nil
}

// runSession runs the pump pair until one of them stops, then stops the
// other and closes the connection. It returns the reason the session ended,
// or nil when it ended because ctx was cancelled.
func (s *Supervisor) runSession(ctx context.Context, conn websockets.Conn, target string) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := atomic.AddInt64(&s.sessions, 1)
	start := time.Now()
	logger := s.logger.With(zap.String("url", target), zap.Int64("session", id))

	logger.Info("Connected to server")
	s.monitor.OnSessionStart(ctx, target)
	s.metrics.RecordSessionStart(ctx)

	done := make(chan error, 2)
	go func() {
		done <- s.readPump(sessionCtx, conn, logger)
	}()
	go func() {
		done <- s.writePump(sessionCtx, conn, logger)
	}()

	reason := <-done
	cancel()

	status, text := websocket.StatusGoingAway, "session ended"
	if ctx.Err() != nil {
		status, text = websocket.StatusNormalClosure, "client shutdown"
	}
	if err := conn.Close(status, text); err != nil {
		logger.Debug("Error closing connection", zap.Error(err))
	}
	<-done

	duration := time.Since(start)
	s.metrics.RecordSessionEnd(ctx, duration)

	if ctx.Err() != nil {
		logger.Info("Session closed for shutdown", zap.Duration("duration", duration))
		s.monitor.OnSessionEnd(ctx, target, nil)
		return nil
	}

	s.setLastError(reason)
	logger.Warn("Session ended, reconnecting",
		zap.Duration("duration", duration),
		zap.Error(reason))
	s.monitor.OnSessionEnd(ctx, target, reason)
	return reason
}

func (s *Supervisor) startSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	if s.tracing == nil {
		return ctx, nopSpan{}
	}
	return s.tracing.StartSpan(ctx, name)
}

func (s *Supervisor) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Endpoint returns the configured server address.
func (s *Supervisor) Endpoint() string {
	return s.endpoint
}

// Attempts returns the number of connect attempts made so far.
func (s *Supervisor) Attempts() int64 {
	return atomic.LoadInt64(&s.attempts)
}

// Sessions returns the number of sessions established so far.
func (s *Supervisor) Sessions() int64 {
	return atomic.LoadInt64(&s.sessions)
}

// LastError returns the most recent connect or session error.
func (s *Supervisor) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

type nopSpan struct{}

func (nopSpan) SetAttributes(labels ...o11y.Label) {}
func (nopSpan) SetStatus(code o11y.SpanStatusCode, description string) {}
func (nopSpan) End() {}
