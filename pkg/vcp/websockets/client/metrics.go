package client

import (
	"context"
	"time"

	"github.com/tsarna/vcpclient/pkg/vcp"
	"github.com/tsarna/vcpclient/pkg/vcp/o11y"
)

// SessionMetrics holds the instruments recorded by the supervisor and pumps.
// A nil *SessionMetrics records nothing.
type SessionMetrics struct {
	connectAttempts o11y.Counter
	connectErrors   o11y.Counter
	sessions        o11y.Counter
	sessionDuration o11y.Histogram
	framesReceived  o11y.Counter
	framesSent      o11y.Counter
	bytesReceived   o11y.Counter
	bytesSent       o11y.Counter
	queueDepth      o11y.Gauge
}

// NewSessionMetrics creates the instruments, or returns nil for a nil provider.
func NewSessionMetrics(provider o11y.MetricsProvider) *SessionMetrics {
	if provider == nil {
		return nil
	}

	return &SessionMetrics{
		connectAttempts: provider.Counter("vcp_connect_attempts_total"),
		connectErrors:   provider.Counter("vcp_connect_errors_total"),
		sessions:        provider.Counter("vcp_sessions_total"),
		sessionDuration: provider.Histogram("vcp_session_duration_seconds"),
		framesReceived:  provider.Counter("vcp_frames_received_total"),
		framesSent:      provider.Counter("vcp_frames_sent_total"),
		bytesReceived:   provider.Counter("vcp_bytes_received_total"),
		bytesSent:       provider.Counter("vcp_bytes_sent_total"),
		queueDepth:      provider.Gauge("vcp_queue_depth"),
	}
}

func (m *SessionMetrics) RecordConnectAttempt(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectAttempts.Add(ctx, 1)
}

func (m *SessionMetrics) RecordConnectError(ctx context.Context, errorType string) {
	if m == nil {
		return
	}
	m.connectErrors.Add(ctx, 1, o11y.L("error_type", errorType))
}

func (m *SessionMetrics) RecordSessionStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessions.Add(ctx, 1)
}

func (m *SessionMetrics) RecordSessionEnd(ctx context.Context, duration time.Duration) {
	if m == nil {
		return
	}
	m.sessionDuration.Record(ctx, duration.Seconds())
}

func (m *SessionMetrics) RecordFrameReceived(ctx context.Context, msg vcp.Message) {
	if m == nil {
		return
	}
	m.framesReceived.Add(ctx, 1, o11y.L("type", msg.Type.String()))
	m.bytesReceived.Add(ctx, int64(len(msg.Data)))
}

func (m *SessionMetrics) RecordFrameSent(ctx context.Context, msg vcp.Message) {
	if m == nil {
		return
	}
	m.framesSent.Add(ctx, 1, o11y.L("type", msg.Type.String()))
	m.bytesSent.Add(ctx, int64(len(msg.Data)))
}

// RecordQueueDepth records how many messages are waiting in the named queue.
func (m *SessionMetrics) RecordQueueDepth(ctx context.Context, queue string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(ctx, float64(depth), o11y.L("queue", queue))
}
