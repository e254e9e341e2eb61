package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tsarna/vcpclient/pkg/vcp"
	"github.com/tsarna/vcpclient/pkg/vcp/o11y"
	"github.com/tsarna/vcpclient/pkg/vcp/websockets"
	"go.uber.org/zap"
)

const (
	DefaultDialTimeout   = 30 * time.Second
	DefaultRetryDelay    = 2 * time.Second
	DefaultMaxRetryDelay = 30 * time.Second
)

// SupervisorBuilder provides a fluent interface for building a Supervisor.
type SupervisorBuilder struct {
	url           string
	logger        *zap.Logger
	dialer        websockets.Dialer
	dialTimeout   time.Duration
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	backoffFactor float64
	maxRetries    int
	inbound       vcp.Producer
	outbound      vcp.Consumer
	headers       http.Header
	readLimit     int64
	monitor       vcp.SessionMonitor
	metrics       o11y.MetricsProvider
	tracing       o11y.TracingProvider
}

// NewSupervisor creates a new supervisor builder.
func NewSupervisor() *SupervisorBuilder {
	return &SupervisorBuilder{
		logger:        zap.NewNop(),
		dialTimeout:   DefaultDialTimeout,
		retryDelay:    DefaultRetryDelay,
		maxRetryDelay: DefaultMaxRetryDelay,
		backoffFactor: 1,
	}
}

// WithURL sets the server address. http and https addresses are accepted
// and dialed as ws and wss.
func (b *SupervisorBuilder) WithURL(url string) *SupervisorBuilder {
	b.url = url
	return b
}

// WithLogger sets the logger for the supervisor.
func (b *SupervisorBuilder) WithLogger(logger *zap.Logger) *SupervisorBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDialer replaces the default coder/websocket dialer.
func (b *SupervisorBuilder) WithDialer(dialer websockets.Dialer) *SupervisorBuilder {
	b.dialer = dialer
	return b
}

// WithDialTimeout bounds each connect attempt.
func (b *SupervisorBuilder) WithDialTimeout(timeout time.Duration) *SupervisorBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithRetryDelay sets the wait after a failed attempt. Default is 2s.
func (b *SupervisorBuilder) WithRetryDelay(delay time.Duration) *SupervisorBuilder {
	if delay > 0 {
		b.retryDelay = delay
	}
	return b
}

// WithMaxRetryDelay caps the delay when a backoff factor is set.
func (b *SupervisorBuilder) WithMaxRetryDelay(delay time.Duration) *SupervisorBuilder {
	if delay > 0 {
		b.maxRetryDelay = delay
	}
	return b
}

// WithBackoffFactor multiplies the retry delay after each consecutive
// failure. The default of 1 keeps the delay fixed.
func (b *SupervisorBuilder) WithBackoffFactor(factor float64) *SupervisorBuilder {
	if factor >= 1 {
		b.backoffFactor = factor
	}
	return b
}

// WithMaxRetries makes Run give up after n consecutive failed attempts.
// The default of 0 retries forever.
func (b *SupervisorBuilder) WithMaxRetries(n int) *SupervisorBuilder {
	if n >= 0 {
		b.maxRetries = n
	}
	return b
}

// WithInbound sets the queue frames read from the wire are pushed to.
func (b *SupervisorBuilder) WithInbound(inbound vcp.Producer) *SupervisorBuilder {
	b.inbound = inbound
	return b
}

// WithOutbound sets the queue drained onto the wire. The supervisor lends it
// to one write pump at a time; nothing else should pop from it.
func (b *SupervisorBuilder) WithOutbound(outbound vcp.Consumer) *SupervisorBuilder {
	b.outbound = outbound
	return b
}

// WithHeader sets a single HTTP header for the WebSocket handshake.
// Ignored when a custom dialer is set.
func (b *SupervisorBuilder) WithHeader(key, value string) *SupervisorBuilder {
	if b.headers == nil {
		b.headers = make(http.Header)
	}
	b.headers.Set(key, value)
	return b
}

// WithHeaders adds HTTP headers for the WebSocket handshake.
// Ignored when a custom dialer is set.
func (b *SupervisorBuilder) WithHeaders(headers map[string][]string) *SupervisorBuilder {
	if b.headers == nil {
		b.headers = make(http.Header)
	}
	for key, values := range headers {
		b.headers[http.CanonicalHeaderKey(key)] = values
	}
	return b
}

// WithReadLimit caps the size of inbound frames. Ignored when a custom
// dialer is set.
func (b *SupervisorBuilder) WithReadLimit(limit int64) *SupervisorBuilder {
	if limit > 0 {
		b.readLimit = limit
	}
	return b
}

// WithMonitor sets an optional monitor for connection lifecycle events.
func (b *SupervisorBuilder) WithMonitor(monitor vcp.SessionMonitor) *SupervisorBuilder {
	b.monitor = monitor
	return b
}

// WithMetrics sets the metrics provider.
func (b *SupervisorBuilder) WithMetrics(provider o11y.MetricsProvider) *SupervisorBuilder {
	b.metrics = provider
	return b
}

// WithTracing sets the tracing provider.
func (b *SupervisorBuilder) WithTracing(provider o11y.TracingProvider) *SupervisorBuilder {
	b.tracing = provider
	return b
}

// IsValid checks that all required configuration is present.
func (b *SupervisorBuilder) IsValid() error {
	if b.url == "" {
		return fmt.Errorf("URL is required")
	}

	if b.inbound == nil {
		return fmt.Errorf("inbound queue is required")
	}

	if b.outbound == nil {
		return fmt.Errorf("outbound queue is required")
	}

	if b.maxRetryDelay < b.retryDelay {
		return fmt.Errorf("max retry delay %s is shorter than retry delay %s", b.maxRetryDelay, b.retryDelay)
	}

	return nil
}

// Build creates the Supervisor.
func (b *SupervisorBuilder) Build() (*Supervisor, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	dialer := b.dialer
	if dialer == nil {
		dialer = &websockets.WebSocketDialer{
			Headers:   b.headers,
			ReadLimit: b.readLimit,
		}
	}

	monitor := b.monitor
	if monitor == nil {
		monitor = vcp.BaseSessionMonitor{}
	}

	return &Supervisor{
		endpoint:    b.url,
		logger:      b.logger,
		dialer:      dialer,
		dialTimeout: b.dialTimeout,
		backoff: Backoff{
			Initial: b.retryDelay,
			Max:     b.maxRetryDelay,
			Factor:  b.backoffFactor,
		},
		maxRetries: b.maxRetries,
		inbound:    b.inbound,
		outbound:   b.outbound,
		monitor:    monitor,
		metrics:    NewSessionMetrics(b.metrics),
		tracing:    b.tracing,
	}, nil
}
