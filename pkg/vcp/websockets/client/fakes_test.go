package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/tsarna/vcpclient/pkg/vcp"
	"github.com/tsarna/vcpclient/pkg/vcp/o11y"
	"github.com/tsarna/vcpclient/pkg/vcp/websockets"
)

type fakeFrame struct {
	typ  websocket.MessageType
	data []byte
}

// fakeConn serves the frames queued in it, then fails reads with readErr.
// An idle fakeConn blocks in Read until closed or cancelled.
type fakeConn struct {
	frames     chan fakeFrame
	readErr    error
	writeErr   error
	writeDelay time.Duration

	mu          sync.Mutex
	written     []string
	pings       int
	closeStatus websocket.StatusCode

	closed    chan struct{}
	closeOnce sync.Once
}

func newIdleConn() *fakeConn {
	return &fakeConn{
		frames: make(chan fakeFrame),
		closed: make(chan struct{}),
	}
}

// newScriptedConn returns a conn that delivers texts in order and then
// reports readErr (io.EOF if nil), like a peer that sends and hangs up.
func newScriptedConn(readErr error, texts ...string) *fakeConn {
	c := &fakeConn{
		frames:  make(chan fakeFrame, len(texts)),
		readErr: readErr,
		closed:  make(chan struct{}),
	}
	for _, text := range texts {
		c.frames <- fakeFrame{typ: websocket.MessageText, data: []byte(text)}
	}
	close(c.frames)
	if c.readErr == nil {
		c.readErr = io.EOF
	}
	return c
}

func (c *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	default:
	}

	select {
	case f, ok := <-c.frames:
		if !ok {
			return 0, nil, c.readErr
		}
		return f.typ, f.data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (c *fakeConn) Write(ctx context.Context, typ websocket.MessageType, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.writeDelay > 0 {
		select {
		case <-time.After(c.writeDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.writeErr != nil {
		return c.writeErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, string(p))
	return nil
}

func (c *fakeConn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return nil
}

func (c *fakeConn) Close(code websocket.StatusCode, reason string) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeStatus = code
		c.mu.Unlock()
		close(c.closed)
	})
	return nil
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

func (c *fakeConn) Pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func (c *fakeConn) CloseStatus() websocket.StatusCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeStatus
}

func (c *fakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeDialer calls next with the 1-based dial count and records when each
// dial happened.
type fakeDialer struct {
	next func(n int) (websockets.Conn, error)

	mu      sync.Mutex
	calls   []time.Time
	targets []string
}

func (d *fakeDialer) Dial(ctx context.Context, target string) (websockets.Conn, error) {
	d.mu.Lock()
	d.calls = append(d.calls, time.Now())
	d.targets = append(d.targets, target)
	n := len(d.calls)
	d.mu.Unlock()

	return d.next(n)
}

func (d *fakeDialer) Calls() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.calls...)
}

// recordingMonitor forwards lifecycle events to buffered channels.
type recordingMonitor struct {
	vcp.BaseSessionMonitor

	started chan string
	ended   chan error
	failed  chan error
}

func newRecordingMonitor() *recordingMonitor {
	return &recordingMonitor{
		started: make(chan string, 16),
		ended:   make(chan error, 16),
		failed:  make(chan error, 64),
	}
}

func (m *recordingMonitor) OnSessionStart(ctx context.Context, endpoint string) {
	m.started <- endpoint
}

func (m *recordingMonitor) OnSessionEnd(ctx context.Context, endpoint string, err error) {
	m.ended <- err
}

func (m *recordingMonitor) OnConnectFailed(ctx context.Context, attempt int, err error) {
	select {
	case m.failed <- err:
	default:
	}
}

// recordingMetrics keeps the last value set on each gauge, keyed by gauge
// name and label values. Counters and histograms are discarded.
type recordingMetrics struct {
	mu     sync.Mutex
	gauges map[string]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{gauges: make(map[string]float64)}
}

func (m *recordingMetrics) Counter(name string) o11y.Counter { return nopInstrument{} }
func (m *recordingMetrics) Histogram(name string) o11y.Histogram { return nopInstrument{} }

func (m *recordingMetrics) Gauge(name string) o11y.Gauge {
	return &recordingGauge{metrics: m, name: name}
}

// Value returns the last value of the gauge with the given name and label
// values, and whether it was ever set.
func (m *recordingMetrics) Value(key string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.gauges[key]
	return v, ok
}

type recordingGauge struct {
	metrics *recordingMetrics
	name    string
}

func (g *recordingGauge) Set(ctx context.Context, value float64, labels ...o11y.Label) {
	key := g.name
	for _, l := range labels {
		key += "," + l.Key + "=" + l.Value
	}

	g.metrics.mu.Lock()
	defer g.metrics.mu.Unlock()
	g.metrics.gauges[key] = value
}

type nopInstrument struct{}

func (nopInstrument) Add(ctx context.Context, value int64, labels ...o11y.Label) {}
func (nopInstrument) Record(ctx context.Context, value float64, labels ...o11y.Label) {}
