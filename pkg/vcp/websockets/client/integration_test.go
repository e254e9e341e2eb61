package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/vcpclient/pkg/vcp"
	"go.uber.org/zap/zaptest"
)

// The first connection gets two frames and is then closed by the server;
// later connections echo whatever the client sends.
func newFlakyEchoServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()

	var connections int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		if atomic.AddInt32(&connections, 1) == 1 {
			_ = conn.Write(ctx, websocket.MessageText, []byte("one"))
			_ = conn.Write(ctx, websocket.MessageBinary, []byte{0x02})
			conn.Close(websocket.StatusGoingAway, "restarting")
			return
		}

		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if err := conn.Write(ctx, typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	return server, &connections
}

func TestSupervisorAgainstWebSocketServer(t *testing.T) {
	server, connections := newFlakyEchoServer(t)

	inbound, outbound := vcp.NewQueuePair(10)
	monitor := newRecordingMonitor()

	s, err := NewSupervisor().
		WithURL(server.URL).
		WithLogger(zaptest.NewLogger(t)).
		WithRetryDelay(10 * time.Millisecond).
		WithDialTimeout(2 * time.Second).
		WithInbound(inbound).
		WithOutbound(outbound).
		WithMonitor(monitor).
		Build()
	require.NoError(t, err)

	stop := runSupervisor(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	msg, err := inbound.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, vcp.TextMessage("one"), msg)

	msg, err = inbound.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, vcp.MessageTypeBinary, msg.Type)
	assert.Equal(t, []byte{0x02}, msg.Data)

	waitFor(t, monitor.started, "first session")
	waitFor(t, monitor.ended, "first session end")
	waitFor(t, monitor.started, "second session")

	require.NoError(t, outbound.Push(ctx, vcp.TextMessage("echo me")))
	msg, err = inbound.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "echo me", msg.Text())

	assert.EqualValues(t, 2, atomic.LoadInt32(connections))
	assert.ErrorIs(t, stop(), context.Canceled)
}
