package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/vcpclient/pkg/vcp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingHandler(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	t.Run("standalone logs text and binary frames", func(t *testing.T) {
		h := NewLoggingHandler(nil, logger, zapcore.InfoLevel)

		require.NoError(t, h.Handle(context.Background(), vcp.TextMessage("hello")))
		require.NoError(t, h.Handle(context.Background(), vcp.BinaryMessage([]byte{1, 2})))

		entries := logs.TakeAll()
		require.Len(t, entries, 2)
		assert.Equal(t, "Handling incoming message", entries[0].Message)
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		assert.Equal(t, "hello", entries[0].ContextMap()["text"])
		assert.Equal(t, "text", entries[0].ContextMap()["type"])
		assert.Equal(t, "binary", entries[1].ContextMap()["type"])
		assert.Equal(t, int64(2), entries[1].ContextMap()["size"])
	})

	t.Run("wrapped handler is called and its error returned", func(t *testing.T) {
		boom := errors.New("boom")
		var got vcp.Message
		wrapped := HandlerFunc(func(ctx context.Context, msg vcp.Message) error {
			got = msg
			return boom
		})

		h := NewLoggingHandler(wrapped, logger, zapcore.DebugLevel)
		err := h.Handle(context.Background(), vcp.TextMessage("x"))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "x", got.Text())

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	})

	t.Run("nil logger is replaced", func(t *testing.T) {
		h := NewLoggingHandler(nil, nil, zapcore.InfoLevel)
		assert.NoError(t, h.Handle(context.Background(), vcp.TextMessage("quiet")))
	})
}

func TestJqHandler(t *testing.T) {
	run := func(t *testing.T, query string, in vcp.Message) []vcp.Message {
		t.Helper()
		handler := &collectingHandler{}
		h, err := NewJqHandler(query, handler, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, h.Handle(context.Background(), in))
		return handler.msgs
	}

	t.Run("extracts a field from JSON text", func(t *testing.T) {
		out := run(t, ".price", vcp.TextMessage(`{"symbol":"BTC","price":42.5}`))
		require.Len(t, out, 1)
		assert.Equal(t, vcp.MessageTypeText, out[0].Type)
		assert.Equal(t, "42.5", out[0].Text())
	})

	t.Run("restructures with type variable", func(t *testing.T) {
		out := run(t, `{s: .symbol, t: $type}`, vcp.TextMessage(`{"symbol":"ETH"}`))
		require.Len(t, out, 1)
		assert.JSONEq(t, `{"s":"ETH","t":"text"}`, out[0].Text())
	})

	t.Run("multiple results become an array", func(t *testing.T) {
		out := run(t, ".[] | select(. > 1)", vcp.TextMessage(`[1,2,3]`))
		require.Len(t, out, 1)
		assert.JSONEq(t, `[2,3]`, out[0].Text())
	})

	t.Run("no results drops the message", func(t *testing.T) {
		out := run(t, "select(.kind == \"trade\")", vcp.TextMessage(`{"kind":"heartbeat"}`))
		assert.Empty(t, out)
	})

	t.Run("non-JSON text is queried as a string", func(t *testing.T) {
		out := run(t, "ascii_upcase", vcp.TextMessage("Counter message 3"))
		require.Len(t, out, 1)
		assert.Equal(t, `"COUNTER MESSAGE 3"`, out[0].Text())
	})

	t.Run("runtime error passes the original through", func(t *testing.T) {
		in := vcp.TextMessage(`"just a string"`)
		out := run(t, ".field", in)
		require.Len(t, out, 1)
		assert.Equal(t, in, out[0])
	})

	t.Run("binary frames are not queried", func(t *testing.T) {
		in := vcp.BinaryMessage([]byte{0xff})
		out := run(t, ".x", in)
		require.Len(t, out, 1)
		assert.Equal(t, in, out[0])
	})

	t.Run("nil wrapped handler", func(t *testing.T) {
		h, err := NewJqHandler(".", nil, nil)
		require.NoError(t, err)
		assert.NoError(t, h.Handle(context.Background(), vcp.TextMessage("{}")))
	})

	t.Run("invalid query", func(t *testing.T) {
		_, err := NewJqHandler(".[", nil, nil)
		assert.ErrorContains(t, err, "failed to parse jq query")

		_, err = NewJqHandler("$undefined", nil, nil)
		assert.ErrorContains(t, err, "failed to compile jq query")
	})
}

func TestChain(t *testing.T) {
	var calls []string
	record := func(name string, err error) Handler {
		return HandlerFunc(func(ctx context.Context, msg vcp.Message) error {
			calls = append(calls, name+":"+msg.Text())
			return err
		})
	}

	boom := errors.New("boom")
	h := Chain(record("a", nil), record("b", boom), record("c", nil))

	err := h.Handle(context.Background(), vcp.TextMessage("x"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a:x", "b:x", "c:x"}, calls)

	assert.NoError(t, Chain().Handle(context.Background(), vcp.TextMessage("y")))
}
