package config

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/vcpclient/pkg/vcp"
	"github.com/tsarna/vcpclient/pkg/vcp/dispatch"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestMinimalConfig(t *testing.T) {
	cfg, diags := NewConfig().WithLogger(zap.NewNop()).
		WithSources([]byte(`server_url = "ws://localhost:8080/ws"`)).
		Build()
	require.False(t, diags.HasErrors(), diags.Error())

	assert.Equal(t, "ws://localhost:8080/ws", cfg.ServerURL)
	assert.Equal(t, DefaultShutdownGrace, cfg.ShutdownGrace)

	assert.Equal(t, 2*time.Second, cfg.Client.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Client.MaxRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Client.DialTimeout)
	assert.Equal(t, 1.0, cfg.Client.BackoffFactor)
	assert.Equal(t, vcp.DefaultQueueSize, cfg.Client.QueueSize)
	assert.Empty(t, cfg.Client.Headers)

	assert.Equal(t, 10*time.Second, cfg.Dispatch.Interval)
	assert.Equal(t, zapcore.InfoLevel, cfg.Dispatch.LogLevel)
	assert.Empty(t, cfg.Dispatch.InboundQuery)
	assert.Equal(t, dispatch.CounterSource{}, cfg.MessageSource())

	assert.True(t, cfg.Heartbeat.Enabled)
	assert.Equal(t, "@every 1s", cfg.Heartbeat.Schedule)
}

func TestFullConfig(t *testing.T) {
	cfg, diags := NewConfig().WithSources("testdata/full.vcl").Build()
	require.False(t, diags.HasErrors(), diags.Error())

	assert.Equal(t, "https://example.com/socket", cfg.ServerURL)
	assert.Equal(t, 5*time.Second, cfg.ShutdownGrace)

	assert.Equal(t, time.Second, cfg.Client.RetryDelay)
	assert.Equal(t, time.Minute, cfg.Client.MaxRetryDelay)
	assert.Equal(t, 2.0, cfg.Client.BackoffFactor)
	assert.Equal(t, 10*time.Second, cfg.Client.DialTimeout)
	assert.Equal(t, 16, cfg.Client.QueueSize)
	assert.Equal(t, int64(65536), cfg.Client.ReadLimit)
	assert.Equal(t, "vcpclient", cfg.Client.Headers.Get("User-Agent"))

	assert.Equal(t, 500*time.Millisecond, cfg.Dispatch.Interval)
	assert.Equal(t, ".payload", cfg.Dispatch.InboundQuery)
	assert.Equal(t, zapcore.DebugLevel, cfg.Dispatch.LogLevel)

	assert.False(t, cfg.Heartbeat.Enabled)
	assert.Equal(t, "*/5 * * * * *", cfg.Heartbeat.Schedule)

	msg, err := cfg.MessageSource().Next(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, vcp.MessageTypeText, msg.Type)
	assert.JSONEq(t, `{"kind":"tick","seq":4}`, msg.Text())
}

func TestJSONConfig(t *testing.T) {
	cfg, diags := NewConfig().WithSources("testdata/vcp_config.json").Build()
	require.False(t, diags.HasErrors(), diags.Error())

	assert.Equal(t, "ws://127.0.0.1:9001/ws", cfg.ServerURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.RetryDelay)
	assert.Equal(t, 4, cfg.Client.QueueSize)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.Interval)

	source := cfg.MessageSource()
	for seq := uint64(0); seq < 3; seq++ {
		msg, err := source.Next(context.Background(), seq)
		require.NoError(t, err)
		assert.Equal(t, vcp.TextMessage(fmt.Sprintf("Counter message %d", seq)), msg)
	}
}

func TestDirectoryConfig(t *testing.T) {
	cfg, diags := NewConfig().WithSources("testdata/dir").Build()
	require.False(t, diags.HasErrors(), diags.Error())

	assert.Equal(t, "ws://localhost:8080/ws", cfg.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.Dispatch.Interval)
}

func TestEnvInExpressions(t *testing.T) {
	t.Setenv("VCP_TEST_ENDPOINT", "wss://env.example.com/feed")

	cfg, diags := NewConfig().WithSources([]byte(`
server_url = env.VCP_TEST_ENDPOINT
client {
  headers = { "X-Client" = upper("vcp") }
}
`)).Build()
	require.False(t, diags.HasErrors(), diags.Error())

	assert.Equal(t, "wss://env.example.com/feed", cfg.ServerURL)
	assert.Equal(t, "VCP", cfg.Client.Headers.Get("X-Client"))
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		summary string
	}{
		{
			name:    "missing server_url",
			src:     `shutdown_grace = "1s"`,
			summary: "Missing required argument",
		},
		{
			name:    "bad scheme",
			src:     `server_url = "ftp://example.com"`,
			summary: "Invalid server_url",
		},
		{
			name:    "missing host",
			src:     `server_url = "ws:///path"`,
			summary: "Invalid server_url",
		},
		{
			name:    "non-string server_url",
			src:     `server_url = ["ws://a"]`,
			summary: "Invalid server_url",
		},
		{
			name: "bad duration",
			src: `server_url = "ws://a"
client {
  retry_delay = "soon"
}`,
			summary: "Invalid duration format",
		},
		{
			name: "negative duration",
			src: `server_url = "ws://a"
shutdown_grace = -1`,
			summary: "Invalid duration",
		},
		{
			name: "max below retry",
			src: `server_url = "ws://a"
client {
  retry_delay     = "10s"
  max_retry_delay = "1s"
}`,
			summary: "Invalid max_retry_delay",
		},
		{
			name: "backoff below one",
			src: `server_url = "ws://a"
client {
  backoff_factor = 0.5
}`,
			summary: "Invalid backoff_factor",
		},
		{
			name: "zero queue",
			src: `server_url = "ws://a"
client {
  queue_size = 0
}`,
			summary: "Invalid queue_size",
		},
		{
			name: "zero interval",
			src: `server_url = "ws://a"
dispatch {
  interval = 0
}`,
			summary: "Invalid interval",
		},
		{
			name: "bad log level",
			src: `server_url = "ws://a"
dispatch {
  log_level = "loud"
}`,
			summary: "Invalid log_level",
		},
		{
			name: "bad jq",
			src: `server_url = "ws://a"
dispatch {
  inbound_query = ".["
}`,
			summary: "Invalid inbound_query",
		},
		{
			name: "bad schedule",
			src: `server_url = "ws://a"
heartbeat {
  schedule = "whenever"
}`,
			summary: "Invalid heartbeat schedule",
		},
		{
			name:    "unknown attribute",
			src:     "server_url = \"ws://a\"\nretries = 3",
			summary: "Unsupported argument",
		},
		{
			name: "retry limit",
			src: `server_url = "ws://a"
client {
  max_retries = 3
}`,
			summary: "Unsupported argument",
		},
		{
			name:    "syntax error",
			src:     `server_url = `,
			summary: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, diags := NewConfig().WithSources([]byte(tt.src)).Build()
			require.True(t, diags.HasErrors())
			assert.Nil(t, cfg)

			found := false
			for _, d := range diags {
				found = found || strings.Contains(d.Summary, tt.summary)
			}
			assert.True(t, found, diags.Error())
		})
	}
}

func TestMissingSources(t *testing.T) {
	_, diags := NewConfig().WithSources("testdata/does-not-exist.json").Build()
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "Failed to read configuration")

	_, diags = NewConfig().Build()
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "No configuration")

	_, diags = NewConfig().WithSources(42).Build()
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "Invalid source type")
}
