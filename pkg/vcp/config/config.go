package config

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/itchyny/gojq"
	"github.com/tsarna/vcpclient/pkg/vcp"
	"github.com/tsarna/vcpclient/pkg/vcp/config/functions"
	"github.com/tsarna/vcpclient/pkg/vcp/dispatch"
	"github.com/tsarna/vcpclient/pkg/vcp/heartbeat"
	"github.com/tsarna/vcpclient/pkg/vcp/websockets"
	"github.com/tsarna/vcpclient/pkg/vcp/websockets/client"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultFile is read when no configuration path is given.
const DefaultFile = "vcp_config.json"

// DefaultShutdownGrace bounds how long shutdown waits for running tasks.
const DefaultShutdownGrace = 2 * time.Second

type ConfigBuilder struct {
	logger  *zap.Logger
	sources []any
}

type Config struct {
	Logger    *zap.Logger
	Functions map[string]function.Function
	Constants map[string]cty.Value
	evalCtx   *hcl.EvalContext

	ServerURL     string
	ShutdownGrace time.Duration
	Client        ClientConfig
	Dispatch      DispatchConfig
	Heartbeat     HeartbeatConfig
}

type ClientConfig struct {
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	BackoffFactor float64
	DialTimeout   time.Duration
	QueueSize     int
	ReadLimit     int64
	Headers       http.Header
}

type DispatchConfig struct {
	Interval     time.Duration
	InboundQuery string
	LogLevel     zapcore.Level

	message hcl.Expression
}

type HeartbeatConfig struct {
	Enabled  bool
	Schedule string
}

type fileConfig struct {
	ServerURL     hcl.Expression  `hcl:"server_url"`
	ShutdownGrace hcl.Expression  `hcl:"shutdown_grace,optional"`
	Client        *clientBlock    `hcl:"client,block"`
	Dispatch      *dispatchBlock  `hcl:"dispatch,block"`
	Heartbeat     *heartbeatBlock `hcl:"heartbeat,block"`
}

type clientBlock struct {
	RetryDelay    hcl.Expression    `hcl:"retry_delay,optional"`
	MaxRetryDelay hcl.Expression    `hcl:"max_retry_delay,optional"`
	BackoffFactor *float64          `hcl:"backoff_factor,optional"`
	DialTimeout   hcl.Expression    `hcl:"dial_timeout,optional"`
	QueueSize     *int              `hcl:"queue_size,optional"`
	ReadLimit     *int64            `hcl:"read_limit,optional"`
	Headers       map[string]string `hcl:"headers,optional"`
	DefRange      hcl.Range         `hcl:",def_range"`
}

type dispatchBlock struct {
	Interval     hcl.Expression `hcl:"interval,optional"`
	Message      hcl.Expression `hcl:"message,optional"`
	InboundQuery *string        `hcl:"inbound_query,optional"`
	LogLevel     *string        `hcl:"log_level,optional"`
	DefRange     hcl.Range      `hcl:",def_range"`
}

type heartbeatBlock struct {
	Enabled  *bool     `hcl:"enabled,optional"`
	Schedule *string   `hcl:"schedule,optional"`
	DefRange hcl.Range `hcl:",def_range"`
}

func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{
		sources: make([]any, 0),
	}
}

func (cb *ConfigBuilder) WithLogger(logger *zap.Logger) *ConfigBuilder {
	cb.logger = logger
	return cb
}

func (cb *ConfigBuilder) WithSources(sources ...any) *ConfigBuilder {
	cb.sources = append(cb.sources, sources...)
	return cb
}

func (cb *ConfigBuilder) Build() (*Config, hcl.Diagnostics) {
	logger := cb.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	config := &Config{
		Logger:    logger,
		Functions: functions.Standard(),
		Constants: map[string]cty.Value{
			"env": EnvObject(),
		},
	}
	for name, fn := range functions.Logging(logger) {
		config.Functions[name] = fn
	}
	config.evalCtx = &hcl.EvalContext{
		Functions: config.Functions,
		Variables: config.Constants,
	}

	bodies, diags := ParseSources(cb.sources...)
	if diags.HasErrors() {
		return nil, diags
	}
	if len(bodies) == 0 {
		return nil, diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "No configuration",
			Detail:   "No configuration files were found",
		})
	}

	var fc fileConfig
	diags = diags.Extend(gohcl.DecodeBody(hcl.MergeBodies(bodies), config.evalCtx, &fc))
	if diags.HasErrors() {
		return nil, diags
	}

	diags = diags.Extend(config.decodeTopLevel(&fc))
	diags = diags.Extend(config.decodeClient(fc.Client))
	diags = diags.Extend(config.decodeDispatch(fc.Dispatch))
	diags = diags.Extend(config.decodeHeartbeat(fc.Heartbeat))
	if diags.HasErrors() {
		return nil, diags
	}

	config.Logger.Info("Config built successfully", zap.String("server_url", config.ServerURL))

	return config, diags
}

// EvalContext returns the context config expressions are evaluated in.
func (c *Config) EvalContext() *hcl.EvalContext {
	return c.evalCtx
}

// MessageSource returns the producer's message source: the configured
// message expression, or the default counter format when none is set.
func (c *Config) MessageSource() dispatch.MessageSource {
	if IsExpressionProvided(c.Dispatch.message) {
		return NewExpressionSource(c.Dispatch.message, c.evalCtx)
	}
	return dispatch.CounterSource{}
}

func (c *Config) decodeTopLevel(fc *fileConfig) hcl.Diagnostics {
	var diags hcl.Diagnostics

	val, valDiags := fc.ServerURL.Value(c.evalCtx)
	diags = diags.Extend(valDiags)
	if !valDiags.HasErrors() {
		str, err := convert.Convert(val, cty.String)
		if err != nil || str.IsNull() || !str.IsKnown() {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid server_url",
				Detail:   "server_url must be a string",
				Subject:  fc.ServerURL.Range().Ptr(),
			})
		} else if _, err := websockets.NormalizeEndpoint(str.AsString()); err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid server_url",
				Detail:   err.Error(),
				Subject:  fc.ServerURL.Range().Ptr(),
			})
		} else {
			c.ServerURL = str.AsString()
		}
	}

	grace, durDiags := ParseDuration(fc.ShutdownGrace, c.evalCtx, DefaultShutdownGrace)
	diags = diags.Extend(durDiags)
	c.ShutdownGrace = grace

	return diags
}

func (c *Config) decodeClient(block *clientBlock) hcl.Diagnostics {
	c.Client = ClientConfig{
		RetryDelay:    client.DefaultRetryDelay,
		MaxRetryDelay: client.DefaultMaxRetryDelay,
		BackoffFactor: 1,
		DialTimeout:   client.DefaultDialTimeout,
		QueueSize:     vcp.DefaultQueueSize,
		Headers:       http.Header{},
	}
	if block == nil {
		return nil
	}

	var diags, addDiags hcl.Diagnostics

	c.Client.RetryDelay, addDiags = ParseDuration(block.RetryDelay, c.evalCtx, client.DefaultRetryDelay)
	diags = diags.Extend(addDiags)
	c.Client.MaxRetryDelay, addDiags = ParseDuration(block.MaxRetryDelay, c.evalCtx, max(client.DefaultMaxRetryDelay, c.Client.RetryDelay))
	diags = diags.Extend(addDiags)
	c.Client.DialTimeout, addDiags = ParseDuration(block.DialTimeout, c.evalCtx, client.DefaultDialTimeout)
	diags = diags.Extend(addDiags)

	if c.Client.MaxRetryDelay < c.Client.RetryDelay {
		diags = diags.Append(blockError(block.DefRange, "Invalid max_retry_delay",
			fmt.Sprintf("max_retry_delay (%s) must not be less than retry_delay (%s)", c.Client.MaxRetryDelay, c.Client.RetryDelay)))
	}
	if c.Client.DialTimeout == 0 {
		diags = diags.Append(blockError(block.DefRange, "Invalid dial_timeout", "dial_timeout must be positive"))
	}

	if block.BackoffFactor != nil {
		if *block.BackoffFactor < 1 {
			diags = diags.Append(blockError(block.DefRange, "Invalid backoff_factor", "backoff_factor must be at least 1"))
		}
		c.Client.BackoffFactor = *block.BackoffFactor
	}
	if block.QueueSize != nil {
		if *block.QueueSize < 1 {
			diags = diags.Append(blockError(block.DefRange, "Invalid queue_size", "queue_size must be at least 1"))
		}
		c.Client.QueueSize = *block.QueueSize
	}
	if block.ReadLimit != nil {
		c.Client.ReadLimit = *block.ReadLimit
	}
	for name, value := range block.Headers {
		c.Client.Headers.Add(name, value)
	}

	return diags
}

func (c *Config) decodeDispatch(block *dispatchBlock) hcl.Diagnostics {
	c.Dispatch = DispatchConfig{
		Interval: dispatch.DefaultInterval,
		LogLevel: zapcore.InfoLevel,
	}
	if block == nil {
		return nil
	}

	var diags, addDiags hcl.Diagnostics

	c.Dispatch.Interval, addDiags = ParseDuration(block.Interval, c.evalCtx, dispatch.DefaultInterval)
	diags = diags.Extend(addDiags)
	if !addDiags.HasErrors() && c.Dispatch.Interval == 0 {
		diags = diags.Append(blockError(block.DefRange, "Invalid interval", "interval must be positive"))
	}

	c.Dispatch.message = block.Message

	if block.InboundQuery != nil {
		if _, err := gojq.Parse(*block.InboundQuery); err != nil {
			diags = diags.Append(blockError(block.DefRange, "Invalid inbound_query", err.Error()))
		}
		c.Dispatch.InboundQuery = *block.InboundQuery
	}

	if block.LogLevel != nil {
		level, err := zapcore.ParseLevel(*block.LogLevel)
		if err != nil {
			diags = diags.Append(blockError(block.DefRange, "Invalid log_level", err.Error()))
		}
		c.Dispatch.LogLevel = level
	}

	return diags
}

func (c *Config) decodeHeartbeat(block *heartbeatBlock) hcl.Diagnostics {
	c.Heartbeat = HeartbeatConfig{
		Enabled:  true,
		Schedule: heartbeat.DefaultSchedule,
	}
	if block == nil {
		return nil
	}

	var diags hcl.Diagnostics

	if block.Enabled != nil {
		c.Heartbeat.Enabled = *block.Enabled
	}
	if block.Schedule != nil {
		if err := heartbeat.ValidateSchedule(*block.Schedule); err != nil {
			diags = diags.Append(blockError(block.DefRange, "Invalid heartbeat schedule", err.Error()))
		}
		c.Heartbeat.Schedule = *block.Schedule
	}

	return diags
}

func blockError(subject hcl.Range, summary, detail string) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  subject.Ptr(),
	}
}
