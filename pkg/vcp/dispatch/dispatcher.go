package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tsarna/vcpclient/pkg/vcp"
	"go.uber.org/zap"
)

// DefaultInterval is the outbound producer period.
const DefaultInterval = 10 * time.Second

// Dispatcher runs the inbound consumer and the outbound producer.
type Dispatcher struct {
	inbound  vcp.Consumer
	outbound vcp.Producer
	handler  Handler
	source   MessageSource
	interval time.Duration
	logger   *zap.Logger

	received atomic.Uint64
	sent     atomic.Uint64
}

// DispatcherBuilder provides a fluent interface for building a Dispatcher.
type DispatcherBuilder struct {
	inbound  vcp.Consumer
	outbound vcp.Producer
	handler  Handler
	source   MessageSource
	interval time.Duration
	logger   *zap.Logger
}

// NewDispatcher creates a new dispatcher builder. Without further options
// inbound messages are logged at info level and outbound messages read
// "Counter message N".
func NewDispatcher() *DispatcherBuilder {
	return &DispatcherBuilder{
		interval: DefaultInterval,
		logger:   zap.NewNop(),
	}
}

func (b *DispatcherBuilder) WithInbound(inbound vcp.Consumer) *DispatcherBuilder {
	b.inbound = inbound
	return b
}

func (b *DispatcherBuilder) WithOutbound(outbound vcp.Producer) *DispatcherBuilder {
	b.outbound = outbound
	return b
}

func (b *DispatcherBuilder) WithHandler(handler Handler) *DispatcherBuilder {
	b.handler = handler
	return b
}

func (b *DispatcherBuilder) WithSource(source MessageSource) *DispatcherBuilder {
	b.source = source
	return b
}

// WithInterval sets the outbound producer period.
func (b *DispatcherBuilder) WithInterval(interval time.Duration) *DispatcherBuilder {
	if interval > 0 {
		b.interval = interval
	}
	return b
}

func (b *DispatcherBuilder) WithLogger(logger *zap.Logger) *DispatcherBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// IsValid checks that all required configuration is present.
func (b *DispatcherBuilder) IsValid() error {
	if b.inbound == nil {
		return fmt.Errorf("inbound queue is required")
	}
	if b.outbound == nil {
		return fmt.Errorf("outbound queue is required")
	}
	return nil
}

// Build creates the Dispatcher.
func (b *DispatcherBuilder) Build() (*Dispatcher, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	handler := b.handler
	if handler == nil {
		handler = NewLoggingHandler(nil, b.logger, zap.InfoLevel)
	}

	source := b.source
	if source == nil {
		source = CounterSource{}
	}

	return &Dispatcher{
		inbound:  b.inbound,
		outbound: b.outbound,
		handler:  handler,
		source:   source,
		interval: b.interval,
		logger:   b.logger,
	}, nil
}

// Run runs the consumer and producer concurrently and returns once both
// have stopped: on cancellation of ctx, or when their queues are closed.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Starting dispatcher", zap.Duration("interval", d.interval))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.consume(ctx)
	}()
	go func() {
		defer wg.Done()
		d.produce(ctx)
	}()
	wg.Wait()

	d.logger.Info("Dispatcher stopped",
		zap.Uint64("received", d.Received()),
		zap.Uint64("sent", d.Sent()))
	return ctx.Err()
}

// consume hands inbound messages to the handler until the queue is closed
// or ctx is cancelled.
func (d *Dispatcher) consume(ctx context.Context) {
	for {
		msg, err := d.inbound.Pop(ctx)
		if err != nil {
			if errors.Is(err, vcp.ErrQueueClosed) {
				d.logger.Info("Inbound queue closed, consumer stopping")
			}
			return
		}

		d.received.Add(1)
		if err := d.handler.Handle(ctx, msg); err != nil {
			d.logger.Warn("Handler failed", zap.Stringer("type", msg.Type), zap.Error(err))
		}
	}
}

// produce pushes one message immediately and then one per interval. Pushes
// block while the outbound queue is full.
func (d *Dispatcher) produce(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	var seq uint64
	for {
		msg, err := d.source.Next(ctx, seq)
		if err != nil {
			d.logger.Error("Failed to build outbound message", zap.Uint64("seq", seq), zap.Error(err))
		} else if err := d.outbound.Push(ctx, msg); err != nil {
			if ctx.Err() == nil {
				d.logger.Error("Failed to send outbound message, producer stopping",
					zap.Uint64("seq", seq), zap.Error(err))
			}
			return
		} else {
			d.logger.Debug("Queued outbound message", zap.Uint64("seq", seq))
			d.sent.Add(1)
			seq++
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Received returns the number of inbound messages handled.
func (d *Dispatcher) Received() uint64 {
	return d.received.Load()
}

// Sent returns the number of outbound messages queued.
func (d *Dispatcher) Sent() uint64 {
	return d.sent.Load()
}
