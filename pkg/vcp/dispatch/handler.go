package dispatch

import (
	"context"
	"errors"

	"github.com/tsarna/vcpclient/pkg/vcp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Handler processes one inbound message. Returned errors are logged by the
// dispatcher and do not stop it.
type Handler interface {
	Handle(ctx context.Context, msg vcp.Message) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg vcp.Message) error

// Handle calls f(ctx, msg).
func (f HandlerFunc) Handle(ctx context.Context, msg vcp.Message) error {
	return f(ctx, msg)
}

// Chain returns a handler that passes each message to every handler in
// order. All handlers run even if an earlier one fails.
func Chain(handlers ...Handler) Handler {
	return HandlerFunc(func(ctx context.Context, msg vcp.Message) error {
		var errs []error
		for _, h := range handlers {
			if err := h.Handle(ctx, msg); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// LoggingHandler logs every message and then passes it to the wrapped
// handler, if any.
type LoggingHandler struct {
	wrapped  Handler
	logger   *zap.Logger
	logLevel zapcore.Level
}

// NewLoggingHandler creates a LoggingHandler. wrapped may be nil.
func NewLoggingHandler(wrapped Handler, logger *zap.Logger, logLevel zapcore.Level) *LoggingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingHandler{
		wrapped:  wrapped,
		logger:   logger,
		logLevel: logLevel,
	}
}

func (l *LoggingHandler) Handle(ctx context.Context, msg vcp.Message) error {
	fields := []zap.Field{
		zap.Stringer("type", msg.Type),
		zap.Int("size", len(msg.Data)),
	}
	if msg.Type == vcp.MessageTypeText {
		fields = append(fields, zap.String("text", msg.Text()))
	} else {
		fields = append(fields, zap.Binary("data", msg.Data))
	}

	l.logger.Log(l.logLevel, "Handling incoming message", fields...)

	if l.wrapped != nil {
		return l.wrapped.Handle(ctx, msg)
	}
	return nil
}
