package client

import (
	"context"
	"errors"

	"github.com/tsarna/vcpclient/pkg/vcp"
	"github.com/tsarna/vcpclient/pkg/vcp/websockets"
	"go.uber.org/zap"
)

// readPump forwards frames from the connection to the inbound queue until a
// read fails, the queue is closed or ctx is cancelled.
func (s *Supervisor) readPump(ctx context.Context, conn websockets.Conn, logger *zap.Logger) error {
	defer logger.Debug("Read pump stopped")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &vcp.ReadError{Err: err}
		}

		msg := websockets.FromWire(typ, data)
		s.metrics.RecordFrameReceived(ctx, msg)

		if err := s.inbound.Push(ctx, msg); err != nil {
			if errors.Is(err, vcp.ErrQueueClosed) {
				logger.Warn("Inbound queue closed, dropping frame", zap.Stringer("type", msg.Type))
			}
			return err
		}
		s.metrics.RecordQueueDepth(ctx, "inbound", s.inbound.Len())
	}
}

// writePump sends messages from the outbound queue until a write fails, the
// queue is closed or ctx is cancelled. A message whose write fails is held
// and sent first by the next session, ahead of anything still queued.
func (s *Supervisor) writePump(ctx context.Context, conn websockets.Conn, logger *zap.Logger) error {
	defer logger.Debug("Write pump stopped")

	for {
		msg, err := s.nextOutbound(ctx)
		if err != nil {
			return err
		}

		if msg.Type == vcp.MessageTypePing {
			if err := conn.Ping(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return &vcp.WriteError{Err: err}
			}
			continue
		}

		typ, err := websockets.ToWire(msg)
		if err != nil {
			logger.Warn("Dropping outbound message", zap.Error(err))
			continue
		}

		if err := conn.Write(ctx, typ, msg.Data); err != nil {
			s.held = &msg
			logger.Warn("Outbound message held for the next session",
				zap.Stringer("message", msg), zap.Error(err))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &vcp.WriteError{Err: err}
		}
		s.metrics.RecordFrameSent(ctx, msg)
	}
}

// nextOutbound returns the held message, if any, before popping the queue.
func (s *Supervisor) nextOutbound(ctx context.Context) (vcp.Message, error) {
	if s.held != nil {
		msg := *s.held
		s.held = nil
		return msg, nil
	}

	msg, err := s.outbound.Pop(ctx)
	if err != nil {
		return vcp.Message{}, err
	}
	s.metrics.RecordQueueDepth(ctx, "outbound", s.outbound.Len())
	return msg, nil
}

// dropHeld logs a held message that no session will send.
func (s *Supervisor) dropHeld() {
	if s.held == nil {
		return
	}
	s.logger.Warn("Outbound message lost", zap.Stringer("message", *s.held))
	s.held = nil
}
