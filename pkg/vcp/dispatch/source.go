package dispatch

import (
	"context"
	"fmt"

	"github.com/tsarna/vcpclient/pkg/vcp"
)

// DefaultMessageFormat is the CounterSource format when none is given.
const DefaultMessageFormat = "Counter message %d"

// MessageSource builds the outbound message for sequence number seq.
type MessageSource interface {
	Next(ctx context.Context, seq uint64) (vcp.Message, error)
}

// MessageSourceFunc adapts an ordinary function to the MessageSource interface.
type MessageSourceFunc func(ctx context.Context, seq uint64) (vcp.Message, error)

func (f MessageSourceFunc) Next(ctx context.Context, seq uint64) (vcp.Message, error) {
	return f(ctx, seq)
}

// CounterSource produces text messages by formatting the sequence number.
type CounterSource struct {
	Format string
}

func (s CounterSource) Next(ctx context.Context, seq uint64) (vcp.Message, error) {
	format := s.Format
	if format == "" {
		format = DefaultMessageFormat
	}
	return vcp.TextMessage(fmt.Sprintf(format, seq)), nil
}
