package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/tsarna/vcpclient/pkg/vcp"
	"go.uber.org/zap"
)

// JqHandler applies a jq query to inbound messages before passing them on.
//
// Text payloads that parse as JSON are queried as JSON; other text is
// queried as a plain string. Binary frames pass through untouched. The query
// can refer to $type, the frame type name. A single result is forwarded as a
// JSON text message, several results as a JSON array, and a query that
// produces nothing drops the message. When the query fails at runtime the
// original message is forwarded unchanged.
type JqHandler struct {
	query   string
	code    *gojq.Code
	wrapped Handler
	logger  *zap.Logger
}

// NewJqHandler compiles query and returns a handler forwarding to wrapped.
func NewJqHandler(query string, wrapped Handler, logger *zap.Logger) (*JqHandler, error) {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq query '%s': %w", query, err)
	}

	code, err := gojq.Compile(parsed, gojq.WithVariables([]string{"$type"}))
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq query '%s': %w", query, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &JqHandler{
		query:   query,
		code:    code,
		wrapped: wrapped,
		logger:  logger,
	}, nil
}

func (h *JqHandler) Handle(ctx context.Context, msg vcp.Message) error {
	if msg.Type != vcp.MessageTypeText {
		return h.forward(ctx, msg)
	}

	var input any
	if err := json.Unmarshal(msg.Data, &input); err != nil {
		input = msg.Text()
	}

	iter := h.code.RunWithContext(ctx, input, msg.Type.String())

	var results []any
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := result.(error); isErr {
			h.logger.Warn("jq query failed, passing message through",
				zap.String("jq_query", h.query),
				zap.Error(err))
			return h.forward(ctx, msg)
		}
		results = append(results, result)
	}

	if len(results) == 0 {
		h.logger.Debug("jq query produced no results, dropping message", zap.String("jq_query", h.query))
		return nil
	}

	var payload any = results
	if len(results) == 1 {
		payload = results[0]
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode jq result: %w", err)
	}

	return h.forward(ctx, vcp.Message{Type: vcp.MessageTypeText, Data: data})
}

func (h *JqHandler) forward(ctx context.Context, msg vcp.Message) error {
	if h.wrapped == nil {
		return nil
	}
	return h.wrapped.Handle(ctx, msg)
}
