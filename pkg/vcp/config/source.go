package config

import (
	"context"
	"errors"

	"github.com/hashicorp/hcl/v2"
	"github.com/tsarna/vcpclient/pkg/vcp"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ExpressionSource builds outbound messages by evaluating the dispatch
// message expression with seq bound to the sequence number. Strings are
// sent verbatim; any other value is sent as JSON text.
type ExpressionSource struct {
	expr    hcl.Expression
	evalCtx *hcl.EvalContext
}

// NewExpressionSource binds expr to the variables and functions of evalCtx.
func NewExpressionSource(expr hcl.Expression, evalCtx *hcl.EvalContext) *ExpressionSource {
	return &ExpressionSource{expr: expr, evalCtx: evalCtx}
}

func (s *ExpressionSource) Next(ctx context.Context, seq uint64) (vcp.Message, error) {
	evalCtx := s.evalCtx.NewChild()
	evalCtx.Variables = map[string]cty.Value{
		"seq": cty.NumberUIntVal(seq),
	}

	val, diags := s.expr.Value(evalCtx)
	if diags.HasErrors() {
		return vcp.Message{}, diags
	}

	switch {
	case val.IsNull():
		return vcp.Message{}, errors.New("message expression evaluated to null")
	case !val.IsWhollyKnown():
		return vcp.Message{}, errors.New("message expression has unknown values")
	case val.Type() == cty.String:
		return vcp.TextMessage(val.AsString()), nil
	}

	raw, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return vcp.Message{}, err
	}
	return vcp.TextMessage(string(raw)), nil
}
