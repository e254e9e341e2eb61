package functions

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// JqFunc runs a jq query against a value. A single result is returned as is,
// several results as a tuple, and no result as null.
var JqFunc = function.New(&function.Spec{
	Description: "Applies a jq query to a value",
	Params: []function.Parameter{
		{Name: "query", Type: cty.String},
		{Name: "value", Type: cty.DynamicPseudoType, AllowNull: true},
	},
	Type: function.StaticReturnType(cty.DynamicPseudoType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		query, err := gojq.Parse(args[0].AsString())
		if err != nil {
			return cty.NilVal, fmt.Errorf("jq: parsing query: %w", err)
		}

		input, err := ctyToJSONValue(args[1])
		if err != nil {
			return cty.NilVal, err
		}

		var results []any
		iter := query.Run(input)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				return cty.NilVal, fmt.Errorf("jq: %w", err)
			}
			results = append(results, v)
		}

		switch len(results) {
		case 0:
			return cty.NullVal(cty.DynamicPseudoType), nil
		case 1:
			return jsonValueToCty(results[0])
		default:
			return jsonValueToCty(results)
		}
	},
})

// gojq only accepts the value shapes produced by encoding/json, so values
// cross the boundary as JSON.
func ctyToJSONValue(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	raw, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return nil, fmt.Errorf("jq: encoding input: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("jq: decoding input: %w", err)
	}
	return out, nil
}

func jsonValueToCty(v any) (cty.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("jq: encoding result: %w", err)
	}
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return cty.NilVal, fmt.Errorf("jq: typing result: %w", err)
	}
	return ctyjson.Unmarshal(raw, ty)
}
