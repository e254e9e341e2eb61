package functions

import (
	"fmt"

	"github.com/tsarna/go-structdiff"
	"github.com/tsarna/go2cty2go"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// DiffFunc returns the patch that turns its first argument into its second.
var DiffFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "from", Type: cty.DynamicPseudoType},
		{Name: "to", Type: cty.DynamicPseudoType},
	},
	Type: function.StaticReturnType(cty.DynamicPseudoType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		from, err := go2cty2go.CtyToAny(args[0])
		if err != nil {
			return cty.NilVal, fmt.Errorf("diff: converting from: %w", err)
		}
		to, err := go2cty2go.CtyToAny(args[1])
		if err != nil {
			return cty.NilVal, fmt.Errorf("diff: converting to: %w", err)
		}

		patch, err := structdiff.Diff(from, to)
		if err != nil {
			return cty.NilVal, fmt.Errorf("diff: %w", err)
		}
		return go2cty2go.AnyToCty(patch)
	},
})

// PatchFunc applies a patch produced by diff to an object. It is handy for
// building outbound messages from a template object.
var PatchFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "target", Type: cty.DynamicPseudoType},
		{Name: "patch", Type: cty.DynamicPseudoType},
	},
	Type: function.StaticReturnType(cty.DynamicPseudoType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		target, err := toMap(args[0], "target")
		if err != nil {
			return cty.NilVal, err
		}
		patch, err := toMap(args[1], "patch")
		if err != nil {
			return cty.NilVal, err
		}

		if err := structdiff.Apply(&target, patch); err != nil {
			return cty.NilVal, fmt.Errorf("patch: %w", err)
		}
		return go2cty2go.AnyToCty(target)
	},
})

func toMap(val cty.Value, name string) (map[string]any, error) {
	v, err := go2cty2go.CtyToAny(val)
	if err != nil {
		return nil, fmt.Errorf("patch: converting %s: %w", name, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("patch: %s must be an object", name)
	}
	return m, nil
}
