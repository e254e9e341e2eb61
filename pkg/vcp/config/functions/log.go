package functions

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging returns log_debug, log_info, log_warn, log_error and log_msg. Each
// returns true so it can be used inside an expression. Extra arguments
// become log fields: a single object contributes its attributes, anything
// else is numbered $1, $2, ...
func Logging(logger *zap.Logger) map[string]function.Function {
	if logger == nil {
		logger = zap.NewNop()
	}
	return map[string]function.Function{
		"log_debug": logAtLevel(logger, zapcore.DebugLevel),
		"log_info":  logAtLevel(logger, zapcore.InfoLevel),
		"log_warn":  logAtLevel(logger, zapcore.WarnLevel),
		"log_error": logAtLevel(logger, zapcore.ErrorLevel),
		"log_msg":   logWithLevel(logger),
	}
}

func logAtLevel(logger *zap.Logger, level zapcore.Level) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "message", Type: cty.String},
		},
		VarParam: &function.Parameter{Name: "fields", Type: cty.DynamicPseudoType, AllowNull: true},
		Type:     function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			logger.Log(level, args[0].AsString(), logFields(args[1:])...)
			return cty.True, nil
		},
	})
}

func logWithLevel(logger *zap.Logger) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "level", Type: cty.String},
			{Name: "message", Type: cty.String},
		},
		VarParam: &function.Parameter{Name: "fields", Type: cty.DynamicPseudoType, AllowNull: true},
		Type:     function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			level, err := zapcore.ParseLevel(args[0].AsString())
			if err != nil {
				level = zapcore.InfoLevel
			}
			logger.Log(level, args[1].AsString(), logFields(args[2:])...)
			return cty.True, nil
		},
	})
}

func logFields(args []cty.Value) []zap.Field {
	if len(args) == 1 && !args[0].IsNull() && args[0].IsKnown() &&
		(args[0].Type().IsObjectType() || args[0].Type().IsMapType()) && args[0].LengthInt() > 0 {
		fields := make([]zap.Field, 0, args[0].LengthInt())
		for it := args[0].ElementIterator(); it.Next(); {
			k, v := it.Element()
			fields = append(fields, logField(k.AsString(), v))
		}
		return fields
	}

	fields := make([]zap.Field, 0, len(args))
	for i, arg := range args {
		fields = append(fields, logField(fmt.Sprintf("$%d", i+1), arg))
	}
	return fields
}

func logField(key string, val cty.Value) zap.Field {
	switch {
	case val.IsNull():
		return zap.String(key, "<null>")
	case !val.IsKnown():
		return zap.String(key, "<unknown>")
	case val.Type() == cty.String:
		return zap.String(key, val.AsString())
	case val.Type() == cty.Bool:
		return zap.Bool(key, val.True())
	case val.Type() == cty.Number:
		bf := val.AsBigFloat()
		if i, acc := bf.Int64(); acc == 0 {
			return zap.Int64(key, i)
		}
		f, _ := bf.Float64()
		return zap.Float64(key, f)
	}

	raw, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return zap.String(key, val.GoString())
	}
	return zap.ByteString(key, raw)
}
