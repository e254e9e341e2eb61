package config

import (
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// EnvObject returns the process environment as a cty object, exposed to
// expressions as env.NAME. Names that are not valid identifiers have the
// offending characters replaced with underscores.
func EnvObject() cty.Value {
	attrs := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		attrs[envAttrName(name)] = cty.StringVal(value)
	}
	return cty.ObjectVal(attrs)
}

func envAttrName(name string) string {
	if name == "" {
		return "_"
	}

	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
