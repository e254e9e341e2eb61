package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/sosodev/duration"
	"github.com/zclconf/go-cty/cty"
)

// IsExpressionProvided reports whether expr came from the configuration
// rather than being synthesized by gohcl for a missing attribute.
func IsExpressionProvided(expr hcl.Expression) bool {
	return expr != nil && expr.Range().End.Byte > expr.Range().Start.Byte
}

// ParseDuration evaluates a duration attribute. Numbers are seconds, strings
// starting with P are ISO 8601 durations and anything else goes through
// time.ParseDuration. Missing or null attributes yield def.
func ParseDuration(expr hcl.Expression, evalCtx *hcl.EvalContext, def time.Duration) (time.Duration, hcl.Diagnostics) {
	if !IsExpressionProvided(expr) {
		return def, nil
	}

	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return 0, diags
	}
	if val.IsNull() {
		return def, diags
	}

	invalid := func(summary, detail string) (time.Duration, hcl.Diagnostics) {
		return 0, diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  summary,
			Detail:   detail,
			Subject:  expr.Range().Ptr(),
		})
	}

	var d time.Duration

	switch val.Type() {
	case cty.Number:
		seconds, _ := val.AsBigFloat().Float64()
		if math.IsInf(seconds, 0) || math.IsNaN(seconds) {
			return invalid("Invalid duration", "Duration must be a finite number of seconds")
		}
		d = time.Duration(seconds * float64(time.Second))
	case cty.String:
		str := strings.TrimSpace(val.AsString())
		if strings.HasPrefix(str, "P") {
			iso, err := duration.Parse(str)
			if err != nil {
				return invalid("Invalid ISO 8601 duration", fmt.Sprintf("Failed to parse ISO 8601 duration '%s': %v", str, err))
			}
			d = iso.ToTimeDuration()
		} else {
			var err error
			d, err = time.ParseDuration(str)
			if err != nil {
				return invalid("Invalid duration format", fmt.Sprintf("Failed to parse duration '%s': %v. Expected a number (seconds), ISO 8601 duration (e.g., 'PT5M'), or Go duration (e.g., '5m')", str, err))
			}
		}
	default:
		return invalid("Invalid duration type", fmt.Sprintf("Duration must be a number (seconds) or string, got %s", val.Type().FriendlyName()))
	}

	if d < 0 {
		return invalid("Invalid duration", "Duration must not be negative")
	}
	return d, diags
}
