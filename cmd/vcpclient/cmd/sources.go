package cmd

import (
	"strings"

	"github.com/tsarna/vcpclient/pkg/vcp"
	"github.com/tsarna/vcpclient/pkg/vcp/config"
	"go.uber.org/zap"
)

// loadConfig builds the configuration from the given paths, or from
// config.DefaultFile when there are none.
func loadConfig(paths []string, logger *zap.Logger) (*config.Config, error) {
	if len(paths) == 0 {
		paths = []string{config.DefaultFile}
	}

	sources := make([]any, len(paths))
	for i, p := range paths {
		sources[i] = p
	}

	cfg, diags := config.NewConfig().
		WithLogger(logger).
		WithSources(sources...).
		Build()
	if diags.HasErrors() {
		for _, diag := range diags.Errs() {
			logger.Error("Configuration error", zap.Error(diag))
		}
		return nil, &vcp.ConfigError{Source: strings.Join(paths, ", "), Err: diags}
	}

	return cfg, nil
}
