// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"log/slog"

	"github.com/flowdeck/flowdeck/pkg/conditional"
	"github.com/flowdeck/flowdeck/pkg/registry"
)

// NewRegistry builds a node handler registry with the default handlers and,
// when a plugins path is given, any node plugins found there.
func NewRegistry(ctx context.Context, logger *slog.Logger, pluginsPath string) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultHandlers(conditional.NewEvaluator(logger))

	if pluginsPath != "" {
		if err := reg.LoadNodePlugins(pluginsPath); err != nil {
			logger.WarnContext(ctx, "failed to load node plugins", "path", pluginsPath, "error", err)
		}
	}

	return reg
}
