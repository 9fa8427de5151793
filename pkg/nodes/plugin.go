package nodes

import (
	"context"
	"errors"
	"time"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// PluginNode is the symbol contract a Go plugin must export (as "Node") to be
// loadable by the registry.
type PluginNode interface {
	Name() string
	Execute(ctx context.Context, config map[string]any, variables map[string]any) (map[string]any, error)
}

// PluginHandler dispatches plugin nodes to PluginNode implementations loaded
// from shared objects, keyed by config.plugin.
type PluginHandler struct {
	plugins map[string]PluginNode
}

func NewPluginHandler() *PluginHandler {
	return &PluginHandler{plugins: make(map[string]PluginNode)}
}

// Register adds a loaded plugin node.
func (h *PluginHandler) Register(plugin PluginNode) {
	h.plugins[plugin.Name()] = plugin
}

func (h *PluginHandler) Type() models.NodeType {
	return models.NodeTypePlugin
}

func (h *PluginHandler) ResultKey() string {
	return "pluginResult"
}

func (h *PluginHandler) Execute(ctx context.Context, _ *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	started := time.Now()

	name := configString(node.Config, "plugin")
	if name == "" {
		return nil, errors.New("plugin node requires a 'plugin' name")
	}

	plugin, ok := h.plugins[name]
	if !ok {
		return nil, errors.New("plugin '" + name + "' not loaded")
	}

	output, err := plugin.Execute(ctx, node.Config, execCtx.VariablesSnapshot())
	if err != nil {
		return nil, err
	}

	return successResult(node.ID, started, output), nil
}
