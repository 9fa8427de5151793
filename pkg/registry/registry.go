// Package registry provides node handler registration and plugin loading.
package registry

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"

	"github.com/flowdeck/flowdeck/pkg/conditional"
	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/nodes"
)

type Registry struct {
	logger   *slog.Logger
	handlers map[models.NodeType]nodes.Handler
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		logger:   logger,
		handlers: make(map[models.NodeType]nodes.Handler),
	}
}

// RegisterHandler binds a handler for its node type, replacing any previous one.
func (r *Registry) RegisterHandler(handler nodes.Handler) {
	r.handlers[handler.Type()] = handler
}

// HandlerFor returns the handler for a node type.
func (r *Registry) HandlerFor(nodeType models.NodeType) (nodes.Handler, error) {
	handler, ok := r.handlers[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", nodeType)
	}

	return handler, nil
}

// RegisterDefaultHandlers registers all built-in node handlers.
func (r *Registry) RegisterDefaultHandlers(evaluator *conditional.Evaluator) {
	r.RegisterHandler(nodes.NewTriggerHandler())
	r.RegisterHandler(nodes.NewActionHandler())
	r.RegisterHandler(nodes.NewConditionHandler(evaluator))
	r.RegisterHandler(nodes.NewLoopHandler(evaluator))
	r.RegisterHandler(nodes.NewParallelHandler())
	r.RegisterHandler(nodes.NewDelayHandler())
	r.RegisterHandler(nodes.NewTransformHandler())
	r.RegisterHandler(nodes.NewAPIHandler())
	r.RegisterHandler(nodes.NewPluginHandler())
	r.RegisterHandler(nodes.NewCustomHandler())
}

// LoadNodePlugins loads PluginNode implementations from shared objects under
// pluginsPath and registers them with the plugin handler. Each .so must export
// a "Node" symbol implementing nodes.PluginNode.
func (r *Registry) LoadNodePlugins(pluginsPath string) error {
	handler, err := r.HandlerFor(models.NodeTypePlugin)
	if err != nil {
		return err
	}

	pluginHandler, ok := handler.(*nodes.PluginHandler)
	if !ok {
		return fmt.Errorf("plugin handler has unexpected type %T", handler)
	}

	root := os.DirFS(pluginsPath)

	pluginPathList, err := fs.Glob(root, "**/*.so")
	if err != nil {
		return err
	}

	l := r.logger.With(slog.String("path", pluginsPath))
	l.Info("Loading node plugins")

	for _, p := range pluginPathList {
		plg, err := plugin.Open(pluginsPath + "/" + p)
		if err != nil {
			return fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		symbol, err := plg.Lookup("Node")
		if err != nil {
			return fmt.Errorf("plugin %s does not export 'Node': %w", p, err)
		}

		node, ok := symbol.(nodes.PluginNode)
		if !ok {
			return fmt.Errorf("plugin %s 'Node' symbol does not implement PluginNode", p)
		}

		pluginHandler.Register(node)
		l.Info("Loaded node plugin", slog.String("plugin", p), slog.String("name", node.Name()))
	}

	return nil
}
