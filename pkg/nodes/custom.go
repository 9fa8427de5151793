package nodes

import (
	"context"
	"errors"
	"time"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// CustomFunc is a caller-supplied node body.
type CustomFunc func(ctx context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (map[string]any, error)

// CustomHandler dispatches custom nodes to functions registered by the host
// application, keyed by config.handler.
type CustomHandler struct {
	funcs map[string]CustomFunc
}

func NewCustomHandler() *CustomHandler {
	return &CustomHandler{funcs: make(map[string]CustomFunc)}
}

// Register binds a named custom function. Later registrations replace earlier ones.
func (h *CustomHandler) Register(name string, fn CustomFunc) {
	h.funcs[name] = fn
}

func (h *CustomHandler) Type() models.NodeType {
	return models.NodeTypeCustom
}

func (h *CustomHandler) ResultKey() string {
	return "customResult"
}

func (h *CustomHandler) Execute(ctx context.Context, _ *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	started := time.Now()

	name := configString(node.Config, "handler")
	if name == "" {
		return nil, errors.New("custom node requires a 'handler' name")
	}

	fn, ok := h.funcs[name]
	if !ok {
		return nil, errors.New("custom handler '" + name + "' not registered")
	}

	output, err := fn(ctx, node, execCtx)
	if err != nil {
		return nil, err
	}

	return successResult(node.ID, started, output), nil
}
