package nodes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/template"
)

// TransformHandler reshapes data: config.mapping maps output fields to
// template expressions evaluated against the execution context. A single
// config.expression produces the output under "result" instead.
type TransformHandler struct{}

func NewTransformHandler() *TransformHandler {
	return &TransformHandler{}
}

func (h *TransformHandler) Type() models.NodeType {
	return models.NodeTypeTransform
}

func (h *TransformHandler) ResultKey() string {
	return "transformResult"
}

func (h *TransformHandler) Execute(_ context.Context, _ *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	started := time.Now()

	if expr := configString(node.Config, "expression"); expr != "" {
		result, err := template.RenderWithContext(expr, execCtx)
		if err != nil {
			return nil, fmt.Errorf("transform expression failed: %w", err)
		}

		return successResult(node.ID, started, map[string]any{"result": result}), nil
	}

	mapping, _ := node.Config["mapping"].(map[string]any)
	if len(mapping) == 0 {
		return nil, errors.New("transform node requires 'expression' or 'mapping'")
	}

	output := make(map[string]any, len(mapping))

	for field, expr := range mapping {
		str, ok := expr.(string)
		if !ok {
			output[field] = expr

			continue
		}

		result, err := template.RenderWithContext(str, execCtx)
		if err != nil {
			return nil, fmt.Errorf("transform mapping %q failed: %w", field, err)
		}

		output[field] = result
	}

	return successResult(node.ID, started, output), nil
}
