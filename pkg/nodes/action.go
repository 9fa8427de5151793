package nodes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/template"
)

// ActionHandler runs generic action nodes. Every string config value is
// rendered through the template engine against the execution context, so
// actions can reference upstream node outputs and variables.
type ActionHandler struct{}

func NewActionHandler() *ActionHandler {
	return &ActionHandler{}
}

func (h *ActionHandler) Type() models.NodeType {
	return models.NodeTypeAction
}

func (h *ActionHandler) ResultKey() string {
	return "actionResult"
}

func (h *ActionHandler) Execute(ctx context.Context, _ *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	started := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// fail_with lets a workflow author (and the test suite) force a failure path.
	if msg := configString(node.Config, "fail_with"); msg != "" {
		return nil, errors.New(msg)
	}

	output := make(map[string]any, len(node.Config))

	for key, value := range node.Config {
		str, ok := value.(string)
		if !ok {
			output[key] = value

			continue
		}

		rendered, err := template.RenderWithContext(str, execCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to render config %q: %w", key, err)
		}

		output[key] = rendered
	}

	output["completed_at"] = time.Now().UTC().Format(time.RFC3339)

	return successResult(node.ID, started, output), nil
}
