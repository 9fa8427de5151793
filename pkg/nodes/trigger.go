package nodes

import (
	"context"
	"time"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// TriggerHandler runs trigger nodes. Triggers are graph entry points: by the
// time the engine reaches one the activation already happened, so the handler
// records the activation and passes the caller input through.
type TriggerHandler struct{}

func NewTriggerHandler() *TriggerHandler {
	return &TriggerHandler{}
}

func (h *TriggerHandler) Type() models.NodeType {
	return models.NodeTypeTrigger
}

func (h *TriggerHandler) ResultKey() string {
	return "triggerResult"
}

func (h *TriggerHandler) Execute(_ context.Context, _ *models.Workflow, node *models.WorkflowNode, _ *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	started := time.Now()

	output := map[string]any{
		"triggered_at": started.UTC().Format(time.RFC3339),
		"trigger_type": configString(node.Config, "trigger_type"),
	}

	return successResult(node.ID, started, output), nil
}
