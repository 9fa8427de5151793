package nodes

import (
	"context"
	"time"

	"github.com/flowdeck/flowdeck/pkg/conditional"
	"github.com/flowdeck/flowdeck/pkg/models"
)

// SelectedConnectionKey is the output field naming the connection the engine
// must follow out of a condition node.
const SelectedConnectionKey = "selected_connection"

// ConditionHandler runs condition nodes. Branch selection is exclusive: the
// outgoing connections become BranchPaths ordered by descending priority, the
// first one whose guard holds wins, falling back to the default branch. The
// chosen connection id is placed in the output for the engine to follow.
type ConditionHandler struct {
	evaluator *conditional.Evaluator
}

func NewConditionHandler(evaluator *conditional.Evaluator) *ConditionHandler {
	return &ConditionHandler{evaluator: evaluator}
}

func (h *ConditionHandler) Type() models.NodeType {
	return models.NodeTypeCondition
}

func (h *ConditionHandler) ResultKey() string {
	return "conditionResult"
}

func (h *ConditionHandler) Execute(_ context.Context, workflow *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	started := time.Now()

	paths := conditional.ExtractBranchPaths(workflow, node.ID)
	if len(paths) == 0 {
		// A condition node with no outgoing connections ends its branch.
		return successResult(node.ID, started, map[string]any{
			SelectedConnectionKey: "",
		}), nil
	}

	selected, err := h.evaluator.SelectBranch(paths, execCtx.VariablesSnapshot())
	if err != nil {
		return nil, err
	}

	return successResult(node.ID, started, map[string]any{
		SelectedConnectionKey: selected.ConnectionID,
		"is_default":          selected.IsDefault,
		"branch_nodes":        selected.NodeIDs,
	}), nil
}
