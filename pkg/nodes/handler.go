// Package nodes implements the built-in node handlers dispatched by the
// execution engine. Each workflow node type maps to one Handler.
package nodes

import (
	"context"
	"time"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// Handler executes one node of its type within a running execution.
type Handler interface {
	// Type names the node type this handler serves.
	Type() models.NodeType

	// ResultKey names the top-level variable the node output is mirrored
	// under (e.g. "actionResult"). Empty means namespaced storage only.
	ResultKey() string

	// Execute runs the node. The workflow graph is read-only during execution;
	// all mutation goes through the execution context.
	Execute(ctx context.Context, workflow *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error)
}

// successResult builds a completed NodeExecutionResult.
func successResult(nodeID string, started time.Time, output map[string]any) *models.NodeExecutionResult {
	return &models.NodeExecutionResult{
		NodeID:   nodeID,
		Status:   models.NodeStatusSuccess,
		Output:   output,
		Duration: time.Since(started),
	}
}

// configString reads a string config value.
func configString(config map[string]any, key string) string {
	if config == nil {
		return ""
	}

	s, _ := config[key].(string)

	return s
}

// configInt reads an integer config value, accepting JSON numbers.
func configInt(config map[string]any, key string) int {
	if config == nil {
		return 0
	}

	switch v := config[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// configBool reads a boolean config value.
func configBool(config map[string]any, key string) bool {
	if config == nil {
		return false
	}

	b, _ := config[key].(bool)

	return b
}
