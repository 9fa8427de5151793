// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// CreateTestNode creates a test WorkflowNode with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:     uuid.New().String(),
		Type:   models.NodeTypeAction,
		Name:   "Test Node",
		Config: map[string]any{"message": "test"},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node id.
func WithID(id string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.ID = id
	}
}

// WithType sets the node type.
func WithType(nodeType models.NodeType) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = nodeType
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Name = name
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Config = config
	}
}

// CreateTestWorkflow creates an active trigger -> action workflow that can be
// overridden.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	trigger := CreateTestNode(WithID("trigger-1"), WithType(models.NodeTypeTrigger), WithConfig(nil))
	action := CreateTestNode(WithID("action-1"))

	wf := &models.Workflow{
		ID:     uuid.New().String(),
		Name:   "Test Workflow",
		Status: models.WorkflowStatusActive,
		Nodes:  []*models.WorkflowNode{trigger, action},
		Connections: []*models.Connection{
			Connect("trigger-1", "action-1"),
		},
	}

	for _, override := range overrides {
		override(wf)
	}

	return wf
}

// WithNodes replaces the workflow's nodes.
func WithNodes(nodes ...*models.WorkflowNode) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Nodes = nodes
	}
}

// WithConnections replaces the workflow's connections.
func WithConnections(conns ...*models.Connection) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Connections = conns
	}
}

// WithSettings sets the workflow execution settings.
func WithSettings(settings models.WorkflowSettings) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Settings = settings
	}
}

// WithVariables sets the workflow variable declarations.
func WithVariables(vars ...models.WorkflowVariable) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Variables = vars
	}
}

// Connect builds a connection between two nodes with a generated id.
func Connect(sourceID, targetID string) *models.Connection {
	return &models.Connection{
		ID:           sourceID + "->" + targetID,
		SourceNodeID: sourceID,
		TargetNodeID: targetID,
	}
}

// ConnectIf builds a guarded connection between two nodes.
func ConnectIf(sourceID, targetID, guard string) *models.Connection {
	conn := Connect(sourceID, targetID)
	conn.Condition = guard

	return conn
}
