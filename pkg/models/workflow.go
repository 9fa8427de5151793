// Package models defines the core domain models for node-based workflow automation
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Temporarily not executable
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not executable
	WorkflowStatusError    WorkflowStatus = "error"    // Flagged by validation or a failed run
)

// ErrorHandling selects how the engine reacts to a node failing after retry exhaustion.
type ErrorHandling string

const (
	ErrorHandlingStop     ErrorHandling = "stop"     // Fail the whole execution
	ErrorHandlingContinue ErrorHandling = "continue" // Skip the failed node's successors, keep independent branches
	ErrorHandlingRetry    ErrorHandling = "retry"    // Same as stop once retries are exhausted
)

// WorkflowSettings carries the per-workflow execution defaults.
type WorkflowSettings struct {
	TimeoutMs             int           `json:"timeout_ms"              validate:"min=0"`
	MaxRetries            int           `json:"max_retries"             validate:"min=0"`
	RetryDelayMs          int           `json:"retry_delay_ms"          validate:"min=0"`
	MaxParallelExecutions int           `json:"max_parallel_executions" validate:"min=0"`
	ErrorHandling         ErrorHandling `json:"error_handling"          validate:"omitempty,oneof=stop continue retry"`
}

// WorkflowVariable declares a typed workflow variable with its default binding.
type WorkflowVariable struct {
	Name    string `json:"name" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=string number boolean object array"`
	Default any    `json:"default,omitempty"`
}

// WorkflowTrigger describes an external activation source for a workflow.
type WorkflowTrigger struct {
	ID     string         `json:"id"`
	Type   string         `json:"type" validate:"required"`
	Config map[string]any `json:"config,omitempty"`
}

// Workflow represents a directed acyclic graph of typed nodes.
type Workflow struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"   validate:"required,min=3"`
	Description string             `json:"description,omitempty"`
	Status      WorkflowStatus     `json:"status" validate:"required,oneof=draft active paused archived error"`
	Nodes       []*WorkflowNode    `json:"nodes"`       // Ordered; node ids are unique within the workflow
	Connections []*Connection      `json:"connections"` // Directed edges; the graph stays acyclic
	Variables   []WorkflowVariable `json:"variables,omitempty"`
	Triggers    []WorkflowTrigger  `json:"triggers,omitempty"`
	Settings    WorkflowSettings   `json:"settings"`
	Tags        []string           `json:"tags,omitempty"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// TriggerNodes returns every node of type trigger, in declaration order.
func (w *Workflow) TriggerNodes() []*WorkflowNode {
	nodes := make([]*WorkflowNode, 0, 1)

	for _, node := range w.Nodes {
		if node.Type == NodeTypeTrigger {
			nodes = append(nodes, node)
		}
	}

	return nodes
}

// ConnectionsFrom returns the outgoing connections of a node, in declaration order.
func (w *Workflow) ConnectionsFrom(nodeID string) []*Connection {
	conns := make([]*Connection, 0, 2)

	for _, conn := range w.Connections {
		if conn.SourceNodeID == nodeID {
			conns = append(conns, conn)
		}
	}

	return conns
}

// ConnectionsTo returns the incoming connections of a node, in declaration order.
func (w *Workflow) ConnectionsTo(nodeID string) []*Connection {
	conns := make([]*Connection, 0, 2)

	for _, conn := range w.Connections {
		if conn.TargetNodeID == nodeID {
			conns = append(conns, conn)
		}
	}

	return conns
}

// DefaultVariables materializes the variable defaults into a fresh binding map.
func (w *Workflow) DefaultVariables() map[string]any {
	vars := make(map[string]any, len(w.Variables))

	for _, v := range w.Variables {
		if v.Default != nil {
			vars[v.Name] = v.Default
		}
	}

	return vars
}
