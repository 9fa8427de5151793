// Package models defines core node-based workflow models for graph execution
package models

import "time"

// NodeType identifies the behavior of a workflow node.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"   // Graph entry point
	NodeTypeAction    NodeType = "action"    // Generic unit of work
	NodeTypeCondition NodeType = "condition" // Branch selection
	NodeTypeLoop      NodeType = "loop"      // Iteration over a collection or predicate
	NodeTypeParallel  NodeType = "parallel"  // Batched concurrent task list
	NodeTypeDelay     NodeType = "delay"     // Timed suspension
	NodeTypeTransform NodeType = "transform" // Data reshaping via templates
	NodeTypeAPI       NodeType = "api"       // Outbound HTTP call
	NodeTypePlugin    NodeType = "plugin"    // Go plugin supplied handler
	NodeTypeCustom    NodeType = "custom"    // Caller registered handler
)

// NodeTypes lists every known node type, used by validation.
var NodeTypes = []NodeType{
	NodeTypeTrigger, NodeTypeAction, NodeTypeCondition, NodeTypeLoop, NodeTypeParallel,
	NodeTypeDelay, NodeTypeTransform, NodeTypeAPI, NodeTypePlugin, NodeTypeCustom,
}

// InputPort is a typed entry point on a node.
type InputPort struct {
	ID       string `json:"id"   validate:"required"`
	Type     string `json:"type" validate:"required"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// OutputPort is a typed exit point on a node.
type OutputPort struct {
	ID   string `json:"id"   validate:"required"`
	Type string `json:"type" validate:"required"`
}

// WorkflowNode represents a node instance in a workflow graph.
type WorkflowNode struct {
	ID       string         `json:"id"   validate:"required"`
	Type     NodeType       `json:"type" validate:"required"`
	Name     string         `json:"name" validate:"required,min=1"`
	Inputs   []InputPort    `json:"inputs,omitempty"`
	Outputs  []OutputPort   `json:"outputs,omitempty"`
	Config   map[string]any `json:"config,omitempty"` // Interpreted per node type
	Metadata map[string]any `json:"metadata,omitempty"`
}

// InputByID returns the input port with the given id, or nil.
func (n *WorkflowNode) InputByID(id string) *InputPort {
	for i := range n.Inputs {
		if n.Inputs[i].ID == id {
			return &n.Inputs[i]
		}
	}

	return nil
}

// OutputByID returns the output port with the given id, or nil.
func (n *WorkflowNode) OutputByID(id string) *OutputPort {
	for i := range n.Outputs {
		if n.Outputs[i].ID == id {
			return &n.Outputs[i]
		}
	}

	return nil
}

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending NodeStatus = "pending"
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusSkipped NodeStatus = "skipped"
	NodeStatusError   NodeStatus = "error"
)

// NodeExecutionResult is the outcome of running one node.
type NodeExecutionResult struct {
	NodeID   string         `json:"node_id"`
	Status   NodeStatus     `json:"status"`
	Output   map[string]any `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Attempts int            `json:"attempts"`
	Duration time.Duration  `json:"duration"`
}
