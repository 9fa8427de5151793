package models

// Connection is a directed edge from a source node's output port to a target
// node's input port, optionally guarded by a condition expression.
type Connection struct {
	ID             string         `json:"id"`
	SourceNodeID   string         `json:"source_node_id" validate:"required"`
	SourceOutputID string         `json:"source_output_id,omitempty"`
	TargetNodeID   string         `json:"target_node_id" validate:"required"`
	TargetInputID  string         `json:"target_input_id,omitempty"`
	Condition      string         `json:"condition,omitempty"` // Guard expression; empty means always traverse
	Metadata       map[string]any `json:"metadata,omitempty"`
}
