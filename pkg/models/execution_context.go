package models

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ExecutionStatus represents the state of one workflow run. Transitions go
// pending -> running -> one terminal state, never out of it; a running
// execution may move through paused and back.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
	ExecutionStatusTimeout   ExecutionStatus = "timeout"
)

// IsTerminal reports whether the status is final.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled, ExecutionStatusTimeout:
		return true
	default:
		return false
	}
}

// LogLevel classifies execution log entries.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ExecutionLogEntry is one ordered entry in the execution trail.
type ExecutionLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	NodeID    string    `json:"node_id,omitempty"`
}

// ExecutionContext is the mutable state of one workflow run. It is created per
// execution, mutated only by the engine while the run is live, and retained as
// history afterward. Variable and log access is guarded for parallel branches.
type ExecutionContext struct {
	ID            string              `json:"id"`
	WorkflowID    string              `json:"workflow_id"`
	Status        ExecutionStatus     `json:"status"`
	Variables     map[string]any      `json:"variables,omitempty"`
	CurrentNodeID string              `json:"current_node_id,omitempty"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    *time.Time          `json:"finished_at,omitempty"`
	Duration      time.Duration       `json:"duration"`
	Error         string              `json:"error,omitempty"`
	Logs          []ExecutionLogEntry `json:"logs,omitempty"`

	mu sync.RWMutex
}

// NewExecutionContext seeds a pending context from the workflow's variable
// defaults overlaid with the caller-supplied input.
func NewExecutionContext(id string, workflow *Workflow, input map[string]any) *ExecutionContext {
	vars := workflow.DefaultVariables()
	for k, v := range input {
		vars[k] = v
	}

	return &ExecutionContext{
		ID:         id,
		WorkflowID: workflow.ID,
		Status:     ExecutionStatusPending,
		Variables:  vars,
		StartedAt:  time.Now().UTC(),
	}
}

// TransitionTo moves the execution to the given status, enforcing monotonicity.
// Terminal states are unreachable from terminal states.
func (c *ExecutionContext) TransitionTo(status ExecutionStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Status.IsTerminal() {
		return fmt.Errorf("execution %s already %s, cannot transition to %s", c.ID, c.Status, status)
	}

	if c.Status == ExecutionStatusPending && status != ExecutionStatusRunning && status != ExecutionStatusCancelled {
		return fmt.Errorf("execution %s is pending, cannot transition to %s", c.ID, status)
	}

	c.Status = status

	if status.IsTerminal() {
		now := time.Now().UTC()
		c.FinishedAt = &now
		c.Duration = now.Sub(c.StartedAt)
	}

	return nil
}

// CurrentStatus returns the status under the read lock.
func (c *ExecutionContext) CurrentStatus() ExecutionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.Status
}

// SetError records the failure message.
func (c *ExecutionContext) SetError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Error = msg
}

// SetCurrentNode records the node the walk is positioned at.
func (c *ExecutionContext) SetCurrentNode(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.CurrentNodeID = nodeID
}

// CurrentNode returns the node the walk is positioned at.
func (c *ExecutionContext) CurrentNode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.CurrentNodeID
}

// SetVariable binds a value in the shared variable map.
func (c *ExecutionContext) SetVariable(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Variables == nil {
		c.Variables = make(map[string]any)
	}

	c.Variables[key] = value
}

// Variable resolves a key, supporting dotted paths into nested maps.
// A missing path yields (nil, false), never an error.
func (c *ExecutionContext) Variable(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return LookupPath(c.Variables, path)
}

// MergeOutput namespaces a node's output under "nodes.<id>" and, when the
// handler declares a result key, mirrors it at the top level. Namespacing keeps
// parallel branches from clobbering each other's outputs.
func (c *ExecutionContext) MergeOutput(nodeID, resultKey string, output map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Variables == nil {
		c.Variables = make(map[string]any)
	}

	frames, ok := c.Variables["nodes"].(map[string]any)
	if !ok {
		frames = make(map[string]any)
		c.Variables["nodes"] = frames
	}

	frames[nodeID] = output

	if resultKey != "" {
		c.Variables[resultKey] = output
	}
}

// Snapshot returns a point-in-time copy that is safe to read and marshal
// while the run keeps mutating the original. Variables are copied deeply so
// nested node output frames are detached too.
func (c *ExecutionContext) Snapshot() *ExecutionContext {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := &ExecutionContext{
		ID:            c.ID,
		WorkflowID:    c.WorkflowID,
		Status:        c.Status,
		CurrentNodeID: c.CurrentNodeID,
		StartedAt:     c.StartedAt,
		Duration:      c.Duration,
		Error:         c.Error,
	}

	if c.FinishedAt != nil {
		finished := *c.FinishedAt
		snapshot.FinishedAt = &finished
	}

	if c.Variables != nil {
		snapshot.Variables = deepCopyMap(c.Variables)
	}

	if len(c.Logs) > 0 {
		snapshot.Logs = make([]ExecutionLogEntry, len(c.Logs))
		copy(snapshot.Logs, c.Logs)
	}

	return snapshot
}

func deepCopyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}

	return out
}

func deepCopyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return deepCopyMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, elem := range typed {
			out[i] = deepCopyValue(elem)
		}

		return out
	default:
		return v
	}
}

// VariablesSnapshot returns a shallow copy of the binding map.
func (c *ExecutionContext) VariablesSnapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]any, len(c.Variables))
	for k, v := range c.Variables {
		snapshot[k] = v
	}

	return snapshot
}

// AppendLog appends one ordered entry to the execution trail.
func (c *ExecutionContext) AppendLog(level LogLevel, message, nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Logs = append(c.Logs, ExecutionLogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		NodeID:    nodeID,
	})
}

// LogsSnapshot returns a copy of the log trail.
func (c *ExecutionContext) LogsSnapshot() []ExecutionLogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	logs := make([]ExecutionLogEntry, len(c.Logs))
	copy(logs, c.Logs)

	return logs
}

// LookupPath resolves a dotted path into nested map[string]any values.
func LookupPath(vars map[string]any, path string) (any, bool) {
	if vars == nil {
		return nil, false
	}

	if v, ok := vars[path]; ok {
		return v, true
	}

	parts := strings.Split(path, ".")

	var current any = vars

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}
