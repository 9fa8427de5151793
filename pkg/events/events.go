// Package events defines event types and structures for workflow execution notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/flowdeck/flowdeck/pkg/models"
)

type EventType string

// Topic carries every execution event.
const Topic = "flowdeck.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "start"
	NodeStartedEvent        EventType = "node_start"
	NodeCompletedEvent      EventType = "node_complete"
	NodeErrorEvent          EventType = "node_error"
	ExecutionCompletedEvent EventType = "complete"
	ExecutionErrorEvent     EventType = "error"
	ExecutionPausedEvent    EventType = "pause"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	Data        map[string]any `json:"data,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Data:        make(map[string]any),
	}
}

type ExecutionStarted struct {
	BaseEvent

	WorkflowName string         `json:"workflow_name"`
	Input        map[string]any `json:"input,omitempty"`
	DryRun       bool           `json:"dry_run,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type NodeStarted struct {
	BaseEvent

	NodeID   string          `json:"node_id"`
	NodeType models.NodeType `json:"node_type"`
	Attempt  int             `json:"attempt"`
}

func (e NodeStarted) GetType() EventType {
	return NodeStartedEvent
}

type NodeCompleted struct {
	BaseEvent

	NodeID   string          `json:"node_id"`
	NodeType models.NodeType `json:"node_type"`
	Output   map[string]any  `json:"output,omitempty"`
	Duration time.Duration   `json:"duration"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeError struct {
	BaseEvent

	NodeID   string          `json:"node_id"`
	NodeType models.NodeType `json:"node_type"`
	Error    string          `json:"error"`
	Attempts int             `json:"attempts"`
	Duration time.Duration   `json:"duration"`
}

func (e NodeError) GetType() EventType {
	return NodeErrorEvent
}

type ExecutionCompleted struct {
	BaseEvent

	Status        models.ExecutionStatus `json:"status"`
	NodesExecuted int                    `json:"nodes_executed"`
	Duration      time.Duration          `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionError struct {
	BaseEvent

	Status   models.ExecutionStatus `json:"status"`
	Error    string                 `json:"error"`
	NodeID   string                 `json:"node_id,omitempty"`
	Duration time.Duration          `json:"duration"`
}

func (e ExecutionError) GetType() EventType {
	return ExecutionErrorEvent
}

type ExecutionPaused struct {
	BaseEvent

	Reason string `json:"reason,omitempty"`
	NodeID string `json:"node_id,omitempty"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}
