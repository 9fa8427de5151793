package engine

import (
	"context"
	"time"

	"github.com/flowdeck/flowdeck/pkg/eventbus"
	"github.com/flowdeck/flowdeck/pkg/events"
	"github.com/flowdeck/flowdeck/pkg/models"
)

func (e *Engine) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, workflowID, event); err != nil {
		e.logger.Error("failed to publish event", "workflow_id", workflowID, "error", err)
	}
}

func (e *Engine) emitStart(ctx context.Context, wf *models.Workflow, execCtx *models.ExecutionContext, opts Options) {
	e.publish(ctx, wf.ID, events.ExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.ExecutionStartedEvent, wf.ID, execCtx.ID),
		WorkflowName: wf.Name,
		Input:        execCtx.VariablesSnapshot(),
		DryRun:       opts.DryRun,
	})
}

func (e *Engine) emitNodeStart(ctx context.Context, wf *models.Workflow, execCtx *models.ExecutionContext, node *models.WorkflowNode, attempt int) {
	e.publish(ctx, wf.ID, events.NodeStarted{
		BaseEvent: events.NewBaseEvent(events.NodeStartedEvent, wf.ID, execCtx.ID),
		NodeID:    node.ID,
		NodeType:  node.Type,
		Attempt:   attempt,
	})
}

func (e *Engine) emitNodeComplete(ctx context.Context, wf *models.Workflow, execCtx *models.ExecutionContext, node *models.WorkflowNode, result *models.NodeExecutionResult) {
	e.publish(ctx, wf.ID, events.NodeCompleted{
		BaseEvent: events.NewBaseEvent(events.NodeCompletedEvent, wf.ID, execCtx.ID),
		NodeID:    node.ID,
		NodeType:  node.Type,
		Output:    result.Output,
		Duration:  result.Duration,
	})
}

func (e *Engine) emitNodeError(ctx context.Context, wf *models.Workflow, execCtx *models.ExecutionContext, node *models.WorkflowNode, err error) {
	e.publish(ctx, wf.ID, events.NodeError{
		BaseEvent: events.NewBaseEvent(events.NodeErrorEvent, wf.ID, execCtx.ID),
		NodeID:    node.ID,
		NodeType:  node.Type,
		Error:     err.Error(),
	})
}

func (e *Engine) emitComplete(ctx context.Context, wf *models.Workflow, execCtx *models.ExecutionContext, nodesExecuted int) {
	e.publish(ctx, wf.ID, events.ExecutionCompleted{
		BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, wf.ID, execCtx.ID),
		Status:        execCtx.CurrentStatus(),
		NodesExecuted: nodesExecuted,
		Duration:      time.Since(execCtx.StartedAt),
	})
}

func (e *Engine) emitPaused(ctx context.Context, execCtx *models.ExecutionContext, reason string) {
	e.publish(ctx, execCtx.WorkflowID, events.ExecutionPaused{
		BaseEvent: events.NewBaseEvent(events.ExecutionPausedEvent, execCtx.WorkflowID, execCtx.ID),
		Reason:    reason,
		NodeID:    execCtx.CurrentNode(),
	})
}

func (e *Engine) emitError(ctx context.Context, wf *models.Workflow, execCtx *models.ExecutionContext, nodeID, message string) {
	e.publish(ctx, wf.ID, events.ExecutionError{
		BaseEvent: events.NewBaseEvent(events.ExecutionErrorEvent, wf.ID, execCtx.ID),
		Status:    execCtx.CurrentStatus(),
		Error:     message,
		NodeID:    nodeID,
		Duration:  time.Since(execCtx.StartedAt),
	})
}
