package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/nodes"
	"github.com/flowdeck/flowdeck/pkg/otelhelper"
)

// errNodeTimeout marks a node attempt that lost its race against the timer.
var errNodeTimeout = errors.New("node execution timed out")

// run drives one execution from running to a terminal state.
//
// Traversal is a deterministic FIFO walk seeded with every trigger node in
// declaration order, guarded by a visited set: each node executes at most once
// per execution, activated by whichever predecessor reaches it first. There is
// no wait-for-all join.
func (e *Engine) run(ctx context.Context, wf *models.Workflow, execCtx *models.ExecutionContext, opts Options) {
	if ctx.Err() != nil {
		_ = execCtx.TransitionTo(models.ExecutionStatusCancelled)
		e.finish(ctx, wf, execCtx)

		return
	}

	if err := execCtx.TransitionTo(models.ExecutionStatusRunning); err != nil {
		e.logger.Error("failed to start execution", "execution_id", execCtx.ID, "error", err)

		return
	}

	if e.tracer != nil {
		spanCtx, traceSpan := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
			attribute.String(otelhelper.WorkflowIDKey, wf.ID),
			attribute.String(otelhelper.ExecutionIDKey, execCtx.ID),
		)
		ctx = spanCtx

		defer traceSpan.End()
	}

	e.emitStart(ctx, wf, execCtx, opts)
	execCtx.AppendLog(models.LogLevelInfo, "execution started", "")

	timeout, maxRetries, retryDelay := e.resolveSettings(wf, opts)

	triggers := wf.TriggerNodes()
	if len(triggers) == 0 {
		e.failExecution(ctx, wf, execCtx, "", "workflow has no trigger nodes")

		return
	}

	visited := make(map[string]bool, len(wf.Nodes))
	queue := make([]*models.WorkflowNode, 0, len(wf.Nodes))
	queue = append(queue, triggers...)

	for len(queue) > 0 {
		if ctx.Err() != nil {
			e.cancelExecution(ctx, wf, execCtx)

			return
		}

		// A pause parks the walk here, between nodes.
		if err := e.awaitResume(ctx, execCtx.ID); err != nil {
			e.cancelExecution(ctx, wf, execCtx)

			return
		}

		node := queue[0]
		queue = queue[1:]

		if visited[node.ID] {
			continue
		}

		visited[node.ID] = true
		execCtx.SetCurrentNode(node.ID)

		result, err := e.executeNodeWithRetry(ctx, wf, node, execCtx, timeout, maxRetries, retryDelay, opts.DryRun)
		if err != nil {
			if ctx.Err() != nil {
				e.cancelExecution(ctx, wf, execCtx)

				return
			}

			e.emitNodeError(ctx, wf, execCtx, node, err)
			execCtx.AppendLog(models.LogLevelError, err.Error(), node.ID)

			if errors.Is(err, errNodeTimeout) {
				e.timeoutExecution(ctx, wf, execCtx, node.ID, err.Error())

				return
			}

			// errorHandling=continue keeps independent branches alive: the
			// failed node's successors are skipped, the rest of the queue runs.
			if wf.Settings.ErrorHandling == models.ErrorHandlingContinue {
				e.logger.Warn("node failed, continuing per workflow error handling",
					"execution_id", execCtx.ID, "node_id", node.ID, "error", err)

				continue
			}

			e.failExecution(ctx, wf, execCtx, node.ID, err.Error())

			return
		}

		handler, _ := e.registry.HandlerFor(node.Type)
		resultKey := ""

		if handler != nil {
			resultKey = handler.ResultKey()
		}

		execCtx.MergeOutput(node.ID, resultKey, result.Output)
		e.emitNodeComplete(ctx, wf, execCtx, node, result)

		queue = append(queue, e.nextNodes(wf, node, result, execCtx, visited)...)
	}

	_ = execCtx.TransitionTo(models.ExecutionStatusCompleted)
	execCtx.AppendLog(models.LogLevelInfo, "execution completed", "")
	e.emitComplete(ctx, wf, execCtx, len(visited))
	e.finish(ctx, wf, execCtx)
}

// nextNodes picks the successors to enqueue. Condition nodes select exactly
// one outgoing connection (exclusive, priority-ordered); every other node
// follows all outgoing connections whose guard holds.
func (e *Engine) nextNodes(wf *models.Workflow, node *models.WorkflowNode, result *models.NodeExecutionResult, execCtx *models.ExecutionContext, visited map[string]bool) []*models.WorkflowNode {
	next := make([]*models.WorkflowNode, 0, 2)

	appendTarget := func(nodeID string) {
		if visited[nodeID] {
			return
		}

		if target := wf.NodeByID(nodeID); target != nil {
			next = append(next, target)
		}
	}

	if node.Type == models.NodeTypeCondition {
		selectedID, _ := result.Output[nodes.SelectedConnectionKey].(string)
		if selectedID == "" {
			return next
		}

		for _, conn := range wf.ConnectionsFrom(node.ID) {
			if conn.ID == selectedID {
				appendTarget(conn.TargetNodeID)

				break
			}
		}

		return next
	}

	vars := execCtx.VariablesSnapshot()

	for _, conn := range wf.ConnectionsFrom(node.ID) {
		if !e.evaluator.EvaluateGuard(conn.Condition, vars) {
			continue
		}

		appendTarget(conn.TargetNodeID)
	}

	return next
}

// executeNodeWithRetry retries a node up to maxRetries times with linear
// backoff (retryDelay * attempt). Every attempt emits its own node_start.
func (e *Engine) executeNodeWithRetry(ctx context.Context, wf *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext, timeout time.Duration, maxRetries int, retryDelay time.Duration, dryRun bool) (*models.NodeExecutionResult, error) {
	handler, err := e.registry.HandlerFor(node.Type)
	if err != nil {
		return nil, err
	}

	attempts := maxRetries + 1

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.emitNodeStart(ctx, wf, execCtx, node, attempt)
		execCtx.AppendLog(models.LogLevelInfo,
			fmt.Sprintf("executing node (attempt %d/%d)", attempt, attempts), node.ID)

		if dryRun {
			return &models.NodeExecutionResult{
				NodeID:   node.ID,
				Status:   models.NodeStatusSkipped,
				Output:   map[string]any{"dry_run": true},
				Attempts: attempt,
			}, nil
		}

		result, err := e.executeNodeOnce(ctx, handler, wf, node, execCtx, timeout)
		if err == nil {
			result.Attempts = attempt

			return result, nil
		}

		lastErr = err
		execCtx.AppendLog(models.LogLevelWarn,
			fmt.Sprintf("node attempt %d failed: %v", attempt, err), node.ID)

		if attempt < attempts {
			backoff := retryDelay * time.Duration(attempt)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("node %s failed after %d attempts: %w", node.ID, attempts, lastErr)
}

// executeNodeOnce races one handler invocation against the per-node timer.
func (e *Engine) executeNodeOnce(ctx context.Context, handler nodes.Handler, wf *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext, timeout time.Duration) (*models.NodeExecutionResult, error) {
	nodeCtx := ctx

	if timeout > 0 {
		var cancel context.CancelFunc

		nodeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var span trace.Span

	if e.tracer != nil {
		nodeCtx, span = otelhelper.StartSpan(nodeCtx, e.tracer, "node.execute",
			attribute.String(otelhelper.NodeIDKey, node.ID),
			attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
			attribute.String(otelhelper.ExecutionIDKey, execCtx.ID),
		)

		defer span.End()
	}

	type outcome struct {
		result *models.NodeExecutionResult
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		result, err := handler.Execute(nodeCtx, wf, node, execCtx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-nodeCtx.Done():
		// The handler goroutine keeps running; cancellation is cooperative and
		// the handler can still observe nodeCtx and stop at its next check.
		var err error
		if errors.Is(nodeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: node %s exceeded %s", errNodeTimeout, node.ID, timeout)
		} else {
			err = ctx.Err()
		}

		otelhelper.MarkSpanFailed(span, err,
			attribute.String(otelhelper.NodeIDKey, node.ID),
			attribute.String(otelhelper.ExecutionIDKey, execCtx.ID),
		)

		return nil, err
	case o := <-done:
		if o.err != nil {
			otelhelper.MarkSpanFailed(span, o.err,
				attribute.String(otelhelper.NodeIDKey, node.ID),
				attribute.String(otelhelper.ExecutionIDKey, execCtx.ID),
			)
		}

		return o.result, o.err
	}
}

// resolveSettings layers per-call options over workflow settings. Zero means
// unset and falls through; a negative option pins the value to zero, so a
// caller can switch retries, backoff or the timeout off explicitly even when
// the workflow settings declare them.
func (e *Engine) resolveSettings(wf *models.Workflow, opts Options) (time.Duration, int, time.Duration) {
	timeout := opts.Timeout
	if timeout == 0 && wf.Settings.TimeoutMs > 0 {
		timeout = time.Duration(wf.Settings.TimeoutMs) * time.Millisecond
	}

	if timeout < 0 {
		timeout = 0
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = wf.Settings.MaxRetries
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	retryDelay := opts.RetryDelay
	if retryDelay == 0 && wf.Settings.RetryDelayMs > 0 {
		retryDelay = time.Duration(wf.Settings.RetryDelayMs) * time.Millisecond
	}

	if retryDelay == 0 {
		retryDelay = defaultRetryDelay
	}

	if retryDelay < 0 {
		retryDelay = 0
	}

	return timeout, maxRetries, retryDelay
}

func (e *Engine) failExecution(ctx context.Context, wf *models.Workflow, execCtx *models.ExecutionContext, nodeID, message string) {
	execCtx.SetError(message)
	_ = execCtx.TransitionTo(models.ExecutionStatusFailed)
	execCtx.AppendLog(models.LogLevelError, "execution failed: "+message, nodeID)
	e.emitError(ctx, wf, execCtx, nodeID, message)
	e.finish(ctx, wf, execCtx)
}

func (e *Engine) timeoutExecution(ctx context.Context, wf *models.Workflow, execCtx *models.ExecutionContext, nodeID, message string) {
	execCtx.SetError(message)
	_ = execCtx.TransitionTo(models.ExecutionStatusTimeout)
	execCtx.AppendLog(models.LogLevelError, "execution timed out: "+message, nodeID)
	e.emitError(ctx, wf, execCtx, nodeID, message)
	e.finish(ctx, wf, execCtx)
}

func (e *Engine) cancelExecution(ctx context.Context, wf *models.Workflow, execCtx *models.ExecutionContext) {
	_ = execCtx.TransitionTo(models.ExecutionStatusCancelled)
	execCtx.AppendLog(models.LogLevelInfo, "execution cancelled", "")
	e.emitError(ctx, wf, execCtx, "", "execution cancelled")
	e.finish(ctx, wf, execCtx)
}
