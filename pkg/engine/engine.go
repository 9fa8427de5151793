// Package engine implements the workflow execution engine: execution lifecycle,
// graph traversal and dispatch, per-node retry and timeout, event emission and
// bounded-concurrency admission.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/flowdeck/flowdeck/pkg/conditional"
	"github.com/flowdeck/flowdeck/pkg/eventbus"
	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/persistence"
	"github.com/flowdeck/flowdeck/pkg/registry"
	"github.com/flowdeck/flowdeck/pkg/workflow"
)

// ErrExecutionNotFound is returned when no execution matches the given id.
var ErrExecutionNotFound = errors.New("execution not found")

// ErrWorkflowInvalid is returned when validate-before-execute rejects a graph.
var ErrWorkflowInvalid = errors.New("workflow failed validation")

// ErrExecutionStateConflict is returned when a pause or resume does not apply
// to the execution's current state.
var ErrExecutionStateConflict = errors.New("execution state conflict")

const (
	defaultMaxConcurrency = 10
	defaultRetryDelay     = 500 * time.Millisecond
)

// Options tune one ExecuteWorkflow call. For the numeric options, zero falls
// back to workflow settings and a negative value forces zero: MaxRetries -1
// runs every node exactly once even when the workflow declares retries.
type Options struct {
	Timeout        time.Duration // Per-node timeout; negative disables it
	MaxRetries     int           // Per-node retry budget; negative disables retries
	RetryDelay     time.Duration // Linear backoff base; negative removes the delay
	DryRun         bool          // Walk the graph and emit events without running handlers
	SkipValidation bool          // Bypass validate-before-execute
}

// Config wires an Engine.
type Config struct {
	Registry    *registry.Registry
	Evaluator   *conditional.Evaluator
	Persistence persistence.Persistence
	Publisher   eventbus.EventPublisher
	Tracer      trace.Tracer // Optional
	Logger      *slog.Logger

	// MaxConcurrency caps simultaneously running executions across the whole
	// engine. Admission waits on a counting semaphore.
	MaxConcurrency int
}

// Engine executes workflow graphs. One engine serves many concurrent
// executions, bounded by its admission semaphore.
type Engine struct {
	logger    *slog.Logger
	registry  *registry.Registry
	evaluator *conditional.Evaluator
	store     persistence.Persistence
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	validator *workflow.Validator
	sem       *semaphore.Weighted

	mu         sync.RWMutex
	executions map[string]*liveExecution
}

type liveExecution struct {
	context *models.ExecutionContext
	cancel  context.CancelFunc

	mu     sync.Mutex
	paused chan struct{} // non-nil while paused, closed on resume
}

// NewEngine creates an Engine from its configuration.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}

	evaluator := cfg.Evaluator
	if evaluator == nil {
		evaluator = conditional.NewEvaluator(logger)
	}

	return &Engine{
		logger:     logger.With("module", "engine"),
		registry:   cfg.Registry,
		evaluator:  evaluator,
		store:      cfg.Persistence,
		publisher:  cfg.Publisher,
		tracer:     cfg.Tracer,
		validator:  workflow.NewValidator(),
		sem:        semaphore.NewWeighted(int64(maxConcurrency)),
		executions: make(map[string]*liveExecution),
	}
}

// ExecuteWorkflow fetches a workflow by id and starts an execution, returning
// the execution id immediately. The run itself proceeds asynchronously once
// the admission semaphore grants a slot.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, input map[string]any, opts Options) (string, error) {
	if e.store == nil {
		return "", errors.New("engine has no persistence configured")
	}

	wf, err := e.store.WorkflowByID(ctx, workflowID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	return e.ExecuteWorkflowObject(ctx, wf, input, opts)
}

// ExecuteWorkflowObject starts an execution of an already-loaded graph.
func (e *Engine) ExecuteWorkflowObject(ctx context.Context, wf *models.Workflow, input map[string]any, opts Options) (string, error) {
	if !opts.SkipValidation {
		result := e.validator.ValidateWorkflow(wf)
		if !result.IsValid {
			return "", fmt.Errorf("%w: %s", ErrWorkflowInvalid, summarizeErrors(result))
		}
	}

	executionID := "exec-" + uuid.New().String()
	execCtx := models.NewExecutionContext(executionID, wf, input)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	e.mu.Lock()
	e.executions[executionID] = &liveExecution{context: execCtx, cancel: cancel}
	e.mu.Unlock()

	go e.admitAndRun(runCtx, wf, execCtx, opts)

	return executionID, nil
}

// StopExecution requests cooperative cancellation. The cancellation signal is
// observed at the start of each node, each loop iteration and each parallel
// batch boundary; an in-flight node handler finishes its current step.
func (e *Engine) StopExecution(executionID string) error {
	e.mu.RLock()
	live, ok := e.executions[executionID]
	e.mu.RUnlock()

	if !ok {
		return ErrExecutionNotFound
	}

	if live.context.CurrentStatus().IsTerminal() {
		return fmt.Errorf("execution %s already finished", executionID)
	}

	live.cancel()

	return nil
}

// PauseExecution suspends a running execution at its next node boundary: the
// node in flight finishes, then the walk parks until ResumeExecution or
// StopExecution. Only a running execution can be paused.
func (e *Engine) PauseExecution(executionID, reason string) error {
	e.mu.RLock()
	live, ok := e.executions[executionID]
	e.mu.RUnlock()

	if !ok {
		return ErrExecutionNotFound
	}

	if err := live.context.TransitionTo(models.ExecutionStatusPaused); err != nil {
		return fmt.Errorf("%w: cannot pause execution %s: %w", ErrExecutionStateConflict, executionID, err)
	}

	live.mu.Lock()
	if live.paused == nil {
		live.paused = make(chan struct{})
	}
	live.mu.Unlock()

	live.context.AppendLog(models.LogLevelInfo, "execution paused: "+reason, "")
	e.emitPaused(context.Background(), live.context, reason)

	return nil
}

// ResumeExecution releases a paused execution back into its walk.
func (e *Engine) ResumeExecution(executionID string) error {
	e.mu.RLock()
	live, ok := e.executions[executionID]
	e.mu.RUnlock()

	if !ok {
		return ErrExecutionNotFound
	}

	live.mu.Lock()
	gate := live.paused
	live.mu.Unlock()

	if gate == nil {
		return fmt.Errorf("%w: execution %s is not paused", ErrExecutionStateConflict, executionID)
	}

	if err := live.context.TransitionTo(models.ExecutionStatusRunning); err != nil {
		return fmt.Errorf("%w: cannot resume execution %s: %w", ErrExecutionStateConflict, executionID, err)
	}

	live.mu.Lock()
	if live.paused == gate {
		close(live.paused)
		live.paused = nil
	}
	live.mu.Unlock()

	live.context.AppendLog(models.LogLevelInfo, "execution resumed", "")

	return nil
}

// awaitResume blocks while the execution is paused. Cancellation wins over
// resumption.
func (e *Engine) awaitResume(ctx context.Context, executionID string) error {
	e.mu.RLock()
	live, ok := e.executions[executionID]
	e.mu.RUnlock()

	if !ok {
		return nil
	}

	live.mu.Lock()
	gate := live.paused
	live.mu.Unlock()

	if gate == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gate:
		return nil
	}
}

// GetExecutionStatus returns the execution context for a live or finished run.
// Live runs are returned as a detached snapshot; the engine keeps mutating its
// own copy, so callers can marshal the result while the run proceeds.
func (e *Engine) GetExecutionStatus(ctx context.Context, executionID string) (*models.ExecutionContext, error) {
	e.mu.RLock()
	live, ok := e.executions[executionID]
	e.mu.RUnlock()

	if ok {
		return live.context.Snapshot(), nil
	}

	if e.store != nil {
		execution, err := e.store.ExecutionByID(ctx, executionID)
		if err == nil {
			return execution, nil
		}
	}

	return nil, ErrExecutionNotFound
}

// GetExecutionHistory lists retained executions of a workflow.
func (e *Engine) GetExecutionHistory(ctx context.Context, workflowID string, filters persistence.ExecutionFilters) ([]*models.ExecutionContext, error) {
	if e.store == nil {
		return nil, errors.New("engine has no persistence configured")
	}

	return e.store.ExecutionsByWorkflow(ctx, workflowID, filters)
}

// admitAndRun waits for an admission slot, then drives the run to a terminal state.
func (e *Engine) admitAndRun(ctx context.Context, wf *models.Workflow, execCtx *models.ExecutionContext, opts Options) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		// Cancelled while queued.
		_ = execCtx.TransitionTo(models.ExecutionStatusCancelled)
		e.finish(ctx, wf, execCtx)

		return
	}
	defer e.sem.Release(1)

	e.run(ctx, wf, execCtx, opts)
}

// finish persists the terminal execution to the history sink.
func (e *Engine) finish(ctx context.Context, wf *models.Workflow, execCtx *models.ExecutionContext) {
	if e.store == nil {
		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := e.store.SaveExecution(saveCtx, execCtx); err != nil {
		e.logger.Error("failed to persist execution history",
			"execution_id", execCtx.ID, "workflow_id", wf.ID, "error", err)
	}
}

func summarizeErrors(result *models.ValidationResult) string {
	if len(result.Errors) == 0 {
		return "unknown validation failure"
	}

	return result.Errors[0].Message
}
