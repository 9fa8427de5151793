package engine_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/conditional"
	"github.com/flowdeck/flowdeck/pkg/engine"
	"github.com/flowdeck/flowdeck/pkg/eventbus"
	"github.com/flowdeck/flowdeck/pkg/events"
	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/persistence"
	"github.com/flowdeck/flowdeck/pkg/persistence/file"
	"github.com/flowdeck/flowdeck/pkg/registry"
	"github.com/flowdeck/flowdeck/pkg/testutil"
)

// eventRecorder captures published events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *eventRecorder) Publish(_ context.Context, _ string, event eventbus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	return nil
}

func (r *eventRecorder) all() []eventbus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]eventbus.Event, len(r.events))
	copy(snapshot, r.events)

	return snapshot
}

func (r *eventRecorder) nodeStarts(nodeID string) int {
	count := 0

	for _, event := range r.all() {
		if started, ok := event.(events.NodeStarted); ok && started.NodeID == nodeID {
			count++
		}
	}

	return count
}

func (r *eventRecorder) hasType(eventType events.EventType) bool {
	for _, event := range r.all() {
		if event.GetType() == eventType {
			return true
		}
	}

	return false
}

func newTestEngine(t *testing.T, recorder *eventRecorder) *engine.Engine {
	t.Helper()

	logger := slog.Default()
	evaluator := conditional.NewEvaluator(logger)

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultHandlers(evaluator)

	cfg := engine.Config{
		Registry:    reg,
		Evaluator:   evaluator,
		Persistence: file.NewPersistence(t.TempDir()),
		Logger:      logger,
	}

	if recorder != nil {
		cfg.Publisher = recorder
	}

	return engine.NewEngine(cfg)
}

func waitForTerminal(t *testing.T, eng *engine.Engine, executionID string) *models.ExecutionContext {
	t.Helper()

	var execCtx *models.ExecutionContext

	require.Eventually(t, func() bool {
		var err error

		execCtx, err = eng.GetExecutionStatus(context.Background(), executionID)
		if err != nil {
			return false
		}

		return execCtx.CurrentStatus().IsTerminal()
	}, 5*time.Second, 10*time.Millisecond, "execution %s never reached a terminal state", executionID)

	return execCtx
}

func TestExecuteWorkflowObject_LinearFlowCompletes(t *testing.T) {
	recorder := &eventRecorder{}
	eng := newTestEngine(t, recorder)

	wf := testutil.CreateTestWorkflow()

	executionID, err := eng.ExecuteWorkflowObject(context.Background(), wf, nil, engine.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, executionID)

	execCtx := waitForTerminal(t, eng, executionID)

	assert.Equal(t, models.ExecutionStatusCompleted, execCtx.CurrentStatus())
	assert.Empty(t, execCtx.Error)

	// Outputs are namespaced per node.
	_, ok := execCtx.Variable("nodes.trigger-1")
	assert.True(t, ok)
	_, ok = execCtx.Variable("nodes.action-1")
	assert.True(t, ok)

	assert.True(t, recorder.hasType(events.ExecutionStartedEvent))
	assert.True(t, recorder.hasType(events.ExecutionCompletedEvent))
	assert.Equal(t, 1, recorder.nodeStarts("trigger-1"))
	assert.Equal(t, 1, recorder.nodeStarts("action-1"))
}

func TestExecuteWorkflowObject_RejectsInvalidGraph(t *testing.T) {
	eng := newTestEngine(t, nil)

	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(testutil.CreateTestNode(testutil.WithID("only-action"))),
		testutil.WithConnections(),
	)

	_, err := eng.ExecuteWorkflowObject(context.Background(), wf, nil, engine.Options{})
	assert.ErrorIs(t, err, engine.ErrWorkflowInvalid)
}

func TestExecuteWorkflowObject_RetriesThenFails(t *testing.T) {
	recorder := &eventRecorder{}
	eng := newTestEngine(t, recorder)

	failing := testutil.CreateTestNode(
		testutil.WithID("flaky"),
		testutil.WithConfig(map[string]any{"fail_with": "downstream unavailable"}),
	)

	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
			failing,
		),
		testutil.WithConnections(testutil.Connect("trigger-1", "flaky")),
		testutil.WithSettings(models.WorkflowSettings{
			MaxRetries:   2,
			RetryDelayMs: 1,
		}),
	)

	executionID, err := eng.ExecuteWorkflowObject(context.Background(), wf, nil, engine.Options{})
	require.NoError(t, err)

	execCtx := waitForTerminal(t, eng, executionID)

	assert.Equal(t, models.ExecutionStatusFailed, execCtx.CurrentStatus())
	assert.Contains(t, execCtx.Error, "after 3 attempts")
	assert.Contains(t, execCtx.Error, "downstream unavailable")

	// maxRetries=2 means three attempts, each announced by its own node_start.
	assert.Equal(t, 3, recorder.nodeStarts("flaky"))
	assert.True(t, recorder.hasType(events.NodeErrorEvent))
	assert.True(t, recorder.hasType(events.ExecutionErrorEvent))
}

func TestExecuteWorkflowObject_ContinueKeepsIndependentBranches(t *testing.T) {
	recorder := &eventRecorder{}
	eng := newTestEngine(t, recorder)

	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
			testutil.CreateTestNode(
				testutil.WithID("broken"),
				testutil.WithConfig(map[string]any{"fail_with": "boom"}),
			),
			testutil.CreateTestNode(testutil.WithID("after-broken")),
			testutil.CreateTestNode(testutil.WithID("healthy")),
		),
		testutil.WithConnections(
			testutil.Connect("trigger-1", "broken"),
			testutil.Connect("broken", "after-broken"),
			testutil.Connect("trigger-1", "healthy"),
		),
		testutil.WithSettings(models.WorkflowSettings{
			ErrorHandling: models.ErrorHandlingContinue,
			RetryDelayMs:  1,
		}),
	)

	executionID, err := eng.ExecuteWorkflowObject(context.Background(), wf, nil, engine.Options{})
	require.NoError(t, err)

	execCtx := waitForTerminal(t, eng, executionID)

	// The failed node's successors are skipped; the independent branch ran and
	// the execution still completes.
	assert.Equal(t, models.ExecutionStatusCompleted, execCtx.CurrentStatus())

	_, ok := execCtx.Variable("nodes.healthy")
	assert.True(t, ok)

	_, ok = execCtx.Variable("nodes.after-broken")
	assert.False(t, ok)

	assert.Zero(t, recorder.nodeStarts("after-broken"))
	assert.True(t, recorder.hasType(events.NodeErrorEvent))
}

func TestExecuteWorkflowObject_ConditionBranchIsExclusive(t *testing.T) {
	recorder := &eventRecorder{}
	eng := newTestEngine(t, recorder)

	highConn := testutil.ConnectIf("check", "high", "{{score}} greater 50")
	highConn.Metadata = map[string]any{"priority": 10}

	defaultConn := testutil.Connect("check", "low")
	defaultConn.Metadata = map[string]any{"default": true}

	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
			testutil.CreateTestNode(testutil.WithID("check"), testutil.WithType(models.NodeTypeCondition)),
			testutil.CreateTestNode(testutil.WithID("high")),
			testutil.CreateTestNode(testutil.WithID("low")),
		),
		testutil.WithConnections(
			testutil.Connect("trigger-1", "check"),
			highConn,
			defaultConn,
		),
	)

	executionID, err := eng.ExecuteWorkflowObject(context.Background(), wf,
		map[string]any{"score": float64(80)}, engine.Options{})
	require.NoError(t, err)

	execCtx := waitForTerminal(t, eng, executionID)

	assert.Equal(t, models.ExecutionStatusCompleted, execCtx.CurrentStatus())

	_, ok := execCtx.Variable("nodes.high")
	assert.True(t, ok)

	// The losing branch never executes.
	_, ok = execCtx.Variable("nodes.low")
	assert.False(t, ok)
	assert.Zero(t, recorder.nodeStarts("low"))

	selected, ok := execCtx.Variable("nodes.check.selected_connection")
	require.True(t, ok)
	assert.Equal(t, highConn.ID, selected)
}

func TestExecuteWorkflowObject_ConditionDefaultBranch(t *testing.T) {
	eng := newTestEngine(t, nil)

	highConn := testutil.ConnectIf("check", "high", "{{score}} greater 50")

	defaultConn := testutil.Connect("check", "low")
	defaultConn.Metadata = map[string]any{"default": true}

	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
			testutil.CreateTestNode(testutil.WithID("check"), testutil.WithType(models.NodeTypeCondition)),
			testutil.CreateTestNode(testutil.WithID("high")),
			testutil.CreateTestNode(testutil.WithID("low")),
		),
		testutil.WithConnections(
			testutil.Connect("trigger-1", "check"),
			highConn,
			defaultConn,
		),
	)

	executionID, err := eng.ExecuteWorkflowObject(context.Background(), wf,
		map[string]any{"score": float64(10)}, engine.Options{})
	require.NoError(t, err)

	execCtx := waitForTerminal(t, eng, executionID)

	assert.Equal(t, models.ExecutionStatusCompleted, execCtx.CurrentStatus())

	_, ok := execCtx.Variable("nodes.low")
	assert.True(t, ok)

	_, ok = execCtx.Variable("nodes.high")
	assert.False(t, ok)
}

func TestExecuteWorkflowObject_GuardedConnectionSkipsTarget(t *testing.T) {
	eng := newTestEngine(t, nil)

	wf := testutil.CreateTestWorkflow(
		testutil.WithConnections(
			testutil.ConnectIf("trigger-1", "action-1", "{{flag}} equals yes"),
		),
	)

	executionID, err := eng.ExecuteWorkflowObject(context.Background(), wf,
		map[string]any{"flag": "no"}, engine.Options{})
	require.NoError(t, err)

	execCtx := waitForTerminal(t, eng, executionID)

	assert.Equal(t, models.ExecutionStatusCompleted, execCtx.CurrentStatus())

	_, ok := execCtx.Variable("nodes.action-1")
	assert.False(t, ok)
}

func TestExecuteWorkflowObject_NodeTimeout(t *testing.T) {
	recorder := &eventRecorder{}
	eng := newTestEngine(t, recorder)

	slow := testutil.CreateTestNode(
		testutil.WithID("slow"),
		testutil.WithType(models.NodeTypeDelay),
		testutil.WithConfig(map[string]any{"duration_ms": 2000}),
	)

	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
			slow,
		),
		testutil.WithConnections(testutil.Connect("trigger-1", "slow")),
	)

	executionID, err := eng.ExecuteWorkflowObject(context.Background(), wf, nil, engine.Options{
		Timeout: 30 * time.Millisecond,
	})
	require.NoError(t, err)

	execCtx := waitForTerminal(t, eng, executionID)

	assert.Equal(t, models.ExecutionStatusTimeout, execCtx.CurrentStatus())
	assert.Contains(t, execCtx.Error, "timed out")
	assert.True(t, recorder.hasType(events.ExecutionErrorEvent))
}

func TestStopExecution_CancelsRun(t *testing.T) {
	eng := newTestEngine(t, nil)

	slow := testutil.CreateTestNode(
		testutil.WithID("slow"),
		testutil.WithType(models.NodeTypeDelay),
		testutil.WithConfig(map[string]any{"duration_ms": 10000}),
	)

	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
			slow,
		),
		testutil.WithConnections(testutil.Connect("trigger-1", "slow")),
	)

	executionID, err := eng.ExecuteWorkflowObject(context.Background(), wf, nil, engine.Options{})
	require.NoError(t, err)

	// Wait until the run is actually underway before stopping it.
	require.Eventually(t, func() bool {
		execCtx, err := eng.GetExecutionStatus(context.Background(), executionID)

		return err == nil && execCtx.CurrentStatus() == models.ExecutionStatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, eng.StopExecution(executionID))

	execCtx := waitForTerminal(t, eng, executionID)
	assert.Equal(t, models.ExecutionStatusCancelled, execCtx.CurrentStatus())
}

func TestStopExecution_UnknownID(t *testing.T) {
	eng := newTestEngine(t, nil)

	err := eng.StopExecution("exec-missing")
	assert.ErrorIs(t, err, engine.ErrExecutionNotFound)
}

func TestExecuteWorkflowObject_DryRunSkipsHandlers(t *testing.T) {
	recorder := &eventRecorder{}
	eng := newTestEngine(t, recorder)

	// A node that would fail if actually executed.
	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
			testutil.CreateTestNode(
				testutil.WithID("broken"),
				testutil.WithConfig(map[string]any{"fail_with": "boom"}),
			),
		),
		testutil.WithConnections(testutil.Connect("trigger-1", "broken")),
	)

	executionID, err := eng.ExecuteWorkflowObject(context.Background(), wf, nil, engine.Options{
		DryRun: true,
	})
	require.NoError(t, err)

	execCtx := waitForTerminal(t, eng, executionID)

	assert.Equal(t, models.ExecutionStatusCompleted, execCtx.CurrentStatus())

	dry, ok := execCtx.Variable("nodes.broken.dry_run")
	require.True(t, ok)
	assert.Equal(t, true, dry)
}

func TestGetExecutionHistory(t *testing.T) {
	eng := newTestEngine(t, nil)

	wf := testutil.CreateTestWorkflow()

	executionID, err := eng.ExecuteWorkflowObject(context.Background(), wf, nil, engine.Options{})
	require.NoError(t, err)

	waitForTerminal(t, eng, executionID)

	// The terminal execution lands in the history sink.
	require.Eventually(t, func() bool {
		history, err := eng.GetExecutionHistory(context.Background(), wf.ID, persistence.ExecutionFilters{})

		return err == nil && len(history) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestExecuteWorkflow_UnknownWorkflow(t *testing.T) {
	eng := newTestEngine(t, nil)

	_, err := eng.ExecuteWorkflow(context.Background(), "missing", nil, engine.Options{})
	assert.Error(t, err)
}

func TestGetExecutionStatus_SafeToMarshalWhileRunning(t *testing.T) {
	eng := newTestEngine(t, nil)

	slow := testutil.CreateTestNode(
		testutil.WithID("slow"),
		testutil.WithType(models.NodeTypeDelay),
		testutil.WithConfig(map[string]any{"duration_ms": 200}),
	)

	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
			slow,
		),
		testutil.WithConnections(testutil.Connect("trigger-1", "slow")),
	)

	executionID, err := eng.ExecuteWorkflowObject(context.Background(), wf, nil, engine.Options{})
	require.NoError(t, err)

	// Poll and marshal the status while the run mutates its own context. The
	// returned snapshot must be detached; the race detector flags sharing.
	for {
		execCtx, err := eng.GetExecutionStatus(context.Background(), executionID)
		require.NoError(t, err)

		_, err = json.Marshal(execCtx)
		require.NoError(t, err)

		if execCtx.CurrentStatus().IsTerminal() {
			assert.Equal(t, models.ExecutionStatusCompleted, execCtx.CurrentStatus())

			break
		}

		time.Sleep(5 * time.Millisecond)
	}
}

func TestPauseAndResumeExecution(t *testing.T) {
	recorder := &eventRecorder{}
	eng := newTestEngine(t, recorder)

	slow := testutil.CreateTestNode(
		testutil.WithID("slow"),
		testutil.WithType(models.NodeTypeDelay),
		testutil.WithConfig(map[string]any{"duration_ms": 150}),
	)

	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
			slow,
			testutil.CreateTestNode(testutil.WithID("tail")),
		),
		testutil.WithConnections(
			testutil.Connect("trigger-1", "slow"),
			testutil.Connect("slow", "tail"),
		),
	)

	executionID, err := eng.ExecuteWorkflowObject(context.Background(), wf, nil, engine.Options{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		execCtx, err := eng.GetExecutionStatus(context.Background(), executionID)

		return err == nil && execCtx.CurrentStatus() == models.ExecutionStatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, eng.PauseExecution(executionID, "operator hold"))

	// The walk parks at the next node boundary; the tail node must not run.
	time.Sleep(400 * time.Millisecond)

	execCtx, err := eng.GetExecutionStatus(context.Background(), executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPaused, execCtx.CurrentStatus())

	_, ran := execCtx.Variable("nodes.tail")
	assert.False(t, ran)

	assert.True(t, recorder.hasType(events.ExecutionPausedEvent))

	require.NoError(t, eng.ResumeExecution(executionID))

	execCtx = waitForTerminal(t, eng, executionID)
	assert.Equal(t, models.ExecutionStatusCompleted, execCtx.CurrentStatus())

	_, ran = execCtx.Variable("nodes.tail")
	assert.True(t, ran)

	// Terminal runs cannot be paused again.
	assert.ErrorIs(t, eng.PauseExecution(executionID, ""), engine.ErrExecutionStateConflict)
	assert.ErrorIs(t, eng.ResumeExecution(executionID), engine.ErrExecutionStateConflict)
	assert.ErrorIs(t, eng.PauseExecution("exec-missing", ""), engine.ErrExecutionNotFound)
}

func TestOptions_NegativeMaxRetriesDisablesRetries(t *testing.T) {
	recorder := &eventRecorder{}
	eng := newTestEngine(t, recorder)

	failing := testutil.CreateTestNode(
		testutil.WithID("flaky"),
		testutil.WithConfig(map[string]any{"fail_with": "downstream unavailable"}),
	)

	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
			failing,
		),
		testutil.WithConnections(testutil.Connect("trigger-1", "flaky")),
		testutil.WithSettings(models.WorkflowSettings{
			MaxRetries:   2,
			RetryDelayMs: 1,
		}),
	)

	// A negative budget overrides the workflow's declared retries.
	executionID, err := eng.ExecuteWorkflowObject(context.Background(), wf, nil,
		engine.Options{MaxRetries: -1, RetryDelay: -1})
	require.NoError(t, err)

	execCtx := waitForTerminal(t, eng, executionID)

	assert.Equal(t, models.ExecutionStatusFailed, execCtx.CurrentStatus())
	assert.Contains(t, execCtx.Error, "after 1 attempts")
	assert.Equal(t, 1, recorder.nodeStarts("flaky"))
}
