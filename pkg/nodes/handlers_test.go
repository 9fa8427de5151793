package nodes_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/conditional"
	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/nodes"
	"github.com/flowdeck/flowdeck/pkg/testutil"
)

func execContext(t *testing.T, input map[string]any) (*models.Workflow, *models.ExecutionContext) {
	t.Helper()

	wf := testutil.CreateTestWorkflow()

	return wf, models.NewExecutionContext("exec-test", wf, input)
}

func TestActionHandler_RendersStringConfig(t *testing.T) {
	wf, execCtx := execContext(t, map[string]any{"name": "ada"})

	node := testutil.CreateTestNode(testutil.WithConfig(map[string]any{
		"greeting": "hello {{.variables.name}}",
		"retries":  float64(3),
	}))

	result, err := nodes.NewActionHandler().Execute(context.Background(), wf, node, execCtx)
	require.NoError(t, err)

	assert.Equal(t, models.NodeStatusSuccess, result.Status)
	assert.Equal(t, "hello ada", result.Output["greeting"])
	assert.Equal(t, float64(3), result.Output["retries"])
	assert.NotEmpty(t, result.Output["completed_at"])
}

func TestActionHandler_FailWith(t *testing.T) {
	wf, execCtx := execContext(t, nil)

	node := testutil.CreateTestNode(testutil.WithConfig(map[string]any{
		"fail_with": "simulated outage",
	}))

	_, err := nodes.NewActionHandler().Execute(context.Background(), wf, node, execCtx)
	require.Error(t, err)
	assert.EqualError(t, err, "simulated outage")
}

func TestActionHandler_CancelledContext(t *testing.T) {
	wf, execCtx := execContext(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	node := testutil.CreateTestNode()

	_, err := nodes.NewActionHandler().Execute(ctx, wf, node, execCtx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTriggerHandler_RecordsActivation(t *testing.T) {
	wf, execCtx := execContext(t, nil)

	node := testutil.CreateTestNode(
		testutil.WithType(models.NodeTypeTrigger),
		testutil.WithConfig(map[string]any{"trigger_type": "webhook"}),
	)

	result, err := nodes.NewTriggerHandler().Execute(context.Background(), wf, node, execCtx)
	require.NoError(t, err)

	assert.Equal(t, "webhook", result.Output["trigger_type"])
	assert.NotEmpty(t, result.Output["triggered_at"])
}

func TestTransformHandler_Expression(t *testing.T) {
	wf, execCtx := execContext(t, map[string]any{"amount": float64(41)})

	node := testutil.CreateTestNode(
		testutil.WithType(models.NodeTypeTransform),
		testutil.WithConfig(map[string]any{"expression": "{{.variables.amount}}"}),
	)

	result, err := nodes.NewTransformHandler().Execute(context.Background(), wf, node, execCtx)
	require.NoError(t, err)

	assert.Equal(t, float64(41), result.Output["result"])
}

func TestTransformHandler_Mapping(t *testing.T) {
	wf, execCtx := execContext(t, map[string]any{"first": "ada", "last": "lovelace"})

	node := testutil.CreateTestNode(
		testutil.WithType(models.NodeTypeTransform),
		testutil.WithConfig(map[string]any{
			"mapping": map[string]any{
				"full_name": "{{.variables.first}} {{.variables.last}}",
				"source":    "import",
				"version":   float64(2),
			},
		}),
	)

	result, err := nodes.NewTransformHandler().Execute(context.Background(), wf, node, execCtx)
	require.NoError(t, err)

	assert.Equal(t, "ada lovelace", result.Output["full_name"])
	assert.Equal(t, "import", result.Output["source"])
	assert.Equal(t, float64(2), result.Output["version"])
}

func TestTransformHandler_RequiresExpressionOrMapping(t *testing.T) {
	wf, execCtx := execContext(t, nil)

	node := testutil.CreateTestNode(
		testutil.WithType(models.NodeTypeTransform),
		testutil.WithConfig(map[string]any{}),
	)

	_, err := nodes.NewTransformHandler().Execute(context.Background(), wf, node, execCtx)
	assert.ErrorContains(t, err, "'expression' or 'mapping'")
}

func TestConditionHandler_SelectsGuardedBranch(t *testing.T) {
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

	execCtx := models.NewExecutionContext("exec-test", wf, map[string]any{"score": float64(99)})

	handler := nodes.NewConditionHandler(conditional.NewEvaluator(nil))
	checkNode := wf.NodeByID("check")
	require.NotNil(t, checkNode)

	result, err := handler.Execute(context.Background(), wf, checkNode, execCtx)
	require.NoError(t, err)

	assert.Equal(t, highConn.ID, result.Output[nodes.SelectedConnectionKey])
	assert.Equal(t, false, result.Output["is_default"])
}

func TestConditionHandler_NoOutgoingEndsBranch(t *testing.T) {
	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
			testutil.CreateTestNode(testutil.WithID("check"), testutil.WithType(models.NodeTypeCondition)),
		),
		testutil.WithConnections(testutil.Connect("trigger-1", "check")),
	)

	execCtx := models.NewExecutionContext("exec-test", wf, nil)

	handler := nodes.NewConditionHandler(conditional.NewEvaluator(nil))

	result, err := handler.Execute(context.Background(), wf, wf.NodeByID("check"), execCtx)
	require.NoError(t, err)

	assert.Equal(t, "", result.Output[nodes.SelectedConnectionKey])
}

func TestDelayHandler_Completes(t *testing.T) {
	wf, execCtx := execContext(t, nil)

	node := testutil.CreateTestNode(
		testutil.WithType(models.NodeTypeDelay),
		testutil.WithConfig(map[string]any{"duration_ms": float64(5)}),
	)

	result, err := nodes.NewDelayHandler().Execute(context.Background(), wf, node, execCtx)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Output["delayed_ms"])
}

func TestDelayHandler_RequiresPositiveDuration(t *testing.T) {
	wf, execCtx := execContext(t, nil)

	node := testutil.CreateTestNode(
		testutil.WithType(models.NodeTypeDelay),
		testutil.WithConfig(map[string]any{"duration_ms": float64(0)}),
	)

	_, err := nodes.NewDelayHandler().Execute(context.Background(), wf, node, execCtx)
	assert.ErrorContains(t, err, "duration_ms")
}

func TestDelayHandler_CancelledMidSleep(t *testing.T) {
	wf, execCtx := execContext(t, nil)

	node := testutil.CreateTestNode(
		testutil.WithType(models.NodeTypeDelay),
		testutil.WithConfig(map[string]any{"duration_ms": float64(10000)}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()

	_, err := nodes.NewDelayHandler().Execute(ctx, wf, node, execCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLoopHandler_ForEachWithBody(t *testing.T) {
	wf, execCtx := execContext(t, map[string]any{"items": []any{"a", "b"}})

	node := testutil.CreateTestNode(
		testutil.WithType(models.NodeTypeLoop),
		testutil.WithConfig(map[string]any{
			"loop": map[string]any{
				"type":       "for-each",
				"collection": "{{items}}",
			},
			"body": "saw {{.variables.item}}",
		}),
	)

	handler := nodes.NewLoopHandler(conditional.NewEvaluator(nil))

	result, err := handler.Execute(context.Background(), wf, node, execCtx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Output["iterations"])
	assert.Equal(t, []any{"saw a", "saw b"}, result.Output["results"])
	assert.Equal(t, false, result.Output["limit_reached"])
}

func TestParseLoopConfig(t *testing.T) {
	t.Run("missing loop key", func(t *testing.T) {
		_, err := nodes.ParseLoopConfig(map[string]any{})
		assert.ErrorContains(t, err, "missing required 'loop'")
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := nodes.ParseLoopConfig(map[string]any{
			"loop": map[string]any{"collection": "{{items}}"},
		})
		assert.ErrorContains(t, err, "missing 'type'")
	})

	t.Run("decodes bounds", func(t *testing.T) {
		cfg, err := nodes.ParseLoopConfig(map[string]any{
			"loop": map[string]any{
				"type":        "for",
				"start_index": float64(0),
				"end_index":   float64(10),
				"step":        float64(2),
			},
		})
		require.NoError(t, err)

		assert.Equal(t, models.LoopTypeFor, cfg.Type)
		assert.Equal(t, 10, cfg.EndIndex)
		assert.Equal(t, 2, cfg.Step)
	})
}

func TestParallelHandler_KeepsTaskOrder(t *testing.T) {
	wf, execCtx := execContext(t, map[string]any{"region": "eu"})

	node := testutil.CreateTestNode(
		testutil.WithType(models.NodeTypeParallel),
		testutil.WithConfig(map[string]any{
			"tasks": []any{
				"ping {{.variables.region}}",
				map[string]any{"op": "sync", "target": "{{.variables.region}}"},
				float64(7),
			},
			"max_concurrency": float64(2),
		}),
	)

	result, err := nodes.NewParallelHandler().Execute(context.Background(), wf, node, execCtx)
	require.NoError(t, err)

	results, ok := result.Output["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 3)

	assert.Equal(t, "ping eu", results[0])
	assert.Equal(t, map[string]any{"op": "sync", "target": "eu"}, results[1])
	assert.Equal(t, float64(7), results[2])
	assert.Equal(t, 3, result.Output["count"])
}

func TestParallelHandler_EmptyTasks(t *testing.T) {
	wf, execCtx := execContext(t, nil)

	node := testutil.CreateTestNode(
		testutil.WithType(models.NodeTypeParallel),
		testutil.WithConfig(map[string]any{}),
	)

	result, err := nodes.NewParallelHandler().Execute(context.Background(), wf, node, execCtx)
	require.NoError(t, err)

	assert.Equal(t, []any{}, result.Output["results"])
}

func TestParallelHandler_TaskErrorSurfaces(t *testing.T) {
	wf, execCtx := execContext(t, nil)

	node := testutil.CreateTestNode(
		testutil.WithType(models.NodeTypeParallel),
		testutil.WithConfig(map[string]any{
			"tasks": []any{"{{bad syntax"},
		}),
	)

	_, err := nodes.NewParallelHandler().Execute(context.Background(), wf, node, execCtx)
	assert.ErrorContains(t, err, "parallel task 0 failed")
}
