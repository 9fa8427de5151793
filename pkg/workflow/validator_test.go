package workflow_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/testutil"
	"github.com/flowdeck/flowdeck/pkg/workflow"
)

func TestValidateWorkflow_ValidGraph(t *testing.T) {
	validator := workflow.NewValidator()

	result := validator.ValidateWorkflow(testutil.CreateTestWorkflow())

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidateWorkflow_Rejections(t *testing.T) {
	validator := workflow.NewValidator()

	tests := []struct {
		name        string
		wf          *models.Workflow
		wantMessage string
	}{
		{
			name:        "nil workflow",
			wf:          nil,
			wantMessage: "workflow is nil",
		},
		{
			name: "empty name",
			wf: testutil.CreateTestWorkflow(func(w *models.Workflow) {
				w.Name = ""
			}),
			wantMessage: "name is required",
		},
		{
			name: "no nodes",
			wf: testutil.CreateTestWorkflow(func(w *models.Workflow) {
				w.Nodes = nil
				w.Connections = nil
			}),
			wantMessage: "no nodes",
		},
		{
			name: "no trigger nodes",
			wf: testutil.CreateTestWorkflow(
				testutil.WithNodes(testutil.CreateTestNode(testutil.WithID("only-action"))),
				testutil.WithConnections(),
			),
			wantMessage: "no trigger nodes",
		},
		{
			name: "duplicate node ids",
			wf: testutil.CreateTestWorkflow(
				testutil.WithNodes(
					testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
					testutil.CreateTestNode(testutil.WithID("dup")),
					testutil.CreateTestNode(testutil.WithID("dup")),
				),
				testutil.WithConnections(),
			),
			wantMessage: "duplicate node id",
		},
		{
			name: "unknown node type",
			wf: testutil.CreateTestWorkflow(
				testutil.WithNodes(
					testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
					testutil.CreateTestNode(testutil.WithID("weird"), testutil.WithType("teleporter")),
				),
				testutil.WithConnections(),
			),
			wantMessage: "unknown node type",
		},
		{
			name: "trigger with incoming connection",
			wf: testutil.CreateTestWorkflow(
				testutil.WithConnections(
					testutil.Connect("trigger-1", "action-1"),
					testutil.Connect("action-1", "trigger-1"),
				),
			),
			wantMessage: "incoming connections",
		},
		{
			name: "connection to unknown node",
			wf: testutil.CreateTestWorkflow(
				testutil.WithConnections(
					testutil.Connect("trigger-1", "action-1"),
					testutil.Connect("action-1", "ghost"),
				),
			),
			wantMessage: "unknown target node",
		},
		{
			name: "self connection",
			wf: testutil.CreateTestWorkflow(
				testutil.WithConnections(
					testutil.Connect("trigger-1", "action-1"),
					testutil.Connect("action-1", "action-1"),
				),
			),
			wantMessage: "links node",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validator.ValidateWorkflow(tt.wf)

			require.False(t, result.IsValid)
			require.NotEmpty(t, result.Errors)

			found := false
			for _, err := range result.Errors {
				if strings.Contains(err.Message, tt.wantMessage) {
					found = true
				}
			}

			assert.True(t, found, "expected an error containing %q, got %v", tt.wantMessage, result.ErrorMessages())
		})
	}
}

func TestValidateWorkflow_CycleDetection(t *testing.T) {
	validator := workflow.NewValidator()

	a := testutil.CreateTestNode(testutil.WithID("a"))
	b := testutil.CreateTestNode(testutil.WithID("b"))
	c := testutil.CreateTestNode(testutil.WithID("c"))
	trigger := testutil.CreateTestNode(testutil.WithID("t"), testutil.WithType(models.NodeTypeTrigger))

	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(trigger, a, b, c),
		testutil.WithConnections(
			testutil.Connect("t", "a"),
			testutil.Connect("a", "b"),
			testutil.Connect("b", "c"),
			testutil.Connect("c", "a"),
		),
	)

	result := validator.ValidateWorkflow(wf)

	require.False(t, result.IsValid)
	assert.Contains(t, result.ErrorMessages(), "workflow contains a cycle")
}

func TestValidateWorkflow_ScheduleTriggerCron(t *testing.T) {
	validator := workflow.NewValidator()

	tests := []struct {
		name  string
		cron  any
		valid bool
	}{
		{name: "valid cron", cron: "*/5 * * * *", valid: true},
		{name: "descriptor", cron: "@hourly", valid: true},
		{name: "invalid cron", cron: "every 5 minutes", valid: false},
		{name: "missing cron", cron: nil, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := testutil.CreateTestWorkflow(func(w *models.Workflow) {
				config := map[string]any{}
				if tt.cron != nil {
					config["cron"] = tt.cron
				}

				w.Triggers = []models.WorkflowTrigger{
					{ID: "sched-1", Type: "schedule", Config: config},
				}
			})

			result := validator.ValidateWorkflow(wf)
			assert.Equal(t, tt.valid, result.IsValid, "errors: %v", result.ErrorMessages())
		})
	}
}

func TestValidateWorkflow_NodeConfigSchemas(t *testing.T) {
	validator := workflow.NewValidator()

	tests := []struct {
		name   string
		node   *models.WorkflowNode
		valid  bool
	}{
		{
			name: "api node with url",
			node: testutil.CreateTestNode(
				testutil.WithID("api-1"),
				testutil.WithType(models.NodeTypeAPI),
				testutil.WithConfig(map[string]any{"url": "https://example.com", "method": "GET"}),
			),
			valid: true,
		},
		{
			name: "api node without url",
			node: testutil.CreateTestNode(
				testutil.WithID("api-1"),
				testutil.WithType(models.NodeTypeAPI),
				testutil.WithConfig(map[string]any{"method": "GET"}),
			),
			valid: false,
		},
		{
			name: "delay node without duration",
			node: testutil.CreateTestNode(
				testutil.WithID("delay-1"),
				testutil.WithType(models.NodeTypeDelay),
				testutil.WithConfig(map[string]any{}),
			),
			valid: false,
		},
		{
			name: "loop node with config",
			node: testutil.CreateTestNode(
				testutil.WithID("loop-1"),
				testutil.WithType(models.NodeTypeLoop),
				testutil.WithConfig(map[string]any{
					"loop": map[string]any{"type": "for-each", "collection": "{{items}}"},
				}),
			),
			valid: true,
		},
		{
			name: "loop node with bad type",
			node: testutil.CreateTestNode(
				testutil.WithID("loop-1"),
				testutil.WithType(models.NodeTypeLoop),
				testutil.WithConfig(map[string]any{
					"loop": map[string]any{"type": "forever"},
				}),
			),
			valid: false,
		},
		{
			name: "transform with expression",
			node: testutil.CreateTestNode(
				testutil.WithID("tf-1"),
				testutil.WithType(models.NodeTypeTransform),
				testutil.WithConfig(map[string]any{"expression": "{{value}}"}),
			),
			valid: true,
		},
		{
			name: "transform without expression or mapping",
			node: testutil.CreateTestNode(
				testutil.WithID("tf-1"),
				testutil.WithType(models.NodeTypeTransform),
				testutil.WithConfig(map[string]any{}),
			),
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger))

			wf := testutil.CreateTestWorkflow(
				testutil.WithNodes(trigger, tt.node),
				testutil.WithConnections(testutil.Connect("trigger-1", tt.node.ID)),
			)

			result := validator.ValidateWorkflow(wf)
			assert.Equal(t, tt.valid, result.IsValid, "errors: %v", result.ErrorMessages())
		})
	}
}

func TestValidateWorkflow_UnreachableNodeWarns(t *testing.T) {
	validator := workflow.NewValidator()

	island := testutil.CreateTestNode(testutil.WithID("island"))

	wf := testutil.CreateTestWorkflow(func(w *models.Workflow) {
		w.Nodes = append(w.Nodes, island)
	})

	result := validator.ValidateWorkflow(wf)

	// Unreachable nodes warn without invalidating the graph.
	assert.True(t, result.IsValid)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0].Message, "island")
}

func TestWouldCreateCycle(t *testing.T) {
	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("t"), testutil.WithType(models.NodeTypeTrigger)),
			testutil.CreateTestNode(testutil.WithID("a")),
			testutil.CreateTestNode(testutil.WithID("b")),
			testutil.CreateTestNode(testutil.WithID("c")),
		),
		testutil.WithConnections(
			testutil.Connect("t", "a"),
			testutil.Connect("a", "b"),
			testutil.Connect("b", "c"),
		),
	)

	assert.True(t, workflow.WouldCreateCycle(wf, "c", "a"))
	assert.True(t, workflow.WouldCreateCycle(wf, "b", "a"))
	assert.True(t, workflow.WouldCreateCycle(wf, "a", "a"))
	assert.True(t, workflow.WouldCreateCycle(wf, "c", "t"))
	assert.False(t, workflow.WouldCreateCycle(wf, "a", "c"))
	assert.False(t, workflow.WouldCreateCycle(wf, "t", "c"))
}

func TestValidateWorkflow_MultipleTriggersWarn(t *testing.T) {
	validator := workflow.NewValidator()

	wf := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
			testutil.CreateTestNode(testutil.WithID("trigger-2"), testutil.WithType(models.NodeTypeTrigger)),
			testutil.CreateTestNode(testutil.WithID("action-1")),
		),
		testutil.WithConnections(
			testutil.Connect("trigger-1", "action-1"),
			testutil.Connect("trigger-2", "action-1"),
		),
	)

	result := validator.ValidateWorkflow(wf)

	assert.True(t, result.IsValid)

	found := false

	for _, warning := range result.Warnings {
		if strings.Contains(warning.Message, "trigger nodes") {
			found = true
		}
	}

	assert.True(t, found, "expected a multiple-trigger warning")
}

func TestValidateWorkflow_RequiredInputs(t *testing.T) {
	validator := workflow.NewValidator()

	requiredInput := func(defaultValue any) func(*models.WorkflowNode) {
		return func(n *models.WorkflowNode) {
			n.Inputs = []models.InputPort{
				{ID: "payload", Type: "any", Required: true, Default: defaultValue},
			}
		}
	}

	tests := []struct {
		name  string
		wf    *models.Workflow
		valid bool
	}{
		{
			name: "unfed required input errors",
			wf: testutil.CreateTestWorkflow(
				testutil.WithNodes(
					testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
					testutil.CreateTestNode(testutil.WithID("sink"), requiredInput(nil)),
				),
				testutil.WithConnections(),
			),
			valid: false,
		},
		{
			name: "default satisfies",
			wf: testutil.CreateTestWorkflow(
				testutil.WithNodes(
					testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
					testutil.CreateTestNode(testutil.WithID("sink"), requiredInput("fallback")),
				),
				testutil.WithConnections(testutil.Connect("trigger-1", "sink")),
			),
			valid: true,
		},
		{
			name: "config value satisfies",
			wf: testutil.CreateTestWorkflow(
				testutil.WithNodes(
					testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
					testutil.CreateTestNode(testutil.WithID("sink"), requiredInput(nil),
						testutil.WithConfig(map[string]any{"payload": "literal", "message": "test"})),
				),
				testutil.WithConnections(testutil.Connect("trigger-1", "sink")),
			),
			valid: true,
		},
		{
			name: "incoming connection satisfies",
			wf: testutil.CreateTestWorkflow(
				testutil.WithNodes(
					testutil.CreateTestNode(testutil.WithID("trigger-1"), testutil.WithType(models.NodeTypeTrigger)),
					testutil.CreateTestNode(testutil.WithID("sink"), requiredInput(nil)),
				),
				testutil.WithConnections(testutil.Connect("trigger-1", "sink")),
			),
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validator.ValidateWorkflow(tt.wf)

			assert.Equal(t, tt.valid, result.IsValid)

			if !tt.valid {
				require.NotEmpty(t, result.Errors)
				assert.Contains(t, result.Errors[0].Message, `required input "payload"`)
			}
		})
	}
}
