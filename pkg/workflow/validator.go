// Package workflow provides graph storage, mutation, and structural validation
// for node-based workflows.
package workflow

import (
	"fmt"
	"slices"

	"github.com/robfig/cron/v3"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// Validator performs structural and configuration validation of a workflow
// graph before it is persisted or executed.
type Validator struct {
	cronParser cron.Parser
}

func NewValidator() *Validator {
	return &Validator{
		cronParser: cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		),
	}
}

// ValidateWorkflow runs every structural check and returns the aggregated
// result. Errors block activation and execution; warnings and suggestions are
// advisory.
func (v *Validator) ValidateWorkflow(wf *models.Workflow) *models.ValidationResult {
	result := &models.ValidationResult{IsValid: true}

	if wf == nil {
		result.AddError(models.ValidationErrorLogic, "workflow is nil", "", "")

		return result
	}

	if wf.Name == "" {
		result.AddError(models.ValidationErrorConfiguration, "workflow name is required", "", "name")
	}

	if len(wf.Nodes) == 0 {
		result.AddError(models.ValidationErrorLogic, "workflow has no nodes", "", "")

		return result
	}

	v.validateNodes(wf, result)
	v.validateTriggers(wf, result)
	v.validateConnections(wf, result)
	v.validateAcyclic(wf, result)
	v.validateReachability(wf, result)

	return result
}

func (v *Validator) validateNodes(wf *models.Workflow, result *models.ValidationResult) {
	seen := make(map[string]bool, len(wf.Nodes))

	for _, node := range wf.Nodes {
		if node.ID == "" {
			result.AddError(models.ValidationErrorConfiguration, "node id is required", "", "id")

			continue
		}

		if seen[node.ID] {
			result.AddError(models.ValidationErrorLogic,
				fmt.Sprintf("duplicate node id %q", node.ID), node.ID, "id")
		}

		seen[node.ID] = true

		if !slices.Contains(models.NodeTypes, node.Type) {
			result.AddError(models.ValidationErrorConfiguration,
				fmt.Sprintf("unknown node type %q", node.Type), node.ID, "type")

			continue
		}

		v.validateNodeConfig(node, result)
		v.validateRequiredInputs(wf, node, result)
	}
}

// validateRequiredInputs errors on any required input port that has no value
// source: no default, no config entry under the port id, and no incoming
// connection feeding it. A connection with an empty target port id delivers to
// the node as a whole and satisfies every input.
func (v *Validator) validateRequiredInputs(wf *models.Workflow, node *models.WorkflowNode, result *models.ValidationResult) {
	incoming := wf.ConnectionsTo(node.ID)

	for i := range node.Inputs {
		input := &node.Inputs[i]

		if !input.Required || input.Default != nil {
			continue
		}

		if _, ok := node.Config[input.ID]; ok {
			continue
		}

		fed := false

		for _, conn := range incoming {
			if conn.TargetInputID == "" || conn.TargetInputID == input.ID {
				fed = true

				break
			}
		}

		if !fed {
			result.AddError(models.ValidationErrorConfiguration,
				fmt.Sprintf("node %q required input %q has no default, no config value and no incoming connection",
					node.ID, input.ID), node.ID, input.ID)
		}
	}
}

func (v *Validator) validateTriggers(wf *models.Workflow, result *models.ValidationResult) {
	triggers := wf.TriggerNodes()

	if len(triggers) == 0 {
		result.AddError(models.ValidationErrorLogic, "workflow has no trigger nodes", "", "")
	}

	if len(triggers) > 1 {
		result.Warnings = append(result.Warnings, models.ValidationWarning{
			Message: fmt.Sprintf("workflow has %d trigger nodes; each one starts its own entry branch", len(triggers)),
		})
	}

	for _, node := range triggers {
		if len(wf.ConnectionsTo(node.ID)) > 0 {
			result.AddError(models.ValidationErrorConnection,
				fmt.Sprintf("trigger node %q cannot have incoming connections", node.ID), node.ID, "")
		}
	}

	for _, trigger := range wf.Triggers {
		if trigger.Type != "schedule" {
			continue
		}

		expr, _ := trigger.Config["cron"].(string)
		if expr == "" {
			result.AddError(models.ValidationErrorConfiguration,
				fmt.Sprintf("schedule trigger %q is missing its cron expression", trigger.ID), "", "cron")

			continue
		}

		if _, err := v.cronParser.Parse(expr); err != nil {
			result.AddError(models.ValidationErrorConfiguration,
				fmt.Sprintf("schedule trigger %q has an invalid cron expression: %v", trigger.ID, err), "", "cron")
		}
	}
}

func (v *Validator) validateConnections(wf *models.Workflow, result *models.ValidationResult) {
	seen := make(map[string]bool, len(wf.Connections))

	for _, conn := range wf.Connections {
		if conn.ID != "" && seen[conn.ID] {
			result.AddError(models.ValidationErrorConnection,
				fmt.Sprintf("duplicate connection id %q", conn.ID), "", "id")
		}

		seen[conn.ID] = true

		for _, err := range ValidateConnection(wf, conn) {
			result.Errors = append(result.Errors, err)
			result.IsValid = false
		}
	}
}

// ValidateConnection checks one connection against the workflow it belongs to:
// both endpoint nodes must exist, the named ports must exist on them, and the
// port types must be compatible.
func ValidateConnection(wf *models.Workflow, conn *models.Connection) []models.ValidationError {
	var errs []models.ValidationError

	appendErr := func(message, field string) {
		errs = append(errs, models.ValidationError{
			Type:     models.ValidationErrorConnection,
			Severity: models.SeverityHigh,
			Message:  message,
			Field:    field,
		})
	}

	if conn.SourceNodeID == conn.TargetNodeID {
		appendErr(fmt.Sprintf("connection %q links node %q to itself", conn.ID, conn.SourceNodeID), "")

		return errs
	}

	source := wf.NodeByID(conn.SourceNodeID)
	if source == nil {
		appendErr(fmt.Sprintf("connection %q references unknown source node %q", conn.ID, conn.SourceNodeID), "source_node_id")
	}

	target := wf.NodeByID(conn.TargetNodeID)
	if target == nil {
		appendErr(fmt.Sprintf("connection %q references unknown target node %q", conn.ID, conn.TargetNodeID), "target_node_id")
	}

	if source == nil || target == nil {
		return errs
	}

	var sourcePort *models.OutputPort

	if conn.SourceOutputID != "" {
		sourcePort = source.OutputByID(conn.SourceOutputID)
		if sourcePort == nil {
			appendErr(fmt.Sprintf("connection %q references unknown output port %q on node %q",
				conn.ID, conn.SourceOutputID, source.ID), "source_output_id")
		}
	}

	var targetPort *models.InputPort

	if conn.TargetInputID != "" {
		targetPort = target.InputByID(conn.TargetInputID)
		if targetPort == nil {
			appendErr(fmt.Sprintf("connection %q references unknown input port %q on node %q",
				conn.ID, conn.TargetInputID, target.ID), "target_input_id")
		}
	}

	if sourcePort != nil && targetPort != nil && !portTypesCompatible(sourcePort.Type, targetPort.Type) {
		appendErr(fmt.Sprintf("connection %q links incompatible port types %q and %q",
			conn.ID, sourcePort.Type, targetPort.Type), "")
	}

	return errs
}

func portTypesCompatible(sourceType, targetType string) bool {
	if sourceType == "" || targetType == "" {
		return true
	}

	if sourceType == "any" || targetType == "any" {
		return true
	}

	return sourceType == targetType
}

// validateAcyclic rejects any directed cycle with a three-color depth-first
// walk over the connection list.
func (v *Validator) validateAcyclic(wf *models.Workflow, result *models.ValidationResult) {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int, len(wf.Nodes))

	var visit func(nodeID string) bool

	visit = func(nodeID string) bool {
		color[nodeID] = gray

		for _, conn := range wf.ConnectionsFrom(nodeID) {
			switch color[conn.TargetNodeID] {
			case gray:
				return true
			case white:
				if wf.NodeByID(conn.TargetNodeID) != nil && visit(conn.TargetNodeID) {
					return true
				}
			}
		}

		color[nodeID] = black

		return false
	}

	for _, node := range wf.Nodes {
		if color[node.ID] == white && visit(node.ID) {
			result.AddError(models.ValidationErrorLogic,
				"workflow contains a cycle", node.ID, "")

			return
		}
	}
}

// WouldCreateCycle reports whether adding source -> target would close a
// cycle, by walking backward from the source along incoming connections and
// checking whether the target is already an ancestor.
func WouldCreateCycle(wf *models.Workflow, sourceNodeID, targetNodeID string) bool {
	if sourceNodeID == targetNodeID {
		return true
	}

	visited := make(map[string]bool, len(wf.Nodes))
	stack := []string{sourceNodeID}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[current] {
			continue
		}

		visited[current] = true

		for _, conn := range wf.ConnectionsTo(current) {
			if conn.SourceNodeID == targetNodeID {
				return true
			}

			stack = append(stack, conn.SourceNodeID)
		}
	}

	return false
}

func (v *Validator) validateReachability(wf *models.Workflow, result *models.ValidationResult) {
	reachable := make(map[string]bool, len(wf.Nodes))
	queue := make([]string, 0, len(wf.Nodes))

	for _, node := range wf.TriggerNodes() {
		queue = append(queue, node.ID)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if reachable[current] {
			continue
		}

		reachable[current] = true

		for _, conn := range wf.ConnectionsFrom(current) {
			queue = append(queue, conn.TargetNodeID)
		}
	}

	for _, node := range wf.Nodes {
		if reachable[node.ID] {
			continue
		}

		result.Warnings = append(result.Warnings, models.ValidationWarning{
			Message: fmt.Sprintf("node %q is not reachable from any trigger", node.ID),
			NodeID:  node.ID,
		})
	}

	for _, node := range wf.Nodes {
		if node.Type == models.NodeTypeCondition && len(wf.ConnectionsFrom(node.ID)) == 0 {
			result.Suggestions = append(result.Suggestions, models.ValidationSuggestion{
				Message: fmt.Sprintf("condition node %q has no outgoing connections; add at least one branch", node.ID),
				NodeID:  node.ID,
			})
		}
	}
}
