package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// Export serializes a workflow to indented JSON suitable for sharing between
// installations.
func Export(wf *models.Workflow) ([]byte, error) {
	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to export workflow %s: %w", wf.ID, err)
	}

	return data, nil
}

// Import deserializes an exported workflow and regenerates every id so the
// imported copy never collides with a workflow already present. References
// between nodes and connections are rewritten consistently; the copy comes
// back as a draft.
func Import(data []byte) (*models.Workflow, error) {
	var wf models.Workflow

	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow import: %w", err)
	}

	if len(wf.Nodes) == 0 {
		return nil, fmt.Errorf("workflow import has no nodes")
	}

	remapIdentifiers(&wf)
	wf.Status = models.WorkflowStatusDraft

	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	return &wf, nil
}

// remapIdentifiers assigns fresh ids to the workflow, its nodes, connections,
// and triggers, rewriting connection endpoints through the node id mapping.
func remapIdentifiers(wf *models.Workflow) {
	wf.ID = uuid.New().String()

	nodeIDs := make(map[string]string, len(wf.Nodes))

	for _, node := range wf.Nodes {
		fresh := uuid.New().String()
		nodeIDs[node.ID] = fresh
		node.ID = fresh
	}

	for _, conn := range wf.Connections {
		conn.ID = uuid.New().String()

		if mapped, ok := nodeIDs[conn.SourceNodeID]; ok {
			conn.SourceNodeID = mapped
		}

		if mapped, ok := nodeIDs[conn.TargetNodeID]; ok {
			conn.TargetNodeID = mapped
		}
	}

	for i := range wf.Triggers {
		wf.Triggers[i].ID = uuid.New().String()
	}
}
