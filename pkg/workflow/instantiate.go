package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// Instantiate deep-clones a template workflow into an independent copy with
// fresh ids. The clone goes through a JSON round trip so nested config maps
// are never shared with the template.
func Instantiate(template *models.Workflow, name string) (*models.Workflow, error) {
	data, err := json.Marshal(template)
	if err != nil {
		return nil, fmt.Errorf("failed to clone workflow %s: %w", template.ID, err)
	}

	var clone models.Workflow

	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("failed to clone workflow %s: %w", template.ID, err)
	}

	remapIdentifiers(&clone)

	if name != "" {
		clone.Name = name
	}

	clone.Status = models.WorkflowStatusDraft

	now := time.Now().UTC()
	clone.CreatedAt = now
	clone.UpdatedAt = now

	return &clone, nil
}
