// Package persistence provides data storage abstraction for workflows and execution history.
package persistence

import (
	"context"
	"time"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// ExecutionFilters narrows execution-history queries.
type ExecutionFilters struct {
	Status *models.ExecutionStatus
	From   *time.Time
	To     *time.Time
	Limit  int
}

// Persistence is the opaque get/put boundary the core talks to. The wire shape
// mirrors the domain models one-to-one as JSON.
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	SaveExecution(ctx context.Context, execution *models.ExecutionContext) error
	ExecutionByID(ctx context.Context, id string) (*models.ExecutionContext, error)
	ExecutionsByWorkflow(ctx context.Context, workflowID string, filters ExecutionFilters) ([]*models.ExecutionContext, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FilterExecutions applies ExecutionFilters in memory. Store implementations
// without native filtering share this.
func FilterExecutions(executions []*models.ExecutionContext, filters ExecutionFilters) []*models.ExecutionContext {
	filtered := make([]*models.ExecutionContext, 0, len(executions))

	for _, exec := range executions {
		if filters.Status != nil && exec.Status != *filters.Status {
			continue
		}

		if filters.From != nil && exec.StartedAt.Before(*filters.From) {
			continue
		}

		if filters.To != nil && exec.StartedAt.After(*filters.To) {
			continue
		}

		filtered = append(filtered, exec)

		if filters.Limit > 0 && len(filtered) >= filters.Limit {
			break
		}
	}

	return filtered
}
