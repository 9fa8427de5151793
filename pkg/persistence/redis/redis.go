// Package redis provides Redis-backed persistence for workflows and executions.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/persistence"
)

const (
	workflowKeyPrefix  = "flowdeck:workflow:"
	executionKeyPrefix = "flowdeck:execution:"
	workflowIndexKey   = "flowdeck:workflows"
	executionIndexKey  = "flowdeck:executions:" // + workflow id
)

// Persistence implements persistence.Persistence on Redis. Documents are stored
// as JSON strings, with set indexes for listing.
type Persistence struct {
	client *goredis.Client
}

// NewPersistence connects a Redis persistence from a redis:// URL.
func NewPersistence(url string) (*Persistence, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &Persistence{client: goredis.NewClient(opts)}, nil
}

func (rp *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := rp.client.SMembers(ctx, workflowIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow ids: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := rp.WorkflowByID(ctx, id)
		if err != nil {
			if persistence.IsWorkflowNotFound(err) {
				continue // Stale index entry
			}

			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (rp *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	data, err := json.Marshal(workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	pipe := rp.client.TxPipeline()
	pipe.Set(ctx, workflowKeyPrefix+workflow.ID, data, 0)
	pipe.SAdd(ctx, workflowIndexKey, workflow.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (rp *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	data, err := rp.client.Get(ctx, workflowKeyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return &workflow, nil
}

func (rp *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	deleted, err := rp.client.Del(ctx, workflowKeyPrefix+id).Result()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if deleted == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return rp.client.SRem(ctx, workflowIndexKey, id).Err()
}

func (rp *Persistence) SaveExecution(ctx context.Context, execution *models.ExecutionContext) error {
	data, err := json.Marshal(execution)
	if err != nil {
		return &persistence.ExecutionError{Op: "Save", ExecutionID: execution.ID, Err: err}
	}

	pipe := rp.client.TxPipeline()
	pipe.Set(ctx, executionKeyPrefix+execution.ID, data, 0)
	pipe.SAdd(ctx, executionIndexKey+execution.WorkflowID, execution.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return &persistence.ExecutionError{Op: "Save", ExecutionID: execution.ID, Err: err}
	}

	return nil
}

func (rp *Persistence) ExecutionByID(ctx context.Context, id string) (*models.ExecutionContext, error) {
	data, err := rp.client.Get(ctx, executionKeyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, &persistence.ExecutionError{Op: "GetByID", ExecutionID: id, Err: persistence.ErrExecutionNotFound}
	}

	if err != nil {
		return nil, &persistence.ExecutionError{Op: "GetByID", ExecutionID: id, Err: err}
	}

	var execution models.ExecutionContext
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, &persistence.ExecutionError{Op: "GetByID", ExecutionID: id, Err: err}
	}

	return &execution, nil
}

func (rp *Persistence) ExecutionsByWorkflow(ctx context.Context, workflowID string, filters persistence.ExecutionFilters) ([]*models.ExecutionContext, error) {
	ids, err := rp.client.SMembers(ctx, executionIndexKey+workflowID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list execution ids for workflow %s: %w", workflowID, err)
	}

	executions := make([]*models.ExecutionContext, 0, len(ids))

	for _, id := range ids {
		execution, err := rp.ExecutionByID(ctx, id)
		if err != nil {
			if persistence.IsExecutionNotFound(err) {
				continue
			}

			return nil, err
		}

		executions = append(executions, execution)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.Before(executions[j].StartedAt)
	})

	return persistence.FilterExecutions(executions, filters), nil
}

func (rp *Persistence) HealthCheck(ctx context.Context) error {
	return rp.client.Ping(ctx).Err()
}

func (rp *Persistence) Close(_ context.Context) error {
	return rp.client.Close()
}

// Supported reports whether a database URL targets this store.
func Supported(url string) bool {
	return strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://")
}
