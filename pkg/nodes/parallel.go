package nodes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/template"
)

const defaultParallelConcurrency = 4

// ParallelHandler runs parallel nodes: config.tasks is a list of task configs
// executed concurrently through a bounded worker pool (errgroup with a limit),
// so uneven task durations do not leave workers idle the way fixed batching
// would. Results keep task order.
type ParallelHandler struct{}

func NewParallelHandler() *ParallelHandler {
	return &ParallelHandler{}
}

func (h *ParallelHandler) Type() models.NodeType {
	return models.NodeTypeParallel
}

func (h *ParallelHandler) ResultKey() string {
	return "parallelResult"
}

func (h *ParallelHandler) Execute(ctx context.Context, _ *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	started := time.Now()

	tasks, _ := node.Config["tasks"].([]any)
	if len(tasks) == 0 {
		return successResult(node.ID, started, map[string]any{"results": []any{}}), nil
	}

	maxConcurrency := configInt(node.Config, "max_concurrency")
	if maxConcurrency <= 0 {
		maxConcurrency = defaultParallelConcurrency
	}

	results := make([]any, len(tasks))

	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrency)

	for i, task := range tasks {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			result, err := runTask(task, execCtx)
			if err != nil {
				return fmt.Errorf("parallel task %d failed: %w", i, err)
			}

			mu.Lock()
			results[i] = result
			mu.Unlock()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return successResult(node.ID, started, map[string]any{
		"results": results,
		"count":   len(results),
	}), nil
}

// runTask renders one task spec. Task maps have every string value templated;
// plain strings are rendered directly.
func runTask(task any, execCtx *models.ExecutionContext) (any, error) {
	switch t := task.(type) {
	case string:
		return template.RenderWithContext(t, execCtx)
	case map[string]any:
		rendered := make(map[string]any, len(t))

		for key, value := range t {
			str, ok := value.(string)
			if !ok {
				rendered[key] = value

				continue
			}

			out, err := template.RenderWithContext(str, execCtx)
			if err != nil {
				return nil, err
			}

			rendered[key] = out
		}

		return rendered, nil
	default:
		return t, nil
	}
}
