package nodes

import (
	"context"
	"errors"
	"time"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// DelayHandler suspends the walk for config.duration_ms. The sleep races the
// cancellation signal so a stopped execution does not sit out the timer.
type DelayHandler struct{}

func NewDelayHandler() *DelayHandler {
	return &DelayHandler{}
}

func (h *DelayHandler) Type() models.NodeType {
	return models.NodeTypeDelay
}

func (h *DelayHandler) ResultKey() string {
	return "delayResult"
}

func (h *DelayHandler) Execute(ctx context.Context, _ *models.Workflow, node *models.WorkflowNode, _ *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	started := time.Now()

	durationMs := configInt(node.Config, "duration_ms")
	if durationMs <= 0 {
		return nil, errors.New("delay node requires a positive 'duration_ms'")
	}

	timer := time.NewTimer(time.Duration(durationMs) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return successResult(node.ID, started, map[string]any{
		"delayed_ms": durationMs,
	}), nil
}
