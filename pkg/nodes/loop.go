package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowdeck/flowdeck/pkg/conditional"
	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/template"
)

// LoopHandler runs loop nodes. The loop configuration lives under config.loop;
// config.body is an optional template rendered once per iteration with the
// scoped item/index bindings visible.
type LoopHandler struct {
	evaluator *conditional.Evaluator
}

func NewLoopHandler(evaluator *conditional.Evaluator) *LoopHandler {
	return &LoopHandler{evaluator: evaluator}
}

func (h *LoopHandler) Type() models.NodeType {
	return models.NodeTypeLoop
}

func (h *LoopHandler) ResultKey() string {
	return "loopResult"
}

func (h *LoopHandler) Execute(ctx context.Context, _ *models.Workflow, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	started := time.Now()

	cfg, err := ParseLoopConfig(node.Config)
	if err != nil {
		return nil, err
	}

	body := configString(node.Config, "body")

	result, err := h.evaluator.RunLoop(ctx, *cfg, execCtx, func(ctx context.Context, iteration int, item any) (any, error) {
		if body == "" {
			return map[string]any{"index": iteration, "item": item}, nil
		}

		return template.RenderWithContext(body, execCtx)
	})
	if err != nil {
		return nil, err
	}

	return successResult(node.ID, started, map[string]any{
		"iterations":    result.Iterations,
		"results":       result.Results,
		"limit_reached": result.LimitReached,
	}), nil
}

// ParseLoopConfig extracts and decodes the loop configuration of a loop node.
func ParseLoopConfig(config map[string]any) (*models.LoopConfig, error) {
	raw, ok := config["loop"]
	if !ok {
		return nil, errors.New("loop node missing required 'loop' configuration")
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid loop configuration: %w", err)
	}

	var cfg models.LoopConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid loop configuration: %w", err)
	}

	if cfg.Type == "" {
		return nil, errors.New("loop configuration missing 'type'")
	}

	return &cfg, nil
}
