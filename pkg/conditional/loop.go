package conditional

import (
	"context"
	"fmt"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// DefaultMaxIterations caps loops that do not set their own ceiling. It exists
// to stop a mis-authored while(true) from spinning forever.
const DefaultMaxIterations = 1000

// LoopBody executes one iteration's body and returns its result.
type LoopBody func(ctx context.Context, iteration int, item any) (any, error)

// LoopResult summarizes a finished loop.
type LoopResult struct {
	Iterations   int   `json:"iterations"`
	Results      []any `json:"results"`
	LimitReached bool  `json:"limit_reached"`
}

// RunLoop drives a loop node. For every kind the continuation predicate is
// checked before each iteration: for-each compares the index to the collection
// length, for compares against EndIndex, while and do-while re-evaluate the
// condition expression (do-while skips the check on the first pass). Break
// conditions are tested before each body; any true break halts the loop.
// Continue conditions skip the body, advance the loop variable and re-test the
// head. MaxIterations is an unconditional ceiling: exceeding it logs a warning
// and stops the loop without raising an error.
func (e *Evaluator) RunLoop(ctx context.Context, cfg models.LoopConfig, execCtx *models.ExecutionContext, body LoopBody) (*LoopResult, error) {
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	step := cfg.Step
	if step == 0 {
		step = 1
	}

	var collection []any
	if cfg.Type == models.LoopTypeForEach {
		collection = e.resolveCollection(cfg.Collection, execCtx)
	}

	// Scoped bindings: remember whatever item/index held before the loop so the
	// bindings can be restored afterward.
	prevItem, hadItem := execCtx.Variable("item")
	prevIndex, hadIndex := execCtx.Variable("index")

	defer func() {
		restoreBinding(execCtx, "item", prevItem, hadItem)
		restoreBinding(execCtx, "index", prevIndex, hadIndex)
	}()

	result := &LoopResult{Results: make([]any, 0, len(collection))}
	index := 0
	counter := cfg.StartIndex

	for {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("loop cancelled after %d iterations: %w", result.Iterations, err)
		}

		if result.Iterations >= maxIterations {
			e.logger.Warn("loop reached max iterations, stopping",
				"max_iterations", maxIterations, "type", cfg.Type)
			execCtx.AppendLog(models.LogLevelWarn,
				fmt.Sprintf("loop reached max iterations (%d), stopping", maxIterations), "")

			result.LimitReached = true

			return result, nil
		}

		var item any

		// Head test, per loop kind. do-while runs its first body unconditionally.
		switch cfg.Type {
		case models.LoopTypeForEach:
			if index >= len(collection) {
				return result, nil
			}

			item = collection[index]
		case models.LoopTypeFor:
			if (step > 0 && counter >= cfg.EndIndex) || (step < 0 && counter <= cfg.EndIndex) {
				return result, nil
			}

			item = counter
		case models.LoopTypeWhile:
			if !e.continuationHolds(cfg, execCtx) {
				return result, nil
			}
		case models.LoopTypeDoWhile:
			if result.Iterations > 0 && !e.continuationHolds(cfg, execCtx) {
				return result, nil
			}
		default:
			return result, fmt.Errorf("unknown loop type %q", cfg.Type)
		}

		execCtx.SetVariable("index", index)
		execCtx.SetVariable("item", item)

		if e.anyConditionTrue(cfg.BreakConditions, execCtx) {
			return result, nil
		}

		if e.anyConditionTrue(cfg.ContinueConditions, execCtx) {
			// Skip this iteration's body, advance, re-test the head.
			index++
			counter += step
			result.Iterations++

			continue
		}

		iterationResult, err := body(ctx, index, item)
		if err != nil {
			return result, fmt.Errorf("loop body failed at iteration %d: %w", index, err)
		}

		result.Results = append(result.Results, iterationResult)
		result.Iterations++
		index++
		counter += step
	}
}

func (e *Evaluator) continuationHolds(cfg models.LoopConfig, execCtx *models.ExecutionContext) bool {
	if cfg.Condition == nil {
		return false
	}

	return e.Evaluate(*cfg.Condition, execCtx.VariablesSnapshot())
}

func (e *Evaluator) anyConditionTrue(conditions []models.ConditionalExpression, execCtx *models.ExecutionContext) bool {
	for _, cond := range conditions {
		if e.Evaluate(cond, execCtx.VariablesSnapshot()) {
			return true
		}
	}

	return false
}

// resolveCollection resolves the for-each collection reference to a slice.
// Anything that is not a slice yields an empty collection and a warning.
func (e *Evaluator) resolveCollection(ref string, execCtx *models.ExecutionContext) []any {
	if ref == "" {
		return nil
	}

	value := ResolveOperand(ref, execCtx.VariablesSnapshot())

	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}

		return items
	default:
		e.logger.Warn("for-each collection is not iterable", "ref", ref, "type", fmt.Sprintf("%T", value))

		return nil
	}
}

func restoreBinding(execCtx *models.ExecutionContext, key string, prev any, had bool) {
	if had {
		execCtx.SetVariable(key, prev)

		return
	}

	execCtx.SetVariable(key, nil)
}
