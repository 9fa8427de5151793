package conditional

import (
	"time"

	"github.com/dop251/goja"
)

// scriptTimeout bounds a single script condition evaluation.
const scriptTimeout = time.Second

// evaluateScript runs an inline script body in a fresh goja VM with the
// execution variables bound under both names, `variables` and `context`. The
// VM has no host access: scripts see only the bindings handed to them. A
// script must produce a boolean; anything else, any thrown value, and any
// timeout evaluate to false. Script conditions never throw outward.
func (e *Evaluator) evaluateScript(body string, vars map[string]any) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("script condition panicked, evaluating to false", "panic", r)

			result = false
		}
	}()

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	if err := vm.Set("variables", vars); err != nil {
		e.logger.Warn("failed to bind variables into script VM", "error", err)

		return false
	}

	if err := vm.Set("context", vars); err != nil {
		e.logger.Warn("failed to bind context into script VM", "error", err)

		return false
	}

	timer := time.AfterFunc(scriptTimeout, func() {
		vm.Interrupt("script condition timed out")
	})
	defer timer.Stop()

	value, err := vm.RunString(body)
	if err != nil {
		e.logger.Warn("script condition failed, evaluating to false", "error", err)

		return false
	}

	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return false
	}

	boolean, ok := value.Export().(bool)
	if !ok {
		e.logger.Warn("script condition did not return a boolean, evaluating to false",
			"type", value.ExportType())

		return false
	}

	return boolean
}
