package config

import (
	"fmt"
	"math"
	"time"

	"github.com/dop251/goja"

	"github.com/me/cpusim/internal/sim"
)

// exprTimeout bounds the evaluation of a timeslice expression for one level.
const exprTimeout = time.Second

// EvalTimesliceExpr evaluates a JavaScript expression once per priority
// level with the variable level bound to 0..7, e.g. "Math.pow(2, level)"
// or "level < 4 ? 2 : 8". Every result must be an integer of at least 1.
func EvalTimesliceExpr(expr string) (sim.Quanta, error) {
	var q sim.Quanta

	prog, err := goja.Compile("timeslice_expr", expr, true)
	if err != nil {
		return q, fmt.Errorf("compile timeslice expression: %w", err)
	}

	vm := goja.New()
	for level := range q {
		if err := vm.Set("level", level); err != nil {
			return q, fmt.Errorf("set level: %w", err)
		}
		v, err := runWithTimeout(vm, prog)
		if err != nil {
			return q, fmt.Errorf("level %d: %w", level, err)
		}
		n, err := toTicks(v)
		if err != nil {
			return q, fmt.Errorf("level %d: %w", level, err)
		}
		q[level] = n
	}
	return q, nil
}

func runWithTimeout(vm *goja.Runtime, prog *goja.Program) (goja.Value, error) {
	timer := time.AfterFunc(exprTimeout, func() {
		vm.Interrupt("timeslice expression timed out")
	})
	v, err := vm.RunProgram(prog)
	timer.Stop()
	vm.ClearInterrupt()
	return v, err
}

func toTicks(v goja.Value) (int64, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, fmt.Errorf("expression produced no value")
	}
	var n int64
	switch x := v.Export().(type) {
	case int64:
		n = x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) {
			return 0, fmt.Errorf("timeslice must be an integer, got %v", x)
		}
		n = int64(x)
	default:
		return 0, fmt.Errorf("timeslice must be a number, got %T", x)
	}
	if n < 1 {
		return 0, fmt.Errorf("timeslice must be at least 1, got %d", n)
	}
	return n, nil
}
