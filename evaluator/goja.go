package evaluator

import (
	"context"
	"errors"
	"time"

	"github.com/dop251/goja"
)

// GojaEvaluator runs each source string in a fresh goja.Runtime, binding
// the given values as globals. A timer goroutine calls vm.Interrupt() at
// deadline, which goja's interpreter loop polls between operations — this
// is the cooperative interrupt check the evaluator interface requires.
//
// MaxSteps is accepted but not enforced: this goja build exposes no
// instruction counter, only the memory limit and the cooperative
// interrupt used for the deadline. A non-zero MaxSteps is recorded for
// future use, not applied.
type GojaEvaluator struct {
	defaultDeadline time.Duration
	maxMemoryBytes  int64
	maxSteps        int64
}

// NewGojaEvaluator returns the default JS sandbox evaluator, bounded by
// cfg. A zero-value Config falls back to a 5s default deadline and no
// memory limit.
func NewGojaEvaluator(cfg Config) *GojaEvaluator {
	deadline := cfg.DefaultDeadline
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	return &GojaEvaluator{
		defaultDeadline: deadline,
		maxMemoryBytes:  cfg.MaxMemoryBytes,
		maxSteps:        cfg.MaxSteps,
	}
}

func (e *GojaEvaluator) Evaluate(ctx context.Context, source string, bindings map[string]any, deadline time.Time) (any, error) {
	vm := goja.New()
	if e.maxMemoryBytes > 0 {
		vm.SetMemoryLimit(e.maxMemoryBytes)
	}
	for name, value := range bindings {
		if err := vm.Set(name, value); err != nil {
			return nil, err
		}
	}

	if deadline.IsZero() {
		deadline = time.Now().Add(e.defaultDeadline)
	}

	done := make(chan struct{})
	defer close(done)

	timer := time.AfterFunc(time.Until(deadline), func() {
		vm.Interrupt(ErrTimeout)
	})
	defer timer.Stop()

	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	value, err := vm.RunString(source)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if v, ok := interrupted.Value().(error); ok {
				return nil, v
			}
			return nil, ErrTimeout
		}
		return nil, err
	}
	return value.Export(), nil
}
