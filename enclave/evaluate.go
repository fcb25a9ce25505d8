package enclave

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sage-x-project/soft-enclave/evaluator"
)

// ErrCodeTooLarge is returned by the evaluate handler before the
// evaluator is ever invoked, satisfying the MAX_CODE cap.
var ErrCodeTooLarge = errors.New("enclave: source exceeds max code size")

// EvaluateOperation builds the default "evaluate" table entry, wired to
// ev. maxCode enforces spec.md's MAX_CODE cap on the source string before
// any sandboxed execution happens. A request with no deadline_ms passes
// the zero time.Time through, letting ev apply its own configured
// default deadline.
func EvaluateOperation(ev evaluator.Evaluator, maxCode int) Operation {
	return Operation{
		Name:   "evaluate",
		AADIn:  AADEvaluateIn,
		AADOut: AADEvaluateOut,
		Handler: func(ctx context.Context, body json.RawMessage) (any, error) {
			var req EvaluateRequest
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, err
			}
			if len(req.Source) > maxCode {
				return nil, ErrCodeTooLarge
			}

			var deadline time.Time
			if req.DeadlineMS > 0 {
				deadline = time.Now().Add(time.Duration(req.DeadlineMS) * time.Millisecond)
			}

			value, err := ev.Evaluate(ctx, req.Source, req.Bindings, deadline)
			if err != nil {
				return nil, err
			}
			return EvaluateResult{Value: value}, nil
		},
	}
}
