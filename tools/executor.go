// Tool executor with per-call timeout and panic isolation.
//
// Tool failures are routed back to the calling agent inside the
// ToolResult so the model can correct course; only parent context
// cancellation surfaces as an error.

package tools

import (
	"context"
	"encoding/json"
	"time"
)

const defaultTimeoutSecs = 20

// Executor runs tool calls under a per-call timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an executor. A zero timeout selects the default.
func NewExecutor(timeoutSecs uint64) *Executor {
	if timeoutSecs == 0 {
		timeoutSecs = defaultTimeoutSecs
	}
	return &Executor{timeout: time.Duration(timeoutSecs) * time.Second}
}

// Execute validates and runs one tool call. Failures come back inside
// the ToolResult; the error return is reserved for parent context
// cancellation, which must abort the caller's loop instead of being
// routed back to the model.
func (e *Executor) Execute(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return ToolResult{}, err
	}
	if err := tool.Validate(args); err != nil {
		return FailureResultf("validation failed: %v", err), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result := runTool(callCtx, tool, args)

	if err := ctx.Err(); err != nil {
		return ToolResult{}, err
	}
	if result.Error != nil && callCtx.Err() == context.DeadlineExceeded {
		return FailureResultf("tool '%s' timed out after %s",
			tool.Metadata().Name, e.timeout), nil
	}
	return result, nil
}

// runTool isolates tool panics into ordinary failures.
func runTool(ctx context.Context, tool Tool, args json.RawMessage) (result ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			result = FailureResultf("tool '%s' panicked: %v", tool.Metadata().Name, r)
		}
	}()

	res, err := tool.Execute(ctx, args)
	if err != nil {
		return FailureResult(err)
	}
	return res
}
