package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type stubTool struct {
	BaseTool
	name string
	run  func(ctx context.Context, args json.RawMessage) (ToolResult, error)
}

func (s *stubTool) Metadata() ToolMetadata {
	return ToolMetadata{Name: s.name, Description: "stub"}
}

func (s *stubTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	return s.run(ctx, args)
}

func TestExecutorSuccess(t *testing.T) {
	tool := &stubTool{name: "ok", run: func(context.Context, json.RawMessage) (ToolResult, error) {
		return SuccessResult("done"), nil
	}}

	result, err := NewExecutor(5).Execute(context.Background(), tool, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() || result.Output != "done" {
		t.Errorf("expected success with output done, got %+v", result)
	}
}

func TestExecutorToolErrorBecomesResult(t *testing.T) {
	tool := &stubTool{name: "bad", run: func(context.Context, json.RawMessage) (ToolResult, error) {
		return ToolResult{}, errors.New("backend exploded")
	}}

	result, err := NewExecutor(5).Execute(context.Background(), tool, nil)
	if err != nil {
		t.Fatalf("expected tool error inside result, got %v", err)
	}
	if result.Success() {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(result.Error.Error(), "backend exploded") {
		t.Errorf("expected original error preserved, got %v", result.Error)
	}
}

func TestExecutorRecoversPanic(t *testing.T) {
	tool := &stubTool{name: "boom", run: func(context.Context, json.RawMessage) (ToolResult, error) {
		panic("unexpected state")
	}}

	result, err := NewExecutor(5).Execute(context.Background(), tool, nil)
	if err != nil {
		t.Fatalf("expected panic inside result, got %v", err)
	}
	if result.Success() || !strings.Contains(result.Error.Error(), "panicked") {
		t.Errorf("expected panic failure, got %+v", result)
	}
}

func TestExecutorTimeout(t *testing.T) {
	tool := &stubTool{name: "slow", run: func(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
		<-ctx.Done()
		return ToolResult{}, ctx.Err()
	}}

	result, err := NewExecutor(1).Execute(context.Background(), tool, nil)
	if err != nil {
		t.Fatalf("expected timeout inside result, got %v", err)
	}
	if result.Success() || !strings.Contains(result.Error.Error(), "timed out") {
		t.Errorf("expected timeout failure, got %+v", result)
	}
}

func TestExecutorParentCancellationAborts(t *testing.T) {
	tool := &stubTool{name: "never", run: func(context.Context, json.RawMessage) (ToolResult, error) {
		return SuccessResult("should not run"), nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecutor(5).Execute(ctx, tool, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExecutorValidationFailureInline(t *testing.T) {
	tool := &validatingStub{}

	result, err := NewExecutor(5).Execute(context.Background(), tool, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("expected validation failure inside result, got %v", err)
	}
	if result.Success() || !strings.Contains(result.Error.Error(), "validation failed") {
		t.Errorf("expected validation failure, got %+v", result)
	}
}

type validatingStub struct{}

func (v *validatingStub) Metadata() ToolMetadata {
	return ToolMetadata{Name: "strict", Description: "stub"}
}

func (v *validatingStub) Validate(json.RawMessage) error {
	return fmt.Errorf("field missing")
}

func (v *validatingStub) Execute(context.Context, json.RawMessage) (ToolResult, error) {
	return SuccessResult("should not run"), nil
}
