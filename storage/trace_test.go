package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"foray/model"
	"foray/output"
)

func sampleRecord() RunRecord {
	return RunRecord{
		Root:     "/repo",
		Provider: "anthropic",
		Model:    "claude-sonnet-4-20250514",
		Elapsed:  1500 * time.Millisecond,
		Output: output.Output{
			Text: "=== auth.go (lines 3-12) [high]\n",
			Metadata: output.Metadata{
				Queries:         2,
				Candidates:      3,
				Surfaced:        2,
				Omitted:         1,
				EstimatedTokens: 420,
				Budget:          model.Budget{Soft: 22000, Hard: 33000},
			},
		},
		Agents: []model.AgentResult{
			{
				Summary:    "auth flow found",
				Selections: []model.FileSelection{{File: "auth.go"}, {File: "session.go"}},
				State: model.AgentState{
					Query:      model.Query{Text: "where is auth"},
					Iterations: 2,
					Status:     model.StatusDone,
					Usage:      model.UsageStats{InputTokens: 300, OutputTokens: 40, Cost: 0.004},
					ToolCalls: []model.ToolCall{
						{Name: "search", Arguments: `{"pattern":"login"}`, DurationMs: 12},
						{Name: "read", Arguments: `{"path":"auth.go"}`, DurationMs: 3},
					},
				},
			},
			{
				State: model.AgentState{
					Query:  model.Query{Text: "rate limiting"},
					Status: model.StatusError,
					Error:  "no tool calls after retries",
					Usage:  model.UsageStats{InputTokens: 100, OutputTokens: 5, Cost: 0.001},
				},
			},
		},
	}
}

func TestTraceRecordAndShow(t *testing.T) {
	store, err := NewTraceInMemory()
	if err != nil {
		t.Fatalf("Failed to create trace store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	id, err := store.Record(ctx, sampleRecord())
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated run id")
	}

	run, agents, err := store.Run(ctx, id)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Provider != "anthropic" || run.Model != "claude-sonnet-4-20250514" {
		t.Errorf("provider/model = %s/%s", run.Provider, run.Model)
	}
	if run.Queries != 2 || run.Surfaced != 2 || run.Omitted != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/2/1", run.Queries, run.Surfaced, run.Omitted)
	}
	if run.BudgetSoft != 22000 || run.BudgetHard != 33000 {
		t.Errorf("budget = %d/%d, want 22000/33000", run.BudgetSoft, run.BudgetHard)
	}
	// Usage sums across agents, failed one included.
	if run.InputTokens != 400 || run.OutputTokens != 45 {
		t.Errorf("tokens = %d/%d, want 400/45", run.InputTokens, run.OutputTokens)
	}
	if run.ElapsedMs != 1500 {
		t.Errorf("elapsed = %dms, want 1500", run.ElapsedMs)
	}
	if run.OutputHash == "" || run.Fatal != "" {
		t.Errorf("hash = %q, fatal = %q", run.OutputHash, run.Fatal)
	}

	if len(agents) != 2 {
		t.Fatalf("agents = %d, want 2", len(agents))
	}
	first := agents[0]
	if first.Query != "where is auth" || first.Status != "done" || first.Selections != 2 {
		t.Errorf("agent 0 = %+v", first)
	}
	if len(first.ToolCalls) != 2 || first.ToolCalls[0].Tool != "search" || first.ToolCalls[1].Tool != "read" {
		t.Errorf("agent 0 tool calls = %+v, want search then read", first.ToolCalls)
	}
	second := agents[1]
	if second.Status != "error" || second.Error != "no tool calls after retries" {
		t.Errorf("agent 1 = %+v", second)
	}
	if len(second.ToolCalls) != 0 {
		t.Errorf("agent 1 tool calls = %+v, want none", second.ToolCalls)
	}
}

func TestTraceRunsListing(t *testing.T) {
	store, err := NewTraceInMemory()
	if err != nil {
		t.Fatalf("Failed to create trace store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	id1, err := store.Record(ctx, sampleRecord())
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	id2, err := store.Record(ctx, sampleRecord())
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	runs, err := store.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	seen := map[string]bool{runs[0].ID: true, runs[1].ID: true}
	if !seen[id1] || !seen[id2] {
		t.Errorf("listed ids %v do not cover recorded ids %s, %s", seen, id1, id2)
	}

	limited, err := store.Runs(ctx, 1)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited runs = %d, want 1", len(limited))
	}
}

func TestTraceRunPrefixLookup(t *testing.T) {
	store, err := NewTraceInMemory()
	if err != nil {
		t.Fatalf("Failed to create trace store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	id, err := store.Record(ctx, sampleRecord())
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	run, _, err := store.Run(ctx, id[:8])
	if err != nil {
		t.Fatalf("prefix lookup failed: %v", err)
	}
	if run.ID != id {
		t.Errorf("prefix lookup found %s, want %s", run.ID, id)
	}

	if _, _, err := store.Run(ctx, "zzzzzzzz"); err == nil {
		t.Error("expected error for unknown run id")
	} else if !strings.Contains(err.Error(), "no run matches") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTraceRecordFatalRun(t *testing.T) {
	store, err := NewTraceInMemory()
	if err != nil {
		t.Fatalf("Failed to create trace store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	id, err := store.Record(ctx, RunRecord{
		Root:     "/repo",
		Provider: "openai",
		Model:    "gpt-4o",
		Fatal:    "retrieval panicked: boom",
		Elapsed:  20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	run, agents, err := store.Run(ctx, id)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Fatal != "retrieval panicked: boom" {
		t.Errorf("fatal = %q", run.Fatal)
	}
	if len(agents) != 0 {
		t.Errorf("agents = %d, want none for a fatal run", len(agents))
	}
}
