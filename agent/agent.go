// Package agent runs one retrieval query as an iterative tool-calling
// loop: each turn sends the accumulated history to the completion
// provider, executes the tool calls it answers with, and appends the
// results, until the model calls finish or the iteration governor
// forces it to.
//
// Information Hiding:
// - Retry and backoff policy hidden
// - Conversation history management hidden
// - Capability degradation state hidden
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"foray/config"
	"foray/llm"
	"foray/model"
	"foray/selection"
	"foray/tools"
)

const (
	backoffInitial = time.Second
	backoffCap     = 8 * time.Second
	// maxEmptyRetries bounds corrective "you must call a tool" retries
	// per run.
	maxEmptyRetries = 2
)

// Progress receives one note per observable step of a run. A nil
// Progress keeps the agent silent; library code never prints.
type Progress func(iteration int, note string)

// Agent executes one query against the repository's tool surface.
// Instances are single-use: one Run per Agent.
type Agent struct {
	provider llm.Provider
	registry *tools.Registry
	executor *tools.Executor
	defs     []llm.ToolDefinition
	cfg      config.AgentConfig
	progress Progress
}

// New creates an agent over the given provider and tool surface.
// Zero or inconsistent loop limits fall back to the defaults.
func New(provider llm.Provider, registry *tools.Registry, executor *tools.Executor, cfg config.AgentConfig) *Agent {
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 12
	}
	if cfg.SoftIterations < 1 || cfg.SoftIterations > cfg.MaxIterations {
		cfg.SoftIterations = cfg.MaxIterations
	}
	if cfg.RetryWindow <= 0 {
		cfg.RetryWindow = 30 * time.Second
	}
	return &Agent{
		provider: provider,
		registry: registry,
		executor: executor,
		defs:     registry.Definitions(),
		cfg:      cfg,
	}
}

// WithProgress sets the progress callback.
func (a *Agent) WithProgress(fn Progress) *Agent {
	a.progress = fn
	return a
}

// Run executes the query to a terminal state. seedTree is the
// relevance scanner's ranked file tree, embedded in the first message;
// empty is fine. Run always returns a result: a failed run carries its
// partial state with Status error.
func (a *Agent) Run(ctx context.Context, query model.Query, seedTree string) model.AgentResult {
	state := model.AgentState{
		Query:     query,
		Status:    model.StatusRunning,
		StartedAt: time.Now(),
	}
	messages := []llm.ChatMessage{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(taskPrompt(query, seedTree, a.cfg.MaxIterations)),
	}
	caps := &capabilities{}
	emptyRetries := 0
	nudged := false

	for state.Iterations < a.cfg.MaxIterations {
		resp, err := a.complete(ctx, &state, messages, "")
		if err != nil {
			return a.fail(&state, err)
		}

		if finish := findFinish(resp.ToolCalls); finish != nil {
			return a.finish(&state, *finish)
		}

		if len(resp.ToolCalls) == 0 {
			if emptyRetries >= maxEmptyRetries {
				return a.fail(&state, errors.New("no tool calls after retries"))
			}
			emptyRetries++
			if resp.Content != "" {
				messages = append(messages, llm.AssistantMessage(resp.Content))
			}
			messages = append(messages, llm.UserMessage(noToolsNudge))
			a.report(&state, "no tool calls, nudging")
			continue
		}

		messages = append(messages, llm.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		results, err := a.runTools(ctx, resp.ToolCalls, &state, caps)
		if err != nil {
			return a.fail(&state, err)
		}
		messages = append(messages, results...)

		state.Iterations++
		a.report(&state, "tools: "+callNames(resp.ToolCalls))

		if !nudged && state.Iterations >= a.cfg.SoftIterations {
			messages = append(messages, llm.UserMessage(wrapUpNudge))
			nudged = true
			a.report(&state, "nudged to wrap up")
		}
	}

	// Hard cap. One more completion with tool choice constrained to
	// finish, under its own retry window.
	final := append(messages, llm.UserMessage(forcedFinishPrompt))
	resp, err := a.complete(ctx, &state, final, tools.FinishToolName)
	if err != nil {
		return a.fail(&state, fmt.Errorf("forced finish: %w", err))
	}
	if finish := findFinish(resp.ToolCalls); finish != nil {
		return a.finish(&state, *finish)
	}
	return a.fail(&state, errors.New("no finish call at iteration limit"))
}

// complete calls the provider, retrying transient failures (thrown or
// signaled in-band through the stop reason) with exponential backoff
// inside one wall-clock window. Usage is accounted on every attempt,
// failed ones included.
func (a *Agent) complete(ctx context.Context, state *model.AgentState, messages []llm.ChatMessage, forceTool string) (llm.LLMResponse, error) {
	deadline := time.Now().Add(a.cfg.RetryWindow)
	backoff := backoffInitial
	for {
		resp, err := a.provider.ChatWithTools(ctx, messages, a.defs, forceTool)
		addUsage(state, resp.Usage)
		switch {
		case err == nil && !resp.StopReason.Failed():
			return resp, nil
		case err != nil && !llm.IsTransientError(err):
			return llm.LLMResponse{}, fmt.Errorf("completion failed: %w", err)
		}
		if err == nil {
			err = fmt.Errorf("provider signaled stop reason %q", resp.StopReason)
		}
		if time.Now().Add(backoff).After(deadline) {
			return llm.LLMResponse{}, fmt.Errorf("transient failures exhausted the %s retry window: %w", a.cfg.RetryWindow, err)
		}
		a.report(state, fmt.Sprintf("transient completion failure, retrying in %s: %v", backoff, err))
		select {
		case <-ctx.Done():
			return llm.LLMResponse{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}
}

// runTools executes all calls of one turn concurrently and returns the
// tool result messages in call order. Same-turn calls cannot depend on
// each other's results, so the fan-out is safe. The only error is
// parent context cancellation.
func (a *Agent) runTools(ctx context.Context, calls []llm.ToolCall, state *model.AgentState, caps *capabilities) ([]llm.ChatMessage, error) {
	outputs := make([]string, len(calls))
	logs := make([]model.ToolCall, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			out, entry, err := a.runTool(gctx, call, caps)
			if err != nil {
				return err
			}
			outputs[i] = out
			logs[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	state.ToolCalls = append(state.ToolCalls, logs...)
	results := make([]llm.ChatMessage, len(calls))
	for i, call := range calls {
		results[i] = llm.ToolResultMessage(call.ID, outputs[i])
	}
	return results, nil
}

// runTool executes one call. Failures are folded into the returned
// string so the model can correct course; the error return is reserved
// for context cancellation.
func (a *Agent) runTool(ctx context.Context, call llm.ToolCall, caps *capabilities) (string, model.ToolCall, error) {
	entry := model.ToolCall{Name: call.Name, Arguments: string(call.Arguments)}

	if caps.off(call.Name) {
		return fmt.Sprintf("[%s is unavailable in this environment]", call.Name), entry, nil
	}
	tool, ok := a.registry.Get(call.Name)
	if !ok {
		return fmt.Sprintf("[unknown tool %q]", call.Name), entry, nil
	}

	start := time.Now()
	result, err := a.executor.Execute(ctx, tool, call.Arguments)
	entry.DurationMs = uint64(time.Since(start).Milliseconds())
	if err != nil {
		return "", entry, err
	}
	if result.Success() {
		return result.Output, entry, nil
	}
	if tools.Unavailable(result) {
		// First unavailable failure turns the capability off for the
		// rest of the run; this result is the one notification.
		caps.markOff(call.Name)
		return fmt.Sprintf("[%s is unavailable in this environment: %v. Do not call it again.]", call.Name, result.Error), entry, nil
	}
	return fmt.Sprintf("[tool error: %v]", result.Error), entry, nil
}

func (a *Agent) finish(state *model.AgentState, call llm.ToolCall) model.AgentResult {
	summary, selections, notFound := selection.ParseFinish(call.Arguments)
	state.ToolCalls = append(state.ToolCalls, model.ToolCall{
		Name:      call.Name,
		Arguments: string(call.Arguments),
	})
	state.Status = model.StatusDone
	state.FinishedAt = time.Now()
	a.report(state, fmt.Sprintf("finished with %d files", len(selections)))
	return model.AgentResult{
		Summary:    summary,
		Selections: selections,
		NotFound:   notFound,
		State:      *state,
	}
}

func (a *Agent) fail(state *model.AgentState, err error) model.AgentResult {
	state.Status = model.StatusError
	state.Error = err.Error()
	state.FinishedAt = time.Now()
	a.report(state, "failed: "+err.Error())
	return model.AgentResult{State: *state}
}

func (a *Agent) report(state *model.AgentState, note string) {
	if a.progress == nil {
		return
	}
	a.progress(state.Iterations, note)
}

func addUsage(state *model.AgentState, usage *llm.TokenUsage) {
	if usage == nil {
		return
	}
	state.Usage.Add(model.UsageStats{
		InputTokens:      int(usage.PromptTokens),
		OutputTokens:     int(usage.CompletionTokens),
		CacheReadTokens:  int(usage.CacheReadTokens),
		CacheWriteTokens: int(usage.CacheWriteTokens),
		Cost:             usage.Cost,
	})
}

// findFinish picks the finish call out of a turn's calls. A finish
// issued alongside other calls wins; the others are skipped, since the
// run is over.
func findFinish(calls []llm.ToolCall) *llm.ToolCall {
	for i := range calls {
		if calls[i].Name == tools.FinishToolName {
			return &calls[i]
		}
	}
	return nil
}

func callNames(calls []llm.ToolCall) string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

// capabilities tracks which degradable tools have reported themselves
// unavailable. Shared across one turn's concurrent calls.
type capabilities struct {
	mu         sync.Mutex
	symbolsOff bool
	refsOff    bool
}

func (c *capabilities) off(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch name {
	case tools.SymbolLookupToolName:
		return c.symbolsOff
	case tools.ReferenceLookupToolName:
		return c.refsOff
	}
	return false
}

func (c *capabilities) markOff(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch name {
	case tools.SymbolLookupToolName:
		c.symbolsOff = true
	case tools.ReferenceLookupToolName:
		c.refsOff = true
	}
}
