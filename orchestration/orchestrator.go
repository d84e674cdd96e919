// Orchestrator - parallel retrieval runs.
//
// Fans one batch of queries out to independent query agents, then
// funnels their selections through merge, resolve, pack and assemble.
// A failed or panicking agent contributes a partial result; the batch
// always reaches assembly unless setup itself fails.
//
// Information Hiding:
// - Agent fan-out and join hidden
// - Capability-context construction hidden
// - Panic containment hidden

package orchestration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"foray/agent"
	"foray/config"
	"foray/llm"
	"foray/model"
	"foray/output"
	"foray/packer"
	"foray/repo"
	"foray/resolve"
	"foray/scanner"
	"foray/search"
	"foray/selection"
	"foray/symbols"
	"foray/tools"
)

// Progress receives pipeline notes as a run advances. query is the
// zero-based query index, or -1 for notes spanning the whole run.
type Progress func(query int, note string)

// Orchestrator runs retrieval batches against one repository root.
// Safe for concurrent use; each Retrieve call is independent.
type Orchestrator struct {
	root     string
	provider llm.Provider
	settings config.Settings
	cache    *symbols.Cache
	progress Progress
}

// New creates an orchestrator for the repository at root.
func New(root string, provider llm.Provider, settings config.Settings) *Orchestrator {
	return &Orchestrator{
		root:     root,
		provider: provider,
		settings: settings,
		cache:    symbols.NewCache(),
	}
}

// WithSymbolCache shares a warm capability cache across orchestrators
// pointed at the same roots.
func (o *Orchestrator) WithSymbolCache(cache *symbols.Cache) *Orchestrator {
	if cache != nil {
		o.cache = cache
	}
	return o
}

// WithProgress installs a progress callback.
func (o *Orchestrator) WithProgress(fn Progress) *Orchestrator {
	o.progress = fn
	return o
}

// Retrieve runs the full pipeline for a batch of queries. It never
// panics; any escaped failure comes back as a fatal response.
func (o *Orchestrator) Retrieve(ctx context.Context, queries []model.Query) (resp Response) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			resp = fatalResponse(fmt.Sprintf("retrieval panicked: %v", r), time.Since(started))
		}
	}()

	queries = compactQueries(queries)
	if len(queries) == 0 {
		return fatalResponse("no non-empty queries", time.Since(started))
	}

	timeoutSecs := uint64(o.settings.Agent.ToolTimeout / time.Second)
	reader := repo.NewReader(o.root)
	runner := search.NewRunner(o.root, timeoutSecs)
	service := o.cache.For(reader, runner)

	registry, err := tools.Toolset(runner, reader, service)
	if err != nil {
		return fatalResponse(fmt.Sprintf("tool registry: %v", err), time.Since(started))
	}
	executor := tools.NewExecutor(timeoutSecs)
	scan := scanner.New(runner, reader, o.settings.Scan)

	results := o.runAgents(ctx, queries, scan, registry, executor)

	byQuery := make([][]model.FileSelection, len(results))
	for i, res := range results {
		byQuery[i] = res.Selections
	}
	merged := selection.Merge(byQuery)
	o.report(-1, fmt.Sprintf("merged selections cover %d files", len(merged)))

	chunks, unreadable := resolve.New(reader, service).Resolve(ctx, merged)

	budget := packer.BudgetFor(len(queries), o.settings.Budget)
	packed := packer.Pack(chunks, budget)
	o.report(-1, fmt.Sprintf("packed %d of %d chunks, %d of %d tokens",
		len(packed.Included), len(chunks), packed.UsedTokens, budget.Hard))

	return Response{
		Type:    ResponseSuccess,
		Output:  output.Assemble(results, packed, unreadable),
		Agents:  results,
		Elapsed: time.Since(started),
	}
}

// runAgents executes one agent per query concurrently. A panicking
// agent yields an error result for its query; the rest keep running.
func (o *Orchestrator) runAgents(ctx context.Context, queries []model.Query, scan *scanner.Scanner, registry *tools.Registry, executor *tools.Executor) []model.AgentResult {
	results := make([]model.AgentResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = panicResult(query, r)
					o.report(i, fmt.Sprintf("agent panicked: %v", r))
				}
			}()

			seed := scan.Scan(gctx, query.Text, query.Hints)
			o.report(i, fmt.Sprintf("scan seeded %d files", len(seed.Files)))

			a := agent.New(o.provider, registry, executor, o.settings.Agent).
				WithProgress(func(iteration int, note string) {
					o.report(i, fmt.Sprintf("iteration %d: %s", iteration, note))
				})
			results[i] = a.Run(gctx, query, seed.Tree)
			return nil
		})
	}
	_ = g.Wait() // agents report failure in-band, never as an error

	return results
}

func (o *Orchestrator) report(query int, note string) {
	if o.progress != nil {
		o.progress(query, note)
	}
}

// compactQueries trims query text and drops empty entries, keeping
// the original order.
func compactQueries(queries []model.Query) []model.Query {
	kept := make([]model.Query, 0, len(queries))
	for _, q := range queries {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			continue
		}
		kept = append(kept, q)
	}
	return kept
}

// panicResult converts a recovered agent panic into the same terminal
// shape an ordinary agent failure produces.
func panicResult(query model.Query, recovered interface{}) model.AgentResult {
	now := time.Now()
	return model.AgentResult{
		State: model.AgentState{
			Query:      query,
			Status:     model.StatusError,
			Error:      fmt.Sprintf("agent panicked: %v", recovered),
			StartedAt:  now,
			FinishedAt: now,
		},
	}
}
