// Command execution for CLI commands.
//
// Information Hiding:
// - Provider and settings construction hidden
// - Pipeline wiring hidden
// - Output formatting hidden

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"foray/config"
	"foray/llm"
	"foray/model"
	"foray/orchestration"
	"foray/repo"
	"foray/scanner"
	"foray/search"
	"foray/storage"
	"foray/symbols"
	"foray/tools"
)

// Options holds CLI execution options.
type Options struct {
	Provider  string
	Root      string
	Verbose   bool
	JSON      bool
	TracePath string
}

// DefaultProvider returns the provider used when no --provider flag is
// given: FORAY_PROVIDER from the environment, falling back to anthropic.
func DefaultProvider() string {
	if p := os.Getenv("FORAY_PROVIDER"); p != "" {
		return p
	}
	return "anthropic"
}

// Query runs the retrieval pipeline for one or more queries and prints
// the packed context artifact on stdout. Hints attach to the first
// query only; additional queries run with their text alone.
func Query(ctx context.Context, queryTexts, hints []string, opts Options) error {
	provider, settings, err := createProvider(opts.Provider)
	if err != nil {
		return err
	}

	queries := make([]model.Query, 0, len(queryTexts))
	for i, text := range queryTexts {
		q := model.Query{Text: text}
		if i == 0 {
			q.Hints = hints
		}
		queries = append(queries, q)
	}

	orch := orchestration.New(opts.Root, provider, settings)
	if opts.Verbose {
		orch = orch.WithProgress(printProgress)
	}

	resp := orch.Retrieve(ctx, queries)

	// Fatal runs are recorded too so aborted retrievals stay inspectable.
	if opts.TracePath != "" {
		recordTrace(ctx, opts, provider, resp)
	}

	if resp.Failed() {
		return fmt.Errorf("retrieval failed: %s", resp.Fatal)
	}

	if opts.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Output)
	}

	fmt.Print(resp.Output.Text)

	if opts.Verbose {
		usage := resp.Usage()
		fmt.Fprintf(os.Stderr, "\ntokens: %d in, %d out ($%.4f) in %s\n",
			usage.InputTokens, usage.OutputTokens, usage.Cost,
			resp.Elapsed.Round(time.Millisecond))
	}
	return nil
}

// Scan previews the relevance scan for a query without any model calls.
func Scan(ctx context.Context, queryText string, hints []string, opts Options) error {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return err
	}

	reader := repo.NewReader(opts.Root)
	runner := search.NewRunner(opts.Root, uint64(settings.Agent.ToolTimeout/time.Second))
	result := scanner.New(runner, reader, settings.Scan).Scan(ctx, queryText, hints)

	if len(result.Patterns) > 0 {
		fmt.Printf("patterns: %s\n\n", strings.Join(result.Patterns, " "))
	}
	fmt.Println(result.Tree)
	if opts.Verbose {
		fmt.Fprintf(os.Stderr, "\n%d files ranked\n", len(result.Files))
	}
	return nil
}

// ListTools prints the fixed tool surface retrieval agents operate with.
func ListTools(verbose bool) error {
	// Listing only needs the schemas, so the toolset is built against
	// the current directory and never executed.
	reader := repo.NewReader(".")
	runner := search.NewRunner(".", 0)
	registry, err := tools.Toolset(runner, reader, symbols.NewService(reader, runner))
	if err != nil {
		return err
	}

	fmt.Println("Available tools:")
	fmt.Println()

	for _, meta := range registry.List() {
		fmt.Printf("  %s\n", meta.Name)
		fmt.Printf("    %s\n", truncateString(meta.Description, 120))

		if verbose && len(meta.Parameters) > 0 {
			fmt.Println("    Parameters:")
			for _, param := range meta.Parameters {
				req := ""
				if param.Required {
					req = "*"
				}
				fmt.Printf("      %s%s: %s - %s\n", param.Name, req, param.ParamType, param.Description)
			}
		}
		fmt.Println()
	}
	return nil
}

// TraceList prints recent recorded runs, newest first.
func TraceList(ctx context.Context, dbPath string, limit int) error {
	store, err := storage.OpenTrace(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	for _, run := range runs {
		status := "ok"
		if run.Fatal != "" {
			status = "fatal"
		}
		fmt.Printf("%s  %s  %-9s  %d queries  %d surfaced  %d omitted  %6d tokens  $%.4f  %s\n",
			run.ID[:8], run.CreatedAt, run.Provider,
			run.Queries, run.Surfaced, run.Omitted,
			run.EstimatedTokens, run.Cost, status)
	}
	return nil
}

// TraceShow prints one recorded run with per-agent detail. The run id
// may be any unique prefix of the full id.
func TraceShow(ctx context.Context, dbPath, runID string) error {
	store, err := storage.OpenTrace(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	run, agents, err := store.Run(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (%s)\n", run.ID, run.CreatedAt)
	fmt.Printf("  root:     %s\n", run.Root)
	fmt.Printf("  provider: %s (%s)\n", run.Provider, run.Model)
	if run.Fatal != "" {
		fmt.Printf("  fatal:    %s\n", run.Fatal)
	}
	fmt.Printf("  budget:   soft %d, hard %d\n", run.BudgetSoft, run.BudgetHard)
	fmt.Printf("  result:   %d surfaced, %d omitted, ~%d tokens\n",
		run.Surfaced, run.Omitted, run.EstimatedTokens)
	fmt.Printf("  usage:    %d in, %d out ($%.4f) in %dms\n",
		run.InputTokens, run.OutputTokens, run.Cost, run.ElapsedMs)

	for _, a := range agents {
		fmt.Printf("\n[q%d] %s\n", a.QueryIndex, truncateString(a.Query, 100))
		fmt.Printf("  status: %s, %d iterations, %d selections\n", a.Status, a.Iterations, a.Selections)
		if a.Error != "" {
			fmt.Printf("  error: %s\n", a.Error)
		}
		if a.Summary != "" {
			fmt.Printf("  summary: %s\n", truncateString(a.Summary, 200))
		}
		for _, c := range a.ToolCalls {
			fmt.Printf("    %s(%s) %dms\n", c.Tool, truncateString(c.Arguments, 80), c.DurationMs)
		}
	}
	return nil
}

// printProgress renders pipeline notes on stderr. Run-level notes use
// a negative query index.
func printProgress(query int, note string) {
	if query < 0 {
		fmt.Fprintf(os.Stderr, "[run] %s\n", note)
		return
	}
	fmt.Fprintf(os.Stderr, "[q%d] %s\n", query, note)
}

// recordTrace appends the run to the trace database. Recording is best
// effort; a broken trace log never fails the retrieval itself.
func recordTrace(ctx context.Context, opts Options, provider llm.Provider, resp orchestration.Response) {
	store, err := storage.OpenTrace(opts.TracePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: trace disabled: %v\n", err)
		return
	}
	defer store.Close()

	id, err := store.Record(ctx, storage.RunRecord{
		Root:     opts.Root,
		Provider: provider.Name(),
		Model:    provider.Model(),
		Fatal:    resp.Fatal,
		Elapsed:  resp.Elapsed,
		Output:   resp.Output,
		Agents:   resp.Agents,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record trace: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Recorded run %s\n", id)
}

// createProvider creates an LLM provider and its settings from a
// provider name.
func createProvider(providerName string) (llm.Provider, config.Settings, error) {
	if providerName == "" {
		return nil, config.Settings{}, fmt.Errorf("--provider is required for this command")
	}

	providerType, err := llm.ParseProviderType(providerName)
	if err != nil {
		return nil, config.Settings{}, err
	}

	settings, err := config.New(providerName)
	if err != nil {
		return nil, config.Settings{}, err
	}

	apiKey, err := config.APIKeyFor(providerName)
	if err != nil {
		return nil, config.Settings{}, err
	}

	provider, err := providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
	if err != nil {
		return nil, config.Settings{}, err
	}
	return provider, settings, nil
}

// truncateString truncates a string to maxLen runes, adding ellipsis if needed.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
