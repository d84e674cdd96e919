// Package storage provides the optional SQLite trace log.
//
// Runs are recorded after retrieval completes and read back only by
// the trace inspection commands; the retrieval path itself never
// touches storage.
//
// Information Hiding:
// - SQLite connection management hidden
// - Schema details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"foray/model"
	"foray/output"
)

// TraceStore records completed retrieval runs in a SQLite database.
type TraceStore struct {
	db *sql.DB
}

// OpenTrace opens or creates a trace database at the given path,
// creating parent directories if needed.
func OpenTrace(path string) (*TraceStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create trace directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}

	store := &TraceStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// NewTraceInMemory creates an in-memory trace store (useful for testing).
func NewTraceInMemory() (*TraceStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory trace store: %w", err)
	}

	store := &TraceStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *TraceStore) Close() error {
	return s.db.Close()
}

func (s *TraceStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			root TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			queries INTEGER NOT NULL,
			surfaced INTEGER NOT NULL,
			omitted INTEGER NOT NULL,
			estimated_tokens INTEGER NOT NULL,
			budget_soft INTEGER NOT NULL,
			budget_hard INTEGER NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			cost REAL NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			output_hash TEXT NOT NULL,
			fatal TEXT
		);

		CREATE TABLE IF NOT EXISTS agent_runs (
			run_id TEXT NOT NULL,
			query_index INTEGER NOT NULL,
			query TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			iterations INTEGER NOT NULL,
			summary TEXT NOT NULL,
			selections INTEGER NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			cost REAL NOT NULL,
			PRIMARY KEY (run_id, query_index),
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS tool_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			query_index INTEGER NOT NULL,
			call_index INTEGER NOT NULL,
			tool TEXT NOT NULL,
			arguments TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_tool_calls_run
		ON tool_calls(run_id, query_index, call_index);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RunRecord is one completed retrieval run ready for recording.
type RunRecord struct {
	Root     string
	Provider string
	Model    string
	Fatal    string
	Elapsed  time.Duration
	Output   output.Output
	Agents   []model.AgentResult
}

// Record writes one run with its agent rows and tool calls, returning
// the generated run id.
func (s *TraceStore) Record(ctx context.Context, rec RunRecord) (string, error) {
	runID := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	var usage model.UsageStats
	for _, res := range rec.Agents {
		usage.Add(res.State.Usage)
	}

	var fatal interface{}
	if rec.Fatal != "" {
		fatal = rec.Fatal
	}

	meta := rec.Output.Metadata
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, root, provider, model, queries, surfaced, omitted, estimated_tokens,
		 budget_soft, budget_hard, input_tokens, output_tokens, cost, elapsed_ms, output_hash, fatal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		rec.Root,
		rec.Provider,
		rec.Model,
		meta.Queries,
		meta.Surfaced,
		meta.Omitted,
		meta.EstimatedTokens,
		meta.Budget.Soft,
		meta.Budget.Hard,
		usage.InputTokens,
		usage.OutputTokens,
		usage.Cost,
		rec.Elapsed.Milliseconds(),
		hashText(rec.Output.Text),
		fatal,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	agentStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO agent_runs
		(run_id, query_index, query, status, error, iterations, summary, selections,
		 input_tokens, output_tokens, cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare agent insert: %w", err)
	}
	defer agentStmt.Close()

	callStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tool_calls
		(run_id, query_index, call_index, tool, arguments, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare tool call insert: %w", err)
	}
	defer callStmt.Close()

	for i, res := range rec.Agents {
		var agentErr interface{}
		if res.State.Error != "" {
			agentErr = res.State.Error
		}
		_, err = agentStmt.ExecContext(ctx,
			runID,
			i,
			res.State.Query.Text,
			res.State.Status.String(),
			agentErr,
			res.State.Iterations,
			res.Summary,
			len(res.Selections),
			res.State.Usage.InputTokens,
			res.State.Usage.OutputTokens,
			res.State.Usage.Cost,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert agent run: %w", err)
		}

		for j, call := range res.State.ToolCalls {
			_, err = callStmt.ExecContext(ctx, runID, i, j, call.Name, call.Arguments, call.DurationMs)
			if err != nil {
				return "", fmt.Errorf("failed to insert tool call: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return runID, nil
}

// RunSummary is one row of the trace listing.
type RunSummary struct {
	ID              string
	CreatedAt       string
	Root            string
	Provider        string
	Model           string
	Queries         int
	Surfaced        int
	Omitted         int
	EstimatedTokens int
	BudgetSoft      int
	BudgetHard      int
	InputTokens     int
	OutputTokens    int
	Cost            float64
	ElapsedMs       int64
	OutputHash      string
	Fatal           string
}

// AgentTrace is one agent row of a recorded run.
type AgentTrace struct {
	QueryIndex   int
	Query        string
	Status       string
	Error        string
	Iterations   int
	Summary      string
	Selections   int
	InputTokens  int
	OutputTokens int
	Cost         float64
	ToolCalls    []ToolCallTrace
}

// ToolCallTrace is one recorded tool invocation.
type ToolCallTrace struct {
	Tool       string
	Arguments  string
	DurationMs int64
}

const runColumns = `run_id, created_at, root, provider, model, queries, surfaced, omitted,
	estimated_tokens, budget_soft, budget_hard, input_tokens, output_tokens, cost,
	elapsed_ms, output_hash, fatal`

// Runs lists recorded runs, most recent first.
func (s *TraceStore) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, run_id LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{} // Start with empty slice, not nil
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Run loads one recorded run with its agents and tool calls. The id
// may be a unique prefix of the full run id.
func (s *TraceStore) Run(ctx context.Context, id string) (RunSummary, []AgentTrace, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE run_id LIKE ? || '%' ORDER BY created_at DESC LIMIT 2",
		id)
	if err != nil {
		return RunSummary{}, nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	var matches []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return RunSummary{}, nil, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return RunSummary{}, nil, fmt.Errorf("error iterating runs: %w", err)
	}

	switch len(matches) {
	case 0:
		return RunSummary{}, nil, fmt.Errorf("no run matches %q", id)
	case 1:
	default:
		return RunSummary{}, nil, fmt.Errorf("run id %q is ambiguous", id)
	}
	run := matches[0]

	agents, err := s.loadAgents(ctx, run.ID)
	if err != nil {
		return RunSummary{}, nil, err
	}
	return run, agents, nil
}

func (s *TraceStore) loadAgents(ctx context.Context, runID string) ([]AgentTrace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query_index, query, status, error, iterations, summary, selections,
		       input_tokens, output_tokens, cost
		FROM agent_runs WHERE run_id = ? ORDER BY query_index ASC`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent runs: %w", err)
	}
	defer rows.Close()

	agents := []AgentTrace{} // Start with empty slice, not nil
	for rows.Next() {
		var a AgentTrace
		var agentErr sql.NullString
		err := rows.Scan(
			&a.QueryIndex,
			&a.Query,
			&a.Status,
			&agentErr,
			&a.Iterations,
			&a.Summary,
			&a.Selections,
			&a.InputTokens,
			&a.OutputTokens,
			&a.Cost,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent run: %w", err)
		}
		if agentErr.Valid {
			a.Error = agentErr.String
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agent runs: %w", err)
	}

	for i := range agents {
		calls, err := s.loadToolCalls(ctx, runID, agents[i].QueryIndex)
		if err != nil {
			return nil, err
		}
		agents[i].ToolCalls = calls
	}
	return agents, nil
}

func (s *TraceStore) loadToolCalls(ctx context.Context, runID string, queryIndex int) ([]ToolCallTrace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tool, arguments, duration_ms
		FROM tool_calls WHERE run_id = ? AND query_index = ?
		ORDER BY call_index ASC`,
		runID, queryIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer rows.Close()

	calls := []ToolCallTrace{} // Start with empty slice, not nil
	for rows.Next() {
		var c ToolCallTrace
		if err := rows.Scan(&c.Tool, &c.Arguments, &c.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan tool call: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tool calls: %w", err)
	}
	return calls, nil
}

func scanRun(rows *sql.Rows) (RunSummary, error) {
	var run RunSummary
	var fatal sql.NullString
	err := rows.Scan(
		&run.ID,
		&run.CreatedAt,
		&run.Root,
		&run.Provider,
		&run.Model,
		&run.Queries,
		&run.Surfaced,
		&run.Omitted,
		&run.EstimatedTokens,
		&run.BudgetSoft,
		&run.BudgetHard,
		&run.InputTokens,
		&run.OutputTokens,
		&run.Cost,
		&run.ElapsedMs,
		&run.OutputHash,
		&fatal,
	)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to scan run: %w", err)
	}
	if fatal.Valid {
		run.Fatal = fatal.String
	}
	return run, nil
}

// hashText fingerprints the output artifact for spotting identical
// outputs across runs.
func hashText(text string) string {
	h := xxhash.Sum64String(text)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h)
	return hex.EncodeToString(buf[:])
}
