// Package model provides domain types shared across packages.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Query is one natural-language retrieval request against a codebase.
// Immutable once created.
type Query struct {
	Text  string   `json:"text"`
	Hints []string `json:"hints,omitempty"`
}

// Confidence grades how sure an agent is about a selection.
// Ordered: unset < low < medium < high.
type Confidence int

const (
	ConfidenceUnset Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

// ParseConfidence maps a raw string to a Confidence.
// Unrecognized values map to ConfidenceUnset rather than erroring,
// since the input comes from model output.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ConfidenceLow
	case "medium", "med":
		return ConfidenceMedium
	case "high":
		return ConfidenceHigh
	default:
		return ConfidenceUnset
	}
}

// String returns the canonical lowercase name.
func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "unset"
	}
}

// Max returns the ordinal maximum of two confidences.
func (c Confidence) Max(other Confidence) Confidence {
	if other > c {
		return other
	}
	return c
}

// MarshalJSON renders the confidence as its string name.
func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts a string confidence name.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseConfidence(s)
	return nil
}

// Range is a 1-based inclusive line span.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Valid reports whether the range is well formed (1 <= Start <= End).
func (r Range) Valid() bool {
	return r.Start >= 1 && r.End >= r.Start
}

// Lines returns the number of lines the range covers.
func (r Range) Lines() int {
	if !r.Valid() {
		return 0
	}
	return r.End - r.Start + 1
}

// FileSelection is one agent's proposal for a relevant file region.
// Selections arrive raw from model output and are untrusted until they
// pass selection normalization.
type FileSelection struct {
	File       string     `json:"file"`
	Ranges     []Range    `json:"ranges,omitempty"`
	Symbols    []string   `json:"symbols,omitempty"`
	Reason     string     `json:"reason"`
	Confidence Confidence `json:"confidence"`
}

// MergedSelection consolidates every selection of one file across all
// queries. Confidence is the ordinal max across contributions; ranges
// and symbols are unioned and deduplicated.
type MergedSelection struct {
	FileSelection
	QueryCount int  `json:"query_count"`
	Shared     bool `json:"shared"`
}

// ResolvedChunk is a merged selection with concrete spans, rendered
// text and an estimated token cost. Produced by the range resolver,
// consumed once by the budget packer.
type ResolvedChunk struct {
	Selection       MergedSelection `json:"selection"`
	Ranges          []Range         `json:"ranges"`
	Text            string          `json:"-"`
	Lines           int             `json:"lines"`
	TotalLines      int             `json:"total_lines"`
	EstimatedTokens int             `json:"estimated_tokens"`
	ResolvedSymbols []string        `json:"resolved_symbols,omitempty"`
	FallbackUsed    bool            `json:"fallback_used,omitempty"`
}

// Budget holds the two-tier token ceilings for one invocation,
// computed once from the query count.
type Budget struct {
	Soft int `json:"soft"`
	Hard int `json:"hard"`
}

// ToolCall is one entry in an agent's append-only tool log.
type ToolCall struct {
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
	DurationMs uint64 `json:"duration_ms"`
}

// UsageStats accumulates completion-call token usage and cost.
// Tracked per agent, summed globally by the orchestrator.
type UsageStats struct {
	InputTokens      int     `json:"input_tokens"`
	OutputTokens     int     `json:"output_tokens"`
	CacheReadTokens  int     `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens int     `json:"cache_write_tokens,omitempty"`
	Cost             float64 `json:"cost"`
}

// Add accumulates another usage record into this one.
func (u *UsageStats) Add(other UsageStats) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.CacheWriteTokens += other.CacheWriteTokens
	u.Cost += other.Cost
}

// AgentStatus is the lifecycle state of a query agent.
type AgentStatus int

const (
	StatusRunning AgentStatus = iota
	StatusDone
	StatusError
)

// String returns the lowercase status name.
func (s AgentStatus) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return "running"
	}
}

// MarshalJSON renders the status as its string name.
func (s AgentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// AgentState tracks one query agent's run. Mutated only by its owning
// agent; terminal once Status leaves StatusRunning.
type AgentState struct {
	Query      Query       `json:"query"`
	Iterations int         `json:"iterations"`
	ToolCalls  []ToolCall  `json:"tool_calls"`
	Usage      UsageStats  `json:"usage"`
	Status     AgentStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// AgentResult is what one agent contributes to the merge: a summary,
// its raw selections, and anything it looked for but could not find.
// A failed agent still produces a result with an empty or partial
// selection list so the rest of the batch can proceed.
type AgentResult struct {
	Summary    string          `json:"summary"`
	Selections []FileSelection `json:"selections"`
	NotFound   []string        `json:"not_found,omitempty"`
	State      AgentState      `json:"state"`
}
