// Package output renders the final context artifact: a single text
// payload concatenating query summaries, the not-found list, budget
// status and the packed code chunks, plus a structured metadata
// object describing the same content.
package output

import (
	"fmt"
	"sort"
	"strings"

	"foray/model"
	"foray/packer"
)

// omittedPreview bounds how many omitted files the text artifact
// lists; the full set is always present in the metadata.
const omittedPreview = 10

// ChunkInfo describes one surfaced or omitted chunk in the metadata.
type ChunkInfo struct {
	File            string           `json:"file"`
	Ranges          []model.Range    `json:"ranges"`
	Lines           int              `json:"lines"`
	EstimatedTokens int              `json:"estimated_tokens"`
	Confidence      model.Confidence `json:"confidence"`
	QueryCount      int              `json:"query_count"`
	Shared          bool             `json:"shared"`
	Reason          string           `json:"reason"`
	Symbols         []string         `json:"symbols,omitempty"`
	FallbackUsed    bool             `json:"fallback_used,omitempty"`
}

// Metadata summarizes the assembled output.
type Metadata struct {
	Queries         int          `json:"queries"`
	Candidates      int          `json:"candidates"`
	Surfaced        int          `json:"surfaced"`
	Omitted         int          `json:"omitted"`
	NotFound        []string     `json:"not_found,omitempty"`
	TotalRanges     int          `json:"total_ranges"`
	TotalSymbols    int          `json:"total_symbols"`
	TotalLines      int          `json:"total_lines"`
	EstimatedTokens int          `json:"estimated_tokens"`
	Budget          model.Budget `json:"budget"`
	Chunks          []ChunkInfo  `json:"chunks"`
	OmittedChunks   []ChunkInfo  `json:"omitted_chunks,omitempty"`
}

// Output is the assembled artifact.
type Output struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Assemble renders the final artifact from the agents' results and the
// packing outcome. Unreadable paths reported by the resolver fold into
// the not-found list.
func Assemble(results []model.AgentResult, packed packer.Result, unreadable []string) Output {
	notFound := collectNotFound(results, unreadable)

	var b strings.Builder
	writeQuerySections(&b, results)
	if len(notFound) > 0 {
		fmt.Fprintf(&b, "Not found: %s\n\n", strings.Join(notFound, ", "))
	}

	candidates := len(packed.Included) + len(packed.Omitted)
	fmt.Fprintf(&b, "Budget: surfaced %d of %d files, %d tokens used (soft %d, hard %d)\n",
		len(packed.Included), candidates, packed.UsedTokens, packed.Budget.Soft, packed.Budget.Hard)

	if len(packed.Included) == 0 {
		b.WriteString("\nNo code context was surfaced.\n")
	}
	for _, chunk := range packed.Included {
		b.WriteString("\n")
		writeChunk(&b, chunk)
	}
	writeOmitted(&b, packed.Omitted)

	meta := Metadata{
		Queries:         len(results),
		Candidates:      candidates,
		Surfaced:        len(packed.Included),
		Omitted:         len(packed.Omitted),
		NotFound:        notFound,
		EstimatedTokens: packed.UsedTokens,
		Budget:          packed.Budget,
		Chunks:          make([]ChunkInfo, 0, len(packed.Included)),
	}
	for _, chunk := range packed.Included {
		meta.TotalRanges += len(chunk.Ranges)
		meta.TotalSymbols += len(chunk.ResolvedSymbols)
		meta.TotalLines += chunk.Lines
		meta.Chunks = append(meta.Chunks, chunkInfo(chunk))
	}
	for _, chunk := range packed.Omitted {
		meta.OmittedChunks = append(meta.OmittedChunks, chunkInfo(chunk))
	}

	return Output{Text: b.String(), Metadata: meta}
}

func collectNotFound(results []model.AgentResult, unreadable []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	for _, res := range results {
		for _, path := range res.NotFound {
			add(path)
		}
	}
	for _, path := range unreadable {
		add(path)
	}
	sort.Strings(out)
	return out
}

func writeQuerySections(b *strings.Builder, results []model.AgentResult) {
	for _, res := range results {
		fmt.Fprintf(b, "Query: %s\n", res.State.Query.Text)
		switch {
		case res.State.Error != "":
			fmt.Fprintf(b, "Summary: (agent failed: %s)\n", res.State.Error)
		case res.Summary == "":
			b.WriteString("Summary: (none)\n")
		default:
			fmt.Fprintf(b, "Summary: %s\n", res.Summary)
		}
		b.WriteString("\n")
	}
}

func writeChunk(b *strings.Builder, chunk model.ResolvedChunk) {
	sel := chunk.Selection
	fmt.Fprintf(b, "=== %s (lines %s) [%s]", sel.File, formatSpans(chunk.Ranges), sel.Confidence)
	if sel.Shared {
		fmt.Fprintf(b, " [shared across %d queries]", sel.QueryCount)
	}
	b.WriteString("\n")
	fmt.Fprintf(b, "reason: %s\n", sel.Reason)
	b.WriteString(chunk.Text)
	b.WriteString("\n")
}

func writeOmitted(b *strings.Builder, omitted []model.ResolvedChunk) {
	if len(omitted) == 0 {
		return
	}
	fmt.Fprintf(b, "\nOmitted over budget [%d]:\n", len(omitted))
	for i, chunk := range omitted {
		if i == omittedPreview {
			fmt.Fprintf(b, "(and %d more)\n", len(omitted)-omittedPreview)
			break
		}
		fmt.Fprintf(b, "- %s [%s] %s\n", chunk.Selection.File, chunk.Selection.Confidence, chunk.Selection.Reason)
	}
}

func chunkInfo(chunk model.ResolvedChunk) ChunkInfo {
	sel := chunk.Selection
	return ChunkInfo{
		File:            sel.File,
		Ranges:          chunk.Ranges,
		Lines:           chunk.Lines,
		EstimatedTokens: chunk.EstimatedTokens,
		Confidence:      sel.Confidence,
		QueryCount:      sel.QueryCount,
		Shared:          sel.Shared,
		Reason:          sel.Reason,
		Symbols:         chunk.ResolvedSymbols,
		FallbackUsed:    chunk.FallbackUsed,
	}
}

// formatSpans renders a span list like "3-40, 80, 95-110".
func formatSpans(spans []model.Range) string {
	parts := make([]string, 0, len(spans))
	for _, s := range spans {
		if s.Start == s.End {
			parts = append(parts, fmt.Sprintf("%d", s.Start))
			continue
		}
		parts = append(parts, fmt.Sprintf("%d-%d", s.Start, s.End))
	}
	return strings.Join(parts, ", ")
}
