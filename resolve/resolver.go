// Package resolve turns merged selections into concrete line spans
// with rendered text and an estimated token cost. It reads files,
// resolves selected symbol names to their definition ranges, merges
// nearby ranges into contiguous spans and applies the per-span and
// per-file size caps.
package resolve

import (
	"context"
	"sort"
	"strings"

	"foray/model"
	"foray/repo"
	"foray/symbols"
)

const (
	// fallbackLines is the prefix surfaced when a selection yields no
	// usable range at all.
	fallbackLines = 120
	// mergeGap is the largest number of lines allowed between two
	// ranges that still merge into one span.
	mergeGap = 10
	// maxSpanLines caps a single span; overlong spans keep their head.
	maxSpanLines = 400
	// maxFileLines caps the total lines surfaced per file; spans past
	// the cap are dropped.
	maxFileLines = 600

	// elisionMarker separates non-contiguous spans in rendered text.
	elisionMarker = "..."
)

// Resolver reads files and symbol hierarchies to produce resolved
// chunks.
type Resolver struct {
	reader  *repo.Reader
	symbols *symbols.Service
}

// New creates a resolver over the given reader and symbol service.
func New(reader *repo.Reader, service *symbols.Service) *Resolver {
	return &Resolver{reader: reader, symbols: service}
}

// Resolve produces one chunk per selection whose file could be read
// and yielded at least one line. Files that could not be read, or
// contained nothing to surface, are returned as the second value in
// input order. Symbol lookup failures degrade to the range fallback
// rather than failing the selection.
func (r *Resolver) Resolve(ctx context.Context, selections []model.MergedSelection) ([]model.ResolvedChunk, []string) {
	chunks := make([]model.ResolvedChunk, 0, len(selections))
	var unreadable []string
	for _, sel := range selections {
		if ctx.Err() != nil {
			break
		}
		chunk, ok := r.resolveOne(ctx, sel)
		if !ok {
			unreadable = append(unreadable, sel.File)
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks, unreadable
}

func (r *Resolver) resolveOne(ctx context.Context, sel model.MergedSelection) (model.ResolvedChunk, bool) {
	lines, err := r.reader.Lines(sel.File)
	if err != nil || len(lines) == 0 {
		return model.ResolvedChunk{}, false
	}
	total := len(lines)

	ranges := append([]model.Range(nil), sel.Ranges...)
	var resolved []string
	for _, name := range sel.Symbols {
		matches, err := r.symbols.Lookup(ctx, sel.File, name)
		if err != nil || len(matches) == 0 {
			continue
		}
		resolved = append(resolved, name)
		for _, m := range matches {
			ranges = append(ranges, model.Range{Start: m.StartLine, End: m.EndLine})
		}
	}

	spans := clampRanges(ranges, total)
	fallback := false
	if len(spans) == 0 {
		end := total
		if end > fallbackLines {
			end = fallbackLines
		}
		spans = []model.Range{{Start: 1, End: end}}
		fallback = true
	}
	spans = mergeNearby(spans)
	spans = capSpans(spans)

	text, selected := renderSpans(lines, spans)
	return model.ResolvedChunk{
		Selection:       sel,
		Ranges:          spans,
		Text:            text,
		Lines:           selected,
		TotalLines:      total,
		EstimatedTokens: EstimateTokens(text),
		ResolvedSymbols: resolved,
		FallbackUsed:    fallback,
	}, true
}

// clampRanges bounds every range to [1, total] and drops ranges that
// lie entirely past the end of the file.
func clampRanges(ranges []model.Range, total int) []model.Range {
	var out []model.Range
	for _, rg := range ranges {
		if rg.Start < 1 {
			rg.Start = 1
		}
		if rg.End > total {
			rg.End = total
		}
		if rg.Start > rg.End {
			continue
		}
		out = append(out, rg)
	}
	return out
}

// mergeNearby sorts ranges by start and merges any pair that overlaps
// or is separated by at most mergeGap lines.
func mergeNearby(spans []model.Range) []model.Range {
	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	merged := []model.Range{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.Start-last.End-1 <= mergeGap {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// capSpans truncates overlong spans to their head and drops trailing
// spans once the per-file line cap is reached.
func capSpans(spans []model.Range) []model.Range {
	var out []model.Range
	total := 0
	for _, s := range spans {
		if s.Lines() > maxSpanLines {
			s.End = s.Start + maxSpanLines - 1
		}
		if total+s.Lines() > maxFileLines {
			break
		}
		total += s.Lines()
		out = append(out, s)
	}
	return out
}

// renderSpans joins the selected line spans, separating non-contiguous
// spans with the elision marker. It returns the text and the number of
// selected lines, which excludes the markers.
func renderSpans(lines []string, spans []model.Range) (string, int) {
	parts := make([]string, 0, len(spans))
	selected := 0
	for _, s := range spans {
		parts = append(parts, strings.Join(lines[s.Start-1:s.End], "\n"))
		selected += s.Lines()
	}
	return strings.Join(parts, "\n"+elisionMarker+"\n"), selected
}
