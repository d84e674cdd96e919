// Package selection turns raw finish-call payloads into validated
// FileSelection values and merges selections from multiple queries
// into one entry per file. It is the single coercion boundary for
// model-produced selection data; nothing downstream of it re-checks
// paths, ranges or confidence values.
package selection

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	jsonutil "foray/internal/json"
	"foray/model"
)

// defaultReason stands in when the model gives no reason for a
// selection. The merger drops it again as soon as a real reason for
// the same file exists.
const defaultReason = "selected without stated reason"

// ParseFinish decodes the arguments of a finish tool call into a
// summary, a normalized selection list and the paths the agent looked
// for but could not find. Malformed payloads pass through layered
// recovery: strict parse, structural repair of the whole payload, then
// per-field coercion of known malformation shapes (stringified arrays,
// "N-M" range strings, scalars or single objects where arrays belong).
// Fields that stay unreadable degrade to empty values; ParseFinish
// never fails.
func ParseFinish(args json.RawMessage) (string, []model.FileSelection, []string) {
	var payload struct {
		Summary  flexString     `json:"summary"`
		Files    flexSelections `json:"files"`
		NotFound flexStrings    `json:"not_found"`
		// Models that saw camelCase elsewhere produce it here too.
		NotFoundCamel flexStrings `json:"notFound"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		if rerr := jsonutil.Recover(string(args), &payload); rerr != nil {
			return "", nil, nil
		}
	}

	selections := make([]model.FileSelection, 0, len(payload.Files))
	for _, f := range payload.Files {
		selections = append(selections, model.FileSelection{
			File:       string(f.File),
			Ranges:     f.Ranges,
			Symbols:    f.Symbols,
			Reason:     string(f.Reason),
			Confidence: model.ParseConfidence(string(f.Confidence)),
		})
	}
	notFound := dedupeTrimmed(append(payload.NotFound, payload.NotFoundCamel...))
	return strings.TrimSpace(string(payload.Summary)), Normalize(selections), notFound
}

// Normalize applies the validation rules the rest of the pipeline
// relies on: paths are clean and repo-relative, range bounds are
// positive with end >= start, symbol lists are trimmed and
// deduplicated, and reason and confidence always carry usable values.
// Selections whose path is empty, absolute or escapes the repository
// are dropped. Normalize is idempotent.
func Normalize(selections []model.FileSelection) []model.FileSelection {
	out := make([]model.FileSelection, 0, len(selections))
	for _, sel := range selections {
		path, ok := cleanPath(sel.File)
		if !ok {
			continue
		}
		norm := model.FileSelection{
			File:       path,
			Ranges:     normalizeRanges(sel.Ranges),
			Symbols:    dedupeTrimmed(sel.Symbols),
			Reason:     strings.TrimSpace(sel.Reason),
			Confidence: sel.Confidence,
		}
		if norm.Reason == "" {
			norm.Reason = defaultReason
		}
		if norm.Confidence < model.ConfidenceUnset || norm.Confidence > model.ConfidenceHigh {
			norm.Confidence = model.ConfidenceUnset
		}
		out = append(out, norm)
	}
	return out
}

// cleanPath mirrors the validation the repository reader applies, so
// every path that survives normalization is one the reader can
// resolve.
func cleanPath(p string) (string, bool) {
	cleaned := filepath.Clean(strings.TrimSpace(p))
	if cleaned == "" || cleaned == "." {
		return "", false
	}
	if filepath.IsAbs(cleaned) || !filepath.IsLocal(cleaned) {
		return "", false
	}
	return cleaned, true
}

func normalizeRanges(ranges []model.Range) []model.Range {
	var out []model.Range
	seen := make(map[model.Range]struct{}, len(ranges))
	for _, r := range ranges {
		if r.Start < 1 {
			r.Start = 1
		}
		if r.End < 1 {
			r.End = 1
		}
		if r.End < r.Start {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// dedupeTrimmed trims each entry, drops empties and keeps the first
// occurrence of duplicates. Shared by symbol lists and not-found lists.
func dedupeTrimmed(values []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, s := range values {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Flexible field types. Each accepts the well-formed shape plus the
// malformation shapes smaller models are known to produce, and decodes
// to its zero value instead of returning an error, so one bad field
// never discards the selections around it.

type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	*s = ""
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(trimmed, &str); err == nil {
			*s = flexString(str)
		}
		return nil
	}
	// Numbers and booleans keep their literal text; structured values
	// have no string reading.
	if trimmed[0] != '{' && trimmed[0] != '[' {
		*s = flexString(trimmed)
	}
	return nil
}

type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	*n = 0
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return nil
		}
		if v, err := strconv.Atoi(strings.TrimSpace(str)); err == nil {
			*n = flexInt(v)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err == nil {
		*n = flexInt(f)
	}
	return nil
}

type flexStrings []string

func (l *flexStrings) UnmarshalJSON(data []byte) error {
	*l = coerceStrings(data)
	return nil
}

func coerceStrings(data []byte) []string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var elems []flexString
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil
		}
		out := make([]string, 0, len(elems))
		for _, e := range elems {
			out = append(out, string(e))
		}
		return out
	case '"':
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return nil
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return nil
		}
		if str[0] == '"' {
			// Doubly stringified; peel one layer.
			return coerceStrings([]byte(str))
		}
		if str[0] == '[' || str[0] == '{' {
			// Stringified array. A bracketed string is never a plain
			// element, so give up rather than keep it verbatim.
			if out := coerceStrings([]byte(str)); out != nil {
				return out
			}
			if fixed := jsonutil.Repair(str); fixed != "" && fixed != str {
				return coerceStrings([]byte(fixed))
			}
			return nil
		}
		return []string{str}
	}
	return nil
}

type flexRanges []model.Range

func (r *flexRanges) UnmarshalJSON(data []byte) error {
	*r = coerceRanges(data)
	return nil
}

func coerceRanges(data []byte) []model.Range {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil
		}
		var out []model.Range
		for _, elem := range elems {
			if rg, ok := coerceRangeElem(elem); ok {
				out = append(out, rg)
			}
		}
		return out
	case '{':
		if rg, ok := coerceRangeElem(trimmed); ok {
			return []model.Range{rg}
		}
		return nil
	case '"':
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return nil
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return nil
		}
		if rg, ok := parseRangeText(str); ok {
			return []model.Range{rg}
		}
		if str[0] == '"' {
			return coerceRanges([]byte(str))
		}
		if str[0] == '[' || str[0] == '{' {
			if out := coerceRanges([]byte(str)); len(out) > 0 {
				return out
			}
			if fixed := jsonutil.Repair(str); fixed != "" && fixed != str {
				return coerceRanges([]byte(fixed))
			}
		}
		return nil
	}
	return nil
}

func coerceRangeElem(data json.RawMessage) (model.Range, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return model.Range{}, false
	}
	switch trimmed[0] {
	case '{':
		var obj struct {
			Start flexInt `json:"start"`
			End   flexInt `json:"end"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return model.Range{}, false
		}
		if obj.Start == 0 && obj.End == 0 {
			// Neither bound present or readable; not a range at all.
			return model.Range{}, false
		}
		return model.Range{Start: int(obj.Start), End: int(obj.End)}, true
	case '"':
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return model.Range{}, false
		}
		return parseRangeText(strings.TrimSpace(str))
	case '[':
		var pair []flexInt
		if err := json.Unmarshal(trimmed, &pair); err != nil || len(pair) != 2 {
			return model.Range{}, false
		}
		if pair[0] == 0 && pair[1] == 0 {
			return model.Range{}, false
		}
		return model.Range{Start: int(pair[0]), End: int(pair[1])}, true
	}
	return model.Range{}, false
}

var rangeTextPattern = regexp.MustCompile(`^(\d+)\s*[-:]\s*(\d+)$`)

// parseRangeText reads range strings like "12-40" or "12:40".
func parseRangeText(s string) (model.Range, bool) {
	m := rangeTextPattern.FindStringSubmatch(s)
	if m == nil {
		return model.Range{}, false
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return model.Range{}, false
	}
	end, err := strconv.Atoi(m[2])
	if err != nil {
		return model.Range{}, false
	}
	return model.Range{Start: start, End: end}, true
}

type flexSelection struct {
	File       flexString  `json:"file"`
	Ranges     flexRanges  `json:"ranges"`
	Symbols    flexStrings `json:"symbols"`
	Reason     flexString  `json:"reason"`
	Confidence flexString  `json:"confidence"`
}

type flexSelections []flexSelection

func (l *flexSelections) UnmarshalJSON(data []byte) error {
	*l = coerceSelections(data)
	return nil
}

func coerceSelections(data []byte) []flexSelection {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil
		}
		var out []flexSelection
		for _, elem := range elems {
			if sel, ok := coerceSelection(elem); ok {
				out = append(out, sel)
			}
		}
		return out
	case '{':
		if sel, ok := coerceSelection(trimmed); ok {
			return []flexSelection{sel}
		}
		return nil
	case '"':
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return nil
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return nil
		}
		if str[0] == '"' {
			return coerceSelections([]byte(str))
		}
		if str[0] == '[' || str[0] == '{' {
			if out := coerceSelections([]byte(str)); out != nil {
				return out
			}
			if fixed := jsonutil.Repair(str); fixed != "" && fixed != str {
				return coerceSelections([]byte(fixed))
			}
			return nil
		}
		return []flexSelection{{File: flexString(str)}}
	}
	return nil
}

func coerceSelection(data json.RawMessage) (flexSelection, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return flexSelection{}, false
	}
	switch trimmed[0] {
	case '{':
		var sel flexSelection
		if err := json.Unmarshal(trimmed, &sel); err != nil {
			return flexSelection{}, false
		}
		return sel, true
	case '"':
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return flexSelection{}, false
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return flexSelection{}, false
		}
		if str[0] == '{' || str[0] == '[' {
			inner := coerceSelections([]byte(str))
			if len(inner) == 1 {
				return inner[0], true
			}
			return flexSelection{}, false
		}
		// A bare string element names a file with nothing else known.
		return flexSelection{File: flexString(str)}, true
	}
	return flexSelection{}, false
}
