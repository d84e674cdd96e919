package selection

import (
	"sort"
	"strings"

	"foray/model"
)

// Merge consolidates per-query selection lists into one entry per
// file. Ranges and symbols are unioned with exact-duplicate removal,
// confidence is the ordinal maximum across contributions, and distinct
// reasons are joined with "; ". QueryCount counts the distinct queries
// that selected the file; a file selected twice by the same query
// still counts once. Results are ordered by file path.
//
// Inputs are expected to be normalized already; Merge does not
// re-validate paths or bounds.
func Merge(byQuery [][]model.FileSelection) []model.MergedSelection {
	states := make(map[string]*mergeState)
	for qi, selections := range byQuery {
		for _, sel := range selections {
			st, ok := states[sel.File]
			if !ok {
				st = newMergeState(sel.File)
				states[sel.File] = st
			}
			st.absorb(qi, sel)
		}
	}

	files := make([]string, 0, len(states))
	for f := range states {
		files = append(files, f)
	}
	sort.Strings(files)

	out := make([]model.MergedSelection, 0, len(files))
	for _, f := range files {
		out = append(out, states[f].merged())
	}
	return out
}

type mergeState struct {
	sel       model.FileSelection
	queries   map[int]struct{}
	rangeSet  map[model.Range]struct{}
	symbolSet map[string]struct{}
	reasonSet map[string]struct{}
	reasons   []string
}

func newMergeState(file string) *mergeState {
	return &mergeState{
		sel:       model.FileSelection{File: file},
		queries:   make(map[int]struct{}),
		rangeSet:  make(map[model.Range]struct{}),
		symbolSet: make(map[string]struct{}),
		reasonSet: make(map[string]struct{}),
	}
}

func (st *mergeState) absorb(query int, sel model.FileSelection) {
	st.queries[query] = struct{}{}

	for _, r := range sel.Ranges {
		if _, dup := st.rangeSet[r]; dup {
			continue
		}
		st.rangeSet[r] = struct{}{}
		st.sel.Ranges = append(st.sel.Ranges, r)
	}
	for _, s := range sel.Symbols {
		if _, dup := st.symbolSet[s]; dup {
			continue
		}
		st.symbolSet[s] = struct{}{}
		st.sel.Symbols = append(st.sel.Symbols, s)
	}

	// The placeholder reason only survives when no contribution names a
	// real one.
	if reason := strings.TrimSpace(sel.Reason); reason != "" && reason != defaultReason {
		if _, dup := st.reasonSet[reason]; !dup {
			st.reasonSet[reason] = struct{}{}
			st.reasons = append(st.reasons, reason)
		}
	}

	st.sel.Confidence = st.sel.Confidence.Max(sel.Confidence)
}

func (st *mergeState) merged() model.MergedSelection {
	sel := st.sel
	sel.Reason = strings.Join(st.reasons, "; ")
	if sel.Reason == "" {
		sel.Reason = defaultReason
	}
	count := len(st.queries)
	return model.MergedSelection{
		FileSelection: sel,
		QueryCount:    count,
		Shared:        count > 1,
	}
}
