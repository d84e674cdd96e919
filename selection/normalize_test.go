package selection

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"foray/model"
)

func TestParseFinishWellFormed(t *testing.T) {
	args := `{
		"summary": "auth flow traced",
		"files": [
			{"file": "src/auth.ts", "ranges": [{"start": 4, "end": 30}], "symbols": ["login"], "reason": "entry point", "confidence": "high"},
			{"file": "src/session.ts", "symbols": ["Session", "refresh"], "reason": "token refresh", "confidence": "medium"}
		],
		"not_found": ["docs/auth.md"]
	}`

	summary, selections, notFound := ParseFinish([]byte(args))
	if summary != "auth flow traced" {
		t.Errorf("expected summary %q, got %q", "auth flow traced", summary)
	}
	if diff := cmp.Diff([]string{"docs/auth.md"}, notFound); diff != "" {
		t.Errorf("not-found mismatch (-want +got):\n%s", diff)
	}
	want := []model.FileSelection{
		{
			File:       "src/auth.ts",
			Ranges:     []model.Range{{Start: 4, End: 30}},
			Symbols:    []string{"login"},
			Reason:     "entry point",
			Confidence: model.ConfidenceHigh,
		},
		{
			File:       "src/session.ts",
			Symbols:    []string{"Session", "refresh"},
			Reason:     "token refresh",
			Confidence: model.ConfidenceMedium,
		},
	}
	if diff := cmp.Diff(want, selections); diff != "" {
		t.Errorf("selections mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFinishDefaultsMissingFields(t *testing.T) {
	_, selections, _ := ParseFinish([]byte(`{"files": [{"file": "src/a.go"}]}`))
	if len(selections) != 1 {
		t.Fatalf("expected 1 selection, got %d", len(selections))
	}
	sel := selections[0]
	if sel.Reason != defaultReason {
		t.Errorf("expected default reason, got %q", sel.Reason)
	}
	if sel.Confidence != model.ConfidenceUnset {
		t.Errorf("expected unset confidence, got %v", sel.Confidence)
	}
	if len(sel.Ranges) != 0 || len(sel.Symbols) != 0 {
		t.Errorf("expected empty ranges and symbols, got %v / %v", sel.Ranges, sel.Symbols)
	}
}

func TestParseFinishCodeFence(t *testing.T) {
	args := "Here is my selection:\n```json\n" +
		`{"summary": "done", "files": [{"file": "src/auth.ts", "confidence": "high"}]}` +
		"\n```\nLet me know if you need more."

	summary, selections, _ := ParseFinish([]byte(args))
	if summary != "done" {
		t.Errorf("expected summary %q, got %q", "done", summary)
	}
	if len(selections) != 1 || selections[0].File != "src/auth.ts" {
		t.Fatalf("expected one selection for src/auth.ts, got %v", selections)
	}
	if selections[0].Confidence != model.ConfidenceHigh {
		t.Errorf("expected high confidence, got %v", selections[0].Confidence)
	}
}

func TestParseFinishUnquotedKeys(t *testing.T) {
	args := `{summary: "found it", files: [{file: "src/a.go", confidence: high}]}`

	summary, selections, _ := ParseFinish([]byte(args))
	if summary != "found it" {
		t.Errorf("expected summary %q, got %q", "found it", summary)
	}
	if len(selections) != 1 {
		t.Fatalf("expected 1 selection, got %d", len(selections))
	}
	if selections[0].File != "src/a.go" {
		t.Errorf("expected file src/a.go, got %q", selections[0].File)
	}
	if selections[0].Confidence != model.ConfidenceHigh {
		t.Errorf("expected high confidence, got %v", selections[0].Confidence)
	}
}

func TestParseFinishStringifiedFiles(t *testing.T) {
	args := `{"summary": "s", "files": "[{\"file\": \"src/a.go\", \"ranges\": [{\"start\": 1, \"end\": 3}]}]"}`

	_, selections, _ := ParseFinish([]byte(args))
	want := []model.FileSelection{{
		File:       "src/a.go",
		Ranges:     []model.Range{{Start: 1, End: 3}},
		Reason:     defaultReason,
		Confidence: model.ConfidenceUnset,
	}}
	if diff := cmp.Diff(want, selections); diff != "" {
		t.Errorf("selections mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFinishSingleObjectForFiles(t *testing.T) {
	args := `{"summary": "s", "files": {"file": "src/only.go", "reason": "the one"}}`

	_, selections, _ := ParseFinish([]byte(args))
	if len(selections) != 1 {
		t.Fatalf("expected single-object files to be wrapped, got %d selections", len(selections))
	}
	if selections[0].File != "src/only.go" || selections[0].Reason != "the one" {
		t.Errorf("unexpected selection: %+v", selections[0])
	}
}

func TestParseFinishScalarForFiles(t *testing.T) {
	_, selections, _ := ParseFinish([]byte(`{"files": "src/main.go"}`))
	if len(selections) != 1 || selections[0].File != "src/main.go" {
		t.Fatalf("expected scalar files value to become one selection, got %v", selections)
	}
}

func TestParseFinishBareStringElement(t *testing.T) {
	args := `{"files": ["src/a.go", {"file": "src/b.go"}]}`

	_, selections, _ := ParseFinish([]byte(args))
	if len(selections) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(selections))
	}
	if selections[0].File != "src/a.go" || selections[1].File != "src/b.go" {
		t.Errorf("unexpected files: %q, %q", selections[0].File, selections[1].File)
	}
}

func TestParseFinishRangeShapes(t *testing.T) {
	cases := []struct {
		name   string
		ranges string
		want   []model.Range
	}{
		{"objects", `[{"start": 1, "end": 10}]`, []model.Range{{Start: 1, End: 10}}},
		{"pairs", `[[3, 9]]`, []model.Range{{Start: 3, End: 9}}},
		{"dash strings", `["12-40"]`, []model.Range{{Start: 12, End: 40}}},
		{"scalar dash", `"12-40"`, []model.Range{{Start: 12, End: 40}}},
		{"scalar colon", `"12:40"`, []model.Range{{Start: 12, End: 40}}},
		{"object for array", `{"start": "5", "end": "8"}`, []model.Range{{Start: 5, End: 8}}},
		{"stringified array", `"[{\"start\": 2, \"end\": 6}]"`, []model.Range{{Start: 2, End: 6}}},
		{"bare number", `5`, nil},
		{"boundless object", `[{"bogus": true}]`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			args := fmt.Sprintf(`{"files": [{"file": "src/x.go", "ranges": %s}]}`, tc.ranges)
			_, selections, _ := ParseFinish([]byte(args))
			if len(selections) != 1 {
				t.Fatalf("expected the selection to survive, got %d", len(selections))
			}
			if diff := cmp.Diff(tc.want, selections[0].Ranges); diff != "" {
				t.Errorf("ranges mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFinishMalformedStringifiedRanges(t *testing.T) {
	args := `{"summary": "s", "files": [{"file": "src/config.ts", "ranges": "[{start:12, end:40}"}]}`

	_, selections, _ := ParseFinish([]byte(args))
	if len(selections) != 1 {
		t.Fatalf("expected the selection to survive, got %d", len(selections))
	}
	want := []model.Range{{Start: 12, End: 40}}
	if diff := cmp.Diff(want, selections[0].Ranges); diff != "" {
		t.Errorf("expected the range to be reconstructed (-want +got):\n%s", diff)
	}
}

func TestParseFinishStringifiedSymbols(t *testing.T) {
	args := `{"files": [{"file": "src/a.go", "symbols": "[\"login\", \"logout\"]"}]}`

	_, selections, _ := ParseFinish([]byte(args))
	if len(selections) != 1 {
		t.Fatalf("expected 1 selection, got %d", len(selections))
	}
	want := []string{"login", "logout"}
	if diff := cmp.Diff(want, selections[0].Symbols); diff != "" {
		t.Errorf("symbols mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFinishScalarSymbol(t *testing.T) {
	args := `{"files": [{"file": "src/a.go", "symbols": "login"}]}`

	_, selections, _ := ParseFinish([]byte(args))
	if len(selections) != 1 || len(selections[0].Symbols) != 1 || selections[0].Symbols[0] != "login" {
		t.Fatalf("expected single symbol login, got %v", selections)
	}
}

func TestParseFinishNotFoundSpellings(t *testing.T) {
	args := `{
		"summary": "partial",
		"files": [{"file": "src/a.go"}],
		"not_found": [" docs/missing.md ", "docs/missing.md", ""],
		"notFound": ["src/gone.ts", "docs/missing.md"]
	}`

	_, _, notFound := ParseFinish([]byte(args))
	want := []string{"docs/missing.md", "src/gone.ts"}
	if diff := cmp.Diff(want, notFound); diff != "" {
		t.Errorf("not-found mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFinishUnrecoverable(t *testing.T) {
	for _, args := range []string{"", "here are the files you wanted", "null"} {
		summary, selections, _ := ParseFinish([]byte(args))
		if summary != "" || len(selections) != 0 {
			t.Errorf("expected empty result for %q, got %q / %v", args, summary, selections)
		}
	}
}

func TestNormalizePaths(t *testing.T) {
	cases := []struct {
		in   string
		want string
		keep bool
	}{
		{"src/x.go", "src/x.go", true},
		{"./src/x.go", "src/x.go", true},
		{"  lib/y.ts  ", "lib/y.ts", true},
		{"src/../src/y.go", "src/y.go", true},
		{"", "", false},
		{"   ", "", false},
		{".", "", false},
		{"/etc/passwd", "", false},
		{"../escape.go", "", false},
		{"a/../../b.go", "", false},
	}
	for _, tc := range cases {
		out := Normalize([]model.FileSelection{{File: tc.in}})
		if !tc.keep {
			if len(out) != 0 {
				t.Errorf("expected %q to be dropped, got %v", tc.in, out)
			}
			continue
		}
		if len(out) != 1 {
			t.Errorf("expected %q to be kept, got %d selections", tc.in, len(out))
			continue
		}
		if out[0].File != tc.want {
			t.Errorf("expected %q to normalize to %q, got %q", tc.in, tc.want, out[0].File)
		}
	}
}

func TestNormalizeRanges(t *testing.T) {
	in := []model.FileSelection{{
		File: "src/x.go",
		Ranges: []model.Range{
			{Start: 0, End: 10},
			{Start: 5, End: 4},
			{Start: 3, End: 3},
			{Start: 3, End: 3},
		},
	}}
	out := Normalize(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 selection, got %d", len(out))
	}
	want := []model.Range{{Start: 1, End: 10}, {Start: 3, End: 3}}
	if diff := cmp.Diff(want, out[0].Ranges); diff != "" {
		t.Errorf("ranges mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeSymbols(t *testing.T) {
	in := []model.FileSelection{{
		File:    "src/x.go",
		Symbols: []string{"  login ", "login", "", "Login"},
	}}
	out := Normalize(in)
	want := []string{"login", "Login"}
	if diff := cmp.Diff(want, out[0].Symbols); diff != "" {
		t.Errorf("symbols mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeReasonAndConfidence(t *testing.T) {
	out := Normalize([]model.FileSelection{
		{File: "a.go"},
		{File: "b.go", Reason: "  spaced  ", Confidence: model.Confidence(42)},
	})
	if len(out) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(out))
	}
	if out[0].Reason != defaultReason {
		t.Errorf("expected default reason, got %q", out[0].Reason)
	}
	if out[1].Reason != "spaced" {
		t.Errorf("expected trimmed reason, got %q", out[1].Reason)
	}
	if out[1].Confidence != model.ConfidenceUnset {
		t.Errorf("expected out-of-range confidence to reset, got %v", out[1].Confidence)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	in := []model.FileSelection{
		{File: "./src/a.go", Ranges: []model.Range{{Start: 0, End: 12}}, Symbols: []string{" x ", "x"}},
		{File: "src/b.go", Reason: "kept", Confidence: model.ConfidenceLow},
	}
	once := Normalize(in)
	twice := Normalize(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("normalize is not idempotent (-once +twice):\n%s", diff)
	}
}

func TestParseFinishNeverPanicsOnHostileInput(t *testing.T) {
	hostile := []string{
		`{"files": [42, true, null]}`,
		`{"files": [[]]}`,
		`{"files": {"file": ["nested"]}}`,
		`{"summary": {"deep": {"deeper": 1}}, "files": "\"[\\\"quoted twice\\\"]\""}`,
		`{"files": [{"file": "ok.go", "ranges": [{"start": 1e9, "end": "not a number"}]}]}`,
	}
	for _, args := range hostile {
		var raw json.RawMessage = []byte(args)
		_, selections, _ := ParseFinish(raw)
		for _, sel := range selections {
			if sel.File == "" {
				t.Errorf("input %q produced a selection without a file", args)
			}
		}
	}
}
