package packer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"foray/config"
	"foray/model"
)

func defaultBudgetConfig() config.BudgetConfig {
	return config.BudgetConfig{
		SoftBase:     16000,
		SoftPerQuery: 6000,
		SoftMax:      40000,
		HardBase:     24000,
		HardPerQuery: 9000,
		HardMax:      60000,
	}
}

func TestBudgetForScaling(t *testing.T) {
	cfg := defaultBudgetConfig()
	cases := []struct {
		queries    int
		soft, hard int
	}{
		{0, 16000, 24000},
		{1, 16000, 24000},
		{2, 22000, 33000},
		{4, 34000, 51000},
		{5, 40000, 60000},
		{9, 40000, 60000},
	}
	for _, tc := range cases {
		got := BudgetFor(tc.queries, cfg)
		if got.Soft != tc.soft || got.Hard != tc.hard {
			t.Errorf("BudgetFor(%d): expected {%d %d}, got {%d %d}",
				tc.queries, tc.soft, tc.hard, got.Soft, got.Hard)
		}
	}
}

func TestBudgetSoftClampedToHard(t *testing.T) {
	cfg := config.BudgetConfig{
		SoftBase: 50000, SoftMax: 80000,
		HardBase: 30000, HardMax: 35000,
	}
	got := BudgetFor(1, cfg)
	if got.Soft != 30000 || got.Hard != 30000 {
		t.Errorf("expected soft clamped to hard {30000 30000}, got {%d %d}", got.Soft, got.Hard)
	}
}

func TestValueWeights(t *testing.T) {
	cases := []struct {
		name  string
		chunk model.ResolvedChunk
		want  float64
	}{
		{
			name: "high confidence with symbols and ranges",
			chunk: model.ResolvedChunk{
				Selection: model.MergedSelection{FileSelection: model.FileSelection{
					File:       "a.go",
					Ranges:     []model.Range{{Start: 1, End: 100}},
					Confidence: model.ConfidenceHigh,
				}},
				Lines:           100,
				TotalLines:      1000,
				ResolvedSymbols: []string{"Handler"},
			},
			want: 7.0,
		},
		{
			name: "unset confidence fallback read",
			chunk: model.ResolvedChunk{
				Selection:    model.MergedSelection{FileSelection: model.FileSelection{File: "b.go"}},
				Lines:        120,
				TotalLines:   1000,
				FallbackUsed: true,
			},
			want: -0.5,
		},
		{
			name: "shared across three queries",
			chunk: model.ResolvedChunk{
				Selection: model.MergedSelection{
					FileSelection: model.FileSelection{File: "c.go", Confidence: model.ConfidenceMedium},
					QueryCount:    3,
					Shared:        true,
				},
				Lines:      10,
				TotalLines: 1000,
			},
			want: 4.75,
		},
		{
			name: "near-whole large file",
			chunk: model.ResolvedChunk{
				Selection: model.MergedSelection{FileSelection: model.FileSelection{
					File:       "d.go",
					Ranges:     []model.Range{{Start: 1, End: 380}},
					Confidence: model.ConfidenceLow,
				}},
				Lines:      380,
				TotalLines: 400,
			},
			want: 0.0,
		},
		{
			name: "oversize span total",
			chunk: model.ResolvedChunk{
				Selection:  model.MergedSelection{FileSelection: model.FileSelection{File: "e.go", Confidence: model.ConfidenceLow}},
				Lines:      501,
				TotalLines: 2000,
			},
			want: 0.0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Value(tc.chunk); got != tc.want {
				t.Errorf("expected value %v, got %v", tc.want, got)
			}
		})
	}
}

func lowChunk(file string, tokens int) model.ResolvedChunk {
	return model.ResolvedChunk{
		Selection: model.MergedSelection{FileSelection: model.FileSelection{
			File:       file,
			Confidence: model.ConfidenceLow,
		}},
		Lines:           10,
		TotalLines:      1000,
		EstimatedTokens: tokens,
	}
}

func highChunk(file string, tokens int) model.ResolvedChunk {
	chunk := lowChunk(file, tokens)
	chunk.Selection.Confidence = model.ConfidenceHigh
	return chunk
}

func includedFiles(res Result) []string {
	files := make([]string, 0, len(res.Included))
	for _, c := range res.Included {
		files = append(files, c.Selection.File)
	}
	return files
}

func TestPackSoftThenStrong(t *testing.T) {
	budget := model.Budget{Soft: 100, Hard: 200}
	chunks := []model.ResolvedChunk{
		highChunk("strong.go", 120),
		lowChunk("cheap.go", 30),
		lowChunk("weak-big.go", 120),
	}

	res := Pack(chunks, budget)
	if diff := cmp.Diff([]string{"cheap.go", "strong.go"}, includedFiles(res)); diff != "" {
		t.Errorf("included mismatch (-want +got):\n%s", diff)
	}
	if len(res.Omitted) != 1 || res.Omitted[0].Selection.File != "weak-big.go" {
		t.Errorf("expected weak-big.go omitted, got %v", res.Omitted)
	}
	if res.UsedTokens != 150 {
		t.Errorf("expected 150 used tokens, got %d", res.UsedTokens)
	}
}

func TestPackHardCapsStrongChunks(t *testing.T) {
	budget := model.Budget{Soft: 50, Hard: 100}
	chunks := []model.ResolvedChunk{
		highChunk("a.go", 60),
		highChunk("b.go", 60),
	}

	res := Pack(chunks, budget)
	if diff := cmp.Diff([]string{"a.go"}, includedFiles(res)); diff != "" {
		t.Errorf("included mismatch (-want +got):\n%s", diff)
	}
	if res.UsedTokens > budget.Hard {
		t.Errorf("used tokens %d exceed hard ceiling %d", res.UsedTokens, budget.Hard)
	}
}

func TestPackForceAcceptsBestCandidate(t *testing.T) {
	budget := model.Budget{Soft: 10, Hard: 20}
	chunks := []model.ResolvedChunk{
		lowChunk("b.go", 60),
		lowChunk("a.go", 50),
	}

	res := Pack(chunks, budget)
	if diff := cmp.Diff([]string{"a.go"}, includedFiles(res)); diff != "" {
		t.Errorf("expected the densest candidate force-accepted (-want +got):\n%s", diff)
	}
	if len(res.Omitted) != 1 || res.Omitted[0].Selection.File != "b.go" {
		t.Errorf("expected b.go omitted, got %v", res.Omitted)
	}
}

func TestPackOmittedEnumeration(t *testing.T) {
	budget := model.Budget{Soft: 80, Hard: 80}
	chunks := []model.ResolvedChunk{
		lowChunk("a.go", 40),
		lowChunk("b.go", 40),
		lowChunk("c.go", 40),
		lowChunk("d.go", 40),
		lowChunk("e.go", 40),
	}

	res := Pack(chunks, budget)
	if len(res.Included) == 0 {
		t.Fatal("expected at least one included chunk")
	}
	if len(res.Omitted) != len(chunks)-len(res.Included) {
		t.Errorf("omitted count %d != candidates %d - included %d",
			len(res.Omitted), len(chunks), len(res.Included))
	}
	if diff := cmp.Diff([]string{"a.go", "b.go"}, includedFiles(res)); diff != "" {
		t.Errorf("included mismatch (-want +got):\n%s", diff)
	}
}

func TestPackDeterministicAcrossInputOrder(t *testing.T) {
	budget := model.Budget{Soft: 1000, Hard: 2000}
	chunks := []model.ResolvedChunk{
		highChunk("a.go", 10),
		lowChunk("b.go", 20),
		lowChunk("c.go", 400),
		highChunk("d.go", 300),
	}
	reversed := []model.ResolvedChunk{chunks[3], chunks[2], chunks[1], chunks[0]}

	first := Pack(chunks, budget)
	second := Pack(reversed, budget)
	if diff := cmp.Diff(includedFiles(first), includedFiles(second)); diff != "" {
		t.Errorf("packing depends on input order:\n%s", diff)
	}
}

func TestPackEmptyInput(t *testing.T) {
	res := Pack(nil, model.Budget{Soft: 100, Hard: 200})
	if len(res.Included) != 0 || len(res.Omitted) != 0 || res.UsedTokens != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}
