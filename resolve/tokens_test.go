package resolve

import "testing"

func TestEstimateTokensEmpty(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", got)
	}
}

func TestEstimateTokensTinyCases(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"x", 2},
		{"()", 2},
		{"hello world", 5},
		{`s := "abcde"`, 5},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%q): expected %d, got %d", tc.text, tc.want, got)
		}
	}
}

func TestEstimateTokensPerLineOverhead(t *testing.T) {
	oneLine := EstimateTokens("abc")
	threeLines := EstimateTokens("a\nb\nc")
	if threeLines <= oneLine {
		t.Errorf("expected per-line overhead to dominate: %d vs %d", threeLines, oneLine)
	}
}

func TestEstimateTokensDeterministic(t *testing.T) {
	text := "func handler(w http.ResponseWriter, r *http.Request) {\n\tw.Write([]byte(\"ok\"))\n}"
	first := EstimateTokens(text)
	second := EstimateTokens(text)
	if first != second {
		t.Errorf("estimate is not deterministic: %d vs %d", first, second)
	}
	if first == 0 {
		t.Error("expected a non-zero estimate for code text")
	}
}

func TestEstimateTokensMonotoneGrowth(t *testing.T) {
	base := "if err != nil {\n\treturn err\n}"
	grown := base + "\nreturn session.Validate(token)"
	if EstimateTokens(grown) <= EstimateTokens(base) {
		t.Error("expected estimate to grow with appended code")
	}
}
