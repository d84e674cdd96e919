package scanner

import (
	"reflect"
	"testing"
)

func TestBuildPatternsDropsStopwordsAndShortTokens(t *testing.T) {
	got := BuildPatterns("How does the DB store expire entries?", nil)

	for _, banned := range []string{"how", "does", "the", "db"} {
		for _, p := range got {
			if p == banned {
				t.Errorf("expected %q to be filtered out, got %v", banned, got)
			}
		}
	}
	found := false
	for _, p := range got {
		if p == "store" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected store to survive, got %v", got)
	}
}

func TestBuildPatternsAddsStemmedVariants(t *testing.T) {
	got := BuildPatterns("running connection", nil)
	want := []string{"running", "run", "connection", "connect"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBuildPatternsDedupesStems(t *testing.T) {
	got := BuildPatterns("connect connection connected", nil)
	want := []string{"connect", "connection", "connected"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBuildPatternsIncludesHints(t *testing.T) {
	got := BuildPatterns("payment flow", []string{"StripeClient"})
	if len(got) < 3 || got[0] != "payment" || got[1] != "flow" || got[2] != "stripeclient" {
		t.Errorf("expected lowercased hint after query tokens, got %v", got)
	}
}

func TestBuildPatternsEmptyQuery(t *testing.T) {
	if got := BuildPatterns("", nil); len(got) != 0 {
		t.Errorf("expected no patterns, got %v", got)
	}
	if got := BuildPatterns("the of an", nil); len(got) != 0 {
		t.Errorf("expected no patterns from stopwords, got %v", got)
	}
}
