package config

import (
	"os"
	"testing"
	"time"
)

func TestNewValidProvider(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
}

func TestNewWithAlias(t *testing.T) {
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Provider)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("unknown_provider")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewDefaults(t *testing.T) {
	settings, err := New("anthropic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Agent.SoftIterations != 8 {
		t.Errorf("expected default soft iterations 8, got %d", settings.Agent.SoftIterations)
	}
	if settings.Agent.MaxIterations != 12 {
		t.Errorf("expected default max iterations 12, got %d", settings.Agent.MaxIterations)
	}
	if settings.Agent.RetryWindow != 30*time.Second {
		t.Errorf("expected default retry window 30s, got %v", settings.Agent.RetryWindow)
	}
	if settings.Budget.SoftBase != 16000 {
		t.Errorf("expected default soft base 16000, got %d", settings.Budget.SoftBase)
	}
	if settings.Budget.HardMax != 60000 {
		t.Errorf("expected default hard max 60000, got %d", settings.Budget.HardMax)
	}
	if settings.Scan.TopFiles != 40 {
		t.Errorf("expected default scan top files 40, got %d", settings.Scan.TopFiles)
	}
}

func TestSoftIterationsClampedToMax(t *testing.T) {
	origSoft := os.Getenv("AGENT_SOFT_ITERATIONS")
	origMax := os.Getenv("AGENT_MAX_ITERATIONS")
	os.Setenv("AGENT_SOFT_ITERATIONS", "20")
	os.Setenv("AGENT_MAX_ITERATIONS", "10")
	defer func() {
		os.Setenv("AGENT_SOFT_ITERATIONS", origSoft)
		os.Setenv("AGENT_MAX_ITERATIONS", origMax)
	}()

	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Agent.SoftIterations != 10 {
		t.Errorf("expected soft iterations clamped to 10, got %d", settings.Agent.SoftIterations)
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Setenv("OPENAI_API_KEY", original)

	key, err := APIKeyFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", original)

	_, err := APIKeyFor("openai")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	_, err := APIKeyFor("unknown")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestModelFor(t *testing.T) {
	model, err := ModelFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model == "" {
		t.Error("expected non-empty model")
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	original := os.Getenv("LLM_MAX_TOKENS")
	os.Setenv("LLM_MAX_TOKENS", "not-a-number")
	defer os.Setenv("LLM_MAX_TOKENS", original)

	_, err := New("openai")
	if err == nil {
		t.Error("expected error for invalid LLM_MAX_TOKENS")
	}
}

func TestNewWithInvalidBudgetVar(t *testing.T) {
	original := os.Getenv("CONTEXT_HARD_MAX")
	os.Setenv("CONTEXT_HARD_MAX", "lots")
	defer os.Setenv("CONTEXT_HARD_MAX", original)

	_, err := New("openai")
	if err == nil {
		t.Error("expected error for invalid CONTEXT_HARD_MAX")
	}
}

func TestMustNewPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for unknown provider")
		}
	}()
	MustNew("unknown_provider")
}

func TestSupportedProviders(t *testing.T) {
	providers := SupportedProviders()
	if len(providers) == 0 {
		t.Error("expected at least one supported provider")
	}
}
