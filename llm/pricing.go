// Cost estimation from published per-token pricing.
//
// Rates are USD per million tokens. PromptTokens is expected to count
// all input tokens including the cached portion; the cache fields break
// out what was read from or written to the prompt cache, so the
// uncached share is Prompt - CacheRead - CacheWrite.

package llm

import (
	"foray/internal/dsa"
)

type rates struct {
	input      float64
	output     float64
	cacheRead  float64
	cacheWrite float64
}

// modelRates is keyed by model-name prefix so dated releases share
// their family's entry (claude-sonnet-4-20250514 matches
// claude-sonnet-4).
var modelRates = map[string]rates{
	// OpenAI
	"gpt-5.2-codex": {input: 1.25, output: 10.00, cacheRead: 0.125},
	"gpt-5.2":       {input: 1.25, output: 10.00, cacheRead: 0.125},
	"gpt-5":         {input: 1.25, output: 10.00, cacheRead: 0.125},
	"gpt-4o-mini":   {input: 0.15, output: 0.60, cacheRead: 0.075},
	"gpt-4o":        {input: 2.50, output: 10.00, cacheRead: 1.25},
	"o3-mini":       {input: 1.10, output: 4.40, cacheRead: 0.55},
	"o1":            {input: 15.00, output: 60.00, cacheRead: 7.50},

	// Anthropic
	"claude-opus-4-5":  {input: 5.00, output: 25.00, cacheRead: 0.50, cacheWrite: 6.25},
	"claude-sonnet-4":  {input: 3.00, output: 15.00, cacheRead: 0.30, cacheWrite: 3.75},
	"claude-haiku-4":   {input: 1.00, output: 5.00, cacheRead: 0.10, cacheWrite: 1.25},
	"claude-opus-4":    {input: 15.00, output: 75.00, cacheRead: 1.50, cacheWrite: 18.75},
	"claude-3-5-haiku": {input: 0.80, output: 4.00, cacheRead: 0.08, cacheWrite: 1.00},

	// DeepSeek
	"deepseek-chat":     {input: 0.27, output: 1.10, cacheRead: 0.07},
	"deepseek-v3":       {input: 0.27, output: 1.10, cacheRead: 0.07},
	"deepseek-r1":       {input: 0.55, output: 2.19, cacheRead: 0.14},
	"deepseek-reasoner": {input: 0.55, output: 2.19, cacheRead: 0.14},

	// Gemini
	"gemini-3-pro":        {input: 2.00, output: 12.00, cacheRead: 0.50},
	"gemini-3-deep-think": {input: 2.00, output: 12.00, cacheRead: 0.50},
	"gemini-3-flash":      {input: 0.30, output: 2.50, cacheRead: 0.075},
	"gemini-2.5-flash":    {input: 0.30, output: 2.50, cacheRead: 0.075},
	"gemini-2.0-flash":    {input: 0.10, output: 0.40, cacheRead: 0.025},
	"gemini-2.0-pro":      {input: 1.25, output: 5.00, cacheRead: 0.31},
}

var priceIndex = newPriceIndex()

func newPriceIndex() *dsa.Trie[rates] {
	t := dsa.NewTrie[rates]()
	for prefix, r := range modelRates {
		t.Insert(prefix, r)
	}
	return t
}

// lookupRates finds the longest prefix entry matching the model name.
func lookupRates(model string) (rates, bool) {
	_, r, ok := priceIndex.LongestPrefix(model)
	return r, ok
}

// costOf estimates the USD cost of one call. Unknown models cost zero
// rather than guessing.
func costOf(model string, u TokenUsage) float64 {
	r, ok := lookupRates(model)
	if !ok {
		return 0
	}

	cached := u.CacheReadTokens + u.CacheWriteTokens
	uncached := u.PromptTokens
	if cached < uncached {
		uncached -= cached
	} else {
		uncached = 0
	}

	cost := float64(uncached)*r.input +
		float64(u.CacheReadTokens)*r.cacheRead +
		float64(u.CacheWriteTokens)*r.cacheWrite +
		float64(u.CompletionTokens)*r.output
	return cost / 1e6
}

// applyCost fills usage.Cost from the model's pricing entry.
func applyCost(model string, usage *TokenUsage) {
	if usage == nil {
		return
	}
	usage.Cost = costOf(model, *usage)
}
