// Package packer chooses which resolved chunks fit within the two-tier
// token budget using a greedy value-density policy. Packing is
// deterministic: identical inputs yield identical output in identical
// order.
package packer

import (
	"sort"

	"foray/config"
	"foray/model"
)

// Value weights. These are calibration knobs; changing them reorders
// packing preferences but breaks no invariant.
const (
	valueHigh   = 3.0
	valueMedium = 2.0
	valueLow    = 1.0
	valueUnset  = 0.5

	sharedBonus        = 2.0
	extraSharerBonus   = 0.75
	symbolBonus        = 2.0
	explicitRangeBonus = 1.0
	idealSizeBonus     = 1.0
	oversizePenalty    = 1.0
	fallbackPenalty    = 2.0
	wholeFilePenalty   = 2.0

	idealMinLines     = 20
	idealMaxLines     = 300
	oversizeLines     = 400
	wholeFileRatio    = 0.9
	wholeFileMinLines = 300
)

// BudgetFor computes the two-tier token ceilings for a query count.
// Both tiers grow per added query and saturate at their maxima; soft
// never exceeds hard.
func BudgetFor(queryCount int, cfg config.BudgetConfig) model.Budget {
	if queryCount < 1 {
		queryCount = 1
	}
	soft := cfg.SoftBase + cfg.SoftPerQuery*(queryCount-1)
	if soft > cfg.SoftMax {
		soft = cfg.SoftMax
	}
	hard := cfg.HardBase + cfg.HardPerQuery*(queryCount-1)
	if hard > cfg.HardMax {
		hard = cfg.HardMax
	}
	if soft > hard {
		soft = hard
	}
	return model.Budget{Soft: soft, Hard: hard}
}

// Value scores a chunk's usefulness independent of its token cost.
func Value(chunk model.ResolvedChunk) float64 {
	var value float64
	switch chunk.Selection.Confidence {
	case model.ConfidenceHigh:
		value += valueHigh
	case model.ConfidenceMedium:
		value += valueMedium
	case model.ConfidenceLow:
		value += valueLow
	default:
		value += valueUnset
	}
	if chunk.Selection.Shared {
		value += sharedBonus
		if extra := chunk.Selection.QueryCount - 2; extra > 0 {
			value += extraSharerBonus * float64(extra)
		}
	}
	if len(chunk.ResolvedSymbols) > 0 {
		value += symbolBonus
	}
	if len(chunk.Selection.Ranges) > 0 {
		value += explicitRangeBonus
	}
	if chunk.Lines >= idealMinLines && chunk.Lines <= idealMaxLines {
		value += idealSizeBonus
	}
	if chunk.Lines > oversizeLines {
		value -= oversizePenalty
	}
	if chunk.FallbackUsed {
		value -= fallbackPenalty
	}
	if chunk.TotalLines > wholeFileMinLines &&
		float64(chunk.Lines) >= wholeFileRatio*float64(chunk.TotalLines) {
		value -= wholeFilePenalty
	}
	return value
}

// strong marks chunks allowed to spend budget past the soft ceiling:
// high confidence, or shared with a resolved symbol, or two or more
// resolved symbols without fallback.
func strong(chunk model.ResolvedChunk) bool {
	if chunk.Selection.Confidence == model.ConfidenceHigh {
		return true
	}
	if chunk.Selection.Shared && len(chunk.ResolvedSymbols) >= 1 {
		return true
	}
	return len(chunk.ResolvedSymbols) >= 2 && !chunk.FallbackUsed
}

// Result is the packing outcome. Every candidate lands in exactly one
// of Included or Omitted.
type Result struct {
	Included   []model.ResolvedChunk
	Omitted    []model.ResolvedChunk
	Budget     model.Budget
	UsedTokens int
}

type scored struct {
	chunk   model.ResolvedChunk
	value   float64
	density float64
}

// Pack walks candidates in density order, accepting chunks while the
// running cost stays within the soft ceiling, then only strong chunks
// that still fit within the hard ceiling. If nothing was accepted and
// candidates exist, the single best candidate is accepted regardless.
func Pack(chunks []model.ResolvedChunk, budget model.Budget) Result {
	ordered := make([]scored, 0, len(chunks))
	for _, chunk := range chunks {
		value := Value(chunk)
		cost := chunk.EstimatedTokens
		if cost < 1 {
			cost = 1
		}
		ordered = append(ordered, scored{
			chunk:   chunk,
			value:   value,
			density: value / float64(cost),
		})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].density != ordered[j].density {
			return ordered[i].density > ordered[j].density
		}
		if ordered[i].value != ordered[j].value {
			return ordered[i].value > ordered[j].value
		}
		if ordered[i].chunk.EstimatedTokens != ordered[j].chunk.EstimatedTokens {
			return ordered[i].chunk.EstimatedTokens < ordered[j].chunk.EstimatedTokens
		}
		return ordered[i].chunk.Selection.File < ordered[j].chunk.Selection.File
	})

	res := Result{Budget: budget}
	for _, s := range ordered {
		cost := s.chunk.EstimatedTokens
		switch {
		case res.UsedTokens+cost <= budget.Soft:
			res.Included = append(res.Included, s.chunk)
			res.UsedTokens += cost
		case strong(s.chunk) && res.UsedTokens+cost <= budget.Hard:
			res.Included = append(res.Included, s.chunk)
			res.UsedTokens += cost
		default:
			res.Omitted = append(res.Omitted, s.chunk)
		}
	}

	// Chunk sizes are capped upstream, so a single chunk always fits;
	// still, never return an empty payload while candidates exist.
	if len(res.Included) == 0 && len(ordered) > 0 {
		res.Included = append(res.Included, ordered[0].chunk)
		res.UsedTokens = ordered[0].chunk.EstimatedTokens
		res.Omitted = res.Omitted[1:]
	}
	return res
}
