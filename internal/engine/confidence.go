package engine

import "math"

// Confidence factor weights. Coherence carries as much weight as the
// upstream extraction confidence: signals that agree are the strongest
// internal evidence the score means something.
const (
	confWeightExtraction  = 0.30
	confWeightCoherence   = 0.30
	confWeightCompletness = 0.20
	confWeightBaseline    = 0.20

	// defaultExtractionConfidence applies when the upstream pipeline did not
	// supply one (context absent or zero value).
	defaultExtractionConfidence = 0.9

	// ambiguityCeiling caps confidence whenever any extractor flagged its
	// input as ambiguous or missing. Complex inputs never silently score
	// high confidence.
	ambiguityCeiling = 0.75
)

// CalculateConfidence estimates how reliable a mood score derived from these
// indicators is, and lists the areas driving any uncertainty.
//
// The contract: confidence decreases monotonically as inter-signal
// disagreement grows, all else held fixed.
func CalculateConfidence(ind EmotionalIndicators, ctx *EmotionalContext) (float64, []string) {
	var areas []string

	extraction := defaultExtractionConfidence
	if ctx != nil && ctx.ExtractionConfidence > 0 {
		extraction = clamp01(ctx.ExtractionConfidence)
	}

	disagreement := ind.maxDisagreement()
	coherence := 1 - 0.7*disagreement
	if area, ok := disagreementArea(ind); ok {
		areas = append(areas, area)
	}

	completeness := 0.4
	if ctx != nil && ctx.Relationship != nil {
		completeness = 1.0
	} else {
		areas = append(areas, "missing relationship metadata")
	}

	baselineConsistency := 0.5
	if ctx != nil && ctx.Baseline != nil {
		mid := (ctx.Baseline.TypicalLow + ctx.Baseline.TypicalHigh) / 2
		deviation := math.Abs(ind.Historical.Score*10 - mid)
		baselineConsistency = clamp01(1 - deviation/10)
	} else {
		areas = append(areas, "no historical baseline")
	}

	confidence := confWeightExtraction*extraction +
		confWeightCoherence*coherence +
		confWeightCompletness*completeness +
		confWeightBaseline*baselineConsistency

	// Ambiguity flags from any extractor cap the result.
	ambiguous := false
	for _, s := range ind.Signals() {
		if s.Uncertain {
			ambiguous = true
			switch s.Kind {
			case FactorSentiment:
				areas = append(areas, "mixed sentiment polarity")
			case FactorConversational:
				areas = append(areas, "sparse conversational signal")
			}
		}
	}
	if ambiguous && confidence > ambiguityCeiling {
		confidence = ambiguityCeiling
	}

	return clamp01(confidence), dedupeStrings(areas)
}

func dedupeStrings(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
