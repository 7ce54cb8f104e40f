package engine

import "testing"

// spread builds indicators with a controlled max pairwise disagreement,
// centered on 0.5.
func spread(disagreement float64) EmotionalIndicators {
	lo := 0.5 - disagreement/2
	hi := 0.5 + disagreement/2
	return EmotionalIndicators{
		Sentiment:      Signal{Kind: FactorSentiment, Score: lo},
		Psychological:  Signal{Kind: FactorPsychological, Score: hi},
		Relationship:   Signal{Kind: FactorRelationship, Score: 0.5},
		Conversational: Signal{Kind: FactorConversational, Score: 0.5},
		Historical:     Signal{Kind: FactorHistorical, Score: 0.5},
	}
}

// Core behavioral contract: confidence never increases as inter-signal
// disagreement grows, everything else held fixed.
func TestConfidenceMonotoneInDisagreement(t *testing.T) {
	ctx := scenarioContext()

	prev := 2.0
	for _, d := range []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.8, 1.0} {
		conf, _ := CalculateConfidence(spread(d), ctx)
		if conf > prev {
			t.Errorf("disagreement %.1f: confidence %.3f rose above %.3f", d, conf, prev)
		}
		prev = conf
	}
}

func TestConfidenceRange(t *testing.T) {
	for _, d := range []float64{0, 0.5, 1.0} {
		for _, ctx := range []*EmotionalContext{nil, scenarioContext()} {
			conf, _ := CalculateConfidence(spread(d), ctx)
			if conf < 0 || conf > 1 {
				t.Errorf("confidence %.3f outside [0,1]", conf)
			}
		}
	}
}

func TestAmbiguousInputNeverHighConfidence(t *testing.T) {
	// Coherent signals, strong context, but the sentiment extractor flagged
	// mixed polarity: confidence must stay at or below the ceiling.
	ind := spread(0)
	ind.Sentiment.Uncertain = true

	conf, areas := CalculateConfidence(ind, scenarioContext())
	if conf > ambiguityCeiling {
		t.Errorf("confidence = %.3f, want <= %.2f for ambiguous input", conf, ambiguityCeiling)
	}
	if !hasArea(areas, "mixed sentiment polarity") {
		t.Errorf("areas = %v, want mixed sentiment polarity", areas)
	}
}

func TestMissingContextSurfacesUncertainty(t *testing.T) {
	conf, areas := CalculateConfidence(spread(0.1), nil)
	if !hasArea(areas, "missing relationship metadata") {
		t.Errorf("areas = %v, missing relationship tag", areas)
	}
	if !hasArea(areas, "no historical baseline") {
		t.Errorf("areas = %v, missing baseline tag", areas)
	}

	full, _ := CalculateConfidence(spread(0.1), scenarioContext())
	if conf >= full {
		t.Errorf("missing context confidence %.3f should be below complete context %.3f", conf, full)
	}
}

func hasArea(areas []string, want string) bool {
	for _, a := range areas {
		if a == want {
			return true
		}
	}
	return false
}
