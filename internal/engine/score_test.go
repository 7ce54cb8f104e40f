package engine

import (
	"errors"
	"math"
	"testing"
)

func uniformIndicators(v float64) EmotionalIndicators {
	return EmotionalIndicators{
		Sentiment:      Signal{Kind: FactorSentiment, Score: v},
		Psychological:  Signal{Kind: FactorPsychological, Score: v},
		Relationship:   Signal{Kind: FactorRelationship, Score: v},
		Conversational: Signal{Kind: FactorConversational, Score: v},
		Historical:     Signal{Kind: FactorHistorical, Score: v},
	}
}

func TestMoodScoreRangeInvariant(t *testing.T) {
	cases := []EmotionalIndicators{
		uniformIndicators(0),
		uniformIndicators(1),
		uniformIndicators(0.5),
		{
			Sentiment:      Signal{Kind: FactorSentiment, Score: 1},
			Psychological:  Signal{Kind: FactorPsychological, Score: 0},
			Relationship:   Signal{Kind: FactorRelationship, Score: 1},
			Conversational: Signal{Kind: FactorConversational, Score: 0},
			Historical:     Signal{Kind: FactorHistorical, Score: 1},
		},
	}

	for i, ind := range cases {
		score, err := CalculateMoodScore(ind, nil, DefaultWeights())
		if err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}
		if score.Value < 0 || score.Value > 10 {
			t.Errorf("case %d: value %.2f outside [0,10]", i, score.Value)
		}
		if score.Confidence < 0 || score.Confidence > 1 {
			t.Errorf("case %d: confidence %.2f outside [0,1]", i, score.Confidence)
		}
	}
}

func TestMoodScoreRejectsOutOfRangeIndicator(t *testing.T) {
	ind := uniformIndicators(0.5)
	ind.Psychological.Score = 1.3

	_, err := CalculateMoodScore(ind, nil, DefaultWeights())
	var rangeErr *IndicatorRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("error = %v, want IndicatorRangeError", err)
	}
	if rangeErr.Factor != FactorPsychological {
		t.Errorf("Factor = %s, want psychological", rangeErr.Factor)
	}
}

// Structured indicator payload from the upstream pipeline: mixed-negative
// sentiment, high stress, strong relationship, mood below baseline.
func scenarioRawIndicators() RawIndicators {
	var raw RawIndicators
	raw.Sentiment.Positive = 0.3
	raw.Sentiment.Negative = 0.6
	raw.Sentiment.Neutral = 0.1
	raw.Psychological.Stress = 0.7
	raw.Psychological.Coping = 0.4
	raw.Psychological.Resilience = 0.6
	raw.Relationship.Support = 0.8
	raw.Relationship.Intimacy = 0.7
	raw.Conversational.Flow = 0.5
	raw.Conversational.Engagement = 0.6
	raw.Historical.Baseline = 5.2
	raw.Historical.Deviation = -1.8
	return raw
}

func scenarioContext() *EmotionalContext {
	return &EmotionalContext{
		ParticipantID:        "alice",
		Relationship:         &RelationshipInfo{Closeness: 0.7, HistoryLen: 40, Supportive: true},
		Baseline:             &EmotionalBaseline{TypicalLow: 4.2, TypicalHigh: 6.2, Stability: 0.8},
		ExtractionConfidence: 0.9,
	}
}

func TestScoreStressedButSupported(t *testing.T) {
	ind, err := scenarioRawIndicators().Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	score, err := CalculateMoodScore(ind, scenarioContext(), DefaultWeights())
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	if math.Abs(score.Value-4.2) > 0.25 {
		t.Errorf("value = %.2f, want ~4.2", score.Value)
	}
	if math.Abs(score.Confidence-0.85) > 0.1 {
		t.Errorf("confidence = %.3f, want ~0.85", score.Confidence)
	}

	// Relationship (0.75) and sentiment (0.20) disagree by more than 0.5,
	// so the result must carry a disagreement tag.
	found := false
	for _, area := range score.UncertaintyAreas {
		if area != "" && containsWord(area, "disagreement") {
			found = true
		}
	}
	if !found {
		t.Errorf("uncertainty areas %v missing disagreement tag", score.UncertaintyAreas)
	}
}

func TestScoreDeterministic(t *testing.T) {
	ind, _ := scenarioRawIndicators().Normalize()
	ctx := scenarioContext()

	a, err := CalculateMoodScore(ind, ctx, DefaultWeights())
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	b, _ := CalculateMoodScore(ind, ctx, DefaultWeights())

	if a.Value != b.Value || a.Confidence != b.Confidence {
		t.Errorf("recomputation differs: (%.2f, %.3f) vs (%.2f, %.3f)", a.Value, a.Confidence, b.Value, b.Confidence)
	}
}

func TestDescriptorsRequireEvidence(t *testing.T) {
	ind := uniformIndicators(0.9)
	// High scores but no evidence anywhere: nothing is descriptor-worthy.
	score, err := CalculateMoodScore(ind, nil, DefaultWeights())
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if len(score.Descriptors) != 0 {
		t.Errorf("descriptors = %v, want none without evidence", score.Descriptors)
	}

	ind.Relationship.Evidence = []string{"closeness metadata present", "relationship marked supportive"}
	score, _ = CalculateMoodScore(ind, nil, DefaultWeights())
	if len(score.Descriptors) != 1 || score.Descriptors[0] != "supported" {
		t.Errorf("descriptors = %v, want [supported]", score.Descriptors)
	}
}

func TestOneDecimalPrecision(t *testing.T) {
	ind := uniformIndicators(0.333)
	score, err := CalculateMoodScore(ind, nil, DefaultWeights())
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if math.Abs(score.Value*10-math.Round(score.Value*10)) > 1e-9 {
		t.Errorf("value %.4f not one-decimal precision", score.Value)
	}
}
