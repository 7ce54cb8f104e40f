package engine

import (
	"fmt"
	"time"
)

// Weights are the per-factor contributions to the mood score. They are
// configuration, not constants: the calibrator may ship adjusted weights in
// a new threshold version.
type Weights struct {
	Sentiment      float64 `json:"sentiment" toml:"sentiment"`
	Psychological  float64 `json:"psychological" toml:"psychological"`
	Relationship   float64 `json:"relationship" toml:"relationship"`
	Conversational float64 `json:"conversational" toml:"conversational"`
	Historical     float64 `json:"historical" toml:"historical"`
}

// DefaultWeights returns the standard factor weighting.
func DefaultWeights() Weights {
	return Weights{
		Sentiment:      0.35,
		Psychological:  0.25,
		Relationship:   0.20,
		Conversational: 0.15,
		Historical:     0.05,
	}
}

// disagreementThreshold: two sub-scores further apart than this get an
// explicit uncertainty tag instead of being silently averaged away.
const disagreementThreshold = 0.5

// factorDescriptors maps each factor's high/low reading to a short label.
// A descriptor is only emitted when the sub-score is extreme and backed by
// at least two pieces of evidence.
var factorDescriptors = map[FactorKind][2]string{
	FactorSentiment:      {"distressed", "upbeat"},
	FactorPsychological:  {"stressed", "resilient"},
	FactorRelationship:   {"isolated", "supported"},
	FactorConversational: {"withdrawn", "engaged"},
	FactorHistorical:     {"subdued", "buoyant"},
}

// CalculateMoodScore combines the five sub-scores into a 0-10 mood score
// with descriptors, confidence, and uncertainty areas. Deterministic for a
// given (indicators, context, weights); the result is never mutated.
// Recomputation produces a new instance.
func CalculateMoodScore(ind EmotionalIndicators, ctx *EmotionalContext, w Weights) (MoodScore, error) {
	if err := ind.Validate(); err != nil {
		return MoodScore{}, err
	}

	raw := w.Sentiment*ind.Sentiment.Score +
		w.Psychological*ind.Psychological.Score +
		w.Relationship*ind.Relationship.Score +
		w.Conversational*ind.Conversational.Score +
		w.Historical*ind.Historical.Score

	value := round1(10 * raw)
	if value < 0 {
		value = 0
	}
	if value > 10 {
		value = 10
	}

	confidence, uncertainty := CalculateConfidence(ind, ctx)

	score := MoodScore{
		Value:            value,
		Confidence:       confidence,
		Descriptors:      descriptors(ind),
		UncertaintyAreas: uncertainty,
		Timestamp:        time.Now(),
	}
	if ctx != nil {
		score.ParticipantID = ctx.ParticipantID
	}
	return score, nil
}

// descriptors derives short emotional labels from sub-scores that are both
// high-magnitude and high-evidence.
func descriptors(ind EmotionalIndicators) []string {
	var out []string
	for _, s := range ind.Signals() {
		labels, ok := factorDescriptors[s.Kind]
		if !ok || len(s.Evidence) < 2 || s.Uncertain {
			continue
		}
		switch {
		case s.Score <= 0.3:
			out = append(out, labels[0])
		case s.Score >= 0.7:
			out = append(out, labels[1])
		}
	}
	return out
}

// disagreementArea names the two factors at the extremes when the spread
// exceeds the disagreement threshold.
func disagreementArea(ind EmotionalIndicators) (string, bool) {
	sig := ind.Signals()
	lo, hi := sig[0], sig[0]
	for _, s := range sig[1:] {
		if s.Score < lo.Score {
			lo = s
		}
		if s.Score > hi.Score {
			hi = s
		}
	}
	if hi.Score-lo.Score <= disagreementThreshold {
		return "", false
	}
	return fmt.Sprintf("signal disagreement: %s (%.2f) vs %s (%.2f)", hi.Kind, hi.Score, lo.Kind, lo.Score), true
}
