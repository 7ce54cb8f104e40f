package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ThresholdConfig is one immutable, versioned snapshot of the decision
// thresholds. Decisions stamp the version that produced them, so any
// decision is reproducible from (indicators, context, version). Updates are
// whole new versions swapped in atomically, never field mutation.
type ThresholdConfig struct {
	Version      int                          `json:"version"`
	ApproveAbove float64                      `json:"approve_above"` // approve requires confidence strictly above this
	RejectBelow  float64                      `json:"reject_below"`  // reject requires confidence strictly below this
	ApproveBars  map[SignificanceTier]float64 `json:"approve_bars"`  // per-tier raised approve bars
	Weights      Weights                      `json:"weights"`
	CreatedAt    time.Time                    `json:"created_at"`
	Note         string                       `json:"note,omitempty"`
}

// DefaultThresholds returns version 1 of the threshold configuration.
// High and critical items get a raised approve bar so emotionally important
// items are never silently auto-approved at borderline confidence.
func DefaultThresholds() *ThresholdConfig {
	return &ThresholdConfig{
		Version:      1,
		ApproveAbove: 0.75,
		RejectBelow:  0.50,
		ApproveBars: map[SignificanceTier]float64{
			TierHigh:     0.85,
			TierCritical: 0.85,
		},
		Weights:   DefaultWeights(),
		CreatedAt: time.Now(),
		Note:      "default",
	}
}

// approveBar returns the effective approve threshold for a tier: the base
// bar, raised by any per-tier override, never lowered.
func (tc *ThresholdConfig) approveBar(tier SignificanceTier) float64 {
	bar := tc.ApproveAbove
	if raised, ok := tc.ApproveBars[tier]; ok && raised > bar {
		bar = raised
	}
	return bar
}

// DecisionInput is one scored item at the routing stage.
type DecisionInput struct {
	ItemID        string
	ParticipantID string
	Indicators    EmotionalIndicators
	Confidence    float64 // [0,1]
	Significance  float64 // [0,10]
}

// Decide routes one scored item to auto_approve, review_required, or
// auto_reject under the given threshold version. Deterministic: identical
// (input, threshold version) always yields the same outcome.
//
// Boundary convention: both cutoffs are exclusive. Confidence exactly at
// the approve bar or the reject bar routes to review.
func Decide(in DecisionInput, tc *ThresholdConfig) (ValidationDecision, error) {
	if err := in.Indicators.Validate(); err != nil {
		return ValidationDecision{}, err
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return ValidationDecision{}, fmt.Errorf("decide: confidence %.4f out of range", in.Confidence)
	}

	tier := TierFor(in.Significance)
	bar := tc.approveBar(tier)

	var outcome Outcome
	reasoning := []ReasonFactor{
		{Factor: "confidence", Score: in.Confidence},
		{Factor: "significance", Score: in.Significance, Note: string(tier)},
	}

	switch {
	case in.Confidence > bar:
		outcome = OutcomeAutoApprove
		reasoning = append(reasoning, ReasonFactor{
			Factor: "approve_bar", Score: bar,
			Note: fmt.Sprintf("confidence %.2f above %s approve bar", in.Confidence, tier),
		})
	case in.Confidence < tc.RejectBelow:
		outcome = OutcomeAutoReject
		reasoning = append(reasoning, ReasonFactor{
			Factor: "reject_bar", Score: tc.RejectBelow,
			Note: fmt.Sprintf("confidence %.2f below reject bar", in.Confidence),
		})
	default:
		outcome = OutcomeReviewRequired
		note := "confidence between reject and approve bars"
		if in.Confidence > tc.ApproveAbove {
			note = fmt.Sprintf("%s significance raised approve bar to %.2f", tier, bar)
		}
		reasoning = append(reasoning, ReasonFactor{Factor: "review_band", Score: bar, Note: note})
	}

	reasoning = append(reasoning, dominantFactor(in.Indicators))

	d := ValidationDecision{
		ID:               uuid.NewString(),
		ItemID:           in.ItemID,
		ParticipantID:    in.ParticipantID,
		Outcome:          outcome,
		Confidence:       in.Confidence,
		Significance:     in.Significance,
		Tier:             tier,
		Reasoning:        reasoning,
		ThresholdVersion: tc.Version,
		DecidedAt:        time.Now(),
	}
	if outcome == OutcomeReviewRequired {
		d.ReviewPriority = tier
	}
	return d, nil
}

// dominantFactor names the sub-score furthest from neutral, the signal
// that pulled the mood score hardest.
func dominantFactor(ind EmotionalIndicators) ReasonFactor {
	sig := ind.Signals()
	dom := sig[0]
	domDist := dist05(dom.Score)
	for _, s := range sig[1:] {
		if d := dist05(s.Score); d > domDist {
			dom, domDist = s, d
		}
	}
	return ReasonFactor{
		Factor: "dominant_signal",
		Score:  dom.Score,
		Note:   string(dom.Kind),
	}
}

func dist05(v float64) float64 {
	if v < 0.5 {
		return 0.5 - v
	}
	return v - 0.5
}
