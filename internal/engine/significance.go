package engine

import "math"

// SignificanceTier buckets significance for review-queue ordering. Tiers
// order the queue and adjust the approve bar; they never decide
// approve/reject on their own.
type SignificanceTier string

const (
	TierCritical SignificanceTier = "critical"
	TierHigh     SignificanceTier = "high"
	TierMedium   SignificanceTier = "medium"
	TierLow      SignificanceTier = "low"
)

// tierRank orders tiers for queue priority, highest first.
func tierRank(t SignificanceTier) int {
	switch t {
	case TierCritical:
		return 3
	case TierHigh:
		return 2
	case TierMedium:
		return 1
	default:
		return 0
	}
}

// SignificanceInput is everything the weighter considers for one item.
type SignificanceInput struct {
	DeltaMagnitude         float64 `json:"delta_magnitude"`         // 0-10 mood points
	RelationshipImportance float64 `json:"relationship_importance"` // [0,1]
	PatternNovelty         float64 `json:"pattern_novelty"`         // [0,1], 1 = never seen for this participant
	Urgent                 bool    `json:"urgent"`
}

// Significance factor weights. Magnitude dominates: a big swing matters even
// in a casual relationship, but not the other way around.
const (
	sigWeightMagnitude    = 0.40
	sigWeightRelationship = 0.30
	sigWeightNovelty      = 0.20
	sigWeightUrgency      = 0.10
)

// WeighSignificance scores emotional importance on 0-10 and maps it to a
// priority tier. Used to ration scarce human-review attention.
func WeighSignificance(in SignificanceInput) (float64, SignificanceTier) {
	urgency := 0.0
	if in.Urgent {
		urgency = 1.0
	}

	score := 10 * (sigWeightMagnitude*math.Min(1, in.DeltaMagnitude/4) +
		sigWeightRelationship*clamp01(in.RelationshipImportance) +
		sigWeightNovelty*clamp01(in.PatternNovelty) +
		sigWeightUrgency*urgency)
	score = round1(score)

	return score, TierFor(score)
}

// TierFor maps a 0-10 significance score onto its priority tier.
func TierFor(score float64) SignificanceTier {
	switch {
	case score >= 8.0:
		return TierCritical
	case score >= 6.0:
		return TierHigh
	case score >= 3.0:
		return TierMedium
	default:
		return TierLow
	}
}
