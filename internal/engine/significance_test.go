package engine

import "testing"

func TestWeighSignificanceRange(t *testing.T) {
	tests := []struct {
		name string
		in   SignificanceInput
		tier SignificanceTier
	}{
		{"nothing", SignificanceInput{}, TierLow},
		{"max everything", SignificanceInput{DeltaMagnitude: 10, RelationshipImportance: 1, PatternNovelty: 1, Urgent: true}, TierCritical},
		{"big swing alone", SignificanceInput{DeltaMagnitude: 4}, TierMedium},
		{"urgent close relationship", SignificanceInput{DeltaMagnitude: 3.5, RelationshipImportance: 0.9, PatternNovelty: 0.8, Urgent: true}, TierCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, tier := WeighSignificance(tt.in)
			if score < 0 || score > 10 {
				t.Fatalf("score %.2f outside [0,10]", score)
			}
			if tier != tt.tier {
				t.Errorf("tier = %s (score %.2f), want %s", tier, score, tt.tier)
			}
		})
	}
}

func TestSignificanceMonotoneInMagnitude(t *testing.T) {
	prev := -1.0
	for _, m := range []float64{0, 1, 2, 3, 4, 6} {
		score, _ := WeighSignificance(SignificanceInput{DeltaMagnitude: m, RelationshipImportance: 0.5})
		if score < prev {
			t.Errorf("magnitude %.1f: score %.2f dropped below %.2f", m, score, prev)
		}
		prev = score
	}
}

func TestTierBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  SignificanceTier
	}{
		{10, TierCritical},
		{8.0, TierCritical},
		{7.9, TierHigh},
		{6.0, TierHigh},
		{5.9, TierMedium},
		{3.0, TierMedium},
		{2.9, TierLow},
		{0, TierLow},
	}
	for _, tt := range tests {
		if got := TierFor(tt.score); got != tt.want {
			t.Errorf("TierFor(%.1f) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
