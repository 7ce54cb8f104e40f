package engine

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	// DeltaThreshold is the minimum |Δ| for a transition to exist at all.
	// Sub-threshold deltas are never surfaced, regardless of confidence.
	DeltaThreshold = 1.5

	// SuddenThreshold: at or above this magnitude a transition is sudden
	// no matter how much time elapsed.
	SuddenThreshold = 2.0

	// lowBaselineCeiling: an upward swing starting at or below this is a
	// recovery. highBaselineFloor: a downward swing starting at or above
	// this is a decline.
	lowBaselineCeiling = 4.0
	highBaselineFloor  = 6.0

	// defaultCadence is assumed when a sequence is too short to measure
	// its own message cadence.
	defaultCadence = 5 * time.Minute
)

// DetectDeltas finds significant mood transitions in one participant's
// chronological score sequence. Fewer than two scores is normal sparse data
// and yields an empty result, not an error. Mixed participants are a caller
// bug and do error.
func DetectDeltas(scores []MoodScore) ([]MoodDelta, error) {
	if len(scores) < 2 {
		return nil, nil
	}

	ordered := make([]MoodScore, len(scores))
	copy(ordered, scores)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	participant := ordered[0].ParticipantID
	for _, s := range ordered[1:] {
		if s.ParticipantID != participant {
			return nil, fmt.Errorf("detect deltas: mixed participants %q and %q in one sequence", participant, s.ParticipantID)
		}
	}

	cadence := typicalCadence(ordered)

	var deltas []MoodDelta
	for i := 1; i < len(ordered); i++ {
		from, to := ordered[i-1], ordered[i]
		diff := to.Value - from.Value
		magnitude := math.Abs(diff)
		if magnitude < DeltaThreshold {
			continue
		}

		elapsed := to.Timestamp.Sub(from.Timestamp)
		deltas = append(deltas, MoodDelta{
			FromMood:      from.Value,
			ToMood:        to.Value,
			Magnitude:     magnitude,
			Direction:     direction(diff),
			Transition:    classifyTransition(from.Value, diff, magnitude, elapsed, cadence),
			Significance:  math.Min(1, magnitude/4),
			Confidence:    deltaConfidence(from, to),
			ParticipantID: participant,
			FromTime:      from.Timestamp,
			ToTime:        to.Timestamp,
		})
	}
	return deltas, nil
}

func direction(diff float64) Direction {
	switch {
	case diff > 0:
		return DirectionPositive
	case diff < 0:
		return DirectionNegative
	default:
		return DirectionNeutral
	}
}

// classifyTransition picks the transition type:
//   - recovery: upward swing out of a low baseline
//   - decline: downward swing out of a high baseline
//   - sudden: |Δ| at/above the sudden threshold, or a borderline swing that
//     happened faster than half the conversation's typical cadence
//   - gradual: everything else
func classifyTransition(fromMood, diff, magnitude float64, elapsed, cadence time.Duration) TransitionType {
	switch {
	case diff > 0 && fromMood <= lowBaselineCeiling:
		return TransitionRecovery
	case diff < 0 && fromMood >= highBaselineFloor:
		return TransitionDecline
	case magnitude >= SuddenThreshold:
		return TransitionSudden
	case elapsed > 0 && elapsed <= cadence/2:
		return TransitionSudden
	default:
		return TransitionGradual
	}
}

// typicalCadence is the median gap between consecutive scores.
func typicalCadence(ordered []MoodScore) time.Duration {
	if len(ordered) < 3 {
		return defaultCadence
	}
	gaps := make([]time.Duration, 0, len(ordered)-1)
	for i := 1; i < len(ordered); i++ {
		gaps = append(gaps, ordered[i].Timestamp.Sub(ordered[i-1].Timestamp))
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	return gaps[len(gaps)/2]
}

// deltaConfidence averages the endpoint confidences. Scores constructed
// without one fall back to 0.5.
func deltaConfidence(from, to MoodScore) float64 {
	a, b := from.Confidence, to.Confidence
	if a == 0 {
		a = 0.5
	}
	if b == 0 {
		b = 0.5
	}
	return (a + b) / 2
}

// SupportEvent is a support/empathy signal from another participant,
// supplied by the conversation store.
type SupportEvent struct {
	ParticipantID string    `json:"participant_id"`
	Time          time.Time `json:"time"`
	Evidence      string    `json:"evidence,omitempty"`
}

// MoodRepair is a recovery that followed both a decline and a support signal
// from someone else. Effectiveness is the recovery magnitude normalized by
// the magnitude of the decline it answered.
type MoodRepair struct {
	Recovery      MoodDelta    `json:"recovery"`
	Decline       MoodDelta    `json:"decline"`
	Support       SupportEvent `json:"support"`
	Effectiveness float64      `json:"effectiveness"` // [0,1]
}

// DetectMoodRepairs pairs recovery deltas with the most recent preceding
// decline and a support event from a different participant that landed in
// between.
func DetectMoodRepairs(deltas []MoodDelta, support []SupportEvent) []MoodRepair {
	var repairs []MoodRepair
	for i, d := range deltas {
		if d.Transition != TransitionRecovery {
			continue
		}

		var decline *MoodDelta
		for j := i - 1; j >= 0; j-- {
			if deltas[j].Direction == DirectionNegative && !deltas[j].ToTime.After(d.FromTime) {
				decline = &deltas[j]
				break
			}
		}
		if decline == nil {
			continue
		}

		for _, sup := range support {
			if sup.ParticipantID == d.ParticipantID {
				continue
			}
			if sup.Time.Before(decline.ToTime) || sup.Time.After(d.ToTime) {
				continue
			}
			repairs = append(repairs, MoodRepair{
				Recovery:      d,
				Decline:       *decline,
				Support:       sup,
				Effectiveness: math.Min(1, d.Magnitude/decline.Magnitude),
			})
			break
		}
	}
	return repairs
}
