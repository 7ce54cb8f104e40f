package engine

import (
	"math"
	"time"
)

// PatternKind classifies a window of mood movement, not a single delta.
type PatternKind string

const (
	PatternRecovery    PatternKind = "recovery"
	PatternDecline     PatternKind = "decline"
	PatternPlateau     PatternKind = "plateau"
	PatternOscillation PatternKind = "oscillation"
)

// MoodPattern is a classified run within a participant's score series.
type MoodPattern struct {
	Kind       PatternKind   `json:"kind"`
	Confidence float64       `json:"confidence"` // from run length and magnitude consistency
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Duration   time.Duration `json:"duration"`
	Length     int           `json:"length"` // number of steps in the run
}

// MoodState is the per-sequence state machine over score-to-score movement.
type MoodState string

const (
	StateStable      MoodState = "stable"
	StateRising      MoodState = "rising"
	StateFalling     MoodState = "falling"
	StateOscillating MoodState = "oscillating"
)

// stepThreshold separates directional movement from flat noise when walking
// a score series step by step. Distinct from DeltaThreshold: a pattern is
// built from small sustained steps that individually would never surface as
// deltas.
const stepThreshold = 0.5

// nextState advances the movement state machine by one step.
//
// Transition predicates:
//
//	rise: diff >= +stepThreshold
//	fall: diff <= -stepThreshold
//	flat: |diff| < stepThreshold
//
//	stable      --rise--> rising      --fall--> oscillating
//	stable      --fall--> falling     --rise--> oscillating
//	oscillating --flat--> stable
//	rising/falling --flat--> stable
func nextState(s MoodState, diff float64) MoodState {
	rise := diff >= stepThreshold
	fall := diff <= -stepThreshold

	switch {
	case !rise && !fall:
		return StateStable
	case rise:
		if s == StateFalling || s == StateOscillating {
			return StateOscillating
		}
		return StateRising
	default: // fall
		if s == StateRising || s == StateOscillating {
			return StateOscillating
		}
		return StateFalling
	}
}

// ClassifyPatterns walks one participant's chronological score series and
// extracts sustained runs: recoveries, declines, plateaus, and oscillations.
// Sub-threshold steps feed pattern detection even though they never surface
// as deltas on their own.
func ClassifyPatterns(scores []MoodScore) []MoodPattern {
	if len(scores) < 3 {
		return nil
	}

	steps := make([]seriesStep, 0, len(scores)-1)
	for i := 1; i < len(scores); i++ {
		steps = append(steps, seriesStep{
			diff: scores[i].Value - scores[i-1].Value,
			from: scores[i-1].Timestamp,
			to:   scores[i].Timestamp,
		})
	}

	var patterns []MoodPattern

	// Directional runs: >=2 consecutive steps the same way.
	i := 0
	for i < len(steps) {
		dir := stepSign(steps[i].diff)
		if dir == 0 {
			i++
			continue
		}
		j := i
		for j < len(steps) && stepSign(steps[j].diff) == dir {
			j++
		}
		runLen := j - i
		if runLen >= 2 {
			kind := PatternRecovery
			if dir < 0 {
				kind = PatternDecline
			}
			patterns = append(patterns, MoodPattern{
				Kind:       kind,
				Confidence: runConfidence(steps[i:j]),
				Start:      steps[i].from,
				End:        steps[j-1].to,
				Duration:   steps[j-1].to.Sub(steps[i].from),
				Length:     runLen,
			})
		}
		i = j
	}

	// Plateau: >=2 flat steps directly after a significant movement.
	for i := 1; i < len(steps); i++ {
		if math.Abs(steps[i-1].diff) < DeltaThreshold {
			continue
		}
		j := i
		for j < len(steps) && stepSign(steps[j].diff) == 0 {
			j++
		}
		if j-i >= 2 {
			patterns = append(patterns, MoodPattern{
				Kind:       PatternPlateau,
				Confidence: math.Min(0.95, 0.5+0.1*float64(j-i)),
				Start:      steps[i].from,
				End:        steps[j-1].to,
				Duration:   steps[j-1].to.Sub(steps[i].from),
				Length:     j - i,
			})
			i = j
		}
	}

	// Oscillation: the state machine enters oscillating and alternation
	// persists for >=3 direction flips.
	state := StateStable
	flips, oscStart := 0, -1
	prevDir := 0
	for idx, st := range steps {
		state = nextState(state, st.diff)
		dir := stepSign(st.diff)
		if dir != 0 && prevDir != 0 && dir != prevDir {
			if flips == 0 {
				oscStart = idx - 1
			}
			flips++
		} else if dir == 0 {
			if flips >= 3 {
				patterns = append(patterns, oscillationPattern(steps[oscStart:idx], flips))
			}
			flips, oscStart = 0, -1
		}
		if dir != 0 {
			prevDir = dir
		}
	}
	if flips >= 3 && oscStart >= 0 {
		patterns = append(patterns, oscillationPattern(steps[oscStart:], flips))
	}

	return patterns
}

// seriesStep is one score-to-score movement in a series.
type seriesStep struct {
	diff float64
	from time.Time
	to   time.Time
}

func oscillationPattern(run []seriesStep, flips int) MoodPattern {
	return MoodPattern{
		Kind:       PatternOscillation,
		Confidence: math.Min(0.95, 0.4+0.12*float64(flips)),
		Start:      run[0].from,
		End:        run[len(run)-1].to,
		Duration:   run[len(run)-1].to.Sub(run[0].from),
		Length:     len(run),
	}
}

// stepSign maps a step diff onto {-1, 0, +1} using the step threshold.
func stepSign(diff float64) int {
	switch {
	case diff >= stepThreshold:
		return 1
	case diff <= -stepThreshold:
		return -1
	default:
		return 0
	}
}

// runConfidence scores a directional run: longer runs and consistent step
// magnitudes read as more trustworthy.
func runConfidence(run []seriesStep) float64 {
	lo, hi := math.Abs(run[0].diff), math.Abs(run[0].diff)
	for _, st := range run[1:] {
		m := math.Abs(st.diff)
		if m < lo {
			lo = m
		}
		if m > hi {
			hi = m
		}
	}
	consistency := 0.0
	if hi > 0 {
		consistency = lo / hi
	}
	return math.Min(0.95, 0.35+0.12*float64(len(run))+0.2*consistency)
}
