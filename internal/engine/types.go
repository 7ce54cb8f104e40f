package engine

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInsufficientData is returned (or surfaced as a flag) when an operation
// needs more input than it was given. Sparse data is a normal steady-state
// condition, so most callers receive an empty flagged result instead.
var ErrInsufficientData = errors.New("insufficient data")

// ErrUnknownDecision is returned when an outcome references a decision that
// exists neither in memory nor in the audit store.
var ErrUnknownDecision = errors.New("unknown decision")

// IndicatorRangeError reports a sub-score outside [0,1]. This always means an
// upstream extractor bug, so it is propagated instead of clamped.
type IndicatorRangeError struct {
	Factor FactorKind
	Score  float64
}

func (e *IndicatorRangeError) Error() string {
	return fmt.Sprintf("indicator %s out of range: %.4f (want [0,1])", e.Factor, e.Score)
}

// CalibrationSafetyError reports a proposed threshold update that was rejected
// because it would leave the configured safety band. The previously active
// threshold version stays in effect.
type CalibrationSafetyError struct {
	Reason string
}

func (e *CalibrationSafetyError) Error() string {
	return "calibration rejected: " + e.Reason
}

// FactorKind enumerates the five signal factors feeding a mood score.
type FactorKind string

const (
	FactorSentiment      FactorKind = "sentiment"
	FactorPsychological  FactorKind = "psychological"
	FactorRelationship   FactorKind = "relationship"
	FactorConversational FactorKind = "conversational"
	FactorHistorical     FactorKind = "historical"
)

// Signal is one extractor's output: a normalized sub-score with the evidence
// that produced it. Every factor kind honors the same (score, evidence)
// contract, so downstream code never branches on kind for arithmetic.
type Signal struct {
	Kind      FactorKind `json:"kind"`
	Score     float64    `json:"score"` // [0,1]
	Evidence  []string   `json:"evidence,omitempty"`
	Uncertain bool       `json:"uncertain,omitempty"` // extractor lacked input, score is a neutral default
}

// MoodScore is the normalized emotional score for one item.
// Immutable once produced; recomputation yields a new instance.
type MoodScore struct {
	Value            float64   `json:"value"`      // [0,10], one decimal
	Confidence       float64   `json:"confidence"` // [0,1]
	Descriptors      []string  `json:"descriptors,omitempty"`
	UncertaintyAreas []string  `json:"uncertainty_areas,omitempty"`
	ParticipantID    string    `json:"participant_id,omitempty"`
	Timestamp        time.Time `json:"timestamp,omitempty"`
}

// Direction of a mood transition.
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
	DirectionNeutral  Direction = "neutral"
)

// TransitionType classifies how a mood transition happened.
type TransitionType string

const (
	TransitionGradual  TransitionType = "gradual"
	TransitionSudden   TransitionType = "sudden"
	TransitionRecovery TransitionType = "recovery"
	TransitionDecline  TransitionType = "decline"
)

// MoodDelta is a detected transition between two mood scores for the same
// participant. Immutable once created.
type MoodDelta struct {
	FromMood      float64        `json:"from_mood"`
	ToMood        float64        `json:"to_mood"`
	Magnitude     float64        `json:"magnitude"` // always |ToMood - FromMood|
	Direction     Direction      `json:"direction"`
	Transition    TransitionType `json:"transition_type"`
	Significance  float64        `json:"significance"` // [0,1]
	Confidence    float64        `json:"confidence"`   // [0,1]
	ParticipantID string         `json:"participant_id"`
	FromTime      time.Time      `json:"from_time"`
	ToTime        time.Time      `json:"to_time"`
}

// RelationshipInfo is participant relationship metadata supplied by the
// conversation store. Nil means unknown, which scores neutral with an
// uncertainty flag rather than failing.
type RelationshipInfo struct {
	Closeness  float64 `json:"closeness"` // [0,1]
	HistoryLen int     `json:"history_len"`
	Supportive bool    `json:"supportive"`
}

// EmotionalBaseline captures a participant's typical mood range and how
// stable it has been historically.
type EmotionalBaseline struct {
	TypicalLow  float64 `json:"typical_low"`  // [0,10]
	TypicalHigh float64 `json:"typical_high"` // [0,10]
	Stability   float64 `json:"stability"`    // [0,1], 1 = very stable
}

// EmotionalContext aggregates everything the scoring pipeline knows about the
// participant beyond the text itself. Built once per analysis request and
// consumed read-only by every stage.
type EmotionalContext struct {
	ParticipantID        string             `json:"participant_id"`
	Relationship         *RelationshipInfo  `json:"relationship,omitempty"`
	Baseline             *EmotionalBaseline `json:"baseline,omitempty"`
	ConversationTags     []string           `json:"conversation_tags,omitempty"`
	RecentPatterns       []PatternKind      `json:"recent_patterns,omitempty"`
	ExtractionConfidence float64            `json:"extraction_confidence,omitempty"` // upstream pipeline's confidence; 0 = unspecified
}

// Outcome is the three-way routing result for a scored item.
type Outcome string

const (
	OutcomeAutoApprove    Outcome = "auto_approve"
	OutcomeReviewRequired Outcome = "review_required"
	OutcomeAutoReject     Outcome = "auto_reject"
)

// ReasonFactor is one line of a decision's reasoning breakdown.
type ReasonFactor struct {
	Factor string  `json:"factor"`
	Score  float64 `json:"score"`
	Note   string  `json:"note,omitempty"`
}

// ValidationDecision is the terminal routing result for one scored item.
// Immutable; a human override is recorded as a superseding outcome row,
// never by mutating the decision.
type ValidationDecision struct {
	ID               string           `json:"id"`
	ItemID           string           `json:"item_id"`
	ParticipantID    string           `json:"participant_id,omitempty"`
	Outcome          Outcome          `json:"outcome"`
	Confidence       float64          `json:"confidence"`
	Significance     float64          `json:"significance"` // [0,10]
	Tier             SignificanceTier `json:"tier"`
	ReviewPriority   SignificanceTier `json:"review_priority,omitempty"` // set only when review_required
	Reasoning        []ReasonFactor   `json:"reasoning"`
	ThresholdVersion int              `json:"threshold_version"`
	DecidedAt        time.Time        `json:"decided_at"`
}

// clamp01 bounds v to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// round1 rounds to one decimal place (mood scores carry one decimal).
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
