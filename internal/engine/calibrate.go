package engine

import (
	"fmt"
	"math"
	"time"
)

// HumanOutcome is a reviewer's verdict on a past decision.
type HumanOutcome string

const (
	HumanConfirmed  HumanOutcome = "confirmed"
	HumanOverturned HumanOutcome = "overturned"
)

// OutcomeRecord pairs a past decision with its human outcome. The decision
// itself is never mutated; the record supersedes it.
type OutcomeRecord struct {
	DecisionID   string       `json:"decision_id"`
	Outcome      Outcome      `json:"outcome"`
	Confidence   float64      `json:"confidence"`
	Significance float64      `json:"significance"`
	Human        HumanOutcome `json:"human"`
	RecordedAt   time.Time    `json:"recorded_at"`
}

// CalibratorConfig bounds how far one calibration run may move thresholds.
type CalibratorConfig struct {
	MaxStep         float64 `json:"max_step" toml:"max_step"`                   // per-run threshold shift ceiling
	MinBatch        int     `json:"min_batch" toml:"min_batch"`                 // records required before adjusting
	MinAgreement    float64 `json:"min_agreement" toml:"min_agreement"`         // below this the batch is untrusted
	ApproveRateLow  float64 `json:"approve_rate_low" toml:"approve_rate_low"`   // safety band on predicted auto-approve rate
	ApproveRateHigh float64 `json:"approve_rate_high" toml:"approve_rate_high"` //
}

// DefaultCalibratorConfig returns the standard calibration bounds.
func DefaultCalibratorConfig() CalibratorConfig {
	return CalibratorConfig{
		MaxStep:         0.05,
		MinBatch:        20,
		MinAgreement:    0.60,
		ApproveRateLow:  0.50,
		ApproveRateHigh: 0.85,
	}
}

// CalibrationReport summarizes one calibration run.
type CalibrationReport struct {
	Batch             int     `json:"batch"`
	AgreementRate     float64 `json:"agreement_rate"`
	FalsePositiveRate float64 `json:"false_positive_rate"` // approved then overturned
	FalseNegativeRate float64 `json:"false_negative_rate"` // rejected then overturned
	PredictedApprove  float64 `json:"predicted_approve_rate"`
	NewVersion        int     `json:"new_version,omitempty"`
}

// Calibrate computes accuracy statistics from a batch of human outcomes and
// proposes the next threshold version. Adjustments are incremental (bounded
// by MaxStep) to avoid oscillation. A proposal that would push the predicted
// auto-approve rate outside the safety band is rejected with a
// CalibrationSafetyError and the active version stays in force.
func Calibrate(records []OutcomeRecord, active *ThresholdConfig, cfg CalibratorConfig) (*ThresholdConfig, CalibrationReport, error) {
	report := CalibrationReport{Batch: len(records)}
	if len(records) == 0 {
		return nil, report, fmt.Errorf("calibrate: %w", ErrInsufficientData)
	}

	var confirmed, approved, approvedOverturned, rejected, rejectedOverturned int
	for _, r := range records {
		if r.Human == HumanConfirmed {
			confirmed++
		}
		switch r.Outcome {
		case OutcomeAutoApprove:
			approved++
			if r.Human == HumanOverturned {
				approvedOverturned++
			}
		case OutcomeAutoReject:
			rejected++
			if r.Human == HumanOverturned {
				rejectedOverturned++
			}
		}
	}

	report.AgreementRate = float64(confirmed) / float64(len(records))
	if approved > 0 {
		report.FalsePositiveRate = float64(approvedOverturned) / float64(approved)
	}
	if rejected > 0 {
		report.FalseNegativeRate = float64(rejectedOverturned) / float64(rejected)
	}

	if report.AgreementRate < cfg.MinAgreement {
		return nil, report, &CalibrationSafetyError{
			Reason: fmt.Sprintf("agreement rate %.2f below floor %.2f, batch untrusted", report.AgreementRate, cfg.MinAgreement),
		}
	}
	if len(records) < cfg.MinBatch {
		return nil, report, fmt.Errorf("calibrate: batch of %d below minimum %d: %w", len(records), cfg.MinBatch, ErrInsufficientData)
	}

	next := active.clone()
	next.Version = active.Version + 1
	next.CreatedAt = time.Now()
	next.Note = fmt.Sprintf("calibration: agreement %.2f, fp %.2f, fn %.2f", report.AgreementRate, report.FalsePositiveRate, report.FalseNegativeRate)

	// Overturned approvals mean the approve bar is too loose; raise it in
	// proportion, bounded by the step ceiling. Overturned rejections mean
	// the reject bar is cutting into valid items; lower it.
	next.ApproveAbove = clamp01(active.ApproveAbove + boundedStep(report.FalsePositiveRate*0.2, cfg.MaxStep))
	next.RejectBelow = clamp01(active.RejectBelow - boundedStep(report.FalseNegativeRate*0.2, cfg.MaxStep))
	if next.RejectBelow >= next.ApproveAbove {
		return nil, report, &CalibrationSafetyError{
			Reason: fmt.Sprintf("bars crossed: reject %.2f >= approve %.2f", next.RejectBelow, next.ApproveAbove),
		}
	}

	report.PredictedApprove = predictedApproveRate(records, next)
	if report.PredictedApprove < cfg.ApproveRateLow || report.PredictedApprove > cfg.ApproveRateHigh {
		return nil, report, &CalibrationSafetyError{
			Reason: fmt.Sprintf("predicted auto-approve rate %.2f outside band [%.2f, %.2f]",
				report.PredictedApprove, cfg.ApproveRateLow, cfg.ApproveRateHigh),
		}
	}

	report.NewVersion = next.Version
	return next, report, nil
}

// boundedStep limits a proposed shift to the configured ceiling.
func boundedStep(step, max float64) float64 {
	return math.Min(math.Abs(step), max)
}

// predictedApproveRate replays the batch against proposed thresholds.
func predictedApproveRate(records []OutcomeRecord, tc *ThresholdConfig) float64 {
	approve := 0
	for _, r := range records {
		if r.Confidence > tc.approveBar(TierFor(r.Significance)) {
			approve++
		}
	}
	return float64(approve) / float64(len(records))
}

// clone deep-copies a threshold config so the new version shares nothing
// mutable with the active one.
func (tc *ThresholdConfig) clone() *ThresholdConfig {
	next := *tc
	next.ApproveBars = make(map[SignificanceTier]float64, len(tc.ApproveBars))
	for k, v := range tc.ApproveBars {
		next.ApproveBars[k] = v
	}
	return &next
}
