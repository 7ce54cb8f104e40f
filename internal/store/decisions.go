package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lazypower/moodgate/internal/engine"
)

// SaveDecision persists one routing decision. Decisions are append-only;
// a duplicate ID is an error, never an overwrite.
func (db *DB) SaveDecision(d engine.ValidationDecision) error {
	reasoning, err := json.Marshal(d.Reasoning)
	if err != nil {
		return fmt.Errorf("marshal reasoning: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO decisions (id, item_id, participant_id, outcome, confidence, significance,
			tier, review_priority, reasoning, threshold_version, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ItemID, d.ParticipantID, string(d.Outcome), d.Confidence, d.Significance,
		string(d.Tier), string(d.ReviewPriority), string(reasoning), d.ThresholdVersion,
		d.DecidedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert decision %s: %w", d.ID, err)
	}
	return nil
}

// GetDecision loads one decision by ID. Returns nil when not found.
func (db *DB) GetDecision(id string) (*engine.ValidationDecision, error) {
	row := db.QueryRow(`
		SELECT id, item_id, participant_id, outcome, confidence, significance,
			tier, review_priority, reasoning, threshold_version, decided_at
		FROM decisions WHERE id = ?`, id)

	d, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get decision %s: %w", id, err)
	}
	return d, nil
}

// ListDecisions returns the most recent decisions, newest first.
func (db *DB) ListDecisions(limit int) ([]engine.ValidationDecision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, item_id, participant_id, outcome, confidence, significance,
			tier, review_priority, reasoning, threshold_version, decided_at
		FROM decisions ORDER BY decided_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []engine.ValidationDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		decisions = append(decisions, *d)
	}
	return decisions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*engine.ValidationDecision, error) {
	var (
		d                            engine.ValidationDecision
		outcome, tier, priority, rsn string
		decidedAt                    int64
	)
	err := row.Scan(&d.ID, &d.ItemID, &d.ParticipantID, &outcome, &d.Confidence,
		&d.Significance, &tier, &priority, &rsn, &d.ThresholdVersion, &decidedAt)
	if err != nil {
		return nil, err
	}
	d.Outcome = engine.Outcome(outcome)
	d.Tier = engine.SignificanceTier(tier)
	d.ReviewPriority = engine.SignificanceTier(priority)
	d.DecidedAt = time.UnixMilli(decidedAt)
	if err := json.Unmarshal([]byte(rsn), &d.Reasoning); err != nil {
		return nil, fmt.Errorf("unmarshal reasoning: %w", err)
	}
	return &d, nil
}

// SaveOutcome records a human verdict. The referenced decision row is left
// untouched; the outcome supersedes it.
func (db *DB) SaveOutcome(rec engine.OutcomeRecord) error {
	_, err := db.Exec(`
		INSERT INTO decision_outcomes (decision_id, outcome, confidence, significance, human, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.DecisionID, string(rec.Outcome), rec.Confidence, rec.Significance,
		string(rec.Human), rec.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert outcome for %s: %w", rec.DecisionID, err)
	}
	return nil
}

// PendingOutcomes returns human verdicts not yet consumed by a calibration
// run, oldest first.
func (db *DB) PendingOutcomes() ([]engine.OutcomeRecord, error) {
	rows, err := db.Query(`
		SELECT decision_id, outcome, confidence, significance, human, recorded_at
		FROM decision_outcomes WHERE calibrated = 0 ORDER BY recorded_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pending outcomes: %w", err)
	}
	defer rows.Close()

	var records []engine.OutcomeRecord
	for rows.Next() {
		var (
			rec            engine.OutcomeRecord
			outcome, human string
			recordedAt     int64
		)
		if err := rows.Scan(&rec.DecisionID, &outcome, &rec.Confidence,
			&rec.Significance, &human, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		rec.Outcome = engine.Outcome(outcome)
		rec.Human = engine.HumanOutcome(human)
		rec.RecordedAt = time.UnixMilli(recordedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkOutcomesCalibrated flags outcomes recorded before the cutoff as
// consumed so the next calibration run starts from a fresh batch.
func (db *DB) MarkOutcomesCalibrated(before time.Time) error {
	_, err := db.Exec(
		"UPDATE decision_outcomes SET calibrated = 1 WHERE calibrated = 0 AND recorded_at <= ?",
		before.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("mark outcomes calibrated: %w", err)
	}
	return nil
}

// PendingReviews returns review_required decisions with no recorded human
// verdict. Used to rehydrate the in-process review queue on startup.
func (db *DB) PendingReviews() ([]engine.ReviewItem, error) {
	rows, err := db.Query(`
		SELECT d.id, d.item_id, d.review_priority, d.significance, d.decided_at
		FROM decisions d
		LEFT JOIN decision_outcomes o ON o.decision_id = d.id
		WHERE d.outcome = 'review_required' AND o.id IS NULL
		ORDER BY d.decided_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pending reviews: %w", err)
	}
	defer rows.Close()

	var items []engine.ReviewItem
	for rows.Next() {
		var (
			item      engine.ReviewItem
			priority  string
			decidedAt int64
		)
		if err := rows.Scan(&item.DecisionID, &item.ItemID, &priority,
			&item.Significance, &decidedAt); err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		item.Priority = engine.SignificanceTier(priority)
		item.EnqueuedAt = time.UnixMilli(decidedAt)
		items = append(items, item)
	}
	return items, rows.Err()
}
