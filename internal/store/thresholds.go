package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lazypower/moodgate/internal/engine"
)

// SaveThresholds appends one threshold version to the history. Versions are
// immutable; inserting an existing version number is an error.
func (db *DB) SaveThresholds(tc *engine.ThresholdConfig) error {
	bars, err := json.Marshal(tc.ApproveBars)
	if err != nil {
		return fmt.Errorf("marshal approve bars: %w", err)
	}
	weights, err := json.Marshal(tc.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO threshold_versions (version, approve_above, reject_below, approve_bars, weights, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tc.Version, tc.ApproveAbove, tc.RejectBelow, string(bars), string(weights),
		tc.Note, tc.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert threshold version %d: %w", tc.Version, err)
	}
	return nil
}

// ActiveThresholds returns the highest stored threshold version, or nil when
// the history is empty.
func (db *DB) ActiveThresholds() (*engine.ThresholdConfig, error) {
	row := db.QueryRow(`
		SELECT version, approve_above, reject_below, approve_bars, weights, note, created_at
		FROM threshold_versions ORDER BY version DESC LIMIT 1`)

	tc, err := scanThresholds(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active thresholds: %w", err)
	}
	return tc, nil
}

// ListThresholds returns the full version history, newest first.
func (db *DB) ListThresholds() ([]engine.ThresholdConfig, error) {
	rows, err := db.Query(`
		SELECT version, approve_above, reject_below, approve_bars, weights, note, created_at
		FROM threshold_versions ORDER BY version DESC`)
	if err != nil {
		return nil, fmt.Errorf("list thresholds: %w", err)
	}
	defer rows.Close()

	var history []engine.ThresholdConfig
	for rows.Next() {
		tc, err := scanThresholds(rows)
		if err != nil {
			return nil, fmt.Errorf("scan threshold version: %w", err)
		}
		history = append(history, *tc)
	}
	return history, rows.Err()
}

func scanThresholds(row rowScanner) (*engine.ThresholdConfig, error) {
	var (
		tc            engine.ThresholdConfig
		bars, weights string
		createdAt     int64
	)
	err := row.Scan(&tc.Version, &tc.ApproveAbove, &tc.RejectBelow, &bars,
		&weights, &tc.Note, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(bars), &tc.ApproveBars); err != nil {
		return nil, fmt.Errorf("unmarshal approve bars: %w", err)
	}
	if err := json.Unmarshal([]byte(weights), &tc.Weights); err != nil {
		return nil, fmt.Errorf("unmarshal weights: %w", err)
	}
	tc.CreatedAt = time.UnixMilli(createdAt)
	return &tc, nil
}
