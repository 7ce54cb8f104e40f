package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "decisions: routing results with reasoning",
		SQL: `
CREATE TABLE decisions (
    id                TEXT PRIMARY KEY,
    item_id           TEXT NOT NULL,
    participant_id    TEXT,
    outcome           TEXT NOT NULL CHECK (outcome IN ('auto_approve', 'review_required', 'auto_reject')),
    confidence        REAL NOT NULL,
    significance      REAL NOT NULL,
    tier              TEXT NOT NULL CHECK (tier IN ('low', 'medium', 'high', 'critical')),
    review_priority   TEXT,
    reasoning         TEXT NOT NULL,
    threshold_version INTEGER NOT NULL,
    decided_at        INTEGER NOT NULL
);

CREATE INDEX idx_decisions_item        ON decisions(item_id);
CREATE INDEX idx_decisions_participant ON decisions(participant_id);
CREATE INDEX idx_decisions_outcome     ON decisions(outcome);
CREATE INDEX idx_decisions_decided_at  ON decisions(decided_at DESC);
`,
	},
	{
		Version:     2,
		Description: "decision_outcomes: human verdicts superseding decisions",
		SQL: `
CREATE TABLE decision_outcomes (
    id           INTEGER PRIMARY KEY,
    decision_id  TEXT NOT NULL,
    outcome      TEXT NOT NULL,
    confidence   REAL NOT NULL,
    significance REAL NOT NULL,
    human        TEXT NOT NULL CHECK (human IN ('confirmed', 'overturned')),
    recorded_at  INTEGER NOT NULL,
    calibrated   INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY (decision_id) REFERENCES decisions(id)
);

CREATE INDEX idx_outcomes_decision   ON decision_outcomes(decision_id);
CREATE INDEX idx_outcomes_calibrated ON decision_outcomes(calibrated, recorded_at);
`,
	},
	{
		Version:     3,
		Description: "threshold_versions: immutable threshold history",
		SQL: `
CREATE TABLE threshold_versions (
    version       INTEGER PRIMARY KEY,
    approve_above REAL NOT NULL,
    reject_below  REAL NOT NULL,
    approve_bars  TEXT NOT NULL,
    weights       TEXT NOT NULL,
    note          TEXT,
    created_at    INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
