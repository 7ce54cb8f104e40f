package config

import "fmt"

// Config holds all moodgate configuration.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Scoring     ScoringConfig     `toml:"scoring"`
	Decision    DecisionConfig    `toml:"decision"`
	Calibration CalibrationConfig `toml:"calibration"`
	Queue       QueueConfig       `toml:"queue"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ScoringConfig holds the per-factor mood score weights. Only the initial
// version uses these; calibration carries weights forward in threshold
// versions after that.
type ScoringConfig struct {
	Sentiment      float64 `toml:"sentiment"`
	Psychological  float64 `toml:"psychological"`
	Relationship   float64 `toml:"relationship"`
	Conversational float64 `toml:"conversational"`
	Historical     float64 `toml:"historical"`
}

type DecisionConfig struct {
	ApproveAbove float64 `toml:"approve_above"`
	RejectBelow  float64 `toml:"reject_below"`
	ElevatedBar  float64 `toml:"elevated_bar"` // approve bar for high/critical items
}

type CalibrationConfig struct {
	IntervalHours   int     `toml:"interval_hours"` // 0 disables the timer
	MaxStep         float64 `toml:"max_step"`
	MinBatch        int     `toml:"min_batch"`
	MinAgreement    float64 `toml:"min_agreement"`
	ApproveRateLow  float64 `toml:"approve_rate_low"`
	ApproveRateHigh float64 `toml:"approve_rate_high"`
}

type QueueConfig struct {
	ClaimTimeoutMinutes int `toml:"claim_timeout_minutes"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38080,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Scoring: ScoringConfig{
			Sentiment:      0.35,
			Psychological:  0.25,
			Relationship:   0.20,
			Conversational: 0.15,
			Historical:     0.05,
		},
		Decision: DecisionConfig{
			ApproveAbove: 0.75,
			RejectBelow:  0.50,
			ElevatedBar:  0.85,
		},
		Calibration: CalibrationConfig{
			IntervalHours:   24,
			MaxStep:         0.05,
			MinBatch:        20,
			MinAgreement:    0.60,
			ApproveRateLow:  0.50,
			ApproveRateHigh: 0.85,
		},
		Queue: QueueConfig{
			ClaimTimeoutMinutes: 15,
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
