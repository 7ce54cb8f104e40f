package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazypower/moodgate/internal/config"
	"github.com/lazypower/moodgate/internal/engine"
	"github.com/lazypower/moodgate/internal/server"
	"github.com/lazypower/moodgate/internal/store"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()

	// Resolve database path
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Config-file weights and decision bars seed version 1 only. Once a
	// stored version exists, calibration history wins over the config file.
	seed := engine.DefaultThresholds()
	seed.Weights = engine.Weights{
		Sentiment:      cfg.Scoring.Sentiment,
		Psychological:  cfg.Scoring.Psychological,
		Relationship:   cfg.Scoring.Relationship,
		Conversational: cfg.Scoring.Conversational,
		Historical:     cfg.Scoring.Historical,
	}
	seed.ApproveAbove = cfg.Decision.ApproveAbove
	seed.RejectBelow = cfg.Decision.RejectBelow
	seed.ApproveBars = map[engine.SignificanceTier]float64{
		engine.TierHigh:     cfg.Decision.ElevatedBar,
		engine.TierCritical: cfg.Decision.ElevatedBar,
	}
	seed.Note = "seeded from config"

	eng, err := engine.New(db, engine.Options{
		SeedThresholds: seed,
		Calibrator: engine.CalibratorConfig{
			MaxStep:         cfg.Calibration.MaxStep,
			MinBatch:        cfg.Calibration.MinBatch,
			MinAgreement:    cfg.Calibration.MinAgreement,
			ApproveRateLow:  cfg.Calibration.ApproveRateLow,
			ApproveRateHigh: cfg.Calibration.ApproveRateHigh,
		},
		ClaimTimeout:        time.Duration(cfg.Queue.ClaimTimeoutMinutes) * time.Minute,
		CalibrationInterval: time.Duration(cfg.Calibration.IntervalHours) * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	eng.StartCalibrationTimer()
	defer eng.Stop()

	// Decisions awaiting review before the last shutdown go back in the queue.
	pending, err := db.PendingReviews()
	if err != nil {
		return fmt.Errorf("rehydrate review queue: %w", err)
	}
	for _, item := range pending {
		eng.Queue().Enqueue(item)
	}

	srv := server.New(db, eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "moodgate serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "  thresholds: v%d\n", eng.Thresholds().Version)
		if len(pending) > 0 {
			fmt.Fprintf(os.Stderr, "  review queue: %d pending\n", len(pending))
		}
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
