package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lazypower/moodgate/internal/config"
	"github.com/lazypower/moodgate/internal/engine"
	"github.com/lazypower/moodgate/internal/store"
	"github.com/spf13/cobra"
)

// openDB is a helper that opens the database for CLI commands.
func openDB() (*store.DB, error) {
	dbPath := os.Getenv("MOODGATE_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreParticipant, "participant", "p", "", "Participant ID for the scored text")
}

// --- score command ---

var scoreParticipant string

var scoreCmd = &cobra.Command{
	Use:   "score [text]",
	Short: "Score the emotional content of a piece of text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	var ctx *engine.EmotionalContext
	if scoreParticipant != "" {
		ctx = &engine.EmotionalContext{ParticipantID: scoreParticipant}
	}

	cfg := config.Default()
	weights := engine.Weights{
		Sentiment:      cfg.Scoring.Sentiment,
		Psychological:  cfg.Scoring.Psychological,
		Relationship:   cfg.Scoring.Relationship,
		Conversational: cfg.Scoring.Conversational,
		Historical:     cfg.Scoring.Historical,
	}

	ind := engine.ExtractIndicators(text, ctx)
	score, err := engine.CalculateMoodScore(ind, ctx, weights)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}

	fmt.Printf("mood:       %.1f / 10\n", score.Value)
	fmt.Printf("confidence: %.2f\n", score.Confidence)
	if len(score.Descriptors) > 0 {
		fmt.Printf("reads as:   %s\n", strings.Join(score.Descriptors, ", "))
	}
	for _, area := range score.UncertaintyAreas {
		fmt.Printf("uncertain:  %s\n", area)
	}
	for _, s := range ind.Signals() {
		fmt.Printf("  %-15s %.2f", s.Kind, s.Score)
		if len(s.Evidence) > 0 {
			fmt.Printf("  (%s)", strings.Join(s.Evidence, "; "))
		}
		fmt.Println()
	}
	return nil
}

// --- queue command ---

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List decisions awaiting human review",
	RunE:  runQueue,
}

func runQueue(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	items, err := db.PendingReviews()
	if err != nil {
		return fmt.Errorf("pending reviews: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("Review queue is empty.")
		return nil
	}

	fmt.Printf("%d decision(s) awaiting review:\n\n", len(items))
	for _, item := range items {
		fmt.Printf("  [%s] %s  item=%s  significance=%.1f  enqueued=%s\n",
			item.Priority, item.DecisionID, item.ItemID, item.Significance,
			item.EnqueuedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// --- calibrate command ---

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Run one calibration pass over pending human outcomes",
	RunE:  runCalibrate,
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	eng, err := engine.New(db, engine.Options{})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Stop()

	next, report, err := eng.Recalibrate()
	if err != nil {
		var safety *engine.CalibrationSafetyError
		switch {
		case errors.As(err, &safety):
			fmt.Printf("calibration rejected: %s\n", safety.Reason)
			fmt.Printf("  batch=%d agreement=%.2f fp=%.2f fn=%.2f\n",
				report.Batch, report.AgreementRate, report.FalsePositiveRate, report.FalseNegativeRate)
			fmt.Printf("  version %d stays active\n", eng.Thresholds().Version)
			return nil
		case errors.Is(err, engine.ErrInsufficientData):
			fmt.Printf("not enough pending outcomes to calibrate (batch=%d)\n", report.Batch)
			return nil
		}
		return fmt.Errorf("calibrate: %w", err)
	}

	fmt.Printf("calibrated: version %d -> %d\n", next.Version-1, next.Version)
	fmt.Printf("  batch=%d agreement=%.2f fp=%.2f fn=%.2f\n",
		report.Batch, report.AgreementRate, report.FalsePositiveRate, report.FalseNegativeRate)
	fmt.Printf("  approve above %.2f, reject below %.2f\n", next.ApproveAbove, next.RejectBelow)
	return nil
}

// --- thresholds command ---

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Show the threshold version history",
	RunE:  runThresholds,
}

func runThresholds(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	history, err := db.ListThresholds()
	if err != nil {
		return fmt.Errorf("list thresholds: %w", err)
	}
	if len(history) == 0 {
		fmt.Println("No threshold versions yet. Start the server once to seed defaults.")
		return nil
	}

	for i, tc := range history {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Printf("%s v%-3d approve>%.2f reject<%.2f  %s  %s\n",
			marker, tc.Version, tc.ApproveAbove, tc.RejectBelow,
			tc.CreatedAt.Format("2006-01-02 15:04"), tc.Note)
	}
	return nil
}
