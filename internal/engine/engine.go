package engine

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// AuditStore persists decisions, outcomes, and threshold versions for audit
// and reproducibility. The engine runs fine without one (pure in-memory);
// the server wires in the SQLite implementation.
type AuditStore interface {
	SaveDecision(d ValidationDecision) error
	GetDecision(id string) (*ValidationDecision, error)
	SaveOutcome(rec OutcomeRecord) error
	PendingOutcomes() ([]OutcomeRecord, error)
	MarkOutcomesCalibrated(before time.Time) error
	SaveThresholds(tc *ThresholdConfig) error
	ActiveThresholds() (*ThresholdConfig, error)
}

// Options configures an Engine.
type Options struct {
	Calibrator          CalibratorConfig
	SeedThresholds      *ThresholdConfig // becomes version 1 when no stored version exists
	ClaimTimeout        time.Duration
	CalibrationInterval time.Duration    // 0 disables the timer
}

// Engine orchestrates scoring, decision routing, the review queue, and the
// calibration loop. Scoring itself is pure; the engine's only mutable state
// is the active threshold snapshot (swapped atomically), the review queue,
// and the pending outcome batch.
type Engine struct {
	store AuditStore // may be nil
	queue *ReviewQueue
	opts  Options

	thresholds atomic.Pointer[ThresholdConfig]

	// calMu serializes calibration runs: single writer, never concurrent
	// with itself. Scoring keeps reading the previous snapshot until the
	// swap completes.
	calMu sync.Mutex

	mu        sync.Mutex
	decisions map[string]ValidationDecision
	pending   []OutcomeRecord

	stopCh chan struct{}
}

// New creates an Engine. A nil store keeps all state in memory. The active
// threshold version is loaded from the store when one exists; otherwise the
// seed from Options (or the defaults) becomes version 1.
func New(store AuditStore, opts Options) (*Engine, error) {
	if opts.Calibrator == (CalibratorConfig{}) {
		opts.Calibrator = DefaultCalibratorConfig()
	}

	e := &Engine{
		store:     store,
		queue:     NewReviewQueue(opts.ClaimTimeout),
		opts:      opts,
		decisions: make(map[string]ValidationDecision),
		stopCh:    make(chan struct{}),
	}

	tc := opts.SeedThresholds
	if tc == nil {
		tc = DefaultThresholds()
	}
	if store != nil {
		stored, err := store.ActiveThresholds()
		if err != nil {
			return nil, fmt.Errorf("load thresholds: %w", err)
		}
		if stored != nil {
			tc = stored
		} else if err := store.SaveThresholds(tc); err != nil {
			return nil, fmt.Errorf("seed thresholds: %w", err)
		}
	}
	e.thresholds.Store(tc)
	return e, nil
}

// Thresholds returns the active threshold snapshot. Snapshots are immutable,
// so reads need no locking.
func (e *Engine) Thresholds() *ThresholdConfig {
	return e.thresholds.Load()
}

// Queue exposes the review queue.
func (e *Engine) Queue() *ReviewQueue {
	return e.queue
}

// ScoreText runs the full extraction and scoring pipeline over raw text.
func (e *Engine) ScoreText(text string, ctx *EmotionalContext) (MoodScore, EmotionalIndicators, error) {
	ind := ExtractIndicators(text, ctx)
	score, err := CalculateMoodScore(ind, ctx, e.Thresholds().Weights)
	return score, ind, err
}

// ScoreIndicators scores a pre-extracted indicator payload.
func (e *Engine) ScoreIndicators(raw RawIndicators, ctx *EmotionalContext) (MoodScore, EmotionalIndicators, error) {
	ind, err := raw.Normalize()
	if err != nil {
		return MoodScore{}, EmotionalIndicators{}, err
	}
	score, err := CalculateMoodScore(ind, ctx, e.Thresholds().Weights)
	return score, ind, err
}

// ConversationItem is one text to score within a batch.
type ConversationItem struct {
	ItemID    string
	Text      string
	Context   *EmotionalContext
	Timestamp time.Time
}

// ScoreConversations scores a batch with one worker per participant
// timeline: items for different participants run concurrently, items within
// one participant run in chronological order. Returns ordered scores keyed
// by participant.
func (e *Engine) ScoreConversations(items []ConversationItem) (map[string][]MoodScore, error) {
	byParticipant := make(map[string][]ConversationItem)
	for _, it := range items {
		pid := ""
		if it.Context != nil {
			pid = it.Context.ParticipantID
		}
		byParticipant[pid] = append(byParticipant[pid], it)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  = make(map[string][]MoodScore, len(byParticipant))
		firstErr error
	)
	for pid, batch := range byParticipant {
		wg.Add(1)
		go func(pid string, batch []ConversationItem) {
			defer wg.Done()
			sort.SliceStable(batch, func(i, j int) bool {
				return batch[i].Timestamp.Before(batch[j].Timestamp)
			})
			scores := make([]MoodScore, 0, len(batch))
			for _, it := range batch {
				score, _, err := e.ScoreText(it.Text, it.Context)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("score item %s: %w", it.ItemID, err)
					}
					mu.Unlock()
					return
				}
				score.Timestamp = it.Timestamp
				scores = append(scores, score)
			}
			mu.Lock()
			results[pid] = scores
			mu.Unlock()
		}(pid, batch)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// Decide routes one scored item under the active threshold version,
// persists the decision, and enqueues it for review when required.
func (e *Engine) Decide(in DecisionInput) (ValidationDecision, error) {
	d, err := Decide(in, e.Thresholds())
	if err != nil {
		return ValidationDecision{}, err
	}

	e.mu.Lock()
	e.decisions[d.ID] = d
	e.mu.Unlock()

	if e.store != nil {
		if err := e.store.SaveDecision(d); err != nil {
			return ValidationDecision{}, fmt.Errorf("save decision: %w", err)
		}
	}

	if d.Outcome == OutcomeReviewRequired {
		e.queue.Enqueue(ReviewItem{
			DecisionID:   d.ID,
			ItemID:       d.ItemID,
			Priority:     d.ReviewPriority,
			Significance: d.Significance,
			EnqueuedAt:   d.DecidedAt,
		})
	}
	return d, nil
}

// RecordOutcome records a human verdict on a past decision. The decision is
// superseded, not mutated: the outcome lands in the pending calibration
// batch and the audit trail.
func (e *Engine) RecordOutcome(decisionID string, human HumanOutcome) error {
	if human != HumanConfirmed && human != HumanOverturned {
		return fmt.Errorf("record outcome: unknown human outcome %q", human)
	}

	e.mu.Lock()
	d, ok := e.decisions[decisionID]
	e.mu.Unlock()
	if !ok && e.store != nil {
		stored, err := e.store.GetDecision(decisionID)
		if err != nil {
			return fmt.Errorf("load decision: %w", err)
		}
		if stored != nil {
			d, ok = *stored, true
		}
	}
	if !ok {
		return fmt.Errorf("record outcome: %w %s", ErrUnknownDecision, decisionID)
	}

	rec := OutcomeRecord{
		DecisionID:   d.ID,
		Outcome:      d.Outcome,
		Confidence:   d.Confidence,
		Significance: d.Significance,
		Human:        human,
		RecordedAt:   time.Now(),
	}

	e.mu.Lock()
	e.pending = append(e.pending, rec)
	e.mu.Unlock()

	if e.store != nil {
		if err := e.store.SaveOutcome(rec); err != nil {
			return fmt.Errorf("save outcome: %w", err)
		}
	}

	e.queue.Resolve(decisionID)
	return nil
}

// Recalibrate runs one calibration pass over the pending outcome batch.
// Runs never overlap. On success the new threshold version is swapped in
// atomically; on a safety rejection the previous version stays active and
// the event is logged for operator attention.
func (e *Engine) Recalibrate() (*ThresholdConfig, CalibrationReport, error) {
	e.calMu.Lock()
	defer e.calMu.Unlock()

	records, err := e.outcomeBatch()
	if err != nil {
		return nil, CalibrationReport{}, err
	}

	active := e.Thresholds()
	next, report, err := Calibrate(records, active, e.opts.Calibrator)
	if err != nil {
		if _, unsafe := err.(*CalibrationSafetyError); unsafe {
			log.Printf("calibrate: %v (version %d stays active)", err, active.Version)
		}
		return nil, report, err
	}

	// The calibrated cutoff is the newest record actually consumed, not the
	// wall clock: outcomes recorded while this run was underway stay pending
	// for the next batch.
	cutoff := latestRecordedAt(records)

	if e.store != nil {
		if err := e.store.SaveThresholds(next); err != nil {
			return nil, report, fmt.Errorf("save thresholds: %w", err)
		}
		if err := e.store.MarkOutcomesCalibrated(cutoff); err != nil {
			return nil, report, fmt.Errorf("mark outcomes calibrated: %w", err)
		}
	}

	e.thresholds.Store(next)
	e.mu.Lock()
	kept := e.pending[:0]
	for _, rec := range e.pending {
		if rec.RecordedAt.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	e.pending = kept
	e.mu.Unlock()

	log.Printf("calibrate: version %d -> %d (agreement %.2f, approve bar %.2f, reject bar %.2f)",
		active.Version, next.Version, report.AgreementRate, next.ApproveAbove, next.RejectBelow)
	return next, report, nil
}

func latestRecordedAt(records []OutcomeRecord) time.Time {
	var latest time.Time
	for _, r := range records {
		if r.RecordedAt.After(latest) {
			latest = r.RecordedAt
		}
	}
	return latest
}

// outcomeBatch prefers the durable outcome log over the in-memory batch.
func (e *Engine) outcomeBatch() ([]OutcomeRecord, error) {
	if e.store != nil {
		records, err := e.store.PendingOutcomes()
		if err != nil {
			return nil, fmt.Errorf("load outcomes: %w", err)
		}
		return records, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	records := make([]OutcomeRecord, len(e.pending))
	copy(records, e.pending)
	return records, nil
}

// StartCalibrationTimer runs calibration on the configured cadence until
// Stop. Safety rejections and thin batches are logged and retried next tick.
func (e *Engine) StartCalibrationTimer() {
	interval := e.opts.CalibrationInterval
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, _, err := e.Recalibrate(); err != nil {
					log.Printf("calibrate: scheduled run skipped: %v", err)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}
