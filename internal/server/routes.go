package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/moodgate/internal/engine"
)

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text       string                   `json:"text"`
		Indicators *engine.RawIndicators    `json:"indicators"`
		Context    *engine.EmotionalContext `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Text == "" && req.Indicators == nil {
		http.Error(w, `{"error":"text or indicators required"}`, http.StatusBadRequest)
		return
	}

	var (
		score engine.MoodScore
		ind   engine.EmotionalIndicators
		err   error
	)
	if req.Indicators != nil {
		score, ind, err = s.engine.ScoreIndicators(*req.Indicators, req.Context)
	} else {
		score, ind, err = s.engine.ScoreText(req.Text, req.Context)
	}
	if err != nil {
		var rangeErr *engine.IndicatorRangeError
		if errors.As(err, &rangeErr) {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"score":      score,
		"indicators": ind,
	})
}

func (s *Server) handleScoreBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []struct {
			ItemID    string                   `json:"item_id"`
			Text      string                   `json:"text"`
			Context   *engine.EmotionalContext `json:"context"`
			Timestamp time.Time                `json:"timestamp"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, `{"error":"items required"}`, http.StatusBadRequest)
		return
	}

	items := make([]engine.ConversationItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = engine.ConversationItem{
			ItemID:    it.ItemID,
			Text:      it.Text,
			Context:   it.Context,
			Timestamp: it.Timestamp,
		}
	}

	results, err := s.engine.ScoreConversations(items)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"participants": results,
	})
}

func (s *Server) handleDeltas(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scores []engine.MoodScore `json:"scores"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	deltas, err := engine.DetectDeltas(req.Scores)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	patterns := engine.ClassifyPatterns(req.Scores)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"deltas":   deltas,
		"patterns": patterns,
	})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scores []engine.MoodScore    `json:"scores"`
		Window engine.TimelineWindow `json:"window"`
		Limit  int                   `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	deltas, err := engine.DetectDeltas(req.Scores)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	tl := engine.BuildTimeline(req.Scores, deltas, req.Window, req.Limit)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tl)
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID       string                    `json:"item_id"`
		Text         string                    `json:"text"`
		Indicators   *engine.RawIndicators     `json:"indicators"`
		Context      *engine.EmotionalContext  `json:"context"`
		Significance *engine.SignificanceInput `json:"significance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.ItemID == "" {
		http.Error(w, `{"error":"item_id required"}`, http.StatusBadRequest)
		return
	}
	if req.Text == "" && req.Indicators == nil {
		http.Error(w, `{"error":"text or indicators required"}`, http.StatusBadRequest)
		return
	}

	var (
		score engine.MoodScore
		ind   engine.EmotionalIndicators
		err   error
	)
	if req.Indicators != nil {
		score, ind, err = s.engine.ScoreIndicators(*req.Indicators, req.Context)
	} else {
		score, ind, err = s.engine.ScoreText(req.Text, req.Context)
	}
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	sigInput := engine.SignificanceInput{}
	if req.Significance != nil {
		sigInput = *req.Significance
	}
	significance, _ := engine.WeighSignificance(sigInput)

	participantID := ""
	if req.Context != nil {
		participantID = req.Context.ParticipantID
	}

	decision, err := s.engine.Decide(engine.DecisionInput{
		ItemID:        req.ItemID,
		ParticipantID: participantID,
		Indicators:    ind,
		Confidence:    score.Confidence,
		Significance:  significance,
	})
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"decision": decision,
		"score":    score,
	})
}

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, `{"error":"persistence not configured"}`, http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	decisions, err := s.db.ListDecisions(limit)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":     len(decisions),
		"decisions": decisions,
	})
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, `{"error":"persistence not configured"}`, http.StatusServiceUnavailable)
		return
	}

	decisionID := chi.URLParam(r, "decisionID")
	d, err := s.db.GetDecision(decisionID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if d == nil {
		http.Error(w, `{"error":"decision not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d)
}

func (s *Server) handleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")

	var req struct {
		Human engine.HumanOutcome `json:"human"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Human != engine.HumanConfirmed && req.Human != engine.HumanOverturned {
		http.Error(w, `{"error":"human must be confirmed or overturned"}`, http.StatusBadRequest)
		return
	}

	if err := s.engine.RecordOutcome(decisionID, req.Human); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrUnknownDecision) {
			status = http.StatusNotFound
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "recorded"})
}

func (s *Server) handleQueueSnapshot(w http.ResponseWriter, r *http.Request) {
	items := s.engine.Queue().Snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"depth": len(items),
		"items": items,
	})
}

func (s *Server) handleQueueClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reviewer string `json:"reviewer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Reviewer == "" {
		http.Error(w, `{"error":"reviewer required"}`, http.StatusBadRequest)
		return
	}

	item, ok := s.engine.Queue().Claim(req.Reviewer)
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		json.NewEncoder(w).Encode(map[string]any{"claimed": false})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"claimed": true,
		"item":    item,
	})
}

func (s *Server) handleQueueRelease(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")
	s.engine.Queue().Release(decisionID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "released"})
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	next, report, err := s.engine.Recalibrate()
	if err != nil {
		var safety *engine.CalibrationSafetyError
		status := http.StatusBadRequest
		if errors.As(err, &safety) {
			status = http.StatusConflict
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  err.Error(),
			"report": report,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"thresholds": next,
		"report":     report,
	})
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.engine.Thresholds())
}

func (s *Server) handleThresholdHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, `{"error":"persistence not configured"}`, http.StatusServiceUnavailable)
		return
	}

	history, err := s.db.ListThresholds()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":    len(history),
		"versions": history,
	})
}
