package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/moodgate/internal/engine"
	"github.com/lazypower/moodgate/internal/store"
)

// uniformIndicators yields five equal sub-scores of 0.6 once normalized, so
// signal coherence is perfect and the decision outcome is predictable.
const uniformIndicators = `{
	"sentiment": {"positive": 0.1, "negative": 0, "neutral": 0.9},
	"psychological": {"stress": 0.4, "coping": 0.6, "resilience": 0.6},
	"relationship": {"support": 0.6, "intimacy": 0.6},
	"conversational": {"flow": 0.6, "engagement": 0.6},
	"historical": {"baseline": 6.0, "deviation": 0}
}`

func fullContext(extractionConfidence string) string {
	return `{
		"participant_id": "alice",
		"relationship": {"closeness": 0.7, "history_len": 40, "supportive": true},
		"baseline": {"typical_low": 5.0, "typical_high": 7.0, "stability": 0.8},
		"extraction_confidence": ` + extractionConfidence + `
	}`
}

func postJSON(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestScoreText(t *testing.T) {
	srv := testServer(t)

	body := `{"text": "I am so grateful, things are finally getting better!", "context": ` + fullContext("0.9") + `}`
	w := postJSON(t, srv, "/api/score", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Score struct {
			Value         float64 `json:"value"`
			Confidence    float64 `json:"confidence"`
			ParticipantID string  `json:"participant_id"`
		} `json:"score"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Score.Value <= 5.0 {
		t.Errorf("value = %.1f, want above neutral for positive text", resp.Score.Value)
	}
	if resp.Score.ParticipantID != "alice" {
		t.Errorf("participant = %q, want alice", resp.Score.ParticipantID)
	}
}

func TestScoreRequiresInput(t *testing.T) {
	srv := testServer(t)

	w := postJSON(t, srv, "/api/score", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestScoreRejectsOutOfRangeIndicators(t *testing.T) {
	srv := testServer(t)

	body := `{"indicators": {"sentiment": {"positive": 1.5, "negative": 0, "neutral": 0}}}`
	w := postJSON(t, srv, "/api/score", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestScoreBatchGroupsByParticipant(t *testing.T) {
	srv := testServer(t)

	body := `{"items": [
		{"item_id": "a1", "text": "I am so anxious and overwhelmed", "context": {"participant_id": "alice"}, "timestamp": "2026-08-01T10:00:00Z"},
		{"item_id": "b1", "text": "work is fine", "context": {"participant_id": "bob"}, "timestamp": "2026-08-01T10:00:00Z"}
	]}`
	w := postJSON(t, srv, "/api/score/batch", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Participants map[string][]json.RawMessage `json:"participants"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(resp.Participants["alice"]) != 1 || len(resp.Participants["bob"]) != 1 {
		t.Errorf("participants = %v, want one score each for alice and bob", resp.Participants)
	}
}

func TestDeltasEndpoint(t *testing.T) {
	srv := testServer(t)

	body := `{"scores": [
		{"value": 3.0, "confidence": 0.8, "participant_id": "alice", "timestamp": "2026-08-01T10:00:00Z"},
		{"value": 6.5, "confidence": 0.8, "participant_id": "alice", "timestamp": "2026-08-01T10:30:00Z"}
	]}`
	w := postJSON(t, srv, "/api/deltas", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Deltas []struct {
			Magnitude  float64 `json:"magnitude"`
			Transition string  `json:"transition_type"`
		} `json:"deltas"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(resp.Deltas) != 1 {
		t.Fatalf("deltas = %d, want 1", len(resp.Deltas))
	}
	if resp.Deltas[0].Transition != "recovery" {
		t.Errorf("transition = %s, want recovery", resp.Deltas[0].Transition)
	}
}

func TestDeltasRejectsMixedParticipants(t *testing.T) {
	srv := testServer(t)

	body := `{"scores": [
		{"value": 3.0, "confidence": 0.8, "participant_id": "alice", "timestamp": "2026-08-01T10:00:00Z"},
		{"value": 6.5, "confidence": 0.8, "participant_id": "bob", "timestamp": "2026-08-01T10:30:00Z"}
	]}`
	w := postJSON(t, srv, "/api/deltas", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestTimelineEndpoint(t *testing.T) {
	srv := testServer(t)

	body := `{"window": "week", "scores": [
		{"value": 5.0, "confidence": 0.8, "participant_id": "alice", "timestamp": "2026-08-01T10:00:00Z"},
		{"value": 6.0, "confidence": 0.8, "participant_id": "alice", "timestamp": "2026-08-02T10:00:00Z"}
	]}`
	w := postJSON(t, srv, "/api/timeline", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Window string            `json:"window"`
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Window != "week" {
		t.Errorf("window = %s, want week", resp.Window)
	}
	if len(resp.Events) != 2 {
		t.Errorf("events = %d, want 2", len(resp.Events))
	}
}

func decideBody(extractionConfidence, significance string) string {
	return `{
		"item_id": "mem-001",
		"indicators": ` + uniformIndicators + `,
		"context": ` + fullContext(extractionConfidence) + `,
		"significance": ` + significance + `
	}`
}

func TestDecideAutoApprove(t *testing.T) {
	srv := testServer(t)

	w := postJSON(t, srv, "/api/decide", decideBody("0.9", `{}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Decision struct {
			ID      string `json:"id"`
			Outcome string `json:"outcome"`
		} `json:"decision"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Decision.Outcome != "auto_approve" {
		t.Fatalf("outcome = %s, want auto_approve", resp.Decision.Outcome)
	}

	// The persisted decision is retrievable by ID.
	w = getJSON(t, srv, "/api/decisions/"+resp.Decision.ID)
	if w.Code != http.StatusOK {
		t.Errorf("get decision status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestDecideReviewFlowThroughQueue(t *testing.T) {
	srv := testServer(t)

	// Low extraction confidence plus critical significance forces review.
	sig := `{"delta_magnitude": 4, "relationship_importance": 1, "pattern_novelty": 1, "urgent": true}`
	w := postJSON(t, srv, "/api/decide", decideBody("0.4", sig))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Decision struct {
			ID      string `json:"id"`
			Outcome string `json:"outcome"`
		} `json:"decision"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Decision.Outcome != "review_required" {
		t.Fatalf("outcome = %s, want review_required", resp.Decision.Outcome)
	}

	// The decision sits in the queue.
	w = getJSON(t, srv, "/api/queue")
	var queue struct {
		Depth int `json:"depth"`
	}
	json.Unmarshal(w.Body.Bytes(), &queue)
	if queue.Depth != 1 {
		t.Fatalf("queue depth = %d, want 1", queue.Depth)
	}

	// A reviewer claims it.
	w = postJSON(t, srv, "/api/queue/claim", `{"reviewer": "reviewer-1"}`)
	var claim struct {
		Claimed bool `json:"claimed"`
		Item    struct {
			DecisionID string `json:"decision_id"`
		} `json:"item"`
	}
	json.Unmarshal(w.Body.Bytes(), &claim)
	if !claim.Claimed {
		t.Fatal("claim failed on non-empty queue")
	}
	if claim.Item.DecisionID != resp.Decision.ID {
		t.Errorf("claimed %s, want %s", claim.Item.DecisionID, resp.Decision.ID)
	}

	// Recording the verdict resolves the queue entry.
	w = postJSON(t, srv, "/api/decisions/"+resp.Decision.ID+"/outcome", `{"human": "confirmed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("outcome status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	w = getJSON(t, srv, "/api/queue")
	json.Unmarshal(w.Body.Bytes(), &queue)
	if queue.Depth != 0 {
		t.Errorf("queue depth = %d after outcome, want 0", queue.Depth)
	}
}

func TestDecideRequiresItemID(t *testing.T) {
	srv := testServer(t)

	w := postJSON(t, srv, "/api/decide", `{"text": "hello"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestRecordOutcomeValidation(t *testing.T) {
	srv := testServer(t)

	w := postJSON(t, srv, "/api/decisions/nope/outcome", `{"human": "maybe"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid verdict status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = postJSON(t, srv, "/api/decisions/nope/outcome", `{"human": "confirmed"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown decision status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRecordOutcomeStoreFailureIs500(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	eng, err := engine.New(db, engine.Options{ClaimTimeout: time.Minute})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(eng.Stop)
	srv := New(db, eng, "test-version")

	w := postJSON(t, srv, "/api/decide", decideBody("0.9", `{}`))
	if w.Code != http.StatusOK {
		t.Fatalf("decide status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var resp struct {
		Decision struct {
			ID string `json:"id"`
		} `json:"decision"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	// Outcome writes fail once the database is gone. That is a server
	// fault, not a missing decision.
	db.Close()

	w = postJSON(t, srv, "/api/decisions/"+resp.Decision.ID+"/outcome", `{"human": "confirmed"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusInternalServerError, w.Body.String())
	}
}

func TestQueueClaimEmpty(t *testing.T) {
	srv := testServer(t)

	w := postJSON(t, srv, "/api/queue/claim", `{"reviewer": "reviewer-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var claim struct {
		Claimed bool `json:"claimed"`
	}
	json.Unmarshal(w.Body.Bytes(), &claim)
	if claim.Claimed {
		t.Error("claimed an item from an empty queue")
	}
}

func TestThresholdsEndpoints(t *testing.T) {
	srv := testServer(t)

	w := getJSON(t, srv, "/api/thresholds")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var tc struct {
		Version      int     `json:"version"`
		ApproveAbove float64 `json:"approve_above"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &tc); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if tc.Version != 1 || tc.ApproveAbove != 0.75 {
		t.Errorf("thresholds = v%d approve %.2f, want v1 approve 0.75", tc.Version, tc.ApproveAbove)
	}

	w = getJSON(t, srv, "/api/thresholds/history")
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d, want %d", w.Code, http.StatusOK)
	}
	var history struct {
		Count int `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &history)
	if history.Count != 1 {
		t.Errorf("history count = %d, want 1 (seeded defaults)", history.Count)
	}
}

func TestCalibrateEndpointThinBatch(t *testing.T) {
	srv := testServer(t)

	w := postJSON(t, srv, "/api/calibrate", ``)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}
