package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/moodgate/internal/engine"
	"github.com/lazypower/moodgate/internal/store"
)

// Server is the moodgate HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server with the given database, engine, and version string.
func New(db *store.DB, eng *engine.Engine, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Scoring and analysis
		r.Post("/score", s.handleScore)
		r.Post("/score/batch", s.handleScoreBatch)
		r.Post("/deltas", s.handleDeltas)
		r.Post("/timeline", s.handleTimeline)

		// Decisions and outcomes
		r.Post("/decide", s.handleDecide)
		r.Get("/decisions", s.handleListDecisions)
		r.Get("/decisions/{decisionID}", s.handleGetDecision)
		r.Post("/decisions/{decisionID}/outcome", s.handleRecordOutcome)

		// Review queue
		r.Get("/queue", s.handleQueueSnapshot)
		r.Post("/queue/claim", s.handleQueueClaim)
		r.Post("/queue/{decisionID}/release", s.handleQueueRelease)

		// Calibration
		r.Post("/calibrate", s.handleCalibrate)
		r.Get("/thresholds", s.handleThresholds)
		r.Get("/thresholds/history", s.handleThresholdHistory)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	dbPath := ""
	if s.db != nil {
		dbPath = s.db.Path
		if err := s.db.Ping(); err != nil {
			dbOK = false
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":            "ok",
		"version":           s.version,
		"uptime":            time.Since(s.started).Seconds(),
		"db":                dbOK,
		"db_path":           dbPath,
		"threshold_version": s.engine.Thresholds().Version,
		"queue_depth":       s.engine.Queue().Depth(),
	})
}
