package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cartridge/skyrts/internal/actor"
	"github.com/cartridge/skyrts/internal/middleware"
	"github.com/cartridge/skyrts/internal/storage"
)

const (
	defaultEpisodeLimit = 50
	maxEpisodeLimit     = 1000
)

// DefaultStaleAfter is how long an actor may go without stepping before
// /healthz reports it unhealthy.
const DefaultStaleAfter = 2 * time.Minute

// StatsSource is satisfied by *actor.Actor.
type StatsSource interface {
	Stats() actor.Stats
}

// Server exposes the actor's counters and episode history over HTTP.
type Server struct {
	source     StatsSource
	store      storage.Store
	logger     zerolog.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// NewServer constructs a Server instance.
func NewServer(source StatsSource, store storage.Store, logger zerolog.Logger) *Server {
	return &Server{
		source:     source,
		store:      store,
		logger:     logger,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// WithStaleAfter overrides DefaultStaleAfter. Zero disables the check.
func (s *Server) WithStaleAfter(d time.Duration) *Server {
	s.staleAfter = d
	return s
}

// Routes builds the HTTP router for the status endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/episodes", s.handleListEpisodes)
		r.Get("/episodes/{episodeID}", s.handleGetEpisode)
	})
	return r
}

type healthResponse struct {
	Status      string  `json:"status"`
	Uptime      string  `json:"uptime"`
	IdleSeconds float64 `json:"idle_seconds,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.source.Stats()
	now := s.now()
	resp := healthResponse{Status: "ok", Uptime: now.Sub(stats.StartedAt).Round(time.Second).String()}

	// only an actor that has stepped before can go stale
	if !stats.LastStepAt.IsZero() {
		idle := now.Sub(stats.LastStepAt)
		resp.IdleSeconds = idle.Seconds()
		if s.staleAfter > 0 && idle > s.staleAfter {
			resp.Status = "stale"
			s.writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.source.Stats())
}

func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	limit := defaultEpisodeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxEpisodeLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	episodes, err := s.store.ListEpisodes(r.Context(), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if episodes == nil {
		episodes = []storage.Episode{}
	}
	s.writeJSON(w, http.StatusOK, episodes)
}

func (s *Server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	ep, err := s.store.GetEpisode(r.Context(), chi.URLParam(r, "episodeID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ep)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error().Err(err).Msg("episode store failed")
		s.writeError(w, http.StatusInternalServerError, "episode store unavailable")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
