// Package web serves the latest reconciled snapshot over HTTP and websockets.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unklstewy/flightwatch/pkg/flight"
	"github.com/unklstewy/flightwatch/pkg/provider"
	"github.com/unklstewy/flightwatch/pkg/tracker"
)

// Tracker is the part of the polling loop the server controls.
type Tracker interface {
	Stats() tracker.Stats
	Airline() string
	SetAirline(airline string)
	Zone() string
}

// Directory answers airline lookups for filter validation.
type Directory interface {
	Loaded() bool
	List() []provider.Airline
	Lookup(icao string) (provider.Airline, bool)
	Updated() (time.Time, string)
}

// Database is the optional store behind the airline directory.
type Database interface {
	HealthCheck(ctx context.Context) error
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// Server holds the HTTP router and its dependencies.
type Server struct {
	router    *chi.Mux
	tracker   Tracker
	directory Directory
	database  Database
	hub       *Hub
	logger    *slog.Logger

	mu     sync.RWMutex
	latest []byte
}

// NewServer creates a server. directory may be nil, in which case any
// airline code is accepted.
func NewServer(t Tracker, directory Directory, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:    chi.NewRouter(),
		tracker:   t,
		directory: directory,
		hub:       NewHub(logger),
		logger:    logger,
	}
	s.setupRoutes()
	return s
}

// SetDatabase makes /healthz and /api/v1/stats report on db.
// It must be called before the server starts handling requests.
func (s *Server) SetDatabase(db Database) {
	s.database = db
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Publish records snap as the latest snapshot and pushes it to websocket
// clients. It is a tracker.Sink.
func (s *Server) Publish(snap flight.Snapshot) {
	body, err := json.Marshal(newFlightsResponse(snap))
	if err != nil {
		s.logger.Error("failed to encode snapshot", slog.Any("error", err))
		return
	}

	s.mu.Lock()
	s.latest = body
	s.mu.Unlock()

	s.hub.Broadcast(body)
}

func (s *Server) latestBody() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		// The websocket route must see the raw ResponseWriter.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Logger)
			r.Use(middleware.Compress(5))

			r.Get("/flights", s.handleGetFlights)
			r.Get("/stats", s.handleGetStats)
			r.Get("/filter", s.handleGetFilter)
			r.Put("/filter", s.handlePutFilter)
			r.Get("/airlines", s.handleGetAirlines)
			r.Get("/zones", s.handleGetZones)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.database == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if err := s.database.HealthCheck(r.Context()); err != nil {
		s.logger.Warn("database health check failed", slog.Any("error", err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "ok",
	})
}

func (s *Server) handleGetFlights(w http.ResponseWriter, r *http.Request) {
	body := s.latestBody()
	if body == nil {
		http.Error(w, "No snapshot available yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

type statsResponse struct {
	tracker.Stats
	WebSocketClients int                    `json:"websocket_clients"`
	Directory        *directoryStats        `json:"directory,omitempty"`
	Database         map[string]interface{} `json:"database,omitempty"`
}

type directoryStats struct {
	Airlines  int        `json:"airlines"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Source    string     `json:"source,omitempty"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.tracker.Stats()
	stats.Airline = airlineLabel(stats.Airline)
	resp := statsResponse{
		Stats:            stats,
		WebSocketClients: s.hub.Count(),
	}

	if s.directory != nil {
		updated, source := s.directory.Updated()
		resp.Directory = &directoryStats{
			Airlines: len(s.directory.List()),
			Source:   source,
		}
		if !updated.IsZero() {
			resp.Directory.UpdatedAt = &updated
		}
	}

	if s.database != nil {
		dbStats, err := s.database.GetStats(r.Context())
		if err != nil {
			s.logger.Warn("failed to read database stats", slog.Any("error", err))
			dbStats = map[string]interface{}{"error": err.Error()}
		}
		resp.Database = dbStats
	}

	respondJSON(w, http.StatusOK, resp)
}

type filterRequest struct {
	Airline string `json:"airline"`
}

type filterResponse struct {
	Airline string `json:"airline"`
	Name    string `json:"name,omitempty"`
	Zone    string `json:"zone"`
}

func (s *Server) filterResponse(airline string) filterResponse {
	resp := filterResponse{
		Airline: airlineLabel(airline),
		Zone:    s.tracker.Zone(),
	}
	if s.directory != nil && airline != flight.AllAirlines {
		if a, ok := s.directory.Lookup(airline); ok {
			resp.Name = a.Name
		}
	}
	return resp
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.filterResponse(s.tracker.Airline()))
}

func (s *Server) handlePutFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	airline := provider.NormalizeAirline(req.Airline)
	if airline != flight.AllAirlines && s.directory != nil && s.directory.Loaded() {
		if _, ok := s.directory.Lookup(airline); !ok {
			http.Error(w, "Unknown airline code: "+strings.TrimSpace(req.Airline), http.StatusBadRequest)
			return
		}
	}

	s.tracker.SetAirline(airline)
	s.logger.Info("airline filter requested", slog.String("airline", airlineLabel(airline)))

	respondJSON(w, http.StatusOK, s.filterResponse(airline))
}

func (s *Server) handleGetAirlines(w http.ResponseWriter, r *http.Request) {
	airlines := []provider.Airline{}
	if s.directory != nil {
		airlines = s.directory.List()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(airlines),
		"airlines": airlines,
	})
}

func (s *Server) handleGetZones(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"zones":   provider.ZoneNames(),
		"current": s.tracker.Zone(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, s.latestBody())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// NewHTTPServer wraps handler with the timeouts used by the service.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
