// Package web provides an HTTP status server for the spot-outlet daemon.
package web

import (
	"context"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sweeney/spot-outlet/internal/logic"
	"github.com/sweeney/spot-outlet/internal/metrics"
	"github.com/sweeney/spot-outlet/internal/state"
	"github.com/sweeney/spot-outlet/internal/status"
)

// Server serves the status page, metrics and the virtual button over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	store      *state.Store
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// New creates a Server that reads state from the given tracker and advances
// the mode through store. m may be nil.
func New(addr string, tracker *status.Tracker, store *state.Store, m *metrics.Metrics, logger zerolog.Logger) *Server {
	s := &Server{
		tracker: tracker,
		store:   store,
		metrics: m,
		logger:  logger.With().Str("component", "web").Logger(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/mode/next", s.handleNextMode).Methods(http.MethodPost)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.Use(s.logRequests)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve accepts connections on ln. It blocks until the server is shut down.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.logger.Error().Err(err).Msg("render status page")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleNextMode acts like a press of the physical button. Form posts from
// the status page are redirected back to it; other clients get the status.
func (s *Server) handleNextMode(w http.ResponseWriter, r *http.Request) {
	next, _ := s.store.Update(logic.Situation.Advance)
	s.metrics.ModeChange("http")
	s.logger.Info().Str("mode", next.Mode().String()).Str("remote", r.RemoteAddr).Msg("mode advanced over http")

	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/x-www-form-urlencoded" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.handleJSON(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}
