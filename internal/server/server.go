// Package server provides the HTTP server for the fingerspell translator.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/fingerspell/internal/app"
	"github.com/ayusman/fingerspell/internal/classifier"
	"github.com/ayusman/fingerspell/internal/server/api"
	"github.com/ayusman/fingerspell/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App

	// ModelPath is where POST /api/model/train saves the trained model.
	ModelPath    string
	TrainOptions classifier.TrainOptions
}

// Server represents the HTTP server for the fingerspell application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	events *EventsHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		sessionsHandler := api.NewSessionsHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessionsHandler)
		s.mux.Handle("/api/sessions/", sessionsHandler)
		s.mux.Handle("/api/settings", api.NewSettingsHandler(s.config.Store))
	}

	if s.config.App != nil {
		api.NewTranslationHandler(s.config.App).Register(s.mux)

		s.events = NewEventsHandler(s.config.App)
		s.mux.Handle("/api/commits", s.events)

		s.mux.Handle("/api/stream", NewStreamHandler(s.config.App))

		if s.config.Store != nil {
			alpha := s.config.App.StabilizerConfig().Alphabet
			s.mux.Handle("/api/samples", api.NewSamplesHandler(s.config.Store, alpha))

			opts := s.config.TrainOptions
			if opts.Epochs == 0 {
				opts = classifier.DefaultTrainOptions()
			}
			api.NewModelHandler(s.config.Store, s.config.App, s.config.ModelPath, opts).Register(s.mux)
		}
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if s.config.App != nil {
		response["enabled"] = s.config.App.IsEnabled()
		response["classifier"] = s.config.App.Classifier() != nil
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// Close disconnects event subscribers.
func (s *Server) Close() {
	if s.events != nil {
		s.events.Close()
	}
}
