package server

import (
	"encoding/json"
	"net/http"

	"yourarch/internal/throttle"
	"yourarch/internal/util"
	"yourarch/services/worker/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
}

// Server exposes health and progress endpoints of the worker.
type Server struct {
	app *app.App
	mux *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app: cfg.App,
		mux: http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Throttle throttle.State `json:"throttle"`
	Backoff  string         `json:"nextBackoff"`
	Stats    app.Stats      `json:"stats"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	controller := s.app.Throttle()
	resp := statusResponse{
		Throttle: controller.State(),
		Backoff:  controller.Backoff().String(),
		Stats:    s.app.Stats(),
	}
	util.LoggerFromContext(r.Context()).Debug("status served", "throttling", resp.Throttle.Throttling)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
