package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	apperrors "chatvault/internal/errors"
	"chatvault/internal/events"
	"chatvault/internal/metrics"
	"chatvault/internal/models"
	"chatvault/internal/service"
)

type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	takeouts *service.TakeoutService
	registry *metrics.Registry
	bus      *events.Bus
	port     int
	server   *http.Server
}

func NewServer(port int, takeouts *service.TakeoutService, registry *metrics.Registry, bus *events.Bus, logger *logrus.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		takeouts: takeouts,
		registry: registry,
		bus:      bus,
		port:     port,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	takeout := s.router.PathPrefix("/takeout").Subrouter()
	takeout.HandleFunc("", s.handleStartTakeout()).Methods(http.MethodPost)
	takeout.HandleFunc("", s.handleListTakeouts()).Methods(http.MethodGet)
	takeout.HandleFunc("/{id}", s.handleGetTakeout()).Methods(http.MethodGet)
	takeout.HandleFunc("/{id}", s.handleAbortTakeout()).Methods(http.MethodDelete)

	s.router.HandleFunc("/ws/events", s.handleEventStream())
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.registry.Snapshot())
	}
}

func (s *Server) handleStartTakeout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params models.TakeoutParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		task, err := s.takeouts.Start(r.Context(), params)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to start takeout task")
			s.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusAccepted, taskStatus(task))
	}
}

func (s *Server) handleListTakeouts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tasks := s.takeouts.Tasks()
		out := make([]map[string]interface{}, 0, len(tasks))
		for _, task := range tasks {
			out = append(out, taskStatus(task))
		}
		s.writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleGetTakeout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, ok := s.takeouts.Get(mux.Vars(r)["id"])
		if !ok {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.writeJSON(w, http.StatusOK, taskStatus(task))
	}
}

func (s *Server) handleAbortTakeout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.takeouts.Abort(mux.Vars(r)["id"]) {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "aborting"})
	}
}

func taskStatus(task *models.TakeoutTask) map[string]interface{} {
	progress := task.Progress()
	status := map[string]interface{}{
		"id":           task.ID,
		"type":         task.Type,
		"state":        task.State(),
		"percent":      progress.Percent,
		"label":        progress.Label,
		"chatIds":      task.Params.ChatIDs,
		"increase":     task.Params.Increase,
		"forceRefetch": task.Params.ForceRefetch,
	}
	if err := task.Err(); err != nil {
		status["error"] = err.Error()
	}
	return status
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Warn("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}
