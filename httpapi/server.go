// Package httpapi serves a small local JSON API for mute control.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/flokli/mute-agent/controller"
	"github.com/flokli/mute-agent/mute"
)

const maxBodySize = 4096

type Server struct {
	ctrl     *controller.Controller
	onChange func()
}

func New(ctrl *controller.Controller, onChange func()) *Server {
	return &Server{ctrl: ctrl, onChange: onChange}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/state", s.handleState)
		r.Get("/devices", s.handleDevices)
		r.Post("/toggle", s.handleToggle)
		r.Put("/mute", s.handleSetMute)
		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handleSetPreferences)
	})
	return r
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("unable to shut down http server")
		}
	}()

	log.WithField("addr", addr).Info("serving HTTP")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start),
		}).Debug("handled request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	state, err := s.ctrl.State()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	devices, err := s.ctrl.ListDevices()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleToggle(w http.ResponseWriter, _ *http.Request) {
	state, err := s.ctrl.Toggle()
	s.changed()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type setMuteRequest struct {
	Muted *bool `json:"muted"`
}

func (s *Server) handleSetMute(w http.ResponseWriter, r *http.Request) {
	var req setMuteRequest
	if err := decode(w, r, &req); err != nil || req.Muted == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be {\"muted\": bool}"})
		return
	}
	state, err := s.ctrl.SetMuted(*req.Muted)
	s.changed()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Preferences())
}

func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs := s.ctrl.Preferences()
	if err := decode(w, r, &prefs); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.ctrl.SetPreferences(prefs)
	s.changed()
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrToggleTooSoon):
		return http.StatusTooManyRequests
	case errors.Is(err, mute.ErrNotSupported):
		return http.StatusConflict
	case errors.Is(err, mute.ErrWriteHadNoEffect):
		return http.StatusBadGateway
	case errors.Is(err, mute.ErrNoDefaultDevice), errors.Is(err, mute.ErrNoCapableDevices):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("unable to write response")
	}
}
