// Package server exposes the operational HTTP surface: health, metrics,
// on-demand brief runs and policy inspection.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"market-briefer/internal/model"
	"market-briefer/internal/pipeline"
	"market-briefer/internal/policy"
)

// BriefReader serves stored briefs.
type BriefReader interface {
	LatestBrief(ctx context.Context, subscriberID string) (*model.Brief, error)
}

type Server struct {
	pipeline *pipeline.Pipeline
	briefs   BriefReader
	profiles func() []model.Profile
	log      *slog.Logger
}

func New(p *pipeline.Pipeline, briefs BriefReader, profiles func() []model.Profile, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{pipeline: p, briefs: briefs, profiles: profiles, log: log}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/briefs/{subscriber}", s.handleGetBrief)
	r.Post("/briefs/{subscriber}/run", s.handleRunBrief)
	r.Get("/policies/{subscriber}", s.handleGetPolicy)
	return r
}

// Serve blocks until ctx is done, then shuts the listener down.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleGetBrief(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "subscriber")
	brief, err := s.briefs.LatestBrief(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if brief == nil {
		s.writeError(w, http.StatusNotFound, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, brief)
}

func (s *Server) handleRunBrief(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "subscriber")
	profile, ok := s.findProfile(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, nil)
		return
	}
	brief, err := s.pipeline.Run(r.Context(), profile)
	if err != nil {
		s.log.Error("server: on-demand run failed", "subscriber", id, "err", err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, brief)
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "subscriber")
	profile, ok := s.findProfile(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, nil)
		return
	}
	decision := policy.Resolve(profile)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"subscriber": id,
		"policy":     decision.Policy.Key,
		"source":     decision.Source,
		"reason":     decision.Reason,
	})
}

func (s *Server) findProfile(id string) (model.Profile, bool) {
	for _, p := range s.profiles() {
		if p.ID == id {
			return p, true
		}
	}
	return model.Profile{}, false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("server: encode response failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	s.writeJSON(w, status, map[string]string{"error": msg})
}
