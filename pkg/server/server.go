// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/itoalabs/insight/pkg/dataset"
	"github.com/itoalabs/insight/pkg/pipeline"
	"github.com/itoalabs/insight/pkg/server/metrics"
)

type Server struct {
	log     *slog.Logger
	cfg     *Config
	httpSrv *http.Server
}

func New(cfg *Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		log: cfg.Logger,
		cfg: cfg,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(metrics.Middleware)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/api/status", s.statusHandler)
	r.Post("/api/analyze/{channel}", s.analyzeHandler)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok\n")); err != nil {
			s.log.Error("failed to write healthz response", "error", err)
		}
	})

	s.httpSrv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	return s, nil
}

// Handler returns the HTTP handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) Run(ctx context.Context) error {
	serveErrCh := make(chan error, 1)

	go func() {
		if err := s.httpSrv.Serve(s.cfg.HTTPListener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server: http server error", "error", err)
			serveErrCh <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()
	s.log.Info("server: http listening", "address", s.cfg.HTTPListener.Addr())

	select {
	case <-ctx.Done():
		s.log.Info("server: stopping", "reason", ctx.Err())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
		s.log.Info("server: http server shutdown complete")
		return nil
	case err := <-serveErrCh:
		s.log.Error("server: server error causing shutdown", "error", err)
		return err
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("server: request",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start))
	})
}

type statusResponse struct {
	Status   string   `json:"status"`
	Channels []string `json:"channels"`
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{
		Status:   "ok",
		Channels: pipeline.Channels,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

// analyzeHandler accepts a raw CSV body and runs the full pipeline for the
// channel named in the path.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	if !pipeline.ValidChannel(channel) {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("unknown channel %q", channel),
		})
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	ds, err := dataset.ParseCSV(body)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("invalid CSV: %v", err),
		})
		return
	}

	artifact, err := s.cfg.Pipeline.Run(r.Context(), ds, channel)
	if err != nil {
		// Only cancellation reaches here; pipeline failures degrade in place.
		s.log.Error("server: analysis aborted", "channel", channel, "error", err)
		metrics.AnalysesTotal.WithLabelValues(channel, "aborted").Inc()
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "analysis aborted",
		})
		return
	}

	s.recordAnalysis(channel, artifact)
	s.writeJSON(w, http.StatusOK, artifact)
}

func (s *Server) recordAnalysis(channel string, artifact *pipeline.Artifact) {
	status := "ok"
	if !artifact.Success {
		status = "failed"
	}
	metrics.AnalysesTotal.WithLabelValues(channel, status).Inc()

	if artifact.Interpretation != nil && artifact.Interpretation.Source != pipeline.SourceModel {
		metrics.StageFallbacksTotal.WithLabelValues("interpret").Inc()
	}
	if artifact.Plan != nil && artifact.Plan.Source != pipeline.SourceModel {
		metrics.StageFallbacksTotal.WithLabelValues("design").Inc()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to write response", "error", err)
	}
}
