// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

// Package api serves point predictions of a trained factorization model
// over HTTP.
//
// # Endpoints
//
//	GET  /api/v1/health              liveness and loaded model version
//	GET  /api/v1/model               metadata of the served model
//	GET  /api/v1/models              latest stored version of every model
//	POST /api/v1/model/reload        load the latest stored version
//	GET  /api/v1/predict?user=&item= single prediction
//	POST /api/v1/predict/batch       batch prediction
//	GET  /metrics                    Prometheus metrics
//
// Every JSON response uses the APIResponse envelope.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sgdmf/internal/config"
	"github.com/tomtom215/sgdmf/internal/factorization"
	"github.com/tomtom215/sgdmf/internal/logging"
	"github.com/tomtom215/sgdmf/internal/middleware"
	"github.com/tomtom215/sgdmf/internal/storage"
)

// servedModel pairs an engine with the metadata it was loaded from.
type servedModel struct {
	engine   *factorization.Engine
	meta     storage.ModelMetadata
	loadedAt time.Time
}

// StoreOpener opens the model store. The server closes every store it opens
// before returning, so the Badger directory lock is free for training runs
// between reloads.
type StoreOpener func() (*storage.Store, error)

// Server serves a single factorization model.
type Server struct {
	cfg       config.ServerConfig
	openStore StoreOpener
	modelName string
	logger    zerolog.Logger

	model atomic.Pointer[servedModel]
}

// NewServer creates a server. openStore may be nil when the model is
// supplied with SetModel; reloads and listing are then unavailable.
//
//nolint:gocritic // config passed by value is acceptable at construction
func NewServer(cfg config.ServerConfig, openStore StoreOpener, modelName string) *Server {
	return &Server{
		cfg:       cfg,
		openStore: openStore,
		modelName: modelName,
		logger:    logging.WithComponent("api"),
	}
}

// SetModel replaces the served model.
//
//nolint:gocritic // metadata passed by value is acceptable here
func (s *Server) SetModel(engine *factorization.Engine, meta storage.ModelMetadata) {
	s.model.Store(&servedModel{engine: engine, meta: meta, loadedAt: time.Now()})
	s.logger.Info().Str("name", meta.Name).Int("version", meta.Version).Msg("Serving model")
}

// LoadLatest loads the latest stored version of the configured model.
func (s *Server) LoadLatest(ctx context.Context) (storage.ModelMetadata, error) {
	var (
		snap *factorization.Snapshot
		meta *storage.ModelMetadata
	)
	err := s.withStore(func(store *storage.Store) error {
		var err error
		snap, meta, err = store.Load(ctx, s.modelName, 0)
		return err
	})
	if err != nil {
		return storage.ModelMetadata{}, err
	}
	engine, err := factorization.FromSnapshot(snap)
	if err != nil {
		return storage.ModelMetadata{}, fmt.Errorf("restore model: %w", err)
	}

	s.SetModel(engine, *meta)
	return *meta, nil
}

var errStoreUnavailable = errors.New("model store not configured")

// withStore opens the store for the duration of fn.
func (s *Server) withStore(fn func(*storage.Store) error) error {
	if s.openStore == nil {
		return errStoreUnavailable
	}
	store, err := s.openStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("Failed to close model store")
		}
	}()
	return fn(store)
}

// current returns the served model, or nil.
func (s *Server) current() *servedModel {
	return s.model.Load()
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.Get("/health", s.Health)
		r.Get("/model", s.ModelInfo)
		r.Get("/models", s.ListModels)
		r.Post("/model/reload", s.ReloadModel)
		r.Get("/predict", s.Predict)
		r.Post("/predict/batch", s.PredictBatch)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
