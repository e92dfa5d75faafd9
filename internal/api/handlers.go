// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sgdmf/internal/factorization"
	"github.com/tomtom215/sgdmf/internal/storage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"`
	ModelLoaded  bool   `json:"model_loaded"`
	ModelName    string `json:"model_name,omitempty"`
	ModelVersion int    `json:"model_version,omitempty"`
}

// ModelInfoResponse is returned by GET /api/v1/model.
type ModelInfoResponse struct {
	Metadata  storage.ModelMetadata `json:"metadata"`
	NumUsers  int                   `json:"num_users"`
	NumItems  int                   `json:"num_items"`
	Rank      int                   `json:"rank"`
	MeanValue float64               `json:"mean_value"`
	Config    factorization.Config  `json:"config"`
	LoadedAt  time.Time             `json:"loaded_at"`
}

// Pair identifies a user/item pair.
type Pair struct {
	UserID int `json:"user_id" validate:"gte=0"`
	ItemID int `json:"item_id" validate:"gte=0"`
}

// Prediction is the predicted value of a pair.
type Prediction struct {
	UserID int     `json:"user_id"`
	ItemID int     `json:"item_id"`
	Value  float64 `json:"value"`
}

// BatchPredictRequest is the body of POST /api/v1/predict/batch.
type BatchPredictRequest struct {
	Pairs []Pair `json:"pairs" validate:"required,min=1,dive"`
}

// BatchPrediction is one batch result; Error is set for pairs outside the model.
type BatchPrediction struct {
	UserID int      `json:"user_id"`
	ItemID int      `json:"item_id"`
	Value  *float64 `json:"value,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Health handles GET /api/v1/health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy"}
	version := 0
	if m := s.current(); m != nil {
		resp.ModelLoaded = true
		resp.ModelName = m.meta.Name
		resp.ModelVersion = m.meta.Version
		version = m.meta.Version
	}
	respondSuccess(w, r, resp, version)
}

// ModelInfo handles GET /api/v1/model
func (s *Server) ModelInfo(w http.ResponseWriter, r *http.Request) {
	m, ok := s.requireModel(w, r)
	if !ok {
		return
	}

	users, items, rank := m.engine.Dimensions()
	respondSuccess(w, r, ModelInfoResponse{
		Metadata:  m.meta,
		NumUsers:  users,
		NumItems:  items,
		Rank:      rank,
		MeanValue: m.engine.MeanValue(),
		Config:    m.engine.Config(),
		LoadedAt:  m.loadedAt,
	}, m.meta.Version)
}

// ListModels handles GET /api/v1/models
func (s *Server) ListModels(w http.ResponseWriter, r *http.Request) {
	var models []storage.ModelMetadata
	err := s.withStore(func(store *storage.Store) error {
		var err error
		models, err = store.ListModels(r.Context())
		return err
	})
	if errors.Is(err, errStoreUnavailable) {
		respondError(w, r, http.StatusServiceUnavailable, &APIError{
			Code:    "STORE_UNAVAILABLE",
			Message: "No model store is configured",
		}, nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, &APIError{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to list models",
		}, err)
		return
	}
	if models == nil {
		models = []storage.ModelMetadata{}
	}
	respondSuccess(w, r, models, 0)
}

// ReloadModel handles POST /api/v1/model/reload
func (s *Server) ReloadModel(w http.ResponseWriter, r *http.Request) {
	meta, err := s.LoadLatest(r.Context())
	switch {
	case errors.Is(err, errStoreUnavailable):
		respondError(w, r, http.StatusServiceUnavailable, &APIError{
			Code:    "STORE_UNAVAILABLE",
			Message: "No model store is configured",
		}, nil)
		return
	case errors.Is(err, storage.ErrModelNotFound):
		respondError(w, r, http.StatusNotFound, &APIError{
			Code:    "MODEL_NOT_FOUND",
			Message: fmt.Sprintf("No stored model named %q", s.modelName),
		}, err)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, &APIError{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to load model",
		}, err)
		return
	}

	respondSuccess(w, r, meta, meta.Version)
}

// Predict handles GET /api/v1/predict?user={id}&item={id}
func (s *Server) Predict(w http.ResponseWriter, r *http.Request) {
	userID, uerr := strconv.Atoi(r.URL.Query().Get("user"))
	itemID, ierr := strconv.Atoi(r.URL.Query().Get("item"))
	if uerr != nil || ierr != nil {
		respondError(w, r, http.StatusBadRequest, &APIError{
			Code:    "VALIDATION_ERROR",
			Message: "Query parameters user and item must be integers",
		}, nil)
		return
	}

	m, ok := s.requireModel(w, r)
	if !ok {
		return
	}

	value, err := m.engine.Predict(userID, itemID)
	if err != nil {
		s.respondPredictError(w, r, err)
		return
	}

	respondSuccess(w, r, Prediction{UserID: userID, ItemID: itemID, Value: value}, m.meta.Version)
}

// PredictBatch handles POST /api/v1/predict/batch
func (s *Server) PredictBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchPredictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, &APIError{
			Code:    "INVALID_JSON",
			Message: "Request body must be valid JSON",
		}, err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, r, http.StatusBadRequest, apiErr, nil)
		return
	}
	if len(req.Pairs) > s.cfg.MaxBatchSize {
		respondError(w, r, http.StatusBadRequest, &APIError{
			Code:    "VALIDATION_ERROR",
			Message: fmt.Sprintf("At most %d pairs may be requested at once", s.cfg.MaxBatchSize),
			Details: map[string]interface{}{"max_batch_size": s.cfg.MaxBatchSize, "requested": len(req.Pairs)},
		}, nil)
		return
	}

	m, ok := s.requireModel(w, r)
	if !ok {
		return
	}

	results := make([]BatchPrediction, len(req.Pairs))
	for i, p := range req.Pairs {
		results[i] = BatchPrediction{UserID: p.UserID, ItemID: p.ItemID}
		value, err := m.engine.Predict(p.UserID, p.ItemID)
		if err != nil {
			results[i].Error = err.Error()
			continue
		}
		results[i].Value = &value
	}

	respondSuccess(w, r, results, m.meta.Version)
}

// requireModel returns the served model or writes a 503.
func (s *Server) requireModel(w http.ResponseWriter, r *http.Request) (*servedModel, bool) {
	m := s.current()
	if m == nil {
		respondError(w, r, http.StatusServiceUnavailable, &APIError{
			Code:    "MODEL_NOT_LOADED",
			Message: "No model is loaded",
		}, nil)
		return nil, false
	}
	return m, true
}

func (s *Server) respondPredictError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, factorization.ErrOutOfRange):
		respondError(w, r, http.StatusNotFound, &APIError{
			Code:    "OUT_OF_RANGE",
			Message: err.Error(),
		}, nil)
	case errors.Is(err, factorization.ErrNotTrained):
		respondError(w, r, http.StatusServiceUnavailable, &APIError{
			Code:    "MODEL_NOT_LOADED",
			Message: "Model is not initialized",
		}, nil)
	default:
		respondError(w, r, http.StatusInternalServerError, &APIError{
			Code:    "INTERNAL_ERROR",
			Message: "Prediction failed",
		}, err)
	}
}
