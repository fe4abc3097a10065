package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"ecopredict/internal/ecosystem"
	"ecopredict/internal/ml"
)

type healthResponse struct {
	Status       string   `json:"status"`
	Service      string   `json:"service"`
	ModelsLoaded []string `json:"models_loaded"`
	Timestamp    string   `json:"timestamp"`
}

type collapseRequest struct {
	Features *struct {
		Current *ecosystem.Snapshot `json:"current"`
	} `json:"features"`
	Steps int `json:"steps"`
}

type populationsRequest struct {
	TimeSeries []ecosystem.Snapshot `json:"timeSeries"`
	Steps      int                  `json:"steps"`
}

type trainRequest struct {
	EcosystemData []ecosystem.Snapshot `json:"ecosystem_data"`
}

type snapshotsResponse struct {
	Success   bool                 `json:"success"`
	Snapshots []ecosystem.Snapshot `json:"snapshots"`
	Count     int                  `json:"count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "healthy",
		Service:      serviceName,
		ModelsLoaded: s.predictor.ModelsLoaded(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePredictCollapse(w http.ResponseWriter, r *http.Request) {
	var req collapseRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.Features == nil || req.Features.Current == nil {
		writeJSON(w, http.StatusOK, ml.RiskResult{Success: false, Error: "Invalid features format"})
		return
	}

	steps := req.Steps
	if steps <= 0 {
		steps = 5
	}

	result := s.predictor.PredictRisk([]ecosystem.Snapshot{*req.Features.Current}, steps)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePredictPopulations(w http.ResponseWriter, r *http.Request) {
	var req populationsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	history := req.TimeSeries
	if len(history) == 0 && s.store != nil {
		stored, err := s.store.RecentSnapshots(s.historyLimit)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read stored snapshot history")
		} else {
			history = stored
		}
	}

	steps := req.Steps
	if steps <= 0 {
		steps = ml.DefaultForecastSteps
	}

	if s.metrics != nil {
		s.metrics.ForecastsTotal.Inc()
	}

	writeJSON(w, http.StatusOK, s.forecaster.Forecast(history, steps))
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if len(req.EcosystemData) < 50 {
		writeJSON(w, http.StatusOK, ml.TrainingReport{
			Success: false,
			Error:   "Need at least 50 data points for training",
		})
		return
	}

	report := s.predictor.Train(req.EcosystemData)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("snapshot store not configured"))
		return
	}

	limit := s.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusOK, errorBody("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	snaps, err := s.store.RecentSnapshots(limit)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ErrorsTotal.Inc()
		}
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, snapshotsResponse{
		Success:   true,
		Snapshots: snaps,
		Count:     len(snaps),
	})
}

// decodeBody parses the request body, answering malformed JSON with a
// 500 envelope. Returns false when the request was already answered.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if s.metrics != nil {
			s.metrics.ErrorsTotal.Inc()
		}
		writeJSON(w, http.StatusInternalServerError, errorBody("invalid request body: "+err.Error()))
		return false
	}
	return true
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func errorBody(msg string) errorResponse {
	return errorResponse{Success: false, Error: msg}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
