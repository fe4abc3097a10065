// Package api exposes the prediction service over HTTP JSON: health,
// collapse risk prediction, population forecasting, model training,
// snapshot history, and a WebSocket ingest stream for simulators.
//
// Data-shape failures are reported in-band as {success:false, error}
// so the simulator side can degrade without inspecting status codes;
// transport-level failures (malformed JSON, panics) return HTTP 500.
package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"ecopredict/internal/cfg"
	"ecopredict/internal/metrics"
	"ecopredict/internal/ml"
	"ecopredict/internal/storage"
)

const serviceName = "ML Prediction Service"

// Server wires the predictor, forecaster, and snapshot store behind
// the HTTP routes. The store may be nil (no DATA_PATH configured), in
// which case the history endpoints report unavailability.
type Server struct {
	predictor  *ml.Predictor
	forecaster *ml.Forecaster
	store      *storage.Store
	metrics    *metrics.Metrics

	httpServer   *http.Server
	upgrader     websocket.Upgrader
	historyLimit int
}

// New builds a server from the configured components. metrics may be
// nil in tests.
func New(settings cfg.Settings, predictor *ml.Predictor, forecaster *ml.Forecaster, store *storage.Store, m *metrics.Metrics) *Server {
	s := &Server{
		predictor:    predictor,
		forecaster:   forecaster,
		store:        store,
		metrics:      m,
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		historyLimit: settings.HistoryLimit,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", settings.Port),
		Handler:      s.Router(),
		ReadTimeout:  settings.ReadTimeout,
		WriteTimeout: settings.WriteTimeout,
	}

	return s
}

// Router builds the route table. Exposed separately so handler tests
// can drive it through httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/predict/collapse", s.handlePredictCollapse).Methods("POST")
	r.HandleFunc("/predict/populations", s.handlePredictPopulations).Methods("POST")
	r.HandleFunc("/train", s.handleTrain).Methods("POST")
	r.HandleFunc("/snapshots", s.handleSnapshots).Methods("GET")
	r.HandleFunc("/ws/snapshots", s.handleSnapshotStream).Methods("GET")

	r.Use(s.requestLogging, s.panicRecovery)
	return r
}

// Start runs the HTTP server until ListenAndServe returns.
func (s *Server) Start() error {
	log.Info().Str("address", s.httpServer.Addr).Msg("starting prediction API server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogging tags each request with an ID and logs its outcome.
func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()

		next.ServeHTTP(w, r)

		log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

// panicRecovery converts handler panics into a 500 JSON envelope.
func (s *Server) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("handler panic")
				if s.metrics != nil {
					s.metrics.ErrorsTotal.Inc()
				}
				writeJSON(w, http.StatusInternalServerError, errorBody(fmt.Sprintf("internal error: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
