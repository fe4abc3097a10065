package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecopredict/internal/ecosystem"
	"ecopredict/internal/ml"
	"ecopredict/internal/storage"
)

func newTestServer(t *testing.T, store *storage.Store) *Server {
	t.Helper()
	var modelStore ml.ModelStore
	if store != nil {
		modelStore = store
	}
	return &Server{
		predictor:    ml.NewPredictor(modelStore, nil),
		forecaster:   ml.NewForecaster(1),
		store:        store,
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		historyLimit: 100,
	}
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func trainingBody(n int) string {
	snaps := make([]ecosystem.Snapshot, n)
	for i := range snaps {
		if (i/10)%2 == 0 {
			snaps[i] = ecosystem.Snapshot{Step: i, Plants: 80 + float64(i%5), Herbivores: 20 + float64(i%3), Carnivores: 6}
		} else {
			snaps[i] = ecosystem.Snapshot{Step: i, Plants: 2, Herbivores: 1, Carnivores: 1}
		}
	}
	data, _ := json.Marshal(map[string]any{"ecosystem_data": snaps})
	return string(data)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	decodeInto(t, rec, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ML Prediction Service", resp.Service)
	assert.Empty(t, resp.ModelsLoaded)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestPredictCollapse_InvalidFeatures(t *testing.T) {
	s := newTestServer(t, nil)

	for _, body := range []string{`{}`, `{"features":{}}`, `{"features":null}`} {
		rec := postJSON(t, s.Router(), "/predict/collapse", body)
		require.Equal(t, http.StatusOK, rec.Code)

		var result ml.RiskResult
		decodeInto(t, rec, &result)
		assert.False(t, result.Success)
		assert.Equal(t, "Invalid features format", result.Error)
	}
}

func TestPredictCollapse_HeuristicThroughHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	rec := postJSON(t, s.Router(), "/predict/collapse",
		`{"features":{"current":{"step":0,"plants":8,"herbivores":2,"carnivores":5}}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result ml.RiskResult
	decodeInto(t, rec, &result)
	require.True(t, result.Success)
	assert.Equal(t, ml.HeuristicVersion, result.ModelVersion)
	assert.InDelta(t, 0.9, result.Risk, 1e-9)
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
}

func TestTrain_BelowHTTPMinimum(t *testing.T) {
	s := newTestServer(t, nil)

	rec := postJSON(t, s.Router(), "/train", trainingBody(49))
	require.Equal(t, http.StatusOK, rec.Code)

	var report ml.TrainingReport
	decodeInto(t, rec, &report)
	assert.False(t, report.Success)
	assert.Equal(t, "Need at least 50 data points for training", report.Error)
}

func TestTrain_SuccessReport(t *testing.T) {
	s := newTestServer(t, nil)

	rec := postJSON(t, s.Router(), "/train", trainingBody(80))
	require.Equal(t, http.StatusOK, rec.Code)

	var report ml.TrainingReport
	decodeInto(t, rec, &report)
	require.True(t, report.Success, "error: %s", report.Error)
	assert.Equal(t, "collapse_predictor", report.ModelType)
	assert.Equal(t, 19, report.Features)
	assert.Greater(t, report.TrainingSamples, 0)

	// The trained model now shows up on /health.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	healthRec := httptest.NewRecorder()
	s.Router().ServeHTTP(healthRec, req)

	var health healthResponse
	decodeInto(t, healthRec, &health)
	assert.Equal(t, []string{"collapse"}, health.ModelsLoaded)
}

func TestPredictPopulations_FlatSeries(t *testing.T) {
	s := newTestServer(t, nil)

	snaps := make([]ecosystem.Snapshot, 6)
	for i := range snaps {
		snaps[i] = ecosystem.Snapshot{Step: i, Plants: 50, Herbivores: 10, Carnivores: 5}
	}
	body, _ := json.Marshal(map[string]any{"timeSeries": snaps, "steps": 3})

	rec := postJSON(t, s.Router(), "/predict/populations", string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	var result ml.ForecastResult
	decodeInto(t, rec, &result)
	require.True(t, result.Success, "error: %s", result.Error)
	assert.Len(t, result.Predictions, 3)
	assert.Equal(t, "stable", result.Trends["plants"])
	assert.Equal(t, 3, result.ForecastHorizon)
}

func TestPredictPopulations_EmptySeriesFallsBackToStore(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 8; i++ {
		require.NoError(t, store.AppendSnapshot(ecosystem.Snapshot{
			Step: i, Plants: 40, Herbivores: 12, Carnivores: 4,
		}))
	}

	s := newTestServer(t, store)
	rec := postJSON(t, s.Router(), "/predict/populations", `{"timeSeries":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result ml.ForecastResult
	decodeInto(t, rec, &result)
	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, ml.DefaultForecastSteps, result.ForecastHorizon)
}

func TestPredictPopulations_TooFewPoints(t *testing.T) {
	s := newTestServer(t, nil)

	rec := postJSON(t, s.Router(), "/predict/populations",
		`{"timeSeries":[{"step":0,"plants":1,"herbivores":1,"carnivores":1}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result ml.ForecastResult
	decodeInto(t, rec, &result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "at least 5 data points")
}

func TestMalformedJSONIsServerError(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/predict/collapse", "/predict/populations", "/train"} {
		rec := postJSON(t, s.Router(), path, `{not json`)
		require.Equal(t, http.StatusInternalServerError, rec.Code, "path %s", path)

		var resp errorResponse
		decodeInto(t, rec, &resp)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "invalid request body")
	}
}

func TestSnapshots_WithoutStore(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/snapshots", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSnapshots_LimitAndOrder(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 6; i++ {
		require.NoError(t, store.AppendSnapshot(ecosystem.Snapshot{Step: i, Plants: float64(i)}))
	}

	s := newTestServer(t, store)
	req := httptest.NewRequest(http.MethodGet, "/snapshots?limit=3", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp snapshotsResponse
	decodeInto(t, rec, &resp)
	require.True(t, resp.Success)
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Snapshots, 3)
	assert.Equal(t, 3, resp.Snapshots[0].Step)
	assert.Equal(t, 5, resp.Snapshots[2].Step)
}

func TestSnapshotStream_PersistsFrames(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	s := newTestServer(t, store)
	server := httptest.NewServer(s.Router())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/snapshots"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteJSON(ecosystem.Snapshot{
			Step: i, Plants: 30, Herbivores: 8, Carnivores: 3,
		}))
	}
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	// The server consumes frames asynchronously; poll briefly.
	var count int
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		count, err = store.SnapshotCount()
		require.NoError(t, err)
		if count == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 3, count)
}
