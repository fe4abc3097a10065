// Package client is a Go SDK for the ecosystem prediction service,
// intended for the simulator side. It carries its own request and
// response types so importers stay decoupled from the service
// internals.
package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Snapshot is one observed ecosystem state.
type Snapshot struct {
	Step       int     `json:"step"`
	Plants     float64 `json:"plants"`
	Herbivores float64 `json:"herbivores"`
	Carnivores float64 `json:"carnivores"`
}

// Health is the service health report.
type Health struct {
	Status       string   `json:"status"`
	Service      string   `json:"service"`
	ModelsLoaded []string `json:"models_loaded"`
	Timestamp    string   `json:"timestamp"`
}

// Factor names one driver of a collapse risk score.
type Factor struct {
	Name       string  `json:"factor"`
	Importance float64 `json:"importance"`
}

// RiskResult is the collapse risk prediction response.
type RiskResult struct {
	Success      bool     `json:"success"`
	Risk         float64  `json:"risk"`
	Confidence   float64  `json:"confidence"`
	Factors      []Factor `json:"factors"`
	ModelVersion string   `json:"model_version"`
	Error        string   `json:"error"`
}

// ForecastPoint is one projected future state.
type ForecastPoint struct {
	Step       int `json:"step"`
	Plants     int `json:"plants"`
	Herbivores int `json:"herbivores"`
	Carnivores int `json:"carnivores"`
}

// ForecastResult is the population forecast response.
type ForecastResult struct {
	Success         bool              `json:"success"`
	Predictions     []ForecastPoint   `json:"predictions"`
	Confidence      float64           `json:"confidence"`
	Trends          map[string]string `json:"trends"`
	ForecastHorizon int               `json:"forecast_horizon"`
	Error           string            `json:"error"`
}

// TrainingReport is the model training response.
type TrainingReport struct {
	Success         bool    `json:"success"`
	ModelType       string  `json:"model_type"`
	TrainAccuracy   float64 `json:"train_accuracy"`
	TestAccuracy    float64 `json:"test_accuracy"`
	TrainingSamples int     `json:"training_samples"`
	Features        int     `json:"features"`
	Error           string  `json:"error"`
}

// Client talks to the prediction service over HTTP.
type Client struct {
	base string
	rest *resty.Client
}

// New creates a client for the service at base, e.g.
// "http://localhost:8000". A non-positive timeout falls back to 5s.
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	return &Client{base: base, rest: r}
}

// Health fetches the service health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var health Health
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&health).
		Get(c.base + "/health")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode())
	}
	return &health, nil
}

// PredictCollapse scores collapse risk for the current ecosystem state.
func (c *Client) PredictCollapse(ctx context.Context, current Snapshot, steps int) (*RiskResult, error) {
	body := map[string]any{
		"features": map[string]any{"current": current},
	}
	if steps > 0 {
		body["steps"] = steps
	}

	var result RiskResult
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post(c.base + "/predict/collapse")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// PredictPopulations forecasts population counts steps into the future.
// An empty timeSeries asks the service to use its stored history.
func (c *Client) PredictPopulations(ctx context.Context, timeSeries []Snapshot, steps int) (*ForecastResult, error) {
	body := map[string]any{"timeSeries": timeSeries}
	if steps > 0 {
		body["steps"] = steps
	}

	var result ForecastResult
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post(c.base + "/predict/populations")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// Train retrains the collapse model on the given history.
func (c *Client) Train(ctx context.Context, history []Snapshot) (*TrainingReport, error) {
	var report TrainingReport
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]any{"ecosystem_data": history}).
		SetResult(&report).
		Post(c.base + "/train")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return &report, nil
}

// RecentSnapshots fetches up to limit recent snapshots from the
// service's ingest history, oldest first.
func (c *Client) RecentSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	var result struct {
		Success   bool       `json:"success"`
		Snapshots []Snapshot `json:"snapshots"`
		Error     string     `json:"error"`
	}

	req := c.rest.R().SetContext(ctx).SetResult(&result)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := req.Get(c.base + "/snapshots")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode())
	}
	if !result.Success {
		return nil, fmt.Errorf("snapshots: %s", result.Error)
	}
	return result.Snapshots, nil
}
