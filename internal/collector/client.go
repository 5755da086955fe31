package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/model"
)

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Features  model.FeatureVector `json:"features"`
	Timestamp string              `json:"timestamp"`
}

// PredictResponse is the subset of the /predict response the collector logs.
type PredictResponse struct {
	Status     string         `json:"status"`
	Prediction model.Category `json:"prediction"`
	Confidence float64        `json:"confidence"`
}

// InferenceClient submits feature vectors to the classification service.
type InferenceClient struct {
	baseURL string
	client  *http.Client
}

// NewInferenceClient creates a client for the service at baseURL.
func NewInferenceClient(baseURL string, timeout time.Duration) *InferenceClient {
	return &InferenceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Submit posts one vector. Network failures are returned as *TransportError
// and non-2xx responses as *APIError; both match ErrTransportFailure.
func (c *InferenceClient) Submit(ctx context.Context, v model.FeatureVector, ts time.Time) (PredictResponse, error) {
	body, err := json.Marshal(PredictRequest{Features: v, Timestamp: ts.Format(time.RFC3339Nano)})
	if err != nil {
		return PredictResponse{}, fmt.Errorf("encoding predict request: %w", err)
	}

	const path = "/predict"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return PredictResponse{}, fmt.Errorf("creating request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return PredictResponse{}, NewTransportError(fmt.Errorf("requesting %s: %w", path, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PredictResponse{}, NewTransportError(fmt.Errorf("reading response from %s: %w", path, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return PredictResponse{}, &APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
			Endpoint:   path,
		}
	}

	var out PredictResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return PredictResponse{}, fmt.Errorf("parsing %s response: %w", path, err)
	}
	return out, nil
}
