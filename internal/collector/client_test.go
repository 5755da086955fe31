package collector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferenceClient_Submit(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var doc struct {
			Features  []float64 `json:"features"`
			Timestamp string    `json:"timestamp"`
		}
		require.NoError(t, json.Unmarshal(body, &doc))
		assert.Equal(t, []float64{96, 40, 30, 2, 55, 1, 0, 0, 1234}, doc.Features)
		assert.Equal(t, "2026-03-01T12:00:00Z", doc.Timestamp)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","prediction":"surcharge_cpu","confidence":91.3}`))
	}))
	defer srv.Close()

	c := NewInferenceClient(srv.URL+"/", 5*time.Second)
	v := model.FeatureVector{CPUUsage: 96, RAMUsage: 40, DiskUsage: 30, Level: 2, Temperature: 55, ReadErrors: 1, EventID: 1234}
	resp, err := c.Submit(context.Background(), v, ts)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryCPUOverload, resp.Prediction)
	assert.InDelta(t, 91.3, resp.Confidence, 0.001)
}

func TestInferenceClient_Non2xxIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"expected 9 features, got 3"}`))
	}))
	defer srv.Close()

	c := NewInferenceClient(srv.URL, 5*time.Second)
	_, err := c.Submit(context.Background(), model.FeatureVector{}, time.Now())
	require.Error(t, err)

	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.StatusCode)
	assert.Contains(t, ae.Body, "expected 9 features")
	assert.False(t, ae.IsRetryable())
	assert.ErrorIs(t, err, ErrTransportFailure)
}

func TestInferenceClient_NetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewInferenceClient(url, time.Second)
	_, err := c.Submit(context.Background(), model.FeatureVector{}, time.Now())
	require.Error(t, err)

	var te *TransportError
	assert.True(t, errors.As(err, &te))
	assert.ErrorIs(t, err, ErrTransportFailure)
}

func TestInferenceClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewInferenceClient(srv.URL, 50*time.Millisecond)
	_, err := c.Submit(context.Background(), model.FeatureVector{}, time.Now())
	assert.ErrorIs(t, err, ErrTransportFailure)
}

func TestInferenceClient_BadJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	c := NewInferenceClient(srv.URL, time.Second)
	_, err := c.Submit(context.Background(), model.FeatureVector{}, time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransportFailure)
}
