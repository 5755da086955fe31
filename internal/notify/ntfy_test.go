package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNtfyName(t *testing.T) {
	p := NewNtfy("http://localhost", "alerts")
	assert.Equal(t, "ntfy", p.Name())
}

func TestNtfySendCritical(t *testing.T) {
	var gotReq *http.Request
	var gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewNtfy(srv.URL, "host-alerts")
	notif := model.Notification{
		AlertType: "classification",
		Severity:  "critical",
		Title:     "Disk end of life",
		Message:   "Host classified as disque_fin_de_vie (92.1%)",
		Subject:   "disque_fin_de_vie",
		Timestamp: time.Now(),
		Metadata:  map[string]string{"category": "disque_fin_de_vie"},
	}

	err := p.Send(context.Background(), notif)
	require.NoError(t, err)

	assert.Equal(t, "/host-alerts", gotReq.URL.Path)
	assert.Equal(t, "Disk end of life", gotReq.Header.Get("Title"))
	assert.Equal(t, "5", gotReq.Header.Get("Priority"))
	assert.Equal(t, "rotating_light,skull,disque_fin_de_vie,classification", gotReq.Header.Get("Tags"))
	assert.Empty(t, gotReq.Header.Get("Authorization"))
	assert.Equal(t, "Host classified as disque_fin_de_vie (92.1%)", gotBody)
}

func TestNtfySendWarning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.Header.Get("Priority"))
		assert.Contains(t, r.Header.Get("Tags"), "warning")
		assert.Contains(t, r.Header.Get("Tags"), "thermometer")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewNtfy(srv.URL, "alerts")
	err := p.Send(context.Background(), model.Notification{
		Severity: "warning",
		Title:    "High temperature",
		Message:  "CPU package at 83°C",
		Metadata: map[string]string{"category": "3"},
	})
	require.NoError(t, err)
}

func TestNtfySendInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.Header.Get("Priority"))
		assert.Equal(t, "information_source", r.Header.Get("Tags"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewNtfy(srv.URL, "alerts")
	err := p.Send(context.Background(), model.Notification{
		Severity: "info",
		Title:    "Collector back",
		Message:  "Telemetry resumed",
		Metadata: map[string]string{"category": "not-a-category"},
	})
	require.NoError(t, err)
}

func TestNtfySendResolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Tags"), "white_check_mark")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewNtfy(srv.URL, "alerts")
	err := p.Send(context.Background(), model.Notification{
		Severity: "info",
		Title:    "Resolved",
		Message:  "Host back to normal",
		Resolved: true,
	})
	require.NoError(t, err)
}

func TestNtfyTokenAndClick(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tk_abc", r.Header.Get("Authorization"))
		assert.Equal(t, "http://dash.local:8050/", r.Header.Get("Click"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewNtfy(srv.URL, "alerts", WithNtfyToken("tk_abc"), WithNtfyClick("http://dash.local:8050/"))
	err := p.Send(context.Background(), model.Notification{Severity: "info", Title: "t", Message: "m"})
	require.NoError(t, err)
}

func TestSeverityToNtfyPriority(t *testing.T) {
	tests := map[string]string{
		"critical":         "5",
		"warning":          "3",
		"info":             "2",
		"unknown-severity": "3",
		"":                 "3",
	}
	for severity, want := range tests {
		assert.Equal(t, want, severityToNtfyPriority(severity), severity)
	}
}

func TestNtfyTags_EveryCategoryHasEmoji(t *testing.T) {
	for _, c := range model.AllCategories() {
		assert.NotEmpty(t, categoryEmoji[c], c.String())
	}
}

func TestNtfySendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewNtfy(srv.URL, "alerts")
	err := p.Send(context.Background(), model.Notification{
		Severity: "info",
		Title:    "Test",
		Message:  "Test",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestNtfySendCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewNtfy(srv.URL, "alerts")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Send(ctx, model.Notification{
		Severity: "info",
		Title:    "Test",
		Message:  "Test cancelled",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ntfy: send:")
}

func TestNtfySendBadURL(t *testing.T) {
	p := NewNtfy("://invalid", "alerts")
	err := p.Send(context.Background(), model.Notification{
		Severity: "info",
		Title:    "Test",
		Message:  "bad url",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ntfy:")
}

func TestNtfyTrailingSlash(t *testing.T) {
	p := NewNtfy("http://example.com/", "alerts")
	assert.Equal(t, "http://example.com", p.url)
}
