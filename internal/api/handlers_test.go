package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/darshan-rambhia/hostwatch/internal/classifier"
	"github.com/darshan-rambhia/hostwatch/internal/inference"
	"github.com/darshan-rambhia/hostwatch/internal/model"
	"github.com/darshan-rambhia/hostwatch/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failWriter is a ResponseWriter whose Write always returns an error.
// Used to exercise the "client disconnected" debug-log path in writeJSON.
type failWriter struct {
	header http.Header
}

func (fw *failWriter) Header() http.Header       { return fw.header }
func (fw *failWriter) WriteHeader(int)           {}
func (fw *failWriter) Write([]byte) (int, error) { return 0, errors.New("write failed") }

// brokenModel always fails.
type brokenModel struct{}

func (brokenModel) Predict([model.FeatureCount]float64) (int, []float64, error) {
	return 0, nil, errors.New("weights corrupted")
}

const cpuBody = `{"features":[96,40,30,2,55,1,0,0,1234],"timestamp":"2026-03-01T10:00:00Z"}`

func newTestServer(t *testing.T, m classifier.Model, opts ...inference.Option) (*Server, *inference.Service, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	reg := prometheus.NewRegistry()
	opts = append(opts, inference.WithSink(s), inference.WithMetrics(inference.NewMetrics(reg)))
	svc := inference.NewService(m, classifier.IdentityEncoder(), opts...)
	return NewServer(":0", svc, s, reg), svc, s
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc), w.Body.String())
	return doc
}

// --- /predict ---

func TestPredict_Success(t *testing.T) {
	srv, svc, _ := newTestServer(t, classifier.Rules{}, inference.WithDegraded())

	w := do(t, srv, http.MethodPost, "/predict", cpuBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	doc := decode(t, w)
	assert.Equal(t, "success", doc["status"])
	assert.Equal(t, "surcharge_cpu", doc["prediction"])
	assert.Equal(t, 70.0, doc["confidence"])
	assert.Equal(t, model.CategoryCPUOverload.Icon(), doc["icon"])
	assert.Equal(t, model.CategoryCPUOverload.Color(), doc["color"])
	assert.Equal(t, "2026-03-01T10:00:00Z", doc["timestamp"])

	probs, ok := doc["probabilities"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, probs, model.CategoryCount)
	for _, name := range model.CategoryNames() {
		assert.Contains(t, probs, name)
	}

	recs, ok := doc["recommendations"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, recs)
	assert.True(t, strings.HasPrefix(recs[0].(string), "CRITICAL: CPU at 96.0%"), recs[0])

	feats, ok := doc["features"].([]any)
	require.True(t, ok)
	assert.Len(t, feats, model.FeatureCount)

	_, published := svc.Status()
	assert.True(t, published)
}

func TestPredict_WrongFeatureCount(t *testing.T) {
	srv, svc, _ := newTestServer(t, classifier.Rules{})

	w := do(t, srv, http.MethodPost, "/predict", `{"features":[1,2,3]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	doc := decode(t, w)
	assert.NotEmpty(t, doc["error"])

	_, ok := svc.Status()
	assert.False(t, ok, "a rejected request must not publish a status")
}

func TestPredict_RejectedRequestKeepsPreviousStatus(t *testing.T) {
	srv, svc, _ := newTestServer(t, classifier.Rules{})
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/predict", cpuBody).Code)
	before, _ := svc.Status()

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/predict", `{"features":[1,2,3]}`).Code)

	after, ok := svc.Status()
	require.True(t, ok)
	assert.Equal(t, before.ID, after.ID)
}

func TestPredict_BadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ``},
		{"not json", `features=1`},
		{"features not array", `{"features":"1,2,3"}`},
		{"missing features", `{}`},
		{"non numeric", `{"features":[1,2,3,4,5,6,7,8,"nine"]}`},
		{"null element", `{"features":[1,2,3,4,5,6,7,8,null]}`},
	}
	srv, _, _ := newTestServer(t, classifier.Rules{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode(t, w), "error")
		})
	}
}

func TestPredict_ClassifierFailure(t *testing.T) {
	srv, svc, _ := newTestServer(t, brokenModel{})

	w := do(t, srv, http.MethodPost, "/predict", cpuBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	doc := decode(t, w)
	assert.Equal(t, "error", doc["status"])
	assert.Equal(t, "classification failed", doc["message"])
	assert.Contains(t, doc["details"], "weights corrupted")

	_, ok := svc.Status()
	assert.False(t, ok)
}

func TestPredict_MethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t, classifier.Rules{})
	w := do(t, srv, http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// --- /api/status ---

func TestStatus_BeforeAnyPredict(t *testing.T) {
	srv, _, _ := newTestServer(t, classifier.Rules{})

	w := do(t, srv, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, map[string]any{"error": "no data available"}, decode(t, w))
}

func TestStatus_AfterPredict(t *testing.T) {
	srv, _, _ := newTestServer(t, classifier.Rules{})
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/predict", cpuBody).Code)

	first := do(t, srv, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, first.Code)
	doc := decode(t, first)
	assert.Equal(t, "success", doc["status"])
	assert.NotEmpty(t, doc["timestamp"])

	data, ok := doc["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "surcharge_cpu", data["prediction"])

	second := decode(t, do(t, srv, http.MethodGet, "/api/status", ""))
	assert.Equal(t, data, second["data"], "status is stable between classifications")
}

// --- /health and /classes ---

func TestHealth(t *testing.T) {
	tests := []struct {
		name         string
		opts         []inference.Option
		wantLoaded   bool
		wantDegraded bool
	}{
		{"trained model", nil, true, false},
		{"fallback", []inference.Option{inference.WithDegraded()}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(t, classifier.Rules{}, tt.opts...)
			w := do(t, srv, http.MethodGet, "/health", "")
			require.Equal(t, http.StatusOK, w.Code)

			doc := decode(t, w)
			assert.Equal(t, "healthy", doc["status"])
			assert.Equal(t, "1.0.0", doc["api_version"])
			assert.Equal(t, tt.wantLoaded, doc["model_loaded"])
			_, hasDegraded := doc["degraded"]
			assert.Equal(t, tt.wantDegraded, hasDegraded)
		})
	}
}

func TestClasses(t *testing.T) {
	srv, _, _ := newTestServer(t, classifier.Rules{})
	w := do(t, srv, http.MethodGet, "/classes", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got classesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 12, got.Count)
	assert.Equal(t, model.CategoryNames(), got.Classes)
	assert.Equal(t, "normal", got.Classes[0])
}

// --- history endpoints ---

func TestPredictions_ListsStoredResults(t *testing.T) {
	srv, _, _ := newTestServer(t, classifier.Rules{})
	for range 3 {
		require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/predict", cpuBody).Code)
	}

	w := do(t, srv, http.MethodGet, "/api/predictions?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var recs []model.PredictionRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	assert.Len(t, recs, 2)
	assert.Equal(t, model.CategoryCPUOverload, recs[0].Label)
}

func TestPredictions_BadLimit(t *testing.T) {
	srv, _, _ := newTestServer(t, classifier.Rules{})
	for _, q := range []string{"limit=abc", "limit=0", "limit=-3"} {
		w := do(t, srv, http.MethodGet, "/api/predictions?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestHistory_NoStore(t *testing.T) {
	svc := inference.NewService(classifier.Rules{}, classifier.IdentityEncoder())
	srv := NewServer(":0", svc, nil, nil)

	for _, path := range []string{"/api/predictions", "/api/alerts"} {
		w := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/metrics", "").Code)
}

func TestAlerts_ListsLog(t *testing.T) {
	srv, _, s := newTestServer(t, classifier.Rules{})
	require.NoError(t, s.InsertAlert(context.Background(), model.Notification{
		AlertType: "classification",
		Severity:  "warning",
		Title:     "Host condition: CPU overload",
		Message:   "Host classified as surcharge_cpu",
		Subject:   "surcharge_cpu",
	}))

	w := do(t, srv, http.MethodGet, "/api/alerts", "")
	require.Equal(t, http.StatusOK, w.Code)
	var recs []store.AlertRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "surcharge_cpu", recs[0].Subject)
}

// --- plumbing ---

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, classifier.Rules{})
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/predict", cpuBody).Code)
	do(t, srv, http.MethodPost, "/predict", `{"features":[1]}`)

	w := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `hostwatch_predictions_total{category="surcharge_cpu"} 1`)
	assert.Contains(t, body, `hostwatch_predict_errors_total{kind="invalid_request"} 1`)
	assert.Contains(t, body, "hostwatch_last_confidence 70")
}

func TestRootRedirectsToSwagger(t *testing.T) {
	srv, _, _ := newTestServer(t, classifier.Rules{})
	w := do(t, srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/swagger/index.html", w.Header().Get("Location"))

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/nonexistent", "").Code)
}

func TestSwaggerDocServed(t *testing.T) {
	srv, _, _ := newTestServer(t, classifier.Rules{})
	w := do(t, srv, http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/predict")
}

func TestResponsesCarrySecurityHeaders(t *testing.T) {
	srv, _, _ := newTestServer(t, classifier.Rules{})
	w := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestWriteJSON_MarshalError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	writeJSON(w, r, http.StatusOK, map[string]any{"bad": make(chan int)})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWriteJSON_WriteError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	fw := &failWriter{header: http.Header{}}
	writeJSON(fw, r, http.StatusOK, map[string]string{"ok": "yes"})
	assert.Equal(t, "application/json", fw.header.Get("Content-Type"))
}

func TestServerRun_StopsOnCancel(t *testing.T) {
	svc := inference.NewService(classifier.Rules{}, classifier.IdentityEncoder())
	srv := NewServer("127.0.0.1:0", svc, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
