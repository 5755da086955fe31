// Package poller fetches the classification service's status document for
// the dashboard and records it in the dashboard cache.
package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/cache"
	"github.com/darshan-rambhia/hostwatch/internal/collector"
	"github.com/darshan-rambhia/hostwatch/internal/features"
	"github.com/darshan-rambhia/hostwatch/internal/model"
)

// ErrNoData is recorded when the service has not classified anything yet.
var ErrNoData = errors.New("no data available")

// statusDocument is the envelope of GET /api/status.
type statusDocument struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// wireResult is the loosely typed form of a classification. Category values
// may arrive as names, integer codes or digit strings.
type wireResult struct {
	ID              string         `json:"id"`
	Prediction      any            `json:"prediction"`
	Confidence      float64        `json:"confidence"`
	Probabilities   map[string]any `json:"probabilities"`
	Recommendations []string       `json:"recommendations"`
	Icon            string         `json:"icon"`
	Color           string         `json:"color"`
	Timestamp       string         `json:"timestamp"`
	Features        []float64      `json:"features"`
}

// Poller is a collector.Collector that mirrors the service status into a
// cache.Cache.
type Poller struct {
	url      string
	client   *http.Client
	cache    *cache.Cache
	interval time.Duration
	now      func() time.Time
}

// New creates a poller for statusURL.
func New(statusURL string, timeout, interval time.Duration, c *cache.Cache) *Poller {
	return &Poller{
		url:      statusURL,
		client:   &http.Client{Timeout: timeout},
		cache:    c,
		interval: interval,
		now:      time.Now,
	}
}

func (p *Poller) Name() string            { return "status-poller" }
func (p *Poller) Interval() time.Duration { return p.interval }

// Collect performs one poll. On failure the cached status is kept and the
// failure is recorded for the unavailable banner.
func (p *Poller) Collect(ctx context.Context) error {
	res, err := p.fetch(ctx)
	now := p.now()
	if err != nil {
		p.cache.RecordFailure(err, now)
		return fmt.Errorf("polling %s: %w", p.url, err)
	}
	p.cache.Update(res, model.NewHistoryRecord(res), now)
	slog.Debug("status polled", "prediction", res.Label, "confidence", res.Confidence)
	return nil
}

func (p *Poller) fetch(ctx context.Context) (model.ClassificationResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return model.ClassificationResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return model.ClassificationResult{}, collector.NewTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.ClassificationResult{}, collector.NewTransportError(fmt.Errorf("reading body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.ClassificationResult{}, ErrNoData
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return model.ClassificationResult{}, &collector.APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			Endpoint:   p.url,
		}
	}
	return Decode(body, p.now)
}

// Decode parses a status document and normalises every category value.
// Unknown probability keys are dropped; categories missing from the
// document get probability 0.
func Decode(body []byte, now func() time.Time) (model.ClassificationResult, error) {
	var doc statusDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return model.ClassificationResult{}, fmt.Errorf("parsing status document: %w", err)
	}
	if doc.Status != "" && doc.Status != "success" {
		return model.ClassificationResult{}, fmt.Errorf("status document reports %q", doc.Status)
	}
	if len(doc.Data) == 0 || string(doc.Data) == "null" {
		return model.ClassificationResult{}, ErrNoData
	}

	var w wireResult
	dec := json.NewDecoder(bytes.NewReader(doc.Data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return model.ClassificationResult{}, fmt.Errorf("parsing status data: %w", err)
	}

	label := model.NormalizeCategory(w.Prediction)
	res := model.ClassificationResult{
		ID:              w.ID,
		Label:           label,
		Confidence:      w.Confidence,
		Probabilities:   make(map[model.Category]float64, model.CategoryCount),
		Recommendations: w.Recommendations,
		Icon:            w.Icon,
		Color:           w.Color,
		Timestamp:       now(),
	}
	if res.Icon == "" {
		res.Icon = label.Icon()
	}
	if res.Color == "" {
		res.Color = label.Color()
	}
	if w.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, w.Timestamp); err == nil {
			res.Timestamp = ts
		}
	}

	for _, c := range model.AllCategories() {
		res.Probabilities[c] = 0
	}
	for k, raw := range w.Probabilities {
		c := model.NormalizeCategory(k)
		if !c.Valid() {
			slog.Warn("dropping unknown probability key", "key", k)
			continue
		}
		n, ok := raw.(json.Number)
		if !ok {
			slog.Warn("dropping non-numeric probability", "key", k)
			continue
		}
		f, err := n.Float64()
		if err != nil {
			slog.Warn("dropping non-numeric probability", "key", k, "error", err)
			continue
		}
		res.Probabilities[c] = f
	}

	if len(w.Features) > 0 {
		v, err := features.FromSlice(w.Features)
		if err != nil {
			return model.ClassificationResult{}, fmt.Errorf("status features: %w", err)
		}
		res.Features = v
	}
	return res, nil
}
