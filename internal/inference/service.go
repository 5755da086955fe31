// Package inference implements the classification service: it validates
// feature vectors, runs the classifier, builds the published result and keeps
// the single most recent result for status queries.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/classifier"
	"github.com/darshan-rambhia/hostwatch/internal/features"
	"github.com/darshan-rambhia/hostwatch/internal/model"
	"github.com/google/uuid"
)

var (
	// ErrInvalidRequest matches request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInternalClassification matches classifier failures.
	ErrInternalClassification = errors.New("internal classification error")
	// ErrNotFound is returned when no classification has happened yet.
	ErrNotFound = errors.New("no data available")
)

// RequestError describes why a request was rejected before classification.
type RequestError struct {
	Reason string
	Err    error
}

func (e *RequestError) Error() string        { return e.Reason }
func (e *RequestError) Unwrap() error        { return e.Err }
func (e *RequestError) Is(target error) bool { return target == ErrInvalidRequest }

// ClassificationError wraps a failure inside the classifier stage.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string        { return "classification failed: " + e.Err.Error() }
func (e *ClassificationError) Unwrap() error        { return e.Err }
func (e *ClassificationError) Is(target error) bool { return target == ErrInternalClassification }

// PredictRequest is the decoded body of POST /predict. Features are kept raw
// so numeric coercion can be reported per field.
type PredictRequest struct {
	Features  []any  `json:"features"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Sink persists successful classifications.
type Sink interface {
	InsertPrediction(ctx context.Context, r model.ClassificationResult) error
}

// Option configures a Service.
type Option func(*Service)

// WithSink stores every successful classification in s.
func WithSink(s Sink) Option { return func(svc *Service) { svc.sink = s } }

// WithMetrics records classifications in m.
func WithMetrics(m *Metrics) Option { return func(svc *Service) { svc.metrics = m } }

// WithClock overrides the time source used for missing timestamps.
func WithClock(now func() time.Time) Option { return func(svc *Service) { svc.now = now } }

// WithDegraded marks the service as running on the fallback classifier.
func WithDegraded() Option { return func(svc *Service) { svc.degraded = true } }

// Service classifies feature vectors and publishes the latest result.
type Service struct {
	model    classifier.Model
	encoder  *classifier.LabelEncoder
	degraded bool
	sink     Sink
	metrics  *Metrics
	now      func() time.Time

	current atomic.Pointer[model.ClassificationResult]
}

// NewService creates a service around a classifier and its label encoder.
func NewService(m classifier.Model, enc *classifier.LabelEncoder, opts ...Option) *Service {
	s := &Service{
		model:   m,
		encoder: enc,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ModelLoaded reports whether a trained model backs the service.
func (s *Service) ModelLoaded() bool { return !s.degraded }

// Degraded reports whether the rule-based fallback is in use.
func (s *Service) Degraded() bool { return s.degraded }

// Classify validates the request, runs the classifier and publishes the
// result. On any error the published result is left unchanged.
func (s *Service) Classify(ctx context.Context, req PredictRequest) (model.ClassificationResult, error) {
	vals, err := parseFeatures(req.Features)
	if err != nil {
		s.metrics.failed(ErrorKindInvalidRequest)
		return model.ClassificationResult{}, err
	}
	v, err := features.FromSlice(vals)
	if err != nil {
		s.metrics.failed(ErrorKindInvalidRequest)
		return model.ClassificationResult{}, &RequestError{Reason: err.Error(), Err: err}
	}

	label, confidence, probs, err := s.predict(v)
	if err != nil {
		s.metrics.failed(ErrorKindInternal)
		slog.Error("classification failed", "features", v.Values(), "error", err)
		return model.ClassificationResult{}, &ClassificationError{Err: err}
	}

	res := model.ClassificationResult{
		ID:              uuid.NewString(),
		Label:           label,
		Confidence:      confidence,
		Probabilities:   probs,
		Recommendations: Recommend(label, v),
		Icon:            label.Icon(),
		Color:           label.Color(),
		Timestamp:       s.timestamp(req.Timestamp),
		Features:        v,
	}

	published := res.Clone()
	s.current.Store(&published)
	s.metrics.observe(res)
	slog.Debug("classified", "prediction", label, "confidence", confidence)

	if s.sink != nil {
		if err := s.sink.InsertPrediction(context.WithoutCancel(ctx), res); err != nil {
			slog.Warn("storing prediction", "id", res.ID, "error", err)
		}
	}
	return res, nil
}

// Status returns the most recent result, or false before the first
// successful classification.
func (s *Service) Status() (model.ClassificationResult, bool) {
	p := s.current.Load()
	if p == nil {
		return model.ClassificationResult{}, false
	}
	return p.Clone(), true
}

// predict runs the classifier and converts its output to percentages keyed by
// category. Every category is present in the returned map.
func (s *Service) predict(v model.FeatureVector) (label model.Category, confidence float64, probs map[model.Category]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panicked: %v", r)
		}
	}()

	code, raw, err := s.model.Predict(v.Values())
	if err != nil {
		return 0, 0, nil, fmt.Errorf("predicting: %w", err)
	}
	if len(raw) != s.encoder.Len() {
		return 0, 0, nil, fmt.Errorf("classifier returned %d probabilities for %d classes", len(raw), s.encoder.Len())
	}
	label, err = s.encoder.Decode(code)
	if err != nil {
		return 0, 0, nil, err
	}

	var sum, best float64
	for i, p := range raw {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return 0, 0, nil, fmt.Errorf("class %d has invalid probability %v", i, p)
		}
		sum += p
		best = math.Max(best, p)
	}
	if sum <= 0 {
		return 0, 0, nil, fmt.Errorf("probabilities sum to %v", sum)
	}
	if raw[code] < best {
		return 0, 0, nil, fmt.Errorf("predicted class %d has probability %.4f below the maximum %.4f", code, raw[code], best)
	}

	scale := 1.0
	if math.Abs(sum-1) > 1e-6 {
		slog.Debug("renormalising class probabilities", "sum", sum)
		scale = 1 / sum
	}

	probs = make(map[model.Category]float64, model.CategoryCount)
	for _, c := range model.AllCategories() {
		probs[c] = 0
	}
	for i, p := range raw {
		c, _ := s.encoder.Decode(i)
		probs[c] = round2(p * scale * 100)
	}
	return label, round2(best * scale * 100), probs, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (s *Service) timestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
		slog.Debug("unparseable request timestamp, using current time", "timestamp", raw)
	}
	return s.now()
}

func parseFeatures(raw []any) ([]float64, error) {
	if len(raw) != model.FeatureCount {
		return nil, &RequestError{Reason: fmt.Sprintf("expected %d features, got %d", model.FeatureCount, len(raw))}
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		f, err := toFloat(v)
		if err != nil {
			return nil, &RequestError{
				Reason: fmt.Sprintf("feature %d (%s): %v", i, model.FeatureNames[i], err),
				Err:    err,
			}
		}
		out[i] = f
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Float64()
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
