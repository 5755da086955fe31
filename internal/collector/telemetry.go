package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/features"
	"github.com/darshan-rambhia/hostwatch/internal/model"
	"github.com/darshan-rambhia/hostwatch/internal/sensor"
)

// State is the telemetry collector's position in its cycle.
type State int32

const (
	StateIdle State = iota
	StateCollecting
	StateBuilt
	StateSending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateBuilt:
		return "built"
	case StateSending:
		return "sending"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrCycleInProgress is returned by Collect when a previous cycle has not
// finished.
var ErrCycleInProgress = errors.New("collection cycle already in progress")

// Submitter sends a feature vector to the classification service.
type Submitter interface {
	Submit(ctx context.Context, v model.FeatureVector, ts time.Time) (PredictResponse, error)
}

// TelemetryCollector reads every probe, builds a feature vector and submits
// it for classification once per interval.
type TelemetryCollector struct {
	probes   []sensor.Probe
	pool     *WorkerPool
	client   Submitter
	interval time.Duration

	probeTimeout time.Duration

	state atomic.Int32
	cycle sync.Mutex
}

// DefaultProbeTimeout bounds a tick's sensor reads when the interval does
// not suggest a shorter bound.
const DefaultProbeTimeout = 10 * time.Second

// TelemetryOption configures a TelemetryCollector.
type TelemetryOption func(*TelemetryCollector)

// WithProbeTimeout bounds how long a tick waits for its sensor reads.
func WithProbeTimeout(d time.Duration) TelemetryOption {
	return func(t *TelemetryCollector) {
		if d > 0 {
			t.probeTimeout = d
		}
	}
}

// NewTelemetryCollector creates a collector over probes. Earlier probes win
// when two report the same reading. Without WithProbeTimeout, reads are
// bounded by DefaultProbeTimeout or half the interval, whichever is shorter.
func NewTelemetryCollector(probes []sensor.Probe, pool *WorkerPool, client Submitter, interval time.Duration, opts ...TelemetryOption) *TelemetryCollector {
	t := &TelemetryCollector{
		probes:       probes,
		pool:         pool,
		client:       client,
		interval:     interval,
		probeTimeout: DefaultProbeTimeout,
	}
	if half := interval / 2; half > 0 && half < t.probeTimeout {
		t.probeTimeout = half
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TelemetryCollector) Name() string            { return "telemetry" }
func (t *TelemetryCollector) Interval() time.Duration { return t.interval }

// State returns the current cycle state.
func (t *TelemetryCollector) State() State { return State(t.state.Load()) }

func (t *TelemetryCollector) setState(s State) { t.state.Store(int32(s)) }

// Collect runs one Idle -> Collecting -> Built -> Sending -> Idle cycle.
func (t *TelemetryCollector) Collect(ctx context.Context) error {
	if !t.cycle.TryLock() {
		return ErrCycleInProgress
	}
	defer t.cycle.Unlock()
	defer t.setState(StateIdle)

	t.setState(StateCollecting)
	ts := time.Now()
	readings, err := t.Gather(ctx)
	if err != nil {
		return err
	}

	v, err := features.Build(readings)
	if err != nil {
		return fmt.Errorf("building feature vector: %w", err)
	}
	t.setState(StateBuilt)
	slog.Debug("feature vector built", "features", v.Values())

	t.setState(StateSending)
	resp, err := t.client.Submit(ctx, v, ts)
	if err != nil {
		return fmt.Errorf("submitting features: %w", err)
	}

	slog.Info("host classified", "prediction", resp.Prediction, "confidence", resp.Confidence)
	return nil
}

// Gather reads all probes concurrently through the worker pool and merges
// the results. Each tick's reads share one probe timeout; a probe that fails
// or has not answered by then is logged and leaves its readings unset. Only
// cancellation of ctx fails the whole gather.
func (t *TelemetryCollector) Gather(ctx context.Context) (sensor.Readings, error) {
	type probeResult struct {
		i int
		r sensor.Readings
	}
	// Buffered so probes finishing after the deadline never block.
	done := make(chan probeResult, len(t.probes))

	readCtx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	defer cancel()

	pending := 0
	for i, p := range t.probes {
		if err := t.pool.Submit(readCtx, func() {
			r, err := p.Read(readCtx)
			if err != nil {
				slog.Debug("sensor reading failed", "sensor", p.Name(), "error", err)
				r = sensor.Readings{}
			}
			done <- probeResult{i: i, r: r}
		}); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sensor.Readings{}, ctxErr
			}
			slog.Warn("sensor skipped, no free worker before the probe timeout", "sensor", p.Name(), "timeout", t.probeTimeout)
			continue
		}
		pending++
	}

	results := make([]sensor.Readings, len(t.probes))
wait:
	for pending > 0 {
		select {
		case res := <-done:
			results[res.i] = res.r
			pending--
		case <-readCtx.Done():
			if err := ctx.Err(); err != nil {
				return sensor.Readings{}, err
			}
			slog.Warn("sensors did not answer before the probe timeout", "pending", pending, "timeout", t.probeTimeout)
			break wait
		}
	}

	var merged sensor.Readings
	for _, r := range results {
		merged.Merge(r)
	}
	return merged, nil
}
