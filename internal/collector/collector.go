// Package collector provides the periodic collection framework for hostwatch
// and the telemetry collector that feeds the classification service.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Collector is the interface for all periodic collectors.
type Collector interface {
	Name() string
	Collect(ctx context.Context) error
	Interval() time.Duration
}

// WorkerPool bounds concurrent sensor reads.
type WorkerPool struct {
	sem chan struct{}
}

// NewWorkerPool creates a worker pool with the given max concurrent workers.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{sem: make(chan struct{}, maxWorkers)}
}

// Submit runs fn in the pool, blocking if all workers are busy.
// Returns ctx.Err() if context is cancelled while waiting.
func (p *WorkerPool) Submit(ctx context.Context, fn func()) error {
	select {
	case p.sem <- struct{}{}:
		go func() {
			defer func() { <-p.sem }()
			fn()
		}()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts a collector loop. It collects immediately, then waits the
// configured interval minus the time the collection took (never less than
// zero) before the next one, so cycles never overlap. It blocks until the
// context is cancelled.
func Run(ctx context.Context, c Collector) error {
	name := c.Name()
	interval := c.Interval()
	slog.Info("collector started", "name", name, "interval", interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("collector stopped", "name", name)
			return ctx.Err()
		case <-timer.C:
			start := time.Now()
			if err := c.Collect(ctx); err != nil && ctx.Err() == nil {
				slog.Error("collection failed", "collector", name, "error", err)
			}
			timer.Reset(NextDelay(interval, time.Since(start)))
		}
	}
}

// NextDelay returns how long to wait before the next cycle.
func NextDelay(interval, elapsed time.Duration) time.Duration {
	return max(0, interval-elapsed)
}

// ErrTransportFailure marks a submission to the classification service that
// did not produce a result. The tick is dropped; the next tick is the retry.
var ErrTransportFailure = errors.New("transport failure")

// TransportError wraps a network-level failure reaching the service.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string        { return e.Err.Error() }
func (e *TransportError) Unwrap() error        { return e.Err }
func (e *TransportError) Is(target error) bool { return target == ErrTransportFailure }
func (e *TransportError) IsRetryable() bool    { return true }

// NewTransportError creates a new transport error.
func NewTransportError(err error) *TransportError {
	return &TransportError{Err: err}
}

// APIError represents a non-2xx response from the classification service.
type APIError struct {
	StatusCode int
	Body       string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d from %s: %s", e.StatusCode, e.Endpoint, e.Body)
}

func (e *APIError) Is(target error) bool { return target == ErrTransportFailure }

// IsRetryable reports whether resubmitting the same payload could succeed.
// A 400 means the vector itself was rejected.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
