// Package sensor acquires raw host telemetry. Every reading is optional: a
// probe that cannot read its source reports ErrSensorUnavailable and leaves
// its fields nil, and the feature builder substitutes defaults.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrSensorUnavailable marks a reading that could not be acquired.
var ErrSensorUnavailable = errors.New("sensor unavailable")

// UnavailableError reports which probe failed and why.
type UnavailableError struct {
	Sensor string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("sensor %s unavailable: %v", e.Sensor, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is matches ErrSensorUnavailable so callers can test with errors.Is.
func (e *UnavailableError) Is(target error) bool { return target == ErrSensorUnavailable }

// Unavailable wraps err as an *UnavailableError for the named sensor.
func Unavailable(sensor string, err error) error {
	return &UnavailableError{Sensor: sensor, Err: err}
}

// Readings is one sampling instant of raw telemetry. Nil means "not read".
type Readings struct {
	CPUUsage           *float64
	RAMUsage           *float64
	DiskUsage          *float64
	Temperature        *float64
	ReadErrors         *int64
	WriteErrors        *int64
	ReallocatedSectors *int64
	EventLevel         *string // event log severity name or numeric event type
	EventID            *int64
}

// Merge copies every reading set in src into r where r has none yet, so the
// first probe to report a field wins.
func (r *Readings) Merge(src Readings) {
	fill(&r.CPUUsage, src.CPUUsage)
	fill(&r.RAMUsage, src.RAMUsage)
	fill(&r.DiskUsage, src.DiskUsage)
	fill(&r.Temperature, src.Temperature)
	fill(&r.ReadErrors, src.ReadErrors)
	fill(&r.WriteErrors, src.WriteErrors)
	fill(&r.ReallocatedSectors, src.ReallocatedSectors)
	fill(&r.EventLevel, src.EventLevel)
	fill(&r.EventID, src.EventID)
}

func fill[T any](dst **T, src *T) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

// Probe reads one part of the host's telemetry.
type Probe interface {
	Name() string
	Read(ctx context.Context) (Readings, error)
}

// CommandRunner runs an external command and returns its stdout. It matches
// the shape of exec.CommandContext(...).Output so probes can be tested
// without the real binaries.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands on the local host.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// DecikelvinToCelsius converts an ACPI thermal zone reading, reported in
// tenths of a kelvin, to degrees Celsius.
func DecikelvinToCelsius(raw float64) float64 {
	return (raw - 2732) / 10
}
