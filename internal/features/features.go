// Package features turns raw sensor readings into the fixed nine-field
// vector the classifier consumes.
package features

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/darshan-rambhia/hostwatch/internal/model"
	"github.com/darshan-rambhia/hostwatch/internal/sensor"
)

// ErrMalformedFeatureVector is returned when a vector cannot be sent to the
// classifier.
var ErrMalformedFeatureVector = errors.New("malformed feature vector")

// MalformedFeatureVectorError names the offending field.
type MalformedFeatureVectorError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *MalformedFeatureVectorError) Error() string {
	return fmt.Sprintf("malformed feature vector: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *MalformedFeatureVectorError) Unwrap() error { return ErrMalformedFeatureVector }

// Event level codes.
const (
	LevelInfo    int64 = 0
	LevelWarning int64 = 1
	LevelError   int64 = 2
)

var levelByName = map[string]int64{
	"information":   LevelInfo,
	"audit success": LevelInfo,
	"warning":       LevelWarning,
	"error":         LevelError,
	"audit failure": LevelError,
}

// Windows EVENTLOG_*_TYPE values.
var levelByEventType = map[int64]int64{
	1:  LevelError,   // EVENTLOG_ERROR_TYPE
	2:  LevelWarning, // EVENTLOG_WARNING_TYPE
	4:  LevelInfo,    // EVENTLOG_INFORMATION_TYPE
	8:  LevelInfo,    // EVENTLOG_AUDIT_SUCCESS
	16: LevelError,   // EVENTLOG_AUDIT_FAILURE
}

// LevelCode maps an event severity to its numeric code. It accepts the
// severity names and the numeric Windows event types. Unknown values map to
// LevelInfo.
func LevelCode(level string) int64 {
	s := strings.ToLower(strings.TrimSpace(level))
	if code, ok := levelByName[s]; ok {
		return code
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if code, ok := levelByEventType[n]; ok {
			return code
		}
	}
	if s != "" {
		slog.Debug("unknown event level, treating as information", "level", level)
	}
	return LevelInfo
}

// Build assembles a FeatureVector from readings. Missing readings take the 0
// default, as do out-of-range ones: non-finite or negative values and usage
// percentages above 100. Those are logged at debug level.
func Build(r sensor.Readings) (model.FeatureVector, error) {
	v := model.FeatureVector{
		CPUUsage:           usableFloat("cpu_usage", r.CPUUsage, true),
		RAMUsage:           usableFloat("ram_usage", r.RAMUsage, true),
		DiskUsage:          usableFloat("disk_usage", r.DiskUsage, true),
		Temperature:        usableFloat("temperature", r.Temperature, false),
		ReadErrors:         usableCount("read_errors", r.ReadErrors),
		WriteErrors:        usableCount("write_errors", r.WriteErrors),
		ReallocatedSectors: usableCount("reallocated_sectors", r.ReallocatedSectors),
		EventID:            usableCount("event_id", r.EventID),
	}
	if r.EventLevel != nil {
		v.Level = LevelCode(*r.EventLevel)
	}
	if err := Validate(v); err != nil {
		return model.FeatureVector{}, err
	}
	return v, nil
}

func usableFloat(field string, p *float64, usage bool) float64 {
	if p == nil {
		return 0
	}
	x := *p
	reason := ""
	switch {
	case math.IsNaN(x) || math.IsInf(x, 0):
		reason = "not a finite number"
	case x < 0:
		reason = "negative"
	case usage && x > 100:
		reason = "percentage above 100"
	default:
		return x
	}
	discard(field, x, reason)
	return 0
}

func usableCount(field string, p *int64) int64 {
	if p == nil {
		return 0
	}
	if *p < 0 {
		discard(field, float64(*p), "negative")
		return 0
	}
	return *p
}

func discard(field string, x float64, reason string) {
	err := sensor.Unavailable(field, &MalformedFeatureVectorError{Field: field, Value: x, Reason: reason})
	slog.Debug("discarding out-of-range reading", "field", field, "value", x, "error", err)
}

// Validate checks the range of every field.
func Validate(v model.FeatureVector) error {
	vals := v.Values()
	for i, name := range model.FeatureNames {
		x := vals[i]
		switch {
		case math.IsNaN(x) || math.IsInf(x, 0):
			return &MalformedFeatureVectorError{Field: name, Value: x, Reason: "not a finite number"}
		case x < 0:
			return &MalformedFeatureVectorError{Field: name, Value: x, Reason: "negative"}
		case isUsage(i) && x > 100:
			return &MalformedFeatureVectorError{Field: name, Value: x, Reason: "percentage above 100"}
		}
	}
	if v.Level > LevelError {
		return &MalformedFeatureVectorError{Field: "level", Value: float64(v.Level), Reason: "unknown level code"}
	}
	return nil
}

// isUsage reports whether field i is a percentage.
func isUsage(i int) bool { return i <= 2 }

// isInteger reports whether field i is integer-typed.
func isInteger(i int) bool { return i == 3 || i >= 5 }

// FromSlice converts a transported array back into a vector. It requires
// exactly nine values with integral integer fields, then validates ranges.
func FromSlice(vals []float64) (model.FeatureVector, error) {
	if len(vals) != model.FeatureCount {
		return model.FeatureVector{}, &MalformedFeatureVectorError{
			Field:  "features",
			Value:  float64(len(vals)),
			Reason: fmt.Sprintf("expected %d values", model.FeatureCount),
		}
	}
	for i, x := range vals {
		name := model.FeatureNames[i]
		switch {
		case math.IsNaN(x) || math.IsInf(x, 0):
			return model.FeatureVector{}, &MalformedFeatureVectorError{Field: name, Value: x, Reason: "not a finite number"}
		case !isInteger(i):
		case x != math.Trunc(x):
			return model.FeatureVector{}, &MalformedFeatureVectorError{Field: name, Value: x, Reason: "not an integer"}
		case x >= math.MaxInt64 || x < math.MinInt64:
			return model.FeatureVector{}, &MalformedFeatureVectorError{Field: name, Value: x, Reason: "out of integer range"}
		}
	}

	v := model.FeatureVector{
		CPUUsage:           vals[0],
		RAMUsage:           vals[1],
		DiskUsage:          vals[2],
		Level:              int64(vals[3]),
		Temperature:        vals[4],
		ReadErrors:         int64(vals[5]),
		WriteErrors:        int64(vals[6]),
		ReallocatedSectors: int64(vals[7]),
		EventID:            int64(vals[8]),
	}
	if err := Validate(v); err != nil {
		return model.FeatureVector{}, err
	}
	return v, nil
}
