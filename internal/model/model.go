// Package model defines all shared domain types for hostwatch.
package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// FeatureCount is the fixed length of a feature vector.
const FeatureCount = 9

// FeatureNames lists the feature vector fields in transport order.
var FeatureNames = [FeatureCount]string{
	"cpu_usage",
	"ram_usage",
	"disk_usage",
	"level",
	"temperature",
	"read_errors",
	"write_errors",
	"reallocated_sectors",
	"event_id",
}

// FeatureVector is a fixed 9-field numeric summary of host health at one
// sampling instant. Build it with the features package; the zero value is a
// valid all-zero vector.
type FeatureVector struct {
	CPUUsage           float64 // percent
	RAMUsage           float64 // percent
	DiskUsage          float64 // percent
	Level              int64   // event severity 0..2
	Temperature        float64 // Celsius
	ReadErrors         int64
	WriteErrors        int64
	ReallocatedSectors int64
	EventID            int64
}

// Values returns the vector in transport order.
func (v FeatureVector) Values() [FeatureCount]float64 {
	return [FeatureCount]float64{
		v.CPUUsage,
		v.RAMUsage,
		v.DiskUsage,
		float64(v.Level),
		v.Temperature,
		float64(v.ReadErrors),
		float64(v.WriteErrors),
		float64(v.ReallocatedSectors),
		float64(v.EventID),
	}
}

// MarshalJSON encodes the vector as a 9-element array.
func (v FeatureVector) MarshalJSON() ([]byte, error) {
	vals := v.Values()
	return json.Marshal(vals[:])
}

// UnmarshalJSON decodes a 9-element array. Integer fields are truncated; strict
// validation is the job of features.FromSlice.
func (v *FeatureVector) UnmarshalJSON(b []byte) error {
	var vals []float64
	if err := json.Unmarshal(b, &vals); err != nil {
		return err
	}
	if len(vals) != FeatureCount {
		return fmt.Errorf("feature vector: expected %d values, got %d", FeatureCount, len(vals))
	}
	*v = FeatureVector{
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
	return nil
}

// ClassificationResult is the outcome of one successful prediction.
type ClassificationResult struct {
	ID              string               `json:"id,omitempty"`
	Label           Category             `json:"prediction"`
	Confidence      float64              `json:"confidence"`    // 0-100
	Probabilities   map[Category]float64 `json:"probabilities"` // 0-100 per category
	Recommendations []string             `json:"recommendations"`
	Icon            string               `json:"icon"`
	Color           string               `json:"color"`
	Timestamp       time.Time            `json:"timestamp"`
	Features        FeatureVector        `json:"features"`
}

// Clone returns a deep copy.
func (r ClassificationResult) Clone() ClassificationResult {
	cp := r
	if r.Probabilities != nil {
		cp.Probabilities = make(map[Category]float64, len(r.Probabilities))
		maps.Copy(cp.Probabilities, r.Probabilities)
	}
	if r.Recommendations != nil {
		cp.Recommendations = make([]string, len(r.Recommendations))
		copy(cp.Recommendations, r.Recommendations)
	}
	return cp
}

// HistoryRecord is the dashboard's projection of one polled status.
type HistoryRecord struct {
	Timestamp          time.Time `json:"timestamp"`
	Label              Category  `json:"prediction"`
	Confidence         float64   `json:"confidence"`
	CPUUsage           float64   `json:"cpu_usage"`
	RAMUsage           float64   `json:"ram_usage"`
	DiskUsage          float64   `json:"disk_usage"`
	Temperature        float64   `json:"temperature"`
	ReadErrors         int64     `json:"read_errors"`
	WriteErrors        int64     `json:"write_errors"`
	ReallocatedSectors int64     `json:"reallocated_sectors"`
}

// NewHistoryRecord projects a result into a history row.
func NewHistoryRecord(r ClassificationResult) HistoryRecord {
	return HistoryRecord{
		Timestamp:          r.Timestamp,
		Label:              r.Label,
		Confidence:         r.Confidence,
		CPUUsage:           r.Features.CPUUsage,
		RAMUsage:           r.Features.RAMUsage,
		DiskUsage:          r.Features.DiskUsage,
		Temperature:        r.Features.Temperature,
		ReadErrors:         r.Features.ReadErrors,
		WriteErrors:        r.Features.WriteErrors,
		ReallocatedSectors: r.Features.ReallocatedSectors,
	}
}

// PredictionRecord is a stored classification as returned by the store.
type PredictionRecord struct {
	ID         string        `json:"id"`
	Timestamp  int64         `json:"ts"`
	Label      Category      `json:"prediction"`
	Confidence float64       `json:"confidence"`
	Features   FeatureVector `json:"features"`
}

// SMART status bitfield values.
const (
	StatusPassed         = 0
	StatusFailedSmart    = 1
	StatusWarnScrutiny   = 2
	StatusFailedScrutiny = 4
)

// SMARTAttribute represents a single SMART attribute.
type SMARTAttribute struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Value       int64    `json:"value"`
	Worst       int64    `json:"worst"`
	Threshold   int64    `json:"threshold"`
	RawValue    int64    `json:"raw_value"`
	RawString   string   `json:"raw_string"`
	Status      int      `json:"status"`
	FailureRate *float64 `json:"failure_rate,omitempty"`
}

// Disk is the SMART view of one physical disk.
type Disk struct {
	DevPath      string           `json:"dev_path"`
	Model        string           `json:"model"`
	Serial       string           `json:"serial"`
	Protocol     string           `json:"protocol"` // "ata", "nvme", "scsi"
	Passed       bool             `json:"passed"`
	Status       int              `json:"status"` // bitfield
	Temperature  *int             `json:"temperature,omitempty"`
	PowerOnHours *int             `json:"power_on_hours,omitempty"`
	Attributes   []SMARTAttribute `json:"attributes,omitempty"`
}

// Notification represents a structured alert message.
type Notification struct {
	AlertType string            `json:"alert_type"`
	Severity  string            `json:"severity"` // "info", "warning", "critical"
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Subject   string            `json:"subject"`
	Timestamp time.Time         `json:"timestamp"`
	Resolved  bool              `json:"resolved"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
