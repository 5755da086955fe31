// Package templates renders the hostwatch dashboard.
package templates

import (
	"fmt"
	"strings"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/model"
)

// FormatPct formats a 0-100 percentage.
func FormatPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// FormatTemp formats a Celsius reading.
func FormatTemp(v float64) string {
	return fmt.Sprintf("%.1f°C", v)
}

// FormatDuration formats a duration into human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatClock formats a timestamp as wall-clock time for the history table.
func FormatClock(t time.Time) string {
	if t.IsZero() {
		return "--"
	}
	return t.Local().Format("15:04:05")
}

// FormatSince returns "Xs ago" style text relative to now.
func FormatSince(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return FormatDuration(now.Sub(t)) + " ago"
}

// ProgressBarWidth returns a width percentage clamped to 0-100.
func ProgressBarWidth(pct float64) float64 {
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// CategoryColor returns the Bootstrap contextual color for a category.
func CategoryColor(c model.Category) string { return c.Color() }

// CategoryIcon returns the Font Awesome class for a category.
func CategoryIcon(c model.Category) string { return c.Icon() }

// Severity classes for metric cards.
const (
	SeverityOK       = "success"
	SeverityWarning  = "warning"
	SeverityCritical = "danger"
)

// Metric identifies one dashboard metric card.
type Metric int

const (
	MetricCPU Metric = iota
	MetricRAM
	MetricDisk
	MetricTemperature
	MetricReadErrors
	MetricSectors
)

type band struct{ warning, critical float64 }

// metricBands are exclusive lower bounds: a value must exceed them.
var metricBands = map[Metric]band{
	MetricCPU:         {70, 85},
	MetricRAM:         {75, 90},
	MetricDisk:        {70, 85},
	MetricTemperature: {50, 70},
	MetricReadErrors:  {5, 10},
	MetricSectors:     {5, 20},
}

// SeverityClass returns success, warning or danger for a metric value.
func SeverityClass(m Metric, v float64) string {
	b, ok := metricBands[m]
	if !ok {
		return SeverityOK
	}
	switch {
	case v > b.critical:
		return SeverityCritical
	case v > b.warning:
		return SeverityWarning
	default:
		return SeverityOK
	}
}

// SeverityLabel returns the caption shown under a metric card.
func SeverityLabel(class string) string {
	switch class {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityWarning:
		return "ALERT"
	default:
		return "NORMAL"
	}
}

// MetricCard is one tile of the metric grid.
type MetricCard struct {
	Name  string
	Icon  string
	Value string
	Class string
	Label string
}

// MetricCards builds the metric grid for a feature vector.
func MetricCards(v model.FeatureVector) []MetricCard {
	card := func(m Metric, name, icon string, raw float64, value string) MetricCard {
		class := SeverityClass(m, raw)
		return MetricCard{Name: name, Icon: icon, Value: value, Class: class, Label: SeverityLabel(class)}
	}
	return []MetricCard{
		card(MetricCPU, "CPU", "fa-microchip", v.CPUUsage, FormatPct(v.CPUUsage)),
		card(MetricRAM, "RAM", "fa-memory", v.RAMUsage, FormatPct(v.RAMUsage)),
		card(MetricDisk, "Disk", "fa-hdd", v.DiskUsage, FormatPct(v.DiskUsage)),
		card(MetricTemperature, "Temperature", "fa-temperature-high", v.Temperature, FormatTemp(v.Temperature)),
		card(MetricReadErrors, "Read errors", "fa-exclamation-circle", float64(v.ReadErrors), fmt.Sprintf("%d", v.ReadErrors)),
		card(MetricSectors, "Reallocated sectors", "fa-exclamation-triangle", float64(v.ReallocatedSectors), fmt.Sprintf("%d", v.ReallocatedSectors)),
	}
}

// ProbabilityBar is one bar of the probability chart.
type ProbabilityBar struct {
	Category model.Category
	Label    string
	Hex      string
	Value    float64
	Width    float64
}

// ProbabilityBars returns one bar per category in code order. Categories
// missing from probs are shown at 0.
func ProbabilityBars(probs map[model.Category]float64) []ProbabilityBar {
	bars := make([]ProbabilityBar, 0, model.CategoryCount)
	for _, c := range model.AllCategories() {
		p := probs[c]
		bars = append(bars, ProbabilityBar{
			Category: c,
			Label:    c.DisplayName(),
			Hex:      c.HexColor(),
			Value:    p,
			Width:    ProgressBarWidth(p),
		})
	}
	return bars
}

// HistoryRow is one formatted line of the history table.
type HistoryRow struct {
	Time        string
	Category    string
	Color       string
	Confidence  string
	CPU         string
	Temperature string
}

// HistoryRows formats history newest first. The input is oldest first.
func HistoryRows(records []model.HistoryRecord) []HistoryRow {
	rows := make([]HistoryRow, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		rows = append(rows, HistoryRow{
			Time:        FormatClock(r.Timestamp),
			Category:    r.Label.DisplayName(),
			Color:       r.Label.Color(),
			Confidence:  FormatPct(r.Confidence),
			CPU:         FormatPct(r.CPUUsage),
			Temperature: FormatTemp(r.Temperature),
		})
	}
	return rows
}

// RecommendationStyle returns the icon and text class for a recommendation
// line based on its severity prefix.
func RecommendationStyle(rec string) (icon, class string) {
	switch {
	case strings.HasPrefix(rec, "CRITICAL") || strings.HasPrefix(rec, "URGENT"):
		return "fa-exclamation-circle", "text-danger"
	case strings.HasPrefix(rec, "Warning"):
		return "fa-exclamation-triangle", "text-warning"
	default:
		return "fa-info-circle", "text-info"
	}
}
