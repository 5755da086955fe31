// Package alerter evaluates alert rules against the latest classification.
package alerter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/model"
	"github.com/darshan-rambhia/hostwatch/internal/notify"
	"github.com/darshan-rambhia/hostwatch/internal/store"
)

// StatusSource exposes the most recent classification.
type StatusSource interface {
	Status() (model.ClassificationResult, bool)
}

// AlertConfig holds configuration for alert rules. A nil rule is disabled.
type AlertConfig struct {
	Classification  *ClassificationAlert
	CPUHigh         *ThresholdAlert
	TemperatureHigh *ThresholdAlert
	SectorsHigh     *ThresholdAlert
	CollectorSilent *StaleAlert
}

// ClassificationAlert triggers when the host stays in a non-normal category.
type ClassificationAlert struct {
	MinConfidence float64
	Duration      time.Duration
	Severity      string
	Cooldown      time.Duration
}

// ThresholdAlert triggers when a feature stays at or above a threshold.
type ThresholdAlert struct {
	Threshold float64
	Duration  time.Duration
	Severity  string
	Cooldown  time.Duration
}

// StaleAlert triggers when no classification arrives for MaxAge.
type StaleAlert struct {
	MaxAge   time.Duration
	Severity string
	Cooldown time.Duration
}

// criticalCategories always alert as critical.
var criticalCategories = map[model.Category]bool{
	model.CategoryDiskEndOfLife:       true,
	model.CategoryMotherboardOverheat: true,
}

// DefaultAlertConfig returns sensible alert defaults.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		Classification: &ClassificationAlert{
			MinConfidence: 60, Duration: 1 * time.Minute, Severity: "warning", Cooldown: 1 * time.Hour,
		},
		CPUHigh: &ThresholdAlert{
			Threshold: 95, Duration: 5 * time.Minute, Severity: "warning", Cooldown: 1 * time.Hour,
		},
		TemperatureHigh: &ThresholdAlert{
			Threshold: 80, Duration: 2 * time.Minute, Severity: "critical", Cooldown: 30 * time.Minute,
		},
		SectorsHigh: &ThresholdAlert{
			Threshold: 50, Severity: "critical", Cooldown: 6 * time.Hour,
		},
		CollectorSilent: &StaleAlert{
			MaxAge: 5 * time.Minute, Severity: "warning", Cooldown: 1 * time.Hour,
		},
	}
}

// Alerter evaluates rules and sends notifications.
type Alerter struct {
	source    StatusSource
	store     *store.Store
	providers []notify.Provider
	config    AlertConfig
	interval  time.Duration
	started   time.Time

	// Deduplication: maps alert key → last fired time
	lastFired map[string]time.Time

	// Track sustained conditions: maps alert key → first observed time
	sustained map[string]time.Time

	// Fired alerts awaiting a resolved notification, by key
	active map[string]model.Notification
}

// NewAlerter creates a new alerter. s may be nil to skip the alert log.
func NewAlerter(src StatusSource, s *store.Store, providers []notify.Provider, cfg AlertConfig) *Alerter {
	return &Alerter{
		source:    src,
		store:     s,
		providers: providers,
		config:    cfg,
		interval:  30 * time.Second,
		started:   time.Now(),
		lastFired: make(map[string]time.Time),
		sustained: make(map[string]time.Time),
		active:    make(map[string]model.Notification),
	}
}

// Run starts the alerter evaluation loop.
func (a *Alerter) Run(ctx context.Context) error {
	slog.Info("alerter started", "interval", a.interval, "providers", len(a.providers))

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("alerter stopped")
			return ctx.Err()
		case now := <-ticker.C:
			a.evaluate(ctx, now)
		}
	}
}

func (a *Alerter) cleanup(now time.Time) {
	const maxAge = 6 * time.Hour
	for key, t := range a.lastFired {
		if now.Sub(t) > maxAge {
			delete(a.lastFired, key)
		}
	}
	for key, t := range a.sustained {
		if now.Sub(t) > maxAge {
			delete(a.sustained, key)
		}
	}
}

func (a *Alerter) evaluate(ctx context.Context, now time.Time) {
	a.cleanup(now)

	res, ok := a.source.Status()

	if cfg := a.config.CollectorSilent; cfg != nil {
		last := a.started
		if ok {
			last = res.Timestamp
		}
		a.checkStale(ctx, now, last, ok, cfg)
	}

	if !ok {
		return
	}

	if cfg := a.config.Classification; cfg != nil {
		a.checkClassification(ctx, now, res, cfg)
	}

	v := res.Features
	if cfg := a.config.CPUHigh; cfg != nil {
		a.checkSustainedThreshold(ctx, now, "cpu_high", v.CPUUsage, cfg, model.Notification{
			AlertType: "cpu_high",
			Severity:  cfg.Severity,
			Title:     "CPU usage high",
			Message:   fmt.Sprintf("CPU at %.0f%% for %s+", v.CPUUsage, cfg.Duration),
			Subject:   "cpu_usage",
			Metadata:  map[string]string{"value": fmt.Sprintf("%.1f", v.CPUUsage)},
		})
	}
	if cfg := a.config.TemperatureHigh; cfg != nil {
		a.checkSustainedThreshold(ctx, now, "temperature_high", v.Temperature, cfg, model.Notification{
			AlertType: "temperature_high",
			Severity:  cfg.Severity,
			Title:     "Temperature high",
			Message:   fmt.Sprintf("Temperature at %.1f°C for %s+", v.Temperature, cfg.Duration),
			Subject:   "temperature",
			Metadata:  map[string]string{"value": fmt.Sprintf("%.1f", v.Temperature)},
		})
	}
	if cfg := a.config.SectorsHigh; cfg != nil {
		a.checkSustainedThreshold(ctx, now, "sectors_high", float64(v.ReallocatedSectors), cfg, model.Notification{
			AlertType: "sectors_high",
			Severity:  cfg.Severity,
			Title:     "Reallocated sectors high",
			Message:   fmt.Sprintf("Disk reports %d reallocated sectors", v.ReallocatedSectors),
			Subject:   "reallocated_sectors",
			Metadata:  map[string]string{"value": fmt.Sprintf("%d", v.ReallocatedSectors)},
		})
	}
}

func (a *Alerter) checkClassification(ctx context.Context, now time.Time, res model.ClassificationResult, cfg *ClassificationAlert) {
	key := "classification:" + res.Label.String()
	alerting := res.Label.Valid() && res.Label != model.CategoryNormal && res.Confidence >= cfg.MinConfidence

	// A change of category restarts the clock for every other category.
	for k := range a.sustained {
		if strings.HasPrefix(k, "classification:") && (k != key || !alerting) {
			delete(a.sustained, k)
		}
	}
	if res.Label == model.CategoryNormal {
		for k := range a.active {
			if strings.HasPrefix(k, "classification:") {
				a.resolve(ctx, now, k)
			}
		}
	}
	if !alerting {
		return
	}

	first, ok := a.sustained[key]
	if !ok {
		a.sustained[key] = now
		first = now
	}
	if now.Sub(first) < cfg.Duration {
		return
	}

	severity := cfg.Severity
	if criticalCategories[res.Label] {
		severity = "critical"
	}
	a.fire(ctx, now, key, cfg.Cooldown, model.Notification{
		AlertType: "classification",
		Severity:  severity,
		Title:     "Host condition: " + res.Label.DisplayName(),
		Message:   classificationMessage(res),
		Subject:   res.Label.String(),
		Metadata: map[string]string{
			"category":   res.Label.String(),
			"confidence": fmt.Sprintf("%.2f", res.Confidence),
		},
	})
}

func classificationMessage(res model.ClassificationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Host classified as %s (%.1f%% confidence)", res.Label, res.Confidence)
	if len(res.Recommendations) > 0 {
		fmt.Fprintf(&b, ". %s", res.Recommendations[0])
	}
	return b.String()
}

func (a *Alerter) checkStale(ctx context.Context, now, last time.Time, seen bool, cfg *StaleAlert) {
	const key = "collector_silent"
	age := now.Sub(last)
	if age < cfg.MaxAge {
		if _, ok := a.active[key]; ok {
			a.resolve(ctx, now, key)
		}
		return
	}

	msg := fmt.Sprintf("No classification received since startup %.0fm ago", age.Minutes())
	if seen {
		msg = fmt.Sprintf("Last classification was %.0fm ago", age.Minutes())
	}
	a.fire(ctx, now, key, cfg.Cooldown, model.Notification{
		AlertType: key,
		Severity:  cfg.Severity,
		Title:     "No telemetry",
		Message:   msg,
		Subject:   "telemetry",
		Metadata:  map[string]string{"last_seen": last.UTC().Format(time.RFC3339)},
	})
}

func (a *Alerter) checkSustainedThreshold(ctx context.Context, now time.Time, key string, value float64, cfg *ThresholdAlert, notif model.Notification) {
	if value >= cfg.Threshold {
		if first, ok := a.sustained[key]; ok {
			if now.Sub(first) >= cfg.Duration {
				a.fire(ctx, now, key, cfg.Cooldown, notif)
			}
		} else {
			a.sustained[key] = now
			if cfg.Duration <= 0 {
				a.fire(ctx, now, key, cfg.Cooldown, notif)
			}
		}
	} else {
		delete(a.sustained, key)
		if _, ok := a.active[key]; ok {
			a.resolve(ctx, now, key)
		}
	}
}

func (a *Alerter) fire(ctx context.Context, now time.Time, key string, cooldown time.Duration, notif model.Notification) {
	if last, ok := a.lastFired[key]; ok && now.Sub(last) < cooldown {
		return // still in cooldown
	}
	a.lastFired[key] = now
	notif.Timestamp = now
	a.active[key] = notif

	a.deliver(ctx, notif)

	slog.Warn("alert fired",
		"type", notif.AlertType,
		"severity", notif.Severity,
		"subject", notif.Subject,
		"title", notif.Title,
	)
}

func (a *Alerter) resolve(ctx context.Context, now time.Time, key string) {
	fired := a.active[key]
	delete(a.active, key)
	delete(a.lastFired, key)

	notif := fired
	notif.Severity = "info"
	notif.Title = "Resolved: " + fired.Title
	notif.Message = fmt.Sprintf("%s has cleared", fired.Title)
	notif.Timestamp = now
	notif.Resolved = true

	a.deliver(ctx, notif)
	slog.Info("alert resolved", "type", notif.AlertType, "subject", notif.Subject)
}

func (a *Alerter) deliver(ctx context.Context, notif model.Notification) {
	if a.store != nil {
		if err := a.store.InsertAlert(ctx, notif); err != nil {
			slog.Error("storing alert", "type", notif.AlertType, "error", err)
		}
	}
	if err := notify.SendAll(ctx, a.providers, notif); err != nil {
		slog.Error("sending notification", "alert", notif.AlertType, "error", err)
	}
}

// FormatSeverity returns an uppercase severity string for templates.
func FormatSeverity(s string) string {
	return strings.ToUpper(s)
}
