package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/darshan-rambhia/hostwatch/internal/alerter"
	"github.com/darshan-rambhia/hostwatch/internal/api"
	"github.com/darshan-rambhia/hostwatch/internal/cache"
	"github.com/darshan-rambhia/hostwatch/internal/classifier"
	"github.com/darshan-rambhia/hostwatch/internal/collector"
	"github.com/darshan-rambhia/hostwatch/internal/config"
	"github.com/darshan-rambhia/hostwatch/internal/dashboard"
	"github.com/darshan-rambhia/hostwatch/internal/inference"
	"github.com/darshan-rambhia/hostwatch/internal/notify"
	"github.com/darshan-rambhia/hostwatch/internal/poller"
	"github.com/darshan-rambhia/hostwatch/internal/sensor"
	"github.com/darshan-rambhia/hostwatch/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func runServe(ctx context.Context, cfg *config.Config) error {
	ver, sha, _, _ := buildInfo()
	slog.Info("starting hostwatch classification service",
		"version", ver,
		"commit", sha,
		"go", runtime.Version(),
		"listen", cfg.Server.Listen,
	)

	st, err := store.New(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	m, enc, opts, err := loadClassifier(cfg.Classifier)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts = append(opts, inference.WithSink(st), inference.WithMetrics(inference.NewMetrics(reg)))
	svc := inference.NewService(m, enc, opts...)

	providers, closeProviders := buildProviders(cfg.Notifications)
	defer closeProviders()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Server.Retention.Duration > 0 {
		pruner := store.NewPruner(st, store.RetentionConfig{
			Predictions: cfg.Server.Retention.Duration,
			AlertLog:    cfg.Server.Retention.Duration,
		})
		g.Go(func() error { return pruner.Run(ctx) })
	}

	a := alerter.NewAlerter(svc, st, providers, buildAlertConfig(cfg.Alerts))
	g.Go(func() error { return a.Run(ctx) })

	server := api.NewServer(cfg.Server.Listen, svc, st, reg)
	g.Go(func() error { return server.Run(ctx) })

	slog.Info("all components started", "notifications", len(providers))
	return wait(g, "classification service")
}

func runCollect(ctx context.Context, cfg *config.Config) error {
	probes := buildProbes(cfg.Collector, runtime.GOOS)
	names := make([]string, len(probes))
	for i, p := range probes {
		names[i] = p.Name()
	}
	slog.Info("starting hostwatch collector",
		"api_url", cfg.Collector.APIURL,
		"interval", cfg.Collector.Interval.Duration,
		"probes", names,
	)

	pool := collector.NewWorkerPool(cfg.Collector.Workers)
	client := collector.NewInferenceClient(cfg.Collector.APIURL, cfg.Collector.Timeout.Duration)
	tc := collector.NewTelemetryCollector(probes, pool, client, cfg.Collector.Interval.Duration,
		collector.WithProbeTimeout(cfg.Collector.ProbeTimeout.Duration))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return collector.Run(ctx, tc) })
	return wait(g, "collector")
}

func runDashboard(ctx context.Context, cfg *config.Config) error {
	d := cfg.Dashboard
	slog.Info("starting hostwatch dashboard",
		"listen", d.Listen,
		"status_url", d.StatusURL,
		"poll_interval", d.PollInterval.Duration,
	)

	c := cache.New(d.HistorySize)
	p := poller.New(d.StatusURL, d.Timeout.Duration, d.PollInterval.Duration, c)
	server := dashboard.NewServer(d.Listen, c, d.PollInterval.Duration)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return collector.Run(ctx, p) })
	g.Go(func() error { return server.Run(ctx) })
	return wait(g, "dashboard")
}

func wait(g *errgroup.Group, component string) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("hostwatch stopped gracefully", "component", component)
	return nil
}

// loadClassifier loads the trained model. With allow_fallback set, a missing
// or broken model is replaced by the threshold rules and the service reports
// itself degraded.
func loadClassifier(cfg config.ClassifierConfig) (classifier.Model, *classifier.LabelEncoder, []inference.Option, error) {
	m, enc, err := classifier.Load(cfg.ModelPath, cfg.LabelsPath)
	if err == nil {
		slog.Info("model loaded", "model", cfg.ModelPath, "labels", cfg.LabelsPath)
		return m, enc, nil, nil
	}
	if !cfg.AllowFallback {
		return nil, nil, nil, fmt.Errorf("loading model: %w", err)
	}
	slog.Warn("model unavailable, using rule-based fallback", "error", err)
	return classifier.Rules{}, classifier.IdentityEncoder(), []inference.Option{inference.WithDegraded()}, nil
}

// buildProbes assembles the sensor probes for this host. Earlier probes win
// when two report the same reading, so ACPI and SSH temperatures go ahead of
// the generic sensor scan.
func buildProbes(cfg config.CollectorConfig, goos string) []sensor.Probe {
	probes := []sensor.Probe{
		sensor.CPU{},
		sensor.Memory{},
		sensor.Disk{Path: cfg.DiskPath},
	}

	if cfg.ACPIThermal {
		probes = append(probes, sensor.ACPIThermal{})
	}
	if cfg.SSH != nil && cfg.SSH.Host != "" {
		p, err := sensor.NewSSHThermal(sensor.SSHConfig{
			Host:    cfg.SSH.Host,
			User:    cfg.SSH.User,
			KeyPath: cfg.SSH.KeyPath,
		})
		if err != nil {
			slog.Error("failed to create SSH temperature probe", "host", cfg.SSH.Host, "error", err)
		} else {
			probes = append(probes, p)
		}
	}
	probes = append(probes, sensor.Temperature{})

	if cfg.SmartDevice != "" {
		probes = append(probes, sensor.SMART{Device: cfg.SmartDevice})
	}

	switch cfg.EventSource {
	case "journal":
		if goos != "windows" {
			probes = append(probes, sensor.Journal{})
		}
	case "windows":
		probes = append(probes, sensor.WindowsEventLog{})
	}
	return probes
}

// buildProviders creates the notification providers. The returned func
// closes any broker connections.
func buildProviders(cfgs []config.NotificationConfig) ([]notify.Provider, func()) {
	var providers []notify.Provider
	var closers []func()
	host, _ := os.Hostname()
	for _, ncfg := range cfgs {
		switch ncfg.Type {
		case "ntfy":
			var opts []notify.NtfyOption
			if ncfg.Token != "" {
				opts = append(opts, notify.WithNtfyToken(ncfg.Token))
			}
			if ncfg.Click != "" {
				opts = append(opts, notify.WithNtfyClick(ncfg.Click))
			}
			providers = append(providers, notify.NewNtfy(ncfg.URL, ncfg.Topic, opts...))
		case "webhook":
			providers = append(providers, notify.NewWebhook(ncfg.URL, ncfg.Method, host, ncfg.Headers))
		case "mqtt":
			clientID := ncfg.ClientID
			if clientID == "" {
				clientID = "hostwatch"
			}
			p := notify.NewMQTT(notify.MQTTConfig{
				Broker:   ncfg.Broker,
				ClientID: clientID,
				Username: ncfg.Username,
				Password: ncfg.Password,
				Topic:    ncfg.Topic,
				QoS:      ncfg.QoS,
				Retain:   ncfg.Retain,
			})
			providers = append(providers, p)
			closers = append(closers, p.Close)
		}
	}
	return providers, func() {
		for _, c := range closers {
			c()
		}
	}
}

// buildAlertConfig applies the configured overrides onto the alerter
// defaults. Zero values keep the default.
func buildAlertConfig(a config.AlertsConfig) alerter.AlertConfig {
	out := alerter.DefaultAlertConfig()

	if c := a.Classification; c != nil {
		dst := out.Classification
		if c.MinConfidence > 0 {
			dst.MinConfidence = c.MinConfidence
		}
		if c.Duration.Duration > 0 {
			dst.Duration = c.Duration.Duration
		}
		if c.Cooldown.Duration > 0 {
			dst.Cooldown = c.Cooldown.Duration
		}
		if c.Severity != "" {
			dst.Severity = c.Severity
		}
	}

	applyThreshold(out.CPUHigh, a.CPUHigh)
	applyThreshold(out.TemperatureHigh, a.TemperatureHigh)
	applyThreshold(out.SectorsHigh, a.SectorsHigh)

	if c := a.CollectorSilent; c != nil {
		dst := out.CollectorSilent
		if c.MaxAge.Duration > 0 {
			dst.MaxAge = c.MaxAge.Duration
		}
		if c.Cooldown.Duration > 0 {
			dst.Cooldown = c.Cooldown.Duration
		}
		if c.Severity != "" {
			dst.Severity = c.Severity
		}
	}
	return out
}

func applyThreshold(dst *alerter.ThresholdAlert, c *config.AlertThreshold) {
	if c == nil {
		return
	}
	if c.Threshold > 0 {
		dst.Threshold = c.Threshold
	}
	if c.Duration.Duration > 0 {
		dst.Duration = c.Duration.Duration
	}
	if c.Cooldown.Duration > 0 {
		dst.Cooldown = c.Cooldown.Duration
	}
	if c.Severity != "" {
		dst.Severity = c.Severity
	}
}
