// Package config handles loading and validating hostwatch configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} placeholders in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrConfigFileNotFound is returned by Load when the specified config file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// Config is the top-level hostwatch configuration.
type Config struct {
	LogLevel      string               `yaml:"log_level"`
	LogFormat     string               `yaml:"log_format"`
	Server        ServerConfig         `yaml:"server"`
	Classifier    ClassifierConfig     `yaml:"classifier"`
	Collector     CollectorConfig      `yaml:"collector"`
	Dashboard     DashboardConfig      `yaml:"dashboard"`
	Notifications []NotificationConfig `yaml:"notifications"`
	Alerts        AlertsConfig         `yaml:"alerts"`
}

// ServerConfig configures the classification service.
type ServerConfig struct {
	Listen    string   `yaml:"listen"`
	DBPath    string   `yaml:"db_path"`
	Retention Duration `yaml:"retention"`
}

// ClassifierConfig locates the trained model artifacts.
type ClassifierConfig struct {
	ModelPath     string `yaml:"model_path"`
	LabelsPath    string `yaml:"labels_path"`
	AllowFallback bool   `yaml:"allow_fallback"`
}

// CollectorConfig configures the telemetry collector loop.
type CollectorConfig struct {
	APIURL   string   `yaml:"api_url"`
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
	// ProbeTimeout bounds each tick's sensor reads. Zero picks 10s or half
	// the interval, whichever is shorter.
	ProbeTimeout Duration   `yaml:"probe_timeout"`
	DiskPath     string     `yaml:"disk_path"`
	SmartDevice  string     `yaml:"smart_device"`
	EventSource  string     `yaml:"event_source"` // journal, windows or none
	ACPIThermal  bool       `yaml:"acpi_thermal"`
	Workers      int        `yaml:"workers"`
	SSH          *SSHConfig `yaml:"ssh,omitempty"`
}

// SSHConfig describes SSH access to a host whose `sensors` output supplies
// the temperature reading.
type SSHConfig struct {
	Host    string `yaml:"host"`
	User    string `yaml:"user"`
	KeyPath string `yaml:"key_path"`
}

// DashboardConfig configures the dashboard poller and its HTTP server.
type DashboardConfig struct {
	Listen       string   `yaml:"listen"`
	StatusURL    string   `yaml:"status_url"`
	PollInterval Duration `yaml:"poll_interval"`
	Timeout      Duration `yaml:"timeout"`
	HistorySize  int      `yaml:"history_size"`
}

// NotificationConfig describes a notification target.
type NotificationConfig struct {
	Type    string            `yaml:"type"` // "ntfy", "webhook" or "mqtt"
	URL     string            `yaml:"url"`
	Topic   string            `yaml:"topic,omitempty"`   // ntfy, mqtt
	Token   string            `yaml:"token,omitempty"`   // ntfy only
	Click   string            `yaml:"click,omitempty"`   // ntfy only
	Method  string            `yaml:"method,omitempty"`  // webhook only
	Headers map[string]string `yaml:"headers,omitempty"` // webhook only

	Broker   string `yaml:"broker,omitempty"` // mqtt only
	ClientID string `yaml:"client_id,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	QoS      byte   `yaml:"qos,omitempty"`
	Retain   bool   `yaml:"retain,omitempty"`
}

// AlertsConfig overrides the alerter defaults. Zero fields keep the default.
type AlertsConfig struct {
	Classification  *AlertClassification `yaml:"classification,omitempty"`
	CPUHigh         *AlertThreshold      `yaml:"cpu_high,omitempty"`
	TemperatureHigh *AlertThreshold      `yaml:"temperature_high,omitempty"`
	SectorsHigh     *AlertThreshold      `yaml:"sectors_high,omitempty"`
	CollectorSilent *AlertStale          `yaml:"collector_silent,omitempty"`
}

type AlertClassification struct {
	MinConfidence float64  `yaml:"min_confidence"`
	Duration      Duration `yaml:"duration"`
	Cooldown      Duration `yaml:"cooldown"`
	Severity      string   `yaml:"severity"`
}

type AlertThreshold struct {
	Threshold float64  `yaml:"threshold"`
	Duration  Duration `yaml:"duration"`
	Cooldown  Duration `yaml:"cooldown"`
	Severity  string   `yaml:"severity"`
}

type AlertStale struct {
	MaxAge   Duration `yaml:"max_age"`
	Cooldown Duration `yaml:"cooldown"`
	Severity string   `yaml:"severity"`
}

// Duration wraps time.Duration with YAML string parsing support.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Load reads configuration from a YAML file. A .env file next to the config
// file (or in the working directory when no path is given) is loaded first;
// variables already set in the environment win. If a path is given and the
// file does not exist, ErrConfigFileNotFound is returned.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(configPath string) error {
	dir := "."
	if configPath != "" {
		dir = filepath.Dir(configPath)
	}
	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err != nil {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("log_format must be one of: text, json")
	}

	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Server.Retention.Duration < 0 {
		return fmt.Errorf("server.retention must be >= 0")
	}

	if err := validateHTTPURL(c.Collector.APIURL); err != nil {
		return fmt.Errorf("collector.api_url: %w", err)
	}
	if c.Collector.Interval.Duration <= 0 {
		return fmt.Errorf("collector.interval must be > 0")
	}
	if c.Collector.Timeout.Duration <= 0 {
		return fmt.Errorf("collector.timeout must be > 0")
	}
	if pt := c.Collector.ProbeTimeout.Duration; pt < 0 || (pt > 0 && pt >= c.Collector.Interval.Duration) {
		return fmt.Errorf("collector.probe_timeout must be >= 0 and shorter than collector.interval")
	}
	if c.Collector.Workers < 1 {
		return fmt.Errorf("collector.workers must be >= 1")
	}
	switch c.Collector.EventSource {
	case "journal", "windows", "none":
	default:
		return fmt.Errorf("collector.event_source must be one of: journal, windows, none")
	}
	if s := c.Collector.SSH; s != nil && s.Host != "" {
		if s.User == "" || s.KeyPath == "" {
			return fmt.Errorf("collector.ssh: user and key_path are required when host is set")
		}
	}

	if c.Dashboard.Listen == "" {
		return fmt.Errorf("dashboard.listen is required")
	}
	if err := validateHTTPURL(c.Dashboard.StatusURL); err != nil {
		return fmt.Errorf("dashboard.status_url: %w", err)
	}
	if c.Dashboard.PollInterval.Duration <= 0 {
		return fmt.Errorf("dashboard.poll_interval must be > 0")
	}
	if c.Dashboard.Timeout.Duration <= 0 {
		return fmt.Errorf("dashboard.timeout must be > 0")
	}
	if c.Dashboard.HistorySize < 1 {
		return fmt.Errorf("dashboard.history_size must be >= 1")
	}

	for i, n := range c.Notifications {
		switch n.Type {
		case "ntfy":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for ntfy", i)
			}
			if n.Topic == "" {
				return fmt.Errorf("notifications[%d]: topic is required for ntfy", i)
			}
		case "webhook":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for webhook", i)
			}
		case "mqtt":
			if n.Broker == "" {
				return fmt.Errorf("notifications[%d]: broker is required for mqtt", i)
			}
			if n.QoS > 2 {
				return fmt.Errorf("notifications[%d]: qos must be 0, 1 or 2", i)
			}
		default:
			return fmt.Errorf("notifications[%d]: unknown type %q (expected ntfy, webhook or mqtt)", i, n.Type)
		}
	}

	if a := c.Alerts.Classification; a != nil {
		if a.MinConfidence < 0 || a.MinConfidence > 100 {
			return fmt.Errorf("alerts.classification: min_confidence must be within 0-100")
		}
		if a.Duration.Duration < 0 || a.Cooldown.Duration < 0 {
			return fmt.Errorf("alerts.classification: durations must be >= 0")
		}
	}
	for name, a := range map[string]*AlertThreshold{
		"cpu_high":         c.Alerts.CPUHigh,
		"temperature_high": c.Alerts.TemperatureHigh,
		"sectors_high":     c.Alerts.SectorsHigh,
	} {
		if a == nil {
			continue
		}
		if a.Threshold < 0 {
			return fmt.Errorf("alerts.%s: threshold must be >= 0", name)
		}
		if a.Duration.Duration < 0 || a.Cooldown.Duration < 0 {
			return fmt.Errorf("alerts.%s: durations must be >= 0", name)
		}
	}
	if a := c.Alerts.CollectorSilent; a != nil {
		if a.MaxAge.Duration < 0 || a.Cooldown.Duration < 0 {
			return fmt.Errorf("alerts.collector_silent: durations must be >= 0")
		}
	}

	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Listen:    ":5000",
			DBPath:    "./hostwatch.db",
			Retention: Duration{720 * time.Hour},
		},
		Classifier: ClassifierConfig{
			ModelPath:  "./model.json",
			LabelsPath: "./labels.json",
		},
		Collector: CollectorConfig{
			APIURL:      "http://localhost:5000",
			Interval:    Duration{20 * time.Second},
			Timeout:     Duration{15 * time.Second},
			DiskPath:    defaultDiskPath(),
			EventSource: "journal",
			Workers:     4,
		},
		Dashboard: DashboardConfig{
			Listen:       ":8050",
			StatusURL:    "http://localhost:5000/api/status",
			PollInterval: Duration{10 * time.Second},
			Timeout:      Duration{5 * time.Second},
			HistorySize:  100,
		},
	}
}

func defaultDiskPath() string {
	if filepath.Separator == '\\' {
		return `C:\`
	}
	return "/"
}

// expandEnvVars replaces ${VAR_NAME} placeholders in raw YAML with the
// corresponding environment variable values. Unset variables are replaced
// with an empty string, which will then fail validation with a clear error.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		key := string(match[2 : len(match)-1]) // strip ${ and }
		return []byte(os.Getenv(key))
	})
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				dst.Duration = d
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("HOSTWATCH_LOG_LEVEL", &cfg.LogLevel)
	setString("HOSTWATCH_LOG_FORMAT", &cfg.LogFormat)

	setString("HOSTWATCH_LISTEN", &cfg.Server.Listen)
	setString("HOSTWATCH_DB_PATH", &cfg.Server.DBPath)
	setDuration("HOSTWATCH_RETENTION", &cfg.Server.Retention)

	setString("HOSTWATCH_MODEL_PATH", &cfg.Classifier.ModelPath)
	setString("HOSTWATCH_LABELS_PATH", &cfg.Classifier.LabelsPath)
	setBool("HOSTWATCH_ALLOW_FALLBACK", &cfg.Classifier.AllowFallback)

	setString("HOSTWATCH_API_URL", &cfg.Collector.APIURL)
	setDuration("HOSTWATCH_COLLECT_INTERVAL", &cfg.Collector.Interval)
	setDuration("HOSTWATCH_PROBE_TIMEOUT", &cfg.Collector.ProbeTimeout)
	setString("HOSTWATCH_DISK_PATH", &cfg.Collector.DiskPath)
	setString("HOSTWATCH_SMART_DEVICE", &cfg.Collector.SmartDevice)
	setString("HOSTWATCH_EVENT_SOURCE", &cfg.Collector.EventSource)
	if v := os.Getenv("HOSTWATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Collector.Workers = n
		}
	}

	setString("HOSTWATCH_DASHBOARD_LISTEN", &cfg.Dashboard.Listen)
	setString("HOSTWATCH_STATUS_URL", &cfg.Dashboard.StatusURL)
	setDuration("HOSTWATCH_POLL_INTERVAL", &cfg.Dashboard.PollInterval)

	// Single ntfy target from env vars (only if no YAML notifications configured).
	if len(cfg.Notifications) == 0 {
		if ntfyURL := os.Getenv("HOSTWATCH_NTFY_URL"); ntfyURL != "" {
			topic := os.Getenv("HOSTWATCH_NTFY_TOPIC")
			if topic == "" {
				topic = "hostwatch-alerts"
			}
			cfg.Notifications = append(cfg.Notifications, NotificationConfig{
				Type:  "ntfy",
				URL:   ntfyURL,
				Topic: topic,
				Token: os.Getenv("HOSTWATCH_NTFY_TOKEN"),
			})
		}
	}
}
