package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/model"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig describes an MQTT broker target.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic may contain {alert_type} and {severity} placeholders.
	Topic  string
	QoS    byte
	Retain bool
}

// MQTTProvider publishes notifications as JSON to an MQTT topic.
type MQTTProvider struct {
	client mqtt.Client
	cfg    MQTTConfig
}

// NewMQTT creates an MQTT provider. The broker connection is made on the
// first Send so an unreachable broker never blocks startup.
func NewMQTT(cfg MQTTConfig) *MQTTProvider {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		slog.Info("mqtt connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
	})
	return newMQTTWithClient(mqtt.NewClient(opts), cfg)
}

func newMQTTWithClient(c mqtt.Client, cfg MQTTConfig) *MQTTProvider {
	if cfg.Topic == "" {
		cfg.Topic = "hostwatch/alerts/{alert_type}"
	}
	return &MQTTProvider{client: c, cfg: cfg}
}

func (m *MQTTProvider) Name() string { return "mqtt" }

func (m *MQTTProvider) Send(ctx context.Context, n model.Notification) error {
	if !m.client.IsConnected() {
		if err := wait(ctx, m.client.Connect()); err != nil {
			return fmt.Errorf("mqtt: connect %s: %w", m.cfg.Broker, err)
		}
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("mqtt: marshal: %w", err)
	}

	topic := formatTopic(m.cfg.Topic, n)
	if err := wait(ctx, m.client.Publish(topic, m.cfg.QoS, m.cfg.Retain, payload)); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTTProvider) Close() {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
}

func wait(ctx context.Context, t mqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// formatTopic fills the {alert_type} and {severity} placeholders.
func formatTopic(pattern string, n model.Notification) string {
	alertType := n.AlertType
	if alertType == "" {
		alertType = "general"
	}
	severity := n.Severity
	if severity == "" {
		severity = "info"
	}
	return strings.NewReplacer("{alert_type}", alertType, "{severity}", severity).Replace(pattern)
}
