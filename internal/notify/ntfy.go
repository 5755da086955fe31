package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/model"
)

// NtfyProvider sends notifications via an ntfy server.
type NtfyProvider struct {
	url    string
	topic  string
	token  string
	click  string
	client *http.Client
}

// NtfyOption configures an NtfyProvider.
type NtfyOption func(*NtfyProvider)

// WithNtfyToken authenticates with an ntfy access token.
func WithNtfyToken(token string) NtfyOption { return func(n *NtfyProvider) { n.token = token } }

// WithNtfyClick sets the URL opened when the notification is tapped,
// usually the dashboard.
func WithNtfyClick(url string) NtfyOption { return func(n *NtfyProvider) { n.click = url } }

// NewNtfy creates a new ntfy notification provider.
func NewNtfy(url, topic string, opts ...NtfyOption) *NtfyProvider {
	n := &NtfyProvider{
		url:    strings.TrimRight(url, "/"),
		topic:  topic,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

func (n *NtfyProvider) Name() string { return "ntfy" }

func (n *NtfyProvider) Send(ctx context.Context, notif model.Notification) error {
	endpoint := fmt.Sprintf("%s/%s", n.url, n.topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(notif.Message))
	if err != nil {
		return fmt.Errorf("ntfy: build request: %w", err)
	}

	req.Header.Set("Title", notif.Title)
	req.Header.Set("Priority", severityToNtfyPriority(notif.Severity))
	req.Header.Set("Tags", ntfyTags(notif))
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	if n.click != "" {
		req.Header.Set("Click", n.click)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func severityToNtfyPriority(severity string) string {
	switch severity {
	case "critical":
		return "5"
	case "warning":
		return "3"
	case "info":
		return "2"
	default:
		return "3"
	}
}

// categoryEmoji maps categories to ntfy emoji short codes.
var categoryEmoji = map[model.Category]string{
	model.CategoryNormal:              "white_check_mark",
	model.CategoryCPUOverload:         "fire",
	model.CategoryRAMPressure:         "brain",
	model.CategoryHighTemperature:     "thermometer",
	model.CategoryBadSectors:          "floppy_disk",
	model.CategorySystemErrors:        "x",
	model.CategorySystemWarnings:      "warning",
	model.CategoryPacketLoss:          "satellite",
	model.CategoryMotherboardOverheat: "thermometer",
	model.CategoryGPUOverheat:         "thermometer",
	model.CategoryDiskEndOfLife:       "skull",
	model.CategoryLowBattery:          "battery",
}

func ntfyTags(n model.Notification) string {
	var tags []string
	switch n.Severity {
	case "critical":
		tags = append(tags, "rotating_light")
	case "warning":
		tags = append(tags, "warning")
	case "info":
		tags = append(tags, "information_source")
	}
	if c, ok := categoryOf(n); ok {
		tags = append(tags, categoryEmoji[c], c.String())
	}
	if n.AlertType != "" {
		tags = append(tags, n.AlertType)
	}
	if n.Resolved {
		tags = append(tags, "white_check_mark")
	}
	return strings.Join(tags, ",")
}
