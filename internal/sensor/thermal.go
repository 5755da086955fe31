package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHConfig holds SSH connection settings for remote temperature polling.
type SSHConfig struct {
	Host    string
	User    string
	KeyPath string
}

// SSHThermal reads CPU temperature by running `sensors -j` on a host over
// SSH. It serves machines whose temperature sensors are only visible to a
// hypervisor or a BMC-adjacent host.
type SSHThermal struct {
	cfg    SSHConfig
	signer ssh.Signer // parsed once at startup
}

// NewSSHThermal parses the SSH key and returns a probe for cfg.Host.
func NewSSHThermal(cfg SSHConfig) (*SSHThermal, error) {
	keyBytes, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading SSH key %s: %w", cfg.KeyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing SSH key %s: %w", cfg.KeyPath, err)
	}
	return &SSHThermal{cfg: cfg, signer: signer}, nil
}

func (t *SSHThermal) Name() string { return "ssh-thermal:" + t.cfg.Host }

func (t *SSHThermal) Read(ctx context.Context) (Readings, error) {
	out, err := t.run(ctx, "sensors -j 2>/dev/null")
	if err != nil {
		return Readings{}, Unavailable(t.Name(), err)
	}
	temp, err := parseSensorsJSON(out)
	if err != nil {
		return Readings{}, Unavailable(t.Name(), err)
	}
	return Readings{Temperature: new(temp)}, nil
}

func (t *SSHThermal) run(ctx context.Context, cmd string) ([]byte, error) {
	config := &ssh.ClientConfig{
		User:            t.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(t.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // monitored hosts on a trusted LAN
		Timeout:         10 * time.Second,
	}

	addr := t.cfg.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	// Neither the handshake nor session.Run take a context. Closing the
	// connection unblocks both.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("SSH handshake with %s: %w", addr, ctxErr)
		}
		return nil, fmt.Errorf("SSH handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("creating SSH session: %w", err)
	}
	defer session.Close()

	var stdout bytes.Buffer
	session.Stdout = &stdout
	if err := session.Run(cmd); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("running %q: %w", cmd, ctxErr)
		}
		return nil, fmt.Errorf("running %q: %w", cmd, err)
	}
	return stdout.Bytes(), nil
}

// parseSensorsJSON extracts the highest CPU temperature from `sensors -j` output.
func parseSensorsJSON(data []byte) (float64, error) {
	var chips map[string]any
	if err := json.Unmarshal(data, &chips); err != nil {
		return 0, fmt.Errorf("parsing sensors JSON: %w", err)
	}

	var maxTemp float64
	var found bool

	for chipName, chipData := range chips {
		chipMap, ok := chipData.(map[string]any)
		if !ok || !isRelevantChip(chipName) {
			continue
		}
		for _, sensorData := range chipMap {
			sensorMap, ok := sensorData.(map[string]any)
			if !ok {
				continue
			}
			for key, val := range sensorMap {
				if strings.HasPrefix(key, "temp") && strings.HasSuffix(key, "_input") {
					if temp, ok := val.(float64); ok && temp > maxTemp {
						maxTemp = temp
						found = true
					}
				}
			}
		}
	}

	if !found {
		return 0, fmt.Errorf("no CPU temperature found in sensors output")
	}
	return maxTemp, nil
}

// ACPIThermal reads the first ACPI thermal zone through WMI on Windows hosts,
// where the firmware reports decikelvin.
type ACPIThermal struct {
	Run CommandRunner
}

func (ACPIThermal) Name() string { return "acpi-thermal" }

func (a ACPIThermal) Read(ctx context.Context) (Readings, error) {
	run := a.Run
	if run == nil {
		run = ExecRunner
	}
	out, err := run(ctx, "wmic", `/namespace:\\root\wmi`, "PATH", "MSAcpi_ThermalZoneTemperature", "get", "CurrentTemperature", "/value")
	if err != nil {
		return Readings{}, Unavailable("acpi-thermal", err)
	}
	raw, err := parseWMIValue(out, "CurrentTemperature")
	if err != nil {
		return Readings{}, Unavailable("acpi-thermal", err)
	}
	return Readings{Temperature: new(DecikelvinToCelsius(raw))}, nil
}

// parseWMIValue returns the first Key=Value line for key in wmic /value output.
func parseWMIValue(out []byte, key string) (float64, error) {
	for line := range strings.SplitSeq(string(out), "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || !strings.EqualFold(k, key) {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing %s: %w", key, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%s not found in WMI output", key)
}
