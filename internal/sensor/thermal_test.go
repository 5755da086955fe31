package sensor

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// testSSHKeyFile creates a temporary Ed25519 SSH key file for tests and returns
// its path. The key is cleaned up automatically when the test finishes.
func testSSHKeyFile(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	privPEM, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(privPEM), 0o600))
	return keyPath
}

// ---------------------------------------------------------------------------
// parseSensorsJSON
// ---------------------------------------------------------------------------

func TestParseSensorsJSON_Coretemp(t *testing.T) {
	data := []byte(`{
		"coretemp-isa-0000": {
			"Adapter": "ISA adapter",
			"Package id 0": {
				"temp1_input": 52.000,
				"temp1_max": 100.000,
				"temp1_crit": 100.000,
				"temp1_crit_alarm": 0.000
			},
			"Core 0": {
				"temp2_input": 48.000,
				"temp2_max": 100.000
			},
			"Core 1": {
				"temp3_input": 50.000,
				"temp3_max": 100.000
			}
		},
		"nvme0": {
			"Adapter": "Virtual device",
			"Composite": {
				"temp1_input": 38.000
			}
		}
	}`)

	temp, err := parseSensorsJSON(data)
	require.NoError(t, err)
	assert.InDelta(t, 52.0, temp, 0.01) // highest from coretemp
}

func TestParseSensorsJSON_K10temp(t *testing.T) {
	data := []byte(`{
		"k10temp-pci-00c3": {
			"Adapter": "PCI adapter",
			"Tctl": {
				"temp1_input": 65.500
			},
			"Tccd1": {
				"temp3_input": 61.250
			}
		}
	}`)

	temp, err := parseSensorsJSON(data)
	require.NoError(t, err)
	assert.InDelta(t, 65.5, temp, 0.01)
}

func TestParseSensorsJSON_NoCPUSensor(t *testing.T) {
	data := []byte(`{
		"nvme0": {
			"Adapter": "Virtual device",
			"Composite": {
				"temp1_input": 38.000
			}
		}
	}`)

	_, err := parseSensorsJSON(data)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no CPU temperature found")
}

func TestParseSensorsJSON_InvalidJSON(t *testing.T) {
	_, err := parseSensorsJSON([]byte(`{invalid`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing sensors JSON")
}

func TestParseSensorsJSON_EmptyOutput(t *testing.T) {
	_, err := parseSensorsJSON([]byte(`{}`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no CPU temperature found")
}

func TestParseSensorsJSON_MultipleChips(t *testing.T) {
	// Two coretemp chips, pick highest overall temp
	data := []byte(`{
		"coretemp-isa-0000": {
			"Adapter": "ISA adapter",
			"Package id 0": {
				"temp1_input": 45.000
			}
		},
		"coretemp-isa-0001": {
			"Adapter": "ISA adapter",
			"Package id 1": {
				"temp1_input": 55.000
			}
		}
	}`)

	temp, err := parseSensorsJSON(data)
	require.NoError(t, err)
	assert.InDelta(t, 55.0, temp, 0.01)
}

// ---------------------------------------------------------------------------
// isRelevantChip
// ---------------------------------------------------------------------------

func TestIsRelevantChip(t *testing.T) {
	tests := []struct {
		name     string
		chip     string
		relevant bool
	}{
		{"coretemp-isa-0000", "coretemp-isa-0000", true},
		{"k10temp-pci-00c3", "k10temp-pci-00c3", true},
		{"zenpower-pci-00c3", "zenpower-pci-00c3", true},
		{"acpitz-acpi-0", "acpitz-acpi-0", true},
		{"Package id 0", "Package id 0", true},
		{"cpu_thermal", "cpu_thermal-virtual-0", true},
		{"nvme0", "nvme0", false},
		{"iwlwifi_1", "iwlwifi_1", false},
		{"nouveau-pci-0100", "nouveau-pci-0100", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.relevant, isRelevantChip(tt.chip))
		})
	}
}

// ---------------------------------------------------------------------------
// SSHThermal
// ---------------------------------------------------------------------------

func TestNewSSHThermal_ValidKey(t *testing.T) {
	keyPath := testSSHKeyFile(t)
	p, err := NewSSHThermal(SSHConfig{Host: "192.168.1.215", User: "root", KeyPath: keyPath})
	require.NoError(t, err)

	assert.Equal(t, "ssh-thermal:192.168.1.215", p.Name())
	assert.NotNil(t, p.signer)
}

func TestNewSSHThermal_BadKeyPath(t *testing.T) {
	_, err := NewSSHThermal(SSHConfig{Host: "127.0.0.1", User: "root", KeyPath: "/nonexistent/key"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "reading SSH key")
}

func TestNewSSHThermal_InvalidKey(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "bad_key")
	require.NoError(t, os.WriteFile(tmpFile, []byte("not a valid key"), 0o600))

	_, err := NewSSHThermal(SSHConfig{Host: "127.0.0.1", User: "root", KeyPath: tmpFile})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing SSH key")
}

func TestSSHThermal_ConnectionFailureIsUnavailable(t *testing.T) {
	keyPath := testSSHKeyFile(t)
	// TEST-NET-1 is unroutable, forcing a dial error.
	p, err := NewSSHThermal(SSHConfig{Host: "192.0.2.1", User: "root", KeyPath: keyPath})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := p.Read(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSensorUnavailable))
	assert.Nil(t, r.Temperature)
}

func TestSSHThermal_SilentServerHonoursContext(t *testing.T) {
	// Accepts the TCP connection but never speaks SSH.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				_, _ = io.Copy(io.Discard, c)
				c.Close()
			}()
		}
	}()

	p, err := NewSSHThermal(SSHConfig{Host: ln.Addr().String(), User: "root", KeyPath: testSSHKeyFile(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = p.Read(ctx)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSensorUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ---------------------------------------------------------------------------
// ACPIThermal
// ---------------------------------------------------------------------------

func TestACPIThermal_ConvertsDecikelvin(t *testing.T) {
	p := ACPIThermal{Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "wmic", name)
		return []byte("\r\n\r\nCurrentTemperature=3182\r\n\r\n"), nil
	}}
	r, err := p.Read(context.Background())
	require.NoError(t, err)
	require.NotNil(t, r.Temperature)
	assert.InDelta(t, 45.0, *r.Temperature, 0.001)
}

func TestACPIThermal_Errors(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
	}{
		{"command fails", "", errors.New("wmic: not found")},
		{"no value", "Node,CurrentTemperature\n", nil},
		{"garbage value", "CurrentTemperature=hot\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ACPIThermal{Run: func(context.Context, string, ...string) ([]byte, error) {
				return []byte(tt.out), tt.err
			}}
			_, err := p.Read(context.Background())
			assert.ErrorIs(t, err, ErrSensorUnavailable)
		})
	}
}

func FuzzParseSensorsJSON(f *testing.F) {
	f.Add([]byte(`{"coretemp-isa-0000":{"Package id 0":{"temp1_input":52.0}}}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"k10temp-pci-00c3":{"Tctl":{"temp1_input":"hot"}}}`))
	f.Fuzz(func(t *testing.T, data []byte) {
		// Must not panic
		_, _ = parseSensorsJSON(data)
	})
}
