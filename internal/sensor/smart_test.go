package sensor

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ataJSON = `{
	"device": {"name": "/dev/sda", "protocol": "ATA"},
	"smart_status": {"passed": true},
	"ata_smart_attributes": {"table": [
		{"id": 5, "name": "Reallocated_Sector_Ct", "value": 100, "worst": 100, "thresh": 10, "raw": {"value": 60, "string": "60"}},
		{"id": 187, "name": "Reported_Uncorrect", "value": 100, "worst": 100, "thresh": 0, "raw": {"value": 2, "string": "2"}},
		{"id": 200, "name": "Multi_Zone_Error_Rate", "value": 200, "worst": 200, "thresh": 0, "raw": {"value": 1, "string": "1"}}
	]}
}`

func TestSMARTRead(t *testing.T) {
	s := SMART{Device: "/dev/sda", Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "smartctl", name)
		assert.Equal(t, []string{"-a", "-j", "/dev/sda"}, args)
		return []byte(ataJSON), nil
	}}

	r, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), *r.ReadErrors)
	assert.Equal(t, int64(1), *r.WriteErrors)
	assert.Equal(t, int64(60), *r.ReallocatedSectors)
	assert.Nil(t, r.CPUUsage)
}

func TestSMARTRead_NonZeroExitWithOutput(t *testing.T) {
	s := SMART{Device: "/dev/sda", Run: func(context.Context, string, ...string) ([]byte, error) {
		return []byte(ataJSON), &exec.ExitError{}
	}}
	r, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(60), *r.ReallocatedSectors)
}

func TestSMARTRead_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
	}{
		{"binary missing", "", exec.ErrNotFound},
		{"exit without output", "", &exec.ExitError{}},
		{"unparseable", `{"device":{}}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SMART{Device: "/dev/sdz", Run: func(context.Context, string, ...string) ([]byte, error) {
				return []byte(tt.out), tt.err
			}}
			_, err := s.Read(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSensorUnavailable))
		})
	}
}
