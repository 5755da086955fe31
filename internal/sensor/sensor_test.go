package sensor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnavailableError(t *testing.T) {
	cause := errors.New("permission denied")
	err := Unavailable("smart:/dev/sda", cause)

	assert.ErrorIs(t, err, ErrSensorUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "smart:/dev/sda")

	var ue *UnavailableError
	require.ErrorAs(t, fmt.Errorf("tick: %w", err), &ue)
	assert.Equal(t, "smart:/dev/sda", ue.Sensor)
}

func TestReadingsMerge_FirstWins(t *testing.T) {
	var r Readings
	r.Merge(Readings{CPUUsage: new(12.5), Temperature: new(40.0)})
	r.Merge(Readings{Temperature: new(70.0), RAMUsage: new(33.0)})

	require.NotNil(t, r.CPUUsage)
	require.NotNil(t, r.Temperature)
	require.NotNil(t, r.RAMUsage)
	assert.Equal(t, 12.5, *r.CPUUsage)
	assert.Equal(t, 40.0, *r.Temperature)
	assert.Equal(t, 33.0, *r.RAMUsage)
	assert.Nil(t, r.DiskUsage)
	assert.Nil(t, r.EventLevel)
}

func TestReadingsMerge_Copies(t *testing.T) {
	src := Readings{ReadErrors: new(int64(3))}
	var r Readings
	r.Merge(src)
	*src.ReadErrors = 99
	assert.Equal(t, int64(3), *r.ReadErrors)
}

func TestDecikelvinToCelsius(t *testing.T) {
	assert.InDelta(t, 0.0, DecikelvinToCelsius(2732), 1e-9)
	assert.InDelta(t, 45.0, DecikelvinToCelsius(3182), 1e-9)
	assert.InDelta(t, -10.0, DecikelvinToCelsius(2632), 1e-9)
}

func TestStatic(t *testing.T) {
	s := Static{Readings: Readings{CPUUsage: new(96.0)}}
	assert.Equal(t, "static", s.Name())
	r, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 96.0, *r.CPUUsage)

	failing := Static{Label: "broken", Err: errors.New("boom")}
	_, err = failing.Read(context.Background())
	assert.ErrorIs(t, err, ErrSensorUnavailable)
	assert.Equal(t, "broken", failing.Name())
}

func TestIsRelevantChip_CaseInsensitive(t *testing.T) {
	assert.True(t, isRelevantChip("CoreTemp"))
	assert.True(t, isRelevantChip("CPU"))
	assert.False(t, isRelevantChip("nvme_composite"))
}
