package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(label model.Category, conf float64, ts time.Time) model.ClassificationResult {
	return model.ClassificationResult{
		Label:           label,
		Confidence:      conf,
		Probabilities:   map[model.Category]float64{label: conf},
		Recommendations: []string{"check"},
		Timestamp:       ts,
	}
}

func TestNew(t *testing.T) {
	c := New(0)
	assert.Equal(t, DefaultHistorySize, c.Capacity())

	snap := c.Snapshot()
	assert.False(t, snap.Available())
	assert.False(t, snap.Degraded())
	assert.Empty(t, snap.History)
	assert.NotNil(t, snap.History)
}

func TestUpdate(t *testing.T) {
	c := New(10)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := result(model.CategoryCPUOverload, 88, ts)
	c.Update(r, model.NewHistoryRecord(r), ts)

	snap := c.Snapshot()
	require.True(t, snap.Available())
	assert.Equal(t, model.CategoryCPUOverload, snap.Status.Label)
	require.Len(t, snap.History, 1)
	assert.Equal(t, 88.0, snap.History[0].Confidence)
	assert.Equal(t, ts, snap.LastPoll)
}

func TestHistoryCappedFIFO(t *testing.T) {
	c := New(100)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 150 {
		ts := base.Add(time.Duration(i) * 10 * time.Second)
		r := result(model.CategoryNormal, float64(i), ts)
		c.Update(r, model.NewHistoryRecord(r), ts)
	}

	snap := c.Snapshot()
	require.Len(t, snap.History, 100)
	// The 50 oldest were evicted.
	assert.Equal(t, 50.0, snap.History[0].Confidence)
	assert.Equal(t, 149.0, snap.History[99].Confidence)
	for i := 1; i < len(snap.History); i++ {
		assert.True(t, snap.History[i].Timestamp.After(snap.History[i-1].Timestamp))
	}
}

func TestRecordFailure_KeepsStatus(t *testing.T) {
	c := New(5)
	ts := time.Now()
	r := result(model.CategoryRAMPressure, 70, ts)
	c.Update(r, model.NewHistoryRecord(r), ts)

	c.RecordFailure(errors.New("connection refused"), ts.Add(10*time.Second))
	c.RecordFailure(errors.New("connection refused"), ts.Add(20*time.Second))

	snap := c.Snapshot()
	require.True(t, snap.Available())
	assert.Equal(t, model.CategoryRAMPressure, snap.Status.Label)
	assert.Len(t, snap.History, 1)
	assert.True(t, snap.Degraded())
	assert.Equal(t, 2, snap.ConsecutiveFailures)
	assert.Equal(t, "connection refused", snap.LastError)
	assert.Equal(t, ts.Add(20*time.Second), snap.LastFailure)

	// A success clears the failure state.
	c.Update(r, model.NewHistoryRecord(r), ts.Add(30*time.Second))
	snap = c.Snapshot()
	assert.False(t, snap.Degraded())
	assert.Empty(t, snap.LastError)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	c := New(5)
	r := result(model.CategoryNormal, 95, time.Now())
	c.Update(r, model.NewHistoryRecord(r), time.Now())

	snap := c.Snapshot()
	snap.Status.Probabilities[model.CategoryNormal] = 0
	snap.Status.Recommendations[0] = "mutated"
	snap.History[0].Confidence = 0

	again := c.Snapshot()
	assert.Equal(t, 95.0, again.Status.Probabilities[model.CategoryNormal])
	assert.Equal(t, "check", again.Status.Recommendations[0])
	assert.Equal(t, 95.0, again.History[0].Confidence)
}

func TestUpdateCopiesInput(t *testing.T) {
	c := New(5)
	r := result(model.CategoryNormal, 95, time.Now())
	c.Update(r, model.NewHistoryRecord(r), time.Now())
	r.Probabilities[model.CategoryNormal] = 1

	assert.Equal(t, 95.0, c.Snapshot().Status.Probabilities[model.CategoryNormal])
}

func TestConcurrentAccess(t *testing.T) {
	c := New(100)
	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 50 {
				r := result(model.CategoryFromCode((i+j)%model.CategoryCount), float64(j), time.Now())
				c.Update(r, model.NewHistoryRecord(r), time.Now())
			}
		}(i)
	}

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				snap := c.Snapshot()
				// Never observe a half-updated history.
				assert.LessOrEqual(t, len(snap.History), 100)
				if len(snap.History) > 0 {
					assert.NotNil(t, snap.Status)
				}
			}
		}()
	}

	wg.Wait()
	assert.Len(t, c.Snapshot().History, 100)
}
