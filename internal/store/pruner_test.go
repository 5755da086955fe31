package store

import (
	"context"
	"testing"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRetention(t *testing.T) {
	r := DefaultRetention()
	assert.Equal(t, 30*24*time.Hour, r.Predictions)
	assert.Equal(t, 30*24*time.Hour, r.AlertLog)
}

func TestNewPruner(t *testing.T) {
	s := newTestStore(t)
	r := DefaultRetention()
	p := NewPruner(s, r)

	assert.NotNil(t, p)
	assert.Equal(t, s, p.store)
	assert.Equal(t, r, p.retention)
	assert.Equal(t, 1*time.Hour, p.interval)
}

func TestPrunerRun_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	p := NewPruner(s, DefaultRetention())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrune_DeletesOldData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	old := now.Add(-31 * 24 * time.Hour)

	require.NoError(t, s.InsertPrediction(ctx, prediction("old", model.CategoryNormal, old)))
	require.NoError(t, s.InsertPrediction(ctx, prediction("new", model.CategoryNormal, now)))
	require.NoError(t, s.InsertAlert(ctx, model.Notification{AlertType: "a", Subject: "s", Message: "old", Severity: "info", Timestamp: old}))
	require.NoError(t, s.InsertAlert(ctx, model.Notification{AlertType: "a", Subject: "s", Message: "new", Severity: "info", Timestamp: now}))

	p := NewPruner(s, DefaultRetention())
	p.prune(ctx, now)

	preds, err := s.RecentPredictions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "new", preds[0].ID)

	alerts, err := s.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "new", alerts[0].Message)
}

func TestPrune_ZeroRetentionKeepsEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertPrediction(ctx, prediction("ancient", model.CategoryNormal, time.Unix(0, 0))))

	p := NewPruner(s, RetentionConfig{})
	p.prune(ctx, time.Now())

	preds, err := s.RecentPredictions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, preds, 1)
}

func TestPrune_ClosedStoreLogsAndContinues(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	p := NewPruner(s, DefaultRetention())
	assert.NotPanics(t, func() { p.prune(context.Background(), time.Now()) })
}
