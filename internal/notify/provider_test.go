package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/darshan-rambhia/hostwatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProvider struct {
	name string
	err  error
	got  []model.Notification
}

func (p *recordingProvider) Name() string { return p.name }

func (p *recordingProvider) Send(_ context.Context, n model.Notification) error {
	p.got = append(p.got, n)
	return p.err
}

func TestSendAll(t *testing.T) {
	ok := &recordingProvider{name: "ok"}
	broken := &recordingProvider{name: "broken", err: errors.New("unreachable")}
	last := &recordingProvider{name: "last"}

	err := SendAll(context.Background(), []Provider{ok, broken, last}, model.Notification{Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: unreachable")
	assert.Len(t, ok.got, 1)
	assert.Len(t, last.got, 1, "a failing provider must not block later ones")
}

func TestSendAll_NoProviders(t *testing.T) {
	assert.NoError(t, SendAll(context.Background(), nil, model.Notification{}))
}

func TestCategoryOf(t *testing.T) {
	c, ok := categoryOf(model.Notification{Metadata: map[string]string{"category": "batterie_faible"}})
	assert.True(t, ok)
	assert.Equal(t, model.CategoryLowBattery, c)

	_, ok = categoryOf(model.Notification{Metadata: map[string]string{"category": "inconnu"}})
	assert.False(t, ok)

	_, ok = categoryOf(model.Notification{})
	assert.False(t, ok)
}
