// Package notify delivers alert notifications over ntfy, webhooks and MQTT.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/darshan-rambhia/hostwatch/internal/model"
)

// Provider sends notifications through a specific channel.
type Provider interface {
	Name() string
	Send(ctx context.Context, n model.Notification) error
}

// SendAll delivers n to every provider and joins the failures. One failing
// provider does not stop delivery to the others.
func SendAll(ctx context.Context, providers []Provider, n model.Notification) error {
	var errs []error
	for _, p := range providers {
		if err := p.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// categoryOf returns the category an alert refers to, if any.
func categoryOf(n model.Notification) (model.Category, bool) {
	name, ok := n.Metadata["category"]
	if !ok {
		return model.CategoryUnknown, false
	}
	c := model.NormalizeCategory(name)
	return c, c.Valid()
}
