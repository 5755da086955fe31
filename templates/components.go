package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.1001 generate

import (
	"fmt"
	"time"

	"github.com/a-h/templ"
	"github.com/darshan-rambhia/hostwatch/internal/cache"
)

// UnavailableMessage is shown in place of the status when no data can be
// displayed.
const UnavailableMessage = "Data temporarily unavailable"

// RefreshTrigger returns the htmx trigger polling the status fragment.
// Sub-second refresh periods round up to one second.
func RefreshTrigger(refresh time.Duration) string {
	return fmt.Sprintf("every %ds", max(1, int(refresh.Seconds())))
}

func unavailableDetail(snap cache.Snapshot) string {
	if snap.LastError != "" {
		return snap.LastError
	}
	return "Waiting for the first classification"
}

func barAttrs(b ProbabilityBar) templ.Attributes {
	return templ.Attributes{
		"style": fmt.Sprintf("width:%.1f%%;background-color:%s", b.Width, b.Hex),
	}
}
