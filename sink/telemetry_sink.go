// Package sink holds the permanent event consumers fed by the fan-out.
package sink

import (
	"context"

	"github.com/abadojack/whatlanggo"

	"doc-sync/domain/event"
	"doc-sync/observability"
)

// TelemetrySink feeds the monitoring counters from the event stream. It
// detects the language of every applied update, which the debug UI surfaces
// alongside the throughput numbers.
type TelemetrySink struct {
	monitoring *observability.MonitoringManager
}

func NewTelemetrySink(monitoring *observability.MonitoringManager) *TelemetrySink {
	return &TelemetrySink{monitoring: monitoring}
}

func (t *TelemetrySink) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.ContentUpdated)
	if !ok {
		return nil
	}

	info := whatlanggo.Detect(evt.Content)
	langCode := info.Lang.Iso6391()
	if langCode == "" {
		langCode = "unknown"
	}

	t.monitoring.IncrUpdatesApplied()
	t.monitoring.RecordLanguage(langCode)
	t.monitoring.AddUpdate(evt.Document.String(), evt.Origin.UserID.String(), langCode, len(evt.Content))
	return nil
}
