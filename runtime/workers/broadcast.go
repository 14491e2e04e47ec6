package workers

import (
	"context"
	"log/slog"
	"time"

	"doc-sync/contract"
	"doc-sync/domain/event"
	"doc-sync/observability"
)

const defaultDeliveryTimeout = 2 * time.Second

// BroadcastWorker routes domain events to the interested parties.
//
// Content updates are fanned out to every live participant of the document's
// session except the origin, against a snapshot of the sink list taken from
// the registry, so no session lock is held during delivery. Every event also
// reaches the permanent sinks (persistence, telemetry).
//
// Delivery is best-effort: a slow or dead recipient is logged and skipped,
// never surfaced to the sender, and never stops the fan-out.
type BroadcastWorker struct {
	Log             *slog.Logger
	DomainEvent     chan event.DomainEvent
	registry        contract.IRegistry
	monitor         *observability.MonitoringManager
	deliveryTimeout time.Duration
	sinks           []contract.EventSink
}

func NewBroadcastWorker(log *slog.Logger, domainEvent chan event.DomainEvent,
	registry contract.IRegistry, monitor *observability.MonitoringManager,
	deliveryTimeout time.Duration) *BroadcastWorker {
	if deliveryTimeout <= 0 {
		deliveryTimeout = defaultDeliveryTimeout
	}
	return &BroadcastWorker{
		Log:             log,
		DomainEvent:     domainEvent,
		registry:        registry,
		monitor:         monitor,
		deliveryTimeout: deliveryTimeout,
	}
}

// Add registers permanent sinks receiving every event.
func (w *BroadcastWorker) Add(sinks ...contract.EventSink) *BroadcastWorker {
	w.sinks = append(w.sinks, sinks...)
	return w
}

func (w *BroadcastWorker) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.DomainEvent:
			w.route(ctx, evt)
			w.fanout(ctx, evt)
		case <-ctx.Done():
			w.Log.Debug("Context done, stopping broadcast routing")
			return nil
		}
	}
}

// route delivers a content update to the other participants of its session.
func (w *BroadcastWorker) route(ctx context.Context, evt event.DomainEvent) {
	updated, ok := evt.(event.ContentUpdated)
	if !ok {
		return
	}

	sinks := w.registry.SinksForDocument(updated.Document, updated.Origin.ID)
	for _, sink := range sinks {
		if err := w.deliver(ctx, sink, updated); err != nil {
			w.Log.Warn("Broadcast delivery failed",
				"document_id", updated.Document, "error", err)
			if w.monitor != nil {
				w.monitor.IncrDeliveryFailures()
			}
			continue
		}
		if w.monitor != nil {
			w.monitor.IncrBroadcastsDelivered()
		}
	}
}

func (w *BroadcastWorker) deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) error {
	deliveryCtx, cancel := context.WithTimeout(ctx, w.deliveryTimeout)
	defer cancel()
	return sink.Consume(deliveryCtx, evt)
}

// fanout One permanent sink for each event
func (w *BroadcastWorker) fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		if err := w.deliver(ctx, sink, evt); err != nil {
			w.Log.Warn("Sink rejected event", "error", err)
		}
	}
}
