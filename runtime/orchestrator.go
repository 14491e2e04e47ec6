// Package runtime handles session bookkeeping and event propagation.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"doc-sync/contract"
	"doc-sync/domain/event"
	"doc-sync/observability"
	"doc-sync/runtime/workers"
)

// Orchestrator owns the event channel and the supervised worker set.
// Connection handlers hand it domain events through Dispatch; the broadcast
// worker drains the channel and routes them.
type Orchestrator struct {
	mu              sync.Mutex
	log             *slog.Logger
	supervisor      contract.ISupervisor
	registry        contract.IRegistry
	monitor         *observability.MonitoringManager
	permanentSinks  []contract.EventSink
	extraWorkers    []contract.Worker
	domainEvents    chan event.DomainEvent
	deliveryTimeout time.Duration
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IRegistry, monitor *observability.MonitoringManager,
	bufferSize int, deliveryTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:             log,
		supervisor:      supervisor,
		registry:        registry,
		monitor:         monitor,
		domainEvents:    make(chan event.DomainEvent, bufferSize),
		deliveryTimeout: deliveryTimeout,
	}
}

// RegisterSinks adds permanent sinks receiving every dispatched event.
// Must be called before Start.
func (o *Orchestrator) RegisterSinks(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// AddWorker registers extra supervised workers (heartbeat, monitoring).
// Must be called before Start.
func (o *Orchestrator) AddWorker(w ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.extraWorkers = append(o.extraWorkers, w...)
}

// Dispatch hands an event to the routing pipeline without blocking the
// caller. A full channel drops the event: content is persisted before it is
// dispatched, so a lost event is stale state for the recipients and a gap in
// the telemetry, never a lost write.
func (o *Orchestrator) Dispatch(e event.DomainEvent) {
	select {
	case o.domainEvents <- e:
	default:
		o.log.Warn(fmt.Sprintf("Domain event channel full for document %s, dropping event", e.DocumentID()))
	}
}

// Start prepares the broadcast pipeline and runs the supervisor.
// It blocks until the context is canceled and every worker has stopped.
func (o *Orchestrator) Start(ctx context.Context) error {
	// 1. Preparation phase (No Lock)
	o.mu.Lock()
	sinks := append([]contract.EventSink(nil), o.permanentSinks...)
	extra := append([]contract.Worker(nil), o.extraWorkers...)
	o.mu.Unlock()

	broadcastWorker := workers.NewBroadcastWorker(
		o.log,
		o.domainEvents,
		o.registry,
		o.monitor,
		o.deliveryTimeout,
	).Add(sinks...)

	// 2. Critical section (Short Lock): register everything with the supervisor.
	o.supervisor.Add(broadcastWorker)
	for _, w := range extra {
		o.supervisor.Add(w)
	}

	// 3. Execution phase (No Lock)
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// Stop initiates a graceful shutdown of the orchestrator.
// It cancels the supervision context to signal workers to stop.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
