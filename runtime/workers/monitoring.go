package workers

import (
	"context"

	"doc-sync/observability"
)

// MonitoringWorker runs the monitoring manager's refresh loop under
// supervision.
type MonitoringWorker struct {
	monitoring *observability.MonitoringManager
}

func NewMonitoringWorker(monitoring *observability.MonitoringManager) *MonitoringWorker {
	return &MonitoringWorker{monitoring: monitoring}
}

func (w *MonitoringWorker) Run(ctx context.Context) error {
	w.monitoring.Listen(ctx)
	return nil
}
