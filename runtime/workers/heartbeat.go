package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"doc-sync/observability"
)

type HeartbeatWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	interval   time.Duration
}

func NewHeartbeatWorker(
	log *slog.Logger,
	monitoring *observability.MonitoringManager,
	interval time.Duration,
) *HeartbeatWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &HeartbeatWorker{
		log:        log,
		monitoring: monitoring,
		interval:   interval,
	}
}

// Run executes the main loop of the worker, logging health metrics (CPU, RAM, Status)
// alongside the service counters at every tick.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			localStats := w.monitoring.GetLatest()
			w.log.Info("Heartbeat",
				"pid", os.Getpid(),
				"pid_status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
				"sessions", localStats.ActiveSessions,
				"participants", localStats.ActiveParticipants,
				"updates_applied", localStats.UpdatesApplied,
				"delivery_failures", localStats.DeliveryFailures,
			)
		}
	}
}

// getSelfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
