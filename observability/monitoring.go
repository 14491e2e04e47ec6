package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// RecentUpdateInfo is one applied content update, kept for the debug UI.
type RecentUpdateInfo struct {
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
	Size       int    `json:"size"`
	Language   string `json:"language"`
	Timestamp  string `json:"timestamp"`
}

// MonitoringStats aggregates the service metrics.
type MonitoringStats struct {
	ActiveSessions     int     `json:"active_sessions"`
	ActiveParticipants int     `json:"active_participants"`
	UpdateThroughput   float64 `json:"update_throughput"` // updates/s over the last tick

	UpdatesApplied      uint64 `json:"updates_applied"`
	BroadcastsDelivered uint64 `json:"broadcasts_delivered"`
	DeliveryFailures    uint64 `json:"delivery_failures"`
	AuthFailures        uint64 `json:"auth_failures"`

	AllocMemMb    uint64             `json:"alloc_mem_mb"`
	NumGC         uint32             `json:"num_gc"`
	Languages     map[string]uint64  `json:"languages"`
	RecentUpdates []RecentUpdateInfo `json:"recent_updates"`
}

// OccupancyProvider reports how many live sessions and participants exist.
// The registry implements it.
type OccupancyProvider interface {
	SessionCount() int
	ParticipantCount() int
}

// MonitoringManager gathers real-time telemetry.
type MonitoringManager struct {
	log         *slog.Logger
	occupancy   OccupancyProvider
	mu          sync.RWMutex
	latestStats MonitoringStats
	languages   map[string]uint64

	// Atomic counters, read and folded into latestStats every tick
	UpdatesApplied      uint64
	UpdatesSinceTick    uint64
	BroadcastsDelivered uint64
	DeliveryFailures    uint64
	AuthFailures        uint64
	LastCheck           time.Time
}

func NewMonitoringManager(log *slog.Logger, occupancy OccupancyProvider) *MonitoringManager {
	return &MonitoringManager{
		log:       log,
		occupancy: occupancy,
		LastCheck: time.Now(),
		languages: make(map[string]uint64),
		latestStats: MonitoringStats{
			Languages:     make(map[string]uint64),
			RecentUpdates: make([]RecentUpdateInfo, 0),
		},
	}
}

func (mm *MonitoringManager) IncrUpdatesApplied() {
	atomic.AddUint64(&mm.UpdatesApplied, 1)
	atomic.AddUint64(&mm.UpdatesSinceTick, 1)
}

func (mm *MonitoringManager) IncrBroadcastsDelivered() {
	atomic.AddUint64(&mm.BroadcastsDelivered, 1)
}

func (mm *MonitoringManager) IncrDeliveryFailures() {
	atomic.AddUint64(&mm.DeliveryFailures, 1)
}

func (mm *MonitoringManager) IncrAuthFailures() {
	atomic.AddUint64(&mm.AuthFailures, 1)
}

// RecordLanguage counts one update written in the given language.
func (mm *MonitoringManager) RecordLanguage(lang string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.languages[lang]++
}

// AddUpdate records one applied content update (thread-safe).
func (mm *MonitoringManager) AddUpdate(documentID, userID, language string, size int) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	update := RecentUpdateInfo{
		DocumentID: documentID,
		UserID:     userID,
		Size:       size,
		Language:   language,
		Timestamp:  time.Now().Format("15:04:05"),
	}

	// Newest first, keep the last 20
	mm.latestStats.RecentUpdates = append([]RecentUpdateInfo{update}, mm.latestStats.RecentUpdates...)
	if len(mm.latestStats.RecentUpdates) > 20 {
		mm.latestStats.RecentUpdates = mm.latestStats.RecentUpdates[:20]
	}
}

// Listen refreshes the aggregated stats once per second until ctx is done.
func (mm *MonitoringManager) Listen(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mm.log.Info("Monitoring manager stopped")
			return
		case <-ticker.C:
			mm.updateStats()
		}
	}
}

func (mm *MonitoringManager) updateStats() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	duration := now.Sub(mm.LastCheck).Seconds()
	if duration > 0 {
		sinceTick := atomic.SwapUint64(&mm.UpdatesSinceTick, 0)
		mm.latestStats.UpdateThroughput = float64(sinceTick) / duration
	}
	mm.LastCheck = now

	mm.latestStats.UpdatesApplied = atomic.LoadUint64(&mm.UpdatesApplied)
	mm.latestStats.BroadcastsDelivered = atomic.LoadUint64(&mm.BroadcastsDelivered)
	mm.latestStats.DeliveryFailures = atomic.LoadUint64(&mm.DeliveryFailures)
	mm.latestStats.AuthFailures = atomic.LoadUint64(&mm.AuthFailures)

	if mm.occupancy != nil {
		mm.latestStats.ActiveSessions = mm.occupancy.SessionCount()
		mm.latestStats.ActiveParticipants = mm.occupancy.ParticipantCount()
	}

	languages := make(map[string]uint64, len(mm.languages))
	for lang, count := range mm.languages {
		languages[lang] = count
	}
	mm.latestStats.Languages = languages

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC

	mm.log.Debug("Stats refreshed",
		"sessions", mm.latestStats.ActiveSessions,
		"participants", mm.latestStats.ActiveParticipants,
		"throughput", mm.latestStats.UpdateThroughput,
		"mem_mb", mm.latestStats.AllocMemMb,
	)
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}
