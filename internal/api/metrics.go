package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-galaxie/internal/device"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/coordinator"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string                  `json:"timestamp"`
	Version       string                  `json:"version"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Runtime       RuntimeMetrics          `json:"runtime"`
	WebSocket     WSMetrics               `json:"websocket"`
	MQTT          MQTTMetrics             `json:"mqtt"`
	Devices       DeviceMetrics           `json:"devices"`
	Snapshot      SnapshotMetrics         `json:"snapshot"`
	Feeds         []coordinator.FeedStats `json:"feeds"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// DeviceMetrics contains device registry statistics.
type DeviceMetrics struct {
	Total  int                 `json:"total"`
	ByKind map[device.Kind]int `json:"by_kind"`
}

// SnapshotMetrics describes the current snapshot.
type SnapshotMetrics struct {
	Seq             uint64    `json:"seq"`
	UpdatedAt       time.Time `json:"updated_at"`
	LiveRuns        int       `json:"live_runs"`
	StreamConnected bool      `json:"stream_connected"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := s.registry.GetStats()
	snap := s.source.Snapshot()

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount()},
		MQTT:      MQTTMetrics{Connected: s.mqtt != nil && s.mqtt.IsConnected()},
		Devices: DeviceMetrics{
			Total:  stats.TotalDevices,
			ByKind: stats.ByKind,
		},
		Snapshot: SnapshotMetrics{
			Seq:             snap.Seq,
			UpdatedAt:       snap.UpdatedAt,
			LiveRuns:        len(snap.Live),
			StreamConnected: s.source.StreamConnected(),
		},
		Feeds: nonNil(s.source.Stats()),
	}

	writeJSON(w, http.StatusOK, metrics)
}
