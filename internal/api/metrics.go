package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-androidtv/internal/bridges/androidtv"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/mqtt"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string                     `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Runtime       RuntimeMetrics             `json:"runtime"`
	WebSocket     WSMetrics                  `json:"websocket"`
	MQTT          MQTTMetrics                `json:"mqtt"`
	Players       androidtv.PlayerStatistics `json:"players"`
	Bridge        androidtv.BridgeStatistics `json:"bridge"`
	Flows         FlowMetrics                `json:"flows"`
	Database      *DatabaseMetrics           `json:"database,omitempty"`
	Telemetry     *influxdb.Stats            `json:"telemetry,omitempty"`
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

// MQTTMetrics contains MQTT client statistics. Counters are present when
// the client reports them.
type MQTTMetrics struct {
	Connected bool        `json:"connected"`
	Counters  *mqtt.Stats `json:"counters,omitempty"`
}

// FlowMetrics counts setup and options flows in progress.
type FlowMetrics struct {
	InProgress int `json:"in_progress"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime, bridge and player metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

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
		Players:   s.players.PlayerStats(),
		Bridge:    s.players.Statistics(),
		Flows:     FlowMetrics{InProgress: s.flows.Len()},
	}

	if s.mqtt != nil {
		metrics.MQTT.Connected = s.mqtt.IsConnected()
		if st, ok := s.mqtt.(interface{ Stats() mqtt.Stats }); ok {
			counters := st.Stats()
			metrics.MQTT.Counters = &counters
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	if s.telemetry != nil {
		stats := s.telemetry.Stats()
		metrics.Telemetry = &stats
	}

	writeJSON(w, http.StatusOK, metrics)
}
