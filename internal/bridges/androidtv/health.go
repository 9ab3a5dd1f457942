package androidtv

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/mqtt"
)

const defaultHealthInterval = 30 * time.Second

// HealthPublisher publishes health messages. *mqtt.Client satisfies it.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// StatsSource reports player availability and bridge counters.
type StatsSource interface {
	PlayerStats() PlayerStatistics
	Statistics() BridgeStatistics
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string

	// Interval is how often to publish health status. Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher
	Stats     StatsSource
	Logger    *logging.Logger
}

// HealthReporter publishes the bridge's health on an interval.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	stats     StatsSource
	topic     string
	logger    *logging.Logger

	// stopOnce prevents a double close of done.
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates a health reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		stats:     cfg.Stats,
		topic:     mqtt.Topics{Protocol: Protocol}.Health(),
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Error("failed to publish health", "error", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	players := h.playerStats()
	switch {
	case players.Total == 0:
		return HealthHealthy, ""
	case players.Available == 0:
		return HealthUnhealthy, "no players available"
	case players.Unavailable > 0:
		return HealthDegraded, fmt.Sprintf("%d of %d players unavailable", players.Unavailable, players.Total)
	default:
		return HealthHealthy, ""
	}
}

func (h *HealthReporter) playerStats() PlayerStatistics {
	if h.stats == nil {
		return PlayerStatistics{}
	}
	return h.stats.PlayerStats()
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	var stats BridgeStatistics
	if h.stats != nil {
		stats = h.stats.Statistics()
	}

	msg := NewHealthMessage(h.bridgeID, h.version, status, h.playerStats(), stats, h.startTime)
	msg.Reason = reason

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.publisher.Publish(h.topic, payload, 1, true)
}

// Will returns the Last Will the MQTT client should register so Core sees the
// bridge go offline if it disconnects without Stop.
func Will(bridgeID string) (*mqtt.Will, error) {
	payload, err := json.Marshal(NewLWTMessage(bridgeID))
	if err != nil {
		return nil, err
	}
	return &mqtt.Will{
		Topic:   mqtt.Topics{Protocol: Protocol}.Health(),
		Payload: payload,
	}, nil
}
