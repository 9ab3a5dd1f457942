package androidtv

import (
	"context"
	"testing"
	"time"
)

// fakeStats implements StatsSource.
type fakeStats struct {
	players PlayerStatistics
	stats   BridgeStatistics
}

func (f fakeStats) PlayerStats() PlayerStatistics { return f.players }
func (f fakeStats) Statistics() BridgeStatistics  { return f.stats }

func TestNewHealthReporter_DefaultInterval(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{BridgeID: "atv"})
	if h.interval != defaultHealthInterval {
		t.Errorf("interval = %v, want %v", h.interval, defaultHealthInterval)
	}
	if h.topic != "graylogic/health/androidtv" {
		t.Errorf("topic = %q", h.topic)
	}
}

func TestHealthReporter_DetermineStatus(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		players    PlayerStatistics
		wantStatus HealthStatus
		wantReason string
	}{
		{"mqtt down", false, PlayerStatistics{Total: 1, Available: 1}, HealthDegraded, "MQTT disconnected"},
		{"no entries", true, PlayerStatistics{}, HealthHealthy, ""},
		{"all available", true, PlayerStatistics{Total: 2, Available: 2}, HealthHealthy, ""},
		{"some unavailable", true, PlayerStatistics{Total: 3, Available: 2, Unavailable: 1}, HealthDegraded, "1 of 3 players unavailable"},
		{"none available", true, PlayerStatistics{Total: 2, Unavailable: 2}, HealthUnhealthy, "no players available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mqtt := NewMockMQTTClient()
			mqtt.setConnected(tt.connected)
			h := NewHealthReporter(HealthReporterConfig{
				BridgeID:  "atv",
				Publisher: mqtt,
				Stats:     fakeStats{players: tt.players},
			})

			status, reason := h.determineStatus()
			if status != tt.wantStatus || reason != tt.wantReason {
				t.Errorf("determineStatus() = %q, %q; want %q, %q", status, reason, tt.wantStatus, tt.wantReason)
			}
		})
	}
}

func TestHealthReporter_PublishNow(t *testing.T) {
	mqtt := NewMockMQTTClient()
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "androidtv-bridge-01",
		Version:   "1.2.3",
		Publisher: mqtt,
		Stats: fakeStats{
			players: PlayerStatistics{Total: 2, Available: 1, Unavailable: 1},
			stats:   BridgeStatistics{CommandsReceived: 7, CommandsFailed: 2, StatesPublished: 40},
		},
	})

	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}

	msgs := mqtt.on("graylogic/health/androidtv")
	if len(msgs) != 1 || !msgs[0].Retained || msgs[0].QoS != 1 {
		t.Fatalf("health publishes = %+v", msgs)
	}
	msg := decode[HealthMessage](t, msgs[0].Payload)
	if msg.Bridge != "androidtv-bridge-01" || msg.Version != "1.2.3" || msg.Status != HealthDegraded {
		t.Errorf("health = %+v", msg)
	}
	if msg.DevicesManaged != 2 || msg.Players.Unavailable != 1 {
		t.Errorf("players = %+v, devices_managed = %d", msg.Players, msg.DevicesManaged)
	}
	if msg.Statistics.CommandsReceived != 7 || msg.Statistics.StatesPublished != 40 {
		t.Errorf("statistics = %+v", msg.Statistics)
	}
}

func TestHealthReporter_StartStop(t *testing.T) {
	mqtt := NewMockMQTTClient()
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "atv",
		Interval:  10 * time.Millisecond,
		Publisher: mqtt,
	})

	if err := h.PublishStarting(); err != nil {
		t.Fatalf("PublishStarting() error = %v", err)
	}
	h.Start(context.Background())
	waitFor(t, "periodic health", func() bool {
		return len(mqtt.on("graylogic/health/androidtv")) >= 3
	})
	h.Stop()
	h.Stop()

	msgs := mqtt.on("graylogic/health/androidtv")
	if first := decode[HealthMessage](t, msgs[0].Payload); first.Status != HealthStarting || first.Reason != "bridge starting" {
		t.Errorf("first = %+v, want starting", first)
	}
	if last := decode[HealthMessage](t, msgs[len(msgs)-1].Payload); last.Status != HealthStopping {
		t.Errorf("last = %+v, want stopping", last)
	}
}

func TestHealthReporter_NoPublisher(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{BridgeID: "atv"})
	if err := h.PublishNow(); err != nil {
		t.Errorf("PublishNow() without publisher error = %v", err)
	}
}

func TestWill(t *testing.T) {
	will, err := Will("androidtv-bridge-01")
	if err != nil {
		t.Fatalf("Will() error = %v", err)
	}
	if will.Topic != "graylogic/health/androidtv" {
		t.Errorf("topic = %q", will.Topic)
	}
	msg := decode[HealthMessage](t, will.Payload)
	if msg.Status != HealthOffline || msg.Bridge != "androidtv-bridge-01" || msg.Reason != "unexpected_disconnect" {
		t.Errorf("lwt = %+v", msg)
	}
}

func TestNewAckError_TimeoutStatus(t *testing.T) {
	cmd := CommandMessage{ID: "c1", EntryID: "e1", Command: "play"}

	if ack := NewAckError(cmd, ErrCodeTimeout, "slow"); ack.Status != AckTimeout {
		t.Errorf("status = %q, want timeout", ack.Status)
	}
	ack := NewAckError(cmd, ErrCodeInvalidCommand, "nope")
	if ack.Status != AckFailed || ack.Protocol != Protocol || ack.CommandID != "c1" || ack.EntryID != "e1" {
		t.Errorf("ack = %+v", ack)
	}
}

func TestCommandMessage_Name(t *testing.T) {
	if got := (CommandMessage{Command: "play"}).Name(); got != "play" {
		t.Errorf("Name() = %q", got)
	}
	if got := (CommandMessage{Command: "play", Service: "adb_command"}).Name(); got != "adb_command" {
		t.Errorf("Name() = %q, service should win", got)
	}
}
