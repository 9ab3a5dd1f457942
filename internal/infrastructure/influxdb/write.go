package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementPlayer  = "androidtv_player"
	MeasurementCommand = "androidtv_command"
)

// PlayerPoint is one poll result of a player.
type PlayerPoint struct {
	EntryID string
	Name    string
	Class   string

	Available   bool
	State       string
	Source      string
	VolumeLevel *float64
	Muted       *bool

	// FailedConnects is the number of consecutive failed reconnects.
	FailedConnects int
}

// CommandPoint is the outcome of one hub command.
type CommandPoint struct {
	EntryID  string
	Command  string
	Status   string
	Duration time.Duration
}

// NewPlayerPoint builds the line-protocol point for p at ts.
func NewPlayerPoint(p PlayerPoint, ts time.Time) *write.Point {
	fields := map[string]any{
		"available":       p.Available,
		"failed_connects": p.FailedConnects,
	}
	if p.State != "" {
		fields["state"] = p.State
	}
	if p.Source != "" {
		fields["source"] = p.Source
	}
	if p.VolumeLevel != nil {
		fields["volume_level"] = *p.VolumeLevel
	}
	if p.Muted != nil {
		fields["muted"] = *p.Muted
	}

	tags := map[string]string{"entry_id": p.EntryID}
	if p.Name != "" {
		tags["name"] = p.Name
	}
	if p.Class != "" {
		tags["device_class"] = p.Class
	}

	return write.NewPoint(MeasurementPlayer, tags, fields, ts)
}

// NewCommandPoint builds the line-protocol point for c at ts.
func NewCommandPoint(c CommandPoint, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementCommand,
		map[string]string{
			"entry_id": c.EntryID,
			"command":  c.Command,
			"status":   c.Status,
		},
		map[string]any{
			"duration_ms": float64(c.Duration) / float64(time.Millisecond),
		},
		ts,
	)
}

// WritePlayerState queues a player point stamped now.
func (c *Client) WritePlayerState(p PlayerPoint) {
	c.queue(NewPlayerPoint(p, time.Now()))
}

// WriteCommand queues a command point stamped now.
func (c *Client) WriteCommand(cmd CommandPoint) {
	c.queue(NewCommandPoint(cmd, time.Now()))
}

// queue hands pt to the batch writer. Points written after Close are
// counted as dropped.
func (c *Client) queue(pt *write.Point) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil || c.closed {
		c.dropped.Add(1)
		return
	}
	c.writeAPI.WritePoint(pt)
	c.queued.Add(1)
}
