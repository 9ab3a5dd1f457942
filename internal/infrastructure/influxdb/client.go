package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/logging"
)

const (
	pingTimeout = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Stats counts points since Connect.
type Stats struct {
	Connected     bool   `json:"connected"`
	PointsQueued  uint64 `json:"points_queued"`
	PointsDropped uint64 `json:"points_dropped"`
	WriteErrors   uint64 `json:"write_errors"`
}

// Client queues player and command points for batched writes.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *logging.Logger

	// mu guards closed against writes racing Close.
	mu     sync.RWMutex
	closed bool

	queued  atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// Connect pings the server and opens the batched write API for the
// configured bucket. It returns ErrDisabled when telemetry is switched off.
// Asynchronous write failures are logged and counted.
func Connect(ctx context.Context, cfg config.InfluxDBConfig, logger *logging.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = logging.Discard()
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, 2*pingTimeout)
	defer cancel()
	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		logger:   logger.Component("influxdb", "bucket", cfg.Bucket),
	}
	go c.watchErrors(c.writeAPI.Errors())
	return c, nil
}

// writeOptions converts the batch settings, falling back to defaults for
// unset values.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds()))
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

func (c *Client) watchErrors(errs <-chan error) {
	for err := range errs {
		n := c.failed.Add(1)
		c.logger.Error("telemetry write failed", "error", err, "write_errors", n)
	}
}

// Close flushes queued points and closes the client. Calling it again, or
// on a zero Client, does nothing.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed || c.client == nil {
		c.closed = true
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(checkCtx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client != nil && !c.closed
}

// Flush blocks until queued points are written. It is a no-op once closed.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// Stats returns the point counters.
func (c *Client) Stats() Stats {
	return Stats{
		Connected:     c.IsConnected(),
		PointsQueued:  c.queued.Load(),
		PointsDropped: c.dropped.Load(),
		WriteErrors:   c.failed.Load(),
	}
}
