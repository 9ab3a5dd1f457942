package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client uses.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

// Will is the message the broker publishes when the bridge disconnects
// without closing the connection.
type Will struct {
	Topic   string
	Payload []byte
}

// MessageHandler receives one message. Handlers run on paho's goroutines and
// should return quickly. A returned error is logged.
type MessageHandler = func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Stats counts broker events since the client was created.
type Stats struct {
	Connected      bool   `json:"connected"`
	Connects       uint64 `json:"connects"`
	ConnectionLost uint64 `json:"connection_lost"`
	Received       uint64 `json:"messages_received"`
	HandlerErrors  uint64 `json:"handler_errors"`
}

// Client is the bridge's connection to the MQTT broker.
//
// Thread Safety: All methods are safe for concurrent use. Subscriptions are
// restored automatically after a reconnect.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	// mu guards the connection flag, callbacks and logger.
	mu           sync.RWMutex
	connected    bool
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger

	connects      atomic.Uint64
	lost          atomic.Uint64
	received      atomic.Uint64
	handlerErrors atomic.Uint64
}

// Connect opens the broker connection. will may be nil.
//
// Connect fails with ErrConnectionFailed when the broker cannot be reached
// within the connect timeout or before ctx ends.
func Connect(ctx context.Context, cfg config.MQTTConfig, will *Will) (*Client, error) {
	c := newClient(cfg, will)

	waitCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-waitCtx.Done():
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, waitCtx.Err())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs asynchronously; mark connected now so
	// IsConnected is true as soon as Connect returns.
	c.setConnected(true)
	return c, nil
}

// newClient builds a Client without connecting it.
func newClient(cfg config.MQTTConfig, will *Will) *Client {
	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	if will != nil && will.Topic != "" {
		opts.SetBinaryWill(will.Topic, will.Payload, 1, true)
	}
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log(func(l Logger) { l.Info("reconnecting to MQTT broker", "broker", BrokerURL(cfg)) })
	})

	c.options = opts
	c.client = pahomqtt.NewClient(opts)
	return c
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// log runs fn with the logger when one is set.
func (c *Client) log(fn func(Logger)) {
	c.mu.RLock()
	logger := c.logger
	c.mu.RUnlock()
	if logger != nil {
		fn(logger)
	}
}

func (c *Client) handleConnect() {
	c.connects.Add(1)

	c.mu.Lock()
	c.connected = true
	callback := c.onConnect
	c.mu.Unlock()

	c.resubscribe()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.lost.Add(1)

	c.mu.Lock()
	c.connected = false
	callback := c.onDisconnect
	c.mu.Unlock()

	c.log(func(l Logger) { l.Warn("MQTT connection lost", "error", err) })
	if callback != nil {
		callback(err)
	}
}

// resubscribe replays tracked subscriptions after a reconnect. Failures are
// logged; the next reconnect tries again.
func (c *Client) resubscribe() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for topic, sub := range c.subscriptions {
		token := c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
		go func(topic string) {
			if token.WaitTimeout(defaultPublishTimeout) && token.Error() != nil {
				c.log(func(l Logger) { l.Warn("resubscribe failed", "topic", topic, "error", token.Error()) })
			}
		}(topic)
	}
}

// Close disconnects from the broker after letting pending publishes finish.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)
	return nil
}

// HealthCheck reports ErrNotConnected when the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// Stats returns the connection and message counters.
func (c *Client) Stats() Stats {
	return Stats{
		Connected:      c.IsConnected(),
		Connects:       c.connects.Load(),
		ConnectionLost: c.lost.Load(),
		Received:       c.received.Load(),
		HandlerErrors:  c.handlerErrors.Load(),
	}
}

// SetOnConnect sets a callback run on the initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback run when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger sets the logger for connection events and handler failures.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(handler, msg.Topic(), msg.Payload())
	}
}

// dispatch runs handler for one message. A panic in the handler is
// recovered and counted as a handler error.
func (c *Client) dispatch(handler MessageHandler, topic string, payload []byte) {
	c.received.Add(1)
	defer func() {
		if r := recover(); r != nil {
			c.handlerErrors.Add(1)
			c.log(func(l Logger) { l.Error("MQTT handler panic recovered", "topic", topic, "panic", r) })
		}
	}()

	if err := handler(topic, payload); err != nil {
		c.handlerErrors.Add(1)
		c.log(func(l Logger) { l.Warn("MQTT handler returned error", "topic", topic, "error", err) })
	}
}
