package androidtv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-androidtv/internal/adb"
	"github.com/nerrad567/gray-logic-androidtv/internal/entry"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-androidtv/internal/player"
)

// Bridge operation constants.
const (
	defaultPollInterval   = 10 * time.Second
	defaultCommandTimeout = 10 * time.Second
)

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// EntrySource lists the configured entries at start. *entry.Registry
// satisfies it.
type EntrySource interface {
	List() []*entry.Entry
}

// Telemetry receives poll and command results. *influxdb.Client satisfies it.
type Telemetry interface {
	WritePlayerState(p influxdb.PlayerPoint)
	WriteCommand(c influxdb.CommandPoint)
}

// WatchFunc streams adb server device state changes. adb.Watch bound to a
// server config satisfies it.
type WatchFunc func(ctx context.Context) (<-chan adb.StateChange, error)

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the loaded bridge configuration.
	Config *config.Config

	// Version is reported in health messages.
	Version string

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Connect holds the adb settings used to connect each entry.
	Connect entry.ConnectConfig

	// Entries is optional. When set, every entry it lists is started by Start.
	Entries EntrySource

	// Telemetry is optional.
	Telemetry Telemetry

	// Watch is optional. Device state changes reported by the adb server
	// trigger an immediate poll of the matching player.
	Watch WatchFunc

	// Logger is optional.
	Logger *logging.Logger
}

// Bridge runs a player per config entry and connects them to Core over MQTT.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg        *config.Config
	mqtt       MQTTClient
	topics     mqtt.Topics
	entries    EntrySource
	connectCfg entry.ConnectConfig
	telemetry  Telemetry
	watch      WatchFunc
	health     *HealthReporter
	logger     *logging.Logger

	pollInterval   time.Duration
	commandTimeout time.Duration

	players   map[string]*playerHandle
	stopped   bool
	playersMu sync.RWMutex

	// State cache for change detection, keyed by entry ID.
	stateCache   map[string][]byte
	stateCacheMu sync.Mutex

	listener   func(player.State)
	listenerMu sync.RWMutex

	commandsReceived atomic.Uint64
	commandsFailed   atomic.Uint64
	statesPublished  atomic.Uint64

	// Shutdown coordination
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// playerHandle is one running entry. player stays nil until the device has
// connected once.
type playerHandle struct {
	mu       sync.RWMutex
	entry    *entry.Entry
	player   *player.Player
	failures int

	poke   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *playerHandle) get() (*entry.Entry, *player.Player) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entry, h.player
}

// trigger asks the poll loop for an immediate update.
func (h *playerHandle) trigger() {
	select {
	case h.poke <- struct{}{}:
	default:
	}
}

// NewBridge creates a new bridge instance. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Connect.Logger == nil {
		opts.Connect.Logger = logger
	}

	pollInterval := opts.Config.GetPollInterval()
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	commandTimeout := opts.Config.GetCommandTimeout()
	if commandTimeout <= 0 {
		commandTimeout = defaultCommandTimeout
	}

	// Bridge-level context, cancelled on Stop to abort polls and commands.
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:            opts.Config,
		mqtt:           opts.MQTTClient,
		topics:         mqtt.Topics{Protocol: Protocol},
		entries:        opts.Entries,
		connectCfg:     opts.Connect,
		telemetry:      opts.Telemetry,
		watch:          opts.Watch,
		logger:         logger,
		pollInterval:   pollInterval,
		commandTimeout: commandTimeout,
		players:        make(map[string]*playerHandle),
		stateCache:     make(map[string][]byte),
		ctx:            ctx,
		ctxCancel:      ctxCancel,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   opts.Version,
		Interval:  opts.Config.GetHealthInterval(),
		Publisher: opts.MQTTClient,
		Stats:     b,
		Logger:    logger,
	})

	return b, nil
}

// Start subscribes to command and request topics, starts a player for every
// configured entry and begins health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Error("failed to publish starting status", "error", err)
	}

	commandTopic := b.topics.CommandSubscribe()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", commandTopic)

	requestTopic := b.topics.RequestSubscribe()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logger.Info("subscribed to requests", "topic", requestTopic)

	if b.entries != nil {
		for _, e := range b.entries.List() {
			if err := b.AddEntry(e); err != nil {
				b.logger.Error("failed to start entry", "entry_id", e.ID, "error", err)
			}
		}
	}

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logger.Error("failed to publish health", "error", err)
	}
	b.publishDiscovery()

	if b.watch != nil {
		b.wg.Add(1)
		go b.watchDevices()
	}

	b.logger.Info("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"entries", len(b.handles()))

	return nil
}

// Stop closes every player and shuts the bridge down.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.playersMu.Lock()
		b.stopped = true
		handles := make([]*playerHandle, 0, len(b.players))
		for _, h := range b.players {
			handles = append(handles, h)
		}
		b.players = make(map[string]*playerHandle)
		b.playersMu.Unlock()

		// Cancel the bridge context to abort in-flight polls and commands.
		b.ctxCancel()
		b.wg.Wait()

		for _, h := range handles {
			b.closePlayer(h)
		}

		b.health.Stop()
		b.logger.Info("bridge stopped")
	})
}

// ── Entry lifecycle ────────────────────────────────────────────────

// AddEntry starts a player for e. The device is connected in the background;
// until it answers, the entry is published as unavailable and the connection
// is retried on every poll.
func (b *Bridge) AddEntry(e *entry.Entry) error {
	b.playersMu.Lock()
	defer b.playersMu.Unlock()

	if b.stopped {
		return ErrBridgeStopped
	}
	if _, ok := b.players[e.ID]; ok {
		return fmt.Errorf("%w: %s", entry.ErrEntryExists, e.ID)
	}

	ctx, cancel := context.WithCancel(b.ctx)
	h := &playerHandle{
		entry:  e.DeepCopy(),
		poke:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	b.players[e.ID] = h

	b.wg.Add(1)
	go b.runPlayer(ctx, h)
	return nil
}

// UpdateEntry applies changed options to a running entry. A change of the
// state detection rules restarts the player; anything else is applied in
// place.
func (b *Bridge) UpdateEntry(old, updated *entry.Entry) error {
	h := b.handle(updated.ID)
	if h == nil {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, updated.ID)
	}

	if entry.NeedsReload(old.Options, updated.Options) {
		b.logger.Info("state detection rules changed, reloading", "entry_id", updated.ID)
		return b.restart(updated)
	}

	h.mu.Lock()
	h.entry = updated.DeepCopy()
	p := h.player
	h.mu.Unlock()

	if p != nil {
		p.ProcessConfig(updated.Options)
	}
	h.trigger()
	return nil
}

// ReloadEntry closes and reconnects the player of an entry.
func (b *Bridge) ReloadEntry(id string) error {
	h := b.handle(id)
	if h == nil {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	e, _ := h.get()
	return b.restart(e)
}

// RemoveEntry stops and closes the player of an entry and clears its
// retained state.
func (b *Bridge) RemoveEntry(id string) error {
	if err := b.stopEntry(id); err != nil {
		return err
	}

	b.stateCacheMu.Lock()
	delete(b.stateCache, id)
	b.stateCacheMu.Unlock()

	// An empty retained message deletes the retained state on the broker.
	if err := b.mqtt.Publish(b.topics.State(id), nil, 1, true); err != nil {
		b.logger.Error("failed to clear retained state", "entry_id", id, "error", err)
	}
	b.publishDiscovery()
	return nil
}

func (b *Bridge) restart(e *entry.Entry) error {
	if err := b.stopEntry(e.ID); err != nil {
		return err
	}
	return b.AddEntry(e)
}

func (b *Bridge) stopEntry(id string) error {
	b.playersMu.Lock()
	h, ok := b.players[id]
	delete(b.players, id)
	b.playersMu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}

	h.cancel()
	<-h.done
	b.closePlayer(h)
	return nil
}

func (b *Bridge) closePlayer(h *playerHandle) {
	e, p := h.get()
	if p == nil {
		return
	}
	if err := p.Close(); err != nil {
		b.logger.Debug("closing player", "entry_id", e.ID, "error", err)
	}
}

func (b *Bridge) handle(id string) *playerHandle {
	b.playersMu.RLock()
	defer b.playersMu.RUnlock()
	return b.players[id]
}

// handles returns the running entries ordered by entry ID.
func (b *Bridge) handles() []*playerHandle {
	b.playersMu.RLock()
	ids := make([]string, 0, len(b.players))
	for id := range b.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*playerHandle, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.players[id])
	}
	b.playersMu.RUnlock()
	return out
}

// ── Polling ────────────────────────────────────────────────────────

func (b *Bridge) runPlayer(ctx context.Context, h *playerHandle) {
	defer b.wg.Done()
	defer close(h.done)

	b.poll(ctx, h)

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-h.poke:
		}
		b.poll(ctx, h)
	}
}

// poll connects the entry if it has no player yet, then updates the player
// and publishes its state.
func (b *Bridge) poll(ctx context.Context, h *playerHandle) {
	e, p := h.get()
	if p == nil {
		if p = b.setupPlayer(ctx, h); p == nil {
			if ctx.Err() == nil {
				b.publishState(pendingState(e))
			}
			return
		}
	}

	if err := p.Update(ctx); err != nil {
		b.logger.Warn("player update failed", "entry_id", e.ID, "error", err)
	}
	if ctx.Err() != nil {
		return
	}

	st := p.State()
	b.publishState(st)
	b.writePlayerTelemetry(p, st)
}

// setupPlayer connects the device of h and creates its player. The first
// failure is logged as a warning, later ones at debug level.
func (b *Bridge) setupPlayer(ctx context.Context, h *playerHandle) *player.Player {
	e, _ := h.get()

	rules, err := e.Options.Rules()
	if err != nil {
		b.logger.Error("ignoring invalid state detection rules", "entry_id", e.ID, "error", err)
		rules = nil
	}

	conn, err := entry.Connect(ctx, e.Data, rules, b.connectCfg)
	if err != nil {
		h.mu.Lock()
		h.failures++
		first := h.failures == 1
		h.mu.Unlock()

		if first {
			b.logger.Warn("device not ready, retrying on every poll", "entry_id", e.ID, "error", err)
		} else {
			b.logger.Debug("device still not ready", "entry_id", e.ID, "error", err)
		}
		return nil
	}

	p, err := player.New(player.Config{
		EntryID:      e.ID,
		UniqueID:     e.UniqueID,
		Name:         e.Data.Name,
		Host:         e.Data.Host,
		Device:       conn.Device,
		Session:      conn.Session,
		Options:      e.Options,
		AllowedPaths: b.cfg.Bridge.AllowedPaths,
		Notifier:     notifier{b: b, entryID: e.ID},
		Logger:       b.logger,
	})
	if err != nil {
		conn.Close() //nolint:errcheck // Close never fails
		b.logger.Error("failed to create player", "entry_id", e.ID, "error", err)
		return nil
	}

	h.mu.Lock()
	h.player = p
	h.failures = 0
	h.mu.Unlock()

	b.logger.Info("player ready",
		"entry_id", e.ID,
		"name", p.Name(),
		"device_class", p.Class(),
		"model", p.DeviceInfo().Model)
	b.publishDiscovery()
	return p
}

// pendingState is the state published for an entry whose device has not
// connected yet.
func pendingState(e *entry.Entry) player.State {
	return player.State{
		EntryID:   e.ID,
		Name:      e.DisplayName(e.Data.DeviceClass),
		Available: false,
	}
}

// watchDevices pokes players whose device changed state on the adb server.
func (b *Bridge) watchDevices() {
	defer b.wg.Done()

	events, err := b.watch(b.ctx)
	if err != nil {
		b.logger.Warn("adb device watch unavailable", "error", err)
		return
	}

	for {
		select {
		case <-b.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.triggerSerial(ev)
		}
	}
}

func (b *Bridge) triggerSerial(ev adb.StateChange) {
	for _, h := range b.handles() {
		e, _ := h.get()
		if e.Data.Address() != ev.Serial {
			continue
		}
		b.logger.Debug("adb device state changed",
			"entry_id", e.ID,
			"old_state", ev.OldState,
			"new_state", ev.NewState)
		h.trigger()
	}
}

// ── State publishing ───────────────────────────────────────────────

// publishState publishes st retained when it differs from the last
// published state of the entry.
func (b *Bridge) publishState(st player.State) {
	key, err := json.Marshal(st)
	if err != nil {
		b.logger.Error("failed to marshal state", "entry_id", st.EntryID, "error", err)
		return
	}

	b.stateCacheMu.Lock()
	if bytes.Equal(b.stateCache[st.EntryID], key) {
		b.stateCacheMu.Unlock()
		return
	}
	b.stateCache[st.EntryID] = key
	b.stateCacheMu.Unlock()

	payload, err := json.Marshal(NewStateMessage(st))
	if err != nil {
		b.logger.Error("failed to marshal state message", "entry_id", st.EntryID, "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.State(st.EntryID), payload, 1, true); err != nil {
		// Forget the cached state so the next poll retries.
		b.stateCacheMu.Lock()
		delete(b.stateCache, st.EntryID)
		b.stateCacheMu.Unlock()
		b.logger.Error("failed to publish state", "entry_id", st.EntryID, "error", err)
		return
	}
	b.statesPublished.Add(1)

	b.listenerMu.RLock()
	listener := b.listener
	b.listenerMu.RUnlock()
	if listener != nil {
		listener(st)
	}
}

func (b *Bridge) writePlayerTelemetry(p *player.Player, st player.State) {
	if b.telemetry == nil {
		return
	}
	b.telemetry.WritePlayerState(influxdb.PlayerPoint{
		EntryID:        st.EntryID,
		Name:           st.Name,
		Class:          string(p.Class()),
		Available:      st.Available,
		State:          st.State,
		Source:         st.Source,
		VolumeLevel:    st.VolumeLevel,
		Muted:          st.IsVolumeMuted,
		FailedConnects: p.FailedConnectCount(),
	})
}

// publishDiscovery announces every managed player.
func (b *Bridge) publishDiscovery() {
	msg := DiscoveryMessage{
		Timestamp: time.Now().UTC(),
		Bridge:    b.cfg.Bridge.ID,
		Players:   []DiscoveredPlayer{},
	}
	for _, h := range b.handles() {
		msg.Players = append(msg.Players, describe(h))
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal discovery", "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Discovery(), payload, 1, true); err != nil {
		b.logger.Error("failed to publish discovery", "error", err)
	}
}

func describe(h *playerHandle) DiscoveredPlayer {
	e, p := h.get()
	d := DiscoveredPlayer{
		EntryID:     e.ID,
		Name:        e.DisplayName(e.Data.DeviceClass),
		Address:     e.Data.Address(),
		DeviceClass: string(e.Data.DeviceClass),
	}
	if p == nil {
		return d
	}
	info := p.DeviceInfo()
	d.Name = p.Name()
	d.DeviceClass = string(p.Class())
	d.Ready = true
	d.Device = &info
	d.Features = p.Features().Names()
	d.Commands = player.Commands()
	d.Services = player.Services()
	return d
}

// notifier publishes player notifications for one entry.
type notifier struct {
	b       *Bridge
	entryID string
}

func (n notifier) Notify(title, message string) {
	payload, err := json.Marshal(NotificationMessage{
		EntryID:   n.entryID,
		Timestamp: time.Now().UTC(),
		Title:     title,
		Message:   message,
	})
	if err != nil {
		n.b.logger.Error("failed to marshal notification", "entry_id", n.entryID, "error", err)
		return
	}
	if err := n.b.mqtt.Publish(n.b.topics.Notification(n.entryID), payload, 1, false); err != nil {
		n.b.logger.Error("failed to publish notification", "entry_id", n.entryID, "error", err)
	}
}

// ── Accessors ──────────────────────────────────────────────────────

// SetStateListener registers fn to receive every published state.
func (b *Bridge) SetStateListener(fn func(player.State)) {
	b.listenerMu.Lock()
	b.listener = fn
	b.listenerMu.Unlock()
}

// Player returns the player of an entry. It returns ErrPlayerNotReady while
// the device has not connected.
func (b *Bridge) Player(id string) (*player.Player, error) {
	h := b.handle(id)
	if h == nil {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	_, p := h.get()
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotReady, id)
	}
	return p, nil
}

// State returns the current state of an entry.
func (b *Bridge) State(id string) (player.State, error) {
	h := b.handle(id)
	if h == nil {
		return player.State{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return handleState(h), nil
}

// States returns the current state of every entry ordered by entry ID.
func (b *Bridge) States() []player.State {
	handles := b.handles()
	out := make([]player.State, 0, len(handles))
	for _, h := range handles {
		out = append(out, handleState(h))
	}
	return out
}

func handleState(h *playerHandle) player.State {
	e, p := h.get()
	if p == nil {
		return pendingState(e)
	}
	return p.State()
}

// Describe returns the discovery record of an entry.
func (b *Bridge) Describe(id string) (DiscoveredPlayer, error) {
	h := b.handle(id)
	if h == nil {
		return DiscoveredPlayer{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return describe(h), nil
}

// Players returns the discovery record of every entry ordered by entry ID.
func (b *Bridge) Players() []DiscoveredPlayer {
	handles := b.handles()
	out := make([]DiscoveredPlayer, 0, len(handles))
	for _, h := range handles {
		out = append(out, describe(h))
	}
	return out
}

// PlayerStats counts players by availability. Entries whose device has not
// connected count as unavailable.
func (b *Bridge) PlayerStats() PlayerStatistics {
	var stats PlayerStatistics
	for _, h := range b.handles() {
		stats.Total++
		if _, p := h.get(); p != nil && p.Available() {
			stats.Available++
		}
	}
	stats.Unavailable = stats.Total - stats.Available
	return stats
}

// Statistics returns the bridge counters.
func (b *Bridge) Statistics() BridgeStatistics {
	return BridgeStatistics{
		CommandsReceived: b.commandsReceived.Load(),
		CommandsFailed:   b.commandsFailed.Load(),
		StatesPublished:  b.statesPublished.Load(),
	}
}
