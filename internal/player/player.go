package player

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/nerrad567/gray-logic-androidtv/internal/adb"
	"github.com/nerrad567/gray-logic-androidtv/internal/androidtv"
	"github.com/nerrad567/gray-logic-androidtv/internal/entry"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/logging"
)

// Session is the adb link a Player reconnects and closes.
type Session interface {
	// Connect opens the link, logging a failure only when logErrors is set.
	Connect(ctx context.Context, logErrors bool) bool

	// Close drops the link.
	Close() error
}

// Notifier raises a user-visible notification.
type Notifier interface {
	Notify(title, message string)
}

// Config holds everything needed to create a Player.
type Config struct {
	EntryID  string
	UniqueID string

	// Name is the entity name. Empty means "{Android TV|Fire TV} {host}".
	Name string
	Host string

	Device  *androidtv.Device
	Session Session
	Options entry.Options

	// AllowedPaths limits the local side of download and upload.
	AllowedPaths []string

	// Notifier is optional.
	Notifier Notifier

	// Logger is optional.
	Logger *logging.Logger
}

// Player is the media-player entity of one config entry.
//
// Thread Safety: All methods are safe for concurrent use. Device calls are
// serialised by the adb session lock, not by the Player.
type Player struct {
	entryID  string
	name     string
	class    androidtv.DeviceClass
	features Feature
	info     DeviceInfo

	device   *androidtv.Device
	session  Session
	allowed  []string
	notifier Notifier
	logger   *logging.Logger

	mu                 sync.RWMutex
	available          bool
	failedConnectCount int
	appIDToName        map[string]string
	appNameToID        map[string]string
	getSources         bool
	excludeUnnamedApps bool
	screencap          bool
	state              State
}

// New creates a Player for a connected device. The player starts available.
func New(cfg Config) (*Player, error) {
	if cfg.Device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if cfg.Session == nil {
		return nil, fmt.Errorf("session is required")
	}

	class := cfg.Device.Class()
	if class == androidtv.ClassAuto {
		class = androidtv.ClassAndroidTV
	}

	name := cfg.Name
	if name == "" {
		name = class.Prefix() + " " + cfg.Host
	}

	features := AndroidTVFeatures
	if class == androidtv.ClassFireTV {
		features = FireTVFeatures
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	p := &Player{
		entryID:   cfg.EntryID,
		name:      name,
		class:     class,
		features:  features,
		info:      NewDeviceInfo(cfg.UniqueID, name, class, cfg.Device.Properties()),
		device:    cfg.Device,
		session:   cfg.Session,
		allowed:   cfg.AllowedPaths,
		notifier:  cfg.Notifier,
		logger:    logger.With("entry_id", cfg.EntryID, "player", name),
		available: true,
		state: State{
			EntryID:  cfg.EntryID,
			Name:     name,
			Features: features.Names(),
		},
	}
	p.ProcessConfig(cfg.Options)
	return p, nil
}

// EntryID returns the config entry the player belongs to.
func (p *Player) EntryID() string { return p.entryID }

// Name returns the entity name.
func (p *Player) Name() string { return p.name }

// Class returns the resolved device class.
func (p *Player) Class() androidtv.DeviceClass { return p.class }

// Features returns the supported features.
func (p *Player) Features() Feature { return p.features }

// DeviceInfo returns the device description.
func (p *Player) DeviceInfo() DeviceInfo { return p.info }

// Available reports whether the adb link is believed to be up.
func (p *Player) Available() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.available
}

// FailedConnectCount is the number of consecutive failed reconnects.
func (p *Player) FailedConnectCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.failedConnectCount
}

// State returns a copy of the current entity state.
func (p *Player) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.state.Clone()
	s.Available = p.available
	return s
}

// ProcessConfig applies entry options: app names, source switches and
// custom commands. It is safe to call on a running player.
func (p *Player) ProcessConfig(opts entry.Options) {
	p.logger.Debug("loading configuration options")

	idToName := maps.Clone(androidtv.Apps)
	maps.Copy(idToName, opts.Apps)

	nameToID := make(map[string]string, len(idToName))
	for id, name := range idToName {
		if name != "" {
			nameToID[name] = id
		}
	}
	// User-defined names win over built-in ones.
	for id, name := range opts.Apps {
		nameToID[name] = id
	}

	p.mu.Lock()
	p.appIDToName = idToName
	p.appNameToID = nameToID
	p.getSources = opts.GetSourcesEnabled()
	p.excludeUnnamedApps = opts.ExcludeUnnamed()
	p.screencap = opts.ScreencapEnabled()
	p.mu.Unlock()

	for _, cmd := range androidtv.CustomizableCommands {
		p.device.CustomizeCommand(cmd, opts.CustomCommands[cmd])
	}
}

// Close drops the adb link. The player is unavailable afterwards.
func (p *Player) Close() error {
	p.mu.Lock()
	p.available = false
	p.mu.Unlock()
	return p.session.Close()
}

// guard runs fn under the recovery policy described in the package comment.
// override lets fn run while the player is unavailable.
func (p *Player) guard(ctx context.Context, override bool, fn func(context.Context) error) error {
	if !override && !p.Available() {
		return nil
	}

	err := fn(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, adb.ErrLockNotAcquired):
		p.logger.Info("ADB command not executed because the connection is currently in use")
		if reportsBusy(ctx) {
			return ErrBusy
		}
		return nil
	case errors.Is(err, adb.ErrTransport):
		p.logger.Error("failed to execute an ADB command, re-establishing the connection on the next update",
			"error", err)
		p.markUnavailable()
		return nil
	default:
		p.markUnavailable()
		return err
	}
}

func (p *Player) markUnavailable() {
	if err := p.session.Close(); err != nil {
		p.logger.Debug("closing adb session", "error", err)
	}
	p.mu.Lock()
	p.available = false
	p.mu.Unlock()
}

// Update reconnects if needed, polls the device and reconciles the state.
func (p *Player) Update(ctx context.Context) error {
	return p.guard(ctx, true, p.update)
}

func (p *Player) update(ctx context.Context) error {
	p.mu.RLock()
	available := p.available
	logErrors := p.failedConnectCount == 0
	p.mu.RUnlock()

	if !available {
		connected := p.session.Connect(ctx, logErrors)

		p.mu.Lock()
		if connected {
			p.failedConnectCount = 0
			p.available = true
		} else {
			p.failedConnectCount++
		}
		available = p.available
		p.mu.Unlock()

		if connected {
			p.logger.Info("reconnected to device")
		}
	}

	if !available {
		return nil
	}

	p.mu.RLock()
	getSources := p.getSources
	p.mu.RUnlock()

	snap, err := p.device.Update(ctx, getSources)
	if err != nil {
		return err
	}
	p.reconcile(snap)
	return nil
}

// reconcile folds a device snapshot into the entity state.
func (p *Player) reconcile(snap androidtv.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := &p.state
	st.AppID = snap.CurrentApp
	st.Attributes.HDMIInput = strPtr(snap.HDMIInput)
	if p.class != androidtv.ClassFireTV {
		st.IsVolumeMuted = snap.IsVolumeMuted
		st.VolumeLevel = snap.VolumeLevel
	}

	state, ok := entityStates[snap.State]
	st.State = state
	if !ok {
		if snap.State == "" {
			p.logger.Warn("device state could not be read")
		} else {
			p.logger.Warn("device reported an unknown state", "state", snap.State)
		}
		p.available = false
	}

	if len(snap.RunningApps) == 0 {
		st.SourceList = nil
		return
	}

	source, ok := p.appIDToName[st.AppID]
	if !ok {
		source = st.AppID
	}
	st.Source = source
	if p.class != androidtv.ClassFireTV {
		st.AppName = source
	}

	sources := make([]string, 0, len(snap.RunningApps))
	for _, id := range snap.RunningApps {
		name, ok := p.appIDToName[id]
		if !ok && !p.excludeUnnamedApps {
			name = id
		}
		if name != "" {
			sources = append(sources, name)
		}
	}
	st.SourceList = sources
}

func (p *Player) setADBResponse(s string) {
	p.mu.Lock()
	p.state.Attributes.ADBResponse = &s
	p.mu.Unlock()
}

func (p *Player) volumeLevel() *float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state.VolumeLevel == nil {
		return nil
	}
	v := *p.state.VolumeLevel
	return &v
}

func (p *Player) setVolumeLevel(level *float64) {
	p.mu.Lock()
	p.state.VolumeLevel = level
	p.mu.Unlock()
}
