package androidtv

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
)

// Conn is the ADB transport a Device talks through.
type Conn interface {
	// Shell runs a command in the device shell and returns its output.
	Shell(ctx context.Context, cmd string) (string, error)

	// Pull copies devicePath on the device to localPath.
	Pull(ctx context.Context, devicePath, localPath string) error

	// Push copies localPath to devicePath on the device.
	Push(ctx context.Context, localPath, devicePath string) error
}

// Snapshot is the normalised result of one update.
//
// Pointer fields are nil when the device did not report the value.
// Fire TV snapshots never carry volume or mute information.
type Snapshot struct {
	State             string
	CurrentApp        string
	RunningApps       []string
	AudioOutputDevice string
	IsVolumeMuted     *bool
	VolumeLevel       *float64
	HDMIInput         string

	ScreenOn          bool
	Awake             bool
	WakeLockSize      *int
	MediaSessionState *int
	AudioState        string
	Volume            *int
	MaxVolume         *int
}

// Map returns the raw snapshot values keyed the way the device reports them.
func (s Snapshot) Map() map[string]any {
	m := map[string]any{
		"screen_on":           s.ScreenOn,
		"awake":               s.Awake,
		"wake_lock_size":      s.WakeLockSize,
		"current_app":         nilIfEmpty(s.CurrentApp),
		"media_session_state": s.MediaSessionState,
		"audio_state":         nilIfEmpty(s.AudioState),
		"audio_output_device": nilIfEmpty(s.AudioOutputDevice),
		"is_volume_muted":     s.IsVolumeMuted,
		"volume":              s.Volume,
		"running_apps":        s.RunningApps,
		"hdmi_input":          nilIfEmpty(s.HDMIInput),
	}
	return m
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Device issues commands to one Android TV or Fire TV.
type Device struct {
	conn Conn

	mu        sync.RWMutex
	class     DeviceClass
	props     Properties
	custom    map[string]string
	rules     RuleSet
	maxVolume *int
}

// NewDevice creates a Device. ClassAuto is resolved by LoadProperties.
func NewDevice(conn Conn, class DeviceClass, rules RuleSet) *Device {
	if rules == nil {
		rules = RuleSet{}
	}
	return &Device{
		conn:   conn,
		class:  class,
		custom: make(map[string]string),
		rules:  rules,
	}
}

// Class returns the resolved device class.
func (d *Device) Class() DeviceClass {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.class
}

// Properties returns the properties read by the last LoadProperties call.
func (d *Device) Properties() Properties {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.props
}

// LoadProperties reads manufacturer, model, versions and MAC addresses.
func (d *Device) LoadProperties(ctx context.Context) (Properties, error) {
	out, err := d.conn.Shell(ctx, cmdProperties)
	if err != nil {
		return Properties{}, err
	}
	props := parseProperties(out)

	d.mu.Lock()
	d.props = props
	d.class = DetectClass(d.class, props)
	d.mu.Unlock()

	return props, nil
}

// CustomizeCommand replaces a built-in command. An empty cmd restores the default.
func (d *Device) CustomizeCommand(name, cmd string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cmd == "" {
		delete(d.custom, name)
		return
	}
	d.custom[name] = cmd
}

// SetRules replaces the state detection rules.
func (d *Device) SetRules(rules RuleSet) {
	if rules == nil {
		rules = RuleSet{}
	}
	d.mu.Lock()
	d.rules = rules
	d.mu.Unlock()
}

func (d *Device) snapshotConfig() (DeviceClass, map[string]string, RuleSet) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	custom := make(map[string]string, len(d.custom))
	for k, v := range d.custom {
		custom[k] = v
	}
	return d.class, custom, d.rules
}

// Update polls the device and returns a normalised Snapshot.
//
// Running apps are only read when getSources is set; otherwise, or when none
// are found, the current app stands in for them. Off and standby snapshots
// carry only the state. An unreadable screen state yields an empty State.
func (d *Device) Update(ctx context.Context, getSources bool) (Snapshot, error) {
	class, custom, rules := d.snapshotConfig()

	out, err := d.conn.Shell(ctx, updateCommand(class, custom, getSources))
	if err != nil {
		return Snapshot{}, err
	}
	sections := splitSections(out)

	// Without a screen reading the state is unknown and State stays empty.
	screen := strings.TrimSpace(sections[sectionScreenOn])
	if screen == "" {
		return Snapshot{}, nil
	}

	snap := Snapshot{ScreenOn: parseBool(screen)}
	if !snap.ScreenOn {
		snap.State = StateOff
		return snap, nil
	}
	snap.Awake = parseBool(sections[sectionAwake])
	if !snap.Awake {
		snap.State = StateStandby
		return snap, nil
	}

	snap.WakeLockSize = parseWakeLockSize(sections[sectionWakeLock])
	snap.CurrentApp = parseCurrentApp(sections[sectionCurrentApp])
	snap.MediaSessionState = parseMediaSessionState(sections[sectionMedia])
	snap.HDMIInput = strings.TrimSpace(sections[sectionHDMI])

	if class != ClassFireTV {
		snap.AudioState = parseAudioState(sections[sectionAudio])
		sm := parseStreamMusic(sections[sectionStream])
		snap.AudioOutputDevice = sm.device
		snap.IsVolumeMuted = sm.muted
		snap.Volume = sm.volume
		snap.MaxVolume = sm.maxVolume
		if sm.volume != nil && sm.maxVolume != nil && *sm.maxVolume > 0 {
			level := float64(*sm.volume) / float64(*sm.maxVolume)
			snap.VolumeLevel = &level
		}
		if sm.maxVolume != nil {
			d.mu.Lock()
			d.maxVolume = sm.maxVolume
			d.mu.Unlock()
		}
	}

	if getSources {
		snap.RunningApps = parseRunningApps(sections[sectionRunning])
	}
	if len(snap.RunningApps) == 0 && snap.CurrentApp != "" {
		snap.RunningApps = []string{snap.CurrentApp}
	}

	snap.State = determineState(class, rules, snap)
	return snap, nil
}

func determineState(class DeviceClass, rules RuleSet, snap Snapshot) string {
	if !snap.ScreenOn {
		return StateOff
	}
	if !snap.Awake {
		return StateStandby
	}

	p := readings{
		audioState:   snap.AudioState,
		mediaSession: snap.MediaSessionState,
		wakeLockSize: snap.WakeLockSize,
	}
	if appRules := rules[snap.CurrentApp]; len(appRules) > 0 {
		if state, ok := evaluate(appRules, p); ok {
			return state
		}
	}

	if launcherApps[snap.CurrentApp] {
		return StateIdle
	}

	if state := mediaSessionToState(snap.MediaSessionState); state != "" {
		return state
	}

	if class == ClassFireTV {
		switch {
		case snap.WakeLockSize == nil:
			return StateIdle
		case *snap.WakeLockSize == 1:
			return StatePaused
		case *snap.WakeLockSize >= 2:
			return StatePlaying
		default:
			return StateIdle
		}
	}

	if snap.AudioState != "" {
		return snap.AudioState
	}
	return StateIdle
}

// Shell runs an arbitrary shell command.
func (d *Device) Shell(ctx context.Context, cmd string) (string, error) {
	if strings.TrimSpace(cmd) == "" {
		return "", ErrEmptyCommand
	}
	return d.conn.Shell(ctx, cmd)
}

// Key sends a single key event.
func (d *Device) Key(ctx context.Context, code int) error {
	_, err := d.conn.Shell(ctx, keyEvent(code))
	return err
}

// MediaPlay sends the play key.
func (d *Device) MediaPlay(ctx context.Context) error { return d.Key(ctx, keyPlay) }

// MediaPause sends the pause key.
func (d *Device) MediaPause(ctx context.Context) error { return d.Key(ctx, keyPause) }

// MediaPlayPause toggles playback.
func (d *Device) MediaPlayPause(ctx context.Context) error { return d.Key(ctx, keyPlayPause) }

// MediaStop sends the stop key.
func (d *Device) MediaStop(ctx context.Context) error { return d.Key(ctx, keyStop) }

// MediaNext sends the next-track key.
func (d *Device) MediaNext(ctx context.Context) error { return d.Key(ctx, keyNext) }

// MediaPrevious sends the previous-track key.
func (d *Device) MediaPrevious(ctx context.Context) error { return d.Key(ctx, keyPrevious) }

// Back sends the back key.
func (d *Device) Back(ctx context.Context) error { return d.Key(ctx, keyBack) }

// TurnOn wakes the screen unless it is already on.
func (d *Device) TurnOn(ctx context.Context) error {
	class, custom, _ := d.snapshotConfig()
	def := cmdTurnOnAndroidTV
	if class == ClassFireTV {
		def = cmdTurnOnFireTV
	}
	_, err := d.conn.Shell(ctx, pick(custom, CustomTurnOn, def))
	return err
}

// TurnOff puts the device to sleep if the screen is on.
func (d *Device) TurnOff(ctx context.Context) error {
	class, custom, _ := d.snapshotConfig()
	def := cmdTurnOffAndroidTV
	if class == ClassFireTV {
		def = cmdTurnOffFireTV
	}
	_, err := d.conn.Shell(ctx, pick(custom, CustomTurnOff, def))
	return err
}

// LaunchApp starts the app with the given package id.
func (d *Device) LaunchApp(ctx context.Context, appID string) error {
	class, custom, _ := d.snapshotConfig()
	def := cmdLaunchAppAndroidTV
	if class == ClassFireTV {
		def = cmdLaunchAppFireTV
	}
	_, err := d.conn.Shell(ctx, withApp(pick(custom, CustomLaunchApp, def), appID))
	return err
}

// StopApp force-stops the app with the given package id.
func (d *Device) StopApp(ctx context.Context, appID string) error {
	_, err := d.conn.Shell(ctx, withApp(cmdStopApp, appID))
	return err
}

func (d *Device) streamMusic(ctx context.Context) (streamMusic, error) {
	out, err := d.conn.Shell(ctx, cmdStreamMusic)
	if err != nil {
		return streamMusic{}, err
	}
	sm := parseStreamMusic(out)
	if sm.maxVolume != nil {
		d.mu.Lock()
		d.maxVolume = sm.maxVolume
		d.mu.Unlock()
	}
	return sm, nil
}

// IsVolumeMuted reads the current mute state. nil means it could not be determined.
func (d *Device) IsVolumeMuted(ctx context.Context) (*bool, error) {
	sm, err := d.streamMusic(ctx)
	if err != nil {
		return nil, err
	}
	return sm.muted, nil
}

// MuteVolume toggles mute.
func (d *Device) MuteVolume(ctx context.Context) error { return d.Key(ctx, keyMute) }

// maxVol returns the cached maximum volume, reading it when unknown.
func (d *Device) maxVol(ctx context.Context) (int, error) {
	d.mu.RLock()
	mv := d.maxVolume
	d.mu.RUnlock()
	if mv == nil {
		sm, err := d.streamMusic(ctx)
		if err != nil {
			return 0, err
		}
		mv = sm.maxVolume
	}
	if mv == nil || *mv <= 0 {
		return 0, ErrVolumeUnknown
	}
	return *mv, nil
}

// SetVolumeLevel sets the music stream volume to level (0..1) and returns
// the level actually applied after rounding to a device step.
func (d *Device) SetVolumeLevel(ctx context.Context, level float64) (float64, error) {
	if level < 0 || level > 1 || math.IsNaN(level) {
		return 0, ErrInvalidVolume
	}
	mv, err := d.maxVol(ctx)
	if err != nil {
		return 0, err
	}
	steps := int(math.Round(level * float64(mv)))
	if _, err := d.conn.Shell(ctx, fmt.Sprintf(cmdSetVolume, steps)); err != nil {
		return 0, err
	}
	return float64(steps) / float64(mv), nil
}

// VolumeUp sends the volume-up key and returns the expected new level.
// The result is nil when the current level or the maximum is unknown.
func (d *Device) VolumeUp(ctx context.Context, current *float64) (*float64, error) {
	return d.volumeStep(ctx, current, keyVolumeUp, 1)
}

// VolumeDown sends the volume-down key and returns the expected new level.
func (d *Device) VolumeDown(ctx context.Context, current *float64) (*float64, error) {
	return d.volumeStep(ctx, current, keyVolumeDown, -1)
}

func (d *Device) volumeStep(ctx context.Context, current *float64, key, delta int) (*float64, error) {
	d.mu.RLock()
	mv := d.maxVolume
	d.mu.RUnlock()

	if err := d.Key(ctx, key); err != nil {
		return nil, err
	}
	if current == nil || mv == nil || *mv <= 0 {
		return nil, nil
	}

	steps := int(math.Round(*current*float64(*mv))) + delta
	if steps < 0 {
		steps = 0
	}
	if steps > *mv {
		steps = *mv
	}
	level := float64(steps) / float64(*mv)
	return &level, nil
}

// LearnSendevent listens for a key press on the physical remote and returns
// the sendevent commands that replay it.
func (d *Device) LearnSendevent(ctx context.Context) (string, error) {
	out, err := d.conn.Shell(ctx, cmdLearnSendevent())
	if err != nil {
		return "", err
	}
	return sendeventFromGetevent(out), nil
}

// Screencap returns a PNG of the current screen.
func (d *Device) Screencap(ctx context.Context) ([]byte, error) {
	out, err := d.conn.Shell(ctx, cmdScreencap)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Pull copies a file from the device.
func (d *Device) Pull(ctx context.Context, devicePath, localPath string) error {
	return d.conn.Pull(ctx, devicePath, localPath)
}

// Push copies a file to the device.
func (d *Device) Push(ctx context.Context, localPath, devicePath string) error {
	return d.conn.Push(ctx, localPath, devicePath)
}
