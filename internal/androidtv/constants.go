package androidtv

import "fmt"

// DeviceClass selects the command set used for a device.
type DeviceClass string

// Device classes.
const (
	ClassAndroidTV DeviceClass = "androidtv"
	ClassFireTV    DeviceClass = "firetv"
	ClassAuto      DeviceClass = "auto"
)

// DeviceClasses lists the classes accepted in the setup flow.
var DeviceClasses = []DeviceClass{ClassAndroidTV, ClassFireTV, ClassAuto}

// ParseDeviceClass validates a device class string.
func ParseDeviceClass(s string) (DeviceClass, error) {
	for _, c := range DeviceClasses {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDeviceClass, s)
}

// Prefix returns the human label used in device names and models.
func (c DeviceClass) Prefix() string {
	if c == ClassFireTV {
		return "Fire TV"
	}
	return "Android TV"
}

// Reported device states.
const (
	StateOff     = "off"
	StateIdle    = "idle"
	StateStandby = "standby"
	StatePlaying = "playing"
	StatePaused  = "paused"
)

// ValidStates are the states a detection rule may produce.
var ValidStates = []string{StateIdle, StateOff, StatePlaying, StatePaused, StateStandby}

// Customisable command names. A non-empty value configured under one of
// these names replaces the built-in shell command.
const (
	CustomAudioState                  = "audio_state"
	CustomCurrentApp                  = "current_app"
	CustomCurrentAppMediaSessionState = "current_app_media_session_state"
	CustomHDMIInput                   = "hdmi_input"
	CustomLaunchApp                   = "launch_app"
	CustomRunningApps                 = "running_apps"
	CustomTurnOff                     = "turn_off"
	CustomTurnOn                      = "turn_on"
)

// CustomizableCommands lists every command name that can be overridden.
var CustomizableCommands = []string{
	CustomAudioState,
	CustomCurrentApp,
	CustomCurrentAppMediaSessionState,
	CustomHDMIInput,
	CustomLaunchApp,
	CustomRunningApps,
	CustomTurnOff,
	CustomTurnOn,
}

// IsCustomizable reports whether name is a customisable command.
func IsCustomizable(name string) bool {
	for _, c := range CustomizableCommands {
		if c == name {
			return true
		}
	}
	return false
}

// Android key codes used by the built-in commands.
const (
	keyHome       = 3
	keyBack       = 4
	keyVolumeUp   = 24
	keyVolumeDown = 25
	keyPower      = 26
	keyPlayPause  = 85
	keyStop       = 86
	keyNext       = 87
	keyPrevious   = 88
	keyPlay       = 126
	keyPause      = 127
	keyMute       = 164
	keySleep      = 223
)

// Keys maps the key names accepted by the adb_command service to Android
// key codes. A matching name is sent as "input keyevent <code>".
var Keys = map[string]int{
	// ── Navigation ───────────────────────────────────────────
	"BACK":       keyBack,
	"HOME":       keyHome,
	"MENU":       82,
	"UP":         19,
	"DOWN":       20,
	"LEFT":       21,
	"RIGHT":      22,
	"CENTER":     23,
	"ENTER":      66,
	"SEARCH":     84,
	"SETTINGS":   176,
	"APP_SWITCH": 187,

	// ── Power ────────────────────────────────────────────────
	"POWER":  keyPower,
	"SLEEP":  keySleep,
	"WAKEUP": 224,

	// ── Media ────────────────────────────────────────────────
	"PLAY":         keyPlay,
	"PAUSE":        keyPause,
	"PLAY_PAUSE":   keyPlayPause,
	"STOP":         keyStop,
	"NEXT":         keyNext,
	"PREVIOUS":     keyPrevious,
	"REWIND":       89,
	"FAST_FORWARD": 90,
	"MUTE":         keyMute,
	"VOLUME_UP":    keyVolumeUp,
	"VOLUME_DOWN":  keyVolumeDown,
	"CAPTIONS":     175,
	"INFO":         165,
	"GUIDE":        172,

	// ── Inputs / Channels ────────────────────────────────────
	"INPUT":        178,
	"TV":           170,
	"CHANNEL_UP":   166,
	"CHANNEL_DOWN": 167,

	// ── Digits ───────────────────────────────────────────────
	"0": 7,
	"1": 8,
	"2": 9,
	"3": 10,
	"4": 11,
	"5": 12,
	"6": 13,
	"7": 14,
	"8": 15,
	"9": 16,

	// ── Colour buttons ───────────────────────────────────────
	"RED":    183,
	"GREEN":  184,
	"YELLOW": 185,
	"BLUE":   186,
}

// Launcher packages. When one of these is in the foreground the device is idle.
const (
	appAmazonLauncher    = "com.amazon.tv.launcher"
	appGoogleTVLauncher  = "com.google.android.tvlauncher"
	appLeanbackLauncher  = "com.google.android.leanbacklauncher"
	appGoogleTVLauncherX = "com.google.android.apps.tv.launcherx"
)

var launcherApps = map[string]bool{
	appAmazonLauncher:    true,
	appGoogleTVLauncher:  true,
	appLeanbackLauncher:  true,
	appGoogleTVLauncherX: true,
}

// Apps maps well-known app ids to display names. User-configured names
// are layered on top of this table.
var Apps = map[string]string{
	// ── Launchers ────────────────────────────────────────────
	appAmazonLauncher:    "Fire TV",
	appGoogleTVLauncher:  "Android TV Launcher",
	appLeanbackLauncher:  "Android TV Launcher",
	appGoogleTVLauncherX: "Google TV",

	// ── Streaming ────────────────────────────────────────────
	"com.netflix.ninja":                  "Netflix",
	"com.amazon.avod":                    "Prime Video",
	"com.amazon.amazonvideo.livingroom":  "Prime Video",
	"com.disney.disneyplus":              "Disney+",
	"com.google.android.youtube.tv":      "YouTube",
	"com.amazon.firetv.youtube":          "YouTube (FireTV)",
	"com.google.android.youtube.tvmusic": "YouTube Music",
	"com.hbo.hbonow":                     "HBO Max",
	"com.apple.atve.androidtv.appletv":   "Apple TV+",
	"com.spotify.tv.android":             "Spotify",
	"tv.twitch.android.app":              "Twitch",
	"com.plexapp.android":                "Plex",
	"org.xbmc.kodi":                      "Kodi",
	"com.liskovsoft.smarttubetv.beta":    "SmartTube",
	"com.google.android.apps.tv.dreamx":  "Screensaver",

	// ── System ───────────────────────────────────────────────
	"com.android.tv.settings":        "Settings",
	"com.amazon.tv.settings.v2":      "Settings",
	"com.google.android.tv":          "Live Channels",
	"com.android.vending":            "Play Store",
	"com.amazon.venezia":             "Appstore",
	"com.amazon.device.sale.service": "",
	"com.google.android.katniss":     "Google Assistant",
}
