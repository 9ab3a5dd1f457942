package androidtv

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reWakeLockSize  = regexp.MustCompile(`size=(\d+)`)
	reMediaSession  = regexp.MustCompile(`state=PlaybackState \{state=(\d+)`)
	reStreamMuted   = regexp.MustCompile(`Muted: (true|false)`)
	reStreamMax     = regexp.MustCompile(`Max: (\d+)`)
	reStreamDevices = regexp.MustCompile(`Devices: ([\w-]+)`)
	reStreamVolume  = regexp.MustCompile(`streamVolume:(\d+)`)
	reMAC           = regexp.MustCompile(`ether ([0-9a-fA-F:]{17})`)
)

// parseBool reads a 1/0 section.
func parseBool(s string) bool {
	return strings.TrimSpace(s) == "1"
}

// parseIntPtr returns nil for an empty or non-numeric value.
func parseIntPtr(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

func parseWakeLockSize(s string) *int {
	m := reWakeLockSize.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return parseIntPtr(m[1])
}

// parseCurrentApp extracts the package name from a window focus line such as
//
//	mCurrentFocus=Window{3b7a5c u0 com.netflix.ninja/com.netflix.ninja.MainActivity}
//
// Custom current_app commands that print a bare package name are accepted too.
func parseCurrentApp(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(strings.TrimSpace(s), "}")
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	app := fields[len(fields)-1]
	if i := strings.IndexByte(app, '/'); i >= 0 {
		app = app[:i]
	}
	if strings.ContainsAny(app, "={") || app == "null" {
		return ""
	}
	return app
}

// parseMediaSessionState accepts either the dumpsys line or a bare number.
func parseMediaSessionState(s string) *int {
	if m := reMediaSession.FindStringSubmatch(s); m != nil {
		return parseIntPtr(m[1])
	}
	return parseIntPtr(s)
}

// parseAudioState maps the 0/1/2 audio reading to a state name.
func parseAudioState(s string) string {
	switch strings.TrimSpace(s) {
	case "1":
		return StatePaused
	case "2":
		return StatePlaying
	case "0":
		return StateIdle
	default:
		return ""
	}
}

// streamMusic holds what is read from the STREAM_MUSIC block of dumpsys audio.
type streamMusic struct {
	device    string
	muted     *bool
	volume    *int
	maxVolume *int
}

// parseStreamMusic reads a block like
//
//	- STREAM_MUSIC:
//	   Muted: false
//	   Min: 0
//	   Max: 15
//	   Current: 2 (speaker): 11, 400 (hdmi): 9, 40000000 (default): 8
//	   Devices: hdmi
func parseStreamMusic(s string) streamMusic {
	var sm streamMusic
	if strings.TrimSpace(s) == "" {
		return sm
	}

	if m := reStreamMuted.FindStringSubmatch(s); m != nil {
		muted := m[1] == "true"
		sm.muted = &muted
	}
	if m := reStreamMax.FindStringSubmatch(s); m != nil {
		sm.maxVolume = parseIntPtr(m[1])
	}
	if m := reStreamDevices.FindStringSubmatch(s); m != nil {
		sm.device = m[1]
	}

	if sm.device != "" {
		re := regexp.MustCompile(`\(` + regexp.QuoteMeta(sm.device) + `\): (\d+)`)
		if m := re.FindStringSubmatch(s); m != nil {
			sm.volume = parseIntPtr(m[1])
		}
	}
	if sm.volume == nil {
		if m := reStreamVolume.FindStringSubmatch(s); m != nil {
			sm.volume = parseIntPtr(m[1])
		}
	}

	return sm
}

// parseRunningApps returns the process names of user apps from ps output.
// A nil result means the section was not requested or printed nothing.
func parseRunningApps(s string) []string {
	var apps []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := fields[len(fields)-1]
		if seen[name] {
			continue
		}
		seen[name] = true
		apps = append(apps, name)
	}
	return apps
}

// parseProperties reads the marker-separated getprop output.
func parseProperties(output string) Properties {
	sections := splitSections(output)
	props := Properties{
		Manufacturer: sections["manufacturer"],
		Model:        sections["model"],
		SerialNo:     sections["serialno"],
		SWVersion:    sections["sw_version"],
	}
	if m := reMAC.FindStringSubmatch(sections["wifimac"]); m != nil {
		props.WifiMAC = strings.ToLower(m[1])
	}
	if m := reMAC.FindStringSubmatch(sections["ethmac"]); m != nil {
		props.EthMAC = strings.ToLower(m[1])
	}
	return props
}
