package androidtv

import (
	"fmt"
	"strings"
)

// Section markers separate the parts of the combined update output.
const (
	sectionPrefix     = "@@"
	sectionScreenOn   = "screen_on"
	sectionAwake      = "awake"
	sectionWakeLock   = "wake_lock_size"
	sectionCurrentApp = "current_app"
	sectionMedia      = "media_session_state"
	sectionAudio      = "audio_state"
	sectionStream     = "stream_music"
	sectionRunning    = "running_apps"
	sectionHDMI       = "hdmi_input"
)

// Built-in shell commands.
const (
	cmdScreenOn = "(dumpsys power | grep 'Display Power' | grep -q 'state=ON' || dumpsys power | grep -q 'mScreenOn=true')"
	cmdAwake    = "dumpsys power | grep mWakefulness | grep -q Awake"

	cmdWakeLockSize = "dumpsys power | grep Locks | grep 'size='"
	cmdCurrentApp   = "dumpsys window windows | grep -E -m 1 'mCurrentFocus|mFocusedApp'"
	cmdMediaSession = "dumpsys media_session | grep -A 100 'Sessions Stack' | grep -m 1 'state=PlaybackState {'"
	cmdStreamMusic  = "dumpsys audio | grep '\\- STREAM_MUSIC:' -A 11"
	cmdRunningApps  = "ps -A | grep u0_a"
	cmdHDMIInput    = "dumpsys activity starter | grep -E -o '(ExternalTv|HDMI)InputService/HW[0-9]' -m 1 | grep -o 'HW[0-9]'"

	// Prints 1 when something is paused, 2 when something is playing, 0 otherwise.
	cmdAudioState = "dumpsys audio | grep paused | grep -qv 'Buffer Queue' && echo 1 || " +
		"(dumpsys audio | grep started | grep -qv 'Buffer Queue' && echo 2 || echo 0)"

	cmdTurnOnAndroidTV  = cmdScreenOn + " || input keyevent 26"
	cmdTurnOffAndroidTV = cmdScreenOn + " && input keyevent 223"
	cmdTurnOnFireTV     = cmdScreenOn + " || (input keyevent 26 && input keyevent 3)"
	cmdTurnOffFireTV    = cmdScreenOn + " && input keyevent 223"

	cmdLaunchAppAndroidTV = "monkey -p {} -c android.intent.category.LEANBACK_LAUNCHER --pct-syskeys 0 1"
	cmdLaunchAppFireTV    = "monkey -p {} -c android.intent.category.LAUNCHER --pct-syskeys 0 1"
	cmdStopApp            = "am force-stop {}"

	cmdSetVolume = "media volume --show --stream 3 --set %d"

	cmdProperties = "echo '@@manufacturer'; getprop ro.product.manufacturer; " +
		"echo '@@model'; getprop ro.product.model; " +
		"echo '@@serialno'; getprop ro.serialno; " +
		"echo '@@sw_version'; getprop ro.build.version.release; " +
		"echo '@@wifimac'; ip addr show wlan0 | grep -m 1 ether; " +
		"echo '@@ethmac'; ip addr show eth0 | grep -m 1 ether"

	cmdScreencap = "screencap -p"
)

// keyEvent returns the shell command that sends a single key press.
func keyEvent(code int) string {
	return fmt.Sprintf("input keyevent %d", code)
}

// withApp fills the {} placeholder of an app command.
func withApp(template, appID string) string {
	return strings.ReplaceAll(template, "{}", appID)
}

// boolSection wraps a test command so it prints 1 or 0.
func boolSection(test string) string {
	return test + " && echo 1 || echo 0"
}

// updateCommand builds the combined shell command used for one update.
//
// Each part is preceded by a marker line so the output can be split
// even when a part prints nothing.
func updateCommand(class DeviceClass, custom map[string]string, getSources bool) string {
	parts := [][2]string{
		{sectionScreenOn, boolSection(cmdScreenOn)},
		{sectionAwake, boolSection(cmdAwake)},
		{sectionWakeLock, cmdWakeLockSize},
		{sectionCurrentApp, pick(custom, CustomCurrentApp, cmdCurrentApp)},
		{sectionMedia, pick(custom, CustomCurrentAppMediaSessionState, cmdMediaSession)},
	}

	if class != ClassFireTV {
		parts = append(parts,
			[2]string{sectionAudio, pick(custom, CustomAudioState, cmdAudioState)},
			[2]string{sectionStream, cmdStreamMusic},
		)
	}

	if getSources {
		parts = append(parts, [2]string{sectionRunning, pick(custom, CustomRunningApps, cmdRunningApps)})
	}

	parts = append(parts, [2]string{sectionHDMI, pick(custom, CustomHDMIInput, cmdHDMIInput)})

	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "echo '%s%s'; %s", sectionPrefix, p[0], p[1])
	}
	return b.String()
}

func pick(custom map[string]string, name, fallback string) string {
	if v := custom[name]; v != "" {
		return v
	}
	return fallback
}

// splitSections parses marker-separated output into a map keyed by section name.
// Sections whose marker never appeared are absent from the map.
func splitSections(output string) map[string]string {
	sections := make(map[string]string)
	var current string
	var body []string
	inSection := false

	flush := func() {
		if inSection {
			sections[current] = strings.TrimSpace(strings.Join(body, "\n"))
		}
	}

	for _, line := range strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, sectionPrefix) {
			flush()
			current = strings.TrimPrefix(trimmed, sectionPrefix)
			body = body[:0]
			inSection = true
			continue
		}
		if inSection {
			body = append(body, line)
		}
	}
	flush()

	return sections
}
