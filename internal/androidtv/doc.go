// Package androidtv models an Android TV or Fire TV device reached over ADB.
//
// It knows which shell commands to run on the device and how to turn their
// output into a normalised Snapshot. It does not own the ADB transport; every
// call goes through the Conn interface, which the adb package implements.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐          ┌──────────┐
//	│  player.Player  │ ───────► │ androidtv.Device│ ───────► │ adb.Conn │ ───► TV
//	│ (availability)  │          │ (commands/parse)│          │ (goadb)  │
//	└─────────────────┘          └─────────────────┘          └──────────┘
//
// # State Detection
//
// The device state is derived from the combined update command:
//
//   - screen off → "off"
//   - not awake → "standby"
//   - launcher in foreground → "idle"
//   - state detection rules for the current app, first match wins
//   - media session state 3 → "playing", 2 → "paused"
//   - Android TV: audio state; Fire TV: wake lock size
//   - otherwise "idle"
//
// Rules are configured per app id:
//
//	{"com.amazon.tv.launcher": ["idle"],
//	 "com.netflix.ninja": [{"playing": {"media_session_state": 3}}, "audio_state"]}
//
// # Thread Safety
//
// Device is safe for concurrent use. Customised commands and rules can be
// replaced while an update is running; the update sees either the old or
// the new set.
package androidtv
