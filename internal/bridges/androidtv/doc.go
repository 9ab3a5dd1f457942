// Package androidtv implements the Android TV / Fire TV bridge for Gray Logic.
//
// The bridge runs one media-player entity per config entry and exposes it to
// Core over MQTT.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐   adb
//	│   Gray Logic    │   MQTT   │ Android TV      │◄────────► Android TV
//	│      Core       │◄────────►│ Bridge (this)   │◄────────► Fire TV
//	└─────────────────┘          └─────────────────┘
//
// # Key Responsibilities
//
//   - Connect each entry's device and keep retrying while it is unreachable
//   - Poll every player on the configured interval
//   - Publish retained state when it changes
//   - Execute commands and services from Core and acknowledge each one
//   - Answer read_state, read_all and reload requests
//   - Publish health, with a Last Will for unexpected disconnects
//
// # Topics
//
//	graylogic/command/androidtv/{entry_id}      Core → bridge
//	graylogic/ack/androidtv/{entry_id}          bridge → Core
//	graylogic/state/androidtv/{entry_id}        bridge → Core (retained)
//	graylogic/notification/androidtv/{entry_id} bridge → Core
//	graylogic/request/androidtv/{request_id}    Core → bridge
//	graylogic/response/androidtv/{request_id}   bridge → Core
//	graylogic/health/androidtv                  bridge → Core (retained, LWT)
//	graylogic/discovery/androidtv               bridge → Core (retained)
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package androidtv
