// Package entry stores the bridge's config entries.
//
// A config entry is one Android TV or Fire TV set up through the config flow.
// Its Data holds the connection parameters chosen at setup time and never
// changes afterwards; its Options hold everything the options flow edits
// (app names, custom commands, state detection rules and a few switches).
//
//	┌──────────────┐    ┌──────────────────┐    ┌────────────────────┐
//	│   Registry   │───▶│    Repository    │───▶│ SQLite             │
//	│ (registry.go)│    │ (repository.go)  │    │ config_entries     │
//	│ • cache      │    │ • JSON columns   │    └────────────────────┘
//	│ • dup checks │    └──────────────────┘
//	└──────────────┘
//
// Connect turns an entry's Data into a live adb session and device model.
package entry
