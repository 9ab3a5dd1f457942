package androidtv

import "errors"

// Domain errors for the Android TV bridge package.
var (
	// ErrPlayerNotFound is returned when no entry with the given ID is running.
	ErrPlayerNotFound = errors.New("androidtv bridge: player not found")

	// ErrPlayerNotReady is returned when the entry exists but its device has
	// not been connected yet.
	ErrPlayerNotReady = errors.New("androidtv bridge: player not ready")

	// ErrBridgeStopped is returned when an entry is added after Stop.
	ErrBridgeStopped = errors.New("androidtv bridge: stopped")
)
