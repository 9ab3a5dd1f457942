package androidtv

import "errors"

// Domain errors for the androidtv package.
var (
	// ErrInvalidRules is returned when state detection rules fail validation.
	ErrInvalidRules = errors.New("androidtv: invalid state detection rules")

	// ErrInvalidVolume is returned for a volume level outside [0, 1].
	ErrInvalidVolume = errors.New("androidtv: volume level must be between 0 and 1")

	// ErrVolumeUnknown is returned when the device did not report a maximum volume.
	ErrVolumeUnknown = errors.New("androidtv: maximum volume is unknown")

	// ErrUnknownDeviceClass is returned when a device class string is not recognised.
	ErrUnknownDeviceClass = errors.New("androidtv: unknown device class")

	// ErrEmptyCommand is returned when a blank shell command is requested.
	ErrEmptyCommand = errors.New("androidtv: empty command")
)
