package player

import "errors"

// Domain errors for the player package.
var (
	// ErrNotSupported is returned for a command the device class does not support.
	ErrNotSupported = errors.New("player: not supported by this device")

	// ErrUnknownService is returned when a service name is not recognised.
	ErrUnknownService = errors.New("player: unknown service")

	// ErrInvalidParameters is returned when a command or service is missing arguments.
	ErrInvalidParameters = errors.New("player: invalid parameters")

	// ErrBusy is returned by Execute and CallService when the command was
	// skipped because another command held the device connection.
	ErrBusy = errors.New("player: device connection busy, command not executed")
)
