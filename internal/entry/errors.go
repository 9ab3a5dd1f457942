package entry

import "errors"

// Domain errors for the entry package.
var (
	// ErrEntryNotFound is returned when an entry ID does not exist.
	ErrEntryNotFound = errors.New("entry: not found")

	// ErrEntryExists is returned when an entry with the same ID or unique ID already exists.
	ErrEntryExists = errors.New("entry: already exists")

	// ErrHostConfigured is returned when another entry already uses the host.
	ErrHostConfigured = errors.New("entry: host already configured")

	// ErrInvalidEntry is returned when entry validation fails.
	ErrInvalidEntry = errors.New("entry: invalid")

	// ErrCannotConnect is returned by Connect when the device could not be reached.
	ErrCannotConnect = errors.New("entry: cannot connect")
)
