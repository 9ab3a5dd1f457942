package flow

import "errors"

// Domain errors for the flow package.
var (
	// ErrFlowNotFound is returned when a flow ID is unknown or has expired.
	ErrFlowNotFound = errors.New("flow: not found")

	// ErrUnknownSource is returned when a config flow is started from an
	// unsupported source.
	ErrUnknownSource = errors.New("flow: unknown source")

	// ErrUnknownStep is returned when a flow is asked to run a step it does
	// not have.
	ErrUnknownStep = errors.New("flow: unknown step")

	// ErrDiscoveryUnavailable is returned when a zeroconf flow is started
	// without a discoverer.
	ErrDiscoveryUnavailable = errors.New("flow: discovery unavailable")
)
