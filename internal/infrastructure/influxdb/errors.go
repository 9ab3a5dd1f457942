package influxdb

import "errors"

// Domain errors for the influxdb package.
var (
	// ErrNotConnected indicates the client is closed or never connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates telemetry is switched off in the configuration.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
