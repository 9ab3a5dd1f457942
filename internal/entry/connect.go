package entry

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-androidtv/internal/adb"
	"github.com/nerrad567/gray-logic-androidtv/internal/androidtv"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/logging"
)

// ConnectConfig holds the bridge-wide settings Connect needs.
type ConnectConfig struct {
	// DefaultKeyPath is used when an entry in local mode names no adbkey.
	DefaultKeyPath string

	// LocalServerHost and LocalServerPort address the bridge's own adb server.
	LocalServerHost string
	LocalServerPort int
	ADBPath         string

	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	LockTimeout    time.Duration

	Logger *logging.Logger

	// NewClient overrides the goadb client factory. Used by tests.
	NewClient adb.ClientFactory
}

// Connection is a connected device ready for a player.
type Connection struct {
	Session *adb.Session
	Device  *androidtv.Device
}

// Close drops the adb link.
func (c *Connection) Close() error {
	return c.Session.Close()
}

// ConnectError carries the user-facing reason a connection failed.
type ConnectError struct {
	Message string
	Err     error
}

func (e *ConnectError) Error() string { return e.Message }

func (e *ConnectError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCannotConnect}
	}
	return []error{ErrCannotConnect, e.Err}
}

// deviceLabel names the device class in connection errors.
func deviceLabel(class androidtv.DeviceClass) string {
	switch class {
	case androidtv.ClassAndroidTV:
		return "Android TV device"
	case androidtv.ClassFireTV:
		return "Fire TV device"
	default:
		return "Android TV / Fire TV device"
	}
}

// SessionOptions builds the adb session options for data.
func SessionOptions(data Data, cfg ConnectConfig) adb.Options {
	opts := adb.Options{
		Host:            data.Host,
		Port:            data.Port,
		LocalServerHost: cfg.LocalServerHost,
		LocalServerPort: cfg.LocalServerPort,
		ADBPath:         cfg.ADBPath,
		ConnectTimeout:  cfg.ConnectTimeout,
		CommandTimeout:  cfg.CommandTimeout,
		LockTimeout:     cfg.LockTimeout,
		Logger:          cfg.Logger,
		NewClient:       cfg.NewClient,
	}
	if data.UsesServer() {
		opts.ServerHost = data.ADBServerIP
		opts.ServerPort = data.ADBServerPort
		if opts.ServerPort == 0 {
			opts.ServerPort = DefaultADBServerPort
		}
		return opts
	}
	opts.KeyPath = data.ADBKey
	if opts.KeyPath == "" {
		opts.KeyPath = cfg.DefaultKeyPath
	}
	return opts
}

// Connect opens an adb session to the device described by data, applies the
// state detection rules and reads the device properties.
//
// A failure to reach the device returns a *ConnectError wrapping
// ErrCannotConnect whose message names the device and how it was reached.
func Connect(ctx context.Context, data Data, rules androidtv.RuleSet, cfg ConnectConfig) (*Connection, error) {
	if data.Port == 0 {
		data.Port = DefaultPort
	}
	if data.DeviceClass == "" {
		data.DeviceClass = DefaultDeviceClass
	}

	sess, err := adb.NewSession(SessionOptions(data, cfg))
	if err != nil {
		return nil, err
	}

	failure := func(cause error) error {
		return &ConnectError{
			Message: fmt.Sprintf("Could not connect to %s at %s %s", deviceLabel(data.DeviceClass), data.Address(), sess.Describe()),
			Err:     cause,
		}
	}

	if !sess.Connect(ctx, true) {
		return nil, failure(nil)
	}

	dev := androidtv.NewDevice(sess, data.DeviceClass, rules)
	if _, err := dev.LoadProperties(ctx); err != nil {
		sess.Close() //nolint:errcheck // Close never fails
		return nil, failure(err)
	}

	return &Connection{Session: sess, Device: dev}, nil
}
