package adb

import (
	"io"
	"os"
	"time"

	goadb "github.com/zach-klippenstein/goadb"
)

// DeviceState is the adb server's view of a device.
type DeviceState string

// Device states reported by the adb server.
const (
	StateOnline       DeviceState = "online"
	StateOffline      DeviceState = "offline"
	StateUnauthorized DeviceState = "unauthorized"
	StateUnknown      DeviceState = "unknown"
)

// ServerConfig selects the adb server a Client talks to.
type ServerConfig struct {
	Host      string
	Port      int
	PathToAdb string
}

// Client is the subset of the adb server API the bridge uses.
type Client interface {
	// StartServer starts a local adb server if none is running.
	StartServer() error

	// KillServer stops the local adb server.
	KillServer() error

	// Connect asks the server to open a TCP/IP connection to host:port.
	Connect(host string, port int) error

	// Device returns a handle for the device with the given serial.
	Device(serial string) DeviceHandle
}

// DeviceHandle is the subset of the per-device API the bridge uses.
type DeviceHandle interface {
	State() (DeviceState, error)
	RunCommand(cmd string, args ...string) (string, error)
	OpenRead(path string) (io.ReadCloser, error)
	OpenWrite(path string, perms os.FileMode, mtime time.Time) (io.WriteCloser, error)
}

// ClientFactory creates a Client for a server configuration.
type ClientFactory func(ServerConfig) (Client, error)

// NewGoADBClient is the ClientFactory backed by goadb.
func NewGoADBClient(cfg ServerConfig) (Client, error) {
	c, err := goadb.NewWithConfig(goadb.ServerConfig{
		Host:      cfg.Host,
		Port:      cfg.Port,
		PathToAdb: cfg.PathToAdb,
	})
	if err != nil {
		return nil, err
	}
	return &goadbClient{adb: c}, nil
}

type goadbClient struct {
	adb *goadb.Adb
}

func (c *goadbClient) StartServer() error {
	return c.adb.StartServer()
}

func (c *goadbClient) KillServer() error {
	return c.adb.KillServer()
}

func (c *goadbClient) Connect(host string, port int) error {
	return c.adb.Connect(host, port)
}

func (c *goadbClient) Device(serial string) DeviceHandle {
	return &goadbDevice{dev: c.adb.Device(goadb.DeviceWithSerial(serial))}
}

type goadbDevice struct {
	dev *goadb.Device
}

func (d *goadbDevice) State() (DeviceState, error) {
	state, err := d.dev.State()
	if err != nil {
		return StateUnknown, err
	}
	return convertState(state), nil
}

func (d *goadbDevice) RunCommand(cmd string, args ...string) (string, error) {
	return d.dev.RunCommand(cmd, args...)
}

func (d *goadbDevice) OpenRead(path string) (io.ReadCloser, error) {
	return d.dev.OpenRead(path)
}

func (d *goadbDevice) OpenWrite(path string, perms os.FileMode, mtime time.Time) (io.WriteCloser, error) {
	return d.dev.OpenWrite(path, perms, mtime)
}

func convertState(state goadb.DeviceState) DeviceState {
	switch state {
	case goadb.StateOnline:
		return StateOnline
	case goadb.StateOffline:
		return StateOffline
	case goadb.StateUnauthorized:
		return StateUnauthorized
	default:
		return StateUnknown
	}
}
