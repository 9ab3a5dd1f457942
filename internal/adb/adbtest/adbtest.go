// Package adbtest provides an in-memory adb server for tests.
package adbtest

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-androidtv/internal/adb"
)

// PropertiesOutput is a realistic reply to the device properties command.
const PropertiesOutput = "@@manufacturer\nNVIDIA\n" +
	"@@model\nSHIELD Android TV\n" +
	"@@serialno\n0423418076251\n" +
	"@@sw_version\n11\n" +
	"@@wifimac\n    link/ether 00:04:4b:aa:bb:cc brd ff:ff:ff:ff:ff:ff\n" +
	"@@ethmac\n    link/ether 00:04:4b:11:22:33 brd ff:ff:ff:ff:ff:ff\n"

type reply struct {
	contains string
	output   string
	err      error
}

// Device is a fake adb device. Shell replies are matched by substring in the
// order they were registered.
type Device struct {
	mu       sync.Mutex
	state    adb.DeviceState
	replies  []reply
	commands []string
	files    map[string][]byte
}

// NewDevice returns an online device that answers the properties command.
func NewDevice() *Device {
	d := &Device{state: adb.StateOnline, files: make(map[string][]byte)}
	d.On("@@manufacturer", PropertiesOutput)
	return d
}

// SetState changes the state the adb server reports.
func (d *Device) SetState(s adb.DeviceState) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// On registers output for commands containing substr. Later registrations
// take precedence.
func (d *Device) On(substr, output string) {
	d.mu.Lock()
	d.replies = append([]reply{{contains: substr, output: output}}, d.replies...)
	d.mu.Unlock()
}

// Fail makes commands containing substr return err.
func (d *Device) Fail(substr string, err error) {
	d.mu.Lock()
	d.replies = append([]reply{{contains: substr, err: err}}, d.replies...)
	d.mu.Unlock()
}

// Commands returns the shell commands run so far.
func (d *Device) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands...)
}

// File returns the content of a pushed file.
func (d *Device) File(path string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.files[path]
	return b, ok
}

// PutFile stores a file that can be pulled.
func (d *Device) PutFile(path string, data []byte) {
	d.mu.Lock()
	d.files[path] = data
	d.mu.Unlock()
}

func (d *Device) State() (adb.DeviceState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, nil
}

func (d *Device) RunCommand(cmd string, _ ...string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, cmd)
	for _, r := range d.replies {
		if strings.Contains(cmd, r.contains) {
			return r.output, r.err
		}
	}
	return "", nil
}

func (d *Device) OpenRead(path string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.files[path]
	if !ok {
		return nil, errors.New("adbtest: no such file " + path)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (d *Device) OpenWrite(path string, _ os.FileMode, _ time.Time) (io.WriteCloser, error) {
	return &writer{dev: d, path: path}, nil
}

type writer struct {
	dev  *Device
	path string
	buf  bytes.Buffer
}

func (w *writer) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *writer) Close() error {
	w.dev.PutFile(w.path, w.buf.Bytes())
	return nil
}

// Server is a fake adb server holding devices by serial.
type Server struct {
	mu         sync.Mutex
	devices    map[string]*Device
	connectErr error
	configs    []adb.ServerConfig
	started    int
	killed     int
}

// NewServer returns an empty server.
func NewServer() *Server {
	return &Server{devices: make(map[string]*Device)}
}

// Add registers dev under serial (host:port).
func (s *Server) Add(serial string, dev *Device) {
	s.mu.Lock()
	s.devices[serial] = dev
	s.mu.Unlock()
}

// FailConnect makes every Connect return err. A nil err clears it.
func (s *Server) FailConnect(err error) {
	s.mu.Lock()
	s.connectErr = err
	s.mu.Unlock()
}

// Configs returns the server configurations clients were created with.
func (s *Server) Configs() []adb.ServerConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]adb.ServerConfig(nil), s.configs...)
}

// Started returns how many times StartServer was called.
func (s *Server) Started() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Killed returns how many times KillServer was called.
func (s *Server) Killed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.killed
}

// Factory returns an adb.ClientFactory backed by s.
func (s *Server) Factory() adb.ClientFactory {
	return func(cfg adb.ServerConfig) (adb.Client, error) {
		s.mu.Lock()
		s.configs = append(s.configs, cfg)
		s.mu.Unlock()
		return &client{srv: s}, nil
	}
}

type client struct {
	srv *Server
}

func (c *client) StartServer() error {
	c.srv.mu.Lock()
	c.srv.started++
	c.srv.mu.Unlock()
	return nil
}

func (c *client) KillServer() error {
	c.srv.mu.Lock()
	c.srv.killed++
	c.srv.mu.Unlock()
	return nil
}

func (c *client) Connect(host string, port int) error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	return c.srv.connectErr
}

func (c *client) Device(serial string) adb.DeviceHandle {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if dev, ok := c.srv.devices[serial]; ok {
		return dev
	}
	return &Device{state: adb.StateOffline, files: map[string][]byte{}}
}
