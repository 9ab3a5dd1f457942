package adb

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockDevice implements DeviceHandle.
type mockDevice struct {
	mu       sync.Mutex
	state    DeviceState
	stateErr error
	outputs  map[string]string
	runErr   error
	block    chan struct{}
	commands []string
	files    map[string][]byte
	perms    map[string]os.FileMode
}

func newMockDevice() *mockDevice {
	return &mockDevice{
		state:   StateOnline,
		outputs: make(map[string]string),
		files:   make(map[string][]byte),
		perms:   make(map[string]os.FileMode),
	}
}

func (d *mockDevice) State() (DeviceState, error) {
	return d.state, d.stateErr
}

func (d *mockDevice) RunCommand(cmd string, _ ...string) (string, error) {
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, cmd)
	if d.runErr != nil {
		return "", d.runErr
	}
	return d.outputs[cmd], nil
}

func (d *mockDevice) OpenRead(path string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (d *mockDevice) OpenWrite(path string, perms os.FileMode, _ time.Time) (io.WriteCloser, error) {
	return &mockWriter{dev: d, path: path, perms: perms}, nil
}

type mockWriter struct {
	dev   *mockDevice
	path  string
	perms os.FileMode
	buf   bytes.Buffer
}

func (w *mockWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *mockWriter) Close() error {
	w.dev.mu.Lock()
	defer w.dev.mu.Unlock()
	w.dev.files[w.path] = w.buf.Bytes()
	w.dev.perms[w.path] = w.perms
	return nil
}

// mockClient implements Client.
type mockClient struct {
	device     *mockDevice
	connectErr error
	started    int
	killed     int
	connected  []string
	serials    []string
}

func (c *mockClient) StartServer() error {
	c.started++
	return nil
}

func (c *mockClient) KillServer() error {
	c.killed++
	return nil
}

func (c *mockClient) Connect(host string, port int) error {
	c.connected = append(c.connected, host)
	return c.connectErr
}

func (c *mockClient) Device(serial string) DeviceHandle {
	c.serials = append(c.serials, serial)
	return c.device
}

func newTestSession(t *testing.T, client *mockClient, mutate func(*Options)) *Session {
	t.Helper()
	opts := Options{
		Host:       "192.168.1.50",
		ServerHost: "127.0.0.1",
		NewClient: func(ServerConfig) (Client, error) {
			return client, nil
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := NewSession(opts)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}

// useLocalKeys gives the test its own local key registry and a clean
// ADB_VENDOR_KEYS.
func useLocalKeys(t *testing.T) {
	t.Helper()
	saved := localKeys
	localKeys = newKeyRegistry()
	t.Setenv(vendorKeysEnv, "")
	t.Cleanup(func() { localKeys = saved })
}

func TestNewSession_Validation(t *testing.T) {
	if _, err := NewSession(Options{}); err == nil {
		t.Error("NewSession() with no host should fail")
	}

	_, err := NewSession(Options{Host: "tv", ServerHost: "adb", KeyPath: "/tmp/key"})
	if !errors.Is(err, ErrKeyAndServer) {
		t.Errorf("NewSession() error = %v, want ErrKeyAndServer", err)
	}
}

func TestNewSession_Defaults(t *testing.T) {
	s, err := NewSession(Options{Host: "tv"})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if s.Serial() != "tv:5555" {
		t.Errorf("Serial() = %q, want tv:5555", s.Serial())
	}
	if s.opts.LockTimeout != DefaultLockTimeout || s.opts.CommandTimeout != DefaultCommandTimeout {
		t.Errorf("timeouts not defaulted: %+v", s.opts)
	}
	if s.Available() {
		t.Error("new session should not be available")
	}
}

func TestSession_Describe(t *testing.T) {
	remote := newTestSession(t, &mockClient{}, func(o *Options) { o.ServerPort = 5038 })
	if got := remote.Describe(); got != "using ADB server at 127.0.0.1:5038" {
		t.Errorf("Describe() = %q", got)
	}

	local := newTestSession(t, &mockClient{}, func(o *Options) {
		o.ServerHost = ""
		o.KeyPath = "/data/adbkey"
	})
	if got := local.Describe(); got != "using local ADB server with adbkey='/data/adbkey'" {
		t.Errorf("Describe() = %q", got)
	}
}

func TestSession_ConnectRemote(t *testing.T) {
	client := &mockClient{device: newMockDevice()}
	s := newTestSession(t, client, nil)

	if !s.Connect(context.Background(), true) {
		t.Fatal("Connect() = false, want true")
	}
	if !s.Available() {
		t.Error("session should be available after connect")
	}
	if client.started != 0 {
		t.Error("remote mode must not start a local server")
	}
	if len(client.serials) != 1 || client.serials[0] != "192.168.1.50:5555" {
		t.Errorf("device serials = %v", client.serials)
	}
}

func TestSession_ConnectLocalGeneratesKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "adbkey")
	client := &mockClient{device: newMockDevice()}
	s := newTestSession(t, client, func(o *Options) {
		o.ServerHost = ""
		o.KeyPath = keyPath
	})
	useLocalKeys(t)

	if !s.Connect(context.Background(), true) {
		t.Fatal("Connect() = false, want true")
	}
	if client.started != 1 {
		t.Errorf("StartServer called %d times, want 1", client.started)
	}
	if _, err := os.Stat(keyPath); err != nil {
		t.Errorf("key not generated: %v", err)
	}
	if got := os.Getenv(vendorKeysEnv); got != keyPath {
		t.Errorf("%s = %q, want %q", vendorKeysEnv, got, keyPath)
	}
}

func TestSession_ConnectLocalOffersEveryKey(t *testing.T) {
	useLocalKeys(t)
	dir := t.TempDir()
	firstKey := filepath.Join(dir, "adbkey")
	secondKey := filepath.Join(dir, "lounge_adbkey")

	client := &mockClient{device: newMockDevice()}
	local := func(key string) *Session {
		return newTestSession(t, client, func(o *Options) {
			o.ServerHost = ""
			o.KeyPath = key
		})
	}

	first := local(firstKey)
	if !first.Connect(context.Background(), true) {
		t.Fatal("first Connect() = false, want true")
	}
	if client.started != 1 {
		t.Fatalf("StartServer called %d times, want 1", client.started)
	}
	killedBefore := client.killed

	second := local(secondKey)
	if !second.Connect(context.Background(), true) {
		t.Fatal("second Connect() = false, want true")
	}
	want := firstKey + string(os.PathListSeparator) + secondKey
	if got := os.Getenv(vendorKeysEnv); got != want {
		t.Errorf("%s = %q, want %q", vendorKeysEnv, got, want)
	}
	if client.killed != killedBefore+1 || client.started != 2 {
		t.Errorf("new key should restart the server: killed %d, started %d", client.killed-killedBefore, client.started)
	}

	// Reconnecting with a known key leaves the server alone.
	if !first.Connect(context.Background(), true) {
		t.Fatal("reconnect Connect() = false, want true")
	}
	if client.killed != killedBefore+1 {
		t.Errorf("known key restarted the server")
	}
}

func TestSession_ConnectLocalWithoutKey(t *testing.T) {
	useLocalKeys(t)
	client := &mockClient{device: newMockDevice()}
	s := newTestSession(t, client, func(o *Options) { o.ServerHost = "" })

	if !s.Connect(context.Background(), true) {
		t.Fatal("Connect() = false, want true")
	}
	if client.killed != 0 {
		t.Errorf("server killed %d times without any key configured", client.killed)
	}
	if got := os.Getenv(vendorKeysEnv); got != "" {
		t.Errorf("%s = %q, want empty", vendorKeysEnv, got)
	}
}

func TestSession_ConnectFailures(t *testing.T) {
	tests := []struct {
		name   string
		client *mockClient
	}{
		{"connect error", &mockClient{device: newMockDevice(), connectErr: errors.New("refused")}},
		{"unauthorized", &mockClient{device: &mockDevice{state: StateUnauthorized}}},
		{"offline", &mockClient{device: &mockDevice{state: StateOffline}}},
		{"state error", &mockClient{device: &mockDevice{stateErr: io.EOF}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, tt.client, nil)
			if s.Connect(context.Background(), false) {
				t.Error("Connect() = true, want false")
			}
			if s.Available() {
				t.Error("session should not be available")
			}
		})
	}
}

func TestSession_ShellBeforeConnect(t *testing.T) {
	s := newTestSession(t, &mockClient{device: newMockDevice()}, nil)

	_, err := s.Shell(context.Background(), "echo hi")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Shell() error = %v, want ErrNotConnected", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Shell() error = %v should be a transport error", err)
	}
}

func TestSession_Shell(t *testing.T) {
	dev := newMockDevice()
	dev.outputs["getprop ro.product.model"] = "SHIELD Android TV\n"
	s := newTestSession(t, &mockClient{device: dev}, nil)
	s.Connect(context.Background(), true)

	out, err := s.Shell(context.Background(), "getprop ro.product.model")
	if err != nil {
		t.Fatalf("Shell() error = %v", err)
	}
	if strings.TrimSpace(out) != "SHIELD Android TV" {
		t.Errorf("Shell() = %q", out)
	}
}

func TestSession_ShellErrorClasses(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransport bool
	}{
		{"eof", io.EOF, true},
		{"deadline", os.ErrDeadlineExceeded, true},
		{"unexpected", errors.New("weird"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newMockDevice()
			s := newTestSession(t, &mockClient{device: dev}, nil)
			s.Connect(context.Background(), true)
			dev.runErr = tt.err

			_, err := s.Shell(context.Background(), "true")
			if err == nil {
				t.Fatal("Shell() error = nil")
			}
			if got := errors.Is(err, ErrTransport); got != tt.wantTransport {
				t.Errorf("errors.Is(err, ErrTransport) = %v, want %v (err %v)", got, tt.wantTransport, err)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("error %v should wrap %v", err, tt.err)
			}
			if !strings.HasPrefix(err.Error(), "shell: ") {
				t.Errorf("error %q should name the operation", err)
			}
		})
	}
}

func TestSession_LockNotAcquired(t *testing.T) {
	dev := newMockDevice()
	s := newTestSession(t, &mockClient{device: dev}, func(o *Options) {
		o.LockTimeout = 20 * time.Millisecond
	})
	s.Connect(context.Background(), true)

	dev.block = make(chan struct{})
	first := make(chan error, 1)
	go func() {
		_, err := s.Shell(context.Background(), "sleep")
		first <- err
	}()

	// Wait until the first call holds the lock.
	deadline := time.Now().Add(time.Second)
	for len(s.lock) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	_, err := s.Shell(context.Background(), "echo")
	if !errors.Is(err, ErrLockNotAcquired) {
		t.Errorf("Shell() error = %v, want ErrLockNotAcquired", err)
	}

	close(dev.block)
	if err := <-first; err != nil {
		t.Errorf("first Shell() error = %v", err)
	}
}

func TestSession_CommandTimeout(t *testing.T) {
	dev := newMockDevice()
	s := newTestSession(t, &mockClient{device: dev}, func(o *Options) {
		o.CommandTimeout = 20 * time.Millisecond
	})
	s.Connect(context.Background(), true)

	dev.block = make(chan struct{})
	defer close(dev.block)

	_, err := s.Shell(context.Background(), "hang")
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, ErrTransport) {
		t.Errorf("Shell() error = %v, want transport deadline error", err)
	}
}

func TestSession_Close(t *testing.T) {
	s := newTestSession(t, &mockClient{device: newMockDevice()}, nil)
	s.Connect(context.Background(), true)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if s.Available() {
		t.Error("session should not be available after Close")
	}
	if _, err := s.Shell(context.Background(), "true"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Shell() after Close error = %v", err)
	}
}

func TestSession_PullPush(t *testing.T) {
	dev := newMockDevice()
	dev.files["/sdcard/log.txt"] = []byte("hello")
	s := newTestSession(t, &mockClient{device: dev}, nil)
	s.Connect(context.Background(), true)

	dir := t.TempDir()
	local := filepath.Join(dir, "nested", "log.txt")
	if err := s.Pull(context.Background(), "/sdcard/log.txt", local); err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	data, err := os.ReadFile(local)
	if err != nil || string(data) != "hello" {
		t.Errorf("pulled file = %q, %v", data, err)
	}

	upload := filepath.Join(dir, "upload.sh")
	if err := os.WriteFile(upload, []byte("#!/bin/sh"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := s.Push(context.Background(), upload, "/data/local/tmp/upload.sh"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if string(dev.files["/data/local/tmp/upload.sh"]) != "#!/bin/sh" {
		t.Errorf("pushed content = %q", dev.files["/data/local/tmp/upload.sh"])
	}
	if dev.perms["/data/local/tmp/upload.sh"] != 0o750 {
		t.Errorf("pushed perms = %v, want 0750", dev.perms["/data/local/tmp/upload.sh"])
	}

	if err := s.Pull(context.Background(), "/missing", filepath.Join(dir, "x")); err == nil {
		t.Error("Pull() of a missing file should fail")
	}
}

func TestIsTransport(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrNotConnected, true},
		{ErrUnauthorized, true},
		{io.ErrUnexpectedEOF, true},
		{context.DeadlineExceeded, true},
		{errors.New("boom"), false},
		{ErrLockNotAcquired, false},
	}
	for _, tt := range tests {
		if got := IsTransport(tt.err); got != tt.want {
			t.Errorf("IsTransport(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
