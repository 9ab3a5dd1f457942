package adb

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/logging"
)

// Default timeouts.
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultCommandTimeout = 10 * time.Second
	DefaultLockTimeout    = 3 * time.Second
	DefaultServerPort     = 5037
	DefaultDevicePort     = 5555
)

// vendorKeysEnv tells the adb server which extra private keys to offer.
const vendorKeysEnv = "ADB_VENDOR_KEYS"

// Options configures a Session.
type Options struct {
	// Host and Port address the device's adb daemon.
	Host string
	Port int

	// ServerHost selects a remote adb server. Empty means a local server is
	// started offering KeyPath along with the keys of every other local
	// session in the process.
	ServerHost string
	ServerPort int

	// KeyPath is the private key for local mode. It is generated when missing.
	KeyPath string

	// LocalServerHost/LocalServerPort address the local adb server.
	LocalServerHost string
	LocalServerPort int

	// ADBPath is the adb executable for starting a local server.
	ADBPath string

	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	LockTimeout    time.Duration

	Logger *logging.Logger

	// NewClient overrides the goadb-backed client. Used by tests.
	NewClient ClientFactory
}

// Session is the ADB link to one device.
type Session struct {
	opts   Options
	logger *logging.Logger

	// lock serialises device calls; a send acquires it.
	lock chan struct{}

	mu        sync.Mutex
	client    Client
	device    DeviceHandle
	available bool
}

// NewSession validates opts and returns a disconnected Session.
func NewSession(opts Options) (*Session, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("adb: host is required")
	}
	if opts.ServerHost != "" && opts.KeyPath != "" {
		return nil, ErrKeyAndServer
	}
	if opts.Port == 0 {
		opts.Port = DefaultDevicePort
	}
	if opts.ServerPort == 0 {
		opts.ServerPort = DefaultServerPort
	}
	if opts.LocalServerHost == "" {
		opts.LocalServerHost = "127.0.0.1"
	}
	if opts.LocalServerPort == 0 {
		opts.LocalServerPort = DefaultServerPort
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.NewClient == nil {
		opts.NewClient = NewGoADBClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Session{
		opts:   opts,
		logger: logger.Component("adb", "device", net.JoinHostPort(opts.Host, fmt.Sprint(opts.Port))),
		lock:   make(chan struct{}, 1),
	}, nil
}

// Serial is the adb serial of the device (host:port).
func (s *Session) Serial() string {
	return net.JoinHostPort(s.opts.Host, fmt.Sprint(s.opts.Port))
}

// Describe says how the session reaches the device, for log and error messages.
func (s *Session) Describe() string {
	if s.opts.ServerHost != "" {
		return fmt.Sprintf("using ADB server at %s:%d", s.opts.ServerHost, s.opts.ServerPort)
	}
	return fmt.Sprintf("using local ADB server with adbkey='%s'", s.opts.KeyPath)
}

// Available reports whether the last Connect succeeded and no call has
// failed since.
func (s *Session) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// Connect opens the link to the device. Failures are logged at warn level
// when logErrors is set and at debug level otherwise, so a device that stays
// offline is reported once.
func (s *Session) Connect(ctx context.Context, logErrors bool) bool {
	err := s.run(ctx, s.opts.ConnectTimeout, "connect", func() error {
		return s.connect()
	})
	if err != nil {
		if logErrors {
			s.logger.Warn("could not connect to device", "via", s.Describe(), "error", err)
		} else {
			s.logger.Debug("could not connect to device", "via", s.Describe(), "error", err)
		}
		return false
	}

	s.logger.Debug("connected to device", "via", s.Describe())
	return true
}

func (s *Session) connect() error {
	cfg := ServerConfig{PathToAdb: s.opts.ADBPath}

	if s.opts.ServerHost != "" {
		cfg.Host = s.opts.ServerHost
		cfg.Port = s.opts.ServerPort
	} else {
		if _, err := EnsureKey(s.opts.KeyPath); err != nil {
			return fmt.Errorf("preparing adb key: %w", err)
		}
		cfg.Host = s.opts.LocalServerHost
		cfg.Port = s.opts.LocalServerPort
	}

	client, err := s.opts.NewClient(cfg)
	if err != nil {
		return err
	}

	if s.opts.ServerHost == "" {
		keyPath := ""
		if s.opts.KeyPath != "" {
			keyPath = ExpandPath(s.opts.KeyPath)
		}
		restarted, err := localKeys.startServer(client, keyPath)
		if err != nil {
			return err
		}
		if restarted {
			s.logger.Info("restarted local adb server with new key", "keys", os.Getenv(vendorKeysEnv))
		}
	}

	if err := client.Connect(s.opts.Host, s.opts.Port); err != nil {
		return err
	}

	device := client.Device(s.Serial())
	state, err := device.State()
	if err != nil {
		return err
	}
	switch state {
	case StateOnline:
	case StateUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("%w: state %s", ErrDeviceOffline, state)
	}

	s.mu.Lock()
	s.client = client
	s.device = device
	s.available = true
	s.mu.Unlock()
	return nil
}

// Close drops the link. The next call fails with ErrNotConnected until
// Connect succeeds again.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.device = nil
	s.available = false
	return nil
}

func (s *Session) handle() (DeviceHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return nil, ErrNotConnected
	}
	return s.device, nil
}

// Shell runs cmd in the device shell.
func (s *Session) Shell(ctx context.Context, cmd string) (string, error) {
	var out string
	err := s.run(ctx, s.opts.CommandTimeout, "shell", func() error {
		dev, err := s.handle()
		if err != nil {
			return err
		}
		out, err = dev.RunCommand(cmd)
		return err
	})
	return out, err
}

// Pull copies devicePath from the device into localPath.
func (s *Session) Pull(ctx context.Context, devicePath, localPath string) error {
	return s.run(ctx, 0, "pull", func() error {
		dev, err := s.handle()
		if err != nil {
			return err
		}

		src, err := dev.OpenRead(devicePath)
		if err != nil {
			return err
		}
		defer src.Close()

		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return err
		}
		dst, err := os.Create(localPath)
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return err
		}
		return dst.Close()
	})
}

// Push copies localPath to devicePath on the device, keeping the file mode.
func (s *Session) Push(ctx context.Context, localPath, devicePath string) error {
	return s.run(ctx, 0, "push", func() error {
		dev, err := s.handle()
		if err != nil {
			return err
		}

		src, err := os.Open(localPath)
		if err != nil {
			return err
		}
		defer src.Close()

		info, err := src.Stat()
		if err != nil {
			return err
		}

		dst, err := dev.OpenWrite(devicePath, info.Mode().Perm(), info.ModTime())
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return err
		}
		return dst.Close()
	})
}

// run executes fn while holding the session lock.
//
// The lock is released when fn returns, even if the caller gave up on a
// timeout first; later calls see ErrLockNotAcquired until then.
func (s *Session) run(ctx context.Context, timeout time.Duration, op string, fn func() error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer s.release()
		done <- fn()
	}()

	select {
	case err := <-done:
		return classify(op, err)
	case <-ctx.Done():
		return classify(op, ctx.Err())
	}
}

func (s *Session) acquire(ctx context.Context) error {
	timer := time.NewTimer(s.opts.LockTimeout)
	defer timer.Stop()

	select {
	case s.lock <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrLockNotAcquired
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) release() {
	<-s.lock
}
