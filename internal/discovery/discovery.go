package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/logging"
)

// ErrDisabled is returned by Discover when discovery is switched off.
var ErrDisabled = errors.New("discovery: disabled")

const (
	defaultDomain  = "local."
	defaultTimeout = 3 * time.Second
)

// Device is one host found on the LAN.
type Device struct {
	Instance string   `json:"instance"`
	Service  string   `json:"service"`
	HostName string   `json:"hostname"`
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Text     []string `json:"txt,omitempty"`
}

// Browser runs one mDNS browse. *zeroconf.Resolver satisfies it. Browse
// returns at once and closes entries when ctx is done.
type Browser interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// Scanner browses the configured services.
type Scanner struct {
	cfg        config.DiscoveryConfig
	newBrowser func() (Browser, error)
	logger     *logging.Logger
}

// NewScanner creates a scanner for cfg.
func NewScanner(cfg config.DiscoveryConfig, logger *logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scanner{
		cfg: cfg,
		newBrowser: func() (Browser, error) {
			return zeroconf.NewResolver(nil)
		},
		logger: logger.Component("discovery"),
	}
}

// Enabled reports whether discovery is switched on.
func (s *Scanner) Enabled() bool {
	return s.cfg.Enabled
}

// Discover browses every configured service for the configured timeout and
// returns the devices found, one per host, ordered by host.
func (s *Scanner) Discover(ctx context.Context) ([]Device, error) {
	if !s.cfg.Enabled {
		return nil, ErrDisabled
	}

	timeout := time.Duration(s.cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	domain := s.cfg.Domain
	if domain == "" {
		domain = defaultDomain
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		found = make(map[string]Device)
		wg    sync.WaitGroup
	)

	for _, service := range s.cfg.Services {
		browser, err := s.newBrowser()
		if err != nil {
			return nil, fmt.Errorf("creating mdns resolver: %w", err)
		}

		entries := make(chan *zeroconf.ServiceEntry)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case e, ok := <-entries:
					if !ok {
						return
					}
					d, ok := toDevice(e)
					if !ok {
						continue
					}
					mu.Lock()
					if _, seen := found[d.Host]; !seen {
						found[d.Host] = d
					}
					mu.Unlock()
				}
			}
		}()

		if err := browser.Browse(ctx, service, domain, entries); err != nil {
			cancel()
			wg.Wait()
			return nil, fmt.Errorf("browsing %s: %w", service, err)
		}
	}

	wg.Wait()

	devices := make([]Device, 0, len(found))
	for _, d := range found {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Host < devices[j].Host })

	s.logger.Debug("mdns browse complete", "devices", len(devices))
	return devices, nil
}

// toDevice converts a resolved entry, preferring its first IPv4 address.
func toDevice(e *zeroconf.ServiceEntry) (Device, bool) {
	if e == nil {
		return Device{}, false
	}

	var host string
	switch {
	case len(e.AddrIPv4) > 0:
		host = e.AddrIPv4[0].String()
	case len(e.AddrIPv6) > 0:
		host = e.AddrIPv6[0].String()
	default:
		return Device{}, false
	}

	return Device{
		Instance: e.Instance,
		Service:  e.Service,
		HostName: e.HostName,
		Host:     host,
		Port:     e.Port,
		Text:     e.Text,
	}, true
}
