package adb

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
)

// localKeys is the set of private keys the local adb server is started with.
// The server reads ADB_VENDOR_KEYS once at startup, so every session in the
// process shares one key list.
var localKeys = newKeyRegistry()

type keyRegistry struct {
	mu      sync.Mutex
	paths   []string
	applied string
	started bool
}

func newKeyRegistry() *keyRegistry {
	return &keyRegistry{}
}

// list returns the registered paths joined the way ADB_VENDOR_KEYS expects.
func (r *keyRegistry) list() string {
	return strings.Join(r.paths, string(os.PathListSeparator))
}

// startServer adds path to the key set and makes sure the local server runs
// with the full set. A server started with a different key list is killed
// and started again. An empty path adds nothing.
func (r *keyRegistry) startServer(client Client, path string) (restarted bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if path != "" && !slices.Contains(r.paths, path) {
		r.paths = append(r.paths, path)
	}
	keys := r.list()

	if keys != "" {
		if err := os.Setenv(vendorKeysEnv, keys); err != nil {
			return false, fmt.Errorf("setting %s: %w", vendorKeysEnv, err)
		}
	}

	// A server already running when the first key is registered may hold
	// other keys, so it is replaced too. Devices on a restarted server drop
	// their connection and reconnect on the next poll.
	if keys != r.applied {
		// KillServer fails when no server is running.
		_ = client.KillServer()
		restarted = r.started
	}
	if err := client.StartServer(); err != nil {
		return restarted, err
	}
	r.applied = keys
	r.started = true
	return restarted, nil
}
