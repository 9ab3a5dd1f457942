package adb

import (
	"context"

	goadb "github.com/zach-klippenstein/goadb"
)

// StateChange is emitted when the adb server sees a device change state.
type StateChange struct {
	Serial   string
	OldState DeviceState
	NewState DeviceState
}

// Online reports whether the device became usable.
func (c StateChange) Online() bool {
	return c.NewState == StateOnline
}

// Watch streams device state changes from the adb server until ctx is done.
// The returned channel is closed when the watch ends.
func Watch(ctx context.Context, cfg ServerConfig) (<-chan StateChange, error) {
	client, err := goadb.NewWithConfig(goadb.ServerConfig{
		Host:      cfg.Host,
		Port:      cfg.Port,
		PathToAdb: cfg.PathToAdb,
	})
	if err != nil {
		return nil, err
	}

	watcher := client.NewDeviceWatcher()
	out := make(chan StateChange)

	go func() {
		defer close(out)
		defer watcher.Shutdown()

		events := watcher.C()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				change := StateChange{
					Serial:   ev.Serial,
					OldState: convertState(ev.OldState),
					NewState: convertState(ev.NewState),
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
