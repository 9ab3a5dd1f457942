package player

import (
	"context"
	"fmt"
	"sort"
)

// Media-player commands accepted by Execute.
const (
	CommandPlay          = "play"
	CommandPause         = "pause"
	CommandPlayPause     = "play_pause"
	CommandStop          = "stop"
	CommandNextTrack     = "next_track"
	CommandPreviousTrack = "previous_track"
	CommandTurnOn        = "turn_on"
	CommandTurnOff       = "turn_off"
	CommandSelectSource  = "select_source"
	CommandVolumeMute    = "volume_mute"
	CommandVolumeSet     = "volume_set"
	CommandVolumeUp      = "volume_up"
	CommandVolumeDown    = "volume_down"
)

type handler func(p *Player, ctx context.Context, params map[string]any) error

func simple(fn func(*Player, context.Context) error) handler {
	return func(p *Player, ctx context.Context, _ map[string]any) error {
		return fn(p, ctx)
	}
}

var commands = map[string]handler{
	CommandPlay:          simple((*Player).MediaPlay),
	CommandPause:         simple((*Player).MediaPause),
	CommandPlayPause:     simple((*Player).MediaPlayPause),
	CommandStop:          simple((*Player).MediaStop),
	CommandNextTrack:     simple((*Player).MediaNextTrack),
	CommandPreviousTrack: simple((*Player).MediaPreviousTrack),
	CommandTurnOn:        simple((*Player).TurnOn),
	CommandTurnOff:       simple((*Player).TurnOff),
	CommandVolumeUp:      simple((*Player).VolumeUp),
	CommandVolumeDown:    simple((*Player).VolumeDown),
	CommandSelectSource: func(p *Player, ctx context.Context, params map[string]any) error {
		source, err := stringParam(params, "source")
		if err != nil {
			return err
		}
		return p.SelectSource(ctx, source)
	},
	CommandVolumeMute: func(p *Player, ctx context.Context, params map[string]any) error {
		mute, ok := params["is_volume_muted"].(bool)
		if !ok {
			return fmt.Errorf("%w: 'is_volume_muted' must be a boolean", ErrInvalidParameters)
		}
		return p.MuteVolume(ctx, mute)
	},
	CommandVolumeSet: func(p *Player, ctx context.Context, params map[string]any) error {
		level, ok := params["volume_level"].(float64)
		if !ok {
			return fmt.Errorf("%w: 'volume_level' must be a number", ErrInvalidParameters)
		}
		return p.SetVolumeLevel(ctx, level)
	},
}

var services = map[string]handler{
	ServiceADBCommand: func(p *Player, ctx context.Context, params map[string]any) error {
		cmd, err := stringParam(params, "command")
		if err != nil {
			return err
		}
		return p.ADBCommand(ctx, cmd)
	},
	ServiceLearnSendevent: simple((*Player).LearnSendevent),
	ServiceDownload: func(p *Player, ctx context.Context, params map[string]any) error {
		devicePath, localPath, err := transferParams(params)
		if err != nil {
			return err
		}
		return p.Download(ctx, devicePath, localPath)
	},
	ServiceUpload: func(p *Player, ctx context.Context, params map[string]any) error {
		devicePath, localPath, err := transferParams(params)
		if err != nil {
			return err
		}
		return p.Upload(ctx, devicePath, localPath)
	},
}

// Execute runs a media-player command by name. A command skipped because
// the device connection was busy fails with ErrBusy.
func (p *Player) Execute(ctx context.Context, command string, params map[string]any) error {
	h, ok := commands[command]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, command)
	}
	return h(p, withBusyReport(ctx), params)
}

// CallService runs one of the integration services by name. Like Execute,
// it fails with ErrBusy when the command was skipped.
func (p *Player) CallService(ctx context.Context, service string, params map[string]any) error {
	h, ok := services[service]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	return h(p, withBusyReport(ctx), params)
}

type busyReportKey struct{}

// withBusyReport marks ctx so a command skipped on a busy connection
// returns ErrBusy instead of nil.
func withBusyReport(ctx context.Context) context.Context {
	return context.WithValue(ctx, busyReportKey{}, true)
}

func reportsBusy(ctx context.Context) bool {
	v, _ := ctx.Value(busyReportKey{}).(bool)
	return v
}

// Commands lists the command names Execute accepts.
func Commands() []string {
	return sortedKeys(commands)
}

// Services lists the service names CallService accepts.
func Services() []string {
	return sortedKeys(services)
}

func sortedKeys(m map[string]handler) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringParam(params map[string]any, key string) (string, error) {
	s, ok := params[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: '%s' is required", ErrInvalidParameters, key)
	}
	return s, nil
}

func transferParams(params map[string]any) (devicePath, localPath string, err error) {
	if devicePath, err = stringParam(params, "device_path"); err != nil {
		return "", "", err
	}
	if localPath, err = stringParam(params, "local_path"); err != nil {
		return "", "", err
	}
	return devicePath, localPath, nil
}
