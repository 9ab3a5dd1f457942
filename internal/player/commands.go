package player

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/nerrad567/gray-logic-androidtv/internal/androidtv"
)

// GetPropertiesCommand makes ADBCommand store the raw device properties.
const GetPropertiesCommand = "GET_PROPERTIES"

// Service names.
const (
	ServiceADBCommand     = "adb_command"
	ServiceLearnSendevent = "learn_sendevent"
	ServiceDownload       = "download"
	ServiceUpload         = "upload"
)

// notificationTitle is the title of notifications raised by the player.
const notificationTitle = "Android TV"

// MediaPlay sends play.
func (p *Player) MediaPlay(ctx context.Context) error {
	return p.guard(ctx, false, p.device.MediaPlay)
}

// MediaPause sends pause.
func (p *Player) MediaPause(ctx context.Context) error {
	return p.guard(ctx, false, p.device.MediaPause)
}

// MediaPlayPause toggles playback.
func (p *Player) MediaPlayPause(ctx context.Context) error {
	return p.guard(ctx, false, p.device.MediaPlayPause)
}

// MediaStop stops playback. Fire TV has no working stop key, so back is sent.
func (p *Player) MediaStop(ctx context.Context) error {
	if p.class == androidtv.ClassFireTV {
		return p.guard(ctx, false, p.device.Back)
	}
	return p.guard(ctx, false, p.device.MediaStop)
}

// MediaNextTrack sends next track (fast-forward in most apps).
func (p *Player) MediaNextTrack(ctx context.Context) error {
	return p.guard(ctx, false, p.device.MediaNext)
}

// MediaPreviousTrack sends previous track (rewind in most apps).
func (p *Player) MediaPreviousTrack(ctx context.Context) error {
	return p.guard(ctx, false, p.device.MediaPrevious)
}

// TurnOn turns the device on.
func (p *Player) TurnOn(ctx context.Context) error {
	return p.guard(ctx, false, p.device.TurnOn)
}

// TurnOff turns the device off.
func (p *Player) TurnOff(ctx context.Context) error {
	return p.guard(ctx, false, p.device.TurnOff)
}

// SelectSource launches the app named source. A leading "!" stops it instead.
// Unknown names are used as app ids.
func (p *Player) SelectSource(ctx context.Context, source string) error {
	return p.guard(ctx, false, func(ctx context.Context) error {
		if !strings.HasPrefix(source, "!") {
			return p.device.LaunchApp(ctx, p.appID(source))
		}
		name := strings.TrimLeftFunc(source[1:], unicode.IsSpace)
		return p.device.StopApp(ctx, p.appID(name))
	})
}

func (p *Player) appID(name string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id, ok := p.appNameToID[name]; ok {
		return id
	}
	return name
}

// MuteVolume sets the mute state. The mute key is only sent when the current
// state is known and differs.
func (p *Player) MuteVolume(ctx context.Context, mute bool) error {
	if !p.features.Has(FeatureVolumeMute) {
		return ErrNotSupported
	}
	return p.guard(ctx, false, func(ctx context.Context) error {
		muted, err := p.device.IsVolumeMuted(ctx)
		if err != nil {
			return err
		}
		if muted == nil || *muted == mute {
			return nil
		}
		return p.device.MuteVolume(ctx)
	})
}

// SetVolumeLevel sets the volume to level (0..1).
func (p *Player) SetVolumeLevel(ctx context.Context, level float64) error {
	if !p.features.Has(FeatureVolumeSet) {
		return ErrNotSupported
	}
	if level < 0 || level > 1 || math.IsNaN(level) {
		return fmt.Errorf("%w: volume_level must be 0-1, got %v", androidtv.ErrInvalidVolume, level)
	}
	return p.guard(ctx, false, func(ctx context.Context) error {
		applied, err := p.device.SetVolumeLevel(ctx, level)
		if err != nil {
			return err
		}
		p.setVolumeLevel(&applied)
		return nil
	})
}

// VolumeUp raises the volume one step.
func (p *Player) VolumeUp(ctx context.Context) error {
	if !p.features.Has(FeatureVolumeStep) {
		return ErrNotSupported
	}
	return p.guard(ctx, false, func(ctx context.Context) error {
		level, err := p.device.VolumeUp(ctx, p.volumeLevel())
		if err != nil {
			return err
		}
		p.setVolumeLevel(level)
		return nil
	})
}

// VolumeDown lowers the volume one step.
func (p *Player) VolumeDown(ctx context.Context) error {
	if !p.features.Has(FeatureVolumeStep) {
		return ErrNotSupported
	}
	return p.guard(ctx, false, func(ctx context.Context) error {
		level, err := p.device.VolumeDown(ctx, p.volumeLevel())
		if err != nil {
			return err
		}
		p.setVolumeLevel(level)
		return nil
	})
}

// ADBCommand sends a key name from the key table as a key event, stores the
// device properties for GET_PROPERTIES, and otherwise runs command in the
// shell and stores its trimmed, non-empty output in adb_response.
func (p *Player) ADBCommand(ctx context.Context, command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("%w: command is required", ErrInvalidParameters)
	}
	return p.guard(ctx, false, func(ctx context.Context) error {
		if code, ok := androidtv.Keys[command]; ok {
			return p.device.Key(ctx, code)
		}

		if command == GetPropertiesCommand {
			snap, err := p.device.Update(ctx, true)
			if err != nil {
				return err
			}
			props, err := json.Marshal(snap.Map())
			if err != nil {
				return err
			}
			p.setADBResponse(string(props))
			return nil
		}

		out, err := p.device.Shell(ctx, command)
		if err != nil {
			return err
		}
		if resp := strings.TrimSpace(out); resp != "" {
			p.setADBResponse(resp)
		}
		return nil
	})
}

// LearnSendevent records a key press on the physical remote and stores the
// sendevent commands that replay it. The result is also raised as a
// notification.
func (p *Player) LearnSendevent(ctx context.Context) error {
	return p.guard(ctx, false, func(ctx context.Context) error {
		out, err := p.device.LearnSendevent(ctx)
		if err != nil {
			return err
		}
		if out == "" {
			return nil
		}
		p.setADBResponse(out)

		msg := fmt.Sprintf("Output from service '%s' from %s: '%s'", ServiceLearnSendevent, p.name, out)
		if p.notifier != nil {
			p.notifier.Notify(notificationTitle, msg)
		}
		p.logger.Info(msg)
		return nil
	})
}

// Download copies devicePath from the device to localPath, which must be
// inside an allowed directory.
func (p *Player) Download(ctx context.Context, devicePath, localPath string) error {
	return p.guard(ctx, false, func(ctx context.Context) error {
		if !PathAllowed(p.allowed, localPath) {
			p.logger.Warn("path is not allowed for file transfer", "local_path", localPath)
			return nil
		}
		return p.device.Pull(ctx, devicePath, localPath)
	})
}

// Upload copies localPath, which must be inside an allowed directory, to
// devicePath on the device.
func (p *Player) Upload(ctx context.Context, devicePath, localPath string) error {
	return p.guard(ctx, false, func(ctx context.Context) error {
		if !PathAllowed(p.allowed, localPath) {
			p.logger.Warn("path is not allowed for file transfer", "local_path", localPath)
			return nil
		}
		return p.device.Push(ctx, localPath, devicePath)
	})
}

// MediaImage returns a screen capture as PNG. It returns no data when
// screencap is disabled, the player is off or unavailable, or the capture
// was skipped.
func (p *Player) MediaImage(ctx context.Context) ([]byte, string, error) {
	p.mu.RLock()
	enabled := p.screencap && p.available && p.state.State != "" && p.state.State != StateOff
	p.mu.RUnlock()
	if !enabled {
		return nil, "", nil
	}

	var data []byte
	err := p.guard(ctx, false, func(ctx context.Context) error {
		var err error
		data, err = p.device.Screencap(ctx)
		return err
	})
	if err != nil || len(data) == 0 {
		return nil, "", err
	}
	return data, "image/png", nil
}
