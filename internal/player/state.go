package player

import (
	"slices"

	"github.com/nerrad567/gray-logic-androidtv/internal/androidtv"
)

// Entity states.
const (
	StateOff     = "off"
	StateIdle    = "idle"
	StateStandby = "standby"
	StatePlaying = "playing"
	StatePaused  = "paused"
)

// entityStates maps device states to entity states. A device state missing
// here makes the entity unavailable.
var entityStates = map[string]string{
	androidtv.StateOff:     StateOff,
	androidtv.StateIdle:    StateIdle,
	androidtv.StateStandby: StateStandby,
	androidtv.StatePlaying: StatePlaying,
	androidtv.StatePaused:  StatePaused,
}

// Attributes are the extra state attributes of a player.
type Attributes struct {
	ADBResponse *string `json:"adb_response"`
	HDMIInput   *string `json:"hdmi_input"`
}

// State is the entity state of a player as published to the hub.
type State struct {
	EntryID       string     `json:"entry_id"`
	Name          string     `json:"name"`
	Available     bool       `json:"available"`
	State         string     `json:"state,omitempty"`
	AppID         string     `json:"app_id,omitempty"`
	AppName       string     `json:"app_name,omitempty"`
	Source        string     `json:"source,omitempty"`
	SourceList    []string   `json:"source_list"`
	IsVolumeMuted *bool      `json:"is_volume_muted"`
	VolumeLevel   *float64   `json:"volume_level"`
	Attributes    Attributes `json:"attributes"`
	Features      []string   `json:"supported_features"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	c.SourceList = slices.Clone(s.SourceList)
	c.Features = slices.Clone(s.Features)
	if s.IsVolumeMuted != nil {
		v := *s.IsVolumeMuted
		c.IsVolumeMuted = &v
	}
	if s.VolumeLevel != nil {
		v := *s.VolumeLevel
		c.VolumeLevel = &v
	}
	if s.Attributes.ADBResponse != nil {
		v := *s.Attributes.ADBResponse
		c.Attributes.ADBResponse = &v
	}
	if s.Attributes.HDMIInput != nil {
		v := *s.Attributes.HDMIInput
		c.Attributes.HDMIInput = &v
	}
	return c
}

// Map flattens s for telemetry and change detection.
func (s State) Map() map[string]any {
	m := map[string]any{
		"available": s.Available,
		"state":     s.State,
		"app_id":    s.AppID,
		"source":    s.Source,
	}
	if s.IsVolumeMuted != nil {
		m["is_volume_muted"] = *s.IsVolumeMuted
	}
	if s.VolumeLevel != nil {
		m["volume_level"] = *s.VolumeLevel
	}
	if s.Attributes.HDMIInput != nil {
		m["hdmi_input"] = *s.Attributes.HDMIInput
	}
	return m
}

// DeviceInfo describes the physical device behind a player.
type DeviceInfo struct {
	Identifier   string `json:"identifier"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer,omitempty"`
	SWVersion    string `json:"sw_version,omitempty"`
	MAC          string `json:"mac,omitempty"`
}

// NewDeviceInfo builds the device info from the properties read at connect.
func NewDeviceInfo(uniqueID, name string, class androidtv.DeviceClass, props androidtv.Properties) DeviceInfo {
	devType := class.Prefix()
	model := devType
	if props.Model != "" {
		model = props.Model + " (" + devType + ")"
	}
	return DeviceInfo{
		Identifier:   uniqueID,
		Name:         name,
		Model:        model,
		Manufacturer: props.Manufacturer,
		SWVersion:    props.SWVersion,
		MAC:          androidtv.MAC(props),
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
