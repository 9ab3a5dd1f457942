package entry

import (
	"encoding/json"
	"fmt"
	"maps"
	"net"
	"time"

	"github.com/nerrad567/gray-logic-androidtv/internal/androidtv"
)

// Defaults applied when a value is not set.
const (
	DefaultPort          = 5555
	DefaultADBServerPort = 5037
	DefaultDeviceClass   = androidtv.ClassAndroidTV

	DefaultGetSources         = true
	DefaultExcludeUnnamedApps = false
	DefaultScreencap          = true
)

// Data holds the connection parameters of an entry.
type Data struct {
	Host          string                `json:"host"`
	Port          int                   `json:"port"`
	DeviceClass   androidtv.DeviceClass `json:"device_class"`
	ADBKey        string                `json:"adbkey,omitempty"`
	ADBServerIP   string                `json:"adb_server_ip,omitempty"`
	ADBServerPort int                   `json:"adb_server_port,omitempty"`

	// Name overrides the default "{Android TV|Fire TV} {host}" entity name.
	Name string `json:"name,omitempty"`
}

// Address returns host:port.
func (d Data) Address() string {
	return net.JoinHostPort(d.Host, fmt.Sprint(d.Port))
}

// UsesServer reports whether the entry talks to a remote adb server.
func (d Data) UsesServer() bool {
	return d.ADBServerIP != ""
}

// Validate checks the fields a connection needs.
func (d Data) Validate() error {
	if d.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidEntry)
	}
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidEntry, d.Port)
	}
	if _, err := androidtv.ParseDeviceClass(string(d.DeviceClass)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if d.UsesServer() && (d.ADBServerPort < 1 || d.ADBServerPort > 65535) {
		return fmt.Errorf("%w: adb_server_port must be 1-65535, got %d", ErrInvalidEntry, d.ADBServerPort)
	}
	return nil
}

// Options holds the user-editable settings of an entry.
//
// Nil pointer switches mean "use the default".
type Options struct {
	Apps                map[string]string `json:"apps,omitempty"`
	GetSources          *bool             `json:"get_sources,omitempty"`
	ExcludeUnnamedApps  *bool             `json:"exclude_unnamed_apps,omitempty"`
	Screencap           *bool             `json:"screencap,omitempty"`
	CustomCommands      map[string]string `json:"custom_commands,omitempty"`
	StateDetectionRules map[string]any    `json:"state_detection_rules,omitempty"`

	// Legacy keys, moved into CustomCommands by MigrateOptions.
	TurnOnCommand  string `json:"turn_on_command,omitempty"`
	TurnOffCommand string `json:"turn_off_command,omitempty"`
}

// UnmarshalJSON decodes options, keeping the written order of the states in
// each state detection rule.
func (o *Options) UnmarshalJSON(b []byte) error {
	type plain Options
	var aux struct {
		plain
		StateDetectionRules map[string]json.RawMessage `json:"state_detection_rules,omitempty"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	*o = Options(aux.plain)
	if aux.StateDetectionRules == nil {
		return nil
	}
	o.StateDetectionRules = make(map[string]any, len(aux.StateDetectionRules))
	for app, raw := range aux.StateDetectionRules {
		rules, err := androidtv.DecodeRules(raw)
		if err != nil {
			return fmt.Errorf("state_detection_rules[%s]: %w", app, err)
		}
		o.StateDetectionRules[app] = rules
	}
	return nil
}

// GetSourcesEnabled returns get_sources or its default.
func (o Options) GetSourcesEnabled() bool { return boolOr(o.GetSources, DefaultGetSources) }

// ExcludeUnnamed returns exclude_unnamed_apps or its default.
func (o Options) ExcludeUnnamed() bool {
	return boolOr(o.ExcludeUnnamedApps, DefaultExcludeUnnamedApps)
}

// ScreencapEnabled returns screencap or its default.
func (o Options) ScreencapEnabled() bool { return boolOr(o.Screencap, DefaultScreencap) }

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	c := o
	c.Apps = maps.Clone(o.Apps)
	c.CustomCommands = maps.Clone(o.CustomCommands)
	c.StateDetectionRules = cloneAny(o.StateDetectionRules).(map[string]any)
	if o.GetSources != nil {
		v := *o.GetSources
		c.GetSources = &v
	}
	if o.ExcludeUnnamedApps != nil {
		v := *o.ExcludeUnnamedApps
		c.ExcludeUnnamedApps = &v
	}
	if o.Screencap != nil {
		v := *o.Screencap
		c.Screencap = &v
	}
	return c
}

// cloneAny deep-copies decoded JSON values.
func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return map[string]any(nil)
		}
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneAny(e)
		}
		return m
	case androidtv.RuleObject:
		return androidtv.RuleObject{
			States:     append([]string(nil), t.States...),
			Conditions: cloneAny(t.Conditions).(map[string]any),
		}
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneAny(e)
		}
		return s
	default:
		return v
	}
}

// Entry is one configured device.
type Entry struct {
	ID        string    `json:"id"`
	UniqueID  string    `json:"unique_id"`
	Title     string    `json:"title"`
	Data      Data      `json:"data"`
	Options   Options   `json:"options"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns an independent copy of e.
func (e *Entry) DeepCopy() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Options = e.Options.Clone()
	return &c
}

// DisplayName is the entity name: Data.Name or "{prefix} {host}".
func (e *Entry) DisplayName(class androidtv.DeviceClass) string {
	if e.Data.Name != "" {
		return e.Data.Name
	}
	return class.Prefix() + " " + e.Data.Host
}
