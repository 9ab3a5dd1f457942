package entry

import (
	"reflect"

	"github.com/nerrad567/gray-logic-androidtv/internal/androidtv"
)

// MigrateOptions moves the legacy turn_on_command and turn_off_command keys
// into custom_commands. It reports whether anything changed.
//
// The migrated commands replace any existing custom_commands, matching the
// behaviour of entries created before custom commands existed.
func MigrateOptions(opts *Options) bool {
	custom := make(map[string]string)
	if opts.TurnOffCommand != "" {
		custom[androidtv.CustomTurnOff] = opts.TurnOffCommand
	}
	if opts.TurnOnCommand != "" {
		custom[androidtv.CustomTurnOn] = opts.TurnOnCommand
	}
	if len(custom) == 0 {
		return false
	}

	opts.TurnOnCommand = ""
	opts.TurnOffCommand = ""
	opts.CustomCommands = custom
	return true
}

// NeedsReload reports whether moving from old to updated options requires
// the device connection to be rebuilt. Only a change to the state detection
// rules does; everything else is applied to the running player.
func NeedsReload(old, updated Options) bool {
	if len(old.StateDetectionRules) == 0 && len(updated.StateDetectionRules) == 0 {
		return false
	}
	return !reflect.DeepEqual(old.StateDetectionRules, updated.StateDetectionRules)
}

// Rules parses the entry's state detection rules.
func (o Options) Rules() (androidtv.RuleSet, error) {
	if len(o.StateDetectionRules) == 0 {
		return nil, nil
	}
	return androidtv.ParseRuleSet(o.StateDetectionRules)
}
