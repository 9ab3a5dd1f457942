package androidtv

import (
	"fmt"
	"math"
	"sort"
)

// Rule properties that a condition may test.
const (
	PropAudioState        = "audio_state"
	PropMediaSessionState = "media_session_state"
	PropWakeLockSize      = "wake_lock_size"
)

// Rule is one entry of a per-app state detection rule list.
//
// Exactly one of the fields is meaningful:
//   - State: the rule always yields this state
//   - Property: the state is taken from audio_state or media_session_state
//   - When: the rule yields State when every condition holds
type Rule struct {
	State    string
	Property string
	When     map[string]any
}

// RuleSet maps an app id to its ordered rules.
type RuleSet map[string][]Rule

// readings carries the raw values rules are evaluated against.
type readings struct {
	audioState   string
	mediaSession *int
	wakeLockSize *int
}

// ParseRules validates a JSON-decoded rule list and converts it to Rules.
//
// A state-keyed object with several states expands to one rule per state.
// A RuleObject keeps the order its states were written in; a plain map has
// no order, so its states are taken in lexical order.
func ParseRules(raw any) ([]Rule, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list, got %T", ErrInvalidRules, raw)
	}

	rules := make([]Rule, 0, len(list))
	for i, item := range list {
		switch v := item.(type) {
		case string:
			switch {
			case isValidState(v):
				rules = append(rules, Rule{State: v})
			case v == PropAudioState || v == PropMediaSessionState:
				rules = append(rules, Rule{Property: v})
			default:
				return nil, fmt.Errorf("%w: rule %d: %q is not a valid state or property", ErrInvalidRules, i, v)
			}

		case RuleObject:
			expanded, err := stateRules(i, v.States, v.Conditions)
			if err != nil {
				return nil, err
			}
			rules = append(rules, expanded...)

		case map[string]any:
			states := make([]string, 0, len(v))
			for state := range v {
				states = append(states, state)
			}
			sort.Strings(states)

			expanded, err := stateRules(i, states, v)
			if err != nil {
				return nil, err
			}
			rules = append(rules, expanded...)

		default:
			return nil, fmt.Errorf("%w: rule %d: unexpected %T", ErrInvalidRules, i, item)
		}
	}

	return rules, nil
}

// stateRules expands the states of rule i, in the given order.
func stateRules(i int, states []string, conditions map[string]any) ([]Rule, error) {
	rules := make([]Rule, 0, len(states))
	for _, state := range states {
		if !isValidState(state) {
			return nil, fmt.Errorf("%w: rule %d: %q is not a valid state", ErrInvalidRules, i, state)
		}
		conds, ok := conditions[state].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: rule %d: conditions for %q must be an object", ErrInvalidRules, i, state)
		}
		if err := validateConditions(conds); err != nil {
			return nil, fmt.Errorf("%w: rule %d: %s", ErrInvalidRules, i, err)
		}
		rules = append(rules, Rule{State: state, When: conds})
	}
	return rules, nil
}

// ParseRuleSet validates the rules of every app.
func ParseRuleSet(raw map[string]any) (RuleSet, error) {
	set := make(RuleSet, len(raw))
	for app, rules := range raw {
		parsed, err := ParseRules(rules)
		if err != nil {
			return nil, fmt.Errorf("app %s: %w", app, err)
		}
		set[app] = parsed
	}
	return set, nil
}

// ValidateRules reports whether a JSON-decoded rule list is acceptable.
func ValidateRules(raw any) error {
	_, err := ParseRules(raw)
	return err
}

func validateConditions(conds map[string]any) error {
	for prop, value := range conds {
		switch prop {
		case PropAudioState:
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("%s must be a string", prop)
			}
			if s != StateIdle && s != StatePaused && s != StatePlaying {
				return fmt.Errorf("%s must be idle, paused or playing", prop)
			}
		case PropMediaSessionState, PropWakeLockSize:
			if _, ok := asInt(value); !ok {
				return fmt.Errorf("%s must be an integer", prop)
			}
		default:
			return fmt.Errorf("%q is not a valid property", prop)
		}
	}
	return nil
}

func isValidState(s string) bool {
	for _, v := range ValidStates {
		if v == s {
			return true
		}
	}
	return false
}

// asInt accepts the integer forms produced by encoding/json and by Go callers.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// evaluate returns the state chosen by the first matching rule.
func evaluate(rules []Rule, p readings) (string, bool) {
	for _, r := range rules {
		switch {
		case r.Property == PropMediaSessionState:
			if s := mediaSessionToState(p.mediaSession); s != "" {
				return s, true
			}
		case r.Property == PropAudioState:
			if p.audioState != "" {
				return p.audioState, true
			}
		case r.When != nil:
			if matches(r.When, p) {
				return r.State, true
			}
		case r.State != "":
			return r.State, true
		}
	}
	return "", false
}

func matches(conds map[string]any, p readings) bool {
	for prop, want := range conds {
		switch prop {
		case PropAudioState:
			if p.audioState != want {
				return false
			}
		case PropMediaSessionState:
			n, _ := asInt(want)
			if p.mediaSession == nil || *p.mediaSession != n {
				return false
			}
		case PropWakeLockSize:
			n, _ := asInt(want)
			if p.wakeLockSize == nil || *p.wakeLockSize != n {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// mediaSessionToState maps PlaybackState values 2 and 3.
func mediaSessionToState(state *int) string {
	if state == nil {
		return ""
	}
	switch *state {
	case 2:
		return StatePaused
	case 3:
		return StatePlaying
	default:
		return ""
	}
}
