package flow

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-androidtv/internal/entry"
)

// ResultType says what a step produced.
type ResultType string

// Result types.
const (
	ResultForm        ResultType = "form"
	ResultCreateEntry ResultType = "create_entry"
	ResultAbort       ResultType = "abort"
)

// Kind names the flow a result belongs to.
type Kind string

// Flow kinds.
const (
	KindConfig  Kind = "config"
	KindOptions Kind = "options"
)

// Source is how a config flow was started.
type Source string

// Config flow sources.
const (
	SourceUser     Source = "user"
	SourceZeroconf Source = "zeroconf"
)

// Step IDs.
const (
	StepUser     = "user"
	StepZeroconf = "zeroconf"
	StepInit     = "init"
	StepApps     = "apps"
	StepCommands = "commands"
	StepRules    = "rules"
)

// Form error keys and abort reasons.
const (
	ErrorKeyAndServer    = "key_and_server"
	ErrorADBKeyNotFile   = "adbkey_not_file"
	ErrorCannotConnect   = "cannot_connect"
	ErrorUnknown         = "unknown"
	ErrorInvalidDetRules = "invalid_det_rules"
	ErrorInvalidValue    = "invalid_value"
	ErrorRequired        = "required"

	ReasonAlreadyConfigured = "already_configured"
	ReasonInvalidUniqueID   = "invalid_unique_id"
	ReasonNoDevicesFound    = "no_devices_found"
)

// baseError is the Errors key for errors not tied to one field.
const baseError = "base"

// Selector values that branch into a sub-step rather than naming an item.
const (
	NewApp  = "NewApp"
	NewRule = "NewRule"
)

// Field types.
const (
	FieldString = "string"
	FieldInt    = "int"
	FieldBool   = "bool"
	FieldSelect = "select"
	FieldJSON   = "json"
)

// Option is one choice of a select field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field describes one input of a form.
type Field struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required,omitempty"`
	Default  any      `json:"default,omitempty"`
	Options  []Option `json:"options,omitempty"`
}

// Result is the outcome of starting or advancing a flow.
type Result struct {
	FlowID  string     `json:"flow_id"`
	Kind    Kind       `json:"kind"`
	Type    ResultType `json:"type"`
	StepID  string     `json:"step_id,omitempty"`
	EntryID string     `json:"entry_id,omitempty"`

	// Form results.
	Fields       []Field           `json:"fields,omitempty"`
	Errors       map[string]string `json:"errors,omitempty"`
	Placeholders map[string]string `json:"description_placeholders,omitempty"`

	// Abort results.
	Reason string `json:"reason,omitempty"`

	// Create results. Entry is set by a config flow and Options by an
	// options flow.
	Title   string         `json:"title,omitempty"`
	Entry   *entry.Entry   `json:"entry,omitempty"`
	Options *entry.Options `json:"options,omitempty"`
}

func form(step string, fields []Field, errs map[string]string) Result {
	if len(errs) == 0 {
		errs = nil
	}
	return Result{Type: ResultForm, StepID: step, Fields: fields, Errors: errs}
}

func abort(reason string) Result {
	return Result{Type: ResultAbort, Reason: reason}
}

// ── Input ──────────────────────────────────────────────────────────

// Input is the JSON-decoded body submitted for a step. A nil Input asks the
// step for its form.
type Input map[string]any

// Has reports whether key was submitted.
func (in Input) Has(key string) bool {
	_, ok := in[key]
	return ok
}

// String returns key as a trimmed string, or "" when absent.
func (in Input) String(key string) (string, error) {
	v, ok := in[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected a string, got %T", key, v)
	}
	return strings.TrimSpace(s), nil
}

// Int returns key as an int, or def when absent. Numeric strings are
// accepted.
func (in Input) Int(key string, def int) (int, error) {
	v, ok := in[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%s: %v is not a whole number", key, n)
		}
		return int(n), nil
	case int:
		return n, nil
	case string:
		if strings.TrimSpace(n) == "" {
			return def, nil
		}
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%s: expected a number, got %T", key, v)
	}
}

// Bool returns key as a bool, or def when absent.
func (in Input) Bool(key string, def bool) (bool, error) {
	v, ok := in[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: expected a boolean, got %T", key, v)
	}
	return b, nil
}
