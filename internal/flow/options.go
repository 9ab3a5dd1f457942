package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-androidtv/internal/androidtv"
	"github.com/nerrad567/gray-logic-androidtv/internal/entry"
)

// Options step field names.
const (
	FieldApps                = "apps"
	FieldGetSources          = "get_sources"
	FieldExcludeUnnamedApps  = "exclude_unnamed_apps"
	FieldScreencap           = "screencap"
	FieldCustomCommands      = "custom_commands"
	FieldStateDetectionRules = "state_detection_rules"

	FieldAppID     = "app_id"
	FieldAppName   = "app_name"
	FieldAppDelete = "app_delete"

	FieldCommandValue = "cmd_value"

	FieldRuleID     = "rule_id"
	FieldRuleValues = "rule_values"
	FieldRuleDelete = "rule_delete"
)

// optionsFlow edits the options of one entry. Apps, commands and rules are
// edited on a working copy that is stored when init is submitted without
// a selection.
type optionsFlow struct {
	m       *Manager
	entryID string
	current entry.Options

	apps     map[string]string
	commands map[string]string
	rules    map[string]any

	// The item being edited by the apps, commands or rules step.
	appID   string
	command string
	ruleID  string
}

func newOptionsFlow(m *Manager, e *entry.Entry) *optionsFlow {
	opts := e.Options.Clone()
	f := &optionsFlow{
		m:        m,
		entryID:  e.ID,
		current:  opts,
		apps:     opts.Apps,
		commands: opts.CustomCommands,
		rules:    opts.StateDetectionRules,
	}
	if f.apps == nil {
		f.apps = make(map[string]string)
	}
	if f.commands == nil {
		f.commands = make(map[string]string)
	}
	if f.rules == nil {
		f.rules = make(map[string]any)
	}
	return f
}

func (f *optionsFlow) step(ctx context.Context, stepID string, in Input) (Result, error) {
	switch stepID {
	case StepInit:
		return f.stepInit(ctx, in)
	case StepApps:
		return f.stepApps(in)
	case StepCommands:
		return f.stepCommands(in)
	case StepRules:
		return f.stepRules(in)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownStep, stepID)
	}
}

// ── Step: init ─────────────────────────────────────────────────────

func (f *optionsFlow) stepInit(ctx context.Context, in Input) (Result, error) {
	if in == nil {
		return f.initForm(nil), nil
	}

	errs := make(map[string]string)
	selected := func(key string) string {
		v, err := in.String(key)
		if err != nil {
			errs[key] = ErrorInvalidValue
		}
		return v
	}
	app := selected(FieldApps)
	cmd := selected(FieldCustomCommands)
	rule := selected(FieldStateDetectionRules)

	getSources, err := in.Bool(FieldGetSources, f.current.GetSourcesEnabled())
	if err != nil {
		errs[FieldGetSources] = ErrorInvalidValue
	}
	excludeUnnamed, err := in.Bool(FieldExcludeUnnamedApps, f.current.ExcludeUnnamed())
	if err != nil {
		errs[FieldExcludeUnnamedApps] = ErrorInvalidValue
	}
	screencap, err := in.Bool(FieldScreencap, f.current.ScreencapEnabled())
	if err != nil {
		errs[FieldScreencap] = ErrorInvalidValue
	}
	if len(errs) > 0 {
		return f.initForm(errs), nil
	}

	switch {
	case app != "":
		if app != NewApp {
			if _, ok := f.apps[app]; !ok {
				return f.initForm(map[string]string{FieldApps: ErrorInvalidValue}), nil
			}
		}
		f.appID = app
		return f.appsForm(), nil
	case cmd != "":
		if !androidtv.IsCustomizable(cmd) {
			return f.initForm(map[string]string{FieldCustomCommands: ErrorInvalidValue}), nil
		}
		f.command = cmd
		return f.commandsForm(), nil
	case rule != "":
		if rule != NewRule {
			if _, ok := f.rules[rule]; !ok {
				return f.initForm(map[string]string{FieldStateDetectionRules: ErrorInvalidValue}), nil
			}
		}
		f.ruleID = rule
		return f.rulesForm(nil), nil
	}

	return f.save(ctx, getSources, excludeUnnamed, screencap)
}

// save stores the options. Empty apps, commands and rules are left out.
func (f *optionsFlow) save(ctx context.Context, getSources, excludeUnnamed, screencap bool) (Result, error) {
	opts := entry.Options{
		GetSources:         &getSources,
		ExcludeUnnamedApps: &excludeUnnamed,
		Screencap:          &screencap,
	}
	if len(f.apps) > 0 {
		opts.Apps = maps.Clone(f.apps)
	}
	if len(f.commands) > 0 {
		opts.CustomCommands = maps.Clone(f.commands)
	}
	if len(f.rules) > 0 {
		opts.StateDetectionRules = maps.Clone(f.rules)
	}

	old, updated, err := f.m.store.UpdateOptions(ctx, f.entryID, opts)
	if err != nil {
		return Result{}, fmt.Errorf("saving options: %w", err)
	}

	f.m.logger.Info("entry options saved",
		"entry_id", f.entryID,
		"apps", len(opts.Apps),
		"custom_commands", len(opts.CustomCommands),
		"rules", len(opts.StateDetectionRules))

	if f.m.listener != nil {
		if err := f.m.listener.UpdateEntry(old, updated); err != nil {
			f.m.logger.Error("failed to apply options", "entry_id", f.entryID, "error", err)
		}
	}

	saved := updated.Options.Clone()
	return Result{Type: ResultCreateEntry, Title: updated.Title, Options: &saved}, nil
}

func (f *optionsFlow) initForm(errs map[string]string) Result {
	apps := []Option{{Value: NewApp, Label: "Add new"}}
	for _, id := range slices.Sorted(maps.Keys(f.apps)) {
		label := id
		if name := f.apps[id]; name != "" {
			label = fmt.Sprintf("%s (%s)", name, id)
		}
		apps = append(apps, Option{Value: id, Label: label})
	}

	commands := make([]Option, 0, len(androidtv.CustomizableCommands))
	for _, name := range androidtv.CustomizableCommands {
		commands = append(commands, Option{Value: name, Label: name})
	}

	rules := []Option{{Value: NewRule, Label: "Add new"}}
	for _, id := range slices.Sorted(maps.Keys(f.rules)) {
		rules = append(rules, Option{Value: id, Label: id})
	}

	return form(StepInit, []Field{
		{Name: FieldApps, Type: FieldSelect, Options: apps},
		{Name: FieldGetSources, Type: FieldBool, Default: f.current.GetSourcesEnabled()},
		{Name: FieldExcludeUnnamedApps, Type: FieldBool, Default: f.current.ExcludeUnnamed()},
		{Name: FieldScreencap, Type: FieldBool, Default: f.current.ScreencapEnabled()},
		{Name: FieldCustomCommands, Type: FieldSelect, Options: commands},
		{Name: FieldStateDetectionRules, Type: FieldSelect, Options: rules},
	}, errs)
}

// ── Step: apps ─────────────────────────────────────────────────────

func (f *optionsFlow) stepApps(in Input) (Result, error) {
	if in == nil {
		return f.appsForm(), nil
	}

	appID := f.appID
	if appID == NewApp {
		id, err := in.String(FieldAppID)
		if err != nil {
			return f.appsFormWithErrors(map[string]string{FieldAppID: ErrorInvalidValue}), nil
		}
		appID = id
	}
	name, err := in.String(FieldAppName)
	if err != nil {
		return f.appsFormWithErrors(map[string]string{FieldAppName: ErrorInvalidValue}), nil
	}
	remove, err := in.Bool(FieldAppDelete, false)
	if err != nil {
		return f.appsFormWithErrors(map[string]string{FieldAppDelete: ErrorInvalidValue}), nil
	}

	if appID != "" {
		if remove {
			delete(f.apps, appID)
		} else {
			f.apps[appID] = name
		}
	}
	f.appID = ""
	return f.initForm(nil), nil
}

func (f *optionsFlow) appsForm() Result {
	return f.appsFormWithErrors(nil)
}

func (f *optionsFlow) appsFormWithErrors(errs map[string]string) Result {
	if f.appID == NewApp {
		return form(StepApps, []Field{
			{Name: FieldAppName, Type: FieldString, Default: ""},
			{Name: FieldAppID, Type: FieldString, Required: true},
		}, errs)
	}

	res := form(StepApps, []Field{
		{Name: FieldAppName, Type: FieldString, Default: f.apps[f.appID]},
		{Name: FieldAppDelete, Type: FieldBool, Default: false},
	}, errs)
	res.Placeholders = map[string]string{"app_id": f.appID}
	return res
}

// ── Step: commands ─────────────────────────────────────────────────

func (f *optionsFlow) stepCommands(in Input) (Result, error) {
	if in == nil {
		return f.commandsForm(), nil
	}

	value, err := in.String(FieldCommandValue)
	if err != nil {
		res := f.commandsForm()
		res.Errors = map[string]string{FieldCommandValue: ErrorInvalidValue}
		return res, nil
	}

	if value == "" {
		delete(f.commands, f.command)
	} else {
		f.commands[f.command] = value
	}
	f.command = ""
	return f.initForm(nil), nil
}

func (f *optionsFlow) commandsForm() Result {
	res := form(StepCommands, []Field{
		{Name: FieldCommandValue, Type: FieldString, Default: nilIfEmpty(f.commands[f.command])},
	}, nil)
	res.Placeholders = map[string]string{"cmd_id": f.command}
	return res
}

// ── Step: rules ────────────────────────────────────────────────────

func (f *optionsFlow) stepRules(in Input) (Result, error) {
	if in == nil {
		return f.rulesForm(nil), nil
	}

	ruleID := f.ruleID
	if ruleID == NewRule {
		id, err := in.String(FieldRuleID)
		if err != nil {
			return f.rulesForm(map[string]string{FieldRuleID: ErrorInvalidValue}), nil
		}
		ruleID = id
	}

	// Without a rule id or rule values nothing changes.
	if ruleID == "" {
		f.ruleID = ""
		return f.initForm(nil), nil
	}

	remove, err := in.Bool(FieldRuleDelete, false)
	if err != nil {
		return f.rulesForm(map[string]string{FieldRuleDelete: ErrorInvalidValue}), nil
	}
	if remove {
		delete(f.rules, ruleID)
		f.ruleID = ""
		return f.initForm(nil), nil
	}

	if blankRuleValues(in[FieldRuleValues]) {
		f.ruleID = ""
		return f.initForm(nil), nil
	}

	rules, err := parseRuleValues(in[FieldRuleValues])
	if err != nil {
		f.m.logger.Debug("rejected state detection rules", "rule_id", ruleID, "error", err)
		res := f.rulesForm(map[string]string{baseError: ErrorInvalidDetRules})
		if f.ruleID == NewRule {
			res.Fields[0].Default = ruleID
		}
		return res, nil
	}

	f.rules[ruleID] = rules
	f.ruleID = ""
	return f.initForm(nil), nil
}

func blankRuleValues(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

// parseRuleValues accepts a JSON string or already-decoded JSON. A value
// that is not a list is wrapped into a one-element list.
func parseRuleValues(raw any) ([]any, error) {
	if s, ok := raw.(string); ok {
		decoded, err := androidtv.DecodeRules([]byte(s))
		if err != nil {
			return nil, err
		}
		raw = decoded
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: no rules given", androidtv.ErrInvalidRules)
	}

	list, ok := raw.([]any)
	if !ok {
		list = []any{raw}
	}
	if err := androidtv.ValidateRules(list); err != nil {
		return nil, err
	}
	return list, nil
}

func (f *optionsFlow) rulesForm(errs map[string]string) Result {
	var current any
	if rules, ok := f.rules[f.ruleID]; ok {
		if b, err := json.Marshal(rules); err == nil {
			current = string(b)
		}
	}

	if f.ruleID == NewRule {
		return form(StepRules, []Field{
			{Name: FieldRuleID, Type: FieldString, Required: true},
			{Name: FieldRuleValues, Type: FieldJSON, Required: true},
		}, errs)
	}

	res := form(StepRules, []Field{
		{Name: FieldRuleValues, Type: FieldJSON, Default: current},
		{Name: FieldRuleDelete, Type: FieldBool, Default: false},
	}, errs)
	res.Placeholders = map[string]string{"rule_id": f.ruleID}
	return res
}
