package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-androidtv/internal/adb"
	"github.com/nerrad567/gray-logic-androidtv/internal/androidtv"
	"github.com/nerrad567/gray-logic-androidtv/internal/entry"
)

// User step field names.
const (
	FieldHost          = "host"
	FieldDeviceClass   = "device_class"
	FieldPort          = "port"
	FieldADBKey        = "adbkey"
	FieldADBServerIP   = "adb_server_ip"
	FieldADBServerPort = "adb_server_port"
)

// Checker connects to the device described by data and returns its unique
// id. An empty id means the device reported no usable MAC address.
type Checker func(ctx context.Context, data entry.Data) (string, error)

// ConnectChecker returns a Checker that opens a real adb session with cfg,
// reads the device properties and closes the session again.
func ConnectChecker(cfg entry.ConnectConfig) Checker {
	return func(ctx context.Context, data entry.Data) (string, error) {
		conn, err := entry.Connect(ctx, data, nil, cfg)
		if err != nil {
			return "", err
		}
		defer conn.Close() //nolint:errcheck // Close never fails

		return androidtv.MAC(conn.Device.Properties()), nil
	}
}

// configFlow creates a new entry.
type configFlow struct {
	m        *Manager
	advanced bool

	// defaults prefill the user form, from a previous submit or a
	// discovered device.
	defaults entry.Data

	// discovered maps host to label for the zeroconf selector.
	discovered []Option
}

func newConfigFlow(m *Manager, advanced bool) *configFlow {
	return &configFlow{
		m:        m,
		advanced: advanced,
		defaults: entry.Data{
			Port:          entry.DefaultPort,
			DeviceClass:   entry.DefaultDeviceClass,
			ADBServerPort: entry.DefaultADBServerPort,
		},
	}
}

func (f *configFlow) step(ctx context.Context, stepID string, in Input) (Result, error) {
	switch stepID {
	case StepUser:
		return f.stepUser(ctx, in)
	case StepZeroconf:
		return f.stepZeroconf(ctx, in)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownStep, stepID)
	}
}

// ── Step: zeroconf ─────────────────────────────────────────────────

func (f *configFlow) stepZeroconf(ctx context.Context, in Input) (Result, error) {
	if in == nil {
		devices, err := f.m.discoverer.Discover(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("discovering devices: %w", err)
		}

		f.discovered = f.discovered[:0]
		for _, d := range devices {
			if f.m.store.HostConfigured(d.Host) {
				continue
			}
			f.discovered = append(f.discovered, Option{
				Value: d.Host,
				Label: fmt.Sprintf("%s (%s)", d.Instance, d.Host),
			})
		}
		if len(f.discovered) == 0 {
			return abort(ReasonNoDevicesFound), nil
		}
		return f.zeroconfForm(nil), nil
	}

	host, err := in.String(FieldHost)
	if err != nil || !f.isDiscovered(host) {
		return f.zeroconfForm(map[string]string{FieldHost: ErrorInvalidValue}), nil
	}

	f.defaults.Host = host
	return f.userForm(nil), nil
}

func (f *configFlow) isDiscovered(host string) bool {
	for _, o := range f.discovered {
		if o.Value == host {
			return true
		}
	}
	return false
}

func (f *configFlow) zeroconfForm(errs map[string]string) Result {
	return form(StepZeroconf, []Field{
		{Name: FieldHost, Type: FieldSelect, Required: true, Options: f.discovered},
	}, errs)
}

// ── Step: user ─────────────────────────────────────────────────────

func (f *configFlow) stepUser(ctx context.Context, in Input) (Result, error) {
	if in == nil {
		return f.userForm(nil), nil
	}

	data, errs := f.parseUser(in)
	f.defaults = data
	if len(errs) > 0 {
		return f.userForm(errs), nil
	}

	switch {
	case data.ADBKey != "" && data.ADBServerIP != "":
		return f.userForm(map[string]string{baseError: ErrorKeyAndServer}), nil
	case data.ADBKey != "" && !adb.IsReadableFile(data.ADBKey):
		return f.userForm(map[string]string{FieldADBKey: ErrorADBKeyNotFile}), nil
	}
	if !data.UsesServer() {
		data.ADBServerPort = 0
	}

	if f.m.store.HostConfigured(data.Host) {
		return abort(ReasonAlreadyConfigured), nil
	}

	uniqueID, err := f.m.checker(ctx, data)
	if err != nil {
		code := ErrorUnknown
		if errors.Is(err, entry.ErrCannotConnect) {
			code = ErrorCannotConnect
		}
		f.m.logger.Warn("device check failed", "host", data.Host, "error", err)
		return f.userForm(map[string]string{baseError: code}), nil
	}
	if uniqueID == "" {
		return abort(ReasonInvalidUniqueID), nil
	}
	if f.m.store.UniqueIDConfigured(uniqueID) {
		return abort(ReasonAlreadyConfigured), nil
	}

	e := &entry.Entry{
		UniqueID: uniqueID,
		Title:    data.Host,
		Data:     data,
	}
	if err := f.m.store.Create(ctx, e); err != nil {
		if errors.Is(err, entry.ErrHostConfigured) || errors.Is(err, entry.ErrEntryExists) {
			return abort(ReasonAlreadyConfigured), nil
		}
		return Result{}, fmt.Errorf("creating entry: %w", err)
	}

	f.m.logger.Info("entry created", "entry_id", e.ID, "host", data.Host, "unique_id", uniqueID)
	if f.m.listener != nil {
		if err := f.m.listener.AddEntry(e.DeepCopy()); err != nil {
			f.m.logger.Error("failed to start player for new entry", "entry_id", e.ID, "error", err)
		}
	}

	return Result{Type: ResultCreateEntry, EntryID: e.ID, Title: e.Title, Entry: e}, nil
}

// parseUser reads the user form. Field errors are keyed by field name.
func (f *configFlow) parseUser(in Input) (entry.Data, map[string]string) {
	errs := make(map[string]string)
	data := f.defaults

	host, err := in.String(FieldHost)
	switch {
	case err != nil:
		errs[FieldHost] = ErrorInvalidValue
	case host == "":
		errs[FieldHost] = ErrorRequired
	}
	data.Host = host

	class, err := in.String(FieldDeviceClass)
	if err == nil && class == "" {
		class = string(entry.DefaultDeviceClass)
	}
	if parsed, perr := androidtv.ParseDeviceClass(class); err != nil || perr != nil {
		errs[FieldDeviceClass] = ErrorInvalidValue
	} else {
		data.DeviceClass = parsed
	}

	port, err := in.Int(FieldPort, entry.DefaultPort)
	if err != nil || !validPort(port) {
		errs[FieldPort] = ErrorInvalidValue
	}
	data.Port = port

	if !f.advanced {
		data.ADBKey, data.ADBServerIP, data.ADBServerPort = "", "", entry.DefaultADBServerPort
		return data, errs
	}

	if data.ADBKey, err = in.String(FieldADBKey); err != nil {
		errs[FieldADBKey] = ErrorInvalidValue
	}
	if data.ADBServerIP, err = in.String(FieldADBServerIP); err != nil {
		errs[FieldADBServerIP] = ErrorInvalidValue
	}
	serverPort, err := in.Int(FieldADBServerPort, entry.DefaultADBServerPort)
	if err != nil || !validPort(serverPort) {
		errs[FieldADBServerPort] = ErrorInvalidValue
	}
	data.ADBServerPort = serverPort

	return data, errs
}

func (f *configFlow) userForm(errs map[string]string) Result {
	classes := make([]Option, 0, len(androidtv.DeviceClasses))
	for _, c := range androidtv.DeviceClasses {
		classes = append(classes, Option{Value: string(c), Label: string(c)})
	}

	fields := []Field{
		{Name: FieldHost, Type: FieldString, Required: true, Default: nilIfEmpty(f.defaults.Host)},
		{Name: FieldDeviceClass, Type: FieldSelect, Required: true, Default: string(f.defaults.DeviceClass), Options: classes},
		{Name: FieldPort, Type: FieldInt, Required: true, Default: f.defaults.Port},
	}
	if f.advanced {
		serverPort := f.defaults.ADBServerPort
		if serverPort == 0 {
			serverPort = entry.DefaultADBServerPort
		}
		fields = append(fields,
			Field{Name: FieldADBKey, Type: FieldString, Default: nilIfEmpty(f.defaults.ADBKey)},
			Field{Name: FieldADBServerIP, Type: FieldString, Default: nilIfEmpty(f.defaults.ADBServerIP)},
			Field{Name: FieldADBServerPort, Type: FieldInt, Default: serverPort},
		)
	}
	return form(StepUser, fields, errs)
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
