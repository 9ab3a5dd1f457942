package flow

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gray-logic-androidtv/internal/androidtv"
	"github.com/nerrad567/gray-logic-androidtv/internal/discovery"
	"github.com/nerrad567/gray-logic-androidtv/internal/entry"
)

// newTestRegistry returns a registry over an in-memory database.
func newTestRegistry(t *testing.T) *entry.Registry {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE config_entries (
			id TEXT PRIMARY KEY,
			unique_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			host TEXT NOT NULL UNIQUE,
			data TEXT NOT NULL DEFAULT '{}',
			options TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}
	return entry.NewRegistry(entry.NewSQLiteRepository(db))
}

// fakeChecker returns a fixed unique id or error and records the data it saw.
type fakeChecker struct {
	mu       sync.Mutex
	uniqueID string
	err      error
	seen     []entry.Data
}

func (c *fakeChecker) check(_ context.Context, data entry.Data) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, data)
	return c.uniqueID, c.err
}

func (c *fakeChecker) set(uniqueID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uniqueID, c.err = uniqueID, err
}

// fakeListener records entry changes.
type fakeListener struct {
	added   []*entry.Entry
	updated [][2]*entry.Entry
}

func (l *fakeListener) AddEntry(e *entry.Entry) error {
	l.added = append(l.added, e)
	return nil
}

func (l *fakeListener) UpdateEntry(old, updated *entry.Entry) error {
	l.updated = append(l.updated, [2]*entry.Entry{old, updated})
	return nil
}

type fakeDiscoverer struct {
	devices []discovery.Device
	err     error
}

func (d fakeDiscoverer) Discover(context.Context) ([]discovery.Device, error) {
	return d.devices, d.err
}

type testRig struct {
	m        *Manager
	registry *entry.Registry
	checker  *fakeChecker
	listener *fakeListener
}

func newTestRig(t *testing.T, disc Discoverer) *testRig {
	t.Helper()
	rig := &testRig{
		registry: newTestRegistry(t),
		checker:  &fakeChecker{uniqueID: "aa:bb:cc:dd:ee:ff"},
		listener: &fakeListener{},
	}
	m, err := NewManager(Config{
		Store:      rig.registry,
		Checker:    rig.checker.check,
		Listener:   rig.listener,
		Discoverer: disc,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	rig.m = m
	return rig
}

// addEntry stores an entry directly, bypassing the flow.
func (r *testRig) addEntry(t *testing.T, host, uniqueID string, opts entry.Options) *entry.Entry {
	t.Helper()
	e := &entry.Entry{
		UniqueID: uniqueID,
		Data:     entry.Data{Host: host, Port: entry.DefaultPort, DeviceClass: androidtv.ClassAndroidTV},
		Options:  opts,
	}
	if err := r.registry.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return e
}

func mustStep(t *testing.T, res Result, err error, wantType ResultType, wantStep string) Result {
	t.Helper()
	if err != nil {
		t.Fatalf("step error = %v", err)
	}
	if res.Type != wantType || res.StepID != wantStep {
		t.Fatalf("result = %s/%s (errors %v, reason %q), want %s/%s",
			res.Type, res.StepID, res.Errors, res.Reason, wantType, wantStep)
	}
	return res
}

func fieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func field(t *testing.T, res Result, name string) Field {
	t.Helper()
	for _, f := range res.Fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("field %q not in %v", name, fieldNames(res.Fields))
	return Field{}
}

// ── Config flow ────────────────────────────────────────────────────

func TestNewManager_Validation(t *testing.T) {
	if _, err := NewManager(Config{Checker: (&fakeChecker{}).check}); err == nil {
		t.Error("expected error without store")
	}
	if _, err := NewManager(Config{Store: newTestRegistry(t)}); err == nil {
		t.Error("expected error without checker")
	}
}

func TestConfigFlow_UserCreatesEntry(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	res, err := rig.m.StartConfig(ctx, SourceUser, false)
	res = mustStep(t, res, err, ResultForm, StepUser)
	if got := fieldNames(res.Fields); len(got) != 3 {
		t.Errorf("fields = %v, want host, device_class, port", got)
	}
	if f := field(t, res, FieldPort); f.Default != entry.DefaultPort {
		t.Errorf("port default = %v", f.Default)
	}
	if f := field(t, res, FieldDeviceClass); f.Default != "androidtv" || len(f.Options) != 3 {
		t.Errorf("device_class = %+v", f)
	}

	res, err = rig.m.Configure(ctx, res.FlowID, Input{
		FieldHost:        "192.168.1.50",
		FieldDeviceClass: "firetv",
		FieldPort:        float64(5556),
	})
	res = mustStep(t, res, err, ResultCreateEntry, "")

	if res.Title != "192.168.1.50" || res.Entry == nil || res.Kind != KindConfig {
		t.Fatalf("result = %+v", res)
	}
	e, err := rig.registry.Get(res.EntryID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if e.UniqueID != "aa:bb:cc:dd:ee:ff" || e.Data.Port != 5556 || e.Data.DeviceClass != androidtv.ClassFireTV {
		t.Errorf("stored entry = %+v", e)
	}
	if e.Data.ADBServerPort != 0 {
		t.Errorf("adb_server_port = %d, want dropped without a server", e.Data.ADBServerPort)
	}
	if len(rig.listener.added) != 1 || rig.listener.added[0].ID != e.ID {
		t.Errorf("listener added = %+v", rig.listener.added)
	}
	if rig.m.Len() != 0 {
		t.Errorf("Len() = %d, finished flows should be dropped", rig.m.Len())
	}
}

func TestConfigFlow_Advanced(t *testing.T) {
	ctx := context.Background()
	keyPath := filepath.Join(t.TempDir(), "adbkey")
	if err := os.WriteFile(keyPath, []byte("key"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("form has server fields", func(t *testing.T) {
		rig := newTestRig(t, nil)
		res, err := rig.m.StartConfig(ctx, SourceUser, true)
		res = mustStep(t, res, err, ResultForm, StepUser)
		if len(res.Fields) != 6 {
			t.Errorf("fields = %v", fieldNames(res.Fields))
		}
		if f := field(t, res, FieldADBServerPort); f.Default != entry.DefaultADBServerPort {
			t.Errorf("adb_server_port default = %v", f.Default)
		}
	})

	t.Run("key and server", func(t *testing.T) {
		rig := newTestRig(t, nil)
		res, _ := rig.m.StartConfig(ctx, SourceUser, true)
		res, err := rig.m.Configure(ctx, res.FlowID, Input{
			FieldHost: "192.168.1.50", FieldADBKey: keyPath, FieldADBServerIP: "10.0.0.2",
		})
		res = mustStep(t, res, err, ResultForm, StepUser)
		if res.Errors["base"] != ErrorKeyAndServer {
			t.Errorf("errors = %v", res.Errors)
		}
		if f := field(t, res, FieldHost); f.Default != "192.168.1.50" {
			t.Errorf("host default = %v, want previous input", f.Default)
		}
	})

	t.Run("key not a file", func(t *testing.T) {
		rig := newTestRig(t, nil)
		res, _ := rig.m.StartConfig(ctx, SourceUser, true)
		res, err := rig.m.Configure(ctx, res.FlowID, Input{
			FieldHost: "192.168.1.50", FieldADBKey: filepath.Join(t.TempDir(), "missing"),
		})
		res = mustStep(t, res, err, ResultForm, StepUser)
		if res.Errors[FieldADBKey] != ErrorADBKeyNotFile {
			t.Errorf("errors = %v", res.Errors)
		}
	})

	t.Run("key not readable", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root can read any file")
		}
		locked := filepath.Join(t.TempDir(), "locked_adbkey")
		if err := os.WriteFile(locked, []byte("key"), 0o000); err != nil {
			t.Fatal(err)
		}

		rig := newTestRig(t, nil)
		res, _ := rig.m.StartConfig(ctx, SourceUser, true)
		res, err := rig.m.Configure(ctx, res.FlowID, Input{
			FieldHost: "192.168.1.50", FieldADBKey: locked,
		})
		res = mustStep(t, res, err, ResultForm, StepUser)
		if res.Errors[FieldADBKey] != ErrorADBKeyNotFile {
			t.Errorf("errors = %v", res.Errors)
		}
		if len(rig.checker.seen) != 0 {
			t.Error("checker should not run with an unreadable key")
		}
	})

	t.Run("key is a directory", func(t *testing.T) {
		rig := newTestRig(t, nil)
		res, _ := rig.m.StartConfig(ctx, SourceUser, true)
		res, err := rig.m.Configure(ctx, res.FlowID, Input{
			FieldHost: "192.168.1.50", FieldADBKey: t.TempDir(),
		})
		res = mustStep(t, res, err, ResultForm, StepUser)
		if res.Errors[FieldADBKey] != ErrorADBKeyNotFile {
			t.Errorf("errors = %v", res.Errors)
		}
	})

	t.Run("key file", func(t *testing.T) {
		rig := newTestRig(t, nil)
		res, _ := rig.m.StartConfig(ctx, SourceUser, true)
		res, err := rig.m.Configure(ctx, res.FlowID, Input{
			FieldHost: "192.168.1.50", FieldADBKey: keyPath,
		})
		res = mustStep(t, res, err, ResultCreateEntry, "")
		if res.Entry.Data.ADBKey != keyPath || res.Entry.Data.ADBServerPort != 0 {
			t.Errorf("data = %+v", res.Entry.Data)
		}
	})

	t.Run("server keeps port", func(t *testing.T) {
		rig := newTestRig(t, nil)
		res, _ := rig.m.StartConfig(ctx, SourceUser, true)
		res, err := rig.m.Configure(ctx, res.FlowID, Input{
			FieldHost: "192.168.1.50", FieldADBServerIP: "10.0.0.2",
		})
		res = mustStep(t, res, err, ResultCreateEntry, "")
		if res.Entry.Data.ADBServerIP != "10.0.0.2" || res.Entry.Data.ADBServerPort != entry.DefaultADBServerPort {
			t.Errorf("data = %+v", res.Entry.Data)
		}
	})
}

func TestConfigFlow_AdvancedFieldsIgnoredInBasicMode(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	res, _ := rig.m.StartConfig(ctx, SourceUser, false)
	res, err := rig.m.Configure(ctx, res.FlowID, Input{
		FieldHost: "192.168.1.50", FieldADBServerIP: "10.0.0.2",
	})
	res = mustStep(t, res, err, ResultCreateEntry, "")
	if res.Entry.Data.UsesServer() {
		t.Errorf("data = %+v, server fields should be ignored", res.Entry.Data)
	}
}

func TestConfigFlow_ConnectErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"cannot connect", &entry.ConnectError{Message: "Could not connect"}, ErrorCannotConnect},
		{"unexpected", errors.New("boom"), ErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, nil)
			ctx := context.Background()
			rig.checker.set("", tt.err)

			res, _ := rig.m.StartConfig(ctx, SourceUser, false)
			flowID := res.FlowID
			res, err := rig.m.Configure(ctx, flowID, Input{FieldHost: "192.168.1.50"})
			res = mustStep(t, res, err, ResultForm, StepUser)
			if res.Errors["base"] != tt.want {
				t.Errorf("errors = %v, want base %s", res.Errors, tt.want)
			}

			// The flow stays open for a retry.
			rig.checker.set("aa:bb:cc:dd:ee:ff", nil)
			res, err = rig.m.Configure(ctx, flowID, Input{FieldHost: "192.168.1.50"})
			mustStep(t, res, err, ResultCreateEntry, "")
		})
	}
}

func TestConfigFlow_Aborts(t *testing.T) {
	ctx := context.Background()

	t.Run("host configured", func(t *testing.T) {
		rig := newTestRig(t, nil)
		rig.addEntry(t, "192.168.1.50", "11:22:33:44:55:66", entry.Options{})

		res, _ := rig.m.StartConfig(ctx, SourceUser, false)
		res, err := rig.m.Configure(ctx, res.FlowID, Input{FieldHost: "192.168.1.50"})
		res = mustStep(t, res, err, ResultAbort, "")
		if res.Reason != ReasonAlreadyConfigured {
			t.Errorf("reason = %q", res.Reason)
		}
		if len(rig.checker.seen) != 0 {
			t.Error("checker should not run for a configured host")
		}
	})

	t.Run("unique id configured", func(t *testing.T) {
		rig := newTestRig(t, nil)
		rig.addEntry(t, "192.168.1.60", "aa:bb:cc:dd:ee:ff", entry.Options{})

		res, _ := rig.m.StartConfig(ctx, SourceUser, false)
		res, err := rig.m.Configure(ctx, res.FlowID, Input{FieldHost: "192.168.1.50"})
		res = mustStep(t, res, err, ResultAbort, "")
		if res.Reason != ReasonAlreadyConfigured {
			t.Errorf("reason = %q", res.Reason)
		}
	})

	t.Run("no unique id", func(t *testing.T) {
		rig := newTestRig(t, nil)
		rig.checker.set("", nil)

		res, _ := rig.m.StartConfig(ctx, SourceUser, false)
		res, err := rig.m.Configure(ctx, res.FlowID, Input{FieldHost: "192.168.1.50"})
		res = mustStep(t, res, err, ResultAbort, "")
		if res.Reason != ReasonInvalidUniqueID {
			t.Errorf("reason = %q", res.Reason)
		}
		if len(rig.registry.List()) != 0 {
			t.Error("no entry should be created")
		}
	})
}

func TestConfigFlow_FieldErrors(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	res, _ := rig.m.StartConfig(ctx, SourceUser, false)
	res, err := rig.m.Configure(ctx, res.FlowID, Input{
		FieldDeviceClass: "roku",
		FieldPort:        float64(70000),
	})
	res = mustStep(t, res, err, ResultForm, StepUser)

	want := map[string]string{
		FieldHost:        ErrorRequired,
		FieldDeviceClass: ErrorInvalidValue,
		FieldPort:        ErrorInvalidValue,
	}
	for k, v := range want {
		if res.Errors[k] != v {
			t.Errorf("errors[%s] = %q, want %q", k, res.Errors[k], v)
		}
	}
}

func TestConfigFlow_Zeroconf(t *testing.T) {
	ctx := context.Background()
	disc := fakeDiscoverer{devices: []discovery.Device{
		{Instance: "Living Room TV", Host: "192.168.1.50", Port: 6466},
		{Instance: "SHIELD", Host: "192.168.1.60", Port: 6466},
	}}

	rig := newTestRig(t, disc)
	rig.addEntry(t, "192.168.1.60", "11:22:33:44:55:66", entry.Options{})

	res, err := rig.m.StartConfig(ctx, SourceZeroconf, false)
	res = mustStep(t, res, err, ResultForm, StepZeroconf)
	opts := field(t, res, FieldHost).Options
	if len(opts) != 1 || opts[0].Value != "192.168.1.50" || opts[0].Label != "Living Room TV (192.168.1.50)" {
		t.Fatalf("options = %+v, configured hosts should be hidden", opts)
	}

	flowID := res.FlowID
	res, err = rig.m.Configure(ctx, flowID, Input{FieldHost: "192.168.1.99"})
	res = mustStep(t, res, err, ResultForm, StepZeroconf)
	if res.Errors[FieldHost] != ErrorInvalidValue {
		t.Errorf("errors = %v", res.Errors)
	}

	res, err = rig.m.Configure(ctx, flowID, Input{FieldHost: "192.168.1.50"})
	res = mustStep(t, res, err, ResultForm, StepUser)
	if f := field(t, res, FieldHost); f.Default != "192.168.1.50" {
		t.Errorf("host default = %v", f.Default)
	}

	res, err = rig.m.Configure(ctx, flowID, Input{FieldHost: "192.168.1.50"})
	mustStep(t, res, err, ResultCreateEntry, "")
}

func TestConfigFlow_ZeroconfNothingFound(t *testing.T) {
	rig := newTestRig(t, fakeDiscoverer{})
	res, err := rig.m.StartConfig(context.Background(), SourceZeroconf, false)
	res = mustStep(t, res, err, ResultAbort, "")
	if res.Reason != ReasonNoDevicesFound {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestConfigFlow_ZeroconfUnavailable(t *testing.T) {
	rig := newTestRig(t, nil)
	if _, err := rig.m.StartConfig(context.Background(), SourceZeroconf, false); !errors.Is(err, ErrDiscoveryUnavailable) {
		t.Errorf("error = %v, want ErrDiscoveryUnavailable", err)
	}

	rig = newTestRig(t, fakeDiscoverer{err: discovery.ErrDisabled})
	if _, err := rig.m.StartConfig(context.Background(), SourceZeroconf, false); !errors.Is(err, discovery.ErrDisabled) {
		t.Errorf("error = %v, want ErrDisabled", err)
	}
	if rig.m.Len() != 0 {
		t.Error("failed flow should be dropped")
	}
}

func TestConfigFlow_UnknownSource(t *testing.T) {
	rig := newTestRig(t, nil)
	if _, err := rig.m.StartConfig(context.Background(), "ssdp", false); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("error = %v, want ErrUnknownSource", err)
	}
}

// ── Manager ────────────────────────────────────────────────────────

func TestManager_UnknownAndAborted(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	if _, err := rig.m.Configure(ctx, "nope", Input{}); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("Configure(unknown) error = %v", err)
	}

	res, _ := rig.m.StartConfig(ctx, SourceUser, false)
	if err := rig.m.Abort(res.FlowID); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	if err := rig.m.Abort(res.FlowID); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("second Abort() error = %v", err)
	}
	if _, err := rig.m.Configure(ctx, res.FlowID, Input{}); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("Configure(aborted) error = %v", err)
	}
}

func TestManager_Expiry(t *testing.T) {
	registry := newTestRegistry(t)
	m, err := NewManager(Config{
		Store:   registry,
		Checker: (&fakeChecker{}).check,
		TTL:     time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first, _ := m.StartConfig(ctx, SourceUser, false)
	second, _ := m.StartConfig(ctx, SourceUser, false)
	time.Sleep(10 * time.Millisecond)

	if _, err := m.Configure(ctx, first.FlowID, Input{}); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("Configure(expired) error = %v", err)
	}

	m.cleanExpired()
	if m.Len() != 0 {
		t.Errorf("Len() = %d after cleanup, %s should be gone", m.Len(), second.FlowID)
	}
}

// ── Options flow ───────────────────────────────────────────────────

func TestOptionsFlow_EditAndSave(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	e := rig.addEntry(t, "192.168.1.50", "aa:bb:cc:dd:ee:ff", entry.Options{
		Apps:           map[string]string{"com.netflix.ninja": "Netflix", "org.xbmc.kodi": ""},
		CustomCommands: map[string]string{androidtv.CustomTurnOff: "input keyevent 223"},
	})

	res, err := rig.m.StartOptions(ctx, e.ID)
	res = mustStep(t, res, err, ResultForm, StepInit)
	if res.EntryID != e.ID || res.Kind != KindOptions {
		t.Errorf("result = %+v", res)
	}
	apps := field(t, res, FieldApps).Options
	wantApps := []Option{
		{Value: NewApp, Label: "Add new"},
		{Value: "com.netflix.ninja", Label: "Netflix (com.netflix.ninja)"},
		{Value: "org.xbmc.kodi", Label: "org.xbmc.kodi"},
	}
	if len(apps) != len(wantApps) {
		t.Fatalf("apps = %+v", apps)
	}
	for i := range wantApps {
		if apps[i] != wantApps[i] {
			t.Errorf("apps[%d] = %+v, want %+v", i, apps[i], wantApps[i])
		}
	}
	if got := field(t, res, FieldCustomCommands).Options; len(got) != len(androidtv.CustomizableCommands) {
		t.Errorf("custom command options = %+v", got)
	}

	flowID := res.FlowID
	submit := func(in Input, wantType ResultType, wantStep string) Result {
		t.Helper()
		res, err := rig.m.Configure(ctx, flowID, in)
		return mustStep(t, res, err, wantType, wantStep)
	}

	// Add an app.
	submit(Input{FieldApps: NewApp}, ResultForm, StepApps)
	submit(Input{FieldAppID: "com.plexapp.android", FieldAppName: "Plex"}, ResultForm, StepInit)

	// Rename one and delete another.
	res = submit(Input{FieldApps: "org.xbmc.kodi"}, ResultForm, StepApps)
	if res.Placeholders["app_id"] != "org.xbmc.kodi" {
		t.Errorf("placeholders = %v", res.Placeholders)
	}
	submit(Input{FieldAppName: "Kodi"}, ResultForm, StepInit)
	submit(Input{FieldApps: "com.netflix.ninja"}, ResultForm, StepApps)
	submit(Input{FieldAppDelete: true}, ResultForm, StepInit)

	// Replace turn_off with turn_on.
	res = submit(Input{FieldCustomCommands: androidtv.CustomTurnOff}, ResultForm, StepCommands)
	if f := field(t, res, FieldCommandValue); f.Default != "input keyevent 223" {
		t.Errorf("cmd_value default = %v", f.Default)
	}
	submit(Input{FieldCommandValue: ""}, ResultForm, StepInit)
	submit(Input{FieldCustomCommands: androidtv.CustomTurnOn}, ResultForm, StepCommands)
	submit(Input{FieldCommandValue: "input keyevent 224"}, ResultForm, StepInit)

	// Add a rule, with one rejected attempt first.
	submit(Input{FieldStateDetectionRules: NewRule}, ResultForm, StepRules)
	res = submit(Input{FieldRuleID: "com.amazon.tv.launcher", FieldRuleValues: `[{"bogus": {}}]`}, ResultForm, StepRules)
	if res.Errors["base"] != ErrorInvalidDetRules {
		t.Errorf("errors = %v", res.Errors)
	}
	if f := field(t, res, FieldRuleID); f.Default != "com.amazon.tv.launcher" {
		t.Errorf("rule_id default = %v, want previous id", f.Default)
	}
	submit(Input{FieldRuleID: "com.amazon.tv.launcher", FieldRuleValues: `"standby"`}, ResultForm, StepInit)

	res = submit(Input{FieldGetSources: false, FieldScreencap: true}, ResultCreateEntry, "")
	if res.Options == nil {
		t.Fatal("options missing from result")
	}

	stored, err := rig.registry.Get(e.ID)
	if err != nil {
		t.Fatal(err)
	}
	opts := stored.Options
	if len(opts.Apps) != 2 || opts.Apps["com.plexapp.android"] != "Plex" || opts.Apps["org.xbmc.kodi"] != "Kodi" {
		t.Errorf("apps = %v", opts.Apps)
	}
	if len(opts.CustomCommands) != 1 || opts.CustomCommands[androidtv.CustomTurnOn] != "input keyevent 224" {
		t.Errorf("custom_commands = %v", opts.CustomCommands)
	}
	rules, ok := opts.StateDetectionRules["com.amazon.tv.launcher"].([]any)
	if !ok || len(rules) != 1 || rules[0] != "standby" {
		t.Errorf("rules = %#v, want a wrapped single rule", opts.StateDetectionRules)
	}
	if opts.GetSourcesEnabled() || !opts.ScreencapEnabled() || opts.ExcludeUnnamed() {
		t.Errorf("switches = %v %v %v", opts.GetSourcesEnabled(), opts.ScreencapEnabled(), opts.ExcludeUnnamed())
	}

	if len(rig.listener.updated) != 1 {
		t.Fatalf("listener updates = %d", len(rig.listener.updated))
	}
	old, updated := rig.listener.updated[0][0], rig.listener.updated[0][1]
	if !entry.NeedsReload(old.Options, updated.Options) {
		t.Error("rule change should require a reload")
	}
}

func TestOptionsFlow_SaveDropsEmpty(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	e := rig.addEntry(t, "192.168.1.50", "aa:bb:cc:dd:ee:ff", entry.Options{
		CustomCommands:      map[string]string{androidtv.CustomTurnOn: "input keyevent 224"},
		StateDetectionRules: map[string]any{"com.plexapp.android": []any{"playing"}},
	})

	res, _ := rig.m.StartOptions(ctx, e.ID)
	flowID := res.FlowID

	res, err := rig.m.Configure(ctx, flowID, Input{FieldCustomCommands: androidtv.CustomTurnOn})
	mustStep(t, res, err, ResultForm, StepCommands)
	res, err = rig.m.Configure(ctx, flowID, Input{FieldCommandValue: "  "})
	mustStep(t, res, err, ResultForm, StepInit)

	res, err = rig.m.Configure(ctx, flowID, Input{FieldStateDetectionRules: "com.plexapp.android"})
	res = mustStep(t, res, err, ResultForm, StepRules)
	if f := field(t, res, FieldRuleValues); f.Default != `["playing"]` {
		t.Errorf("rule_values default = %v", f.Default)
	}
	res, err = rig.m.Configure(ctx, flowID, Input{FieldRuleDelete: true})
	mustStep(t, res, err, ResultForm, StepInit)

	res, err = rig.m.Configure(ctx, flowID, Input{})
	mustStep(t, res, err, ResultCreateEntry, "")

	stored, _ := rig.registry.Get(e.ID)
	if stored.Options.CustomCommands != nil || stored.Options.StateDetectionRules != nil || stored.Options.Apps != nil {
		t.Errorf("options = %+v, empty maps should be dropped", stored.Options)
	}
	if !stored.Options.GetSourcesEnabled() || stored.Options.GetSources == nil {
		t.Errorf("get_sources = %v, want explicit default", stored.Options.GetSources)
	}
}

func TestOptionsFlow_RulesWithoutValuesChangeNothing(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	e := rig.addEntry(t, "192.168.1.50", "aa:bb:cc:dd:ee:ff", entry.Options{
		StateDetectionRules: map[string]any{"com.plexapp.android": []any{"playing"}},
	})

	res, _ := rig.m.StartOptions(ctx, e.ID)
	flowID := res.FlowID
	submit := func(in Input, wantType ResultType, wantStep string) Result {
		t.Helper()
		res, err := rig.m.Configure(ctx, flowID, in)
		return mustStep(t, res, err, wantType, wantStep)
	}

	// Existing rule submitted with no values.
	submit(Input{FieldStateDetectionRules: "com.plexapp.android"}, ResultForm, StepRules)
	res = submit(Input{FieldRuleValues: ""}, ResultForm, StepInit)
	if len(res.Errors) != 0 {
		t.Errorf("errors = %v, want none", res.Errors)
	}
	submit(Input{FieldStateDetectionRules: "com.plexapp.android"}, ResultForm, StepRules)
	submit(Input{}, ResultForm, StepInit)

	// New rule submitted without an id, with or without values.
	submit(Input{FieldStateDetectionRules: NewRule}, ResultForm, StepRules)
	submit(Input{FieldRuleID: "", FieldRuleValues: `["idle"]`}, ResultForm, StepInit)
	submit(Input{FieldStateDetectionRules: NewRule}, ResultForm, StepRules)
	submit(Input{FieldRuleID: "com.example.app"}, ResultForm, StepInit)

	submit(Input{}, ResultCreateEntry, "")
	stored, _ := rig.registry.Get(e.ID)
	rules := stored.Options.StateDetectionRules
	if len(rules) != 1 {
		t.Fatalf("rules = %#v, want only the original rule", rules)
	}
	if list, ok := rules["com.plexapp.android"].([]any); !ok || len(list) != 1 || list[0] != "playing" {
		t.Errorf("com.plexapp.android rules = %#v, want unchanged", rules["com.plexapp.android"])
	}
}

func TestOptionsFlow_InvalidSelections(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	e := rig.addEntry(t, "192.168.1.50", "aa:bb:cc:dd:ee:ff", entry.Options{})

	res, _ := rig.m.StartOptions(ctx, e.ID)
	for _, in := range []Input{
		{FieldApps: "com.unknown"},
		{FieldCustomCommands: "reboot"},
		{FieldStateDetectionRules: "com.unknown"},
		{FieldGetSources: "yes"},
	} {
		got, err := rig.m.Configure(ctx, res.FlowID, in)
		got = mustStep(t, got, err, ResultForm, StepInit)
		if len(got.Errors) != 1 {
			t.Errorf("Configure(%v) errors = %v", in, got.Errors)
		}
	}
}

func TestOptionsFlow_UnknownEntry(t *testing.T) {
	rig := newTestRig(t, nil)
	if _, err := rig.m.StartOptions(context.Background(), "missing"); !errors.Is(err, entry.ErrEntryNotFound) {
		t.Errorf("error = %v, want ErrEntryNotFound", err)
	}
}

// ── Helpers ────────────────────────────────────────────────────────

func TestParseRuleValues(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		wantLen int
		wantErr bool
	}{
		{"json list", `["playing", "paused"]`, 2, false},
		{"json object wrapped", `{"playing": {"wake_lock_size": 2}}`, 1, false},
		{"decoded list", []any{"idle"}, 1, false},
		{"bad json", `[`, 0, true},
		{"invalid state", `["dancing"]`, 0, true},
		{"missing", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRuleValues(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRuleValues() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestInput(t *testing.T) {
	in := Input{"s": " x ", "n": float64(5), "ns": "7", "f": 1.5, "b": true, "bad": []any{}}

	if s, err := in.String("s"); err != nil || s != "x" {
		t.Errorf("String() = %q, %v", s, err)
	}
	if _, err := in.String("n"); err == nil {
		t.Error("String(number) should fail")
	}
	if n, err := in.Int("n", 0); err != nil || n != 5 {
		t.Errorf("Int() = %d, %v", n, err)
	}
	if n, err := in.Int("ns", 0); err != nil || n != 7 {
		t.Errorf("Int(string) = %d, %v", n, err)
	}
	if _, err := in.Int("f", 0); err == nil {
		t.Error("Int(1.5) should fail")
	}
	if n, _ := in.Int("missing", 9); n != 9 {
		t.Errorf("Int(missing) = %d", n)
	}
	if b, err := in.Bool("b", false); err != nil || !b {
		t.Errorf("Bool() = %v, %v", b, err)
	}
	if _, err := in.Bool("bad", false); err == nil {
		t.Error("Bool(list) should fail")
	}
}
