package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-androidtv/internal/discovery"
	"github.com/nerrad567/gray-logic-androidtv/internal/entry"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/logging"
)

// DefaultTTL is how long an idle flow is kept.
const DefaultTTL = 10 * time.Minute

// Store persists entries. *entry.Registry satisfies it.
type Store interface {
	Get(id string) (*entry.Entry, error)
	HostConfigured(host string) bool
	UniqueIDConfigured(uniqueID string) bool
	Create(ctx context.Context, e *entry.Entry) error
	UpdateOptions(ctx context.Context, id string, opts entry.Options) (old, updated *entry.Entry, err error)
}

// Listener is told about entries a flow created or changed. The bridge
// satisfies it.
type Listener interface {
	AddEntry(e *entry.Entry) error
	UpdateEntry(old, updated *entry.Entry) error
}

// Discoverer finds devices on the LAN. *discovery.Scanner satisfies it.
type Discoverer interface {
	Discover(ctx context.Context) ([]discovery.Device, error)
}

// Config holds the dependencies of a Manager.
type Config struct {
	Store   Store
	Checker Checker

	// Listener and Discoverer are optional.
	Listener   Listener
	Discoverer Discoverer

	// TTL is how long an idle flow is kept. Default: DefaultTTL.
	TTL time.Duration

	Logger *logging.Logger
}

// stepper runs one step of a flow. A nil Input asks for the step's form.
type stepper interface {
	step(ctx context.Context, stepID string, in Input) (Result, error)
}

// session is one flow in progress. mu serialises its steps; expiresAt is
// guarded by the Manager's mu.
type session struct {
	mu        sync.Mutex
	kind      Kind
	entryID   string
	handler   stepper
	stepID    string
	expiresAt time.Time
}

// Manager runs config and options flows.
//
// All public methods are thread-safe. Steps of one flow run one at a time.
type Manager struct {
	store      Store
	checker    Checker
	listener   Listener
	discoverer Discoverer
	ttl        time.Duration
	logger     *logging.Logger

	mu    sync.Mutex
	flows map[string]*session
}

// NewManager creates a flow manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("flow: store is required")
	}
	if cfg.Checker == nil {
		return nil, errors.New("flow: checker is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Manager{
		store:      cfg.Store,
		checker:    cfg.Checker,
		listener:   cfg.Listener,
		discoverer: cfg.Discoverer,
		ttl:        ttl,
		logger:     logger.Component("flow"),
		flows:      make(map[string]*session),
	}, nil
}

// StartConfig begins a config flow. Advanced mode adds the adbkey and adb
// server fields to the user step.
func (m *Manager) StartConfig(ctx context.Context, source Source, advanced bool) (Result, error) {
	var stepID string
	switch source {
	case SourceUser, "":
		stepID = StepUser
	case SourceZeroconf:
		if m.discoverer == nil {
			return Result{}, ErrDiscoveryUnavailable
		}
		stepID = StepZeroconf
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}

	s := &session{kind: KindConfig, handler: newConfigFlow(m, advanced)}
	return m.run(ctx, uuid.NewString(), s, stepID, nil)
}

// StartOptions begins an options flow for an entry.
func (m *Manager) StartOptions(ctx context.Context, entryID string) (Result, error) {
	e, err := m.store.Get(entryID)
	if err != nil {
		return Result{}, err
	}

	s := &session{kind: KindOptions, entryID: e.ID, handler: newOptionsFlow(m, e)}
	return m.run(ctx, uuid.NewString(), s, StepInit, nil)
}

// Configure submits input to the current step of a flow.
func (m *Manager) Configure(ctx context.Context, flowID string, in Input) (Result, error) {
	m.mu.Lock()
	s, ok := m.flows[flowID]
	m.mu.Unlock()
	if !ok {
		return Result{}, ErrFlowNotFound
	}
	if in == nil {
		in = Input{}
	}
	return m.run(ctx, flowID, s, "", in)
}

// Abort drops a flow.
func (m *Manager) Abort(flowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[flowID]; !ok {
		return ErrFlowNotFound
	}
	delete(m.flows, flowID)
	return nil
}

// Len returns the number of flows in progress.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.flows)
}

// run executes one step. An empty stepID continues at the session's
// current step. Forms keep the flow alive; anything else ends it.
func (m *Manager) run(ctx context.Context, flowID string, s *session, stepID string, in Input) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stepID == "" {
		if !m.alive(flowID, s) {
			return Result{}, ErrFlowNotFound
		}
		stepID = s.stepID
	}

	res, err := s.handler.step(ctx, stepID, in)
	if err != nil {
		m.drop(flowID)
		return Result{}, err
	}

	res.FlowID = flowID
	res.Kind = s.kind
	if s.kind == KindOptions {
		res.EntryID = s.entryID
	}

	if res.Type == ResultForm {
		s.stepID = res.StepID
		m.mu.Lock()
		s.expiresAt = time.Now().Add(m.ttl)
		m.flows[flowID] = s
		m.mu.Unlock()
	} else {
		m.drop(flowID)
		m.logger.Debug("flow finished", "flow_id", flowID, "kind", s.kind, "type", res.Type, "reason", res.Reason)
	}
	return res, nil
}

// alive reports whether s is still the registered, unexpired flow.
func (m *Manager) alive(flowID string, s *session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flows[flowID] != s {
		return false
	}
	if time.Now().After(s.expiresAt) {
		delete(m.flows, flowID)
		return false
	}
	return true
}

func (m *Manager) drop(flowID string) {
	m.mu.Lock()
	delete(m.flows, flowID)
	m.mu.Unlock()
}

// cleanExpired removes flows past their TTL.
func (m *Manager) cleanExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, s := range m.flows {
		if now.After(s.expiresAt) {
			delete(m.flows, id)
		}
	}
}

// CleanupLoop runs cleanExpired periodically until the context is cancelled.
func (m *Manager) CleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanExpired()
		}
	}
}
