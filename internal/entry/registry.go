package entry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry caches config entries in memory over a Repository.
//
// All public methods are thread-safe. Returned entries are deep copies.
type Registry struct {
	repo    Repository
	cache   map[string]*Entry
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a registry over repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Entry),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all entries, migrating legacy option keys on the way.
func (r *Registry) RefreshCache(ctx context.Context) error {
	entries, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}

	cache := make(map[string]*Entry, len(entries))
	for i := range entries {
		e := entries[i].DeepCopy()
		if MigrateOptions(&e.Options) {
			if err := r.repo.UpdateOptions(ctx, e.ID, e.Options); err != nil {
				return fmt.Errorf("migrating options of %s: %w", e.ID, err)
			}
			r.logger.Info("migrated legacy options", "entry_id", e.ID)
		}
		cache[e.ID] = e
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.cacheMu.Unlock()

	r.logger.Info("entry cache refreshed", "count", len(entries))
	return nil
}

// Get returns the entry with the given ID.
func (r *Registry) Get(id string) (*Entry, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	e, ok := r.cache[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return e.DeepCopy(), nil
}

// List returns all entries ordered by title.
func (r *Registry) List() []*Entry {
	r.cacheMu.RLock()
	entries := make([]*Entry, 0, len(r.cache))
	for _, e := range r.cache {
		entries = append(entries, e.DeepCopy())
	}
	r.cacheMu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Title != entries[j].Title {
			return entries[i].Title < entries[j].Title
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// HostConfigured reports whether an entry already uses host.
func (r *Registry) HostConfigured(host string) bool {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	for _, e := range r.cache {
		if e.Data.Host == host {
			return true
		}
	}
	return false
}

// UniqueIDConfigured reports whether an entry already has uniqueID.
func (r *Registry) UniqueIDConfigured(uniqueID string) bool {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	for _, e := range r.cache {
		if e.UniqueID == uniqueID {
			return true
		}
	}
	return false
}

// Create validates and stores a new entry. An empty ID is filled in.
func (r *Registry) Create(ctx context.Context, e *Entry) error {
	if err := e.Data.Validate(); err != nil {
		return err
	}
	if e.UniqueID == "" {
		return fmt.Errorf("%w: unique_id is required", ErrInvalidEntry)
	}
	if r.HostConfigured(e.Data.Host) {
		return ErrHostConfigured
	}
	if r.UniqueIDConfigured(e.UniqueID) {
		return ErrEntryExists
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Title == "" {
		e.Title = e.Data.Host
	}

	if err := r.repo.Create(ctx, e); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[e.ID] = e.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("entry created", "entry_id", e.ID, "host", e.Data.Host)
	return nil
}

// UpdateOptions stores new options and returns the entry before and after.
func (r *Registry) UpdateOptions(ctx context.Context, id string, opts Options) (old, updated *Entry, err error) {
	old, err = r.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if err := r.repo.UpdateOptions(ctx, id, opts); err != nil {
		return nil, nil, err
	}

	updated = old.DeepCopy()
	updated.Options = opts.Clone()

	r.cacheMu.Lock()
	r.cache[id] = updated.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Debug("entry options updated", "entry_id", id)
	return old, updated, nil
}

// Delete removes an entry and returns it.
func (r *Registry) Delete(ctx context.Context, id string) (*Entry, error) {
	old, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if err := r.repo.Delete(ctx, id); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("entry deleted", "entry_id", id)
	return old, nil
}
