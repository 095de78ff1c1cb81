// Package registry holds the client-side view of the server definitions the
// control API knows about. Every mutation goes to the API first; the local
// cache is reconciled only after the call succeeds.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/fentz26/mcpctl/internal/apiclient"
	"github.com/fentz26/mcpctl/internal/models"
)

// ErrBusy is returned when a mutation for the same server name is already in
// flight.
var ErrBusy = errors.New("another change to this server is in progress")

// API is the subset of the control API the registry needs.
type API interface {
	ListServers(ctx context.Context) ([]models.ServerDefinition, error)
	CreateServer(ctx context.Context, def models.ServerDefinition) error
	UpdateServer(ctx context.Context, def models.ServerDefinition) error
	DeleteServer(ctx context.Context, name string) error
	ImportConfig(ctx context.Context, path string) error
	ExportConfig(ctx context.Context, path string) error
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithRemoveHook registers fn to run after a server is removed.
func WithRemoveHook(fn func(name string)) Option {
	return func(r *Registry) { r.onRemove = append(r.onRemove, fn) }
}

// Registry is the authoritative cache of server definitions for one session.
// The cache slice is never mutated in place; writers swap in a new slice.
type Registry struct {
	api    API
	logger *log.Logger

	mu       sync.RWMutex
	servers  []models.ServerDefinition
	loaded   bool
	listSeq  uint64
	applied  uint64
	inflight map[string]struct{}

	onRemove []func(name string)
}

// New creates a registry backed by api.
func New(api API, opts ...Option) *Registry {
	r := &Registry{
		api:      api,
		logger:   log.Default(),
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List fetches every definition and replaces the cache wholesale. A response
// older than one already applied is returned to its caller but not cached.
func (r *Registry) List(ctx context.Context) ([]models.ServerDefinition, error) {
	r.mu.Lock()
	r.listSeq++
	seq := r.listSeq
	r.mu.Unlock()

	servers, err := r.api.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}

	r.mu.Lock()
	if seq > r.applied {
		r.servers = models.CloneServers(servers)
		r.loaded = true
		r.applied = seq
	}
	r.mu.Unlock()

	r.logger.Debug("servers listed", "count", len(servers))
	return models.CloneServers(servers), nil
}

// Add registers a new definition. The cache is not touched; call List to
// observe the new entry.
func (r *Registry) Add(ctx context.Context, def models.ServerDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return apiclient.Invalid("name", "server name is required")
	}
	if strings.TrimSpace(def.Command) == "" {
		return apiclient.Invalid("command", "command is required")
	}

	release, err := r.acquire(def.Name)
	if err != nil {
		return err
	}
	defer release()

	if err := r.api.CreateServer(ctx, def.Normalize()); err != nil {
		return fmt.Errorf("add server %q: %w", def.Name, err)
	}
	r.logger.Info("server added", "server", def.Name)
	return nil
}

// Update replaces command, args and env of an existing definition. def.Name
// selects the entry and is never changed. The cache is not touched.
func (r *Registry) Update(ctx context.Context, def models.ServerDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return apiclient.Invalid("name", "server name is required")
	}
	if strings.TrimSpace(def.Command) == "" {
		return apiclient.Invalid("command", "command is required")
	}

	release, err := r.acquire(def.Name)
	if err != nil {
		return err
	}
	defer release()

	if err := r.api.UpdateServer(ctx, def.Normalize()); err != nil {
		return fmt.Errorf("update server %q: %w", def.Name, err)
	}
	r.logger.Info("server updated", "server", def.Name)
	return nil
}

// Remove deletes a definition. On success the entry is dropped from the
// cache and remove hooks run. On failure the cache is unchanged.
func (r *Registry) Remove(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return apiclient.Invalid("name", "server name is required")
	}

	release, err := r.acquire(name)
	if err != nil {
		return err
	}
	defer release()

	if err := r.api.DeleteServer(ctx, name); err != nil {
		return fmt.Errorf("remove server %q: %w", name, err)
	}

	r.mu.Lock()
	next := make([]models.ServerDefinition, 0, len(r.servers))
	for _, s := range r.servers {
		if s.Name != name {
			next = append(next, s)
		}
	}
	r.servers = next
	// A List sent before the delete must not restore the entry.
	r.listSeq++
	r.applied = r.listSeq
	r.mu.Unlock()

	for _, fn := range r.onRemove {
		fn(name)
	}
	r.logger.Info("server removed", "server", name)
	return nil
}

// Import asks the control API to load its configuration from path. Call List
// afterwards to observe the result.
func (r *Registry) Import(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return apiclient.Invalid("path", "file path is required")
	}
	if err := r.api.ImportConfig(ctx, path); err != nil {
		return fmt.Errorf("import config from %s: %w", path, err)
	}
	r.logger.Info("config imported", "path", path)
	return nil
}

// Export asks the control API to write its configuration to path.
func (r *Registry) Export(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return apiclient.Invalid("path", "file path is required")
	}
	if err := r.api.ExportConfig(ctx, path); err != nil {
		return fmt.Errorf("export config to %s: %w", path, err)
	}
	r.logger.Info("config exported", "path", path)
	return nil
}

// Snapshot returns a deep copy of the cache.
func (r *Registry) Snapshot() []models.ServerDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := models.CloneServers(r.servers)
	if out == nil {
		out = []models.ServerDefinition{}
	}
	return out
}

// Get returns a copy of the cached definition named name.
func (r *Registry) Get(name string) (models.ServerDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.servers {
		if s.Name == name {
			return s.Clone(), true
		}
	}
	return models.ServerDefinition{}, false
}

// Has reports whether name is in the cache.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Loaded reports whether List has ever succeeded.
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// acquire marks name as having a mutation in flight. Names are keyed in
// their trimmed form, matching validation.
func (r *Registry) acquire(name string) (func(), error) {
	name = strings.TrimSpace(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[name]; busy {
		return nil, fmt.Errorf("server %q: %w", name, ErrBusy)
	}
	r.inflight[name] = struct{}{}
	return func() {
		r.mu.Lock()
		delete(r.inflight, name)
		r.mu.Unlock()
	}, nil
}
