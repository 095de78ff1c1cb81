// Package catalog holds the tool list for the currently selected server and
// model. Only the most recent selection's response is ever kept.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fentz26/mcpctl/internal/apiclient"
	"github.com/fentz26/mcpctl/internal/models"
)

// ErrSuperseded is returned by Fetch when a newer Fetch or Invalidate
// happened while the request was in flight. Its response is discarded.
var ErrSuperseded = errors.New("tool fetch superseded by a newer selection")

// API is the subset of the control API the catalog needs.
type API interface {
	ListTools(ctx context.Context, server, model string) ([]models.Tool, error)
}

// Selection identifies which catalog is shown.
type Selection struct {
	Server string
	Model  string
}

// Snapshot is a read-only copy of the catalog state.
type Snapshot struct {
	Selection Selection
	Tools     []models.Tool
	// Loaded is true once a fetch for Selection succeeded, even if it
	// returned no tools.
	Loaded    bool
	Loading   bool
	Err       error
	FetchedAt time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// Catalog is the tool view for one session.
type Catalog struct {
	api    API
	logger *log.Logger

	mu        sync.Mutex
	gen       uint64
	sel       Selection
	tools     []models.Tool
	loaded    bool
	loading   bool
	err       error
	fetchedAt time.Time
}

// New creates a catalog backed by api.
func New(api API, opts ...Option) *Catalog {
	c := &Catalog{
		api:    api,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch selects (server, model) and loads its tools. Tools from the previous
// selection are cleared before the request is sent.
func (c *Catalog) Fetch(ctx context.Context, server, model string) ([]models.Tool, error) {
	if strings.TrimSpace(server) == "" {
		return nil, apiclient.Invalid("server", "server name is required")
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.sel = Selection{Server: server, Model: model}
	c.tools = nil
	c.loaded = false
	c.loading = true
	c.err = nil
	c.mu.Unlock()

	tools, err := c.api.ListTools(ctx, server, model)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.logger.Debug("discarding stale tool list", "server", server, "model", model)
		return nil, ErrSuperseded
	}
	c.loading = false
	if err != nil {
		c.err = fmt.Errorf("list tools of %q: %w", server, err)
		return nil, c.err
	}
	if tools == nil {
		tools = []models.Tool{}
	}
	c.tools = tools
	c.loaded = true
	c.fetchedAt = time.Now()
	c.logger.Debug("tools fetched", "server", server, "model", model, "count", len(tools))
	return models.CloneTools(tools), nil
}

// Refresh re-fetches the current selection.
func (c *Catalog) Refresh(ctx context.Context) ([]models.Tool, error) {
	c.mu.Lock()
	sel := c.sel
	c.mu.Unlock()
	if sel.Server == "" {
		return nil, apiclient.Invalid("server", "no server selected")
	}
	return c.Fetch(ctx, sel.Server, sel.Model)
}

// Invalidate clears the catalog if it belongs to server. An in-flight fetch
// for it is discarded when it completes.
func (c *Catalog) Invalidate(server string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sel.Server != server {
		return
	}
	c.gen++
	c.sel = Selection{}
	c.tools = nil
	c.loaded = false
	c.loading = false
	c.err = nil
	c.fetchedAt = time.Time{}
}

// Snapshot returns a copy of the current state.
func (c *Catalog) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Selection: c.sel,
		Tools:     models.CloneTools(c.tools),
		Loaded:    c.loaded,
		Loading:   c.loading,
		Err:       c.err,
		FetchedAt: c.fetchedAt,
	}
}
