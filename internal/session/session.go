// Package session owns one instance of each client component, built from a
// Config. CLI commands and the TUI hold a *Session rather than reaching for
// package-level state.
package session

import (
	"github.com/charmbracelet/log"

	"github.com/fentz26/mcpctl/internal/apiclient"
	"github.com/fentz26/mcpctl/internal/catalog"
	"github.com/fentz26/mcpctl/internal/codec"
	"github.com/fentz26/mcpctl/internal/config"
	"github.com/fentz26/mcpctl/internal/health"
	"github.com/fentz26/mcpctl/internal/models"
	"github.com/fentz26/mcpctl/internal/query"
	"github.com/fentz26/mcpctl/internal/registry"
)

// Session ties the components together.
type Session struct {
	Config   *config.Config
	Client   *apiclient.Client
	Registry *registry.Registry
	Query    *query.Executor
	Catalog  *catalog.Catalog
	Health   *health.Monitor
	Args     codec.Args
	Logger   *log.Logger
}

// Option configures a Session.
type Option func(*options)

type options struct {
	onHealthChange func(models.ConnectivityState)
}

// WithHealthListener registers fn for connectivity changes.
func WithHealthListener(fn func(models.ConnectivityState)) Option {
	return func(o *options) { o.onHealthChange = fn }
}

// New builds a session. Removing a server through the registry invalidates
// its tool catalog.
func New(cfg *config.Config, logger *log.Logger, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = log.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	client := apiclient.New(cfg.APIAddr,
		apiclient.WithTimeout(cfg.Timeout),
		apiclient.WithLogger(logger.WithPrefix("api")),
	)
	cat := catalog.New(client, catalog.WithLogger(logger.WithPrefix("catalog")))
	reg := registry.New(client,
		registry.WithLogger(logger.WithPrefix("registry")),
		registry.WithRemoveHook(cat.Invalidate),
	)
	exec := query.New(client, reg,
		query.WithDefaultModel(cfg.DefaultModel),
		query.WithLogger(logger.WithPrefix("query")),
	)

	healthOpts := []health.Option{
		health.WithInterval(cfg.PollInterval),
		health.WithProbeTimeout(cfg.Timeout),
		health.WithLogger(logger.WithPrefix("health")),
	}
	if o.onHealthChange != nil {
		healthOpts = append(healthOpts, health.WithOnChange(o.onHealthChange))
	}

	return &Session{
		Config:   cfg,
		Client:   client,
		Registry: reg,
		Query:    exec,
		Catalog:  cat,
		Health:   health.New(health.StatusProber(client), healthOpts...),
		Args:     codec.Args{Quoted: cfg.QuotedArgs},
		Logger:   logger,
	}
}

// DefaultModel returns the configured default model.
func (s *Session) DefaultModel() string {
	return s.Query.DefaultModel()
}

// Close stops background work.
func (s *Session) Close() {
	s.Health.Stop()
}
