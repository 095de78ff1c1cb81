// Package query runs one-shot prompts against a server/model pair.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fentz26/mcpctl/internal/apiclient"
	"github.com/fentz26/mcpctl/internal/models"
)

// DefaultModel is used when neither the caller nor the config names one.
const DefaultModel = "gpt-3.5-turbo"

// API is the subset of the control API the executor needs.
type API interface {
	Query(ctx context.Context, server, model, prompt string) (string, error)
}

// Directory answers whether a server name is known locally.
type Directory interface {
	Loaded() bool
	Has(name string) bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithDefaultModel sets the model used when a call names none.
func WithDefaultModel(model string) Option {
	return func(e *Executor) {
		if model != "" {
			e.defaultModel = model
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// Executor sends queries. Overlapping submissions are not prevented here.
type Executor struct {
	api          API
	dir          Directory
	defaultModel string
	logger       *log.Logger
}

// New creates an Executor. dir may be nil to skip the known-server check.
func New(api API, dir Directory, opts ...Option) *Executor {
	e := &Executor{
		api:          api,
		dir:          dir,
		defaultModel: DefaultModel,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultModel returns the model used when a call names none.
func (e *Executor) DefaultModel() string {
	return e.defaultModel
}

// Execute runs prompt against server. The known-server check only applies
// once the directory has been loaded; the control API has the final say.
func (e *Executor) Execute(ctx context.Context, server, prompt, model string) (*models.QueryResult, error) {
	if strings.TrimSpace(server) == "" {
		return nil, apiclient.Invalid("server", "server name is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, apiclient.Invalid("prompt", "query is required")
	}
	if e.dir != nil && e.dir.Loaded() && !e.dir.Has(server) {
		return nil, apiclient.Invalid("server", "unknown server %q", server)
	}
	if strings.TrimSpace(model) == "" {
		model = e.defaultModel
	}

	start := time.Now()
	text, err := e.api.Query(ctx, server, model, prompt)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", server, err)
	}
	elapsed := time.Since(start)
	e.logger.Debug("query done", "server", server, "model", model, "elapsed", elapsed.Round(time.Millisecond))

	return &models.QueryResult{
		Server:  server,
		Model:   model,
		Prompt:  prompt,
		Text:    text,
		Elapsed: elapsed,
	}, nil
}
