// Package models defines the core domain types for mcpctl.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// ServerDefinition describes how the control API launches one MCP server.
// Name is the identity and never changes after creation.
type ServerDefinition struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// Clone returns a deep copy so callers can't mutate a shared snapshot.
func (s ServerDefinition) Clone() ServerDefinition {
	c := s
	if s.Args != nil {
		c.Args = append([]string(nil), s.Args...)
	}
	if s.Env != nil {
		c.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			c.Env[k] = v
		}
	}
	return c
}

// Normalize replaces nil args/env with empty values so the wire payload
// always carries [] and {} rather than null.
func (s ServerDefinition) Normalize() ServerDefinition {
	if s.Args == nil {
		s.Args = []string{}
	}
	if s.Env == nil {
		s.Env = map[string]string{}
	}
	return s
}

// EnvKeys returns the environment keys in sorted order.
func (s ServerDefinition) EnvKeys() []string {
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloneServers deep-copies a slice of definitions.
func CloneServers(in []ServerDefinition) []ServerDefinition {
	if in == nil {
		return nil
	}
	out := make([]ServerDefinition, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// Tool is a callable capability exposed by a server for a given model.
// Parameters is kept verbatim as returned by the control API.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Schema parses Parameters as a JSON schema. It is for display only; the raw
// bytes stay authoritative.
func (t Tool) Schema() (*jsonschema.Schema, error) {
	if len(t.Parameters) == 0 || string(t.Parameters) == "null" {
		return nil, nil
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(t.Parameters, &s); err != nil {
		return nil, fmt.Errorf("parse parameters of %q: %w", t.Name, err)
	}
	return &s, nil
}

// Param is one property of a tool's parameter schema, flattened for display.
type Param struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// Params lists the top-level properties of the parameter schema, sorted by
// name. Tools without a schema have no params.
func (t Tool) Params() ([]Param, error) {
	s, err := t.Schema()
	if err != nil || s == nil {
		return nil, err
	}
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	params := make([]Param, 0, len(s.Properties))
	for name, prop := range s.Properties {
		p := Param{Name: name, Required: required[name]}
		if prop != nil {
			p.Type = prop.Type
			if p.Type == "" && len(prop.Types) > 0 {
				p.Type = strings.Join(prop.Types, "|")
			}
			p.Description = prop.Description
		}
		params = append(params, p)
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	return params, nil
}

// CloneTools deep-copies a slice of tools.
func CloneTools(in []Tool) []Tool {
	if in == nil {
		return nil
	}
	out := make([]Tool, len(in))
	for i, t := range in {
		out[i] = t
		if t.Parameters != nil {
			out[i].Parameters = append(json.RawMessage(nil), t.Parameters...)
		}
	}
	return out
}

// QueryResult is the answer to a single (server, model, prompt) request.
type QueryResult struct {
	Server  string        `json:"server"`
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Text    string        `json:"result"`
	Elapsed time.Duration `json:"elapsed"`
}

// ConnectivityStatus is the coarse state reported by the health monitor.
type ConnectivityStatus string

const (
	ConnectivityChecking     ConnectivityStatus = "checking"
	ConnectivityConnected    ConnectivityStatus = "connected"
	ConnectivityDisconnected ConnectivityStatus = "disconnected"
)

// ConnectivityState is the last classification of the control API.
type ConnectivityState struct {
	Status    ConnectivityStatus `json:"status"`
	Version   string             `json:"version,omitempty"`
	Error     string             `json:"error,omitempty"`
	CheckedAt time.Time          `json:"checked_at,omitempty"`
}

// Checking returns the initial state.
func Checking() ConnectivityState {
	return ConnectivityState{Status: ConnectivityChecking}
}

// Connected reports whether the last probe succeeded.
func (c ConnectivityState) Connected() bool {
	return c.Status == ConnectivityConnected
}

func (c ConnectivityState) String() string {
	switch c.Status {
	case ConnectivityConnected:
		return fmt.Sprintf("Connected (v%s)", c.Version)
	case ConnectivityDisconnected:
		return "Disconnected"
	default:
		return "Checking..."
	}
}
