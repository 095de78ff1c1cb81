// Package apitest provides an in-memory fake of the MCP control API for
// tests. It follows the collaborator's wire contract: JSON bodies, 404 with an
// "error" field for unknown servers, "query" and "filepath" request fields.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/fentz26/mcpctl/internal/models"
)

// DefaultModel is used when a request names no model.
const DefaultModel = "gpt-3.5-turbo"

// Request records one call the fake received.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

// QueryFunc answers POST /query.
type QueryFunc func(server, model, prompt string) (string, error)

// Server is a fake control API backed by memory.
type Server struct {
	URL     string
	Version string

	mu        sync.Mutex
	order     []string
	servers   map[string]models.ServerDefinition
	tools     map[string][]models.Tool
	queryFunc QueryFunc
	overrides map[string]http.HandlerFunc
	requests  []Request

	http *httptest.Server
}

// New starts a fake control API and registers its shutdown with t.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Version:   "0.1.0",
		servers:   make(map[string]models.ServerDefinition),
		tools:     make(map[string][]models.Tool),
		overrides: make(map[string]http.HandlerFunc),
		queryFunc: func(server, model, prompt string) (string, error) {
			return fmt.Sprintf("[%s/%s] %s", server, model, prompt), nil
		},
	}
	s.http = httptest.NewServer(s.routes())
	s.URL = s.http.URL + "/api"
	t.Cleanup(s.Close)
	return s
}

// Close shuts the fake down. Further calls fail with a transport error.
func (s *Server) Close() {
	s.http.Close()
}

// AddServer seeds a server definition.
func (s *Server) AddServer(def models.ServerDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(def.Normalize())
}

// SetTools seeds the tool list returned for server.
func (s *Server) SetTools(server string, tools ...models.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[server] = tools
}

// SetQueryFunc replaces the query responder.
func (s *Server) SetQueryFunc(fn QueryFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryFunc = fn
}

// Override installs a handler for "METHOD /path" (path without the /api
// prefix), taking precedence over the built-in behavior.
func (s *Server) Override(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[method+" "+path] = h
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestCount returns how many requests were received.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Servers returns the stored definitions in insertion order.
func (s *Server) Servers() []models.ServerDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ServerDefinition, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.servers[name].Clone())
	}
	return out
}

func (s *Server) put(def models.ServerDefinition) {
	if _, ok := s.servers[def.Name]; !ok {
		s.order = append(s.order, def.Name)
	}
	s.servers[def.Name] = def
}

func (s *Server) remove(name string) {
	delete(s.servers, name)
	delete(s.tools, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", s.dispatch)
	return mux
}

// dispatch records the request, applies overrides, then routes.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")

	var body map[string]any
	if r.Body != nil && r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: path, Query: r.URL.RawQuery, Body: body})
	override := s.overrides[r.Method+" "+path]
	s.mu.Unlock()

	if override != nil {
		override(w, r)
		return
	}

	switch {
	case path == "/status" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "mcp-cli-api", "version": s.Version})
	case path == "/servers" && r.Method == http.MethodGet:
		s.listServers(w)
	case path == "/servers" && r.Method == http.MethodPost:
		s.createServer(w, body)
	case strings.HasPrefix(path, "/servers/"):
		s.handleServerByName(w, r, strings.TrimPrefix(path, "/servers/"), body)
	case path == "/query" && r.Method == http.MethodPost:
		s.runQuery(w, body)
	case path == "/config/export" && r.Method == http.MethodPost:
		s.exportConfig(w, body)
	case path == "/config/import" && r.Method == http.MethodPost:
		s.importConfig(w, body)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	}
}

// handleServerByName handles /servers/{name} and /servers/{name}/tools.
func (s *Server) handleServerByName(w http.ResponseWriter, r *http.Request, rest string, body map[string]any) {
	name, action, _ := strings.Cut(rest, "/")

	s.mu.Lock()
	def, ok := s.servers[name]
	available := append([]string(nil), s.order...)
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":             fmt.Sprintf("Server '%s' not found", name),
			"available_servers": available,
		})
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, def)
	case action == "" && r.Method == http.MethodPut:
		s.updateServer(w, name, body)
	case action == "" && r.Method == http.MethodDelete:
		s.mu.Lock()
		s.remove(name)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": fmt.Sprintf("Server '%s' removed successfully", name)})
	case action == "tools" && r.Method == http.MethodGet:
		s.mu.Lock()
		tools := s.tools[name]
		s.mu.Unlock()
		if tools == nil {
			tools = []models.Tool{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "tools": tools})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

func (s *Server) listServers(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"servers": s.Servers()})
}

func (s *Server) createServer(w http.ResponseWriter, body map[string]any) {
	if body == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No data provided"})
		return
	}
	name, _ := body["name"].(string)
	command, _ := body["command"].(string)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Server name is required"})
		return
	}
	if command == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Command is required"})
		return
	}
	s.mu.Lock()
	s.put(models.ServerDefinition{
		Name:    name,
		Command: command,
		Args:    stringSlice(body["args"]),
		Env:     stringMap(body["env"]),
	})
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": fmt.Sprintf("Server '%s' added successfully", name)})
}

func (s *Server) updateServer(w http.ResponseWriter, name string, body map[string]any) {
	if body == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No data provided"})
		return
	}
	command, _ := body["command"].(string)
	if command == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Command is required"})
		return
	}
	s.mu.Lock()
	s.put(models.ServerDefinition{
		Name:    name,
		Command: command,
		Args:    stringSlice(body["args"]),
		Env:     stringMap(body["env"]),
	})
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": fmt.Sprintf("Server '%s' updated successfully", name)})
}

func (s *Server) runQuery(w http.ResponseWriter, body map[string]any) {
	server, _ := body["server"].(string)
	prompt, _ := body["query"].(string)
	model, _ := body["model"].(string)
	if server == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Server name is required"})
		return
	}
	if prompt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Query is required"})
		return
	}
	if model == "" {
		model = DefaultModel
	}

	s.mu.Lock()
	_, known := s.servers[server]
	fn := s.queryFunc
	s.mu.Unlock()

	if !known {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": fmt.Sprintf("Server '%s' not found in configuration", server)})
		return
	}
	result, err := fn(server, model, prompt)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "result": result})
}

// fileConfig is the on-disk layout the control API imports and exports.
type fileConfig struct {
	MCPServers map[string]fileServer `json:"mcpServers"`
}

type fileServer struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

func (s *Server) exportConfig(w http.ResponseWriter, body map[string]any) {
	path, _ := body["filepath"].(string)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "File path is required"})
		return
	}
	cfg := fileConfig{MCPServers: map[string]fileServer{}}
	for _, def := range s.Servers() {
		cfg.MCPServers[def.Name] = fileServer{Command: def.Command, Args: def.Args, Env: def.Env}
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": fmt.Sprintf("Configuration exported to %s", path)})
}

func (s *Server) importConfig(w http.ResponseWriter, body map[string]any) {
	path, _ := body["filepath"].(string)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "File path is required"})
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": fmt.Sprintf("File '%s' not found", path)})
		return
	}
	var cfg fileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": fmt.Sprintf("File '%s' is not a valid JSON file", path)})
		return
	}
	s.mu.Lock()
	s.order = nil
	s.servers = make(map[string]models.ServerDefinition)
	for name, fs := range cfg.MCPServers {
		s.put(models.ServerDefinition{Name: name, Command: fs.Command, Args: fs.Args, Env: fs.Env}.Normalize())
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": fmt.Sprintf("Configuration imported from %s", path)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func stringSlice(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringMap(v any) map[string]string {
	items, _ := v.(map[string]any)
	out := make(map[string]string, len(items))
	for k, it := range items {
		if s, ok := it.(string); ok {
			out[k] = s
		}
	}
	return out
}
