package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/fentz26/mcpctl/internal/models"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Version string `json:"version"`
	Service string `json:"service,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Status probes the control API.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	const op = "status"
	body, err := c.do(ctx, op, http.MethodGet, "/status", nil)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(op, body)
	if err != nil {
		return nil, err
	}
	var st StatusResponse
	if err := field(op, obj, "version", &st.Version); err != nil {
		return nil, err
	}
	for name, dst := range map[string]*string{"service": &st.Service, "status": &st.Status} {
		if _, ok := obj[name]; !ok {
			continue
		}
		if err := field(op, obj, name, dst); err != nil {
			return nil, err
		}
	}
	return &st, nil
}

// ListServers fetches every server definition, in the API's order.
func (c *Client) ListServers(ctx context.Context) ([]models.ServerDefinition, error) {
	const op = "list servers"
	body, err := c.do(ctx, op, http.MethodGet, "/servers", nil)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(op, body)
	if err != nil {
		return nil, err
	}
	var servers []models.ServerDefinition
	if err := field(op, obj, "servers", &servers); err != nil {
		return nil, err
	}
	for i := range servers {
		servers[i] = servers[i].Normalize()
	}
	return servers, nil
}

type createServerRequest struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// CreateServer registers a new server definition.
func (c *Client) CreateServer(ctx context.Context, def models.ServerDefinition) error {
	def = def.Normalize()
	_, err := c.do(ctx, "add server", http.MethodPost, "/servers", createServerRequest{
		Name:    def.Name,
		Command: def.Command,
		Args:    def.Args,
		Env:     def.Env,
	})
	return err
}

type updateServerRequest struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// UpdateServer replaces command, args and env of the server named def.Name.
func (c *Client) UpdateServer(ctx context.Context, def models.ServerDefinition) error {
	def = def.Normalize()
	_, err := c.do(ctx, "update server", http.MethodPut, "/servers/"+url.PathEscape(def.Name), updateServerRequest{
		Command: def.Command,
		Args:    def.Args,
		Env:     def.Env,
	})
	return err
}

// DeleteServer removes the named server definition.
func (c *Client) DeleteServer(ctx context.Context, name string) error {
	_, err := c.do(ctx, "remove server", http.MethodDelete, "/servers/"+url.PathEscape(name), nil)
	return err
}

// ListTools fetches the tools the named server exposes under model.
func (c *Client) ListTools(ctx context.Context, server, model string) ([]models.Tool, error) {
	const op = "list tools"
	path := "/servers/" + url.PathEscape(server) + "/tools"
	if model != "" {
		path += "?" + url.Values{"model": {model}}.Encode()
	}
	body, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(op, body)
	if err != nil {
		return nil, err
	}
	if _, ok := obj["tools"]; !ok {
		if msg := extractMessage(body); msg != "" {
			return nil, &RemoteError{Op: op, StatusCode: http.StatusOK, Message: msg}
		}
	}
	var raw []json.RawMessage
	if err := field(op, obj, "tools", &raw); err != nil {
		return nil, err
	}
	tools := make([]models.Tool, 0, len(raw))
	for _, r := range raw {
		var t models.Tool
		if err := json.Unmarshal(r, &t); err != nil {
			return nil, &ProtocolError{Op: op, Message: "tool entry is not an object", Err: err}
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// queryRequest is the body of POST /query. The control API reads the prompt
// from the "query" field.
type queryRequest struct {
	Server string `json:"server"`
	Model  string `json:"model"`
	Prompt string `json:"query"`
}

// Query runs prompt against server using model and returns the answer text.
func (c *Client) Query(ctx context.Context, server, model, prompt string) (string, error) {
	const op = "query"
	body, err := c.do(ctx, op, http.MethodPost, "/query", queryRequest{
		Server: server,
		Model:  model,
		Prompt: prompt,
	})
	if err != nil {
		return "", err
	}
	obj, err := decodeObject(op, body)
	if err != nil {
		return "", err
	}
	var result string
	if err := field(op, obj, "result", &result); err != nil {
		return "", err
	}
	return result, nil
}

type configPathRequest struct {
	Path string `json:"filepath"`
}

// ImportConfig asks the control API to load its configuration from path.
func (c *Client) ImportConfig(ctx context.Context, path string) error {
	_, err := c.do(ctx, "import config", http.MethodPost, "/config/import", configPathRequest{Path: path})
	return err
}

// ExportConfig asks the control API to write its configuration to path.
func (c *Client) ExportConfig(ctx context.Context, path string) error {
	_, err := c.do(ctx, "export config", http.MethodPost, "/config/export", configPathRequest{Path: path})
	return err
}
