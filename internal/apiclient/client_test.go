package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/mcpctl/internal/apiclient"
	"github.com/fentz26/mcpctl/internal/apitest"
	"github.com/fentz26/mcpctl/internal/models"
)

func newClient(t *testing.T) (*apiclient.Client, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t)
	return apiclient.New(srv.URL, apiclient.WithTimeout(2*time.Second)), srv
}

func TestStatus(t *testing.T) {
	c, srv := newClient(t)
	srv.Version = "1.2.3"

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", st.Version)
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, "mcp-cli-api", st.Service)
}

func TestStatusMistypedOptionalField(t *testing.T) {
	c, srv := newClient(t)
	srv.Override(http.MethodGet, "/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"1.0.0","service":5}`))
	})

	_, err := c.Status(context.Background())
	var pe *apiclient.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "service")
}

func TestStatusWithoutOptionalFields(t *testing.T) {
	c, srv := newClient(t)
	srv.Override(http.MethodGet, "/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"1.0.0"}`))
	})

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", st.Version)
	assert.Empty(t, st.Service)
}

func TestStatusMissingVersion(t *testing.T) {
	c, srv := newClient(t)
	srv.Override(http.MethodGet, "/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	_, err := c.Status(context.Background())
	var pe *apiclient.ProtocolError
	require.ErrorAs(t, err, &pe)
}

func TestServerCRUD(t *testing.T) {
	c, srv := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateServer(ctx, models.ServerDefinition{
		Name:    "fs",
		Command: "npx",
		Args:    []string{"-y", "server-filesystem"},
		Env:     map[string]string{"ROOT": "/tmp"},
	}))

	servers, err := c.ListServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "npx", servers[0].Command)
	assert.Equal(t, []string{"-y", "server-filesystem"}, servers[0].Args)
	assert.Equal(t, map[string]string{"ROOT": "/tmp"}, servers[0].Env)

	require.NoError(t, c.UpdateServer(ctx, models.ServerDefinition{Name: "fs", Command: "uvx"}))
	servers, err = c.ListServers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "uvx", servers[0].Command)
	assert.Empty(t, servers[0].Args)
	assert.NotNil(t, servers[0].Env)

	require.NoError(t, c.DeleteServer(ctx, "fs"))
	servers, err = c.ListServers(ctx)
	require.NoError(t, err)
	assert.Empty(t, servers)
}

func TestCreateServerSendsEmptyCollections(t *testing.T) {
	c, srv := newClient(t)

	require.NoError(t, c.CreateServer(context.Background(), models.ServerDefinition{Name: "a", Command: "x"}))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []any{}, reqs[0].Body["args"])
	assert.Equal(t, map[string]any{}, reqs[0].Body["env"])
}

func TestDeleteMissingServerIsNotFound(t *testing.T) {
	c, _ := newClient(t)

	err := c.DeleteServer(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, apiclient.IsNotFound(err))
	assert.Equal(t, "Server 'ghost' not found", apiclient.Message(err))
}

func TestServerNameIsPathEscaped(t *testing.T) {
	c, srv := newClient(t)
	srv.AddServer(models.ServerDefinition{Name: "a b", Command: "x"})

	require.NoError(t, c.DeleteServer(context.Background(), "a b"))
	assert.Empty(t, srv.Servers())
}

func TestListTools(t *testing.T) {
	c, srv := newClient(t)
	srv.AddServer(models.ServerDefinition{Name: "fs", Command: "npx"})
	srv.SetTools("fs", models.Tool{
		Name:        "read_file",
		Description: "Read a file",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
	})

	tools, err := c.ListTools(context.Background(), "fs", "gpt-4")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "read_file", tools[0].Name)
	assert.JSONEq(t, `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`, string(tools[0].Parameters))

	reqs := srv.Requests()
	assert.Equal(t, "model=gpt-4", reqs[len(reqs)-1].Query)
}

func TestListToolsEmptyIsSuccess(t *testing.T) {
	c, srv := newClient(t)
	srv.AddServer(models.ServerDefinition{Name: "fs", Command: "npx"})

	tools, err := c.ListTools(context.Background(), "fs", "m")
	require.NoError(t, err)
	assert.NotNil(t, tools)
	assert.Empty(t, tools)
}

func TestListToolsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr any
	}{
		{"missing tools", `{"status":"success"}`, &apiclient.ProtocolError{}},
		{"tools not array", `{"tools":"nope"}`, &apiclient.ProtocolError{}},
		{"entry not object", `{"tools":[1,2]}`, &apiclient.ProtocolError{}},
		{"not json", `<html>`, &apiclient.ProtocolError{}},
		{"error body", `{"error":"model unavailable"}`, &apiclient.RemoteError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newClient(t)
			srv.Override(http.MethodGet, "/servers/fs/tools", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			_, err := c.ListTools(context.Background(), "fs", "m")
			require.Error(t, err)
			switch tt.wantErr.(type) {
			case *apiclient.ProtocolError:
				var pe *apiclient.ProtocolError
				assert.ErrorAs(t, err, &pe)
			case *apiclient.RemoteError:
				var re *apiclient.RemoteError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, "model unavailable", re.Message)
			}
		})
	}
}

func TestQuery(t *testing.T) {
	c, srv := newClient(t)
	srv.AddServer(models.ServerDefinition{Name: "fs", Command: "npx"})
	srv.SetQueryFunc(func(server, model, prompt string) (string, error) {
		return server + "|" + model + "|" + prompt, nil
	})

	out, err := c.Query(context.Background(), "fs", "m1", "list files")
	require.NoError(t, err)
	assert.Equal(t, "fs|m1|list files", out)

	reqs := srv.Requests()
	assert.Equal(t, "list files", reqs[0].Body["query"])
}

func TestQueryRemoteFailure(t *testing.T) {
	c, _ := newClient(t)

	_, err := c.Query(context.Background(), "ghost", "m1", "hi")
	var re *apiclient.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
	assert.Contains(t, re.Message, "ghost")
}

func TestStatusCodeWithoutBody(t *testing.T) {
	c, srv := newClient(t)
	srv.Override(http.MethodGet, "/servers", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.ListServers(context.Background())
	var te *apiclient.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
}

func TestMessageFieldFallback(t *testing.T) {
	c, srv := newClient(t)
	srv.Override(http.MethodPost, "/servers", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"already exists"}`))
	})

	err := c.CreateServer(context.Background(), models.ServerDefinition{Name: "a", Command: "b"})
	require.Error(t, err)
	assert.Equal(t, "already exists", apiclient.Message(err))
}

func TestUnreachable(t *testing.T) {
	c, srv := newClient(t)
	srv.Close()

	_, err := c.Status(context.Background())
	var te *apiclient.TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
}

func TestConfigImportExport(t *testing.T) {
	c, srv := newClient(t)
	ctx := context.Background()
	srv.AddServer(models.ServerDefinition{Name: "fs", Command: "npx", Args: []string{"-y"}})
	path := filepath.Join(t.TempDir(), "servers.json")

	require.NoError(t, c.ExportConfig(ctx, path))
	require.NoError(t, c.DeleteServer(ctx, "fs"))
	require.NoError(t, c.ImportConfig(ctx, path))

	servers := srv.Servers()
	require.Len(t, servers, 1)
	assert.Equal(t, "fs", servers[0].Name)

	reqs := srv.Requests()
	assert.Equal(t, path, reqs[0].Body["filepath"])
}

func TestImportMissingFile(t *testing.T) {
	c, _ := newClient(t)

	err := c.ImportConfig(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, apiclient.IsNotFound(err))
}
