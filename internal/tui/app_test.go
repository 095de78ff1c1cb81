package tui

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/mcpctl/internal/apitest"
	"github.com/fentz26/mcpctl/internal/config"
	"github.com/fentz26/mcpctl/internal/models"
	"github.com/fentz26/mcpctl/internal/session"
)

func newTestApp(t *testing.T) (*App, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t)
	cfg := config.DefaultConfig()
	cfg.APIAddr = srv.URL
	sess := session.New(cfg, log.New(io.Discard))
	t.Cleanup(sess.Close)
	return New(sess, nil), srv
}

// drive runs cmd and feeds its messages back into the app until no
// follow-up command is returned.
func drive(t *testing.T, a *App, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil && i < 5; i++ {
		_, cmd = a.Update(cmd())
	}
}

func TestAddRelists(t *testing.T) {
	a, srv := newTestApp(t)

	drive(t, a, a.submit("add fs npx -y @mcp/server-filesystem /tmp"))

	require.Len(t, a.servers, 1)
	assert.Equal(t, "fs", a.servers[0].Name)
	assert.Equal(t, []string{"-y", "@mcp/server-filesystem", "/tmp"}, a.servers[0].Args)
	assert.Contains(t, a.message, "Added server fs")
	assert.False(t, a.busy)
	assert.Len(t, srv.Servers(), 1)
}

func TestAddValidationShowsError(t *testing.T) {
	a, srv := newTestApp(t)

	drive(t, a, a.submit("add fs"))

	assert.Contains(t, a.message, "command is required")
	assert.False(t, a.busy)
	assert.Zero(t, srv.RequestCount())
}

func TestBusySuppressesSecondSubmission(t *testing.T) {
	a, srv := newTestApp(t)

	first := a.submit("add a x")
	require.NotNil(t, first)
	assert.True(t, a.busy)

	second := a.submit("add b y")
	assert.Nil(t, second)
	assert.Contains(t, a.message, "still in progress")
	assert.Zero(t, srv.RequestCount())

	drive(t, a, first)
	assert.False(t, a.busy)
	assert.Len(t, srv.Servers(), 1)
}

func TestRemoveTrimsWithoutRelist(t *testing.T) {
	a, srv := newTestApp(t)
	srv.AddServer(models.ServerDefinition{Name: "a", Command: "x"})
	srv.AddServer(models.ServerDefinition{Name: "b", Command: "x"})
	drive(t, a, a.loadServers())
	require.Len(t, a.servers, 2)
	before := srv.RequestCount()

	drive(t, a, a.submit("rm"))

	require.Len(t, a.servers, 1)
	assert.Equal(t, "b", a.servers[0].Name)
	assert.Equal(t, before+1, srv.RequestCount())
	assert.Contains(t, a.message, "Removed server a")
}

func TestRemoveGhostShowsNotFound(t *testing.T) {
	a, _ := newTestApp(t)

	drive(t, a, a.submit("rm ghost"))

	assert.Equal(t, "Error: Server 'ghost' not found", a.message)
	assert.False(t, a.busy)
}

func TestEditKeepsEnv(t *testing.T) {
	a, srv := newTestApp(t)
	srv.AddServer(models.ServerDefinition{Name: "fs", Command: "npx", Env: map[string]string{"K": "V"}})
	drive(t, a, a.loadServers())

	drive(t, a, a.submit("edit fs uvx tool"))

	got := srv.Servers()[0]
	assert.Equal(t, "uvx", got.Command)
	assert.Equal(t, []string{"tool"}, got.Args)
	assert.Equal(t, map[string]string{"K": "V"}, got.Env)
}

func TestSetEnv(t *testing.T) {
	a, srv := newTestApp(t)
	srv.AddServer(models.ServerDefinition{Name: "fs", Command: "npx", Args: []string{"-y"}})
	drive(t, a, a.loadServers())

	drive(t, a, a.submit("env fs A=1 B=x=y"))

	got := srv.Servers()[0]
	assert.Equal(t, []string{"-y"}, got.Args)
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y"}, got.Env)
}

func TestToolsView(t *testing.T) {
	a, srv := newTestApp(t)
	srv.AddServer(models.ServerDefinition{Name: "fs", Command: "npx"})
	srv.SetTools("fs", models.Tool{
		Name:        "read_file",
		Description: "Read a file",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
	})
	drive(t, a, a.loadServers())

	drive(t, a, a.submit("tools"))

	assert.Equal(t, modeTools, a.mode)
	view := a.View()
	assert.Contains(t, view, "read_file")
	assert.Contains(t, view, "path: string")
	assert.Contains(t, a.message, "1 tools from fs")
}

func TestToolsViewHidesPreviousSelection(t *testing.T) {
	a, srv := newTestApp(t)
	srv.AddServer(models.ServerDefinition{Name: "alpha", Command: "x"})
	srv.AddServer(models.ServerDefinition{Name: "beta", Command: "x"})
	srv.SetTools("alpha", models.Tool{Name: "alpha_tool"})
	drive(t, a, a.submit("tools alpha"))
	require.Contains(t, a.View(), "alpha_tool")

	pending := a.submit("tools beta")
	require.NotNil(t, pending)

	view := a.View()
	assert.NotContains(t, view, "alpha_tool")
	assert.Contains(t, view, "Loading tools")
}

func TestModelSwitchRefetchesTools(t *testing.T) {
	a, srv := newTestApp(t)
	srv.AddServer(models.ServerDefinition{Name: "fs", Command: "x"})
	drive(t, a, a.submit("tools fs"))

	drive(t, a, a.submit("model gpt-4"))

	reqs := srv.Requests()
	assert.Equal(t, "model=gpt-4", reqs[len(reqs)-1].Query)
	assert.Equal(t, "gpt-4", a.model)
}

func TestModelCycles(t *testing.T) {
	a, _ := newTestApp(t)
	require.Equal(t, "gpt-3.5-turbo", a.model)

	a.submit("model")
	assert.Equal(t, "gpt-4", a.model)
}

func TestAsk(t *testing.T) {
	a, srv := newTestApp(t)
	srv.AddServer(models.ServerDefinition{Name: "fs", Command: "x"})
	srv.SetQueryFunc(func(server, model, prompt string) (string, error) {
		return "the answer", nil
	})
	drive(t, a, a.loadServers())

	drive(t, a, a.submit("ask what can you do?"))

	require.NotNil(t, a.result)
	assert.Equal(t, "the answer", a.result.Text)
	assert.Equal(t, modeQuery, a.mode)
	assert.Contains(t, a.View(), "the answer")
}

func TestAskBlankPromptSendsNothing(t *testing.T) {
	a, srv := newTestApp(t)
	srv.AddServer(models.ServerDefinition{Name: "fs", Command: "x"})
	drive(t, a, a.loadServers())
	before := srv.RequestCount()

	drive(t, a, a.submit("ask    "))

	assert.Contains(t, a.message, "query is required")
	assert.Equal(t, before, srv.RequestCount())
	assert.False(t, a.busy)
}

func TestConnectivityHeader(t *testing.T) {
	a, _ := newTestApp(t)
	assert.Contains(t, a.View(), "Checking...")

	a.Update(connectivityMsg{state: models.ConnectivityState{Status: models.ConnectivityConnected, Version: "0.1.0"}})
	assert.Contains(t, a.View(), "Connected (v0.1.0)")

	a.Update(connectivityMsg{state: models.ConnectivityState{Status: models.ConnectivityDisconnected}})
	assert.Contains(t, a.View(), "Disconnected")
}

func TestHealthFeedKeepsLatest(t *testing.T) {
	feed := NewHealthFeed()
	feed.Publish(models.ConnectivityState{Status: models.ConnectivityDisconnected})
	feed.Publish(models.ConnectivityState{Status: models.ConnectivityConnected, Version: "2"})

	done := make(chan tea.Msg, 1)
	go func() { done <- feed.Wait()() }()

	select {
	case msg := <-done:
		assert.Equal(t, "2", msg.(connectivityMsg).state.Version)
	case <-time.After(time.Second):
		t.Fatal("feed did not deliver")
	}
}

func TestEnterSubmitsInput(t *testing.T) {
	a, srv := newTestApp(t)
	a.input.SetValue("add fs npx")

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drive(t, a, cmd)

	assert.Len(t, srv.Servers(), 1)
	assert.Empty(t, a.input.Value())
}

func TestUnknownCommand(t *testing.T) {
	a, _ := newTestApp(t)
	assert.Nil(t, a.submit("frobnicate"))
	assert.Contains(t, a.message, "Unknown: frobnicate")
}

func TestSplitFirst(t *testing.T) {
	tests := []struct {
		in, head, tail string
	}{
		{"add fs npx -y", "add", "fs npx -y"},
		{"  rm  ", "rm", ""},
		{"", "", ""},
		{"ask\twhat  now", "ask", "what  now"},
	}
	for _, tt := range tests {
		head, tail := splitFirst(tt.in)
		assert.Equal(t, tt.head, head)
		assert.Equal(t, tt.tail, tail)
	}
}

func serverDef(name string) models.ServerDefinition {
	return models.ServerDefinition{Name: name, Command: "x"}
}
