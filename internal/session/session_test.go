package session_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/mcpctl/internal/apitest"
	"github.com/fentz26/mcpctl/internal/config"
	"github.com/fentz26/mcpctl/internal/models"
	"github.com/fentz26/mcpctl/internal/session"
)

func newSession(t *testing.T, opts ...session.Option) (*session.Session, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t)
	cfg := config.DefaultConfig()
	cfg.APIAddr = srv.URL
	cfg.DefaultModel = "m-default"
	s := session.New(cfg, log.New(io.Discard), opts...)
	t.Cleanup(s.Close)
	return s, srv
}

func TestRemoveInvalidatesCatalog(t *testing.T) {
	s, srv := newSession(t)
	ctx := context.Background()
	srv.AddServer(models.ServerDefinition{Name: "fs", Command: "x"})
	srv.SetTools("fs", models.Tool{Name: "read"})

	_, err := s.Registry.List(ctx)
	require.NoError(t, err)
	_, err = s.Catalog.Fetch(ctx, "fs", "")
	require.NoError(t, err)
	require.True(t, s.Catalog.Snapshot().Loaded)

	require.NoError(t, s.Registry.Remove(ctx, "fs"))
	assert.False(t, s.Catalog.Snapshot().Loaded)
	assert.Empty(t, s.Catalog.Snapshot().Tools)
}

func TestQueryUsesConfiguredModel(t *testing.T) {
	s, srv := newSession(t)
	srv.AddServer(models.ServerDefinition{Name: "fs", Command: "x"})

	res, err := s.Query.Execute(context.Background(), "fs", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "m-default", res.Model)
	assert.Equal(t, "m-default", s.DefaultModel())
}

func TestHealthListener(t *testing.T) {
	got := make(chan models.ConnectivityState, 4)
	s, _ := newSession(t, session.WithHealthListener(func(st models.ConnectivityState) { got <- st }))

	s.Health.Start(context.Background())
	select {
	case st := <-got:
		assert.True(t, st.Connected())
	case <-time.After(5 * time.Second):
		t.Fatal("no health update")
	}
}

func TestNilConfigUsesDefaults(t *testing.T) {
	s := session.New(nil, log.New(io.Discard))
	assert.Equal(t, config.DefaultConfig().APIAddr, s.Client.BaseURL())
	assert.False(t, s.Args.Quoted)
}
