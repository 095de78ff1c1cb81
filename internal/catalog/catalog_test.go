package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/mcpctl/internal/apiclient"
	"github.com/fentz26/mcpctl/internal/apitest"
	"github.com/fentz26/mcpctl/internal/catalog"
	"github.com/fentz26/mcpctl/internal/models"
)

func setup(t *testing.T) (*catalog.Catalog, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t)
	srv.AddServer(models.ServerDefinition{Name: "alpha", Command: "x"})
	srv.AddServer(models.ServerDefinition{Name: "beta", Command: "x"})
	srv.SetTools("alpha", models.Tool{Name: "alpha_tool"})
	srv.SetTools("beta", models.Tool{Name: "beta_tool"})
	return catalog.New(apiclient.New(srv.URL), catalog.WithLogger(log.New(io.Discard))), srv
}

func toolNames(tools []models.Tool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names
}

func TestFetch(t *testing.T) {
	cat, _ := setup(t)

	tools, err := cat.Fetch(context.Background(), "alpha", "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha_tool"}, toolNames(tools))

	snap := cat.Snapshot()
	assert.True(t, snap.Loaded)
	assert.False(t, snap.Loading)
	assert.Equal(t, catalog.Selection{Server: "alpha", Model: "m1"}, snap.Selection)
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestFetchEmptyIsLoaded(t *testing.T) {
	cat, srv := setup(t)
	srv.AddServer(models.ServerDefinition{Name: "bare", Command: "x"})

	assert.False(t, cat.Snapshot().Loaded)

	tools, err := cat.Fetch(context.Background(), "bare", "m1")
	require.NoError(t, err)
	assert.Empty(t, tools)
	assert.True(t, cat.Snapshot().Loaded)
}

func TestFetchReplacesPreviousSelection(t *testing.T) {
	cat, _ := setup(t)
	ctx := context.Background()

	_, err := cat.Fetch(ctx, "alpha", "m1")
	require.NoError(t, err)
	_, err = cat.Fetch(ctx, "beta", "m1")
	require.NoError(t, err)

	assert.Equal(t, []string{"beta_tool"}, toolNames(cat.Snapshot().Tools))
}

func TestFetchFailureClearsTools(t *testing.T) {
	cat, srv := setup(t)
	ctx := context.Background()
	_, err := cat.Fetch(ctx, "alpha", "m1")
	require.NoError(t, err)

	srv.Override(http.MethodGet, "/servers/beta/tools", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success"}`))
	})
	_, err = cat.Fetch(ctx, "beta", "m1")
	var pe *apiclient.ProtocolError
	require.ErrorAs(t, err, &pe)

	snap := cat.Snapshot()
	assert.Empty(t, snap.Tools)
	assert.False(t, snap.Loaded)
	assert.Error(t, snap.Err)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	cat, srv := setup(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	srv.Override(http.MethodGet, "/servers/alpha/tools", func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		json.NewEncoder(w).Encode(map[string]any{"tools": []models.Tool{{Name: "alpha_tool"}}})
	})

	alphaErr := make(chan error, 1)
	go func() {
		_, err := cat.Fetch(context.Background(), "alpha", "m1")
		alphaErr <- err
	}()
	<-entered

	tools, err := cat.Fetch(context.Background(), "beta", "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"beta_tool"}, toolNames(tools))

	close(release)
	select {
	case err := <-alphaErr:
		assert.True(t, errors.Is(err, catalog.ErrSuperseded))
	case <-time.After(5 * time.Second):
		t.Fatal("alpha fetch did not finish")
	}

	snap := cat.Snapshot()
	assert.Equal(t, "beta", snap.Selection.Server)
	assert.Equal(t, []string{"beta_tool"}, toolNames(snap.Tools))
}

func TestRefresh(t *testing.T) {
	cat, srv := setup(t)
	ctx := context.Background()

	_, err := cat.Refresh(ctx)
	assert.True(t, apiclient.IsValidation(err))

	_, err = cat.Fetch(ctx, "alpha", "m1")
	require.NoError(t, err)
	srv.SetTools("alpha", models.Tool{Name: "a1"}, models.Tool{Name: "a2"})

	tools, err := cat.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, toolNames(tools))
}

func TestInvalidate(t *testing.T) {
	cat, _ := setup(t)
	_, err := cat.Fetch(context.Background(), "alpha", "m1")
	require.NoError(t, err)

	cat.Invalidate("beta")
	assert.True(t, cat.Snapshot().Loaded)

	cat.Invalidate("alpha")
	snap := cat.Snapshot()
	assert.False(t, snap.Loaded)
	assert.Empty(t, snap.Tools)
	assert.Empty(t, snap.Selection.Server)
}

func TestFetchValidation(t *testing.T) {
	cat, srv := setup(t)

	_, err := cat.Fetch(context.Background(), " ", "m1")
	assert.True(t, apiclient.IsValidation(err))
	assert.Zero(t, srv.RequestCount())
}
