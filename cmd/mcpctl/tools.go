package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fentz26/mcpctl/internal/apiclient"
	"github.com/fentz26/mcpctl/internal/models"
	"github.com/fentz26/mcpctl/internal/session"
)

// maxParallelFetches bounds concurrent tool listings for --all.
const maxParallelFetches = 4

var toolsCmd = &cobra.Command{
	Use:   "tools [server]",
	Short: "List the tools a server exposes",
	Long: `List the tools a server exposes for a model, with each tool's parameters.
Required parameters are marked with *.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: runTools,
}

var (
	toolsModel string
	toolsAll   bool
)

func init() {
	toolsCmd.Flags().StringVarP(&toolsModel, "model", "m", "", "Model to list tools for (default from config)")
	toolsCmd.Flags().BoolVar(&toolsAll, "all", false, "List tools of every registered server")
}

func runTools(cmd *cobra.Command, args []string) error {
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}
	model := toolsModel
	if model == "" {
		model = sess.DefaultModel()
	}

	if toolsAll {
		return listAllTools(cmd.Context(), cmd.OutOrStdout(), sess, model, jsonOutput)
	}
	if len(args) == 0 {
		return apiclient.Invalid("server", "server name is required (or use --all)")
	}
	return listTools(cmd.Context(), cmd.OutOrStdout(), sess, args[0], model, jsonOutput)
}

func listTools(ctx context.Context, w io.Writer, sess *session.Session, server, model string, asJSON bool) error {
	tools, err := sess.Catalog.Fetch(ctx, server, model)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, tools)
	}
	printTools(w, server, model, tools)
	return nil
}

// serverTools is one server's result in an --all listing.
type serverTools struct {
	Server string        `json:"server"`
	Tools  []models.Tool `json:"tools,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// listAllTools fetches every server's tools concurrently. A failing server
// is reported in place and does not abort the others.
func listAllTools(ctx context.Context, w io.Writer, sess *session.Session, model string, asJSON bool) error {
	servers, err := sess.Registry.List(ctx)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	results := make([]serverTools, 0, len(servers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for _, s := range servers {
		name := s.Name
		g.Go(func() error {
			tools, err := sess.Client.ListTools(gctx, name, model)
			r := serverTools{Server: name, Tools: tools}
			if err != nil {
				r.Error = apiclient.Message(err)
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Server < results[j].Server })

	if asJSON {
		return writeJSON(w, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No servers registered.")
		return nil
	}
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "%s (%s): error: %s\n", r.Server, model, r.Error)
			continue
		}
		printTools(w, r.Server, model, r.Tools)
	}
	return nil
}

func printTools(w io.Writer, server, model string, tools []models.Tool) {
	if len(tools) == 0 {
		fmt.Fprintf(w, "%s (%s): no tools\n", server, model)
		return
	}
	fmt.Fprintf(w, "%s (%s): %d tools\n", server, model, len(tools))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tDESCRIPTION\tPARAMETERS")
	for _, t := range tools {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, oneLine(t.Description, 60), formatParams(t))
	}
	tw.Flush()
}

// formatParams renders "name:type*" pairs, or the raw schema when it does
// not parse.
func formatParams(t models.Tool) string {
	params, err := t.Params()
	if err != nil {
		return oneLine(string(t.Parameters), 60)
	}
	if len(params) == 0 {
		return "-"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		s := p.Name
		if p.Type != "" {
			s += ":" + p.Type
		}
		if p.Required {
			s += "*"
		}
		parts[i] = s
	}
	return strings.Join(parts, " ")
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); limit > 3 && len(r) > limit {
		return string(r[:limit-3]) + "..."
	}
	return s
}
