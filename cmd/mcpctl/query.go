package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/mcpctl/internal/session"
)

var queryCmd = &cobra.Command{
	Use:   "query <server> <prompt...>",
	Short: "Run a one-shot query against a server",
	Long: `Send a natural-language prompt to a server through the control API and
print the answer. The call is made once; nothing is retried or streamed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var queryModel string

func init() {
	queryCmd.Flags().StringVarP(&queryModel, "model", "m", "", "Model to use (default from config)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}
	prompt := strings.Join(args[1:], " ")
	return runPrompt(cmd.Context(), cmd.OutOrStdout(), sess, args[0], prompt, queryModel, jsonOutput)
}

// runPrompt lists servers first so an unknown name is caught locally.
func runPrompt(ctx context.Context, w io.Writer, sess *session.Session, server, prompt, model string, asJSON bool) error {
	if _, err := sess.Registry.List(ctx); err != nil {
		return err
	}
	res, err := sess.Query.Execute(ctx, server, prompt, model)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintln(w, res.Text)
	sess.Logger.Info("query answered", "server", res.Server, "model", res.Model, "elapsed", res.Elapsed.Round(time.Millisecond))
	return nil
}
