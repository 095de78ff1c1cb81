package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fentz26/mcpctl/internal/apiclient"
	"github.com/fentz26/mcpctl/internal/codec"
	"github.com/fentz26/mcpctl/internal/models"
	"github.com/fentz26/mcpctl/internal/session"
)

var serversCmd = &cobra.Command{
	Use:     "servers",
	Aliases: []string{"server"},
	Short:   "Manage MCP server definitions",
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered servers",
	Args:  cobra.NoArgs,
	RunE:  runServersList,
}

var serversShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one server definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runServersShow,
}

var serversAddCmd = &cobra.Command{
	Use:   "add <name> <command> [args...]",
	Short: "Register a new server",
	Long: `Register a new server. Arguments after the command are passed to it;
put them after -- when they start with a dash:

  mcpctl servers add fs npx -- -y @modelcontextprotocol/server-filesystem /tmp`,
	Args: cobra.MinimumNArgs(1),
	RunE: runServersAdd,
}

var serversEditCmd = &cobra.Command{
	Use:   "edit <name> <command> [args...]",
	Short: "Replace the command, args and env of a server",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runServersEdit,
}

var serversRmCmd = &cobra.Command{
	Use:     "rm <name>",
	Aliases: []string{"remove", "delete"},
	Short:   "Remove a server",
	Args:    cobra.ExactArgs(1),
	RunE:    runServersRm,
}

var (
	serverEnv     []string
	serverEnvText string
	serverArgText string
	serverKeepEnv bool
)

func init() {
	serversCmd.AddCommand(serversListCmd, serversShowCmd, serversAddCmd, serversEditCmd, serversRmCmd)

	for _, c := range []*cobra.Command{serversAddCmd, serversEditCmd} {
		c.Flags().StringArrayVarP(&serverEnv, "env", "e", nil, "Environment variable KEY=VALUE (repeatable)")
		c.Flags().StringVar(&serverEnvText, "env-text", "", "Environment as KEY=VALUE lines")
		c.Flags().StringVar(&serverArgText, "args", "", "Arguments as a single string instead of positional args")
	}
	serversEditCmd.Flags().BoolVar(&serverKeepEnv, "keep-env", false, "Keep the current env when no --env is given")
}

// launchSpec is the parsed form of add/edit input.
type launchSpec struct {
	Name    string
	Command string
	Args    []string
	ArgText string
	Env     []string
	EnvText string
	KeepEnv bool
}

// definition turns the parsed input into a ServerDefinition.
func (l launchSpec) definition(argCodec codec.Args) (models.ServerDefinition, error) {
	args := l.Args
	if l.ArgText != "" {
		decoded, err := argCodec.Decode(l.ArgText)
		if err != nil {
			return models.ServerDefinition{}, apiclient.Invalid("args", "%v", err)
		}
		args = append(append([]string(nil), args...), decoded...)
	}

	env := codec.DecodeEnv(l.EnvText)
	for _, pair := range l.Env {
		if !strings.Contains(pair, "=") {
			return models.ServerDefinition{}, apiclient.Invalid("env", "%q is not KEY=VALUE", pair)
		}
		for k, v := range codec.DecodeEnv(pair) {
			env[k] = v
		}
	}

	return models.ServerDefinition{
		Name:    l.Name,
		Command: l.Command,
		Args:    args,
		Env:     env,
	}, nil
}

func launchFromArgs(args []string) launchSpec {
	spec := launchSpec{
		ArgText: serverArgText,
		Env:     serverEnv,
		EnvText: serverEnvText,
		KeepEnv: serverKeepEnv,
	}
	spec.Name = args[0]
	if len(args) > 1 {
		spec.Command = args[1]
		spec.Args = args[2:]
	}
	return spec
}

func runServersList(cmd *cobra.Command, args []string) error {
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}
	return listServers(cmd.Context(), cmd.OutOrStdout(), sess, jsonOutput)
}

func runServersShow(cmd *cobra.Command, args []string) error {
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}
	return showServer(cmd.Context(), cmd.OutOrStdout(), sess, args[0], jsonOutput)
}

func runServersAdd(cmd *cobra.Command, args []string) error {
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}
	return addServer(cmd.Context(), cmd.OutOrStdout(), sess, launchFromArgs(args))
}

func runServersEdit(cmd *cobra.Command, args []string) error {
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}
	return editServer(cmd.Context(), cmd.OutOrStdout(), sess, launchFromArgs(args))
}

func runServersRm(cmd *cobra.Command, args []string) error {
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}
	return removeServer(cmd.Context(), cmd.OutOrStdout(), sess, args[0])
}

func listServers(ctx context.Context, w io.Writer, sess *session.Session, asJSON bool) error {
	servers, err := sess.Registry.List(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, servers)
	}
	if len(servers) == 0 {
		fmt.Fprintln(w, "No servers registered. Add one with: mcpctl servers add <name> <command> [args...]")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCOMMAND\tARGS\tENV")
	for _, s := range servers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Command, sess.Args.Encode(s.Args), strings.Join(s.EnvKeys(), ","))
	}
	return tw.Flush()
}

func showServer(ctx context.Context, w io.Writer, sess *session.Session, name string, asJSON bool) error {
	if _, err := sess.Registry.List(ctx); err != nil {
		return err
	}
	def, ok := sess.Registry.Get(name)
	if !ok {
		return &apiclient.NotFoundError{Op: "show server", Message: fmt.Sprintf("Server '%s' not found", name)}
	}
	if asJSON {
		return writeJSON(w, def)
	}
	printServer(w, sess, def)
	return nil
}

func printServer(w io.Writer, sess *session.Session, def models.ServerDefinition) {
	fmt.Fprintf(w, "Name:     %s\n", def.Name)
	fmt.Fprintf(w, "Command:  %s\n", def.Command)
	fmt.Fprintf(w, "Args:     %s\n", sess.Args.Encode(def.Args))
	if len(def.Env) == 0 {
		fmt.Fprintln(w, "Env:      (none)")
		return
	}
	fmt.Fprintln(w, "Env:")
	for _, line := range strings.Split(codec.EncodeEnv(def.Env), "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

// addServer registers the server, then re-lists to show what the API stored.
func addServer(ctx context.Context, w io.Writer, sess *session.Session, spec launchSpec) error {
	def, err := spec.definition(sess.Args)
	if err != nil {
		return err
	}
	if err := sess.Registry.Add(ctx, def); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Added server %s\n", def.Name)
	return printStored(ctx, w, sess, def.Name)
}

// editServer fully replaces the definition, then re-lists.
func editServer(ctx context.Context, w io.Writer, sess *session.Session, spec launchSpec) error {
	def, err := spec.definition(sess.Args)
	if err != nil {
		return err
	}
	if spec.KeepEnv && len(spec.Env) == 0 && spec.EnvText == "" {
		if _, err := sess.Registry.List(ctx); err != nil {
			return err
		}
		if current, ok := sess.Registry.Get(def.Name); ok {
			def.Env = current.Env
		}
	}
	if err := sess.Registry.Update(ctx, def); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Updated server %s\n", def.Name)
	return printStored(ctx, w, sess, def.Name)
}

func printStored(ctx context.Context, w io.Writer, sess *session.Session, name string) error {
	if _, err := sess.Registry.List(ctx); err != nil {
		return err
	}
	if def, ok := sess.Registry.Get(name); ok {
		printServer(w, sess, def)
	}
	return nil
}

func removeServer(ctx context.Context, w io.Writer, sess *session.Session, name string) error {
	if err := sess.Registry.Remove(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Removed server %s\n", name)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
