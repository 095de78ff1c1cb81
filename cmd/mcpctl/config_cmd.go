package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fentz26/mcpctl/internal/config"
	"github.com/fentz26/mcpctl/internal/session"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mcpctl settings and the control API's server configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load the control API's server configuration from a file",
	Long: `Ask the control API to replace its server configuration with the contents
of a JSON file. The path is resolved on this machine and sent as an absolute
path, so the API must be able to read it.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigImport,
}

var configExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the control API's server configuration to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigExport,
}

var configForce bool

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd, configImportCmd, configExportCmd)
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	return initConfig(cmd.OutOrStdout(), path, cfg, configForce)
}

func initConfig(w io.Writer, path string, cfg *config.Config, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return showConfig(cmd.OutOrStdout(), cfg)
}

func showConfig(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func runConfigImport(cmd *cobra.Command, args []string) error {
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}
	return importConfig(cmd.Context(), cmd.OutOrStdout(), sess, args[0])
}

func runConfigExport(cmd *cobra.Command, args []string) error {
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}
	return exportConfig(cmd.Context(), cmd.OutOrStdout(), sess, args[0])
}

// importConfig loads the file through the API, then re-lists to report what
// the API now holds.
func importConfig(ctx context.Context, w io.Writer, sess *session.Session, path string) error {
	abs, err := absPath(path)
	if err != nil {
		return err
	}
	if err := sess.Registry.Import(ctx, abs); err != nil {
		return err
	}
	servers, err := sess.Registry.List(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Imported %s (%d servers)\n", abs, len(servers))
	return nil
}

func exportConfig(ctx context.Context, w io.Writer, sess *session.Session, path string) error {
	abs, err := absPath(path)
	if err != nil {
		return err
	}
	if err := sess.Registry.Export(ctx, abs); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Exported to %s\n", abs)
	return nil
}

// absPath leaves empty paths alone so the registry reports them.
func absPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(path)
}
