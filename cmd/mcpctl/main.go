package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fentz26/mcpctl/internal/apiclient"
	"github.com/fentz26/mcpctl/internal/config"
	"github.com/fentz26/mcpctl/internal/session"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:   "mcpctl",
	Short: "mcpctl - manage MCP servers through the control API",
	Long: `mcpctl registers, edits and removes MCP server definitions, lists the
tools a server exposes, and runs one-shot queries against a server/model pair.
Every change goes through the MCP control API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	apiAddr    string
	configPath string
	logLevel   string
	timeout    time.Duration
	quotedArgs bool
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "Control API address (default from config, http://127.0.0.1:5000/api)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.mcpctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-request timeout")
	rootCmd.PersistentFlags().BoolVar(&quotedArgs, "quoted-args", false, "Parse and print args with shell quoting")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", apiclient.Message(err))
		os.Exit(1)
	}
}

// resolveConfigPath returns --config or the default path.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigFromHome()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("api") {
		cfg.APIAddr = apiAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("quoted-args") {
		cfg.QuotedArgs = quotedArgs
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the stderr logger for one-shot commands.
func newLogger(w io.Writer, cfg *config.Config) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:  cfg.Level(),
		Prefix: "mcpctl",
	})
}

// loadSession builds a session from config and flags, logging to stderr.
func loadSession(cmd *cobra.Command, opts ...session.Option) (*session.Session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return session.New(cfg, newLogger(cmd.ErrOrStderr(), cfg), opts...), nil
}
