package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fentz26/mcpctl/internal/session"
	"github.com/fentz26/mcpctl/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive TUI",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Log lines would corrupt the alt screen.
	feed := tui.NewHealthFeed()
	sess := session.New(cfg, newLogger(io.Discard, cfg), session.WithHealthListener(feed.Publish))
	defer sess.Close()

	if err := tui.New(sess, feed).Run(cmd.Context()); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
