package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/fentz26/mcpctl/internal/models"
	"github.com/fentz26/mcpctl/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check connectivity to the control API",
	Long: `Probe the control API once and print whether it is reachable. With
--watch, keep polling at the configured interval and print every change
until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var statusWatch bool

// errDisconnected makes a one-shot status exit non-zero.
var errDisconnected = errors.New("control API unreachable")

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Keep polling and print changes")
}

func runStatus(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	if !statusWatch {
		sess, err := loadSession(cmd)
		if err != nil {
			return err
		}
		return checkStatus(cmd.Context(), w, sess, jsonOutput)
	}

	var mu sync.Mutex
	sess, err := loadSession(cmd, session.WithHealthListener(func(st models.ConnectivityState) {
		mu.Lock()
		defer mu.Unlock()
		printState(w, st)
	}))
	if err != nil {
		return err
	}
	return watchStatus(cmd.Context(), w, sess)
}

// checkStatus probes once without touching the monitor's cached state.
func checkStatus(ctx context.Context, w io.Writer, sess *session.Session, asJSON bool) error {
	st := sess.Health.Check(ctx)
	if asJSON {
		if err := writeJSON(w, st); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "API:    %s\n", sess.Client.BaseURL())
		fmt.Fprintf(w, "Status: %s\n", st)
		if st.Error != "" {
			fmt.Fprintf(w, "Error:  %s\n", st.Error)
		}
	}
	if !st.Connected() {
		return fmt.Errorf("%w: %s", errDisconnected, sess.Client.BaseURL())
	}
	return nil
}

// watchStatus runs the monitor until ctx is done. Changes are printed by the
// session's health listener.
func watchStatus(ctx context.Context, w io.Writer, sess *session.Session) error {
	fmt.Fprintf(w, "Watching %s every %s (Ctrl+C to stop)\n", sess.Client.BaseURL(), sess.Config.PollInterval)
	sess.Health.Start(ctx)
	<-ctx.Done()
	sess.Close()
	return nil
}

func printState(w io.Writer, st models.ConnectivityState) {
	line := fmt.Sprintf("%s  %s", st.CheckedAt.Format("15:04:05"), st)
	if st.Error != "" {
		line += "  " + st.Error
	}
	fmt.Fprintln(w, line)
}
