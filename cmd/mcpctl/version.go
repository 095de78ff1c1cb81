package main

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/mcpctl/internal/session"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of mcpctl",
	Long:  `Display the mcpctl version and, with --remote, the control API's version.`,
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

var versionRemote bool

func init() {
	versionCmd.Flags().BoolVar(&versionRemote, "remote", false, "Also ask the control API for its version")
}

func runVersion(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	printVersion(w)
	if !versionRemote {
		return nil
	}
	sess, err := loadSession(cmd)
	if err != nil {
		return err
	}
	return printRemoteVersion(cmd.Context(), w, sess)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "mcpctl version %s\n", Version)
	fmt.Fprintf(w, "  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
}

func printRemoteVersion(ctx context.Context, w io.Writer, sess *session.Session) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	st, err := sess.Client.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  API version: %s (%s)\n", st.Version, sess.Client.BaseURL())
	return nil
}
