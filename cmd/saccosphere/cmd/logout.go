package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	Long: `Sign out of Saccosphere. The saved session is removed even when the
server cannot be reached.`,
	RunE: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	return runWithApp(cmd, func(ctx context.Context, a *app) error {
		err := a.auth.Logout(ctx)
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		if err != nil {
			return fmt.Errorf("local session removed, but %w", err)
		}
		return nil
	})
}
