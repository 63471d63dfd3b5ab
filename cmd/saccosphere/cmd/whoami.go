package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in member",
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return runWithApp(cmd, func(ctx context.Context, a *app) error {
		identity, err := a.requireMember(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", identity.DisplayName())
		fmt.Fprintf(out, "  ID:     %s\n", identity.ID)
		fmt.Fprintf(out, "  Email:  %s\n", identity.Email)
		if identity.DateJoined != nil {
			fmt.Fprintf(out, "  Joined: %s\n", identity.DateJoined.Format("2006-01-02"))
		}
		if identity.IsStaff {
			fmt.Fprintln(out, "  Staff:  yes")
		}
		return nil
	})
}
