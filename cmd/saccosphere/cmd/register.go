package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saccosphere/memberclient/internal/domain/auth"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Long: `Create a Saccosphere account. On success you are signed in.

The password is read the same way as for "saccosphere login".

Example:
  saccosphere register --email jane@example.com --first-name Jane --password-stdin`,
	RunE: runRegister,
}

var (
	registerEmail         string
	registerFirstName     string
	registerLastName      string
	registerPassword      string
	registerPasswordStdin bool
)

func init() {
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "account email (required)")
	registerCmd.Flags().StringVar(&registerFirstName, "first-name", "", "first name")
	registerCmd.Flags().StringVar(&registerLastName, "last-name", "", "last name")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "account password, at least 8 characters")
	registerCmd.Flags().BoolVar(&registerPasswordStdin, "password-stdin", false, "read the password from stdin")
	_ = registerCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd.InOrStdin(), registerPassword, registerPasswordStdin)
	if err != nil {
		return err
	}

	return runWithApp(cmd, func(ctx context.Context, a *app) error {
		identity, err := a.auth.Register(ctx, auth.RegisterRequest{
			FirstName: registerFirstName,
			LastName:  registerLastName,
			Email:     registerEmail,
			Password:  password,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s. You are signed in.\n", identity.DisplayName())
		return nil
	})
}
