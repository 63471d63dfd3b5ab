package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saccosphere/memberclient/internal/domain/auth"
	"github.com/saccosphere/memberclient/internal/service"
)

// passwordEnv supplies the password when neither flag is given.
const passwordEnv = "SACCOSPHERE_PASSWORD"

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Long: `Sign in to Saccosphere. The session is saved and reused by later commands
until you run "saccosphere logout".

The password is read from --password-stdin, --password, or the
SACCOSPHERE_PASSWORD environment variable, in that order.

Examples:
  # Read the password from a file
  saccosphere login --email jane@example.com --password-stdin < password.txt

  # Read it from the environment
  SACCOSPHERE_PASSWORD=... saccosphere login --email jane@example.com`,
	RunE: runLogin,
}

var (
	loginEmail         string
	loginPassword      string
	loginPasswordStdin bool
)

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email (required)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (visible in process lists; prefer --password-stdin)")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")
	_ = loginCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd.InOrStdin(), loginPassword, loginPasswordStdin)
	if err != nil {
		return err
	}

	return runWithApp(cmd, func(ctx context.Context, a *app) error {
		identity, err := a.auth.Login(ctx, auth.LoginRequest{Email: loginEmail, Password: password})
		if errors.Is(err, service.ErrInvalidCredentials) {
			return errors.New("login failed: email or password is incorrect")
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", identity.DisplayName())
		return nil
	})
}

// readPassword resolves the password from stdin, the flag value or the
// environment.
func readPassword(stdin io.Reader, flagValue string, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", errors.New("empty password on stdin")
		}
		return password, nil
	}
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(passwordEnv); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("no password given: use --password-stdin, --password or %s", passwordEnv)
}
