// Package cmd provides the CLI commands for the Saccosphere member client.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/saccosphere/memberclient/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "saccosphere",
	Short: "Saccosphere - member client",
	Long: `Saccosphere is a command-line client for members of Saccosphere SACCOs.

It signs you in, keeps your session alive across runs (renewing the access
token when the API rejects it) and talks to the member API on your behalf.

Quick start:
  1. Create a config file: saccosphere.yaml
       api:
         base_url: https://api.saccosphere.example
  2. Run: saccosphere login --email you@example.com --password-stdin

Configuration:
  Config is loaded from saccosphere.yaml in the current directory,
  $HOME/.saccosphere/, or /etc/saccosphere/.

  Environment variables can override config values with the SACCOSPHERE_ prefix.
  Example: SACCOSPHERE_API_BASE_URL=http://localhost:8000

Commands:
  login       Sign in with email and password
  register    Create an account and sign in
  logout      Sign out and forget the saved session
  whoami      Show the signed-in member
  status      Show the session state
  saccos      List SACCOs
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./saccosphere.yaml)")
	rootCmd.PersistentFlags().String("base-url", "", "API base URL (overrides api.base_url)")
	rootCmd.PersistentFlags().String("session-backend", "", "session backend: file, sqlite, redis or memory")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")

	_ = viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("session.backend", rootCmd.PersistentFlags().Lookup("session-backend"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	config.InitViper(cfgFile)
}
