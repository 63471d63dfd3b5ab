package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/saccosphere/memberclient/internal/service"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session state",
	Long: `Resolve the saved session against the API and show the result.

Output formats: text (default), json, yaml.`,
	RunE: runStatus,
}

var statusOutput string

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "output format: text, json or yaml")
	rootCmd.AddCommand(statusCmd)
}

// statusReport is the printable session state.
type statusReport struct {
	Result        string       `json:"result" yaml:"result"`
	Authenticated bool         `json:"authenticated" yaml:"authenticated"`
	Decision      string       `json:"decision" yaml:"decision"`
	RedirectTo    string       `json:"redirect_to,omitempty" yaml:"redirect_to,omitempty"`
	Member        *statusIdent `json:"member,omitempty" yaml:"member,omitempty"`
	Backend       string       `json:"session_backend" yaml:"session_backend"`
	BaseURL       string       `json:"base_url" yaml:"base_url"`
	Reason        string       `json:"reason,omitempty" yaml:"reason,omitempty"`
}

type statusIdent struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	switch statusOutput {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (use text, json or yaml)", statusOutput)
	}

	return runWithApp(cmd, func(ctx context.Context, a *app) error {
		outcome, err := a.bootstrap.Run(ctx)
		if err != nil {
			return err
		}
		decision := a.guard.Current()

		report := statusReport{
			Result:        string(outcome.Result),
			Authenticated: decision.Action == service.GuardAdmit,
			Decision:      decision.Action.String(),
			RedirectTo:    decision.RedirectTo,
			Backend:       a.cfg.Session.Backend,
			BaseURL:       a.cfg.API.BaseURL,
		}
		if outcome.Err != nil {
			report.Reason = outcome.Err.Error()
		}
		if id := decision.Identity; id != nil {
			report.Member = &statusIdent{ID: id.ID, Name: id.DisplayName(), Email: id.Email}
		}
		return writeStatus(cmd.OutOrStdout(), statusOutput, report)
	})
}

func writeStatus(w io.Writer, format string, r statusReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}

	if r.Member != nil {
		fmt.Fprintf(w, "Signed in as %s (%s)\n", r.Member.Name, r.Member.ID)
	} else {
		fmt.Fprintln(w, "Not signed in")
	}
	fmt.Fprintf(w, "  Result:   %s\n", r.Result)
	fmt.Fprintf(w, "  Decision: %s\n", r.Decision)
	if r.RedirectTo != "" {
		fmt.Fprintf(w, "  Login:    %s\n", r.RedirectTo)
	}
	if r.Reason != "" {
		fmt.Fprintf(w, "  Reason:   %s\n", r.Reason)
	}
	fmt.Fprintf(w, "  API:      %s\n", r.BaseURL)
	fmt.Fprintf(w, "  Session:  %s\n", r.Backend)
	return nil
}
