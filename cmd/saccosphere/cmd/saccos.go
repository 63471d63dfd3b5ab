package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saccosphere/memberclient/internal/service"
)

var saccosCmd = &cobra.Command{
	Use:   "saccos [search]",
	Short: "List SACCOs",
	Long: `List the SACCOs in the directory. Requires a signed-in member.

Examples:
  saccosphere saccos
  saccosphere saccos umoja --page 2`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSaccos,
}

var saccosPage int

func init() {
	saccosCmd.Flags().IntVar(&saccosPage, "page", 1, "page number")
	rootCmd.AddCommand(saccosCmd)
}

func runSaccos(cmd *cobra.Command, args []string) error {
	search := ""
	if len(args) == 1 {
		search = args[0]
	}

	return runWithApp(cmd, func(ctx context.Context, a *app) error {
		if _, err := a.requireMember(ctx); err != nil {
			return err
		}
		page, err := a.saccos.List(ctx, saccosPage, search)
		if err != nil {
			return err
		}
		return writeSaccos(cmd.OutOrStdout(), page, saccosPage)
	})
}

func writeSaccos(w io.Writer, page *service.SaccoPage, current int) error {
	if len(page.Results) == 0 {
		fmt.Fprintln(w, "No SACCOs found")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMEMBER\tDESCRIPTION")
	for _, s := range page.Results {
		member := "no"
		if s.IsMember {
			member = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Name, member, oneLine(s.Description, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if current < 1 {
		current = 1
	}
	if page.TotalPages > 1 {
		fmt.Fprintf(w, "\nPage %d of %d\n", current, page.TotalPages)
	}
	return nil
}

// oneLine collapses whitespace and truncates s to limit runes.
func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
